//go:build !plumedebug

package plume

func checkInvariants(*Simulator) {}
