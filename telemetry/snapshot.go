package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/plume/geom"
	"github.com/pthm-cable/plume/plume"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot is the full observable state at one step, for offline plotting.
type Snapshot struct {
	Version int    `json:"version"`
	Seed    uint64 `json:"seed"`

	Step int     `json:"step"`
	Time float64 `json:"time"`

	Region geom.Rect   `json:"region"`
	Puffs  []PuffState `json:"puffs"`

	// Wind node values, indexed [x][y]
	WindX []float64   `json:"wind_x"`
	WindY []float64   `json:"wind_y"`
	WindU [][]float64 `json:"wind_u"`
	WindV [][]float64 `json:"wind_v"`

	// Concentration grid at height GridZ, indexed [x][y]
	GridZ         float64     `json:"grid_z"`
	Concentration [][]float64 `json:"concentration,omitempty"`
}

// PuffState holds one puff.
type PuffState struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Radius float64 `json:"radius"`
	Amount float64 `json:"amount"`
}

// PuffStates converts a puff population for serialisation.
func PuffStates(puffs []plume.Puff) []PuffState {
	out := make([]PuffState, len(puffs))
	for i, p := range puffs {
		out[i] = PuffState{X: p.X, Y: p.Y, Z: p.Z, Radius: p.Radius(), Amount: p.Amount}
	}
	return out
}

// Rows copies a matrix into nested slices, one per row. A nil matrix gives nil.
func Rows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

// SaveSnapshot writes a snapshot to dir and returns its path.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("snapshot_%08d.json", snapshot.Step))

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snapshot.Version)
	}
	return &snapshot, nil
}
