package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/plume/config"
	"github.com/pthm-cable/plume/geom"
	"github.com/pthm-cable/plume/plume"
)

// PuffRecord is one row of puffs.csv.
type PuffRecord struct {
	Step   int     `csv:"step"`
	Time   float64 `csv:"time"`
	Index  int     `csv:"index"` // 0 is the oldest puff
	X      float64 `csv:"x"`
	Y      float64 `csv:"y"`
	Z      float64 `csv:"z"`
	Radius float64 `csv:"radius"`
	Amount float64 `csv:"amount"`
}

// ProbeRecord is one row of probes.csv.
type ProbeRecord struct {
	Step          int     `csv:"step"`
	Time          float64 `csv:"time"`
	Probe         int     `csv:"probe"`
	X             float64 `csv:"x"`
	Y             float64 `csv:"y"`
	Z             float64 `csv:"z"`
	Concentration float64 `csv:"concentration"`
}

// csvFile writes rows to one CSV file, emitting the header on first use.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func write[T any](c *csvFile, records []T) error {
	if len(records) == 0 {
		return nil
	}
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir    string
	stats  csvFile
	perf   csvFile
	puffs  csvFile
	probes csvFile
}

// NewOutputManager creates the output directory and its CSV files.
// Returns nil if dir is empty (output disabled); all methods accept a nil
// receiver.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	files := []struct {
		name string
		dst  *csvFile
	}{
		{"stats.csv", &om.stats},
		{"perf.csv", &om.perf},
		{"puffs.csv", &om.puffs},
		{"probes.csv", &om.probes},
	}
	for _, file := range files {
		f, err := os.Create(filepath.Join(dir, file.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", file.name, err)
		}
		file.dst.f = f
	}
	return om, nil
}

// WriteConfig saves the run configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteStats appends a window stats record to stats.csv.
func (om *OutputManager) WriteStats(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := write(&om.stats, []WindowStats{stats}); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return nil
}

// WritePerf appends a performance record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int) error {
	if om == nil {
		return nil
	}
	if err := write(&om.perf, []PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WritePuffs appends every puff at step to puffs.csv.
func (om *OutputManager) WritePuffs(step int, time float64, puffs []plume.Puff) error {
	if om == nil {
		return nil
	}
	records := make([]PuffRecord, len(puffs))
	for i, p := range puffs {
		records[i] = PuffRecord{
			Step: step, Time: time, Index: i,
			X: p.X, Y: p.Y, Z: p.Z,
			Radius: p.Radius(), Amount: p.Amount,
		}
	}
	if err := write(&om.puffs, records); err != nil {
		return fmt.Errorf("writing puffs: %w", err)
	}
	return nil
}

// WriteProbes appends one row per probe to probes.csv.
func (om *OutputManager) WriteProbes(step int, time float64, probes []geom.Point, values []float64) error {
	if om == nil {
		return nil
	}
	if len(probes) != len(values) {
		return fmt.Errorf("writing probes: %d probes but %d values", len(probes), len(values))
	}
	records := make([]ProbeRecord, len(probes))
	for i, p := range probes {
		records[i] = ProbeRecord{
			Step: step, Time: time, Probe: i,
			X: p.X, Y: p.Y, Z: p.Z,
			Concentration: values[i],
		}
	}
	if err := write(&om.probes, records); err != nil {
		return fmt.Errorf("writing probes: %w", err)
	}
	return nil
}

// WriteSnapshot saves a JSON snapshot under the snapshots subdirectory.
func (om *OutputManager) WriteSnapshot(s *Snapshot) (string, error) {
	if om == nil {
		return "", nil
	}
	return SaveSnapshot(s, filepath.Join(om.dir, "snapshots"))
}

// WriteHeatmap renders the snapshot's concentration grid next to its JSON.
// Snapshots without a grid are skipped.
func (om *OutputManager) WriteHeatmap(s *Snapshot) (string, error) {
	if om == nil || s.Concentration == nil {
		return "", nil
	}
	dir := filepath.Join(om.dir, "snapshots")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("snapshot_%08d.png", s.Step))
	if err := SaveHeatmap(s, path); err != nil {
		return "", err
	}
	return path, nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var firstErr error
	for _, c := range []*csvFile{&om.stats, &om.perf, &om.puffs, &om.probes} {
		if c.f == nil {
			continue
		}
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.f = nil
	}
	return firstErr
}
