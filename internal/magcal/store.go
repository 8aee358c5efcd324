package magcal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Report describes a changed calibration: per-axis coefficients, the
// expected NAV induction and its measured standard deviation.
type Report struct {
	Calibration        [3]AxisCalibration `yaml:"calibration" json:"calibration"`
	NavInduction       [3]float64         `yaml:"nav_induction" json:"nav_induction"`
	NavInductionStdDev float64            `yaml:"nav_induction_std_dev" json:"nav_induction_std_dev"`
}

// Store persists the most recent report.
type Store interface {
	// Load returns ok=false when nothing has been stored yet.
	Load() (rep Report, ok bool, err error)
	Save(rep Report) error
}

// FileStore keeps the report as a YAML file.
type FileStore struct {
	Path string
}

func (s FileStore) Load() (Report, bool, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Report{}, false, nil
	}
	if err != nil {
		return Report{}, false, err
	}
	var rep Report
	if err := yaml.Unmarshal(b, &rep); err != nil {
		return Report{}, false, fmt.Errorf("magcal: parse %s: %w", s.Path, err)
	}
	return rep, true, nil
}

// Save writes atomically through a temp file in the same directory.
func (s FileStore) Save(rep Report) error {
	b, err := yaml.Marshal(rep)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".magcal-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.Path)
}

// MemoryStore keeps the report in memory.
type MemoryStore struct {
	mu    sync.Mutex
	rep   Report
	ok    bool
	Saves int
}

func (m *MemoryStore) Load() (Report, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rep, m.ok, nil
}

func (m *MemoryStore) Save(rep Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rep, m.ok = rep, true
	m.Saves++
	return nil
}
