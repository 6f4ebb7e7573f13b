package ingest

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"filmfit/internal/models"
)

// WavelengthRange filters measurement files by wavelength in nanometers.
// A zero bound is open.
type WavelengthRange struct {
	MinNM int `yaml:"minNM"`
	MaxNM int `yaml:"maxNM"`
}

// Contains reports whether nm lies inside the range
func (r WavelengthRange) Contains(nm int) bool {
	if r.MinNM > 0 && nm < r.MinNM {
		return false
	}
	if r.MaxNM > 0 && nm > r.MaxNM {
		return false
	}
	return true
}

// Skip records why a file was left out of a batch
type Skip struct {
	Path   string
	Reason string
}

// Batch is the outcome of loading a set of measurement files.
type Batch struct {
	// Measurements sorted by ascending wavelength
	Measurements []models.Measurement

	// Found is the number of candidate files
	Found int

	// Skipped lists files that were left out, in discovery order
	Skipped []Skip
}

// Processed returns the number of files that were loaded
func (b Batch) Processed() int {
	return len(b.Measurements)
}

// Discover returns the files in dataDir matching pattern, sorted by name.
func Discover(dataDir, pattern string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid measurement pattern %q: %w", pattern, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadBatch reads every path. Files without a wavelength in their name,
// outside the filter, duplicating an earlier wavelength, or failing to parse
// are logged and skipped; the batch continues.
func LoadBatch(paths []string, filter WavelengthRange) Batch {
	b := Batch{Found: len(paths)}
	seen := make(map[int]string)

	skip := func(path, reason string) {
		log.Printf("Warning: skipping %s: %s", filepath.Base(path), reason)
		b.Skipped = append(b.Skipped, Skip{Path: path, Reason: reason})
	}

	for _, path := range paths {
		nm, ok := WavelengthFromFilename(path)
		if !ok {
			skip(path, "no wavelength in file name")
			continue
		}
		if !filter.Contains(nm) {
			skip(path, fmt.Sprintf("%dnm outside wavelength filter", nm))
			continue
		}
		if prev, dup := seen[nm]; dup {
			skip(path, fmt.Sprintf("%dnm already loaded from %s", nm, filepath.Base(prev)))
			continue
		}

		m, err := ReadMeasurementFile(path)
		if err != nil {
			skip(path, err.Error())
			continue
		}
		seen[nm] = path
		b.Measurements = append(b.Measurements, m)
	}

	sort.SliceStable(b.Measurements, func(i, j int) bool {
		return b.Measurements[i].WavelengthNM < b.Measurements[j].WavelengthNM
	})
	return b
}
