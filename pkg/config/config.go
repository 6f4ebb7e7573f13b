// Package config provides configuration loading and management for filmfit.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"filmfit/pkg/fitting"
	"filmfit/pkg/ingest"
	"filmfit/pkg/material"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input data locations
	Data struct {
		// DataDir holds the measurement files
		DataDir string `yaml:"dataDir"`

		// TablesDir holds the index tables; empty means DataDir
		TablesDir string `yaml:"tablesDir,omitempty"`

		// MeasurementGlob selects measurement files inside DataDir
		MeasurementGlob string `yaml:"measurementGlob"`

		// Materials maps material names to index table files inside TablesDir
		Materials map[string]string `yaml:"materials"`
	} `yaml:"data"`

	// Optical model parameters
	Model struct {
		// AmbientIndex is the refractive index of the incidence medium
		AmbientIndex float64 `yaml:"ambientIndex"`

		// Layer is the thin film material
		Layer string `yaml:"layer"`

		// Substrate is the material under the film
		Substrate string `yaml:"substrate"`
	} `yaml:"model"`

	// WavelengthFilter restricts which measurement files are fitted
	WavelengthFilter ingest.WavelengthRange `yaml:"wavelengthFilter"`

	// Thickness grid in microns
	Thickness struct {
		Min    float64 `yaml:"min"`
		Max    float64 `yaml:"max"`
		Points int     `yaml:"points"`
	} `yaml:"thickness"`

	// Preprocessing of the measured curves
	Preprocessing fitting.Preprocessing `yaml:"preprocessing"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for the grid sweep
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir receives all rendered images
		Dir string `yaml:"dir"`

		// Heatmap is the file name of the wavelength/thickness heat map
		Heatmap string `yaml:"heatmap"`

		// Contour is the file name of the contour plot
		Contour string `yaml:"contour"`

		// ContourLevels is the number of contour lines
		ContourLevels int `yaml:"contourLevels"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Data.DataDir = "data"
	cfg.Data.MeasurementGlob = "*nm.csv"
	cfg.Data.Materials = map[string]string{
		material.Quartz:  "quartz_index_of_refraction_vals.csv",
		material.Silicon: "Franta-100K_Si_refractive_index.csv",
	}

	cfg.Model.AmbientIndex = 1.0
	cfg.Model.Layer = material.Quartz
	cfg.Model.Substrate = material.Silicon

	cfg.Thickness.Min = 1.0
	cfg.Thickness.Max = 2.5
	cfg.Thickness.Points = 5000

	cfg.Preprocessing = fitting.DefaultPreprocessing()

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Output.Dir = "."
	cfg.Output.Heatmap = "wavelength_thickness_heatmap.png"
	cfg.Output.Contour = "wavelength_thickness_contours.png"
	cfg.Output.ContourLevels = 20
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields that would otherwise fail deep inside a run.
// Grid problems are reported as fitting.ErrInvalidGrid.
func (c *Config) Validate() error {
	if _, err := c.ThicknessGrid(); err != nil {
		return err
	}
	if c.Model.AmbientIndex <= 0 {
		return fmt.Errorf("ambient index must be positive, got %g", c.Model.AmbientIndex)
	}
	for _, name := range []string{c.Model.Layer, c.Model.Substrate} {
		if _, ok := c.Data.Materials[name]; !ok {
			return fmt.Errorf("%w: no index table configured for %q", material.ErrUnknownMaterial, name)
		}
	}
	if c.Preprocessing.TrimLeading < 0 || c.Preprocessing.TrimTrailing < 0 {
		return fmt.Errorf("trim counts must not be negative")
	}
	f := c.WavelengthFilter
	if f.MinNM < 0 || f.MaxNM < 0 || (f.MaxNM > 0 && f.MaxNM < f.MinNM) {
		return fmt.Errorf("%w: wavelength filter [%d, %d] nm", fitting.ErrInvalidGrid, f.MinNM, f.MaxNM)
	}
	return nil
}

// TablesDirectory returns the directory index table paths are resolved against
func (c *Config) TablesDirectory() string {
	if c.Data.TablesDir != "" {
		return c.Data.TablesDir
	}
	return c.Data.DataDir
}

// ThicknessGrid returns the configured thickness grid
func (c *Config) ThicknessGrid() ([]float64, error) {
	return fitting.LinearGrid(c.Thickness.Min, c.Thickness.Max, c.Thickness.Points)
}

// FitterParams returns the fitting parameters described by the configuration
func (c *Config) FitterParams() fitting.Params {
	return fitting.Params{
		Layer:        c.Model.Layer,
		Substrate:    c.Model.Substrate,
		AmbientIndex: c.Model.AmbientIndex,
		NumWorkers:   c.Processing.NumCores,
	}
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
