// Package config provides configuration loading and management for
// rtcontour. It handles loading configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers bounds per-slice parallelism for rasterization and
		// the automatic extractors
		NumWorkers int `yaml:"numWorkers"`
	} `yaml:"processing"`

	// Segmentation thresholds, in Hounsfield Units for CT input
	Segmentation struct {
		// BodyThreshold separates tissue from air for body contouring
		BodyThreshold float64 `yaml:"bodyThreshold"`

		// BodyMarginMM grows the body contour outward, in millimeters
		BodyMarginMM float64 `yaml:"bodyMarginMM"`

		// LungThreshold is the upper HU bound for lung tissue
		LungThreshold float64 `yaml:"lungThreshold"`

		// RemoveTrachea drops lung candidates touching the top border
		RemoveTrachea bool `yaml:"removeTrachea"`

		// FillVessels fills small cavities inside the lungs
		FillVessels bool `yaml:"fillVessels"`

		// BoneThreshold is the lower HU bound for bone
		BoneThreshold float64 `yaml:"boneThreshold"`

		// WatershedMinDistance is the minimum marker separation in pixels
		WatershedMinDistance int `yaml:"watershedMinDistance"`
	} `yaml:"segmentation"`

	// Output parameters
	Output struct {
		// StructureSetLabel names exported RT structure sets
		StructureSetLabel string `yaml:"structureSetLabel"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default

	// Set default segmentation parameters
	cfg.Segmentation.BodyThreshold = -300
	cfg.Segmentation.BodyMarginMM = 0
	cfg.Segmentation.LungThreshold = -400
	cfg.Segmentation.RemoveTrachea = true
	cfg.Segmentation.FillVessels = true
	cfg.Segmentation.BoneThreshold = 300
	cfg.Segmentation.WatershedMinDistance = 20

	// Set default output parameters
	cfg.Output.StructureSetLabel = "rtcontour"
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

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
