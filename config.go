package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultKeyLength  = 8
	defaultOutputFile = "bc_sample_mapping.txt"
)

// Config is a specification of one demultiplexing run
type Config struct {
	AlevinFryDir      string `yaml:"alevin_fry_dir" json:"alevin_fry_dir"`           // alevin-fry quantification directory
	BarcodeMappingDir string `yaml:"barcode_mapping_dir" json:"barcode_mapping_dir"` // holds the mapping file and receives the output
	MappingFile       string `yaml:"mapping_file" json:"mapping_file"`               // mapping table name within BarcodeMappingDir
	FilterBarcodes    bool   `yaml:"filter_barcodes" json:"filter_barcodes"`

	KeyLength  int    `yaml:"key_length" json:"key_length"`
	OutputFile string `yaml:"output_file" json:"output_file"`
	Mismatches int    `yaml:"mismatches" json:"mismatches"`
	Strict     bool   `yaml:"strict" json:"strict"`
	StatsFile  string `yaml:"stats" json:"stats"`
}

func defaultConfig() *Config {
	return &Config{
		KeyLength:  defaultKeyLength,
		OutputFile: defaultOutputFile,
	}
}

func readConfigFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	return configFromYAML(data)
}

// configFromYAML also accepts JSON, which is a subset of YAML.
func configFromYAML(data []byte) (*Config, error) {
	c := defaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func (c *Config) validate() error {
	switch {
	case c.AlevinFryDir == "":
		return fmt.Errorf("alevin_fry_dir is required")
	case c.BarcodeMappingDir == "":
		return fmt.Errorf("barcode_mapping_dir is required")
	case c.MappingFile == "":
		return fmt.Errorf("mapping_file is required")
	case c.OutputFile == "":
		return fmt.Errorf("output_file must not be empty")
	case c.KeyLength < 1:
		return fmt.Errorf("key_length must be positive, got %d", c.KeyLength)
	case c.Mismatches < 0:
		return fmt.Errorf("mismatches must not be negative, got %d", c.Mismatches)
	case c.Mismatches >= c.KeyLength:
		return fmt.Errorf("mismatches (%d) must be smaller than key_length (%d)", c.Mismatches, c.KeyLength)
	}
	return nil
}
