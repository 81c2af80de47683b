package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// descriptionFile is the on-disk layout of a household list.
type descriptionFile struct {
	Households []HouseholdDescription `json:"households" yaml:"households"`
}

// LoadDescriptions reads household descriptions from a YAML or JSON file.
// The format is chosen by extension; anything not ending in .json is parsed
// as YAML. Every description is validated.
func LoadDescriptions(path string) ([]HouseholdDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read households: %w", err)
	}
	var f descriptionFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse households %s: %w", path, err)
	}
	for i, d := range f.Households {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("household %d: %w", i, err)
		}
	}
	return f.Households, nil
}

// SaveDescriptions writes descriptions in the format implied by the path
// extension.
func SaveDescriptions(path string, descs []HouseholdDescription) error {
	f := descriptionFile{Households: descs}
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(f, "", "  ")
	} else {
		data, err = yaml.Marshal(f)
	}
	if err != nil {
		return fmt.Errorf("encode households: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
