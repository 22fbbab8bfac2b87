package postprocess

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSSDParams reads SSDParams from a YAML file.  Fields missing from the
// file keep their SSD300COCOParams value
func LoadSSDParams(path string) (SSDParams, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return SSDParams{}, fmt.Errorf("error reading params file: %w", err)
	}

	return ParseSSDParams(data)
}

// ParseSSDParams decodes SSDParams from YAML data on top of the
// SSD300COCOParams defaults
func ParseSSDParams(data []byte) (SSDParams, error) {

	p := SSD300COCOParams()

	if err := yaml.Unmarshal(data, &p); err != nil {
		return SSDParams{}, fmt.Errorf("error parsing params: %w", err)
	}

	if err := p.Boxes.Validate(); err != nil {
		return SSDParams{}, err
	}

	return p, nil
}
