package security

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/tradebook/internal/contracts"
)

// File is the securities reference file layout
type File struct {
	Securities []contracts.Security `yaml:"securities"`
}

// ReadFile parses and validates a securities YAML file.
// Unknown keys fail the load so typos never silently zero a min_quantity.
func ReadFile(path string) ([]contracts.Security, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes securities YAML
func Parse(data []byte) ([]contracts.Security, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode securities: %w", err)
	}

	seenID := make(map[int64]bool, len(f.Securities))
	seenCode := make(map[string]bool, len(f.Securities))
	for i := range f.Securities {
		sec := &f.Securities[i]
		if err := sec.Validate(); err != nil {
			return nil, fmt.Errorf("securities[%d]: %w", i, err)
		}
		if seenID[sec.ID] {
			return nil, fmt.Errorf("securities[%d]: duplicate id %d", i, sec.ID)
		}
		if seenCode[sec.Code] {
			return nil, fmt.Errorf("securities[%d]: duplicate code %s", i, sec.Code)
		}
		seenID[sec.ID] = true
		seenCode[sec.Code] = true
	}
	return f.Securities, nil
}

// LoadFile reads path into the registry
func (r *Registry) LoadFile(path string) (int, error) {
	secs, err := ReadFile(path)
	if err != nil {
		return 0, err
	}
	if err := r.Add(secs...); err != nil {
		return 0, err
	}
	return len(secs), nil
}
