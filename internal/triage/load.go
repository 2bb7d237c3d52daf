package triage

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape of a rule table.
type ruleFile struct {
	Default Level  `yaml:"default"`
	Rules   []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rule table from path and builds a Mapper from it.
// Any problem with the file is returned as an error, callers are expected to
// refuse to start.
func LoadRules(path string) (*Mapper, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	m, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return m, nil
}

// ParseRules builds a Mapper from YAML bytes. Unknown fields are rejected so a
// typo in a guard cannot silently widen a rule.
func ParseRules(data []byte) (*Mapper, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty rule table")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f ruleFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if f.Default == "" {
		f.Default = LevelConsultGP
	}
	if len(f.Rules) == 0 {
		return nil, errors.New("rule table has no rules")
	}
	return NewMapper(f.Rules, f.Default)
}

// MarshalRules renders the mapper's table in the format ParseRules reads.
func MarshalRules(m *Mapper) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ruleFile{Default: m.Fallback(), Rules: m.Rules()}); err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	return buf.Bytes(), nil
}
