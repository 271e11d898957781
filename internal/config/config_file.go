package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var configSchemaJSON string

var (
	configSchema     *jsonschema.Schema
	configSchemaErr  error
	configSchemaOnce sync.Once
)

func compiledSchema() (*jsonschema.Schema, error) {
	configSchemaOnce.Do(func() {
		configSchema, configSchemaErr = jsonschema.CompileString("config.schema.json", configSchemaJSON)
	})
	return configSchema, configSchemaErr
}

// LoadFile reads a YAML config file on top of the defaults.
// The document is checked against the embedded schema before it is decoded.
func LoadFile(path string) (*MainConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML config bytes on top of the defaults
func Parse(raw []byte) (*MainConfig, error) {
	if err := validateDocument(raw); err != nil {
		return nil, err
	}
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// validateDocument runs the raw YAML document through the JSON schema.
// yaml.v3 yields Go ints and nested maps, so it takes a JSON round trip
// to get the value shapes the validator expects.
func validateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("config yaml: %w", err)
	}
	if doc == nil {
		return nil // empty file, defaults apply
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config yaml: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return fmt.Errorf("config yaml: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	return nil
}
