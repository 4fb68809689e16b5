package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	envparse "github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

//go:embed lektor.v1.schema.json
var embeddedSchema []byte

const embeddedSchemaURL = "lektor.v1.schema.json"

// Load reads the config file at path when it exists and falls back to
// defaults otherwise. Environment overrides apply in both cases.
func Load(path, schemaPath string) (*Config, error) {
	if path != "" {
		_, err := os.Stat(path)
		if err == nil {
			return LoadAndValidate(path, schemaPath)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: failed to stat %s: %w", path, err)
		}

		slog.Warn("Config file not found, using defaults", "path", path)
	}

	cfg := &Config{Version: "v1"}
	if err := envparse.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to apply environment overrides: %w", err)
	}
	cfg.ApplyDefaults()

	return cfg, nil
}

// LoadAndValidate loads and validates the configuration. YAML and TOML are
// supported, chosen by file extension.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	format := formatOf(path)

	var raw any
	if err := unmarshal(format, data, &raw); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", format, err)
	}

	schema, err := compileSchema(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	var config Config
	if err := unmarshal(format, data, &config); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	if err := envparse.Parse(&config); err != nil {
		return nil, fmt.Errorf("config: failed to apply environment overrides: %w", err)
	}
	config.ApplyDefaults()

	return &config, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

func unmarshal(format string, data []byte, out any) error {
	if format == "toml" {
		return toml.Unmarshal(data, out)
	}

	return yaml.Unmarshal(data, out)
}

// compileSchema compiles the schema at schemaPath, or the embedded schema
// when schemaPath is empty.
func compileSchema(schemaPath string) (*jsonschema.Schema, error) {
	if schemaPath != "" {
		return jsonschema.Compile(schemaPath)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(embeddedSchemaURL, bytes.NewReader(embeddedSchema)); err != nil {
		return nil, err
	}

	return compiler.Compile(embeddedSchemaURL)
}
