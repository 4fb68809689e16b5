// Package env resolves the runtime environment of the service.
package env

import (
	"os"
	"strings"

	"github.com/polski-lektor/lektor-tts/internal/envvar"
)

// Environment is the deployment environment the process runs in.
type Environment string

const (
	// Development enables human-friendly colored logs.
	Development Environment = "development"

	// Production emits JSON logs.
	Production Environment = "production"

	// Test is used by the test suites.
	Test Environment = "test"
)

// FromEnv reads the environment from LEKTOR_ENV, defaulting to development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.LektorEnv))
}

// Parse converts a raw value into an Environment.
func Parse(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}
