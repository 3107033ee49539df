// Package modes registers the built-in editing modes with the core registry.
// Import this package to ensure all modes are registered.
package modes

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/gridhost/internal/core"
)

//go:embed modes.yaml
var builtin []byte

func init() {
	defs, err := Parse(builtin)
	if err != nil {
		panic(err)
	}
	for _, def := range defs {
		core.Register(def)
	}
}

// Parse decodes a YAML list of mode definitions and validates each one.
func Parse(data []byte) ([]core.ModeDefinition, error) {
	var defs []core.ModeDefinition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse modes: %w", err)
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}
	return defs, nil
}
