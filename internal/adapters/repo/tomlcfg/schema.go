package tomlcfg

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int         `toml:"version"`
	Agent   agentSchema `toml:"agent"`
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported config schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type agentSchema struct {
	ID         string `toml:"id"`
	ImportedAt string `toml:"imported_at"`
	Model      string `toml:"model,omitempty"`
}
