package config

import "fmt"

// StoreBackend identifies an episode/skill persistence backend.
type StoreBackend string

const (
	// StoreBackendMemory keeps episodes and skills in memory only.
	StoreBackendMemory StoreBackend = "memory"

	// StoreBackendJSONFile appends episodes to a JSONL log and keeps
	// skills in a keyed JSON file.
	StoreBackendJSONFile StoreBackend = "jsonfile"

	// StoreBackendSQL persists to a SQL database from the databases
	// section.
	StoreBackendSQL StoreBackend = "sql"
)

// StoreConfig configures episode and skill persistence.
//
// Persistence is optional; the in-memory tiers stay authoritative and a
// failing store only logs a warning.
type StoreConfig struct {
	// Backend selects the persistence backend.
	// Default: jsonfile
	Backend StoreBackend `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"title=Backend,enum=memory,enum=jsonfile,enum=sql,default=jsonfile"`

	// Path is the directory for jsonfile persistence.
	// Default: .argus
	Path string `yaml:"path,omitempty" json:"path,omitempty" jsonschema:"title=Path,description=Directory for jsonfile persistence"`

	// Database references an entry in the databases section.
	// Required when Backend is "sql".
	Database string `yaml:"database,omitempty" json:"database,omitempty" jsonschema:"title=Database,description=Named SQL database for the sql backend"`
}

// SetDefaults applies default values to StoreConfig.
func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StoreBackendJSONFile
	}
	if c.Backend == StoreBackendJSONFile && c.Path == "" {
		c.Path = ".argus"
	}
}

// Validate checks the store configuration.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case "", StoreBackendMemory, StoreBackendJSONFile:
	case StoreBackendSQL:
		if c.Database == "" {
			return fmt.Errorf("database is required for the sql backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (valid: memory, jsonfile, sql)", c.Backend)
	}
	return nil
}
