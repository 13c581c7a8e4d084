package fetch

// Config tunes the orchestrator.
type Config struct {
	// MaxResolveDepth bounds how deep dependency resolution may recurse. A
	// top level fetch is depth 0; its sub-fetches are depth 1 and so on.
	// References found at this depth are left unresolved. Zero disables
	// dependency resolution.
	MaxResolveDepth int
	// MaxConcurrentResolves caps the sub-fetches one integrity pass runs at
	// once. Zero means no limit.
	MaxConcurrentResolves int
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxResolveDepth:       3,
		MaxConcurrentResolves: 8,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.MaxResolveDepth < 0 {
		return &ConfigError{Field: "MaxResolveDepth", Message: "must be non-negative"}
	}
	if c.MaxConcurrentResolves < 0 {
		return &ConfigError{Field: "MaxConcurrentResolves", Message: "must be non-negative"}
	}
	return nil
}
