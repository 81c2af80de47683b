package config

import (
	"fmt"
	"strings"
)

// APIConfig configures the HTTP read API.
type APIConfig struct {
	// Addr is the listen address; empty disables the API.
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// SetDefaults allows every origin when none is configured.
func (c *APIConfig) SetDefaults() {
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}

// ExportConfig selects the files an offline run writes.
type ExportConfig struct {
	Dir     string   `json:"dir"`
	Formats []string `json:"formats"`
}

// SetDefaults writes every format into the working directory.
func (c *ExportConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "."
	}
	if len(c.Formats) == 0 {
		c.Formats = []string{"csv", "json", "html"}
	}
}

// Validate checks the format names.
func (c ExportConfig) Validate() error {
	for _, f := range c.Formats {
		switch strings.ToLower(f) {
		case "csv", "json", "html":
		default:
			return fmt.Errorf("unknown format %s", f)
		}
	}
	return nil
}
