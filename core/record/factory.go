package record

import (
	"fmt"

	"github.com/kilianp07/nbhdsim/core/factory"
)

// Config selects and configures the record store.
type Config struct {
	Store factory.ModuleConfig `json:"store" yaml:"store" koanf:"store"`
}

var storeRegistry = factory.NewRegistry[Store]()

// RegisterStore adds a store factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore builds the configured store. An empty type yields NopStore.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		return NopStore{}, nil
	}
	s, err := storeRegistry.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("record store: %w", err)
	}
	return s, nil
}

func init() {
	_ = RegisterStore("none", func(map[string]any) (Store, error) { return NopStore{}, nil })
	_ = RegisterStore("sqlite", func(conf map[string]any) (Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "nbhdsim.db"
		}
		return NewSQLiteStore(c.Path)
	})
	_ = RegisterStore("jsonl", func(conf map[string]any) (Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "steps.jsonl"
		}
		return NewJSONLStore(c.Path)
	})
	_ = RegisterStore("rotating_jsonl", func(conf map[string]any) (Store, error) {
		c := struct {
			Path       string `json:"path"`
			MaxSizeMB  int    `json:"max_size_mb"`
			MaxBackups int    `json:"max_backups"`
			MaxAgeDays int    `json:"max_age_days"`
		}{Path: "steps.jsonl", MaxSizeMB: 50, MaxBackups: 5, MaxAgeDays: 30}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
}
