// Package factory builds pluggable modules, such as metrics sinks and record
// stores, from a type name and a raw settings map taken from the
// configuration file.
//
//	reg := factory.NewRegistry[record.Store]()
//	_ = reg.Register("sqlite", func(conf map[string]any) (record.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return record.NewSQLiteStore(c.Path)
//	})
//	store, err := reg.Create(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": "steps.db"}})
package factory
