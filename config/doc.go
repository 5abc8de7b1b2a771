// Package config loads the ring and pipeline configuration for prioring.
//
// A configuration is built from layers. Defaults come first, then each file
// added with AddLayer, JSON or YAML by extension, then PRIORING_* environment
// variables. Maps are merged deeply so a later layer only needs the keys it
// changes:
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.yaml")
//	loader.AddLayer("configs/production.json")
//
//	cfg, err := loader.Load()
//	if err != nil {
//		return err
//	}
//	for _, name := range cfg.RingNames() {
//		ring, err := ringbuffer.New(cfg.Rings[name].Geometry())
//		...
//	}
//
// Each layer is checked against an embedded JSON Schema (see Schema) before
// it is merged, so unknown keys and out of range geometry are reported with
// the offending field. The merged result is then checked by Config.Validate.
//
// Ring entries inherit DefaultRing for any field they omit. Durations accept
// Go duration strings ("5ms") or integer nanoseconds.
//
// Environment overrides:
//
//	PRIORING_LOG_LEVEL        debug, info, warn, error
//	PRIORING_LOG_FORMAT       json, text
//	PRIORING_METRICS_ENABLED  true, false
//	PRIORING_METRICS_PORT     0-65535
//
// Config files are read through size, path and nesting checks, and written
// with 0600 permissions.
package config
