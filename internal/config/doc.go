// Package config loads, normalizes, and validates shelver configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the SHELVER_WATCH_ROOT environment
// fallback. Categories are decoded as an ordered array so rule declaration
// order survives into the rule table.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
