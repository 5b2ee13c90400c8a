// Package config loads, normalizes, and validates aircheck configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// AIRCHECK_STORE_TOKEN (optionally sourced from a .env file). The Config type
// centralizes every knob the server and CLI need: store and platform
// credentials, audio analysis thresholds, notification targets, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
