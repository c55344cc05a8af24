// Package config loads the server's settings from defaults, an optional
// config.yaml and TODO_* environment variables, and validates them before
// any component is built.
package config
