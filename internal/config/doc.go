// Package config defines the application configuration structure and the
// logic for loading it from the environment and optional config files.
package config
