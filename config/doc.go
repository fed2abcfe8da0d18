// Package config loads module configuration with a fixed precedence:
// built-in defaults, then a YAML file, then environment variables.
package config
