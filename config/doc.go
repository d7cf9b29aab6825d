// Package config loads application settings (viper: file, environment,
// defaults) and declarative world definitions (YAML specs describing a
// world and its agent roster).
package config
