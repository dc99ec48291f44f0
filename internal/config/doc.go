// Package config loads process configuration from FUSION_* environment
// variables. Command-line flags override what it returns.
package config
