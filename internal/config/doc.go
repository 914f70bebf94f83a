// Package config loads, merges and validates the sync client configuration.
//
// Sources, lowest precedence first:
//  1. Built-in defaults
//  2. JSON or TOML config file (path from CONFIG or --config)
//  3. Environment variables
//  4. Command-line flags
//
// [GetClientConfig] is the entry point used by the CLI.
package config
