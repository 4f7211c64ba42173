// Package config loads the licensing server configuration.
//
// Values come from three layers, each overriding the previous one:
//
//   - Built-in defaults
//   - The licensing.yml file under LICENSING_CONFIG_PATH (default /etc/licensing)
//   - LICENSING_* environment variables, e.g. LICENSING_TOKEN_LEEWAY_SECONDS
//
// The source of every attribute is tracked so "licensectl configuration
// show" can report where a value came from. Watch reloads the file when
// it changes; only the settings that are safe to change at runtime
// (leeway, expiry warning window, alert recipients) are applied live by
// the server.
package config
