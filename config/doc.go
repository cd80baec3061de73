// Package config loads, normalizes, and validates wavlink configuration.
//
// Defaults mirror the wire constants of the protocols: port 9000 for file
// transfer and streaming, 9001 for voice, multicast group 234.5.6.7 with a
// TTL of 2. A TOML file (default ~/.config/wavlink/config.toml) overrides
// them and command-line flags override the file.
package config
