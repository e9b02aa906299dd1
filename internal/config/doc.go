// Package config loads, resolves and validates testmend configuration.
//
// Settings are merged from four sources in ascending priority: built-in
// defaults, testmend.toml, TESTMEND_* environment variables and command-line
// flags. Resolve produces a ResolvedConfig that records where each value
// came from.
package config
