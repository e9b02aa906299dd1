// Package cli wires the testmend command tree: fix, parse, check, init and
// version. Commands resolve configuration from flags, environment variables
// and testmend.toml, then drive the fix pipeline in internal/fixer.
package cli
