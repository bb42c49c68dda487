// Package main hosts the scriptsync CLI entrypoint and command graph.
//
// Each pipeline command resolves configuration, opens the run ledger and hands
// a request to internal/pipeline; the remaining commands inspect the ledger,
// check the environment, or scaffold a configuration file. Keep the heavy
// lifting in internal packages and surface it here through flags.
package main
