// Package main provides the cornucopia CLI.
//
// Cornucopia turns annotated SQL query files into fully typed Go client
// packages. Queries are prepared against a real PostgreSQL instance, so the
// server itself reports parameter and column types; no SQL parsing happens
// client-side.
//
// Commands that need a database (generate live) take a connection URL or read
// one from cornucopia.yaml. generate schema instead spins up an ephemeral
// container and applies the given schema files before inference.
package main

func main() {
	Execute()
}
