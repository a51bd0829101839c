// Package cliconfig loads and saves the configuration shared by the
// cmd/cgseed and cmd/cgbench tools: JSON-with-comments files merged
// with flag > project config > global config > defaults precedence,
// the same chain the teacher CLI uses for its own config file.
package cliconfig
