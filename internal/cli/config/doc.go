// Package config provides the gedis-cli configuration.
//
//   - spec.go: CLIConfig struct (~/.gedis/cli.yaml)
//   - loader.go: Loading (file + GEDIS_CLI_ environment) and saving
//
// A profile names a server address together with the identity used to
// authenticate against it.
package config
