// Package connection opens gedis-cli connections to a server.
//
// A Manager turns a config.Profile into a connected *client.Client,
// loading the identity and directory files the profile names, and keeps
// it open for the lifetime of a command or shell session.
package connection
