// Package storage persists actor registrations.
//
// Registrations made through register_actor are written to an embedded
// Badger database so that a restarted server can restore them. Built-in
// actors and preloaded actors from the configuration are never stored.
//
// Keys have the form "actor/<name>"; values are JSON-encoded
// domain.Registration records.
package storage
