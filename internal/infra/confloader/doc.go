// Package confloader provides configuration loading mechanism.
//
// It uses koanf to load configuration from multiple sources and
// fsnotify to watch files for changes.
//
// Priority (highest to lowest):
//
//  1. Command-line flags
//  2. Environment variables (GEDIS_ prefix, "__" between sections)
//  3. Configuration file (YAML)
//  4. Default values
//
// The Watcher is shared by configuration reloads and actor source hot
// reload: it watches individual files and reports debounced changes.
package confloader
