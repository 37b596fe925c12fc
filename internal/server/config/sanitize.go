package config

import (
	"maps"
	"path/filepath"
)

// Sanitize returns a copy of the config that is safe to log.
//
// Identity file locations are reduced to their base name and the preload
// map is copied so the result can be modified freely.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Identity.KeyFile != "" {
		sanitized.Identity.KeyFile = maskPath(sanitized.Identity.KeyFile)
	}
	if sanitized.Identity.DirectoryFile != "" {
		sanitized.Identity.DirectoryFile = maskPath(sanitized.Identity.DirectoryFile)
	}
	sanitized.Actors.Preload = maps.Clone(cfg.Actors.Preload)
	sanitized.Server.Gateway.AllowList = append([]string(nil), cfg.Server.Gateway.AllowList...)
	sanitized.Server.Gateway.CORS = append([]string(nil), cfg.Server.Gateway.CORS...)

	return &sanitized
}

// maskPath hides the directory of a secret file.
func maskPath(p string) string {
	return "****/" + filepath.Base(p)
}
