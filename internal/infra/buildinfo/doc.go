// Package buildinfo reports the version of the gedis binaries.
//
// Release builds inject values via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/gedis-go/internal/infra/buildinfo.Version=v1.0.0"
//
// Development builds fall back to the VCS stamp recorded by the Go toolchain.
package buildinfo
