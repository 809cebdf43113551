// Package buildinfo reports the version of the running binary.
//
// Release builds set the variables with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/moeckpt/internal/infra/buildinfo.Version=v0.3.0"
//
// Development builds fall back to the module and VCS data embedded by the
// Go toolchain.
package buildinfo
