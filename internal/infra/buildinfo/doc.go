// Package buildinfo exposes version information injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/salesdesk-go/internal/infra/buildinfo.Version=v1.0.0"
//
// The version feeds the `version` command and the User-Agent sent to the API.
package buildinfo
