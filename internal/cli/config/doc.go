// Package config holds the salesdesk configuration file (~/.salesdesk/cli.yaml)
// shared by salesdesk-cli and salesdesk-proxy.
//
// Values are layered by confloader: defaults, file, .env, environment, flags.
package config
