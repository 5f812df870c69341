// Package tlsroots builds the trust store for outgoing API calls: the
// system pool plus an optional CA bundle for self-hosted backends.
package tlsroots
