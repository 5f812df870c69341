// Package domain defines the core domain models for salesdesk.
//
// Domain models are pure value objects without IO dependencies.
// This package contains:
//
//   - Session and User: the client-held authentication state
//   - ResourceName and ResourceMapping: the static endpoint registry
//   - NormalizedError: the single error shape of the API layer
//   - DomainError: coded client-side errors
package domain
