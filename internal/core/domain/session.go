// Package domain defines the core domain models for salesdesk.
package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// LocalIDPrefix marks ids synthesized client-side for resources
	// that have no backend endpoint yet.
	LocalIDPrefix = "local-"

	// RequestIDPrefix is the prefix of X-Request-ID values.
	RequestIDPrefix = "req-"
)

// User is the identity returned by the auth endpoints.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// DisplayName returns the name, falling back to the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session is the client-held authentication state.
//
// Both fields are optional; a zero Session means "logged out".
type Session struct {
	Token string `json:"token,omitempty"`
	User  *User  `json:"user,omitempty"`
}

// HasToken reports whether a bearer token is present.
func (s Session) HasToken() bool {
	return s.Token != ""
}

// IsEmpty reports whether neither token nor user is set.
func (s Session) IsEmpty() bool {
	return s.Token == "" && s.User == nil
}

// newULID returns a lowercase ULID string.
func newULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return strings.ToLower(id.String()), nil
}

// GenerateLocalID generates an id for a client-side stand-in entity.
// Format: local-{ulid_lowercase}.
func GenerateLocalID() (string, error) {
	id, err := newULID()
	if err != nil {
		return "", ErrInvalidResource.WithDetails("generate id").WithCause(err)
	}
	return LocalIDPrefix + id, nil
}

// GenerateRequestID generates a correlation id for one logical request.
func GenerateRequestID() string {
	id, err := newULID()
	if err != nil {
		return RequestIDPrefix + "unknown"
	}
	return RequestIDPrefix + id
}

// IsLocalID reports whether id was synthesized by GenerateLocalID.
func IsLocalID(id string) bool {
	if !strings.HasPrefix(id, LocalIDPrefix) {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(id[len(LocalIDPrefix):]))
	return err == nil
}
