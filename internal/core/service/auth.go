package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yndnr/salesdesk-go/internal/core/domain"
	"github.com/yndnr/salesdesk-go/internal/core/session"
	"github.com/yndnr/salesdesk-go/internal/telemetry/logger"
)

// Auth endpoints.
const (
	PathLogin  = "/auth/login"
	PathMe     = "/auth/me"
	PathHealth = "/health"
)

// AuthService handles login and identity against the backend. It is the
// only caller of the session store's Set and SetUser.
type AuthService struct {
	api    API
	store  session.Store
	logger logger.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(api API, store session.Store, log logger.Logger) *AuthService {
	if log == nil {
		log = logger.Default()
	}
	return &AuthService{api: api, store: store, logger: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
	Message string       `json:"message"`
}

// Login authenticates and stores the returned token and user.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	// 1. Validate input
	if email == "" || password == "" {
		return nil, domain.ErrLoginRejected.WithDetails("email and password are required")
	}

	// 2. Call backend
	resp, err := s.api.Post(ctx, PathLogin, loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var body authResponse
	if err := json.Unmarshal(resp.Raw, &body); err != nil {
		return nil, domain.NewDecodeError(err, resp.Body)
	}

	// 3. Only a successful answer with a token opens a session
	if !body.Success || body.Token == "" {
		msg := body.Message
		if msg == "" {
			msg = "invalid credentials"
		}
		return nil, domain.ErrLoginRejected.WithDetails(msg)
	}

	if err := s.store.Set(ctx, body.Token, body.User); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.logger.Info("logged in", "email", email)
	return body.User, nil
}

// Me fetches the current identity and refreshes it in the session store.
func (s *AuthService) Me(ctx context.Context) (*domain.User, error) {
	if !s.store.Get().HasToken() {
		return nil, domain.ErrNotLoggedIn
	}

	resp, err := s.api.Get(ctx, PathMe, nil)
	if err != nil {
		return nil, err
	}

	var body authResponse
	if err := json.Unmarshal(resp.Raw, &body); err != nil {
		return nil, domain.NewDecodeError(err, resp.Body)
	}
	if body.User == nil {
		return nil, domain.NewDecodeError(fmt.Errorf("response has no user"), resp.Body)
	}

	if err := s.store.SetUser(ctx, body.User); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	return body.User, nil
}

// Logout clears the local session. The backend keeps no server-side state.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Current returns the stored session without contacting the backend.
func (s *AuthService) Current() domain.Session {
	return s.store.Get()
}

// Health returns the decoded /health body.
func (s *AuthService) Health(ctx context.Context) (any, error) {
	resp, err := s.api.Get(ctx, PathHealth, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
