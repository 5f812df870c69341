package service

import (
	"context"
	"net/url"

	"github.com/yndnr/salesdesk-go/internal/core/domain"
)

// API is the request engine surface used by the services.
type API interface {
	Get(ctx context.Context, path string, query url.Values) (*domain.Response, error)
	Post(ctx context.Context, path string, body any) (*domain.Response, error)
	Put(ctx context.Context, path string, body any) (*domain.Response, error)
	Delete(ctx context.Context, path string) (*domain.Response, error)
}
