package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/yndnr/salesdesk-go/internal/core/domain"
	"github.com/yndnr/salesdesk-go/internal/telemetry/logger"
	"github.com/yndnr/salesdesk-go/internal/telemetry/metric"
)

// Record is one backend entity as decoded JSON.
type Record = map[string]any

// ListParams selects a page. Zero values are not sent.
type ListParams struct {
	Page  int
	Limit int
}

// Filters holds list filters by name. Only active, platform and search are
// forwarded to the backend; other entries are dropped.
type Filters map[string]string

// supportedFilters are the filter names forwarded as query parameters.
var supportedFilters = []string{"active", "platform", "search"}

// ListResult is the outcome of a list call.
type ListResult struct {
	Items []Record `json:"items" yaml:"items"`
	Total int      `json:"total" yaml:"total"`
}

// Fallback operation labels.
const (
	opList   = "list"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// ResourceService implements CRUD over the resource registry.
type ResourceService struct {
	api     API
	metrics *metric.Registry
	logger  logger.Logger
}

// NewResourceService creates a ResourceService. metrics may be nil.
func NewResourceService(api API, metrics *metric.Registry, log logger.Logger) *ResourceService {
	if log == nil {
		log = logger.Default()
	}
	return &ResourceService{
		api:     api,
		metrics: metrics,
		logger:  log,
	}
}

// ============================================================================
// List
// ============================================================================

// List returns the items of a resource. It never fails: unmapped resources
// and backend failures both yield an empty result.
func (s *ResourceService) List(ctx context.Context, resource string, params ListParams, filters Filters) ListResult {
	name := domain.ResourceName(resource)
	log := s.logger.With("resource", resource, "op", opList)

	// 1. Unmapped resources are "not yet available"
	mapping, ok := domain.Resolve(name)
	if !ok {
		s.recordFallback(resource, opList)
		return emptyList()
	}

	// 2. Query from supported filters and pagination
	resp, err := s.api.Get(ctx, mapping.Path, listQuery(params, filters))
	if err != nil {
		s.recordFallback(resource, opList)
		if domain.IsRouteNotFound(err) {
			log.Debug("list endpoint not implemented", "path", mapping.Path)
		} else {
			log.Error("list failed", "error", err)
		}
		return emptyList()
	}

	// 3. Unwrap
	return unwrapList(resp.Raw, mapping.ListKey)
}

func listQuery(params ListParams, filters Filters) url.Values {
	q := url.Values{}
	for _, key := range supportedFilters {
		if v, ok := filters[key]; ok && v != "" {
			q.Set(key, v)
		}
	}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	return q
}

func emptyList() ListResult {
	return ListResult{Items: []Record{}, Total: 0}
}

// unwrapList picks listKey, then "data", then the whole body. Anything that
// is not an array yields an empty list.
func unwrapList(raw []byte, listKey string) ListResult {
	if !gjson.ValidBytes(raw) {
		return emptyList()
	}
	root := gjson.ParseBytes(raw)

	list := pick(root, listKey, "data")
	if !list.IsArray() {
		return emptyList()
	}

	items := make([]Record, 0, len(list.Array()))
	list.ForEach(func(_, value gjson.Result) bool {
		items = append(items, toRecord(value))
		return true
	})

	total := len(items)
	if t := root.Get("total"); t.Type == gjson.Number {
		total = int(t.Int())
	}
	return ListResult{Items: items, Total: total}
}

// ============================================================================
// Get
// ============================================================================

// Get fetches one entity. Unlike List it has no empty fallback: unmapped
// resources return ErrResourceNotFound and backend errors propagate.
func (s *ResourceService) Get(ctx context.Context, resource, id string) (Record, error) {
	mapping, ok := domain.Resolve(domain.ResourceName(resource))
	if !ok {
		return nil, domain.ErrResourceNotFound.WithDetails(resource)
	}
	if id == "" {
		return nil, domain.ErrInvalidResource.WithDetails("id is required")
	}

	resp, err := s.api.Get(ctx, mapping.ItemPath(id), nil)
	if err != nil {
		return nil, err
	}
	return unwrapItem(resp.Raw, mapping.ItemKey)
}

// ============================================================================
// Create / Update / Delete
// ============================================================================

// Create stores a new entity. Unmapped resources get a local stand-in with
// a generated id and no network call.
func (s *ResourceService) Create(ctx context.Context, resource string, payload Record) (Record, error) {
	mapping, ok := domain.Resolve(domain.ResourceName(resource))
	if !ok {
		id, err := domain.GenerateLocalID()
		if err != nil {
			return nil, fmt.Errorf("generate local id: %w", err)
		}
		s.recordFallback(resource, opCreate)
		return withID(payload, id), nil
	}

	resp, err := s.api.Post(ctx, mapping.Path, payload)
	if err != nil {
		return nil, err
	}
	if isEmptyBody(resp.Raw) {
		return copyRecord(payload), nil
	}
	return unwrapItem(resp.Raw, mapping.ItemKey)
}

// Update modifies an entity. Unmapped resources and "route not found"
// answers return the payload merged with id.
func (s *ResourceService) Update(ctx context.Context, resource, id string, payload Record) (Record, error) {
	if id == "" {
		return nil, domain.ErrInvalidResource.WithDetails("id is required")
	}

	mapping, ok := domain.Resolve(domain.ResourceName(resource))
	if !ok {
		s.recordFallback(resource, opUpdate)
		return withID(payload, id), nil
	}

	resp, err := s.api.Put(ctx, mapping.ItemPath(id), payload)
	if err != nil {
		if domain.IsRouteNotFound(err) {
			s.logger.Debug("update endpoint not implemented", "resource", resource, "id", id)
			s.recordFallback(resource, opUpdate)
			return withID(payload, id), nil
		}
		return nil, err
	}
	if isEmptyBody(resp.Raw) {
		return withID(payload, id), nil
	}
	return unwrapItem(resp.Raw, mapping.ItemKey)
}

// Delete removes an entity and returns {id}. Unmapped resources and "route
// not found" answers succeed locally; other failures are logged and returned.
func (s *ResourceService) Delete(ctx context.Context, resource, id string) (Record, error) {
	if id == "" {
		return nil, domain.ErrInvalidResource.WithDetails("id is required")
	}

	mapping, ok := domain.Resolve(domain.ResourceName(resource))
	if !ok {
		s.recordFallback(resource, opDelete)
		return Record{"id": id}, nil
	}

	if _, err := s.api.Delete(ctx, mapping.ItemPath(id)); err != nil {
		// Same route-not-found fallback as Update; every other failure propagates.
		if domain.IsRouteNotFound(err) {
			s.logger.Debug("delete endpoint not implemented", "resource", resource, "id", id)
			s.recordFallback(resource, opDelete)
			return Record{"id": id}, nil
		}
		s.logger.Error("delete failed", "resource", resource, "id", id, "error", err)
		return nil, err
	}
	return Record{"id": id}, nil
}

// ============================================================================
// Helpers
// ============================================================================

// unwrapItem picks itemKey, then "data", then the whole body, and requires
// a JSON object.
func unwrapItem(raw []byte, itemKey string) (Record, error) {
	if !gjson.ValidBytes(raw) {
		return nil, domain.NewDecodeError(fmt.Errorf("response is not JSON"), string(raw))
	}
	item := pick(gjson.ParseBytes(raw), itemKey, "data")
	if !item.IsObject() {
		return nil, domain.NewDecodeError(fmt.Errorf("expected an object, got %s", item.Type), string(raw))
	}
	rec, _ := item.Value().(map[string]any)
	return rec, nil
}

// isEmptyBody reports a successful write answered without content (204).
func isEmptyBody(raw []byte) bool {
	return len(bytes.TrimSpace(raw)) == 0
}

// pick returns the first non-null field among keys, or root.
func pick(root gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if v := root.Get(key); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return root
}

func toRecord(v gjson.Result) Record {
	if m, ok := v.Value().(map[string]any); ok {
		return m
	}
	return Record{"value": v.Value()}
}

// withID returns a copy of payload with id set.
func withID(payload Record, id string) Record {
	out := copyRecord(payload)
	out["id"] = id
	return out
}

func copyRecord(payload Record) Record {
	out := make(Record, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	return out
}

func (s *ResourceService) recordFallback(resource, op string) {
	if s.metrics != nil {
		s.metrics.RecordFallback(resource, op)
	}
}
