package handler

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"parts-inventory/internal/gateway/clients"
	"parts-inventory/internal/models"
	"parts-inventory/internal/query"
)

const (
	CACHE_TTL_SHORT = 5 * time.Minute
)

// PartsAPI is the remote surface the handler needs. *clients.PartsClient
// satisfies it.
type PartsAPI interface {
	ListParts(ctx context.Context) ([]models.Part, error)
	GetPart(ctx context.Context, id models.ID) (models.Part, error)
	CreatePart(ctx context.Context, in models.PartCreateInput) (models.Part, error)
	UpdatePart(ctx context.Context, id models.ID, in models.PartUpdateInput) (models.Part, error)
	DeletePart(ctx context.Context, id models.ID) error
	SearchParts(ctx context.Context, params models.PartSearchParams) ([]models.Part, error)
}

// Publisher forwards invalidations to other instances.
type Publisher interface {
	Publish(ctx context.Context, keys []query.Key) error
}

// SearchOutcome separates "no search was run" from "a search found nothing".
type SearchOutcome struct {
	Performed bool                    `json:"performed"`
	Params    models.PartSearchParams `json:"params"`
	Parts     []models.Part           `json:"parts"`
}

type PartsHandler struct {
	api           PartsAPI
	cache         *query.Cache
	publisher     Publisher
	listStaleTime time.Duration
	logger        *zap.Logger
}

type Option func(*PartsHandler)

func WithPublisher(p Publisher) Option {
	return func(h *PartsHandler) { h.publisher = p }
}

// WithListStaleTime overrides how long the full list is served without
// revalidation.
func WithListStaleTime(d time.Duration) Option {
	return func(h *PartsHandler) { h.listStaleTime = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *PartsHandler) { h.logger = l }
}

func NewPartsHandler(api PartsAPI, cache *query.Cache, opts ...Option) *PartsHandler {
	h := &PartsHandler{
		api:           api,
		cache:         cache,
		listStaleTime: CACHE_TTL_SHORT,
		logger:        zap.NewNop(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// --- Reads ---

func (h *PartsHandler) ListParts(ctx context.Context) ([]models.Part, error) {
	return query.Fetch(ctx, h.cache, query.PartsKey(), query.Options{StaleTime: h.listStaleTime}, h.api.ListParts)
}

// GetPart never issues a request for an empty id.
func (h *PartsHandler) GetPart(ctx context.Context, id models.ID) (models.Part, error) {
	id = models.ID(strings.TrimSpace(id.String()))
	if id == "" {
		return models.Part{}, clients.ErrMissingID
	}
	return query.Fetch(ctx, h.cache, query.PartKey(id), query.Options{}, func(ctx context.Context) (models.Part, error) {
		return h.api.GetPart(ctx, id)
	})
}

// SearchParts runs a search only when at least one criterion survives
// normalization.
func (h *PartsHandler) SearchParts(ctx context.Context, params models.PartSearchParams) (SearchOutcome, error) {
	params = params.Normalize()
	if params.IsEmpty() {
		return SearchOutcome{Params: params}, nil
	}
	parts, err := query.Fetch(ctx, h.cache, query.SearchKey(params), query.Options{}, func(ctx context.Context) ([]models.Part, error) {
		return h.api.SearchParts(ctx, params)
	})
	if err != nil {
		return SearchOutcome{}, err
	}
	return SearchOutcome{Performed: true, Params: params, Parts: parts}, nil
}

// WatchParts calls fn with the current list and again after every reload of
// it, including reloads triggered by invalidation. The watch is registered
// before the first read, so a mutation landing in between is not missed. The
// returned func stops the watch.
func (h *PartsHandler) WatchParts(ctx context.Context, fn func([]models.Part)) (func(), error) {
	var (
		mu        sync.Mutex
		delivered bool
		pending   []models.Part
		reloaded  bool
	)
	stop := h.cache.Subscribe(query.PartsKey(), func(s query.Snapshot) {
		if s.Err != nil {
			h.logger.Warn("Failed to reload watched parts", zap.Error(s.Err))
			return
		}
		parts, ok := s.Data.([]models.Part)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if !delivered {
			pending, reloaded = parts, true
			return
		}
		fn(parts)
	})

	parts, err := h.ListParts(ctx)
	if err != nil {
		stop()
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	// A reload that landed during the read is at least as new as its result.
	if reloaded {
		parts = pending
	}
	delivered = true
	fn(parts)
	return stop, nil
}

// --- Mutations ---

// CreatePart validates in and creates the part. The duplicate SKU check only
// sees the list already in the cache: when nothing has loaded it yet, the
// check is skipped and the API is left to reject a duplicate.
func (h *PartsHandler) CreatePart(ctx context.Context, in models.PartCreateInput) (models.Part, error) {
	in, err := validateCreate(in, h.knownParts())
	if err != nil {
		return models.Part{}, err
	}
	part, err := h.api.CreatePart(ctx, in)
	if err != nil {
		return models.Part{}, err
	}
	h.invalidate(ctx, query.MutationCreate, part.ID)
	h.logger.Info("Part created", zap.Stringer("id", part.ID), zap.String("sku", part.SKU))
	return part, nil
}

func (h *PartsHandler) UpdatePart(ctx context.Context, id models.ID, in models.PartUpdateInput) (models.Part, error) {
	id = models.ID(strings.TrimSpace(id.String()))
	if id == "" {
		return models.Part{}, clients.ErrMissingID
	}
	in, err := validateUpdate(id, in, h.knownParts())
	if err != nil {
		return models.Part{}, err
	}
	part, err := h.api.UpdatePart(ctx, id, in)
	if err != nil {
		return models.Part{}, err
	}
	h.invalidate(ctx, query.MutationUpdate, id)
	h.logger.Info("Part updated", zap.Stringer("id", id))
	return part, nil
}

func (h *PartsHandler) DeletePart(ctx context.Context, id models.ID) error {
	id = models.ID(strings.TrimSpace(id.String()))
	if id == "" {
		return clients.ErrMissingID
	}
	if err := h.api.DeletePart(ctx, id); err != nil {
		return err
	}
	h.invalidate(ctx, query.MutationDelete, id)
	h.logger.Info("Part deleted", zap.Stringer("id", id))
	return nil
}

// knownParts is whatever list is already cached; validation never fetches.
func (h *PartsHandler) knownParts() []models.Part {
	parts, _ := query.Peek[[]models.Part](h.cache, query.PartsKey())
	return parts
}

func (h *PartsHandler) invalidate(ctx context.Context, m query.Mutation, id models.ID) {
	keys := query.InvalidationsFor(m, id)
	h.cache.Invalidate(keys...)
	if h.publisher == nil {
		return
	}
	// Broadcast failures are logged, never returned: the mutation stands.
	if err := h.publisher.Publish(context.WithoutCancel(ctx), keys); err != nil {
		h.logger.Warn("Failed to broadcast invalidation", zap.String("mutation", string(m)), zap.Error(err))
	}
}
