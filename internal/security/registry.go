package security

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/wonny/tradebook/internal/contracts"
	"github.com/wonny/tradebook/pkg/logger"
	"github.com/wonny/tradebook/pkg/redis"
)

// Source is a slower backing store consulted when a security is not in memory
type Source interface {
	LoadSecurity(ctx context.Context, id int64) (*contracts.Security, error)
	LoadSecurityByCode(ctx context.Context, code string) (*contracts.Security, error)
}

// Registry resolves security metadata.
// Lookups hit memory first, then the Redis cache, then the Source.
// ⭐ SSOT: 종목 거래 규칙은 여기서만 조회
type Registry struct {
	mu     sync.RWMutex
	byID   map[int64]*contracts.Security
	byCode map[string]*contracts.Security

	source Source
	cache  *redis.Cache
	logger *logger.Logger
}

var _ contracts.SecurityReference = (*Registry)(nil)

// Option configures a Registry
type Option func(*Registry)

// WithSource enables the fallback store
func WithSource(src Source) Option {
	return func(r *Registry) { r.source = src }
}

// WithCache puts a Redis cache in front of the fallback store
func WithCache(cache *redis.Cache) Option {
	return func(r *Registry) { r.cache = cache }
}

// NewRegistry creates an empty registry
func NewRegistry(log *logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		byID:   make(map[int64]*contracts.Security),
		byCode: make(map[string]*contracts.Security),
		logger: log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add validates and registers securities, replacing entries with the same id
func (r *Registry) Add(secs ...contracts.Security) error {
	for i := range secs {
		if err := secs[i].Validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range secs {
		sec := secs[i]
		if old, ok := r.byID[sec.ID]; ok {
			delete(r.byCode, old.Code)
		}
		r.byID[sec.ID] = &sec
		r.byCode[sec.Code] = &sec
	}
	return nil
}

// All returns every registered security ordered by id
func (r *Registry) All() []contracts.Security {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]contracts.Security, 0, len(r.byID))
	for _, sec := range r.byID {
		out = append(out, *sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve returns the security for id
func (r *Registry) Resolve(ctx context.Context, id int64) (*contracts.Security, error) {
	r.mu.RLock()
	sec, ok := r.byID[id]
	r.mu.RUnlock()
	if ok {
		return sec, nil
	}

	return r.fetch(ctx, redis.SecurityKey(id), func() (*contracts.Security, error) {
		return r.source.LoadSecurity(ctx, id)
	}, fmt.Sprintf("id %d", id))
}

// ResolveCode returns the security for code
func (r *Registry) ResolveCode(ctx context.Context, code string) (*contracts.Security, error) {
	r.mu.RLock()
	sec, ok := r.byCode[code]
	r.mu.RUnlock()
	if ok {
		return sec, nil
	}

	return r.fetch(ctx, redis.SecurityCodeKey(code), func() (*contracts.Security, error) {
		return r.source.LoadSecurityByCode(ctx, code)
	}, fmt.Sprintf("code %q", code))
}

// Fix fills in the id or code a carrier is missing and returns its security
func (r *Registry) Fix(ctx context.Context, c contracts.SecurityCarrier) (*contracts.Security, error) {
	id, code := c.SecurityRef()

	var (
		sec *contracts.Security
		err error
	)
	switch {
	case id > 0:
		sec, err = r.Resolve(ctx, id)
	case code != "":
		sec, err = r.ResolveCode(ctx, code)
	default:
		return nil, fmt.Errorf("%w: entity carries neither id nor code", contracts.ErrSecurityNotFound)
	}
	if err != nil {
		return nil, err
	}

	if code != "" && code != sec.Code {
		return nil, fmt.Errorf("%w: id %d is %s, entity says %s", contracts.ErrSecurityNotFound, sec.ID, sec.Code, code)
	}
	c.SetSecurityRef(sec.ID, sec.Code)
	return sec, nil
}

func (r *Registry) fetch(ctx context.Context, key string, load func() (*contracts.Security, error), what string) (*contracts.Security, error) {
	if r.source == nil {
		return nil, fmt.Errorf("%w: %s", contracts.ErrSecurityNotFound, what)
	}

	if r.cache != nil {
		var cached contracts.Security
		found, err := r.cache.Get(ctx, key, &cached)
		if err != nil {
			r.logger.WithError(err).WithField("key", key).Warn("Security cache read failed")
		}
		if found {
			return r.remember(cached)
		}
	}

	sec, err := load()
	if err != nil {
		if errors.Is(err, contracts.ErrSecurityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load security %s: %w", what, err)
	}
	if sec == nil {
		return nil, fmt.Errorf("%w: %s", contracts.ErrSecurityNotFound, what)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, sec, redis.TTLMedium); err != nil {
			r.logger.WithError(err).WithField("key", key).Warn("Security cache write failed")
		}
	}
	return r.remember(*sec)
}

func (r *Registry) remember(sec contracts.Security) (*contracts.Security, error) {
	if err := r.Add(sec); err != nil {
		return nil, fmt.Errorf("invalid security from source: %w", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[sec.ID], nil
}
