// Package plugin hosts the study-specific extensions: script validators and
// computed field values. Extensions are plain Go functions registered at
// startup; the registry adapts them to the validation and dataset services
// and caches script verdicts in Redis when a cache is wired.
package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"edc/internal/platform/metrics"
	"edc/internal/platform/redis"
	"edc/internal/record"
	"edc/internal/study"
	pkgerrors "edc/pkg/errors"
)

// ScriptFunc is a script validator implementation.
type ScriptFunc func(ctx context.Context, field *record.Field) (bool, error)

// ValueFunc computes the value of a plugin field.
type ValueFunc func(ctx context.Context, family record.DataFamily) (string, error)

// Registry maps validator ids to script functions and field model ids to
// value functions.
type Registry struct {
	mu      sync.RWMutex
	scripts map[string]ScriptFunc
	values  map[string]ValueFunc

	cache    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option customizes a Registry.
type Option func(*Registry)

// WithCache enables best-effort verdict caching.
func WithCache(cache *redis.Client, ttl time.Duration) Option {
	return func(r *Registry) {
		r.cache = cache
		r.cacheTTL = ttl
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithMetrics enables plugin error counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		scripts:  make(map[string]ScriptFunc),
		values:   make(map[string]ValueFunc),
		cacheTTL: time.Hour,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterScript binds a script validator id to its implementation.
func (r *Registry) RegisterScript(validatorID string, fn ScriptFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[validatorID] = fn
}

// RegisterValue binds a field model id to its value computation.
func (r *Registry) RegisterValue(fieldModelID string, fn ValueFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[fieldModelID] = fn
}

// Run executes the script validator for the field. Verdicts are cached per
// field value; cache failures degrade to computing the verdict.
func (r *Registry) Run(ctx context.Context, validator *study.Validator, field *record.Field) (bool, error) {
	r.mu.RLock()
	fn, ok := r.scripts[validator.ID]
	r.mu.RUnlock()
	if !ok {
		return false, pkgerrors.Newf(pkgerrors.CodeConfiguration,
			"no script registered for validator %s", validator.ID)
	}

	key := fmt.Sprintf("edc:script:%s:%s:%s", validator.ID, field.ID, field.Value)
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
			return cached == "1", nil
		}
	}

	valid, err := fn(ctx, field)
	if err != nil {
		if r.metrics != nil {
			r.metrics.PluginErrors.Inc()
		}
		return false, err
	}

	if r.cache != nil {
		verdict := "0"
		if valid {
			verdict = "1"
		}
		if err := r.cache.Set(ctx, key, verdict, r.cacheTTL).Err(); err != nil {
			r.logger.Warn("cannot cache script verdict", slog.String("key", key), slog.Any("error", err))
		}
	}
	return valid, nil
}

// Compute runs the value function of a plugin field. ok is false when no
// function is registered for the field's model.
func (r *Registry) Compute(ctx context.Context, family record.DataFamily) (string, bool, error) {
	r.mu.RLock()
	fn, ok := r.values[family.Field.Model.ID]
	r.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	value, err := fn(ctx, family)
	if err != nil {
		return "", true, err
	}
	return value, true, nil
}
