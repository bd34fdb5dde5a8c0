// Package extractor routes input URLs to the resolver claiming their
// pattern and exposes the shared resolver contract.
package extractor

import (
	"context"
	"errors"
	"fmt"

	"github.com/amaumene/goviu/internal/models"
)

// ErrNoResolver is returned when no registered resolver claims a URL.
var ErrNoResolver = errors.New("no resolver matches URL")

// Resolver is the uniform contract every site adapter implements.
type Resolver interface {
	// Name returns the resolver's short identifier.
	Name() string

	// Match reports whether this resolver claims the URL.
	Match(rawURL string) bool

	// Resolve turns the URL into a MediaItem or Playlist result.
	Resolve(ctx context.Context, rawURL string) (*models.Result, error)
}

// ReferenceResolver is implemented by resolvers whose playlist entries
// carry resolution state beyond the URL, such as the suppress flag a
// series expansion places on its sibling references.
type ReferenceResolver interface {
	ResolveReference(ctx context.Context, ref models.ItemReference) (*models.Result, error)
}

// Registry dispatches URLs to the first matching resolver.
type Registry struct {
	resolvers []Resolver
}

// NewRegistry creates a registry over the given resolvers, matched in
// order.
func NewRegistry(resolvers ...Resolver) *Registry {
	return &Registry{resolvers: resolvers}
}

// Lookup returns the resolver claiming the URL.
func (r *Registry) Lookup(rawURL string) (Resolver, bool) {
	for _, resolver := range r.resolvers {
		if resolver.Match(rawURL) {
			return resolver, true
		}
	}
	return nil, false
}

// Resolve dispatches the URL to its resolver.
func (r *Registry) Resolve(ctx context.Context, rawURL string) (*models.Result, error) {
	resolver, ok := r.Lookup(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoResolver, rawURL)
	}
	return resolver.Resolve(ctx, rawURL)
}

// ResolveReference dispatches a playlist entry to its resolver. The
// entry's flags are honored when the resolver understands them; plain
// resolvers fall back to URL dispatch.
func (r *Registry) ResolveReference(ctx context.Context, ref models.ItemReference) (*models.Result, error) {
	resolver, ok := r.Lookup(ref.URL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoResolver, ref.URL)
	}
	if refResolver, ok := resolver.(ReferenceResolver); ok {
		return refResolver.ResolveReference(ctx, ref)
	}
	return resolver.Resolve(ctx, ref.URL)
}
