package extractor

import (
	"context"
	"fmt"
	"regexp"

	"github.com/amaumene/goviu/internal/models"
	"github.com/amaumene/goviu/internal/services/broadcast"
	"github.com/amaumene/goviu/internal/services/catalog"
	"github.com/amaumene/goviu/internal/services/store"
)

var (
	catalogItemRegex     = regexp.MustCompile(`^(?:viu:|https?://[^/]+\.viu\.com/[a-z]{2}/media/)(\d+)`)
	catalogPlaylistRegex = regexp.MustCompile(`^https?://www\.viu\.com/[^/]+/listing/playlist-(\d+)`)
	storeRegex           = regexp.MustCompile(`^https?://(?:www\.)?viu\.com/ott/([a-z]{2})/([a-z]{2}-[a-z]{2})/vod/(\d+)`)
	broadcastRegex       = regexp.MustCompile(`^https?://(?:www\.)?viu\.tv/encore/([^/]+)(?:/([^/?]+))?`)
)

// CatalogItem adapts the catalog item resolver to the registry.
type CatalogItem struct {
	Client *catalog.Client
}

func (e *CatalogItem) Name() string { return "viu" }

func (e *CatalogItem) Match(rawURL string) bool {
	return catalogItemRegex.MatchString(rawURL)
}

func (e *CatalogItem) Resolve(ctx context.Context, rawURL string) (*models.Result, error) {
	matches := catalogItemRegex.FindStringSubmatch(rawURL)
	if matches == nil {
		return nil, fmt.Errorf("unsupported catalog URL: %s", rawURL)
	}
	item, err := e.Client.ResolveItem(ctx, matches[1])
	if err != nil {
		return nil, err
	}
	return models.ItemResult(item), nil
}

// CatalogPlaylist adapts the catalog playlist resolver to the registry.
type CatalogPlaylist struct {
	Client *catalog.Client
}

func (e *CatalogPlaylist) Name() string { return "viu:playlist" }

func (e *CatalogPlaylist) Match(rawURL string) bool {
	return catalogPlaylistRegex.MatchString(rawURL)
}

func (e *CatalogPlaylist) Resolve(ctx context.Context, rawURL string) (*models.Result, error) {
	matches := catalogPlaylistRegex.FindStringSubmatch(rawURL)
	if matches == nil {
		return nil, fmt.Errorf("unsupported playlist URL: %s", rawURL)
	}
	playlist, err := e.Client.ResolvePlaylist(ctx, matches[1])
	if err != nil {
		return nil, err
	}
	return models.PlaylistResult(playlist), nil
}

// Store adapts the regional store resolver to the registry. Top-level
// URLs always start with expansion enabled; suppression is carried on
// the item references a series expansion produces, not in the URL.
type Store struct {
	Resolver *store.Resolver
}

func (e *Store) Name() string { return "viu:ott" }

func (e *Store) Match(rawURL string) bool {
	return storeRegex.MatchString(rawURL)
}

func (e *Store) Resolve(ctx context.Context, rawURL string) (*models.Result, error) {
	return e.resolve(ctx, rawURL, store.ExpandSeries)
}

// ResolveReference honors the suppress flag a series expansion places
// on its entries, so resolving a sibling never re-expands the series.
func (e *Store) ResolveReference(ctx context.Context, ref models.ItemReference) (*models.Result, error) {
	return e.resolve(ctx, ref.URL, expandModeFor(ref))
}

func (e *Store) resolve(ctx context.Context, rawURL string, mode store.ExpandMode) (*models.Result, error) {
	matches := storeRegex.FindStringSubmatch(rawURL)
	if matches == nil {
		return nil, fmt.Errorf("unsupported store URL: %s", rawURL)
	}
	return e.Resolver.Resolve(ctx, matches[1], matches[2], matches[3], mode)
}

// expandModeFor maps a playlist entry's suppress flag to the store's
// expansion mode.
func expandModeFor(ref models.ItemReference) store.ExpandMode {
	if ref.NoExpand {
		return store.SuppressExpand
	}
	return store.ExpandSeries
}

// Broadcast adapts the broadcaster resolver to the registry.
type Broadcast struct {
	Resolver *broadcast.Resolver
}

func (e *Broadcast) Name() string { return "viu:tv" }

func (e *Broadcast) Match(rawURL string) bool {
	return broadcastRegex.MatchString(rawURL)
}

func (e *Broadcast) Resolve(ctx context.Context, rawURL string) (*models.Result, error) {
	matches := broadcastRegex.FindStringSubmatch(rawURL)
	if matches == nil {
		return nil, fmt.Errorf("unsupported broadcaster URL: %s", rawURL)
	}
	return e.Resolver.Resolve(ctx, matches[1], matches[2])
}
