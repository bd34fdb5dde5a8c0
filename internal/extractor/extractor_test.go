package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/amaumene/goviu/internal/models"
	"github.com/amaumene/goviu/internal/services/store"
)

func testRegistry() *Registry {
	return NewRegistry(
		&CatalogPlaylist{},
		&CatalogItem{},
		&Store{},
		&Broadcast{},
	)
}

func TestRegistryLookup(t *testing.T) {
	cases := []struct {
		url      string
		resolver string
	}{
		{"https://www.viu.com/en/media/1116705532?containerId=playlist-22168059", "viu"},
		{"https://india.viu.com/en/media/1126286865", "viu"},
		{"viu:1116705532", "viu"},
		{"https://www.viu.com/en/listing/playlist-22461380", "viu:playlist"},
		{"http://www.viu.com/ott/sg/en-us/vod/3421/The%20Prime%20Minister%20and%20I", "viu:ott"},
		{"https://www.viu.com/ott/hk/zh-hk/vod/7123/", "viu:ott"},
		{"https://viu.tv/encore/leap-day/leap-daye2si-hung-long-yan", "viu:tv"},
		{"https://viu.tv/encore/leap-day", "viu:tv"},
	}

	registry := testRegistry()
	for _, tc := range cases {
		resolver, ok := registry.Lookup(tc.url)
		if !ok {
			t.Errorf("No resolver matched %s", tc.url)
			continue
		}
		if resolver.Name() != tc.resolver {
			t.Errorf("URL %s: expected resolver %s, got %s", tc.url, tc.resolver, resolver.Name())
		}
	}
}

func TestRegistryNoMatch(t *testing.T) {
	registry := testRegistry()

	if _, ok := registry.Lookup("https://example.com/watch?v=123"); ok {
		t.Error("Unrelated URL must not match")
	}

	_, err := registry.Resolve(context.Background(), "https://example.com/watch?v=123")
	if !errors.Is(err, ErrNoResolver) {
		t.Errorf("Expected ErrNoResolver, got %v", err)
	}
}

// recordingResolver captures how the registry dispatched to it.
type recordingResolver struct {
	byReference bool
	gotRef      models.ItemReference
	gotURL      string
}

func (r *recordingResolver) Name() string { return "recording" }

func (r *recordingResolver) Match(rawURL string) bool {
	return strings.HasPrefix(rawURL, "https://series.example.com/")
}

func (r *recordingResolver) Resolve(ctx context.Context, rawURL string) (*models.Result, error) {
	r.gotURL = rawURL
	return models.ItemResult(&models.MediaItem{ID: "1"}), nil
}

type recordingReferenceResolver struct {
	recordingResolver
}

func (r *recordingReferenceResolver) ResolveReference(ctx context.Context, ref models.ItemReference) (*models.Result, error) {
	r.byReference = true
	r.gotRef = ref
	return models.ItemResult(&models.MediaItem{ID: ref.ID}), nil
}

func TestRegistryResolveReferenceCarriesSuppressFlag(t *testing.T) {
	resolver := &recordingReferenceResolver{}
	registry := NewRegistry(resolver)

	ref := models.ItemReference{
		URL:      "https://series.example.com/vod/3421/",
		ID:       "3421",
		NoExpand: true,
	}
	result, err := registry.ResolveReference(context.Background(), ref)
	if err != nil {
		t.Fatalf("ResolveReference failed: %v", err)
	}
	if !resolver.byReference {
		t.Fatal("Expected dispatch through ResolveReference")
	}
	if !resolver.gotRef.NoExpand {
		t.Error("Suppress flag must reach the resolver")
	}
	if result.Item == nil || result.Item.ID != "3421" {
		t.Errorf("Unexpected result: %+v", result)
	}
}

func TestRegistryResolveReferenceFallsBackToURL(t *testing.T) {
	resolver := &recordingResolver{}
	registry := NewRegistry(resolver)

	ref := models.ItemReference{URL: "https://series.example.com/vod/1/", ID: "1"}
	if _, err := registry.ResolveReference(context.Background(), ref); err != nil {
		t.Fatalf("ResolveReference failed: %v", err)
	}
	if resolver.gotURL != ref.URL {
		t.Errorf("Expected URL dispatch, got %q", resolver.gotURL)
	}
}

func TestRegistryResolveReferenceNoMatch(t *testing.T) {
	registry := testRegistry()

	ref := models.ItemReference{URL: "https://example.com/watch?v=123"}
	if _, err := registry.ResolveReference(context.Background(), ref); !errors.Is(err, ErrNoResolver) {
		t.Errorf("Expected ErrNoResolver, got %v", err)
	}
}

func TestStoreExpandModeFromReference(t *testing.T) {
	// Expansion entries carry the suppress flag; resolving them through
	// the registry must not expand the series again.
	suppressed := models.ItemReference{
		URL:      "http://www.viu.com/ott/sg/en-us/vod/3422/",
		ID:       "3422",
		NoExpand: true,
	}
	if expandModeFor(suppressed) != store.SuppressExpand {
		t.Error("Flagged reference must resolve with expansion suppressed")
	}
	if expandModeFor(models.ItemReference{URL: suppressed.URL, ID: suppressed.ID}) != store.ExpandSeries {
		t.Error("Unflagged reference must keep expansion enabled")
	}
	if !(&Store{}).Match(suppressed.URL) {
		t.Error("Expansion entry URLs must be claimed by the store resolver")
	}
}
