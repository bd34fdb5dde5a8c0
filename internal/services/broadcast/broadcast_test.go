package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/goviu/internal/config"
	"github.com/amaumene/goviu/internal/fetch"
	"github.com/amaumene/goviu/internal/models"
)

const testMasterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=1280x720
720/index.m3u8
`

type broadcastFixture struct {
	programme  map[string]interface{}
	vod        map[string]interface{}
	vodPayload map[string]interface{}
}

func newBroadcastServer(t *testing.T, fx *broadcastFixture) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/production/programmes/leap-day":
			json.NewEncoder(w).Encode(map[string]interface{}{"programme": fx.programme})
		case "/getVodURL":
			if err := json.NewDecoder(r.Body).Decode(&fx.vodPayload); err != nil {
				t.Errorf("Failed to decode VOD payload: %v", err)
			}
			json.NewEncoder(w).Encode(fx.vod)
		case "/manifest/stream.m3u8":
			w.Write([]byte(testMasterPlaylist))
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestResolver(serverURL string) *Resolver {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	d := fetch.NewDownloader(&config.Config{HTTPTimeoutSeconds: 5}, logger)

	r := NewResolver(d, logger)
	r.apiBase = serverURL
	r.vodURL = serverURL + "/getVodURL"
	r.siteBase = serverURL
	return r
}

func testProgramme() map[string]interface{} {
	return map[string]interface{}{
		"title":       "Leap Day",
		"programmeId": "P0001",
		"synopsis":    "programme synopsis",
		"programmeMeta": map[string]interface{}{
			"seriesTitle": "Leap Day Series",
		},
		"episodes": []interface{}{
			map[string]interface{}{
				"slug":       "leap-daye2",
				"productId":  "202002281024764",
				"episodeNum": 2,
				"ga_title":   "Episode 2",
			},
			map[string]interface{}{
				"slug":             "leap-daye1",
				"productId":        "202002281024763",
				"episodeNum":       1,
				"episodeNameU3":    "Episode One",
				"productSubtitle":  "Chinese,English,Klingon",
				"totalDurationSec": 2700,
				"avatar":           "https://img.example.com/e1.jpg",
				"videoMeta": map[string]interface{}{
					"title":            "時空浪人",
					"program_synopsis": "ep synopsis",
					"tags": []interface{}{
						map[string]interface{}{"name": "drama"},
						map[string]interface{}{"name": "comedy"},
					},
				},
			},
			map[string]interface{}{
				"slug":       "leap-daye0",
				"episodeNum": 0,
				"ga_title":   "no product id",
			},
		},
	}
}

func TestResolveProgrammePlaylist(t *testing.T) {
	fx := &broadcastFixture{programme: testProgramme()}
	server := newBroadcastServer(t, fx)
	defer server.Close()

	r := newTestResolver(server.URL)

	result, err := r.Resolve(context.Background(), "leap-day", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.Playlist == nil {
		t.Fatal("Expected a Playlist result without an episode slug")
	}
	playlist := result.Playlist

	if playlist.ID != "P0001" {
		t.Errorf("Unexpected playlist id: %s", playlist.ID)
	}
	if playlist.Title != "Leap Day Series" {
		t.Errorf("Expected seriesTitle preferred, got %q", playlist.Title)
	}
	if playlist.Description != "programme synopsis" {
		t.Errorf("Unexpected description: %s", playlist.Description)
	}

	// Sorted by episode number, productId-less episode dropped
	if len(playlist.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(playlist.Entries))
	}
	if playlist.Entries[0].ID != "202002281024763" || playlist.Entries[1].ID != "202002281024764" {
		t.Errorf("Entries not sorted by episode number: %+v", playlist.Entries)
	}
	if playlist.Entries[0].Title != "時空浪人" {
		t.Errorf("Expected videoMeta title preferred, got %q", playlist.Entries[0].Title)
	}
	if playlist.Entries[1].Title != "Episode 2" {
		t.Errorf("Expected ga_title fallback, got %q", playlist.Entries[1].Title)
	}
	if playlist.Entries[0].URL != server.URL+"/encore/leap-day/leap-daye1" {
		t.Errorf("Unexpected entry URL: %s", playlist.Entries[0].URL)
	}
}

func TestResolveEpisodeNotFound(t *testing.T) {
	fx := &broadcastFixture{programme: testProgramme()}
	server := newBroadcastServer(t, fx)
	defer server.Close()

	r := newTestResolver(server.URL)

	_, err := r.Resolve(context.Background(), "leap-day", "no-such-episode")
	if err == nil {
		t.Fatal("Expected error for unknown episode slug")
	}
	var notFound *models.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected *models.NotFoundError, got %T: %v", err, err)
	}
}

func TestResolveEpisode(t *testing.T) {
	fx := &broadcastFixture{programme: testProgramme()}
	server := newBroadcastServer(t, fx)
	defer server.Close()
	fx.vod = map[string]interface{}{
		"asset": []string{server.URL + "/manifest/stream.m3u8"},
	}

	r := newTestResolver(server.URL)

	result, err := r.Resolve(context.Background(), "leap-day", "leap-daye1")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.Item == nil {
		t.Fatal("Expected a MediaItem result")
	}
	item := result.Item

	if item.ID != "202002281024763" {
		t.Errorf("Unexpected item id: %s", item.ID)
	}
	if item.Title != "時空浪人" || item.EpisodeTitle != item.Title {
		t.Errorf("Unexpected titles: %q / %q", item.Title, item.EpisodeTitle)
	}
	if item.Description != "ep synopsis" {
		t.Errorf("Unexpected description: %s", item.Description)
	}
	if item.Series != "Leap Day Series" {
		t.Errorf("Unexpected series: %s", item.Series)
	}
	if item.EpisodeNumber == nil || *item.EpisodeNumber != 1 {
		t.Errorf("Expected episode number 1, got %v", item.EpisodeNumber)
	}
	if item.Duration == nil || *item.Duration != 2700 {
		t.Errorf("Expected duration 2700, got %v", item.Duration)
	}
	if len(item.Formats) != 1 {
		t.Fatalf("Expected 1 HLS format, got %d", len(item.Formats))
	}
	if item.Formats[0].Container != models.ContainerMP4 {
		t.Errorf("Expected mp4 container, got %s", item.Formats[0].Container)
	}
	if len(item.Tags) != 2 || item.Tags[0] != "drama" {
		t.Errorf("Unexpected tags: %v", item.Tags)
	}

	// Known languages mapped through the fixed table, unknown skipped
	if len(item.Subtitles) != 2 {
		t.Fatalf("Expected 2 subtitle languages, got %v", item.Subtitles)
	}
	english := item.Subtitles["English"]
	if len(english) != 1 || english[0].URL != "https://static.viu.tv/subtitle/202002281024763/202002281024763-GBR.srt" {
		t.Errorf("Unexpected English subtitle: %+v", english)
	}
	chinese := item.Subtitles["Chinese"]
	if len(chinese) != 1 || chinese[0].URL != "https://static.viu.tv/subtitle/202002281024763/202002281024763-TRD.srt" {
		t.Errorf("Unexpected Chinese subtitle: %+v", chinese)
	}

	// Synthetic device payload invariants
	deviceID, _ := fx.vodPayload["deviceId"].(string)
	cookie, _ := fx.vodPayload["cookie"].(string)
	if !regexp.MustCompile(`^[0-9a-f]{18}$`).MatchString(deviceID) {
		t.Errorf("Expected 18-hex-digit device id, got %q", deviceID)
	}
	if deviceID != cookie {
		t.Error("Cookie and device id must match")
	}
	reference, _ := fx.vodPayload["callerReferenceNo"].(string)
	if !regexp.MustCompile(`^\d{14}$`).MatchString(reference) {
		t.Errorf("Expected YYYYMMDDhhmmss reference, got %q", reference)
	}
	if fx.vodPayload["format"] != "HLS" || fx.vodPayload["contentType"] != "Vod" {
		t.Errorf("Unexpected VOD payload: %+v", fx.vodPayload)
	}
}

func TestResolveEpisodeNoManifest(t *testing.T) {
	fx := &broadcastFixture{
		programme: testProgramme(),
		vod:       map[string]interface{}{"asset": []string{}},
	}
	server := newBroadcastServer(t, fx)
	defer server.Close()

	r := newTestResolver(server.URL)

	_, err := r.Resolve(context.Background(), "leap-day", "leap-daye1")
	if err == nil {
		t.Fatal("Expected error when no manifest is returned")
	}
	var unavailable *models.StreamUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Expected *models.StreamUnavailableError, got %T: %v", err, err)
	}
}

func TestResolveEpisodeDRMPolicy(t *testing.T) {
	// Manifest present but unfetchable: extraction is non-fatal and
	// yields no formats.
	fx := &broadcastFixture{
		programme: testProgramme(),
		vod: map[string]interface{}{
			"asset":    []string{"https://cdn.example.invalid/missing.m3u8"},
			"drmToken": "drm-token",
		},
	}
	server := newBroadcastServer(t, fx)
	defer server.Close()

	r := newTestResolver(server.URL)

	_, err := r.Resolve(context.Background(), "leap-day", "leap-daye1")
	if err == nil {
		t.Fatal("Expected DRM error")
	}
	var drm *models.DRMError
	if !errors.As(err, &drm) {
		t.Fatalf("Expected *models.DRMError, got %T: %v", err, err)
	}
}

func TestResolveEpisodeEmptyFormatsWithoutDRMPasses(t *testing.T) {
	fx := &broadcastFixture{
		programme: testProgramme(),
		vod: map[string]interface{}{
			"asset": []string{"https://cdn.example.invalid/missing.m3u8"},
		},
	}
	server := newBroadcastServer(t, fx)
	defer server.Close()

	r := newTestResolver(server.URL)

	result, err := r.Resolve(context.Background(), "leap-day", "leap-daye1")
	if err != nil {
		t.Fatalf("Expected item with empty formats, got error: %v", err)
	}
	if result.Item == nil {
		t.Fatal("Expected a MediaItem result")
	}
	if len(result.Item.Formats) != 0 {
		t.Errorf("Expected empty formats, got %d", len(result.Item.Formats))
	}
}
