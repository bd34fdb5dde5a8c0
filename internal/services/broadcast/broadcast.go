// Package broadcast resolves programmes and episodes of the
// broadcaster API, including VOD licensing with DRM detection.
package broadcast

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/goviu/internal/fetch"
	"github.com/amaumene/goviu/internal/manifest"
	"github.com/amaumene/goviu/internal/models"
	"github.com/amaumene/goviu/internal/utils"
)

// subtitleLangCodes maps the episode record's language names to the
// static subtitle host's file codes. Unrecognized names are skipped.
var subtitleLangCodes = map[string]string{
	"chinese":  "TRD",
	"english":  "GBR",
	"german":   "DEU",
	"spanish":  "ESP",
	"french":   "FRA",
	"italian":  "ITA",
	"japanese": "JAP",
}

// Resolver resolves broadcaster programme and episode slugs.
type Resolver struct {
	apiBase      string
	vodURL       string
	subtitleBase string
	siteBase     string
	dl           *fetch.Downloader
	logger       *logrus.Logger
}

// NewResolver creates a new broadcaster resolver
func NewResolver(dl *fetch.Downloader, logger *logrus.Logger) *Resolver {
	return &Resolver{
		apiBase:      "https://api.viu.tv",
		vodURL:       "https://api.viu.now.com/p8/3/getVodURL",
		subtitleBase: "https://static.viu.tv",
		siteBase:     "https://viu.tv",
		dl:           dl,
		logger:       logger,
	}
}

type programmePayload struct {
	Programme struct {
		Title         string        `json:"title"`
		ProgrammeID   interface{}   `json:"programmeId"`
		Synopsis      string        `json:"synopsis"`
		ProgrammeMeta struct {
			SeriesTitle string `json:"seriesTitle"`
		} `json:"programmeMeta"`
		Episodes []episodeRecord `json:"episodes"`
	} `json:"programme"`
}

type episodeRecord struct {
	Slug             string          `json:"slug"`
	ProductID        interface{}     `json:"productId"`
	EpisodeNum       interface{}     `json:"episodeNum"`
	EpisodeNameU3    string          `json:"episodeNameU3"`
	GATitle          string          `json:"ga_title"`
	ProductSubtitle  string          `json:"productSubtitle"`
	TotalDurationSec interface{}     `json:"totalDurationSec"`
	Avatar           string          `json:"avatar"`
	VideoMeta        json.RawMessage `json:"videoMeta"`
}

// videoMeta is the subset of the loosely-typed videoMeta object the
// resolver consumes. Tags stay raw for best-effort coercion.
type videoMeta struct {
	Title           string          `json:"title"`
	ProgramSynopsis string          `json:"program_synopsis"`
	Tags            json.RawMessage `json:"tags"`
}

type vodPayload struct {
	Asset    []string `json:"asset"`
	DRMToken string   `json:"drmToken"`
}

// Resolve resolves a programme slug, optionally narrowed to one
// episode slug. Without an episode slug the whole programme is
// returned as a playlist; an episode slug always takes the single-item
// branch, which is what bounds the recursion.
func (r *Resolver) Resolve(ctx context.Context, programSlug, episodeSlug string) (*models.Result, error) {
	var payload programmePayload
	err := r.dl.FetchJSON(ctx, fetch.Request{
		URL:  fmt.Sprintf("%s/production/programmes/%s", r.apiBase, url.PathEscape(programSlug)),
		ID:   programSlug,
		Note: "Downloading program info",
	}, &payload)
	if err != nil {
		return nil, err
	}

	programme := payload.Programme
	programTitle := programme.ProgrammeMeta.SeriesTitle
	if programTitle == "" {
		programTitle = programme.Title
	}

	if episodeSlug == "" {
		return models.PlaylistResult(r.programmePlaylist(&payload, programSlug, programTitle)), nil
	}

	var episode *episodeRecord
	for i := range programme.Episodes {
		if programme.Episodes[i].Slug == episodeSlug {
			episode = &programme.Episodes[i]
			break
		}
	}
	if episode == nil || utils.Stringify(episode.ProductID) == "" {
		return nil, &models.NotFoundError{ID: programSlug}
	}

	return r.resolveEpisode(ctx, episode, programTitle)
}

// programmePlaylist builds the playlist of all programme episodes,
// sorted by episode number.
func (r *Resolver) programmePlaylist(payload *programmePayload, programSlug, programTitle string) *models.Playlist {
	episodes := make([]episodeRecord, len(payload.Programme.Episodes))
	copy(episodes, payload.Programme.Episodes)
	sort.SliceStable(episodes, func(i, j int) bool {
		return utils.IntOrZero(episodes[i].EpisodeNum) < utils.IntOrZero(episodes[j].EpisodeNum)
	})

	var entries []models.ItemReference
	for _, episode := range episodes {
		itemID := utils.Stringify(episode.ProductID)
		if itemID == "" {
			continue
		}
		entries = append(entries, models.ItemReference{
			URL:   fmt.Sprintf("%s/encore/%s/%s", r.siteBase, programSlug, episode.Slug),
			ID:    itemID,
			Title: episodeTitle(&episode),
		})
	}

	return &models.Playlist{
		ID:          utils.Stringify(payload.Programme.ProgrammeID),
		Title:       programTitle,
		Description: payload.Programme.Synopsis,
		Entries:     entries,
	}
}

// resolveEpisode requests a VOD URL for the episode and builds the
// MediaItem, enforcing the DRM policy.
func (r *Resolver) resolveEpisode(ctx context.Context, episode *episodeRecord, programTitle string) (*models.Result, error) {
	productID := utils.Stringify(episode.ProductID)

	deviceID, err := randomDeviceID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate device id: %w", err)
	}

	payload := map[string]interface{}{
		"PIN":               "password",
		"callerReferenceNo": time.Now().Format("20060102150405"),
		"contentId":         productID,
		"contentType":       "Vod",
		"cookie":            deviceID,
		"deviceId":          deviceID,
		"deviceType":        "ANDROID_PHONE",
		"format":            "HLS",
		"mode":              "prod",
		"productId":         productID,
	}

	var vod vodPayload
	err = r.dl.FetchJSON(ctx, fetch.Request{
		URL:  r.vodURL,
		ID:   productID,
		Note: "Downloading stream info",
		Body: payload,
	}, &vod)
	if err != nil {
		return nil, err
	}

	if len(vod.Asset) == 0 || vod.Asset[0] == "" {
		return nil, &models.StreamUnavailableError{ID: productID}
	}
	manifestURL := vod.Asset[0]

	var formats []models.StreamFormat
	switch manifestExt(manifestURL) {
	case "m3u8":
		formats, err = manifest.ExtractHLSFormats(ctx, r.dl, manifestURL, productID, models.ContainerMP4, false, r.logger)
	case "mpd":
		formats, err = manifest.ExtractDASHFormats(ctx, r.dl, manifestURL, productID, false, r.logger)
	default:
		r.logger.WithFields(logrus.Fields{
			"id":  productID,
			"url": manifestURL,
		}).Warn("Unknown manifest type")
	}
	if err != nil {
		return nil, err
	}

	if len(formats) == 0 && vod.DRMToken != "" {
		return nil, &models.DRMError{ID: productID}
	}

	var meta videoMeta
	if len(episode.VideoMeta) > 0 {
		// Loosely typed upstream; shape mismatches degrade to
		// empty metadata instead of failing the resolution.
		if err := json.Unmarshal(episode.VideoMeta, &meta); err != nil {
			r.logger.WithField("id", productID).WithError(err).Debug("Ignoring malformed videoMeta")
		}
	}

	title := episodeTitle(episode)

	return models.ItemResult(&models.MediaItem{
		ID:            productID,
		Title:         title,
		Description:   meta.ProgramSynopsis,
		Series:        programTitle,
		EpisodeTitle:  title,
		EpisodeNumber: utils.IntOrNone(episode.EpisodeNum),
		Duration:      utils.IntOrNone(episode.TotalDurationSec),
		Thumbnail:     episode.Avatar,
		Formats:       formats,
		Subtitles:     r.subtitles(episode, productID),
		Tags:          utils.StringsFromTags(meta.Tags),
	}), nil
}

// subtitles maps the episode's comma-separated language list onto the
// static subtitle host's URL template.
func (r *Resolver) subtitles(episode *episodeRecord, productID string) map[string][]models.SubtitleTrack {
	subtitles := make(map[string][]models.SubtitleTrack)
	for _, lang := range strings.Split(episode.ProductSubtitle, ",") {
		lang = strings.TrimSpace(lang)
		code, ok := subtitleLangCodes[strings.ToLower(lang)]
		if !ok {
			continue
		}
		subtitles[lang] = append(subtitles[lang], models.SubtitleTrack{
			URL: fmt.Sprintf("%s/subtitle/%s/%s-%s.srt", r.subtitleBase, productID, productID, code),
			Ext: models.SubtitleExtSRT,
		})
	}
	if len(subtitles) == 0 {
		return nil
	}
	return subtitles
}

// episodeTitle picks the first non-empty of the episode's title fields.
func episodeTitle(episode *episodeRecord) string {
	var meta videoMeta
	if len(episode.VideoMeta) > 0 {
		_ = json.Unmarshal(episode.VideoMeta, &meta)
	}
	if meta.Title != "" {
		return meta.Title
	}
	if episode.EpisodeNameU3 != "" {
		return episode.EpisodeNameU3
	}
	return episode.GATitle
}

// randomDeviceID generates the 18-hex-digit device/cookie id the
// licensing endpoint expects.
func randomDeviceID() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// manifestExt returns the lowercase extension of the manifest URL path.
func manifestExt(manifestURL string) string {
	parsed, err := url.Parse(manifestURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(parsed.Path), "."))
}
