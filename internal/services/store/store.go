// Package store resolves items and series of the regional OTT store
// API, which keys its catalog by country and language and serves
// stream info from a separate CDN endpoint.
package store

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/mo"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/goviu/internal/config"
	"github.com/amaumene/goviu/internal/fetch"
	"github.com/amaumene/goviu/internal/models"
	"github.com/amaumene/goviu/internal/utils"
)

// ExpandMode is the recursion guard for series expansion. References
// produced by an expansion carry SuppressExpand so resolving a sibling
// never expands the same series again.
type ExpandMode int

const (
	ExpandSeries ExpandMode = iota
	SuppressExpand
)

// areaIDs maps country codes to the store's numeric area ids. Unknown
// countries simply omit the parameter.
var areaIDs = map[string]int{
	"HK": 1,
	"SG": 2,
	"TH": 4,
	"PH": 5,
}

// Resolver resolves regional store product ids.
type Resolver struct {
	siteBase   string
	streamBase string
	dl         *fetch.Downloader
	cfg        *config.Config
	logger     *logrus.Logger
}

// NewResolver creates a new regional store resolver
func NewResolver(dl *fetch.Downloader, cfg *config.Config, logger *logrus.Logger) *Resolver {
	return &Resolver{
		siteBase:   "http://www.viu.com",
		streamBase: "https://d1k2us671qcoau.cloudfront.net",
		dl:         dl,
		cfg:        cfg,
		logger:     logger,
	}
}

type detailPayload struct {
	Data struct {
		CurrentProduct map[string]interface{} `json:"current_product"`
		Series         struct {
			Name        string                   `json:"name"`
			Description string                   `json:"description"`
			Product     []map[string]interface{} `json:"product"`
		} `json:"series"`
	} `json:"data"`
}

type streamPayload struct {
	Data struct {
		Stream struct {
			URL      map[string]string      `json:"url"`
			Size     map[string]interface{} `json:"size"`
			Duration interface{}            `json:"duration"`
		} `json:"stream"`
	} `json:"data"`
}

// areaID looks up the numeric area id for a country code.
func areaID(countryCode string) mo.Option[int] {
	if id, ok := areaIDs[strings.ToUpper(countryCode)]; ok {
		return mo.Some(id)
	}
	return mo.None[int]()
}

// Resolve resolves a product id for one country/language. With
// ExpandSeries and playlist expansion enabled, a product belonging to
// a series resolves to a Playlist of all its siblings; otherwise it
// resolves to the single MediaItem.
func (r *Resolver) Resolve(ctx context.Context, countryCode, langCode, productID string, mode ExpandMode) (*models.Result, error) {
	query := url.Values{
		"r":                   {"vod/ajax-detail"},
		"platform_flag_label": {"web"},
		"product_id":          {productID},
	}
	if id, ok := areaID(countryCode).Get(); ok {
		query.Set("area_id", strconv.Itoa(id))
	}

	var detail detailPayload
	err := r.dl.FetchJSON(ctx, fetch.Request{
		URL:   fmt.Sprintf("%s/ott/%s/index.php", r.siteBase, countryCode),
		ID:    productID,
		Note:  "Downloading video info",
		Query: query,
	}, &detail)
	if err != nil {
		return nil, err
	}

	video := detail.Data.CurrentProduct
	if video == nil {
		return nil, &models.UnavailableError{ID: productID}
	}

	if !r.cfg.NoPlaylist && mode == ExpandSeries {
		if playlist := r.seriesPlaylist(&detail, countryCode, langCode); playlist != nil {
			return models.PlaylistResult(playlist), nil
		}
	}
	if r.cfg.NoPlaylist {
		r.logger.WithFields(logrus.Fields{
			"id":     productID,
			"series": utils.Stringify(video["series_id"]),
		}).Info("Resolving only the requested video because playlist expansion is disabled")
	}

	return r.resolveSingle(ctx, &detail, countryCode, langCode, productID)
}

// seriesPlaylist builds a playlist over all series siblings, or nil
// when the product has none.
func (r *Resolver) seriesPlaylist(detail *detailPayload, countryCode, langCode string) *models.Playlist {
	siblings := detail.Data.Series.Product
	if len(siblings) == 0 {
		return nil
	}

	sorted := make([]map[string]interface{}, len(siblings))
	copy(sorted, siblings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return utils.IntOrZero(sorted[i]["number"]) < utils.IntOrZero(sorted[j]["number"])
	})

	var entries []models.ItemReference
	for _, entry := range sorted {
		itemID := utils.Stringify(entry["product_id"])
		if itemID == "" {
			continue
		}
		entries = append(entries, models.ItemReference{
			URL:   fmt.Sprintf("%s/ott/%s/%s/vod/%s/", r.siteBase, countryCode, langCode, itemID),
			ID:    itemID,
			Title: strings.TrimSpace(utils.Stringify(entry["synopsis"])),
			// Prevents infinite recursion when the sibling is
			// resolved on its own.
			NoExpand: true,
		})
	}

	return &models.Playlist{
		ID:          utils.Stringify(detail.Data.CurrentProduct["series_id"]),
		Title:       detail.Data.Series.Name,
		Description: detail.Data.Series.Description,
		Entries:     entries,
	}
}

// resolveSingle fetches stream info for one product and builds the
// MediaItem.
func (r *Resolver) resolveSingle(ctx context.Context, detail *detailPayload, countryCode, langCode, productID string) (*models.Result, error) {
	video := detail.Data.CurrentProduct

	ccsProductID := utils.Stringify(video["ccs_product_id"])
	if ccsProductID == "" {
		return nil, fmt.Errorf("product %s has no ccs_product_id", productID)
	}

	pageURL := fmt.Sprintf("%s/ott/%s/%s/vod/%s/", r.siteBase, countryCode, langCode, productID)
	headers := http.Header{}
	headers.Set("Referer", pageURL)
	headers.Set("Origin", r.siteBase)

	var stream streamPayload
	err := r.dl.FetchJSON(ctx, fetch.Request{
		URL:     fmt.Sprintf("%s/distribute_web_%s.php", r.streamBase, countryCode),
		ID:      productID,
		Note:    "Downloading stream info",
		Query:   url.Values{"ccs_product_id": {ccsProductID}},
		Headers: headers,
	}, &stream)
	if err != nil {
		return nil, err
	}

	formats := streamFormats(&stream)

	subtitles := make(map[string][]models.SubtitleTrack)
	if subs, ok := video["subtitle"].([]interface{}); ok {
		for _, raw := range subs {
			sub, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			subURL := utils.Stringify(sub["url"])
			if subURL == "" {
				continue
			}
			name := utils.Stringify(sub["name"])
			subtitles[name] = append(subtitles[name], models.SubtitleTrack{
				URL: subURL,
				Ext: models.SubtitleExtSRT,
			})
		}
	}
	if len(subtitles) == 0 {
		subtitles = nil
	}

	title := strings.TrimSpace(utils.Stringify(video["synopsis"]))
	if title == "" {
		return nil, fmt.Errorf("product %s has no synopsis", productID)
	}

	return models.ItemResult(&models.MediaItem{
		ID:            productID,
		Title:         title,
		Description:   utils.Stringify(video["description"]),
		Series:        detail.Data.Series.Name,
		EpisodeTitle:  title,
		EpisodeNumber: utils.IntOrNone(video["number"]),
		Duration:      utils.IntOrNone(stream.Data.Stream.Duration),
		Thumbnail:     utils.Stringify(video["cover_image_url"]),
		Formats:       formats,
		Subtitles:     subtitles,
	}), nil
}

// streamFormats converts the quality-labelled URL map into formats,
// ordered by ascending height for determinism.
func streamFormats(stream *streamPayload) []models.StreamFormat {
	labels := make([]string, 0, len(stream.Data.Stream.URL))
	for label := range stream.Data.Stream.URL {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		hi, hj := utils.HeightFromLabel(labels[i]), utils.HeightFromLabel(labels[j])
		switch {
		case hi == nil && hj == nil:
			return labels[i] < labels[j]
		case hi == nil:
			return true
		case hj == nil:
			return false
		case *hi != *hj:
			return *hi < *hj
		default:
			return labels[i] < labels[j]
		}
	})

	var formats []models.StreamFormat
	for _, label := range labels {
		streamURL := stream.Data.Stream.URL[label]
		if streamURL == "" {
			continue
		}
		format := models.StreamFormat{
			FormatID:  label,
			URL:       streamURL,
			Height:    utils.HeightFromLabel(label),
			Container: models.ContainerMP4,
		}
		if size, ok := stream.Data.Stream.Size[label]; ok {
			if parsed := utils.IntOrNone(size); parsed != nil {
				format.Filesize = int64(*parsed)
			}
		}
		formats = append(formats, format)
	}
	return formats
}
