package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/amaumene/goviu/internal/manifest"
	"github.com/amaumene/goviu/internal/models"
	"github.com/amaumene/goviu/internal/utils"
)

// subtitleKeyRegex matches the dynamically-named subtitle fields of a
// clip/load response, e.g. "subtitle_en_srt".
var subtitleKeyRegex = regexp.MustCompile(`^subtitle_([^_]+)_(vtt|srt)`)

// clipPayload is the clip/load envelope payload. Items are kept raw so
// their keys can be walked in document order.
type clipPayload struct {
	Item []json.RawMessage `json:"item"`
}

// ResolveItem resolves a single catalog item id into a MediaItem.
func (c *Client) ResolveItem(ctx context.Context, videoID string) (*models.MediaItem, error) {
	query := url.Values{
		"appid": {appID},
		"fmt":   {"json"},
		"id":    {videoID},
	}

	var payload clipPayload
	if err := c.CallAPI(ctx, "clip/load", videoID, "Downloading video data", query, nil, &payload); err != nil {
		return nil, err
	}
	if len(payload.Item) == 0 {
		return nil, fmt.Errorf("clip/load returned no item for %s", videoID)
	}

	var video map[string]interface{}
	if err := json.Unmarshal(payload.Item[0], &video); err != nil {
		return nil, fmt.Errorf("failed to decode item %s: %w", videoID, err)
	}

	title := utils.Stringify(video["title"])
	if title == "" {
		return nil, fmt.Errorf("item %s has no title", videoID)
	}

	manifestURL, err := deriveManifestURL(video)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", videoID, err)
	}

	formats, err := manifest.ExtractHLSFormats(ctx, c.dl, manifestURL, videoID, models.ContainerMP4, true, c.logger)
	if err != nil {
		return nil, err
	}

	subtitles, err := subtitleTracks(payload.Item[0])
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", videoID, err)
	}

	return &models.MediaItem{
		ID:            videoID,
		Title:         title,
		Description:   utils.Stringify(video["description"]),
		Series:        utils.Stringify(video["moviealbumshowname"]),
		EpisodeTitle:  title, // the API has no distinct episode-title field
		EpisodeNumber: utils.IntOrNone(video["episodeno"]),
		Duration:      utils.IntOrNone(video["duration"]),
		Formats:       formats,
		Subtitles:     subtitles,
	}, nil
}

// deriveManifestURL picks the stream manifest URL. The structured
// fields are preferred; the raw href is the upstream's safety net when
// any of them is missing.
func deriveManifestURL(video map[string]interface{}) (string, error) {
	urlPath := utils.Stringify(video["urlpathd"])
	if urlPath == "" {
		urlPath = utils.Stringify(video["urlpath"])
	}
	tdirForWhole := utils.Stringify(video["tdirforwhole"])
	// jwhlsfile instead of hlsfile: the plain variant uses
	// EXT-X-BYTERANGE, which downstream players choke on.
	hlsFile := utils.Stringify(video["jwhlsfile"])

	if urlPath != "" && tdirForWhole != "" && hlsFile != "" {
		return fmt.Sprintf("%s/%s/%s", urlPath, tdirForWhole, hlsFile), nil
	}

	if href := utils.Stringify(video["href"]); href != "" {
		return href, nil
	}
	return "", fmt.Errorf("no manifest information in response")
}

// subtitleTracks scans the raw item object for subtitle_<lang>_<ext>
// keys, grouping tracks by language in document order.
func subtitleTracks(raw json.RawMessage) (map[string][]models.SubtitleTrack, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	// Opening delimiter of the item object.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to scan item fields: %w", err)
	}

	subtitles := make(map[string][]models.SubtitleTrack)
	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to scan item fields: %w", err)
		}
		key, _ := keyToken.(string)

		matches := subtitleKeyRegex.FindStringSubmatch(key)
		if matches == nil {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("failed to scan item fields: %w", err)
			}
			continue
		}

		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("failed to decode subtitle field %s: %w", key, err)
		}
		if strings.TrimSpace(value) == "" {
			continue
		}

		lang := matches[1]
		subtitles[lang] = append(subtitles[lang], models.SubtitleTrack{
			URL: value,
			Ext: matches[2],
		})
	}

	if len(subtitles) == 0 {
		return nil, nil
	}
	return subtitles, nil
}
