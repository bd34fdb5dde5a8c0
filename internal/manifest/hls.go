// Package manifest turns HLS and DASH manifest URLs into concrete
// stream format descriptors.
package manifest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/goviu/internal/fetch"
	"github.com/amaumene/goviu/internal/models"
)

// streamInfAttrRegex matches one KEY=VALUE pair of an attribute list,
// where VALUE is either quoted or a bare token.
var streamInfAttrRegex = regexp.MustCompile(`([A-Z0-9-]+)=("[^"]*"|[^",]+)`)

// ExtractHLSFormats fetches an HLS playlist and returns one format per
// variant stream. A media playlist (no variants) yields a single
// format pointing at the manifest itself. containerHint labels the
// media the variants carry (the catalog serves mp4 segments); empty
// keeps the manifest's own m3u8. With fatal=false, fetch and parse
// failures are logged and collapse to an empty format list.
func ExtractHLSFormats(ctx context.Context, d *fetch.Downloader, manifestURL, id string, containerHint models.Container, fatal bool, logger *logrus.Logger) ([]models.StreamFormat, error) {
	resp, err := d.FetchRaw(ctx, fetch.Request{
		URL:  manifestURL,
		ID:   id,
		Note: "Downloading m3u8 information",
	})
	if err != nil {
		if fatal {
			return nil, fmt.Errorf("failed to download m3u8 for %s: %w", id, err)
		}
		logger.WithField("id", id).WithError(err).Warn("Failed to download m3u8, continuing without formats")
		return nil, nil
	}
	defer resp.Body.Close()

	formats, err := parseMasterPlaylist(resp.Body, manifestURL, containerHint)
	if err != nil {
		if fatal {
			return nil, fmt.Errorf("failed to parse m3u8 for %s: %w", id, err)
		}
		logger.WithField("id", id).WithError(err).Warn("Failed to parse m3u8, continuing without formats")
		return nil, nil
	}
	return formats, nil
}

// parseMasterPlaylist reads a playlist line by line, collecting the
// variant URI that follows each #EXT-X-STREAM-INF tag.
func parseMasterPlaylist(r io.Reader, manifestURL string, containerHint models.Container) ([]models.StreamFormat, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("invalid manifest URL %q: %w", manifestURL, err)
	}

	container := models.ContainerM3U8
	if containerHint != "" {
		container = containerHint
	}

	var formats []models.StreamFormat
	var pending *models.StreamFormat
	sawHeader := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "#EXTM3U":
			sawHeader = true
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			format := variantFromAttrs(line[len("#EXT-X-STREAM-INF:"):], container)
			pending = &format
		case strings.HasPrefix(line, "#"):
			// other tags carry nothing we need
		default:
			if pending == nil {
				continue
			}
			pending.URL = resolveReference(base, line)
			formats = append(formats, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}
	if !sawHeader {
		return nil, fmt.Errorf("not an m3u8 playlist")
	}

	// A media playlist has segments but no variants: the manifest
	// itself is the single playable rendition.
	if len(formats) == 0 {
		formats = append(formats, models.StreamFormat{
			FormatID:  "hls",
			URL:       manifestURL,
			Container: container,
		})
	}

	return formats, nil
}

// variantFromAttrs builds a format from a #EXT-X-STREAM-INF attribute list.
func variantFromAttrs(attrList string, container models.Container) models.StreamFormat {
	format := models.StreamFormat{
		FormatID:  "hls",
		Container: container,
	}

	for _, match := range streamInfAttrRegex.FindAllStringSubmatch(attrList, -1) {
		key := match[1]
		value := strings.Trim(match[2], `"`)

		switch key {
		case "RESOLUTION":
			if _, h, ok := strings.Cut(value, "x"); ok {
				if height, err := strconv.Atoi(h); err == nil {
					format.Height = &height
					format.FormatID = fmt.Sprintf("hls-%dp", height)
				}
			}
		case "BANDWIDTH":
			if format.Height == nil {
				format.FormatID = "hls-" + value
			}
		case "NAME":
			format.FormatID = "hls-" + value
		}
	}

	return format
}

// resolveReference resolves a possibly-relative variant URI against
// the manifest URL.
func resolveReference(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
