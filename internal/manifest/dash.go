package manifest

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/goviu/internal/fetch"
	"github.com/amaumene/goviu/internal/models"
)

// mpd mirrors the subset of a DASH MPD document needed to enumerate
// representations.
type mpd struct {
	XMLName xml.Name    `xml:"MPD"`
	Periods []mpdPeriod `xml:"Period"`
}

type mpdPeriod struct {
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
}

type mpdAdaptationSet struct {
	ContentType     string              `xml:"contentType,attr"`
	MimeType        string              `xml:"mimeType,attr"`
	Representations []mpdRepresentation `xml:"Representation"`
}

type mpdRepresentation struct {
	ID        string `xml:"id,attr"`
	Height    int    `xml:"height,attr"`
	Bandwidth int    `xml:"bandwidth,attr"`
	MimeType  string `xml:"mimeType,attr"`
}

// ExtractDASHFormats fetches a DASH MPD and returns one format per
// video representation. With fatal=false, failures are logged and
// collapse to an empty format list.
func ExtractDASHFormats(ctx context.Context, d *fetch.Downloader, manifestURL, id string, fatal bool, logger *logrus.Logger) ([]models.StreamFormat, error) {
	resp, err := d.FetchRaw(ctx, fetch.Request{
		URL:  manifestURL,
		ID:   id,
		Note: "Downloading MPD manifest",
	})
	if err != nil {
		if fatal {
			return nil, fmt.Errorf("failed to download MPD for %s: %w", id, err)
		}
		logger.WithField("id", id).WithError(err).Warn("Failed to download MPD, continuing without formats")
		return nil, nil
	}
	defer resp.Body.Close()

	var doc mpd
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		if fatal {
			return nil, fmt.Errorf("failed to parse MPD for %s: %w", id, err)
		}
		logger.WithField("id", id).WithError(err).Warn("Failed to parse MPD, continuing without formats")
		return nil, nil
	}

	var formats []models.StreamFormat
	for _, period := range doc.Periods {
		for _, set := range period.AdaptationSets {
			if !isVideoAdaptationSet(set) {
				continue
			}
			for _, rep := range set.Representations {
				format := models.StreamFormat{
					FormatID:  "dash-" + rep.ID,
					URL:       manifestURL,
					Container: models.ContainerMPD,
				}
				if rep.ID == "" {
					format.FormatID = fmt.Sprintf("dash-%d", rep.Bandwidth)
				}
				if rep.Height > 0 {
					height := rep.Height
					format.Height = &height
				}
				formats = append(formats, format)
			}
		}
	}

	return formats, nil
}

// isVideoAdaptationSet reports whether an adaptation set carries video.
func isVideoAdaptationSet(set mpdAdaptationSet) bool {
	if set.ContentType != "" {
		return set.ContentType == "video"
	}
	if set.MimeType != "" {
		return strings.HasPrefix(set.MimeType, "video/")
	}
	for _, rep := range set.Representations {
		if strings.HasPrefix(rep.MimeType, "video/") || rep.Height > 0 {
			return true
		}
	}
	return false
}
