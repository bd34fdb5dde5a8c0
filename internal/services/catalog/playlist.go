package catalog

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/goviu/internal/models"
	"github.com/amaumene/goviu/internal/utils"
)

// containerPayload is the container/load envelope payload.
type containerPayload struct {
	Container struct {
		Title string        `json:"title"`
		Item  []interface{} `json:"item"`
	} `json:"container"`
}

// ResolvePlaylist resolves a playlist id into a Playlist of lazy item
// references. Entries without an id are dropped; resolving each entry
// is deferred until it is individually requested.
func (c *Client) ResolvePlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	query := url.Values{
		"appid": {appID},
		"fmt":   {"json"},
		"id":    {"playlist-" + playlistID},
	}

	var payload containerPayload
	if err := c.CallAPI(ctx, "container/load", playlistID, "Downloading playlist info", query, nil, &payload); err != nil {
		return nil, err
	}

	var entries []models.ItemReference
	for _, raw := range payload.Container.Item {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		itemID := utils.Stringify(item["id"])
		if itemID == "" {
			c.logger.WithFields(logrus.Fields{
				"playlist": playlistID,
			}).Debug("Skipping playlist entry without id")
			continue
		}
		entries = append(entries, models.ItemReference{
			URL:   "viu:" + itemID,
			ID:    itemID,
			Title: utils.Stringify(item["title"]),
		})
	}

	return &models.Playlist{
		ID:      playlistID,
		Title:   payload.Container.Title,
		Entries: entries,
	}, nil
}
