package models

// MediaItem is a fully resolved playable unit returned by a resolver.
type MediaItem struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Series        string `json:"series,omitempty"`
	EpisodeTitle  string `json:"episode_title,omitempty"`
	EpisodeNumber *int   `json:"episode_number,omitempty"` // nil when the API provides none
	Duration      *int   `json:"duration_seconds,omitempty"`
	Thumbnail     string `json:"thumbnail_url,omitempty"`

	// Formats may be empty for items the caller must treat as unplayable.
	Formats   []StreamFormat             `json:"formats"`
	Subtitles map[string][]SubtitleTrack `json:"subtitles,omitempty"`
	Tags      []string                   `json:"tags,omitempty"`
}

// StreamFormat is one variant/quality/container of a stream.
type StreamFormat struct {
	FormatID  string    `json:"format_id"`
	URL       string    `json:"url"`
	Height    *int      `json:"height,omitempty"` // nil when not derivable from the format label
	Container Container `json:"container"`
	Filesize  int64     `json:"filesize_bytes,omitempty"`
}

// SubtitleTrack is a single downloadable subtitle file.
type SubtitleTrack struct {
	URL string `json:"url"`
	Ext string `json:"ext"` // "vtt" or "srt"
}

// Playlist is an ordered set of lazy item references.
type Playlist struct {
	ID          string          `json:"id"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Entries     []ItemReference `json:"entries"`
}

// ItemReference points at a MediaItem that has not been resolved yet.
// It carries just enough identity and display data to defer the fetch.
type ItemReference struct {
	URL   string `json:"url"`
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`

	// NoExpand marks references produced by series expansion so that
	// resolving them individually does not expand the series again.
	NoExpand bool `json:"no_expand,omitempty"`
}

// Result is the union returned by every resolver: exactly one of Item
// or Playlist is non-nil.
type Result struct {
	Item     *MediaItem `json:"item,omitempty"`
	Playlist *Playlist  `json:"playlist,omitempty"`
}

// ItemResult wraps a MediaItem into a Result.
func ItemResult(item *MediaItem) *Result {
	return &Result{Item: item}
}

// PlaylistResult wraps a Playlist into a Result.
func PlaylistResult(playlist *Playlist) *Result {
	return &Result{Playlist: playlist}
}
