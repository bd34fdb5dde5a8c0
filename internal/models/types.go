package models

// Container represents the container/manifest class of a stream format.
type Container string

const (
	ContainerMP4  Container = "mp4"
	ContainerM3U8 Container = "m3u8"
	ContainerMPD  Container = "mpd"
)

// Subtitle file extensions.
const (
	SubtitleExtVTT = "vtt"
	SubtitleExtSRT = "srt"
)
