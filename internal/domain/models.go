package domain

import (
	"time"
)

type Image struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	StoragePath  string    `json:"storage_path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Processed    bool      `json:"processed"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
}

// Edit is one finished run of the editing pipeline.
type Edit struct {
	ID         string    `json:"id"`
	ImageID    string    `json:"image_id,omitempty"`
	Filename   string    `json:"filename"`
	Parameters string    `json:"parameters"`
	Steps      []string  `json:"steps"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

type ChannelType string

const (
	ChannelRed     ChannelType = "red"
	ChannelGreen   ChannelType = "green"
	ChannelBlue    ChannelType = "blue"
	ChannelGray    ChannelType = "gray"
	ChannelChanges ChannelType = "changes"
)

// ChannelImage points the UI at one rendered preview.
type ChannelImage struct {
	Type      ChannelType `json:"type"`
	URL       string      `json:"url"`
	Histogram []int       `json:"histogram,omitempty"`
}

type BrightnessHistogram struct {
	Red   []int `json:"Red"`
	Green []int `json:"Green"`
	Blue  []int `json:"Blue"`
	Gray  []int `json:"Gray"`
}

type ImageStatistics struct {
	Brightness BrightnessHistogram `json:"Brightness"`
}

// Part names used in multipart responses and storage keys.
const (
	PartRedacted = "redacted_image"
	PartRed      = "red_channel"
	PartGreen    = "green_channel"
	PartBlue     = "blue_channel"
	PartGray     = "gray_channel"
	PartChanges  = "changes_channel"
)

var Parts = []string{PartRedacted, PartRed, PartGreen, PartBlue, PartGray, PartChanges}

// RenderedPart is an encoded PNG ready to be written out.
type RenderedPart struct {
	Name string
	Data []byte
}

type RedactResult struct {
	Edit       Edit
	Parts      []RenderedPart
	Statistics ImageStatistics
}

type StoredRedaction struct {
	Edit       Edit              `json:"edit"`
	Keys       map[string]string `json:"keys"`
	Channels   []ChannelImage    `json:"channels"`
	Statistics ImageStatistics   `json:"statistics"`
}

// PartChannels maps preview parts to the channel they show. The redacted
// image itself is not a channel.
var PartChannels = map[string]ChannelType{
	PartRed:     ChannelRed,
	PartGreen:   ChannelGreen,
	PartBlue:    ChannelBlue,
	PartGray:    ChannelGray,
	PartChanges: ChannelChanges,
}
