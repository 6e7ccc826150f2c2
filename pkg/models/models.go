package models

import "time"

// Platform identifies the social network a page or descriptor belongs to.
type Platform string

const (
	PlatformThreads   Platform = "threads"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformUnknown   Platform = "unknown"
)

// MediaType distinguishes still images from video sources.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// ImageDescriptor is an immutable record of a media element discovered on a
// post page. Extractors produce descriptors; nothing mutates them afterwards.
type ImageDescriptor struct {
	// URL is the full-resolution source URL (best srcset candidate when present)
	URL string `json:"url"`
	// ThumbnailURL is the smaller preview URL, if one was visible
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	// AltText is the accessibility text attached to the element
	AltText string `json:"alt_text,omitempty"`
	// Width and Height are the declared (not rendered) dimensions, 0 if unknown
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// Platform tags which extractor produced the descriptor
	Platform Platform `json:"platform"`
	// MediaType is image or video
	MediaType MediaType `json:"media_type"`
	// ExtractedAt is when the extractor found the element
	ExtractedAt time.Time `json:"extracted_at"`
	// Metadata is a free-form bag: extraction method, carousel position, etc.
	Metadata map[string]string `json:"metadata,omitempty"`
}
