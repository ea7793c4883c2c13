package models

import "encoding/json"

// DeletedSentinel is substituted for the author and body of comments whose
// content was removed or deleted upstream. Such comments are still surfaced
// as nodes so the tree shape stays faithful to what the API reports.
const DeletedSentinel = "[deleted]"

// Comment is a single normalized comment node. Depth is assigned by the
// normalization walk, never trusted from upstream. Replies is ordered in
// upstream sibling order and is never nil; an empty slice is a valid
// terminal state (either no replies, or truncated at the depth bound).
type Comment struct {
	ID          string     `json:"id" validate:"required"`
	Author      string     `json:"author" validate:"required"`
	Body        string     `json:"body"`
	CreatedUTC  float64    `json:"created_utc"`
	CreatedISO  *string    `json:"created_iso"`
	Score       int        `json:"score"`
	IsSubmitter bool       `json:"is_submitter"`
	Stickied    bool       `json:"stickied"`
	ParentID    string     `json:"parent_id"`
	Permalink   string     `json:"permalink"`
	Depth       int        `json:"depth" validate:"gte=0"`
	Replies     []*Comment `json:"replies"`
}

// MediaItem is one structured media descriptor attached to a post. Type
// decides which of the optional fields are populated.
type MediaItem struct {
	Type              string  `json:"type" validate:"required"`
	ID                string  `json:"id,omitempty"`
	URL               string  `json:"url,omitempty"`
	PreviewURL        string  `json:"preview_url,omitempty"`
	FallbackURL       string  `json:"fallback_url,omitempty"`
	HLSURL            string  `json:"hls_url,omitempty"`
	DashURL           string  `json:"dash_url,omitempty"`
	DurationSeconds   float64 `json:"duration_seconds,omitempty"`
	Width             int     `json:"width,omitempty"`
	Height            int     `json:"height,omitempty"`
	IsGIF             bool    `json:"is_gif,omitempty"`
	TranscodingStatus string  `json:"transcoding_status,omitempty"`
	Mimetype          string  `json:"mimetype,omitempty"`
	HTMLEmbed         string  `json:"html_embed,omitempty"`
	ThumbnailURL      string  `json:"thumbnail_url,omitempty"`
	Title             string  `json:"title,omitempty"`
	AuthorName        string  `json:"author_name,omitempty"`
	ProviderName      string  `json:"provider_name,omitempty"`
}

// PostDetails is the flat projection of the source post. The _raw_* fields
// carry verbose upstream media blobs and are only populated when the user
// asks for them.
type PostDetails struct {
	ID                string      `json:"id" validate:"required"`
	Title             string      `json:"title"`
	Author            string      `json:"author" validate:"required"`
	CreatedUTC        float64     `json:"created_utc"`
	CreatedISO        *string     `json:"created_iso"`
	URL               string      `json:"url"`
	Permalink         string      `json:"permalink" validate:"required,url"`
	Domain            string      `json:"domain"`
	Selftext          string      `json:"selftext"`
	Score             int         `json:"score"`
	UpvoteRatio       float64     `json:"upvote_ratio" validate:"gte=0,lte=1"`
	NumComments       int         `json:"num_comments" validate:"gte=0"`
	IsOriginalContent bool        `json:"is_original_content"`
	IsSelf            bool        `json:"is_self"`
	IsVideo           bool        `json:"is_video"`
	Stickied          bool        `json:"stickied"`
	Over18            bool        `json:"over_18"`
	Spoiler           bool        `json:"spoiler"`
	Locked            bool        `json:"locked"`
	Subreddit         string      `json:"subreddit"`
	SubredditID       string      `json:"subreddit_id"`
	Gilded            int         `json:"gilded"`
	MediaInfo         []MediaItem `json:"media_info"`

	RawMedia            json.RawMessage `json:"_raw_media,omitempty"`
	RawMediaEmbed       json.RawMessage `json:"_raw_media_embed,omitempty"`
	RawSecureMedia      json.RawMessage `json:"_raw_secure_media,omitempty"`
	RawSecureMediaEmbed json.RawMessage `json:"_raw_secure_media_embed,omitempty"`
	RawGalleryData      json.RawMessage `json:"_raw_gallery_data,omitempty"`
	RawMediaMetadata    json.RawMessage `json:"_raw_media_metadata,omitempty"`
}

// Document is the final output shape. The key set is a stable contract:
// consumers rely on exactly these names.
type Document struct {
	ExtractorVersion       string      `json:"extractor_version" validate:"required"`
	ExtractionTimestampUTC string      `json:"extraction_timestamp_utc" validate:"required"`
	SourceURL              string      `json:"source_url" validate:"required,url"`
	PostDetails            PostDetails `json:"post_details"`
	Comments               []*Comment  `json:"comments"`
}
