package reddit

import "encoding/json"

// thing is the kind-tagged envelope the listing API wraps every object in.
// Kinds seen here: "Listing", "t1" (comment), "t3" (post), "more".
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listingData struct {
	Children []thing `json:"children"`
	After    string  `json:"after"`
}

// rawComment mirrors the t1 payload fields the extractor consumes. Replies
// is either an empty string (no replies fetched) or a nested listing.
type rawComment struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Author      string          `json:"author"`
	Body        string          `json:"body"`
	BodyHTML    string          `json:"body_html"`
	CreatedUTC  float64         `json:"created_utc"`
	Score       int             `json:"score"`
	IsSubmitter bool            `json:"is_submitter"`
	Stickied    bool            `json:"stickied"`
	ParentID    string          `json:"parent_id"`
	Permalink   string          `json:"permalink"`
	Replies     json.RawMessage `json:"replies"`
}

// rawMore is the collapsed "load more comments" placeholder.
type rawMore struct {
	Count    int      `json:"count"`
	Name     string   `json:"name"`
	ID       string   `json:"id"`
	ParentID string   `json:"parent_id"`
	Children []string `json:"children"`
}

// rawPost mirrors the t3 payload. The json.RawMessage fields carry verbose
// media blobs passed through untouched when the user asks for them.
type rawPost struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Title             string          `json:"title"`
	Author            string          `json:"author"`
	CreatedUTC        float64         `json:"created_utc"`
	URL               string          `json:"url"`
	Permalink         string          `json:"permalink"`
	Domain            string          `json:"domain"`
	Selftext          string          `json:"selftext"`
	SelftextHTML      string          `json:"selftext_html"`
	Score             int             `json:"score"`
	UpvoteRatio       float64         `json:"upvote_ratio"`
	NumComments       int             `json:"num_comments"`
	IsOriginalContent bool            `json:"is_original_content"`
	IsSelf            bool            `json:"is_self"`
	IsVideo           bool            `json:"is_video"`
	IsGallery         bool            `json:"is_gallery"`
	Stickied          bool            `json:"stickied"`
	Over18            bool            `json:"over_18"`
	Spoiler           bool            `json:"spoiler"`
	Locked            bool            `json:"locked"`
	Subreddit         string          `json:"subreddit"`
	SubredditID       string          `json:"subreddit_id"`
	Gilded            int             `json:"gilded"`
	Media             json.RawMessage `json:"media"`
	MediaEmbed        json.RawMessage `json:"media_embed"`
	SecureMedia       json.RawMessage `json:"secure_media"`
	SecureMediaEmbed  json.RawMessage `json:"secure_media_embed"`
	GalleryData       json.RawMessage `json:"gallery_data"`
	MediaMetadata     json.RawMessage `json:"media_metadata"`
	Preview           json.RawMessage `json:"preview"`
}

// Comment is a fully materialized raw comment handle. By the time a Comment
// leaves the client, every reachable "more" placeholder has been expanded
// and Children holds the direct replies in upstream order.
type Comment struct {
	ID          string
	Name        string
	Author      string
	Body        string
	BodyHTML    string
	CreatedUTC  float64
	Score       int
	IsSubmitter bool
	Stickied    bool
	ParentID    string
	Permalink   string
	Children    []*Comment
}

// Post is the raw post handle handed to the record builder.
type Post struct {
	ID                string
	Name              string
	Title             string
	Author            string
	CreatedUTC        float64
	URL               string
	Permalink         string
	Domain            string
	Selftext          string
	SelftextHTML      string
	Score             int
	UpvoteRatio       float64
	NumComments       int
	IsOriginalContent bool
	IsSelf            bool
	IsVideo           bool
	IsGallery         bool
	Stickied          bool
	Over18            bool
	Spoiler           bool
	Locked            bool
	Subreddit         string
	SubredditID       string
	Gilded            int
	Media             json.RawMessage
	MediaEmbed        json.RawMessage
	SecureMedia       json.RawMessage
	SecureMediaEmbed  json.RawMessage
	GalleryData       json.RawMessage
	MediaMetadata     json.RawMessage
	Preview           json.RawMessage
}

// Thread is one post plus its expanded top-level comment forest.
type Thread struct {
	Post     Post
	Comments []*Comment
}

func (p *rawPost) toPost() Post {
	return Post{
		ID:                p.ID,
		Name:              p.Name,
		Title:             p.Title,
		Author:            p.Author,
		CreatedUTC:        p.CreatedUTC,
		URL:               p.URL,
		Permalink:         p.Permalink,
		Domain:            p.Domain,
		Selftext:          p.Selftext,
		SelftextHTML:      p.SelftextHTML,
		Score:             p.Score,
		UpvoteRatio:       p.UpvoteRatio,
		NumComments:       p.NumComments,
		IsOriginalContent: p.IsOriginalContent,
		IsSelf:            p.IsSelf,
		IsVideo:           p.IsVideo,
		IsGallery:         p.IsGallery,
		Stickied:          p.Stickied,
		Over18:            p.Over18,
		Spoiler:           p.Spoiler,
		Locked:            p.Locked,
		Subreddit:         p.Subreddit,
		SubredditID:       p.SubredditID,
		Gilded:            p.Gilded,
		Media:             p.Media,
		MediaEmbed:        p.MediaEmbed,
		SecureMedia:       p.SecureMedia,
		SecureMediaEmbed:  p.SecureMediaEmbed,
		GalleryData:       p.GalleryData,
		MediaMetadata:     p.MediaMetadata,
		Preview:           p.Preview,
	}
}

func (c *rawComment) toComment() *Comment {
	return &Comment{
		ID:          c.ID,
		Name:        c.Name,
		Author:      c.Author,
		Body:        c.Body,
		BodyHTML:    c.BodyHTML,
		CreatedUTC:  c.CreatedUTC,
		Score:       c.Score,
		IsSubmitter: c.IsSubmitter,
		Stickied:    c.Stickied,
		ParentID:    c.ParentID,
		Permalink:   c.Permalink,
	}
}
