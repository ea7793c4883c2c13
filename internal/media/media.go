// Package media summarizes post media into structured descriptors and
// collects downloadable URLs from posts and comment bodies.
package media

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/calebms/reddit-extractor/internal/models"
	"github.com/calebms/reddit-extractor/internal/normalizer"
	"github.com/calebms/reddit-extractor/internal/reddit"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif"}

// galleryMeta is one entry of the post's media_metadata map.
type galleryMeta struct {
	Kind     string `json:"e"`
	Mimetype string `json:"m"`
	Source   struct {
		URL    string `json:"u"`
		MP4    string `json:"mp4"`
		GIF    string `json:"gif"`
		Width  int    `json:"x"`
		Height int    `json:"y"`
	} `json:"s"`
}

type redditVideo struct {
	FallbackURL       string  `json:"fallback_url"`
	HLSURL            string  `json:"hls_url"`
	DashURL           string  `json:"dash_url"`
	Duration          float64 `json:"duration"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	IsGIF             bool    `json:"is_gif"`
	TranscodingStatus string  `json:"transcoding_status"`
}

type oembed struct {
	Type         string `json:"type"`
	ProviderName string `json:"provider_name"`
	URL          string `json:"url"`
	HTML         string `json:"html"`
	ThumbnailURL string `json:"thumbnail_url"`
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
}

// ExtractMediaInfo builds structured media descriptors for a post. Checks
// run in fixed precedence: galleries, Reddit-hosted video, direct images
// with preview data, YouTube embeds, then a bare external image link
// fallback. Most branches are exclusive; an image link with preview may
// coexist with an embed. Malformed media blobs are logged and skipped, the
// extraction itself never fails.
func ExtractMediaInfo(post *reddit.Post) []models.MediaItem {
	var items []models.MediaItem

	if post.IsGallery && len(post.MediaMetadata) > 0 {
		items = galleryItems(post)
		if len(items) > 0 {
			slog.Debug("Extracted gallery media", "post_id", post.ID, "items", len(items))
			return items
		}
	}

	if post.IsVideo && len(post.Media) > 0 {
		if item, ok := redditVideoItem(post.Media); ok {
			slog.Debug("Extracted Reddit video media", "post_id", post.ID)
			return []models.MediaItem{item}
		}
	}

	if w, h, previewURL, ok := previewSource(post.Preview); ok {
		switch {
		case post.Domain == "i.redd.it" || post.Domain == "i.imgur.com":
			return []models.MediaItem{{
				Type:   "image",
				URL:    post.URL,
				Width:  w,
				Height: h,
			}}
		case !post.IsSelf && !post.IsVideo && post.URL != "" &&
			hasImageExtension(post.URL) && post.Domain != "v.redd.it":
			// May coexist with an embed below, so keep scanning.
			items = append(items, models.MediaItem{
				Type:       "image_link",
				URL:        post.URL,
				Width:      w,
				Height:     h,
				PreviewURL: previewURL,
			})
		}
	}

	if item, ok := youtubeEmbedItem(post.SecureMedia); ok {
		slog.Debug("Extracted YouTube embed media", "post_id", post.ID)
		return []models.MediaItem{item}
	}

	if len(items) == 0 && !post.IsSelf && !post.IsVideo && !post.IsGallery &&
		hasImageExtension(post.URL) &&
		post.Domain != "i.redd.it" && post.Domain != "v.redd.it" {
		items = append(items, models.MediaItem{
			Type: "external_image_link",
			URL:  post.URL,
		})
	}

	return items
}

// galleryItems expands a gallery post into per-item descriptors. Item order
// follows gallery_data when present so the output matches the display
// order; otherwise the metadata map is walked in sorted-key order.
func galleryItems(post *reddit.Post) []models.MediaItem {
	var metadata map[string]galleryMeta
	if err := json.Unmarshal(post.MediaMetadata, &metadata); err != nil {
		slog.Warn("Malformed media_metadata, skipping gallery extraction", "post_id", post.ID, "error", err)
		return nil
	}

	var items []models.MediaItem
	for _, id := range galleryOrder(post.GalleryData, metadata) {
		meta, ok := metadata[id]
		if !ok {
			continue
		}
		switch meta.Kind {
		case "Image":
			if meta.Source.URL == "" {
				continue
			}
			items = append(items, models.MediaItem{
				Type:     "image_gallery_item",
				ID:       id,
				URL:      meta.Source.URL,
				Width:    meta.Source.Width,
				Height:   meta.Source.Height,
				Mimetype: meta.Mimetype,
			})
		case "Video", "AnimatedImage":
			u := meta.Source.MP4
			if u == "" {
				u = meta.Source.GIF
			}
			if u == "" {
				continue
			}
			items = append(items, models.MediaItem{
				Type:     "animated_gallery_item",
				ID:       id,
				URL:      u,
				Width:    meta.Source.Width,
				Height:   meta.Source.Height,
				Mimetype: meta.Mimetype,
			})
		}
	}
	return items
}

func galleryOrder(galleryData json.RawMessage, metadata map[string]galleryMeta) []string {
	if len(galleryData) > 0 {
		var gd struct {
			Items []struct {
				MediaID string `json:"media_id"`
			} `json:"items"`
		}
		if err := json.Unmarshal(galleryData, &gd); err == nil && len(gd.Items) > 0 {
			ids := make([]string, 0, len(gd.Items))
			for _, it := range gd.Items {
				ids = append(ids, it.MediaID)
			}
			return ids
		}
	}

	ids := make([]string, 0, len(metadata))
	for id := range metadata {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func redditVideoItem(mediaBlob json.RawMessage) (models.MediaItem, bool) {
	var wrapper struct {
		RedditVideo *redditVideo `json:"reddit_video"`
	}
	if err := json.Unmarshal(mediaBlob, &wrapper); err != nil || wrapper.RedditVideo == nil {
		return models.MediaItem{}, false
	}
	v := wrapper.RedditVideo
	return models.MediaItem{
		Type:              "reddit_video",
		URL:               v.FallbackURL,
		HLSURL:            v.HLSURL,
		DashURL:           v.DashURL,
		DurationSeconds:   v.Duration,
		Width:             v.Width,
		Height:            v.Height,
		IsGIF:             v.IsGIF,
		TranscodingStatus: v.TranscodingStatus,
	}, true
}

func youtubeEmbedItem(secureMedia json.RawMessage) (models.MediaItem, bool) {
	if len(secureMedia) == 0 {
		return models.MediaItem{}, false
	}
	var wrapper struct {
		Oembed *oembed `json:"oembed"`
	}
	if err := json.Unmarshal(secureMedia, &wrapper); err != nil || wrapper.Oembed == nil {
		return models.MediaItem{}, false
	}
	o := wrapper.Oembed
	if o.Type != "video" || o.ProviderName != "YouTube" {
		return models.MediaItem{}, false
	}
	return models.MediaItem{
		Type:         "youtube_video_embed",
		URL:          o.URL,
		HTMLEmbed:    o.HTML,
		ThumbnailURL: o.ThumbnailURL,
		Title:        o.Title,
		AuthorName:   o.AuthorName,
		ProviderName: o.ProviderName,
	}, true
}

func previewSource(preview json.RawMessage) (width, height int, sourceURL string, ok bool) {
	if len(preview) == 0 {
		return 0, 0, "", false
	}
	var p struct {
		Images []struct {
			Source struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"source"`
		} `json:"images"`
	}
	if err := json.Unmarshal(preview, &p); err != nil || len(p.Images) == 0 {
		return 0, 0, "", false
	}
	src := p.Images[0].Source
	return src.Width, src.Height, src.URL, true
}

// PostMediaURLs selects directly downloadable URLs from structured media
// descriptors. Reddit videos contribute their fallback MP4, images their
// direct link; YouTube and other non-direct URLs are skipped. Order follows
// the descriptor list with duplicates dropped.
func PostMediaURLs(items []models.MediaItem) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	for _, item := range items {
		if item.Type == "reddit_video" {
			if isDirectVideo(item.URL) {
				add(item.URL)
			} else if isDirectVideo(item.FallbackURL) {
				add(item.FallbackURL)
			}
			continue
		}
		if item.URL == "" || isYouTubeURL(item.URL) {
			continue
		}
		if isDirectMedia(item.URL) {
			add(item.URL)
		}
	}
	return urls
}

// CommentMediaURLs walks a raw comment forest and harvests Reddit-hosted
// image URLs (i.redd.it, preview.redd.it) from comment bodies. The walk
// honors the same top-level and depth bounds as the output document, so
// media is only collected from comments that actually appear in it.
// Rendered body HTML is parsed for anchors and inline images; plain
// markdown bodies are token-scanned as a fallback. The result is
// de-duplicated in encounter order.
func CommentMediaURLs(roots []*reddit.Comment, bounds normalizer.Options) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	take := len(roots)
	if bounds.MaxTopLevel >= 0 && bounds.MaxTopLevel < take {
		take = bounds.MaxTopLevel
	}

	type frame struct {
		c     *reddit.Comment
		depth int
	}
	var stack []frame
	for i := take - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.c.BodyHTML != "" {
			for _, u := range htmlImageURLs(f.c.BodyHTML) {
				add(u)
			}
		} else {
			for _, word := range strings.Fields(f.c.Body) {
				if isRedditImageURL(word) {
					add(word)
				}
			}
		}

		if bounds.MaxDepth >= 0 && f.depth >= bounds.MaxDepth {
			continue
		}
		for i := len(f.c.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.c.Children[i], f.depth + 1})
		}
	}
	return urls
}

func htmlImageURLs(bodyHTML string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		slog.Debug("Unparseable comment body HTML, skipping", "error", err)
		return nil
	}

	var urls []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && isRedditImageURL(href) {
			urls = append(urls, href)
		}
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && isRedditImageURL(src) {
			urls = append(urls, src)
		}
	})
	return urls
}

// isRedditImageURL reports whether raw is a Reddit-hosted image link whose
// path carries an image extension. Query parameters (signed preview URLs)
// are ignored for the extension check but kept on the returned URL.
func isRedditImageURL(raw string) bool {
	if !strings.HasPrefix(raw, "https://i.redd.it/") && !strings.HasPrefix(raw, "https://preview.redd.it/") {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return hasImageExtension(parsed.Path)
}

func hasImageExtension(s string) bool {
	path := strings.ToLower(strings.SplitN(s, "?", 2)[0])
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func isDirectVideo(u string) bool {
	path := strings.ToLower(strings.SplitN(u, "?", 2)[0])
	return strings.HasSuffix(path, ".mp4") || strings.HasSuffix(path, ".gif")
}

func isDirectMedia(u string) bool {
	path := strings.ToLower(strings.SplitN(u, "?", 2)[0])
	return hasImageExtension(path) || strings.HasSuffix(path, ".mp4")
}

func isYouTubeURL(u string) bool {
	return strings.Contains(u, "youtube.com/watch") || strings.Contains(u, "youtu.be/")
}
