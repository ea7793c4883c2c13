// Package document assembles the final output record and handles its
// serialization. The JSON key set it emits is a stable contract.
package document

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/calebms/reddit-extractor/internal/models"
	"github.com/calebms/reddit-extractor/internal/reddit"
	"github.com/calebms/reddit-extractor/internal/validator"
)

// Version identifies the output format revision stamped on every document.
const Version = "0.1.0"

var (
	unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|\s]+`)
	nonWordChars        = regexp.MustCompile(`[^\w\-.]`)
	underscoreRuns      = regexp.MustCompile(`_+`)
)

// Options control optional parts of the assembled document.
type Options struct {
	// MediaInfo is the structured media summary for the post, already
	// extracted. Nil means no media was found.
	MediaInfo []models.MediaItem
	// IncludeRaw copies the verbose upstream media blobs into the _raw_*
	// passthrough fields.
	IncludeRaw bool
}

// Assemble builds a complete, validated document from a raw post, its
// normalized comment forest, and the canonical source URL. Timestamps are
// derived here: the extraction stamp from the wall clock, created_iso for
// the post and every comment from their epoch seconds.
func Assemble(post *reddit.Post, comments []*models.Comment, sourceURL string, opts Options) (*models.Document, error) {
	if post == nil {
		return nil, fmt.Errorf("assemble document: nil post")
	}

	author := post.Author
	if author == "" {
		author = models.DeletedSentinel
	}

	details := models.PostDetails{
		ID:                post.ID,
		Title:             post.Title,
		Author:            author,
		CreatedUTC:        post.CreatedUTC,
		CreatedISO:        isoTime(post.CreatedUTC),
		URL:               post.URL,
		Permalink:         absolutePermalink(post.Permalink),
		Domain:            post.Domain,
		Selftext:          post.Selftext,
		Score:             post.Score,
		UpvoteRatio:       post.UpvoteRatio,
		NumComments:       post.NumComments,
		IsOriginalContent: post.IsOriginalContent,
		IsSelf:            post.IsSelf,
		IsVideo:           post.IsVideo,
		Stickied:          post.Stickied,
		Over18:            post.Over18,
		Spoiler:           post.Spoiler,
		Locked:            post.Locked,
		Subreddit:         post.Subreddit,
		SubredditID:       post.SubredditID,
		Gilded:            post.Gilded,
		MediaInfo:         opts.MediaInfo,
	}
	if details.MediaInfo == nil {
		details.MediaInfo = []models.MediaItem{}
	}
	if opts.IncludeRaw {
		details.RawMedia = post.Media
		details.RawMediaEmbed = post.MediaEmbed
		details.RawSecureMedia = post.SecureMedia
		details.RawSecureMediaEmbed = post.SecureMediaEmbed
		details.RawGalleryData = post.GalleryData
		details.RawMediaMetadata = post.MediaMetadata
	}

	if comments == nil {
		comments = []*models.Comment{}
	}
	stampCommentTimes(comments)

	doc := &models.Document{
		ExtractorVersion:       Version,
		ExtractionTimestampUTC: time.Now().UTC().Format(time.RFC3339),
		SourceURL:              sourceURL,
		PostDetails:            details,
		Comments:               comments,
	}

	if err := validator.New().ValidateStruct(doc); err != nil {
		return nil, fmt.Errorf("assembled document failed validation: %w", err)
	}
	return doc, nil
}

// stampCommentTimes fills created_iso on every node of the forest.
func stampCommentTimes(comments []*models.Comment) {
	var stack []*models.Comment
	stack = append(stack, comments...)
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c.CreatedISO = isoTime(c.CreatedUTC)
		stack = append(stack, c.Replies...)
	}
}

// isoTime converts epoch seconds to an RFC 3339 UTC string. Zero epochs
// (removed content reports none) map to nil so the field serializes as null.
func isoTime(epoch float64) *string {
	if epoch <= 0 {
		return nil
	}
	s := time.Unix(int64(epoch), 0).UTC().Format(time.RFC3339)
	return &s
}

func absolutePermalink(permalink string) string {
	if strings.HasPrefix(permalink, "/") {
		return "https://www.reddit.com" + permalink
	}
	return permalink
}

// GenerateFilename derives a filesystem-safe name of the form
// <post_id>_<title>.json. Titles are sanitized aggressively and capped so
// the name stays portable across filesystems.
func GenerateFilename(post *models.PostDetails) string {
	title := unsafeFilenameChars.ReplaceAllString(post.Title, "_")
	title = nonWordChars.ReplaceAllString(title, "")
	title = underscoreRuns.ReplaceAllString(title, "_")
	title = strings.Trim(title, "_")
	if title == "" {
		title = "untitled"
	}
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:50])
	}
	return fmt.Sprintf("%s_%s.json", post.ID, title)
}

// Save writes the document as indented JSON under dir, creating the
// directory if needed, and returns the full path written.
func Save(doc *models.Document, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", dir, err)
	}

	return SaveTo(doc, filepath.Join(dir, GenerateFilename(&doc.PostDetails)))
}

// SaveTo writes the document as indented JSON to an explicit path.
func SaveTo(doc *models.Document, path string) (string, error) {
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating output file %s: %w", path, err)
	}
	defer f.Close()

	if err := encode(f, doc); err != nil {
		return "", fmt.Errorf("writing document to %s: %w", path, err)
	}
	slog.Info("Document saved", "path", path)
	return path, nil
}

// Print writes the document as indented JSON to stdout.
func Print(doc *models.Document) error {
	return encode(os.Stdout, doc)
}

func encode(w io.Writer, doc *models.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	// Bodies routinely contain markdown with <, > and &; keep them readable.
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}
