// Command extractor fetches a Reddit post and its comment tree and writes a
// normalized JSON document. Run with --url for scripted use or without
// arguments for interactive mode.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calebms/reddit-extractor/internal/config"
	"github.com/calebms/reddit-extractor/internal/document"
	"github.com/calebms/reddit-extractor/internal/media"
	"github.com/calebms/reddit-extractor/internal/models"
	"github.com/calebms/reddit-extractor/internal/normalizer"
	"github.com/calebms/reddit-extractor/internal/reddit"
	"github.com/calebms/reddit-extractor/internal/util"
)

var validSorts = []string{"best", "top", "new", "controversial", "old", "qa"}

// canonicalSort normalizes user sort input, accepting the "q&a" spelling.
func canonicalSort(s string) (string, bool) {
	s = strings.ToLower(s)
	if s == "q&a" {
		s = "qa"
	}
	for _, v := range validSorts {
		if s == v {
			return s, true
		}
	}
	return "", false
}

// runOptions is the fully resolved parameter set for one extraction,
// whether it came from flags or interactive prompts.
type runOptions struct {
	url             string
	commentLimit    int // normalizer.All, 0, or a positive count
	sort            string
	sortSet         bool // explicit --sort or interactive choice
	depth           int  // normalizer.All or a non-negative bound
	output          string
	printToConsole  bool
	includeRawMedia bool
	downloadScope   string // "", "post", "comments", "both"
	interactive     bool
}

func main() {
	if err := run(); err != nil {
		slog.Error("Extraction failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	flags := flag.NewFlagSet("extractor", flag.ExitOnError)
	urlFlag := flags.String("url", "", "URL of the Reddit post to extract. Required unless running interactively.")
	commentsFlag := flags.Int("comments", -1, "Number of top-level comments to retrieve. Provide 0 for none.")
	allComments := flags.Bool("all-comments", false, "Retrieve all top-level comments (default in scripted mode).")
	noComments := flags.Bool("no-comments", false, "Do not retrieve any comments.")
	sortFlag := flags.String("sort", "best", fmt.Sprintf("Sort order for comments (%s).", strings.Join(validSorts, "|")))
	depthFlag := flags.Int("depth", -1, "Maximum depth of comment replies (default: all depths).")
	outputFlag := flags.StringP("output", "o", "", "Output filename. If omitted, generates based on post ID/title.")
	printFlag := flags.Bool("print", false, "Print the final JSON to the console instead of saving to a file.")
	verbose := flags.BoolP("verbose", "v", false, "Enable verbose logging (DEBUG level).")
	logFile := flags.String("log-file", "", "Path to a file for logging output.")
	includeRawMedia := flags.Bool("include-raw-media", false, "Include extensive raw media metadata in the JSON output.")
	downloadMedia := flags.String("download-media", "", "Download media without prompting: post, comments, or both.")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	closeLog, err := setupLogging(*verbose, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not set up log file at %q: %v\n", *logFile, err)
	}
	if closeLog != nil {
		defer closeLog()
	}

	opts := runOptions{
		url:             *urlFlag,
		sort:            *sortFlag,
		sortSet:         flags.Changed("sort"),
		depth:           *depthFlag,
		output:          *outputFlag,
		printToConsole:  *printFlag,
		includeRawMedia: *includeRawMedia,
		downloadScope:   *downloadMedia,
	}
	if opts.depth < 0 {
		opts.depth = normalizer.All
	}

	exclusive := 0
	for _, set := range []bool{*commentsFlag >= 0, *allComments, *noComments} {
		if set {
			exclusive++
		}
	}
	if exclusive > 1 {
		return errors.New("--comments, --all-comments, and --no-comments are mutually exclusive")
	}
	switch {
	case *noComments:
		opts.commentLimit = 0
	case *commentsFlag >= 0:
		opts.commentLimit = *commentsFlag
	default:
		opts.commentLimit = normalizer.All
	}

	if s, ok := canonicalSort(opts.sort); ok {
		opts.sort = s
	} else {
		return fmt.Errorf("invalid sort order %q (choose from %s)", opts.sort, strings.Join(validSorts, ", "))
	}
	switch opts.downloadScope {
	case "", "post", "comments", "both":
	default:
		return fmt.Errorf("invalid --download-media scope %q (choose post, comments, or both)", opts.downloadScope)
	}

	if opts.url == "" {
		opts.interactive = true
		fmt.Println("--- Reddit Content Extractor: Interactive Mode ---")
		p := &prompter{in: bufio.NewReader(os.Stdin)}
		opts.url = p.url()
		opts.commentLimit = p.commentLimit()
		if opts.commentLimit != 0 {
			opts.sort = p.sortOrder()
			opts.sortSet = true
			opts.depth = p.depthLimit()
		}
		opts.output = p.outputFile()
		opts.printToConsole = p.printToConsole()
		opts.includeRawMedia = p.includeRawMedia()
	}

	return extract(context.Background(), opts)
}

func extract(ctx context.Context, opts runOptions) error {
	if !util.ValidateThreadURL(opts.url) {
		return fmt.Errorf("invalid Reddit URL: %s", opts.url)
	}
	sourceURL, err := util.NormalizeThreadURL(opts.url)
	if err != nil {
		return fmt.Errorf("invalid Reddit URL: %w", err)
	}
	postID := util.ExtractPostID(sourceURL)
	if postID == "" {
		return fmt.Errorf("could not extract post ID from URL: %s", opts.url)
	}
	slog.Info("Starting extraction", "post_id", postID, "url", sourceURL,
		"comment_limit", opts.commentLimit, "sort", opts.sort, "depth", opts.depth)

	cfg, err := config.Load()
	if err != nil {
		if opts.interactive {
			printConfigGuidance(err)
			return errors.New("configuration incomplete")
		}
		return fmt.Errorf("loading configuration: %w", err)
	}

	if !opts.sortSet && cfg.DefaultSort != "" {
		opts.sort = cfg.DefaultSort
	}

	client := reddit.New(cfg)
	thread, err := client.FetchThread(ctx, postID, reddit.FetchOptions{
		Sort:          opts.sort,
		TopLevelLimit: opts.commentLimit,
		Depth:         opts.depth,
	})
	if err != nil {
		return describeFetchError(err, postID)
	}
	slog.Info("Thread fetched", "title", thread.Post.Title, "raw_comments", len(thread.Comments))

	comments := normalizer.Normalize(thread.Comments, normalizer.Options{
		MaxTopLevel: opts.commentLimit,
		MaxDepth:    opts.depth,
	})

	mediaInfo := media.ExtractMediaInfo(&thread.Post)
	doc, err := document.Assemble(&thread.Post, comments, sourceURL, document.Options{
		MediaInfo:  mediaInfo,
		IncludeRaw: opts.includeRawMedia,
	})
	if err != nil {
		return err
	}

	if opts.printToConsole {
		return document.Print(doc)
	}

	savedPath, err := saveDocument(doc, cfg.OutputDir, opts.output)
	if err != nil {
		return err
	}
	fmt.Printf("Data saved to %s\n", savedPath)

	return handleMediaDownload(ctx, opts, cfg, thread, mediaInfo, savedPath)
}

func saveDocument(doc *models.Document, outputDir, explicitName string) (string, error) {
	if explicitName == "" {
		return document.Save(doc, outputDir)
	}
	if !strings.HasSuffix(strings.ToLower(explicitName), ".json") {
		explicitName += ".json"
	}
	path := explicitName
	if !filepath.IsAbs(path) {
		path = filepath.Join(outputDir, explicitName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return document.SaveTo(doc, path)
}

// handleMediaDownload collects downloadable URLs and fetches them, either on
// explicit --download-media scope or after an interactive confirmation.
func handleMediaDownload(ctx context.Context, opts runOptions, cfg *config.Config, thread *reddit.Thread, mediaInfo []models.MediaItem, savedPath string) error {
	scope := opts.downloadScope
	postURLs := media.PostMediaURLs(mediaInfo)
	var commentURLs []string
	if opts.commentLimit != 0 {
		commentURLs = media.CommentMediaURLs(thread.Comments, normalizer.Options{
			MaxTopLevel: opts.commentLimit,
			MaxDepth:    opts.depth,
		})
	}
	if len(postURLs) == 0 && len(commentURLs) == 0 {
		return nil
	}

	if scope == "" {
		if !opts.interactive {
			return nil
		}
		switch {
		case len(postURLs) > 0 && len(commentURLs) > 0:
			fmt.Println("Media detected in both the main post and comments.")
		case len(postURLs) > 0:
			fmt.Println("Media detected in the main post.")
		default:
			fmt.Println("Media detected in the comments.")
		}
		p := &prompter{in: bufio.NewReader(os.Stdin)}
		if !p.confirmMediaDownload() {
			return nil
		}
		scope = p.mediaDownloadScope()
	}

	var urls []string
	switch scope {
	case "post":
		urls = postURLs
	case "comments":
		urls = commentURLs
	case "both":
		urls = append(urls, postURLs...)
		seen := make(map[string]bool, len(urls))
		for _, u := range urls {
			seen[u] = true
		}
		for _, u := range commentURLs {
			if !seen[u] {
				urls = append(urls, u)
			}
		}
	}
	if len(urls) == 0 {
		slog.Info("No downloadable media for the requested scope", "scope", scope)
		return nil
	}

	dir := strings.TrimSuffix(savedPath, filepath.Ext(savedPath))
	d := media.NewDownloader(cfg.UserAgent)
	saved, err := d.Download(ctx, urls, dir)
	if err != nil {
		return fmt.Errorf("media download: %w", err)
	}
	fmt.Printf("Downloaded %d of %d media item(s) to %s\n", saved, len(urls), dir)
	return nil
}

// describeFetchError maps API sentinel errors to actionable messages.
func describeFetchError(err error, postID string) error {
	switch {
	case errors.Is(err, reddit.ErrNotFound):
		return fmt.Errorf("post %s was not found; it may be deleted, private, or the URL is wrong: %w", postID, err)
	case errors.Is(err, reddit.ErrAuth):
		return fmt.Errorf("Reddit rejected the configured credentials; check REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET: %w", err)
	case errors.Is(err, reddit.ErrRateLimited):
		return fmt.Errorf("Reddit is rate limiting requests; wait a few minutes and try again: %w", err)
	default:
		return err
	}
}

func printConfigGuidance(err error) {
	fmt.Fprintln(os.Stderr, "\n--- Configuration Required ---")
	fmt.Fprintln(os.Stderr, "It looks like the extractor is not configured correctly.")
	fmt.Fprintf(os.Stderr, "Error details: %v\n", err)
	fmt.Fprintln(os.Stderr, "Please create a .env file next to the binary containing:")
	fmt.Fprintln(os.Stderr, `  REDDIT_CLIENT_ID="YOUR_CLIENT_ID"`)
	fmt.Fprintln(os.Stderr, `  REDDIT_CLIENT_SECRET="YOUR_CLIENT_SECRET"`)
	fmt.Fprintln(os.Stderr, `  REDDIT_USER_AGENT="YourAppName/1.0 by /u/YourRedditUsername"`)
	fmt.Fprintln(os.Stderr, "Register an application at https://www.reddit.com/prefs/apps to obtain credentials.")
	fmt.Fprintln(os.Stderr, "----------------------------")
}

// setupLogging installs the default slog handler: text to stdout, optionally
// teed to a log file. The returned closer is nil when no file is in use.
func setupLogging(verbose bool, logFile string) (func() error, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	var closer func() error
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
			return nil, err
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = f.Close
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return closer, nil
}
