package reddit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/calebms/reddit-extractor/internal/config"
	"github.com/calebms/reddit-extractor/internal/util"
)

const (
	defaultAuthHost   = "https://www.reddit.com"
	defaultAPIHost    = "https://oauth.reddit.com"
	defaultPublicHost = "https://www.reddit.com"

	// morechildren accepts at most 100 child IDs per call.
	moreChildrenBatchSize = 100
)

// Unbounded disables a fetch limit.
const Unbounded = -1

var (
	// ErrNotFound means the post is deleted, private, or does not exist.
	ErrNotFound = errors.New("post not found")
	// ErrAuth means credentials were rejected; the user should reauthenticate.
	ErrAuth = errors.New("authentication failed")
	// ErrRateLimited means the API asked us to slow down.
	ErrRateLimited = errors.New("rate limited")
)

// FetchOptions controls a single thread fetch. Sort is the user-facing sort
// order, passed through to the API (the normalizer treats ordering as
// opaque). A TopLevelLimit of zero fetches the post only, skipping the
// comment forest and placeholder expansion entirely; negative means
// unbounded. Positive values and Depth are fetch-size hints; the
// authoritative truncation happens in the normalizer.
type FetchOptions struct {
	Sort          string
	TopLevelLimit int
	Depth         int
}

// Client talks to the Reddit JSON API. With credentials configured it uses
// an app-only OAuth2 token against oauth.reddit.com; without, it falls back
// to the public JSON endpoints at stricter rate limits.
type Client struct {
	httpClient      *http.Client
	creds           config.Credentials
	maxRetries      int
	maxMoreRequests int
	limiter         *rate.Limiter

	authHost string
	apiHost  string

	token       string
	tokenExpiry time.Time
}

// New creates a Client from the application configuration.
func New(cfg *config.Config) *Client {
	apiHost := defaultAPIHost
	if cfg.ClientID == "" {
		apiHost = defaultPublicHost
	}
	return &Client{
		httpClient:      &http.Client{Timeout: cfg.RequestTimeout},
		creds:           cfg.Credentials,
		maxRetries:      cfg.MaxRetries,
		maxMoreRequests: cfg.MaxMoreRequests,
		limiter:         rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 2),
		authHost:        defaultAuthHost,
		apiHost:         apiHost,
	}
}

// FetchThread retrieves the post and its comment forest, expanding "more"
// placeholders so the caller receives a fully materialized in-memory tree.
func (c *Client) FetchThread(ctx context.Context, postID string, opts FetchOptions) (*Thread, error) {
	var thread *Thread
	var pending []pendingMore
	byName := make(map[string]*Comment)

	err := util.RetryWithBackoff(ctx, c.maxRetries, func(attempt int) error {
		if attempt > 0 {
			slog.Warn("Retrying thread fetch", "post_id", postID, "attempt", attempt)
		}
		t, more, names, err := c.fetchThreadOnce(ctx, postID, opts)
		if err != nil {
			return err
		}
		thread, pending, byName = t, more, names
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch thread %s: %w", postID, err)
	}

	c.expandPlaceholders(ctx, thread, byName, pending)
	return thread, nil
}

// pendingMore is a "more" placeholder queued for expansion, remembering the
// sibling position it occupied so expanded comments can be spliced back in
// listing order.
type pendingMore struct {
	more  rawMore
	index int
}

func (c *Client) fetchThreadOnce(ctx context.Context, postID string, opts FetchOptions) (*Thread, []pendingMore, map[string]*Comment, error) {
	query := url.Values{}
	query.Set("raw_json", "1")
	query.Set("sort", apiSort(opts.Sort))
	if opts.TopLevelLimit == 0 {
		// Post-only fetch; request the smallest listing the API allows.
		query.Set("limit", "1")
		query.Set("depth", "1")
	} else {
		if opts.TopLevelLimit > 0 {
			// Over-fetch to compensate for placeholder entries in the first page.
			query.Set("limit", fmt.Sprint(opts.TopLevelLimit*2))
		}
		if opts.Depth >= 0 {
			query.Set("depth", fmt.Sprint(opts.Depth+1))
		}
	}

	var payload []thing
	if err := c.get(ctx, "/comments/"+postID+".json", query, &payload); err != nil {
		return nil, nil, nil, err
	}
	if len(payload) < 2 {
		return nil, nil, nil, fmt.Errorf("unexpected thread response shape (%d listings)", len(payload))
	}

	post, err := parsePostListing(payload[0])
	if err != nil {
		return nil, nil, nil, err
	}
	if post.Title == "" && post.Author == "" {
		return nil, nil, nil, fmt.Errorf("%w: post %s is deleted, private, or inaccessible", ErrNotFound, postID)
	}
	if opts.TopLevelLimit == 0 {
		return &Thread{Post: post}, nil, nil, nil
	}

	var commentListing listingData
	if err := json.Unmarshal(payload[1].Data, &commentListing); err != nil {
		return nil, nil, nil, fmt.Errorf("parse comment listing: %w", err)
	}

	byName := make(map[string]*Comment)
	roots, pending := parseForest(commentListing.Children, byName)
	return &Thread{Post: post, Comments: roots}, pending, byName, nil
}

func parsePostListing(t thing) (Post, error) {
	var ld listingData
	if err := json.Unmarshal(t.Data, &ld); err != nil {
		return Post{}, fmt.Errorf("parse post listing: %w", err)
	}
	if len(ld.Children) == 0 {
		return Post{}, fmt.Errorf("%w: empty post listing", ErrNotFound)
	}
	var rp rawPost
	if err := json.Unmarshal(ld.Children[0].Data, &rp); err != nil {
		return Post{}, fmt.Errorf("parse post: %w", err)
	}
	return rp.toPost(), nil
}

// parseForest converts listing children into comment nodes, registering each
// by fullname and collecting "more" placeholders for later expansion. A
// placeholder's queue entry records how many siblings preceded it, so the
// expansion can splice its comments back where the placeholder sat.
func parseForest(children []thing, byName map[string]*Comment) ([]*Comment, []pendingMore) {
	var comments []*Comment
	var pending []pendingMore
	for _, child := range children {
		switch child.Kind {
		case "t1":
			var rc rawComment
			if err := json.Unmarshal(child.Data, &rc); err != nil {
				slog.Warn("Skipping unparseable comment", "error", err)
				continue
			}
			node := rc.toComment()
			byName[node.Name] = node
			if nested := decodeReplies(rc.Replies); nested != nil {
				var nestedPending []pendingMore
				node.Children, nestedPending = parseForest(nested, byName)
				pending = append(pending, nestedPending...)
			}
			comments = append(comments, node)
		case "more":
			var rm rawMore
			if err := json.Unmarshal(child.Data, &rm); err != nil {
				slog.Warn("Skipping unparseable placeholder", "error", err)
				continue
			}
			pending = append(pending, pendingMore{more: rm, index: len(comments)})
		default:
			slog.Debug("Ignoring unexpected listing child", "kind", child.Kind)
		}
	}
	return comments, pending
}

// decodeReplies unwraps a comment's replies field, which is either the empty
// string or a nested listing.
func decodeReplies(raw json.RawMessage) []thing {
	if len(raw) == 0 || bytes.Equal(raw, []byte(`""`)) || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var t thing
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil
	}
	var ld listingData
	if err := json.Unmarshal(t.Data, &ld); err != nil {
		return nil
	}
	return ld.Children
}

// expandPlaceholders resolves "more" nodes through /api/morechildren,
// splicing the returned comments into the tree at the sibling position the
// placeholder occupied; descendants of freshly expanded comments are
// appended to their parents in response order. The request budget bounds
// total work; a failed batch is logged and skipped so a partially expanded
// tree is still returned.
func (c *Client) expandPlaceholders(ctx context.Context, thread *Thread, byName map[string]*Comment, queue []pendingMore) {
	linkFullname := thread.Post.Name
	requests := 0

	// siblingsOf resolves the slice an expanded comment belongs to.
	siblingsOf := func(parentName string) *[]*Comment {
		if parentName == linkFullname {
			return &thread.Comments
		}
		if parent, ok := byName[parentName]; ok {
			return &parent.Children
		}
		return nil
	}

	for len(queue) > 0 && requests < c.maxMoreRequests {
		m := queue[0]
		queue = queue[1:]
		if len(m.more.Children) == 0 {
			// "Continue this thread" placeholder; nothing to request.
			continue
		}

		batch := m.more.Children
		var leftover []string
		if len(batch) > moreChildrenBatchSize {
			leftover = batch[moreChildrenBatchSize:]
			batch = batch[:moreChildrenBatchSize]
		}
		requests++

		query := url.Values{}
		query.Set("api_type", "json")
		query.Set("raw_json", "1")
		query.Set("link_id", linkFullname)
		query.Set("children", strings.Join(batch, ","))

		var resp moreChildrenResponse
		err := util.RetryWithBackoff(ctx, c.maxRetries, func(int) error {
			return c.get(ctx, "/api/morechildren.json", query, &resp)
		})
		if err != nil {
			slog.Warn("Placeholder expansion failed, continuing with partial tree", "error", err, "children", len(batch))
			if len(leftover) > 0 {
				remainder := m
				remainder.more.Children = leftover
				queue = append(queue, remainder)
			}
			continue
		}

		pos := m.index
		for _, t := range resp.JSON.Data.Things {
			switch t.Kind {
			case "t1":
				var rc rawComment
				if err := json.Unmarshal(t.Data, &rc); err != nil {
					continue
				}
				node := rc.toComment()
				byName[node.Name] = node
				siblings := siblingsOf(rc.ParentID)
				if siblings == nil {
					slog.Debug("Dropping orphan expanded comment", "id", rc.ID, "parent", rc.ParentID)
					continue
				}
				if rc.ParentID == m.more.ParentID {
					// Direct replacement of the placeholder: splice at its
					// recorded position so sibling order matches upstream.
					pos = min(pos, len(*siblings))
					*siblings = slices.Insert(*siblings, pos, node)
					pos++
				} else {
					*siblings = append(*siblings, node)
				}
			case "more":
				var rm rawMore
				if err := json.Unmarshal(t.Data, &rm); err != nil {
					continue
				}
				idx := 0
				if rm.ParentID == m.more.ParentID {
					idx = pos
				} else if siblings := siblingsOf(rm.ParentID); siblings != nil {
					idx = len(*siblings)
				}
				queue = append(queue, pendingMore{more: rm, index: idx})
			}
		}

		if len(leftover) > 0 {
			remainder := m
			remainder.more.Children = leftover
			remainder.index = pos
			queue = append(queue, remainder)
		}
	}

	if len(queue) > 0 {
		slog.Info("Placeholder expansion budget exhausted", "unexpanded", len(queue))
	}
}

type moreChildrenResponse struct {
	JSON struct {
		Errors []json.RawMessage `json:"errors"`
		Data   struct {
			Things []thing `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// apiSort maps the user-facing sort order to its API parameter value.
func apiSort(sort string) string {
	switch strings.ToLower(sort) {
	case "", "best":
		return "confidence"
	case "qa":
		return "qa"
	default:
		return strings.ToLower(sort)
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiHost+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.creds.UserAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// ensureToken fetches or refreshes the app-only OAuth2 token. Skipped when
// no client ID is configured (unauthenticated mode).
func (c *Client) ensureToken(ctx context.Context) error {
	if c.creds.ClientID == "" {
		return nil
	}
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return nil
	}

	form := url.Values{}
	if c.creds.RefreshToken != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", c.creds.RefreshToken)
	} else {
		form.Set("grant_type", "client_credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authHost+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.creds.UserAgent)
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: token endpoint returned status %d: %s", ErrAuth, resp.StatusCode, truncateBody(body))
	}

	var tok struct {
		AccessToken string  `json:"access_token"`
		TokenType   string  `json:"token_type"`
		ExpiresIn   float64 `json:"expires_in"`
		Error       string  `json:"error"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("unmarshal token response: %w", err)
	}
	if tok.Error != "" || tok.AccessToken == "" {
		return fmt.Errorf("%w: token endpoint error %q", ErrAuth, tok.Error)
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	slog.Debug("Obtained API token", "expires_in", tok.ExpiresIn)
	return nil
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w (status 404)", ErrNotFound)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrAuth, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w (status 429)", ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("server error (status %d): %s", status, truncateBody(body))
	default:
		return fmt.Errorf("API error (status %d): %s", status, truncateBody(body))
	}
}

func truncateBody(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
