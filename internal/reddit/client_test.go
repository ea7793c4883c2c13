package reddit

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"github.com/calebms/reddit-extractor/internal/config"
)

const threadFixture = `[
	{
		"kind": "Listing",
		"data": {"children": [
			{"kind": "t3", "data": {
				"id": "abc123",
				"name": "t3_abc123",
				"title": "A thread",
				"author": "op_user",
				"created_utc": 1700000000,
				"permalink": "/r/golang/comments/abc123/a_thread/",
				"num_comments": 3,
				"subreddit": "golang"
			}}
		]}
	},
	{
		"kind": "Listing",
		"data": {"children": [
			{"kind": "t1", "data": {
				"id": "c1",
				"name": "t1_c1",
				"author": "alice",
				"body": "top comment",
				"parent_id": "t3_abc123",
				"replies": {
					"kind": "Listing",
					"data": {"children": [
						{"kind": "t1", "data": {
							"id": "c2",
							"name": "t1_c2",
							"author": "bob",
							"body": "nested reply",
							"parent_id": "t1_c1",
							"replies": ""
						}}
					]}
				}
			}},
			{"kind": "t1", "data": {
				"id": "c3",
				"name": "t1_c3",
				"author": "carol",
				"body": "second top",
				"parent_id": "t3_abc123",
				"replies": ""
			}},
			{"kind": "more", "data": {
				"count": 1,
				"name": "t1_c4",
				"id": "c4",
				"parent_id": "t3_abc123",
				"children": ["c4"]
			}}
		]}
	}
]`

const moreChildrenFixture = `{
	"json": {
		"errors": [],
		"data": {"things": [
			{"kind": "t1", "data": {
				"id": "c4",
				"name": "t1_c4",
				"author": "dave",
				"body": "late top comment",
				"parent_id": "t3_abc123",
				"replies": ""
			}},
			{"kind": "t1", "data": {
				"id": "c5",
				"name": "t1_c5",
				"author": "erin",
				"body": "reply to late comment",
				"parent_id": "t1_c4",
				"replies": ""
			}}
		]}
	}
}`

// testClient builds an unauthenticated client pointed at a test server with
// rate limiting and retries disabled.
func testClient(serverURL string) *Client {
	return &Client{
		httpClient:      http.DefaultClient,
		creds:           config.Credentials{UserAgent: "extractor-test/1.0"},
		maxRetries:      0,
		maxMoreRequests: 10,
		limiter:         rate.NewLimiter(rate.Inf, 1),
		authHost:        serverURL,
		apiHost:         serverURL,
	}
}

func TestFetchThread_ParsesPostAndForest(t *testing.T) {
	var threadQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/comments/"):
			threadQuery = r.URL.RawQuery
			fmt.Fprint(w, threadFixture)
		case r.URL.Path == "/api/morechildren.json":
			fmt.Fprint(w, moreChildrenFixture)
		default:
			t.Errorf("Unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	thread, err := c.FetchThread(context.Background(), "abc123", FetchOptions{Sort: "best", TopLevelLimit: 2, Depth: 1})
	if err != nil {
		t.Fatalf("FetchThread returned error: %v", err)
	}

	if thread.Post.ID != "abc123" || thread.Post.Title != "A thread" {
		t.Errorf("Post = %+v", thread.Post)
	}
	if !strings.Contains(threadQuery, "sort=confidence") {
		t.Errorf("Sort 'best' should map to confidence, query: %s", threadQuery)
	}
	if !strings.Contains(threadQuery, "raw_json=1") {
		t.Errorf("raw_json=1 missing from query: %s", threadQuery)
	}
	if !strings.Contains(threadQuery, "limit=4") {
		t.Errorf("Limit should over-fetch to 4, query: %s", threadQuery)
	}
	if !strings.Contains(threadQuery, "depth=2") {
		t.Errorf("Depth hint should be requested bound plus one, query: %s", threadQuery)
	}

	// c1 (with nested c2), c3, then the expanded c4.
	if len(thread.Comments) != 3 {
		t.Fatalf("Expected 3 top-level comments after expansion, got %d", len(thread.Comments))
	}
	if thread.Comments[0].ID != "c1" || thread.Comments[1].ID != "c3" {
		t.Errorf("Top-level order = %s, %s", thread.Comments[0].ID, thread.Comments[1].ID)
	}
	if len(thread.Comments[0].Children) != 1 || thread.Comments[0].Children[0].ID != "c2" {
		t.Errorf("Nested reply not attached: %+v", thread.Comments[0].Children)
	}

	expanded := thread.Comments[2]
	if expanded.ID != "c4" {
		t.Fatalf("Expanded comment should be grafted at top level, got %s", expanded.ID)
	}
	if len(expanded.Children) != 1 || expanded.Children[0].ID != "c5" {
		t.Errorf("Expanded reply should be grafted under its parent: %+v", expanded.Children)
	}
}

func TestFetchThread_NotFoundDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"message": "Not Found", "error": 404}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.maxRetries = 3
	_, err := c.FetchThread(context.Background(), "missing", FetchOptions{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if calls != 1 {
		t.Errorf("404 should not be retried, got %d calls", calls)
	}
}

func TestFetchThread_DeletedPostIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"kind": "Listing", "data": {"children": [{"kind": "t3", "data": {"id": "gone", "title": "", "author": ""}}]}},
			{"kind": "Listing", "data": {"children": []}}
		]`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchThread(context.Background(), "gone", FetchOptions{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for deleted post, got %v", err)
	}
}

func TestFetchThread_ForbiddenIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchThread(context.Background(), "private", FetchOptions{})
	if !errors.Is(err, ErrAuth) {
		t.Errorf("Expected ErrAuth, got %v", err)
	}
}

func TestFetchThread_PartialTreeOnExpansionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/comments/") {
			fmt.Fprint(w, threadFixture)
			return
		}
		http.Error(w, "Bad Request", http.StatusBadRequest)
	}))
	defer srv.Close()

	thread, err := testClient(srv.URL).FetchThread(context.Background(), "abc123", FetchOptions{TopLevelLimit: Unbounded, Depth: Unbounded})
	if err != nil {
		t.Fatalf("Expansion failure should not fail the fetch: %v", err)
	}
	if len(thread.Comments) != 2 {
		t.Errorf("Expected the 2 directly fetched comments, got %d", len(thread.Comments))
	}
}

func TestFetchThread_ExpansionPreservesSiblingOrder(t *testing.T) {
	// The placeholder for c2 sits between c1 and c3 in the listing; the
	// expanded comment must land back in that slot, not at the end.
	const fixture = `[
		{
			"kind": "Listing",
			"data": {"children": [
				{"kind": "t3", "data": {
					"id": "abc123",
					"name": "t3_abc123",
					"title": "A thread",
					"author": "op_user",
					"subreddit": "golang"
				}}
			]}
		},
		{
			"kind": "Listing",
			"data": {"children": [
				{"kind": "t1", "data": {
					"id": "c1",
					"name": "t1_c1",
					"author": "alice",
					"body": "first",
					"parent_id": "t3_abc123",
					"replies": ""
				}},
				{"kind": "more", "data": {
					"count": 1,
					"name": "t1_c2",
					"id": "c2",
					"parent_id": "t3_abc123",
					"children": ["c2"]
				}},
				{"kind": "t1", "data": {
					"id": "c3",
					"name": "t1_c3",
					"author": "carol",
					"body": "third",
					"parent_id": "t3_abc123",
					"replies": ""
				}}
			]}
		}
	]`
	const expansion = `{
		"json": {
			"errors": [],
			"data": {"things": [
				{"kind": "t1", "data": {
					"id": "c2",
					"name": "t1_c2",
					"author": "bob",
					"body": "second",
					"parent_id": "t3_abc123",
					"replies": ""
				}}
			]}
		}
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/comments/") {
			fmt.Fprint(w, fixture)
			return
		}
		fmt.Fprint(w, expansion)
	}))
	defer srv.Close()

	thread, err := testClient(srv.URL).FetchThread(context.Background(), "abc123", FetchOptions{TopLevelLimit: Unbounded, Depth: Unbounded})
	if err != nil {
		t.Fatalf("FetchThread returned error: %v", err)
	}
	if len(thread.Comments) != 3 {
		t.Fatalf("Expected 3 top-level comments, got %d", len(thread.Comments))
	}
	for i, want := range []string{"c1", "c2", "c3"} {
		if thread.Comments[i].ID != want {
			t.Errorf("Comments[%d].ID = %s, want %s", i, thread.Comments[i].ID, want)
		}
	}
}

func TestFetchThread_PostOnlySkipsComments(t *testing.T) {
	var threadQuery string
	moreCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/morechildren.json" {
			moreCalls++
			http.Error(w, "should not be called", http.StatusBadRequest)
			return
		}
		threadQuery = r.URL.RawQuery
		fmt.Fprint(w, threadFixture)
	}))
	defer srv.Close()

	thread, err := testClient(srv.URL).FetchThread(context.Background(), "abc123", FetchOptions{TopLevelLimit: 0})
	if err != nil {
		t.Fatalf("FetchThread returned error: %v", err)
	}
	if thread.Post.ID != "abc123" {
		t.Errorf("Post.ID = %s", thread.Post.ID)
	}
	if len(thread.Comments) != 0 {
		t.Errorf("Post-only fetch should return no comments, got %d", len(thread.Comments))
	}
	if !strings.Contains(threadQuery, "limit=1") || !strings.Contains(threadQuery, "depth=1") {
		t.Errorf("Post-only fetch should request the minimal listing, query: %s", threadQuery)
	}
	if moreCalls != 0 {
		t.Errorf("Post-only fetch should not expand placeholders, got %d calls", moreCalls)
	}
}

func TestEnsureToken_ClientCredentialsGrant(t *testing.T) {
	var tokenCalls int
	var authHeader, grantType, bearerUsed string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/access_token":
			tokenCalls++
			authHeader = r.Header.Get("Authorization")
			r.ParseForm()
			grantType = r.FormValue("grant_type")
			fmt.Fprint(w, `{"access_token": "tok123", "token_type": "bearer", "expires_in": 3600}`)
		default:
			bearerUsed = r.Header.Get("Authorization")
			fmt.Fprint(w, threadFixture)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.creds.ClientID = "cid"
	c.creds.ClientSecret = "csecret"

	if _, err := c.FetchThread(context.Background(), "abc123", FetchOptions{}); err != nil {
		t.Fatalf("FetchThread returned error: %v", err)
	}

	wantBasic := "Basic " + base64.StdEncoding.EncodeToString([]byte("cid:csecret"))
	if authHeader != wantBasic {
		t.Errorf("Token request auth = %q, want %q", authHeader, wantBasic)
	}
	if grantType != "client_credentials" {
		t.Errorf("grant_type = %q, want client_credentials", grantType)
	}
	if bearerUsed != "Bearer tok123" {
		t.Errorf("API request should carry the bearer token, got %q", bearerUsed)
	}

	// Token is cached for subsequent fetches.
	if _, err := c.FetchThread(context.Background(), "abc123", FetchOptions{}); err != nil {
		t.Fatalf("Second fetch returned error: %v", err)
	}
	if tokenCalls != 1 {
		t.Errorf("Token should be fetched once and cached, got %d calls", tokenCalls)
	}
}

func TestEnsureToken_RefreshTokenGrant(t *testing.T) {
	var grantType, refreshToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/access_token" {
			r.ParseForm()
			grantType = r.FormValue("grant_type")
			refreshToken = r.FormValue("refresh_token")
			fmt.Fprint(w, `{"access_token": "tok456", "expires_in": 3600}`)
			return
		}
		fmt.Fprint(w, threadFixture)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.creds.ClientID = "cid"
	c.creds.RefreshToken = "rtok"

	if _, err := c.FetchThread(context.Background(), "abc123", FetchOptions{}); err != nil {
		t.Fatalf("FetchThread returned error: %v", err)
	}
	if grantType != "refresh_token" || refreshToken != "rtok" {
		t.Errorf("grant_type = %q, refresh_token = %q", grantType, refreshToken)
	}
}

func TestEnsureToken_RejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid_grant"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.creds.ClientID = "cid"
	_, err := c.FetchThread(context.Background(), "abc123", FetchOptions{})
	if !errors.Is(err, ErrAuth) {
		t.Errorf("Expected ErrAuth from token endpoint, got %v", err)
	}
}

func TestApiSort(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "confidence"},
		{"best", "confidence"},
		{"Best", "confidence"},
		{"top", "top"},
		{"new", "new"},
		{"controversial", "controversial"},
		{"old", "old"},
		{"qa", "qa"},
	}
	for _, tt := range tests {
		if got := apiSort(tt.in); got != tt.want {
			t.Errorf("apiSort(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{404, ErrNotFound},
		{401, ErrAuth},
		{403, ErrAuth},
		{429, ErrRateLimited},
	}
	for _, tt := range tests {
		err := classifyStatus(tt.status, nil)
		if !errors.Is(err, tt.sentinel) {
			t.Errorf("classifyStatus(%d) = %v, want %v sentinel", tt.status, err, tt.sentinel)
		}
	}

	if err := classifyStatus(503, []byte("upstream down")); err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Errorf("classifyStatus(503) = %v", err)
	}
}

func TestDecodeReplies(t *testing.T) {
	if got := decodeReplies([]byte(`""`)); got != nil {
		t.Errorf("Empty-string replies should decode to nil, got %v", got)
	}
	if got := decodeReplies(nil); got != nil {
		t.Errorf("Missing replies should decode to nil, got %v", got)
	}
	nested := []byte(`{"kind": "Listing", "data": {"children": [{"kind": "t1", "data": {"id": "x"}}]}}`)
	if got := decodeReplies(nested); len(got) != 1 || got[0].Kind != "t1" {
		t.Errorf("Nested listing should decode to its children, got %v", got)
	}
}
