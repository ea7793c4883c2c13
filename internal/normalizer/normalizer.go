// Package normalizer turns the raw comment forest returned by the API
// client into ordered, depth-bounded comment records. It is the only stage
// with real invariants: depth arithmetic, sibling order, and truncation
// semantics all live here.
package normalizer

import (
	"strings"

	"github.com/calebms/reddit-extractor/internal/models"
	"github.com/calebms/reddit-extractor/internal/reddit"
)

// All disables a bound.
const All = -1

// Options bounds the walk. MaxTopLevel is the number of top-level comments
// to keep (prefix cut in upstream order; 0 keeps none). MaxDepth is the
// zero-indexed depth at which replies are forced empty: 0 keeps top-level
// comments but none of their replies.
type Options struct {
	MaxTopLevel int
	MaxDepth    int
}

type frame struct {
	raw  *reddit.Comment
	node *models.Comment
}

// Normalize walks the fully materialized raw forest and produces normalized
// comment nodes. The walk is pure: the input is never mutated, the output
// is deterministic, and no I/O occurs. Depth is assigned by the walk itself,
// roots at 0 and each child exactly one deeper than its parent. Sibling
// order is preserved as given; ordering policy belongs to the upstream sort
// request.
//
// The walk uses an explicit worklist rather than recursion so adversarially
// deep threads cannot exhaust the call stack.
func Normalize(roots []*reddit.Comment, opts Options) []*models.Comment {
	take := len(roots)
	if opts.MaxTopLevel >= 0 && opts.MaxTopLevel < take {
		take = opts.MaxTopLevel
	}

	out := make([]*models.Comment, take)
	var stack []frame
	for i := take - 1; i >= 0; i-- {
		node := newNode(roots[i], 0)
		out[i] = node
		stack = append(stack, frame{raw: roots[i], node: node})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// At the depth bound the children sequence is forced empty even if
		// the raw tree goes deeper. Truncated nodes are indistinguishable
		// from genuinely childless ones; that ambiguity is intentional.
		if opts.MaxDepth >= 0 && f.node.Depth >= opts.MaxDepth {
			continue
		}

		children := make([]frame, 0, len(f.raw.Children))
		for _, rawChild := range f.raw.Children {
			child := newNode(rawChild, f.node.Depth+1)
			f.node.Replies = append(f.node.Replies, child)
			children = append(children, frame{raw: rawChild, node: child})
		}
		// Push in reverse so siblings pop in upstream order; ordering of
		// reply slices is already fixed by the appends above.
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	return out
}

// newNode projects a raw comment handle into a normalized record. Missing
// author or body on removed content maps to sentinel values; such comments
// are surfaced, never dropped, so reply counts stay faithful to upstream.
func newNode(raw *reddit.Comment, depth int) *models.Comment {
	author := raw.Author
	if author == "" {
		author = models.DeletedSentinel
	}
	body := raw.Body
	if body == "" && raw.Author == "" {
		body = models.DeletedSentinel
	}
	permalink := raw.Permalink
	if strings.HasPrefix(permalink, "/") {
		permalink = "https://www.reddit.com" + permalink
	}
	return &models.Comment{
		ID:          raw.ID,
		Author:      author,
		Body:        body,
		CreatedUTC:  raw.CreatedUTC,
		Score:       raw.Score,
		IsSubmitter: raw.IsSubmitter,
		Stickied:    raw.Stickied,
		ParentID:    raw.ParentID,
		Permalink:   permalink,
		Depth:       depth,
		Replies:     []*models.Comment{},
	}
}
