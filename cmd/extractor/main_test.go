package main

import (
	"bufio"
	"strings"
	"testing"

	"github.com/calebms/reddit-extractor/internal/normalizer"
)

func newTestPrompter(input string) *prompter {
	return &prompter{in: bufio.NewReader(strings.NewReader(input))}
}

func TestCanonicalSort(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"best", "best", true},
		{"Top", "top", true},
		{"q&a", "qa", true},
		{"qa", "qa", true},
		{"controversial", "controversial", true},
		{"score", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := canonicalSort(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("canonicalSort(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPrompter_CommentLimit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{name: "default is all", input: "\n", want: normalizer.All},
		{name: "all keyword", input: "all\n", want: normalizer.All},
		{name: "no keyword", input: "no\n", want: 0},
		{name: "number", input: "50\n", want: 50},
		{name: "invalid then valid", input: "abc\n-3\n10\n", want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newTestPrompter(tt.input).commentLimit(); got != tt.want {
				t.Errorf("commentLimit() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPrompter_DepthLimit(t *testing.T) {
	if got := newTestPrompter("\n").depthLimit(); got != normalizer.All {
		t.Errorf("Empty input should mean all depths, got %d", got)
	}
	if got := newTestPrompter("3\n").depthLimit(); got != 3 {
		t.Errorf("depthLimit() = %d, want 3", got)
	}
	if got := newTestPrompter("-1\nall\n").depthLimit(); got != normalizer.All {
		t.Errorf("Negative input should re-prompt, got %d", got)
	}
}

func TestPrompter_SortOrder(t *testing.T) {
	if got := newTestPrompter("\n").sortOrder(); got != "best" {
		t.Errorf("Default sort = %q, want best", got)
	}
	if got := newTestPrompter("q&a\n").sortOrder(); got != "qa" {
		t.Errorf("sortOrder() = %q, want qa", got)
	}
	if got := newTestPrompter("score\ntop\n").sortOrder(); got != "top" {
		t.Errorf("Invalid sort should re-prompt, got %q", got)
	}
}

func TestPrompter_URL(t *testing.T) {
	input := "\nnot-a-url\nhttps://www.reddit.com/r/golang/comments/abc123/title/\n"
	got := newTestPrompter(input).url()
	if got != "https://www.reddit.com/r/golang/comments/abc123/title/" {
		t.Errorf("url() = %q", got)
	}
}

func TestPrompter_YesNo(t *testing.T) {
	if newTestPrompter("\n").printToConsole() {
		t.Error("Default should be no")
	}
	if !newTestPrompter("y\n").printToConsole() {
		t.Error("'y' should be yes")
	}
	if newTestPrompter("maybe\nn\n").printToConsole() {
		t.Error("Invalid input should re-prompt then accept 'n'")
	}
}

func TestPrompter_MediaDownloadScope(t *testing.T) {
	if got := newTestPrompter("\n").mediaDownloadScope(); got != "both" {
		t.Errorf("Default scope = %q, want both", got)
	}
	if got := newTestPrompter("everything\npost\n").mediaDownloadScope(); got != "post" {
		t.Errorf("Invalid scope should re-prompt, got %q", got)
	}
}
