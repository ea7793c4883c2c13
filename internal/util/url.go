package util

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	standardThreadPattern = regexp.MustCompile(`^https?://(?:www\.|old\.)?reddit\.com/r/\w+/comments/\w+(?:/[^\s/?#]*)*/?(?:\?[^\s#]*)?(?:#\S*)?$`)
	shortThreadPattern    = regexp.MustCompile(`^https?://(?:www\.)?redd\.it/\w+/?(?:\?[^\s#]*)?(?:#\S*)?$`)

	postIDPattern      = regexp.MustCompile(`/comments/(\w+)(?:/|$)`)
	shortPostIDPattern = regexp.MustCompile(`redd\.it/(\w+)(?:/|$|\?)`)
)

// ValidateThreadURL reports whether rawURL matches a known Reddit post URL
// form: standard (www.reddit.com), old (old.reddit.com), or short (redd.it),
// with optional query parameters or fragments.
func ValidateThreadURL(rawURL string) bool {
	return standardThreadPattern.MatchString(rawURL) || shortThreadPattern.MatchString(rawURL)
}

// ExtractPostID pulls the post ID out of a Reddit thread URL. Returns the
// empty string when the URL does not validate or no ID can be found.
func ExtractPostID(rawURL string) string {
	if !ValidateThreadURL(rawURL) {
		return ""
	}
	if m := postIDPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	if m := shortPostIDPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

var redditDomains = []string{
	"reddit.com",
	"www.reddit.com",
	"old.reddit.com",
	"redd.it",
	"www.redd.it",
}

func isRedditDomain(host string) bool {
	for _, d := range redditDomains {
		if host == d {
			return true
		}
	}
	return false
}

// NormalizeThreadURL canonicalizes a Reddit thread URL: forces HTTPS, maps
// old.reddit.com to www.reddit.com, and strips tracking query parameters.
// Non-Reddit URLs are returned unchanged.
func NormalizeThreadURL(rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, err
	}

	if !isRedditDomain(parsedURL.Hostname()) {
		return rawURL, nil
	}

	parsedURL.Scheme = "https"
	switch parsedURL.Host {
	case "reddit.com", "old.reddit.com":
		parsedURL.Host = "www.reddit.com"
	case "www.redd.it":
		parsedURL.Host = "redd.it"
	}
	if len(parsedURL.Path) > 1 && strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path = parsedURL.Path[:len(parsedURL.Path)-1]
		parsedURL.RawPath = ""
	}
	queryParams := parsedURL.Query()
	trackingParams := []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "context", "ref", "ref_source", "share_id"}
	for _, param := range trackingParams {
		queryParams.Del(param)
	}
	parsedURL.RawQuery = queryParams.Encode()
	parsedURL.Fragment = ""
	return parsedURL.String(), nil
}
