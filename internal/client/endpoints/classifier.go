// Package endpoints decides which outbound requests carry the access token.
//
// Matching is substring containment, not prefix or exact match: a path
// that embeds a public fragment anywhere ("/api/v2/services/42/") is
// public. Existing callers rely on that, so it is kept even where it is
// surprising.
package endpoints

import "strings"

// DefaultPublicPaths are reachable without authentication.
var DefaultPublicPaths = []string{
	"/register/",
	"/login/",
	"/token/refresh/",
	"/services/",
	"/team/",
	"/contact/",
	"/reviews/",
}

// Classifier reports whether a request target requires authentication.
type Classifier struct {
	public []string
}

// NewClassifier builds a Classifier over the given public fragments. A nil
// slice means DefaultPublicPaths; empty fragments are ignored since they
// would match every path.
func NewClassifier(public []string) *Classifier {
	if public == nil {
		public = DefaultPublicPaths
	}
	c := &Classifier{public: make([]string, 0, len(public))}
	for _, p := range public {
		if p != "" {
			c.public = append(c.public, p)
		}
	}
	return c
}

// RequiresAuth is false when path contains any public fragment.
func (c *Classifier) RequiresAuth(path string) bool {
	for _, p := range c.public {
		if strings.Contains(path, p) {
			return false
		}
	}
	return true
}

// PublicPaths returns a copy of the configured fragments.
func (c *Classifier) PublicPaths() []string {
	return append([]string(nil), c.public...)
}
