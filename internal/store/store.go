// Package store is the document store client: path-addressed JSON documents
// read with Get, replaced with Set and shallow-merged with Update.
package store

import (
	"context"
	"encoding/json"
	"strings"
)

// Store is implemented by the Firebase REST client and the in-memory tree.
// Get returns a nil document when nothing is stored at path.
type Store interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, data interface{}) error
	Update(ctx context.Context, path string, data interface{}) error
}

// Join builds a store path from segments, e.g. Join("users", "42") == "users/42".
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

func isNull(body []byte) bool {
	s := strings.TrimSpace(string(body))
	return s == "" || s == "null"
}
