package ratelimit

import (
	"net/http"
	"strings"
)

// Anonymous is the bucket shared by clients that send no forwarding header.
const Anonymous = "anonymous"

// ClientKey returns the first address of the X-Forwarded-For chain, which
// the edge proxy sets to the original client.  Requests without the header
// all share the Anonymous bucket.
func ClientKey(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return Anonymous
	}
	first, _, _ := strings.Cut(xff, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return Anonymous
	}
	return first
}
