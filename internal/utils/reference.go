package utils

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sonicframe/api/internal/models"
)

// Hosts that serve Arweave transactions at the path root.
var arweaveHosts = map[string]bool{
	"arweave.net": true,
	"arweave.dev": true,
	"ar-io.net":   true,
	"ar-io.dev":   true,
}

// ParseReference parses a raw media field into a MediaReference. Gateway URL
// forms of content-addressed data (path and subdomain style) are collapsed to
// the bare content identifier so the same content parses identically no matter
// which gateway the provider happened to embed.
func ParseReference(raw string) (models.MediaReference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.MediaReference{}, fmt.Errorf("empty media reference")
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "ipfs://"):
		id := strings.TrimPrefix(raw[len("ipfs://"):], "ipfs/")
		id = strings.Trim(id, "/")
		if id == "" {
			return models.MediaReference{}, fmt.Errorf("ipfs reference missing content id")
		}
		return models.MediaReference{Scheme: models.SchemeIPFS, ID: id}, nil

	case strings.HasPrefix(lower, "ar://"):
		id := strings.Trim(raw[len("ar://"):], "/")
		if id == "" {
			return models.MediaReference{}, fmt.Errorf("arweave reference missing transaction id")
		}
		return models.MediaReference{Scheme: models.SchemeArweave, ID: id}, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return models.MediaReference{}, fmt.Errorf("unparseable media reference %q", raw)
	}

	host := strings.ToLower(u.Hostname())
	path := strings.Trim(u.Path, "/")

	// Path-style IPFS gateway: https://<gw>/ipfs/<cid>[/path]
	if strings.HasPrefix(path, "ipfs/") {
		if id := strings.Trim(strings.TrimPrefix(path, "ipfs/"), "/"); id != "" {
			return models.MediaReference{Scheme: models.SchemeIPFS, ID: id}, nil
		}
	}

	// Subdomain-style IPFS gateway: https://<cid>.ipfs.<gw>/[path]
	if idx := strings.Index(host, ".ipfs."); idx > 0 {
		id := host[:idx]
		if path != "" {
			id = id + "/" + path
		}
		return models.MediaReference{Scheme: models.SchemeIPFS, ID: id}, nil
	}

	if arweaveHosts[host] && path != "" {
		return models.MediaReference{Scheme: models.SchemeArweave, ID: path}, nil
	}

	return models.MediaReference{Scheme: models.SchemeHTTP, URL: raw}, nil
}

// NormalizeReference reduces a raw media field to the string that content
// fingerprints are built from. Content-addressed references normalize to their
// bare identifier; direct URLs to host+path with scheme, query and fragment
// stripped. Malformed input degrades to a best-effort trim instead of failing.
func NormalizeReference(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	ref, err := ParseReference(raw)
	if err != nil {
		return stripURLNoise(raw)
	}

	if ref.IsContentAddressed() {
		return ref.ID
	}

	u, err := url.Parse(ref.URL)
	if err != nil || u.Host == "" {
		return stripURLNoise(ref.URL)
	}
	return strings.ToLower(u.Hostname()) + "/" + strings.Trim(u.Path, "/")
}

// stripURLNoise is the degraded path for strings url.Parse rejects: drop any
// scheme-looking prefix, then everything from the first query or fragment
// marker on.
func stripURLNoise(raw string) string {
	if idx := strings.Index(raw, "://"); idx >= 0 {
		raw = raw[idx+3:]
	}
	if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.Trim(raw, "/")
}
