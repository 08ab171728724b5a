package models

// RefScheme identifies how a media reference locates its content.
type RefScheme string

const (
	SchemeIPFS    RefScheme = "ipfs"
	SchemeArweave RefScheme = "arweave"
	SchemeHTTP    RefScheme = "http"
)

// MediaReference is a parsed media URL. For content-addressed schemes ID holds
// the bare content identifier (CID or Arweave transaction id); for direct HTTP
// references URL holds the original location.
type MediaReference struct {
	Scheme RefScheme
	ID     string
	URL    string
}

// IsContentAddressed reports whether the reference must be resolved through a
// gateway rather than fetched directly.
func (r MediaReference) IsContentAddressed() bool {
	return r.Scheme == SchemeIPFS || r.Scheme == SchemeArweave
}

// NormalizedNFT is the canonical token shape produced at the system boundary.
// Provider metadata carries the same concept under many legacy field names;
// normalization happens exactly once so everything downstream only ever sees
// this struct.
type NormalizedNFT struct {
	Contract     string `json:"contract"`
	TokenID      string `json:"token_id"`
	Chain        string `json:"chain,omitempty"`
	Name         string `json:"name,omitempty"`
	Image        string `json:"image,omitempty"`
	Audio        string `json:"audio,omitempty"`
	AnimationURL string `json:"animation_url,omitempty"`
}
