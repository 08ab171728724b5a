package utils

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sonicframe/api/internal/models"
)

// Legacy field names for each media slot, in priority order. Providers have
// shipped all of these shapes at one point or another; the first non-empty
// value wins per slot.
var (
	imageFields = []string{
		"image",
		"image_url",
		"imageUrl",
		"metadata.image",
		"metadata.image_url",
		"image_original_url",
		"media.image",
	}
	audioFields = []string{
		"audio",
		"audio_url",
		"audioUrl",
		"metadata.audio",
		"metadata.audio_url",
		"properties.audio",
		"media.audio",
	}
	animationFields = []string{
		"animation_url",
		"animationUrl",
		"metadata.animation_url",
		"metadata.animation",
		"animation",
		"media.video",
	}
	nameFields = []string{
		"name",
		"title",
		"metadata.name",
		"metadata.title",
	}
)

// NormalizeNFTJSON maps a raw provider payload into the canonical NormalizedNFT
// shape. It never fails: unknown shapes simply yield empty slots, which the
// fingerprinter handles with its token fallback.
func NormalizeNFTJSON(raw []byte) models.NormalizedNFT {
	doc := gjson.ParseBytes(raw)

	return models.NormalizedNFT{
		Contract:     firstString(doc, "contract", "contract_address", "contractAddress", "collection.address"),
		TokenID:      firstString(doc, "token_id", "tokenId", "id.tokenId", "identifier"),
		Chain:        firstString(doc, "chain", "chain_id", "chainId", "blockchain"),
		Name:         firstString(doc, nameFields...),
		Image:        firstString(doc, imageFields...),
		Audio:        firstString(doc, audioFields...),
		AnimationURL: firstString(doc, animationFields...),
	}
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := strings.TrimSpace(doc.Get(path).String()); v != "" {
			return v
		}
	}
	return ""
}
