package service

import (
	"strings"

	models "storefront-cart/model"
)

// NewCartReference splits a raw identifier at its first '?'.
func NewCartReference(raw string) models.CartReference {
	prefix, _, _ := strings.Cut(raw, "?")
	return models.CartReference{Raw: raw, Normalized: prefix}
}

// ResolveCandidates returns the identifiers to try, in order: the raw token,
// then the part before the first '?' when the token has a suffix. The suffix
// may carry an access key the remote service needs, so the full token goes
// first. An empty prefix is never a candidate.
func ResolveCandidates(raw string) []string {
	if raw == "" {
		return nil
	}
	ref := NewCartReference(raw)
	if !ref.HasSuffix() || ref.Normalized == "" {
		return []string{raw}
	}
	return []string{raw, ref.Normalized}
}
