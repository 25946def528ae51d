package session

import (
	"crypto/sha256"
	"fmt"
	"path"
)

// PrivacyFilter applies masking and client-based filtering to closed
// sessions before they leave the process over the network. The zero value
// is a no-op filter. The output file is never filtered.
type PrivacyFilter struct {
	MaskClientIDs  bool
	AllowedClients []string
	BlockedClients []string
}

// IsAllowed reports whether a session owned by clientID should be published.
// When AllowedClients is non-empty the id must match at least one glob
// pattern; if it passes the allowlist it must not match any BlockedClients
// pattern.
func (f *PrivacyFilter) IsAllowed(clientID string) bool {
	if len(f.AllowedClients) > 0 {
		allowed := false
		for _, pattern := range f.AllowedClients {
			if matchClient(pattern, clientID) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	for _, pattern := range f.BlockedClients {
		if matchClient(pattern, clientID) {
			return false
		}
	}

	return true
}

// matchClient matches an EDGAR-style client address ("101.81.133.jja")
// against a glob such as "101.81.*". Malformed patterns never match.
func matchClient(pattern, clientID string) bool {
	matched, err := path.Match(pattern, clientID)
	return err == nil && matched
}

// Apply returns a copy of the session with sensitive fields masked according
// to the filter configuration. The original session is never modified.
func (f *PrivacyFilter) Apply(s *Session) *Session {
	masked := *s

	if f.MaskClientIDs && masked.ClientID != "" {
		masked.ClientID = shortHash(masked.ClientID)
	}

	return &masked
}

// FilterSlice returns a new slice containing only the allowed sessions,
// with masking applied to each. The original slice is not modified.
func (f *PrivacyFilter) FilterSlice(sessions []*Session) []*Session {
	result := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		if !f.IsAllowed(s.ClientID) {
			continue
		}
		result = append(result, f.Apply(s))
	}
	return result
}

// IsNoop reports whether the filter does nothing.
func (f *PrivacyFilter) IsNoop() bool {
	return !f.MaskClientIDs && len(f.AllowedClients) == 0 && len(f.BlockedClients) == 0
}

// shortHash returns a truncated SHA-256 hex digest for an opaque identifier.
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:6])
}
