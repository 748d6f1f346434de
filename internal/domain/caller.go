package domain

import "strings"

// Caller is the per-request identity resolved from either a session token or
// an API key. Both resolution paths must converge on this exact shape.
type Caller struct {
	ID                   string
	Email                string
	NotificationsEnabled bool
	CreditBalance        int
}

// API key capabilities. An API key carries an explicit capability list; a
// session token implies all of them.
const (
	CapabilityCreateImage = "create_image"
	CapabilityGetImage    = "get_image"
)

// HasCapability reports whether the capability list contains cap.
func HasCapability(capabilities []string, cap string) bool {
	for _, c := range capabilities {
		if strings.EqualFold(strings.TrimSpace(c), cap) {
			return true
		}
	}
	return false
}

// APIKey is a long-lived, revocable credential usable instead of a session.
type APIKey struct {
	ID           string
	ProfileID    string
	Name         string
	Capabilities []string
	Revoked      bool
}
