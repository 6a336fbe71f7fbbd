// Package identity decides which stored account an OAuth payload belongs to
// and folds duplicate account records together.
package identity

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"
)

// Account is one stored login. Token fields are plaintext in memory; stores
// decide how they are kept at rest.
type Account struct {
	ID           string                     `json:"id"`
	Provider     string                     `json:"provider"`
	Email        string                     `json:"email,omitempty"`
	UserID       string                     `json:"user_id,omitempty"`
	Login        string                     `json:"login,omitempty"`
	DisplayName  string                     `json:"display_name,omitempty"`
	ResourceARN  string                     `json:"resource_arn,omitempty"` // Provider-issued resource identifier
	AccessToken  string                     `json:"access_token,omitempty"`
	RefreshToken string                     `json:"refresh_token,omitempty"`
	TokenType    string                     `json:"token_type,omitempty"`
	Scopes       []string                   `json:"scopes,omitempty"`
	ExpiresAt    time.Time                  `json:"expires_at,omitzero"`
	ServerURL    string                     `json:"server_url,omitempty"`
	Tags         []string                   `json:"tags,omitempty"`
	CreatedAt    time.Time                  `json:"created_at,omitzero"`
	LastUsed     time.Time                  `json:"last_used,omitzero"`
	Raw          map[string]json.RawMessage `json:"raw,omitempty"` // Provider snapshots, opaque here
}

// Label is how an editor shows the account.
func (a Account) Label() string {
	for _, s := range []string{a.Login, a.Email, a.DisplayName, a.UserID} {
		if s != "" {
			return s
		}
	}
	return a.ID
}

// Clone returns a deep copy.
func (a Account) Clone() Account {
	a.Scopes = slices.Clone(a.Scopes)
	a.Tags = slices.Clone(a.Tags)
	a.Raw = maps.Clone(a.Raw)
	return a
}

func normEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
