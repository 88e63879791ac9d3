// Package gravatar builds avatar fallback URLs for users without an avatar.
package gravatar

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"strings"

	"github.com/iliyamo/runly/internal/config"
)

// GenerateURL returns the Gravatar URL for email, or "" when Gravatar is
// disabled or email is empty. The address is trimmed and lower-cased
// before hashing.
func GenerateURL(email string, cfg *config.GravatarConfig) string {
	if cfg == nil || !cfg.Enabled || email == "" {
		return ""
	}
	email = strings.TrimSpace(strings.ToLower(email))
	hash := sha256.Sum256([]byte(email))
	u := fmt.Sprintf("https://www.gravatar.com/avatar/%x", hash)

	params := url.Values{}
	if cfg.DefaultImage != "" {
		params.Add("d", cfg.DefaultImage)
	}
	if cfg.Rating != "" {
		params.Add("r", cfg.Rating)
	}
	if cfg.Size > 0 {
		params.Add("s", fmt.Sprintf("%d", cfg.Size))
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Avatar returns avatarURL when set, otherwise the Gravatar fallback.
// The result is nil when neither is available.
func Avatar(avatarURL *string, email string, cfg *config.GravatarConfig) *string {
	if avatarURL != nil && *avatarURL != "" {
		return avatarURL
	}
	if u := GenerateURL(email, cfg); u != "" {
		return &u
	}
	return nil
}
