package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// CaptchaVerifier checks a client-supplied captcha token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// NoopCaptcha accepts every token. It is used when no secret is configured.
type NoopCaptcha struct{}

func (NoopCaptcha) Verify(context.Context, string, string) (bool, error) { return true, nil }

// Recaptcha verifies tokens against Google's siteverify endpoint.
type Recaptcha struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
}

// NewCaptchaVerifier returns a Recaptcha verifier, or NoopCaptcha when
// secret is empty.
func NewCaptchaVerifier(secret, verifyURL string) CaptchaVerifier {
	if secret == "" {
		return NoopCaptcha{}
	}
	return &Recaptcha{
		secret:    secret,
		verifyURL: verifyURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify returns false for an empty token without calling the provider.
// Transport or provider failures are returned as errors; callers treat
// them as a failed check.
func (r *Recaptcha) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	form := url.Values{"secret": {r.secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("captcha provider returned status %d", resp.StatusCode)
	}
	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	if !out.Success {
		log.Debug("captcha rejected", "codes", out.ErrorCodes)
	}
	return out.Success, nil
}
