package gigachat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenManager exchanges a master credential for short-lived bearer tokens
// at the vendor OAuth endpoint and caches the result until expiry.
//
// The cached pair {token, expiresAt} is the only cross-request mutable state
// in the proxy; the mutex covers the whole check-and-refresh sequence so
// concurrent requests trigger at most one refresh.
type TokenManager struct {
	masterCredential string
	oauthURL         string
	scope            string
	httpClient       *http.Client
	logger           *slog.Logger
	now              func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   int64 // epoch milliseconds, as reported by the vendor
}

// NewTokenManager builds a token manager. The clock is injectable for tests;
// pass nil to use time.Now.
func NewTokenManager(masterCredential, oauthURL, scope string, httpClient *http.Client, logger *slog.Logger, now func() time.Time) *TokenManager {
	if now == nil {
		now = time.Now
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &TokenManager{
		masterCredential: masterCredential,
		oauthURL:         oauthURL,
		scope:            scope,
		httpClient:       httpClient,
		logger:           logger,
		now:              now,
	}
}

// Token returns a currently-valid bearer token, refreshing it lazily when
// none is held or the held one has expired.
func (tm *TokenManager) Token(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.accessToken != "" && tm.now().UnixMilli() < tm.expiresAt {
		return tm.accessToken, nil
	}

	tm.logger.Info("Access token expired or not set, refreshing")

	if err := tm.refreshLocked(ctx); err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	return tm.accessToken, nil
}

func (tm *TokenManager) refreshLocked(ctx context.Context) error {
	form := url.Values{"scope": {tm.scope}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create oauth request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", "Basic "+tm.masterCredential)

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oauth request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read oauth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oauth endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return fmt.Errorf("unmarshal oauth response: %w", err)
	}

	if token.AccessToken == "" {
		return fmt.Errorf("oauth response missing access_token")
	}

	tm.accessToken = token.AccessToken
	tm.expiresAt = token.ExpiresAt

	tm.logger.Info("Obtained new access token", "expires_at", token.ExpiresAt)

	return nil
}
