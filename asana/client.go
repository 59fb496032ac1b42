package asana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// client talks to the Asana REST API on behalf of the dashboard frontend.
// A static personal access token (ASANA_ACCESS_TOKEN) is used as-is; when
// OAuth credentials are configured instead, the bearer token is refreshed
// lazily and cached in memory until shortly before it expires.
type client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	refreshToken string
	staticToken  string
	http         *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var (
	defaultClient *client
	clientOnce    sync.Once
)

func getClient() *client {
	clientOnce.Do(func() {
		baseURL := strings.TrimSpace(os.Getenv("ASANA_API_BASE_URL"))
		if baseURL == "" {
			baseURL = "https://app.asana.com/api/1.0"
		}
		tokenURL := strings.TrimSpace(os.Getenv("ASANA_TOKEN_URL"))
		if tokenURL == "" {
			tokenURL = "https://app.asana.com/-/oauth_token"
		}
		defaultClient = &client{
			baseURL:      strings.TrimRight(baseURL, "/"),
			tokenURL:     tokenURL,
			clientID:     strings.TrimSpace(os.Getenv("ASANA_CLIENT_ID")),
			clientSecret: strings.TrimSpace(os.Getenv("ASANA_CLIENT_SECRET")),
			refreshToken: strings.TrimSpace(os.Getenv("ASANA_REFRESH_TOKEN")),
			staticToken:  strings.TrimSpace(os.Getenv("ASANA_ACCESS_TOKEN")),
			http:         &http.Client{Timeout: 30 * time.Second},
		}
	})
	return defaultClient
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a bearer token, refreshing the cached OAuth token when it
// is within a minute of expiry.
func (cl *client) token(ctx context.Context) (string, error) {
	if cl.staticToken != "" {
		return cl.staticToken, nil
	}
	if cl.clientID == "" || cl.clientSecret == "" || cl.refreshToken == "" {
		return "", errors.New("asana credentials are not configured")
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.accessToken != "" && time.Now().Before(cl.tokenExpiry.Add(-time.Minute)) {
		return cl.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", cl.clientID)
	form.Set("client_secret", cl.clientSecret)
	form.Set("refresh_token", cl.refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := cl.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.New("asana token refresh failed: " + resp.Status)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	if tr.AccessToken == "" {
		return "", errors.New("asana token response missing access_token")
	}

	cl.accessToken = tr.AccessToken
	cl.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return cl.accessToken, nil
}
