package leasingsync

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// domoClient pulls dataset exports from the Domo API using client-credential
// OAuth. One token is shared across datasets and refreshed ahead of expiry.
type domoClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	interval     time.Duration

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
	nextExport  time.Time
}

func newDomoClient() (*domoClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("DOMO_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.domo.com"
	}
	clientID := strings.TrimSpace(os.Getenv("DOMO_CLIENT_ID"))
	clientSecret := strings.TrimSpace(os.Getenv("DOMO_CLIENT_SECRET"))
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("domo client credentials are empty")
	}
	rateLimitPerMin := int64(30)
	if v := strings.TrimSpace(os.Getenv("DOMO_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &domoClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: 60 * time.Second},
		interval:     interval,
	}, nil
}

// throttle spaces export calls at the configured per-minute rate. Slots are
// reserved under the lock and waited out after releasing it, so concurrent
// exports queue instead of bursting; nothing stays running between calls.
func (c *domoClient) throttle(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	slot := c.nextExport
	if slot.Before(now) {
		slot = now
	}
	c.nextExport = slot.Add(c.interval)
	c.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// datasetID resolves the provider-side dataset id for a payload key, e.g.
// DOMO_DATASET_MMRDATA for "MMRData".
func datasetID(key string) (string, error) {
	envKey := "DOMO_DATASET_" + strings.ToUpper(key)
	id := strings.TrimSpace(os.Getenv(envKey))
	if id == "" {
		return "", fmt.Errorf("missing %s", envKey)
	}
	return id, nil
}

type domoTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *domoClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	params := url.Values{"grant_type": {"client_credentials"}, "scope": {"data"}}
	endpoint := c.baseURL + "/oauth/token?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("domo token error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed domoTokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.AccessToken == "" {
		return "", errors.New("domo token response missing access_token")
	}

	c.accessToken = parsed.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// exportDataset downloads one dataset as CSV (with header row) and converts
// it to raw rows keyed by the export's headers.
func (c *domoClient) exportDataset(ctx context.Context, key string) ([]RawRow, error) {
	id, err := datasetID(key)
	if err != nil {
		return nil, err
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	endpoint := c.baseURL + "/v1/datasets/" + url.PathEscape(id) + "/data?includeHeader=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/csv")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("domo export error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return parseCSVRows(resp.Body)
}

// parseCSVRows reads a headered CSV stream into raw rows. Ragged records are
// tolerated: short rows simply omit the trailing columns.
func parseCSVRows(r io.Reader) ([]RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rows []RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(RawRow, len(header))
		for i, h := range header {
			if i >= len(record) {
				break
			}
			row[strings.TrimSpace(h)] = record[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
