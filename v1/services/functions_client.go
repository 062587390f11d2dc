package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/concierge-tc/portal-backend/shared/errors"
	"github.com/concierge-tc/portal-backend/shared/monitoring"
	"github.com/concierge-tc/portal-backend/shared/utils"
	"golang.org/x/oauth2/clientcredentials"
)

// Remote function names
const (
	FunctionGenerateSetupLink = "generate-setup-link"
)

// FunctionsConfig configures the remote functions client
type FunctionsConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration
}

// NewFunctionsConfig reads the FUNCTIONS_* environment variables
func NewFunctionsConfig() FunctionsConfig {
	return FunctionsConfig{
		BaseURL:      utils.GetEnvOrDefault("FUNCTIONS_BASE_URL", ""),
		ClientID:     utils.GetEnvOrDefault("FUNCTIONS_CLIENT_ID", ""),
		ClientSecret: utils.GetEnvOrDefault("FUNCTIONS_CLIENT_SECRET", ""),
		TokenURL:     utils.GetEnvOrDefault("FUNCTIONS_TOKEN_URL", ""),
		Scopes:       utils.SplitAndTrim(utils.GetEnvOrDefault("FUNCTIONS_SCOPES", "")),
		Timeout:      utils.GetEnvDurationOrDefault("FUNCTIONS_TIMEOUT", 10*time.Second),
	}
}

// FunctionsClient invokes remote functions at {base}/functions/v1/{name}
type FunctionsClient struct {
	baseURL      string
	oauth2Config *clientcredentials.Config
	// HTTPClient is used when no client credentials are configured
	HTTPClient *http.Client
	timeout    time.Duration
}

// NewFunctionsClient creates a client. Requests carry an OAuth2 token when a client id is set.
func NewFunctionsClient(cfg FunctionsConfig) *FunctionsClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &FunctionsClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		timeout:    cfg.Timeout,
	}
	if cfg.ClientID != "" && cfg.TokenURL != "" {
		c.oauth2Config = &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
	}
	return c
}

func (c *FunctionsClient) client(ctx context.Context) *http.Client {
	if c.oauth2Config == nil {
		return c.HTTPClient
	}
	client := c.oauth2Config.Client(ctx)
	client.Timeout = c.timeout
	return client
}

// Invoke POSTs body as JSON and decodes a 2xx response into out (when out is non-nil).
// Failures are returned as remote-call API errors; nothing is retried.
func (c *FunctionsClient) Invoke(ctx context.Context, name string, body interface{}, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		monitoring.RecordExternalCall("functions", name, time.Since(start), err)
	}()

	if c.baseURL == "" {
		return apperrors.RemoteCallError(name, fmt.Errorf("functions base URL is not configured"))
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/functions/v1/%s", c.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client(ctx).Do(req)
	if err != nil {
		return apperrors.RemoteCallError(name, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			slog.Error("failed to close response body", "error", err)
		}
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.RemoteCallError(name, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Remote function returned error", "function", name, "status", resp.StatusCode, "body", string(respBody))
		return apperrors.RemoteCallError(name, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperrors.RemoteCallError(name, fmt.Errorf("failed to parse response: %w", err))
		}
	}
	return nil
}
