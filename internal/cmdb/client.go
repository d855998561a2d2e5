// Package cmdb fetches node records from the ServiceNow table API.
package cmdb

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"servicenow-cmdb-integration/internal/logger"
	"servicenow-cmdb-integration/internal/metrics"
)

// ErrMissingCredentials is returned when neither basic auth nor a token is configured.
var ErrMissingCredentials = errors.New("user/password or oauth_token must be specified")

// Record is a single CMDB row keyed by field name.
type Record map[string]interface{}

// ClientConfig holds everything needed to talk to one ServiceNow instance.
// Password and OAuthToken are expected to be decrypted already.
type ClientConfig struct {
	Instance           string
	User               string
	Password           string
	OAuthToken         string
	Timeout            time.Duration
	InsecureSkipVerify bool
	Debug              bool
}

// Client issues authenticated requests against the table API
type Client struct {
	baseURL    string
	user       string
	password   string
	useOAuth   bool
	debug      bool
	httpClient *http.Client
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a table API client. The OAuth token wins over basic auth when both are set.
func NewClient(cfg ClientConfig, log *logger.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.OAuthToken == "" && (cfg.User == "" || cfg.Password == "") {
		return nil, ErrMissingCredentials
	}
	if cfg.Instance == "" {
		return nil, fmt.Errorf("servicenow instance cannot be empty")
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
	}
	if cfg.OAuthToken != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.OAuthToken}),
			Base:   transport,
		}
	}

	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		baseURL:  instanceURL(cfg.Instance),
		user:     cfg.User,
		password: cfg.Password,
		useOAuth: cfg.OAuthToken != "",
		debug:    cfg.Debug,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger:  log,
		metrics: m,
	}, nil
}

// instanceURL accepts bare hostnames as well as full URLs (useful against mock servers).
func instanceURL(instance string) string {
	instance = strings.TrimRight(instance, "/")
	if strings.Contains(instance, "://") {
		return instance
	}
	return "https://" + instance
}

// TableURL builds the lookup URL for rows of table where field equals value.
// sysparm_display_value resolves reference fields to their display strings.
func (c *Client) TableURL(table, field, value string) string {
	return fmt.Sprintf("%s/api/now/table/%s?%s=%s&sysparm_display_value=true",
		c.baseURL,
		url.PathEscape(table),
		url.QueryEscape(field),
		url.QueryEscape(value))
}

// FetchRecord returns the first row of table whose field equals value,
// or an empty record when nothing matches.
func (c *Client) FetchRecord(ctx context.Context, table, field, value string) (Record, error) {
	uri := c.TableURL(table, field, value)

	body, err := c.Do(ctx, MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Result []Record `json:"result"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response from %s: %w", uri, err)
	}

	if len(response.Result) == 0 || response.Result[0] == nil {
		c.logger.Debug("no cmdb record matched", "table", table, "field", field, "value", value)
		return Record{}, nil
	}
	return response.Result[0], nil
}

// Do sends a request and returns the raw response body.
func (c *Client) Do(ctx context.Context, method Method, uri string, body interface{}) ([]byte, error) {
	req, err := buildRequest(ctx, method, uri, body)
	if err != nil {
		return nil, err
	}
	if !c.useOAuth {
		req.SetBasicAuth(c.user, c.password)
	}

	if c.debug {
		auth := "basic"
		if c.useOAuth {
			auth = "oauth"
		}
		c.logger.Debug("sending servicenow request",
			"method", string(method),
			"url", uri,
			"auth", auth,
			"credentials", "=REDACTED=")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.ObserveCMDBRequest(time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", uri, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", uri, err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			URL:        uri,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	c.logger.Debug("servicenow request completed",
		"url", uri,
		"status", resp.StatusCode,
		"bytes", len(data))

	return data, nil
}
