package classifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"servicenow-cmdb-integration/config"
	"servicenow-cmdb-integration/internal/logger"
)

// StatusError is returned when the classifier answers with a status >= 400.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classifier request to %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client talks to the node classifier service API over HTTPS with the
// Puppet server's client certificate.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient builds a classifier client. The certificate pair and CA are optional;
// without a CA the system roots are used.
func NewClient(cfg config.ClassifierConfig, timeout time.Duration, log *logger.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("classifier url cannot be empty")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("invalid classifier url: %w", err)
	}

	tlsConfig, err := newTLSConfig(cfg.CertFile, cfg.KeyFile, cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}

	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: tlsConfig,
			},
			Timeout: timeout,
		},
		logger: log,
	}, nil
}

func newTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}

// ListGroups returns every group known to the classifier.
func (c *Client) ListGroups(ctx context.Context) ([]*Group, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/groups", nil)
	if err != nil {
		return nil, err
	}

	var groups []*Group
	if err := json.Unmarshal(body, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse groups: %w", err)
	}

	c.logger.Debug("listed classifier groups", "count", len(groups))
	return groups, nil
}

// UpdateGroup replaces the group's definition on the classifier.
func (c *Client) UpdateGroup(ctx context.Context, g *Group) error {
	if g.ID == "" {
		return fmt.Errorf("group %q has no id", g.Name)
	}

	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode group %q: %w", g.Name, err)
	}

	uri := c.baseURL + "/v1/groups/" + url.PathEscape(g.ID)
	if _, err := c.do(ctx, http.MethodPost, uri, data); err != nil {
		return err
	}

	c.logger.Debug("updated classifier group", "group", g.Name, "id", g.ID)
	return nil
}

func (c *Client) do(ctx context.Context, method, uri string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", uri, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", uri, err)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{URL: uri, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
