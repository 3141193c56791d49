package npi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/healthops/credwatch/internal/config"
)

var (
	ErrCircuitOpen = errors.New("npi registry circuit open")
	// ErrNotFound signals the registry has no record for the requested NPI.
	ErrNotFound = errors.New("npi not found in registry")
)

// Client calls the upstream NPI registry service and adds retries, timeout,
// and a circuit breaker around the single fetch operation.
type Client struct {
	cfg    config.RegistryConfig
	client *http.Client

	// simple circuit breaker state
	failures  int32
	openUntil int64 // unix nano
	closed    int32 // atomic flag for Close()
}

// ProviderDocument is the provider-identity document returned by the
// registry. PracticeAddress is kept raw: upstream sends either a structured
// object or a plain string, and the mapping decision belongs to the caller.
type ProviderDocument struct {
	NPI              string          `json:"npi"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	OrganizationName string          `json:"organization_name"`
	TaxonomyDesc     string          `json:"taxonomy_desc"`
	PracticeAddress  json.RawMessage `json:"practice_address"`
}

// Address is the structured form of a practice address.
type Address struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// NewClient creates a new registry client wrapper.
func NewClient(cfg config.RegistryConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	c := &Client{
		cfg:    cfg,
		client: httpClient,
	}
	logger.Info("npi: NewClient created", slog.String("base_url", cfg.BaseURL), slog.Duration("timeout", cfg.Timeout))
	return c, nil
}

func NewDefaultClient(cfg config.RegistryConfig) (*Client, error) {
	defaultClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 15 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	return NewClient(cfg, defaultClient)
}

// package-level logger for pkg/npi; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/npi. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.failures) < int32(c.cfg.CircuitFailureThreshold) {
		return false
	}

	if time.Now().UnixNano() < atomic.LoadInt64(&c.openUntil) {
		return true
	}

	// attempt half-open: reset failures and allow a request
	atomic.StoreInt32(&c.failures, 0)
	return false
}

func (c *Client) recordFailure() {
	v := atomic.AddInt32(&c.failures, 1)
	if v >= int32(c.cfg.CircuitFailureThreshold) {
		atomic.StoreInt64(&c.openUntil, time.Now().Add(c.cfg.CircuitReset).UnixNano())
	}
}

// Close releases any resources held by the client. Close is idempotent and
// safe to call multiple times.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.client != nil && c.client.Transport != nil {
		if tr, ok := c.client.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
		}
	}
	return nil
}

// GetProviderByNPI fetches the provider-identity document for an NPI.
// A registry miss returns ErrNotFound immediately; transient transport
// failures are retried with exponential-ish backoff up to cfg.Retries, each
// attempt bounded by cfg.Timeout.
func (c *Client) GetProviderByNPI(ctx context.Context, npi string) (*ProviderDocument, error) {
	if c.isCircuitOpen() {
		return nil, ErrCircuitOpen
	}

	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	u := base.JoinPath("/mcp/tools/get_provider_by_npi")

	payload, err := json.Marshal(map[string]string{"npi": npi})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.Backoff * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		doc, retriable, err := c.fetch(ctx, u.String(), payload)
		if err == nil {
			atomic.StoreInt32(&c.failures, 0)
			return doc, nil
		}
		if !retriable {
			return nil, err
		}
		c.recordFailure()
		lastErr = err
		logger.Warn("npi: fetch attempt failed",
			slog.String("npi", npi),
			slog.Int("attempt", attempt),
			slog.Any("err", err),
		)
	}

	return nil, fmt.Errorf("registry fetch failed after %d attempts: %w", c.cfg.Retries+1, lastErr)
}

// fetch performs one bounded request. The second return value reports
// whether the failure is worth retrying.
func (c *Client) fetch(ctx context.Context, url string, payload []byte) (*ProviderDocument, bool, error) {
	ctxReq, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxReq, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// a miss is a fact, not a failure; it never trips the circuit
		return nil, false, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, true, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, err
	}

	if err := validateDocument(ctxReq, body); err != nil {
		return nil, false, err
	}

	var doc ProviderDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, false, fmt.Errorf("decode registry document: %w", err)
	}
	return &doc, false, nil
}

// StructuredAddress decodes the practice address when the registry sent the
// structured form. The second return value is false for string or absent
// addresses.
func (d *ProviderDocument) StructuredAddress() (Address, bool) {
	if len(d.PracticeAddress) == 0 {
		return Address{}, false
	}
	var a Address
	if err := json.Unmarshal(d.PracticeAddress, &a); err != nil {
		return Address{}, false
	}
	return a, true
}

// AddressString renders a non-structured practice address as text. Returns
// "" when the address is absent.
func (d *ProviderDocument) AddressString() string {
	if len(d.PracticeAddress) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(d.PracticeAddress, &s); err == nil {
		return s
	}
	return string(d.PracticeAddress)
}
