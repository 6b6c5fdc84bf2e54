// Package azure provides the Azure Blob Storage implementation of the
// blob store, using the storage REST API with Shared Key authentication.
package azure

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shokudev/kura/internal/core/ports/driven"
	"github.com/shokudev/kura/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultContainer = "kura-documents"
	DefaultTimeout   = 120 * time.Second

	apiVersion = "2021-08-06"
	sasVersion = "2015-04-05"

	uploadAttempts = 3
)

// Config holds configuration for the Azure Blob store.
type Config struct {
	// AccountName is the storage account name (required).
	AccountName string

	// AccountKey is the base64-encoded shared key (required).
	AccountKey string

	// Container is the target container (default: kura-documents).
	Container string

	// Endpoint overrides the account endpoint, mainly for tests.
	// Default: https://{account}.blob.core.windows.net.
	Endpoint string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// RetryBase is the first retry delay; subsequent attempts double it
	// (default: 1s).
	RetryBase time.Duration
}

// Store talks to one Azure Blob Storage container.
type Store struct {
	client    *http.Client
	account   string
	key       []byte
	container string
	endpoint  string
	retryBase time.Duration
}

// NewStore creates a new Azure Blob store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.AccountName == "" {
		return nil, fmt.Errorf("azure blob: account name is required")
	}
	key, err := base64.StdEncoding.DecodeString(cfg.AccountKey)
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("azure blob: invalid account key")
	}
	if cfg.Container == "" {
		cfg.Container = DefaultContainer
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = time.Second
	}

	return &Store{
		client:    &http.Client{Timeout: cfg.Timeout},
		account:   cfg.AccountName,
		key:       key,
		container: cfg.Container,
		endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
		retryBase: cfg.RetryBase,
	}, nil
}

// Upload stores content under name, overwriting any previous blob, and
// returns the blob URL. Transient failures are retried with doubling
// backoff before giving up.
func (s *Store) Upload(ctx context.Context, name string, content []byte) (string, error) {
	blobURL := s.blobURL(name)

	var lastErr error
	delay := s.retryBase
	for attempt := 1; attempt <= uploadAttempts; attempt++ {
		if attempt > 1 {
			logger.Warn("retrying blob upload for %s (attempt %d/%d): %v", name, attempt, uploadAttempts, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			delay *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, blobURL, bytes.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("x-ms-blob-type", "BlockBlob")
		req.ContentLength = int64(len(content))

		resp, err := s.send(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusCreated {
			return blobURL, nil
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}
	return "", fmt.Errorf("upload blob %s: %w", name, lastErr)
}

// Download retrieves a blob's content.
func (s *Store) Download(ctx context.Context, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.blobURL(name), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.send(req)
	if err != nil {
		return nil, fmt.Errorf("download blob %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download blob %s: status %d", name, resp.StatusCode)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download blob %s: read body: %w", name, err)
	}
	return content, nil
}

// Delete removes a blob. A missing blob is treated as success.
func (s *Store) Delete(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.blobURL(name), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.send(req)
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete blob %s: status %d", name, resp.StatusCode)
	}
	return nil
}

// SignedURL returns a read-only service SAS URL for a blob.
func (s *Store) SignedURL(_ context.Context, name string, ttl time.Duration) (string, error) {
	start := time.Now().UTC().Add(-5 * time.Minute).Format("2006-01-02T15:04:05Z")
	expiry := time.Now().UTC().Add(ttl).Format("2006-01-02T15:04:05Z")
	resource := fmt.Sprintf("/blob/%s/%s/%s", s.account, s.container, name)

	stringToSign := strings.Join([]string{
		"r",      // permissions
		start,    // start
		expiry,   // expiry
		resource, // canonicalized resource
		"",       // identifier
		"",       // IP range
		"https",  // protocol
		sasVersion,
		"", "", "", "", "", // response header overrides
	}, "\n")
	sig := s.sign(stringToSign)

	query := url.Values{}
	query.Set("sv", sasVersion)
	query.Set("sr", "b")
	query.Set("sp", "r")
	query.Set("st", start)
	query.Set("se", expiry)
	query.Set("spr", "https")
	query.Set("sig", sig)

	return s.blobURL(name) + "?" + query.Encode(), nil
}

// send signs the request with the account shared key and sends it.
func (s *Store) send(req *http.Request) (*http.Response, error) {
	req.Header.Set("x-ms-date", time.Now().UTC().Format(http.TimeFormat))
	req.Header.Set("x-ms-version", apiVersion)
	req.Header.Set("Authorization", fmt.Sprintf("SharedKey %s:%s", s.account, s.sign(s.stringToSign(req))))
	return s.client.Do(req)
}

// stringToSign builds the Shared Key canonical string for a request.
func (s *Store) stringToSign(req *http.Request) string {
	contentLength := ""
	if req.ContentLength > 0 {
		contentLength = fmt.Sprintf("%d", req.ContentLength)
	}

	return strings.Join([]string{
		req.Method,
		req.Header.Get("Content-Encoding"),
		req.Header.Get("Content-Language"),
		contentLength,
		req.Header.Get("Content-MD5"),
		req.Header.Get("Content-Type"),
		"", // Date, superseded by x-ms-date
		req.Header.Get("If-Modified-Since"),
		req.Header.Get("If-Match"),
		req.Header.Get("If-None-Match"),
		req.Header.Get("If-Unmodified-Since"),
		req.Header.Get("Range"),
		s.canonicalHeaders(req) + s.canonicalResource(req),
	}, "\n")
}

// canonicalHeaders lists the x-ms-* headers sorted by name.
func (s *Store) canonicalHeaders(req *http.Request) string {
	var names []string
	for name := range req.Header {
		if lower := strings.ToLower(name); strings.HasPrefix(lower, "x-ms-") {
			names = append(names, lower)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s:%s\n", name, strings.TrimSpace(req.Header.Get(name)))
	}
	return b.String()
}

// canonicalResource is "/{account}{path}" plus sorted query parameters.
func (s *Store) canonicalResource(req *http.Request) string {
	var b strings.Builder
	b.WriteString("/" + s.account + req.URL.Path)

	query := req.URL.Query()
	var keys []string
	for key := range query {
		keys = append(keys, strings.ToLower(key))
	}
	sort.Strings(keys)
	for _, key := range keys {
		values := query[key]
		sort.Strings(values)
		fmt.Fprintf(&b, "\n%s:%s", key, strings.Join(values, ","))
	}
	return b.String()
}

func (s *Store) sign(stringToSign string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Store) blobURL(name string) string {
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.container, url.PathEscape(name))
}
