package objectstore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const fetchTimeout = 60 * time.Second

// HTTPStore implements Store against an HTTP blob service that honors
// HMAC-signed URLs. Signatures cover the method, object key and expiry, so a
// grant is only valid for the exact object and window it was issued for.
type HTTPStore struct {
	baseURL    *url.URL
	secret     []byte
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Store = (*HTTPStore)(nil)

// NewHTTPStore creates a store for the blob service at baseURL. The secret
// must match the one the blob service verifies signatures with.
func NewHTTPStore(baseURL string, secret []byte) (*HTTPStore, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("object store secret is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid object store URL: %w", err)
	}

	return &HTTPStore{
		baseURL:    parsed,
		secret:     secret,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     slog.Default().With("component", "objectstore"),
	}, nil
}

// PresignPut returns a URL granting a direct PUT of the object until
// expiresAt.
func (s *HTTPStore) PresignPut(objectKey, contentType string, expiresAt time.Time) (string, error) {
	target := s.objectURL(objectKey)

	expires := strconv.FormatInt(expiresAt.Unix(), 10)
	query := target.Query()
	query.Set("expires", expires)
	query.Set("content-type", contentType)
	query.Set("signature", s.sign(http.MethodPut, objectKey, expires))
	target.RawQuery = query.Encode()

	return target.String(), nil
}

// Fetch retrieves the object's content with a short-lived signed GET.
func (s *HTTPStore) Fetch(ctx context.Context, objectKey string) ([]byte, error) {
	target := s.objectURL(objectKey)

	expires := strconv.FormatInt(time.Now().Add(5*time.Minute).Unix(), 10)
	query := target.Query()
	query.Set("expires", expires)
	query.Set("signature", s.sign(http.MethodGet, objectKey, expires))
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("object fetch failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Delete removes the object. A 404 from the blob service is treated as
// success.
func (s *HTTPStore) Delete(ctx context.Context, objectKey string) error {
	target := s.objectURL(objectKey)

	expires := strconv.FormatInt(time.Now().Add(5*time.Minute).Unix(), 10)
	query := target.Query()
	query.Set("expires", expires)
	query.Set("signature", s.sign(http.MethodDelete, objectKey, expires))
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target.String(), nil)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("object delete failed with status %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (s *HTTPStore) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *HTTPStore) objectURL(objectKey string) *url.URL {
	return s.baseURL.JoinPath("objects", objectKey)
}

func (s *HTTPStore) sign(method, objectKey, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%s\n%s", method, objectKey, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
