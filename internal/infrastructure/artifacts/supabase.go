package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseStore keeps artifacts in a Supabase Storage bucket over its HTTP API.
type SupabaseStore struct {
	BaseURL   string
	SecretKey string // must be service_role key (Dashboard → API), not anon key
	Bucket    string
	Client    *http.Client
}

func (s *SupabaseStore) client() *http.Client {
	if s.Client == nil {
		s.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return s.Client
}

func (s *SupabaseStore) objectURL(path string) (string, error) {
	if s.BaseURL == "" {
		return "", fmt.Errorf("supabase: SUPABASE_URL is not set")
	}
	if s.SecretKey == "" {
		return "", fmt.Errorf("supabase: SUPABASE_SECRET_KEY is not set")
	}
	base := strings.TrimRight(s.BaseURL, "/")
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", base, s.Bucket, strings.TrimLeft(path, "/")), nil
}

func (s *SupabaseStore) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, int, error) {
	url, err := s.objectURL(path)
	if err != nil {
		return nil, 0, err
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, 0, err
	}
	// Match @supabase/supabase-js: both apikey and Authorization Bearer (same key)
	req.Header.Set("apikey", s.SecretKey)
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if method == http.MethodPost {
		req.Header.Set("x-upsert", "true")
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	return respBody, resp.StatusCode, nil
}

func (s *SupabaseStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	body, code, err := s.do(ctx, http.MethodPost, name, contentType, data)
	if err != nil {
		return "", err
	}
	if code < 200 || code >= 300 {
		return "", fmt.Errorf("supabase error: status %d body: %s", code, string(body))
	}
	return name, nil
}

func (s *SupabaseStore) Get(ctx context.Context, path string) ([]byte, error) {
	body, code, err := s.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNotFound || code == http.StatusBadRequest && strings.Contains(string(body), "not_found") {
		return nil, ErrNotFound
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("supabase error: status %d body: %s", code, string(body))
	}
	return body, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, path string) error {
	body, code, err := s.do(ctx, http.MethodDelete, path, "", nil)
	if err != nil {
		return err
	}
	if code == http.StatusNotFound || code >= 200 && code < 300 {
		return nil
	}
	return fmt.Errorf("supabase error: status %d body: %s", code, string(body))
}
