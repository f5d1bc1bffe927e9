package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const mlTimeout = 10 * time.Second

// HTTPScorer calls the ML service's POST /predict endpoint.
type HTTPScorer struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPScorer(baseURL string) *HTTPScorer {
	return &HTTPScorer{BaseURL: baseURL, Client: &http.Client{Timeout: mlTimeout}}
}

type predictResponse struct {
	Score       *float64               `json:"score"`
	Category    string                 `json:"category"`
	Explanation map[string]interface{} `json:"explanation"`
}

func (h *HTTPScorer) Score(ctx context.Context, data Data) (*Result, error) {
	if h.BaseURL == "" {
		return nil, fmt.Errorf("ml: ML_SERVICE_URL is not set")
	}
	body, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, mlTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(h.BaseURL, "/")+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ml request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ml error: status %d body: %s", resp.StatusCode, string(raw))
	}

	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("ml response: %w", err)
	}
	if out.Score == nil {
		return nil, fmt.Errorf("ml response: missing score")
	}
	if *out.Score < 0 || *out.Score > 100 {
		return nil, fmt.Errorf("ml response: score %v out of range", *out.Score)
	}
	return &Result{Score: *out.Score, Explanation: out.Explanation, Source: SourceML}, nil
}

// Ping reports whether the ML service answers its health endpoint.
func (h *HTTPScorer) Ping(ctx context.Context) error {
	if h.BaseURL == "" {
		return fmt.Errorf("ml: ML_SERVICE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(h.BaseURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ml health: status %d", resp.StatusCode)
	}
	return nil
}
