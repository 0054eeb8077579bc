package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	summarizePath = "/summarize"
	sentimentPath = "/sentiment"
)

type HTTPOption func(*HTTPAnalyzer)

func WithHTTPClient(client *http.Client) HTTPOption {
	return func(a *HTTPAnalyzer) {
		a.client = client
	}
}

// HTTPAnalyzer calls a remote inference service.
//
//	POST {base}/summarize  {"text": "...", "max_length": 100} -> {"summary": "..."}
//	POST {base}/sentiment  {"text": "..."}                    -> {"label": "...", "score": 0.9}
type HTTPAnalyzer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPAnalyzer(baseURL string, opts ...HTTPOption) *HTTPAnalyzer {
	a := &HTTPAnalyzer{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *HTTPAnalyzer) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	var resp struct {
		Summary string `json:"summary"`
	}
	req := map[string]any{"text": text, "max_length": maxLen}
	if err := a.post(ctx, summarizePath, req, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

func (a *HTTPAnalyzer) ClassifySentiment(ctx context.Context, text string) (Sentiment, error) {
	var resp Sentiment
	if err := a.post(ctx, sentimentPath, map[string]any{"text": text}, &resp); err != nil {
		return Sentiment{}, err
	}
	return resp, nil
}

func (a *HTTPAnalyzer) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "analyzer %s", path)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("analyzer %s returned status %s", path, resp.Status)
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(out), "decode %s response", path)
}
