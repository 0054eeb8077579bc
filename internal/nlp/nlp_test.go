package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLogger(t *testing.T) *slog.Logger {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	t.Cleanup(func() {
		if t.Failed() {
			os.Stdout.Write(buf.Bytes()) //nolint:errcheck
		}
	})
	return logger
}

type stubAnalyzer struct {
	mu        sync.Mutex
	texts     []string
	summary   string
	sentiment Sentiment
	err       error
	block     chan struct{}
}

func (s *stubAnalyzer) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.summary, s.err
}

func (s *stubAnalyzer) ClassifySentiment(ctx context.Context, text string) (Sentiment, error) {
	return s.sentiment, s.err
}

func sortedInsights(in []model.Insight) []model.Insight {
	sort.Slice(in, func(i, j int) bool { return in[i].UID < in[j].UID })
	return in
}

func TestProcessorProducesInsights(t *testing.T) {
	analyzer := &stubAnalyzer{summary: "Invoice due.", sentiment: Sentiment{Label: "positive", Score: 0.8}}
	p := NewProcessor(analyzer, Options{MaxBodyLength: 10}, setupLogger(t))

	assert.True(t, p.Submit(Job{UID: 2, Label: "Invoices", Body: "Hello\x00 world,\r\n this is long"}))
	assert.True(t, p.Submit(Job{UID: 1, Label: "Invoices", Subject: "Subject only"}))

	insights := sortedInsights(p.Close(context.Background()))
	require.Len(t, insights, 2)
	assert.Equal(t, model.Insight{UID: 1, Label: "Invoices", Summary: "Invoice due.", Sentiment: "Positive", Score: 0.8}, insights[0])
	assert.Equal(t, "Positive", insights[1].Sentiment)

	assert.ElementsMatch(t, []string{"Hello worl", "Subject only"}, analyzer.texts)
}

func TestProcessorSkipFlags(t *testing.T) {
	analyzer := &stubAnalyzer{summary: "ignored", sentiment: Sentiment{Label: "Negative"}}
	p := NewProcessor(analyzer, Options{SkipSummarization: true, SkipSentimentAnalysis: true}, setupLogger(t))

	p.Submit(Job{UID: 1, Body: "text"})
	insights := p.Close(context.Background())

	require.Len(t, insights, 1)
	assert.Empty(t, insights[0].Summary)
	assert.Equal(t, SentimentNotApplicable, insights[0].Sentiment)
	assert.Empty(t, analyzer.texts)
}

func TestProcessorUnknownAndErrorLabels(t *testing.T) {
	p := NewProcessor(&stubAnalyzer{sentiment: Sentiment{Label: "ecstatic"}}, Options{}, setupLogger(t))
	p.Submit(Job{UID: 1, Body: "text"})
	insights := p.Close(context.Background())
	require.Len(t, insights, 1)
	assert.Equal(t, SentimentUnknown, insights[0].Sentiment)

	p = NewProcessor(&stubAnalyzer{err: errors.New("model offline")}, Options{}, setupLogger(t))
	p.Submit(Job{UID: 1, Body: "text"})
	insights = p.Close(context.Background())
	require.Len(t, insights, 1)
	assert.Equal(t, SentimentError, insights[0].Sentiment)
	assert.Equal(t, "model offline", insights[0].Err)
}

func TestProcessorSubmitNeverBlocks(t *testing.T) {
	analyzer := &stubAnalyzer{block: make(chan struct{})}
	p := NewProcessor(analyzer, Options{QueueSize: 1, Workers: 1}, setupLogger(t))

	accepted := 0
	for i := 0; i < 5; i++ {
		if p.Submit(Job{UID: uint32(i + 1), Body: "text"}) {
			accepted++
		}
	}
	assert.Less(t, accepted, 5)
	assert.Equal(t, 5-accepted, p.Dropped())

	close(analyzer.block)
	p.Close(context.Background())
	assert.False(t, p.Submit(Job{UID: 9}))
}

func TestProcessorCloseHonorsContext(t *testing.T) {
	analyzer := &stubAnalyzer{block: make(chan struct{})}
	p := NewProcessor(analyzer, Options{Workers: 1}, setupLogger(t))
	p.Submit(Job{UID: 1, Body: "text"})
	p.Submit(Job{UID: 2, Body: "text"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	insights := p.Close(ctx)
	assert.LessOrEqual(t, len(insights), 1)
}

func TestLexiconAnalyzer(t *testing.T) {
	ctx := context.Background()
	a := LexiconAnalyzer{}

	tests := []struct {
		text  string
		label string
	}{
		{text: "Thanks, great work!", label: SentimentPositive},
		{text: "Unfortunately your payment failed.", label: SentimentNegative},
		{text: "Thanks, but the delivery is delayed.", label: SentimentMixed},
		{text: "Meeting at 10 in room 4.", label: SentimentNeutral},
		{text: "1234", label: SentimentNotApplicable},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			s, err := a.ClassifySentiment(ctx, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.label, s.Label)
		})
	}

	summary, err := a.Summarize(ctx, "First sentence here. Second sentence is longer than the limit allows.", 25)
	require.NoError(t, err)
	assert.Equal(t, "First sentence here.", summary)

	summary, err = a.Summarize(ctx, "averyveryverylongwordwithoutbreaks and more", 10)
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(summary)), 10)
}

func TestHTTPAnalyzer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case summarizePath:
			assert.Equal(t, float64(40), body["max_length"])
			_, _ = w.Write([]byte(`{"summary":"short"}`))
		case sentimentPath:
			_, _ = w.Write([]byte(`{"label":"Negative","score":-0.5}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	a := NewHTTPAnalyzer(srv.URL + "/")
	summary, err := a.Summarize(context.Background(), "text", 40)
	require.NoError(t, err)
	assert.Equal(t, "short", summary)

	s, err := a.ClassifySentiment(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, Sentiment{Label: "Negative", Score: -0.5}, s)
}

func TestHTTPAnalyzerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := NewHTTPAnalyzer(srv.URL).ClassifySentiment(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "502"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a b c", Sanitize("a\tb\x07\r\nc"))
}
