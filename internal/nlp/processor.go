package nlp

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/aaronromeo/sortpat/internal/model"
)

const (
	DefaultMaxBodyLength    = 512
	DefaultMaxSummaryLength = 100
	DefaultQueueSize        = 64
	DefaultWorkers          = 2
)

type Options struct {
	MaxBodyLength         int
	MaxSummaryLength      int
	SkipSummarization     bool
	SkipSentimentAnalysis bool
	SentimentLabels       []string
	QueueSize             int
	Workers               int
}

func (o Options) withDefaults() Options {
	if o.MaxBodyLength <= 0 {
		o.MaxBodyLength = DefaultMaxBodyLength
	}
	if o.MaxSummaryLength <= 0 {
		o.MaxSummaryLength = DefaultMaxSummaryLength
	}
	if len(o.SentimentLabels) == 0 {
		o.SentimentLabels = DefaultSentimentLabels
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	return o
}

// Job is one classified message handed off for post-processing.
type Job struct {
	UID     uint32
	Label   string
	Subject string
	Body    string
}

// Processor runs summarization and sentiment analysis off the classification
// path. Submit never blocks; Close drains the queue and returns the results.
type Processor struct {
	analyzer Analyzer
	opts     Options
	logger   *slog.Logger
	allowed  map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan Job
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	insights []model.Insight
	dropped  int
}

func NewProcessor(analyzer Analyzer, opts Options, logger *slog.Logger) *Processor {
	opts = opts.withDefaults()
	if analyzer == nil {
		analyzer = LexiconAnalyzer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(opts.SentimentLabels))
	for _, label := range opts.SentimentLabels {
		allowed[strings.ToLower(label)] = struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Processor{
		analyzer: analyzer,
		opts:     opts,
		logger:   logger,
		allowed:  allowed,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(chan Job, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

// Submit queues job and reports whether it was accepted. A full queue or a
// closed processor drops the job.
func (p *Processor) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.dropped++
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.dropped++
		p.logger.Warn("nlp queue full, dropping message", slog.Uint64("uid", uint64(job.UID)))
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish. If ctx ends
// first, in-flight analyzer calls are cancelled and unfinished jobs are
// dropped.
func (p *Processor) Close(ctx context.Context) []model.Insight {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.cancel()
		<-done
	}
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Insight, len(p.insights))
	copy(out, p.insights)
	return out
}

// Dropped returns how many jobs were rejected.
func (p *Processor) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *Processor) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		if p.ctx.Err() != nil {
			continue
		}
		insight := p.process(job)
		p.mu.Lock()
		p.insights = append(p.insights, insight)
		p.mu.Unlock()
	}
}

func (p *Processor) process(job Job) model.Insight {
	insight := model.Insight{UID: job.UID, Label: job.Label}
	text := truncateRunes(Sanitize(job.Body), p.opts.MaxBodyLength)
	if text == "" {
		text = Sanitize(job.Subject)
	}

	if !p.opts.SkipSummarization {
		summary, err := p.analyzer.Summarize(p.ctx, text, p.opts.MaxSummaryLength)
		if err != nil {
			p.logger.Warn("summarize failed", slog.Uint64("uid", uint64(job.UID)), slog.Any("error", err))
			insight.Err = err.Error()
		} else {
			insight.Summary = truncateWords(summary, p.opts.MaxSummaryLength)
		}
	}

	if p.opts.SkipSentimentAnalysis {
		insight.Sentiment = SentimentNotApplicable
		return insight
	}
	sentiment, err := p.analyzer.ClassifySentiment(p.ctx, text)
	if err != nil {
		p.logger.Warn("sentiment analysis failed", slog.Uint64("uid", uint64(job.UID)), slog.Any("error", err))
		insight.Sentiment = SentimentError
		insight.Err = err.Error()
		return insight
	}
	insight.Sentiment = p.normalizeLabel(sentiment.Label)
	insight.Score = sentiment.Score
	return insight
}

func (p *Processor) normalizeLabel(label string) string {
	if _, ok := p.allowed[strings.ToLower(label)]; !ok {
		return SentimentUnknown
	}
	for _, known := range p.opts.SentimentLabels {
		if strings.EqualFold(known, label) {
			return known
		}
	}
	return SentimentUnknown
}

// Sanitize collapses whitespace and drops non-printable characters.
func Sanitize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(cleaned), " ")
}

func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
