package nlp

import (
	"context"
	"strings"
	"unicode"
)

const (
	SentimentNegative      = "Negative"
	SentimentPositive      = "Positive"
	SentimentNeutral       = "Neutral"
	SentimentMixed         = "Mixed"
	SentimentUnknown       = "Unknown"
	SentimentError         = "Error"
	SentimentNotApplicable = "Not Applicable"
)

// DefaultSentimentLabels is the closed set of labels a sentiment result may
// carry.
var DefaultSentimentLabels = []string{
	SentimentNegative,
	SentimentPositive,
	SentimentNeutral,
	SentimentMixed,
	SentimentUnknown,
	SentimentError,
	SentimentNotApplicable,
}

type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Analyzer summarizes text and classifies its sentiment.
type Analyzer interface {
	Summarize(ctx context.Context, text string, maxLen int) (string, error)
	ClassifySentiment(ctx context.Context, text string) (Sentiment, error)
}

var (
	positiveWords = wordSet("thanks", "thank", "great", "good", "happy", "love", "excellent", "congratulations", "welcome", "success", "successful", "glad", "enjoy", "appreciate", "confirmed", "delivered")
	negativeWords = wordSet("sorry", "problem", "issue", "failed", "failure", "error", "unfortunately", "cancelled", "canceled", "overdue", "urgent", "declined", "complaint", "refund", "delay", "delayed", "suspended", "warning")
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// LexiconAnalyzer is a dependency-free analyzer: extractive summaries and a
// word-list sentiment score.
type LexiconAnalyzer struct{}

func (LexiconAnalyzer) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text = strings.Join(strings.Fields(text), " ")
	if maxLen <= 0 {
		return text, nil
	}

	var out strings.Builder
	for _, sentence := range splitSentences(text) {
		if runeLen(out.String())+runeLen(sentence)+1 > maxLen {
			break
		}
		if out.Len() > 0 {
			out.WriteByte(' ')
		}
		out.WriteString(sentence)
	}
	if out.Len() == 0 {
		return truncateWords(text, maxLen), nil
	}
	return out.String(), nil
}

func (LexiconAnalyzer) ClassifySentiment(ctx context.Context, text string) (Sentiment, error) {
	if err := ctx.Err(); err != nil {
		return Sentiment{}, err
	}
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(words) == 0 {
		return Sentiment{Label: SentimentNotApplicable}, nil
	}

	pos, neg := 0, 0
	for _, w := range words {
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}

	if pos == 0 && neg == 0 {
		return Sentiment{Label: SentimentNeutral}, nil
	}
	score := float64(pos-neg) / float64(pos+neg)
	switch {
	case pos > 0 && neg > 0:
		return Sentiment{Label: SentimentMixed, Score: score}, nil
	case pos > 0:
		return Sentiment{Label: SentimentPositive, Score: score}, nil
	default:
		return Sentiment{Label: SentimentNegative, Score: score}, nil
	}
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func runeLen(s string) int {
	return len([]rune(s))
}

// truncateWords cuts s to at most maxLen runes, preferring a word boundary.
func truncateWords(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	cut := string(runes[:maxLen])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
