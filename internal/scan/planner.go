package scan

import (
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

const (
	DefaultMaxPerRun = 100
	RecentWindow     = 24 * time.Hour
)

// Policy decides which messages a run considers and what happens after a
// label is stored.
type Policy struct {
	RescanAll            bool
	OnlyRecent           bool
	MaxPerRun            int
	AutoArchiveAfterSort bool
	BackgroundMode       bool
}

// Limit returns the effective per-run cap.
func (p Policy) Limit() int {
	if p.MaxPerRun <= 0 {
		return DefaultMaxPerRun
	}
	return p.MaxPerRun
}

// Expr is a server-side search expression.
type Expr struct {
	Since           time.Time
	ExcludeKeywords []string
}

// ReceivedAfter is the exact cutoff behind Since. IMAP SINCE only compares
// dates, so callers filter on the fetched INTERNALDATE as well.
func (e Expr) ReceivedAfter() time.Time {
	return e.Since
}

// IsAll reports whether the expression selects every message.
func (e Expr) IsAll() bool {
	return e.Since.IsZero() && len(e.ExcludeKeywords) == 0
}

// Criteria converts the expression to IMAP SEARCH criteria.
func (e Expr) Criteria() *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}
	if !e.Since.IsZero() {
		criteria.Since = e.Since
	}
	for _, keyword := range e.ExcludeKeywords {
		criteria.NotFlag = append(criteria.NotFlag, imap.Flag(keyword))
	}
	return criteria
}

func (e Expr) String() string {
	if !e.Since.IsZero() {
		return "SINCE " + e.Since.Format("2-Jan-2006")
	}
	parts := []string{"ALL"}
	for _, keyword := range e.ExcludeKeywords {
		parts = append(parts, "NOT KEYWORD "+keyword)
	}
	return strings.Join(parts, " ")
}

// BuildSearchExpression maps a policy to a search expression. RescanAll wins
// over OnlyRecent; otherwise every message already carrying one of labels is
// excluded.
func BuildSearchExpression(policy Policy, labels []string, now time.Time) Expr {
	switch {
	case policy.RescanAll:
		return Expr{}
	case policy.OnlyRecent:
		return Expr{Since: now.Add(-RecentWindow).UTC()}
	default:
		exclude := make([]string, 0, len(labels))
		for _, label := range labels {
			if strings.TrimSpace(label) == "" {
				continue
			}
			exclude = append(exclude, label)
		}
		return Expr{ExcludeKeywords: exclude}
	}
}

// Clamp keeps the first max distinct ids in server order. A non-positive max
// means DefaultMaxPerRun.
func Clamp(ids []uint32, max int) []uint32 {
	if max <= 0 {
		max = DefaultMaxPerRun
	}
	seen := make(map[uint32]struct{}, len(ids))
	out := make([]uint32, 0, min(len(ids), max))
	for _, id := range ids {
		if len(out) == max {
			break
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
