package rules

import (
	"fmt"
	"strings"

	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Kind int

const (
	KindSubjectContains Kind = iota + 1
	KindSenderContains
	KindAnyOf
)

func (k Kind) String() string {
	switch k {
	case KindSubjectContains:
		return "subject_contains"
	case KindSenderContains:
		return "sender_contains"
	case KindAnyOf:
		return "any_of"
	default:
		return "unknown"
	}
}

// Match is a predicate over a message's subject and sender.
type Match struct {
	Kind    Kind
	Keyword string
	Any     []Match
}

func SubjectContains(keyword string) Match {
	return Match{Kind: KindSubjectContains, Keyword: strings.ToLower(keyword)}
}

func SenderContains(keyword string) Match {
	return Match{Kind: KindSenderContains, Keyword: strings.ToLower(keyword)}
}

func AnyOf(matches ...Match) Match {
	return Match{Kind: KindAnyOf, Any: matches}
}

// Eval expects subject and sender already lower-cased.
func (m Match) Eval(subject, sender string) bool {
	switch m.Kind {
	case KindSubjectContains:
		return strings.Contains(subject, m.Keyword)
	case KindSenderContains:
		return strings.Contains(sender, m.Keyword)
	case KindAnyOf:
		for _, inner := range m.Any {
			if inner.Eval(subject, sender) {
				return true
			}
		}
	}
	return false
}

func (m Match) validate() error {
	switch m.Kind {
	case KindSubjectContains, KindSenderContains:
		if strings.TrimSpace(m.Keyword) == "" {
			return fmt.Errorf("%s requires a keyword", m.Kind)
		}
	case KindAnyOf:
		if len(m.Any) == 0 {
			return errors.New("any_of requires at least one match")
		}
		for _, inner := range m.Any {
			if err := inner.validate(); err != nil {
				return err
			}
		}
	default:
		return errors.New("match kind is required")
	}
	return nil
}

type matchYAML struct {
	SubjectContains string      `yaml:"subject_contains"`
	SenderContains  string      `yaml:"sender_contains"`
	AnyOf           []matchYAML `yaml:"any_of"`
}

func (y matchYAML) toMatch() (Match, error) {
	set := 0
	var m Match
	if y.SubjectContains != "" {
		set++
		m = SubjectContains(y.SubjectContains)
	}
	if y.SenderContains != "" {
		set++
		m = SenderContains(y.SenderContains)
	}
	if len(y.AnyOf) > 0 {
		set++
		inner := make([]Match, 0, len(y.AnyOf))
		for _, child := range y.AnyOf {
			cm, err := child.toMatch()
			if err != nil {
				return Match{}, err
			}
			inner = append(inner, cm)
		}
		m = AnyOf(inner...)
	}
	if set != 1 {
		return Match{}, errors.New("match must set exactly one of subject_contains, sender_contains, any_of")
	}
	return m, nil
}

func (m *Match) UnmarshalYAML(node *yaml.Node) error {
	var raw matchYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := raw.toMatch()
	if err != nil {
		return errors.Wrapf(err, "line %d", node.Line)
	}
	*m = parsed
	return nil
}

func (m Match) toYAML() matchYAML {
	switch m.Kind {
	case KindSubjectContains:
		return matchYAML{SubjectContains: m.Keyword}
	case KindSenderContains:
		return matchYAML{SenderContains: m.Keyword}
	case KindAnyOf:
		out := matchYAML{}
		for _, inner := range m.Any {
			out.AnyOf = append(out.AnyOf, inner.toYAML())
		}
		return out
	}
	return matchYAML{}
}

func (m Match) MarshalYAML() (interface{}, error) {
	return m.toYAML(), nil
}

// Rule maps a match to a target label.
type Rule struct {
	Label string `yaml:"label"`
	Match Match  `yaml:"match"`
}

// RuleSet is evaluated in order; the first matching rule wins.
type RuleSet struct {
	rules []Rule
}

// New validates rules and returns them as an ordered set.
func New(rules []Rule) (*RuleSet, error) {
	if len(rules) == 0 {
		return nil, errors.New("rule set must contain at least one rule")
	}
	out := make([]Rule, 0, len(rules))
	for i, rule := range rules {
		if err := ValidateLabel(rule.Label); err != nil {
			return nil, errors.Wrapf(err, "rule %d", i+1)
		}
		if err := rule.Match.validate(); err != nil {
			return nil, errors.Wrapf(err, "rule %d (%s)", i+1, rule.Label)
		}
		out = append(out, rule)
	}
	return &RuleSet{rules: out}, nil
}

// Rules returns a copy of the ordered rules.
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Labels returns every distinct target label in rule order.
func (s *RuleSet) Labels() []string {
	seen := map[string]struct{}{}
	labels := []string{}
	for _, rule := range s.rules {
		if _, ok := seen[rule.Label]; ok {
			continue
		}
		seen[rule.Label] = struct{}{}
		labels = append(labels, rule.Label)
	}
	return labels
}

// Classify returns the label of the first rule matching d. Messages without a
// subject or sender never match.
func (s *RuleSet) Classify(d model.Descriptor) (string, bool) {
	if strings.TrimSpace(d.Subject) == "" || strings.TrimSpace(d.Sender) == "" {
		return "", false
	}
	subject := strings.ToLower(d.Subject)
	sender := strings.ToLower(d.Sender)
	for _, rule := range s.rules {
		if rule.Match.Eval(subject, sender) {
			return rule.Label, true
		}
	}
	return "", false
}

// ValidateLabel checks that label can be sent as an IMAP keyword atom.
func ValidateLabel(label string) error {
	if label == "" {
		return errors.New("label is required")
	}
	if strings.HasPrefix(label, "\\") {
		return fmt.Errorf("label %q must not be a system flag", label)
	}
	for _, r := range label {
		if r <= 0x20 || r >= 0x7f || strings.ContainsRune(`(){%*"\]`, r) {
			return fmt.Errorf("label %q contains %q, which is not allowed in an IMAP keyword", label, r)
		}
	}
	return nil
}
