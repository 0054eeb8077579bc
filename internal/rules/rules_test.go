package rules

import (
	"sync"
	"testing"

	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestClassifyDefaultRules(t *testing.T) {
	set := Default()

	tests := []struct {
		name    string
		subject string
		sender  string
		label   string
		ok      bool
	}{
		{name: "invoice", subject: "Your invoice #1", sender: "billing@example.com", label: "Invoices", ok: true},
		{name: "case insensitive", subject: "WEEKLY NEWSLETTER", sender: "news@example.com", label: "Newsletters", ok: true},
		{name: "any of second keyword", subject: "Your purchase receipt", sender: "shop@example.com", label: "Shopping", ok: true},
		{name: "security", subject: "Password reset requested", sender: "no-reply@example.com", label: "Security", ok: true},
		{name: "no match", subject: "Lunch tomorrow?", sender: "friend@example.com", ok: false},
		{name: "empty subject", subject: "", sender: "billing@example.com", ok: false},
		{name: "empty sender", subject: "Your invoice", sender: " ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, ok := set.Classify(model.Descriptor{Subject: tt.subject, Sender: tt.sender})
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.label, label)
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	set, err := New([]Rule{
		{Label: "A", Match: SubjectContains("invoice")},
		{Label: "B", Match: SubjectContains("invoice")},
	})
	require.NoError(t, err)

	label, ok := set.Classify(model.Descriptor{Subject: "invoice 42", Sender: "x@example.com"})
	assert.True(t, ok)
	assert.Equal(t, "A", label)

	// Default order puts Invoices ahead of Newsletters.
	label, ok = Default().Classify(model.Descriptor{Subject: "Newsletter with your invoice", Sender: "x@example.com"})
	assert.True(t, ok)
	assert.Equal(t, "Invoices", label)
}

func TestClassifySenderContains(t *testing.T) {
	set, err := New([]Rule{{Label: "Work", Match: SenderContains("@Corp.example")}})
	require.NoError(t, err)

	label, ok := set.Classify(model.Descriptor{Subject: "hi", Sender: "Boss <boss@corp.example>"})
	assert.True(t, ok)
	assert.Equal(t, "Work", label)
}

func TestClassifyConcurrent(t *testing.T) {
	set := Default()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			label, ok := set.Classify(model.Descriptor{Subject: "Tracking number inside", Sender: "ship@example.com"})
			assert.True(t, ok)
			assert.Equal(t, "Shipping", label)
		}()
	}
	wg.Wait()
}

func TestNewRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
	}{
		{name: "empty", rules: nil},
		{name: "label with space", rules: []Rule{{Label: "My Label", Match: SubjectContains("x")}}},
		{name: "system flag", rules: []Rule{{Label: "\\Seen", Match: SubjectContains("x")}}},
		{name: "missing keyword", rules: []Rule{{Label: "X", Match: Match{Kind: KindSubjectContains}}}},
		{name: "empty any of", rules: []Rule{{Label: "X", Match: AnyOf()}}},
		{name: "zero match", rules: []Rule{{Label: "X"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.rules)
			assert.Error(t, err)
		})
	}
}

func TestMatchUnmarshalYAML(t *testing.T) {
	data := `
- label: Invoices
  match:
    subject_contains: Invoice
- label: Work
  match:
    any_of:
      - sender_contains: corp.example
      - subject_contains: standup
`
	var parsed []Rule
	require.NoError(t, yaml.Unmarshal([]byte(data), &parsed))
	require.Len(t, parsed, 2)

	assert.Equal(t, SubjectContains("invoice"), parsed[0].Match)
	assert.Equal(t, AnyOf(SenderContains("corp.example"), SubjectContains("standup")), parsed[1].Match)

	set, err := New(parsed)
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoices", "Work"}, set.Labels())
}

func TestMatchUnmarshalYAMLRejectsAmbiguous(t *testing.T) {
	data := `
label: X
match:
  subject_contains: a
  sender_contains: b
`
	var parsed Rule
	assert.Error(t, yaml.Unmarshal([]byte(data), &parsed))
}

func TestMatchMarshalYAML(t *testing.T) {
	out, err := yaml.Marshal(Rule{Label: "Shopping", Match: AnyOf(SubjectContains("purchase"))})
	require.NoError(t, err)
	assert.Contains(t, string(out), "subject_contains: purchase")
}
