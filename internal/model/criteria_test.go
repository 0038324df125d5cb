package model

import (
	"errors"
	"testing"
)

// TestCriteriaString tests criteria serialization.
func TestCriteriaString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		criteria Criteria
		want     string
	}{
		{name: "two selected ids", criteria: Criteria{"a", "b"}, want: "a;b"},
		{name: "single id", criteria: Criteria{"recent_news"}, want: "recent_news"},
		{name: "empty selection", criteria: Criteria{}, want: ""},
		{name: "nil selection", criteria: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.criteria.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestParseCriteria tests splitting serialized criteria.
func TestParseCriteria(t *testing.T) {
	t.Parallel()

	t.Run("empty string yields no criteria", func(t *testing.T) {
		t.Parallel()
		if got := ParseCriteria(""); len(got) != 0 {
			t.Errorf("expected empty criteria, got %v", got)
		}
	})

	t.Run("splits on semicolon", func(t *testing.T) {
		t.Parallel()
		got := ParseCriteria("background;recent_news")
		if len(got) != 2 || got[0] != "background" || got[1] != "recent_news" {
			t.Errorf("unexpected criteria %v", got)
		}
		if got.String() != "background;recent_news" {
			t.Errorf("expected round trip, got %q", got.String())
		}
	})
}

// TestCriteriaUnknown tests vocabulary checks.
func TestCriteriaUnknown(t *testing.T) {
	t.Parallel()

	c := Criteria{"background", "esg", "recent_news", "patents"}
	unknown := c.Unknown(TopicIDs())
	if len(unknown) != 2 || unknown[0] != "esg" || unknown[1] != "patents" {
		t.Errorf("expected [esg patents], got %v", unknown)
	}
	if !c.Contains("esg") {
		t.Error("expected criteria to contain esg")
	}
	if c.Contains("market_position") {
		t.Error("expected criteria not to contain market_position")
	}
}

// TestQueryEncode tests the research query string.
func TestQueryEncode(t *testing.T) {
	t.Parallel()

	t.Run("encodes company and criteria", func(t *testing.T) {
		t.Parallel()
		q := Query{Company: "Acme Corp", Criteria: Criteria{"a", "b"}}
		want := "company=Acme+Corp&criteria=a%3Bb"
		if got := q.Encode(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("empty criteria is sent as empty value", func(t *testing.T) {
		t.Parallel()
		q := Query{Company: "Acme"}
		if got := q.Values().Get("criteria"); got != "" {
			t.Errorf("expected empty criteria, got %q", got)
		}
		if _, ok := q.Values()["criteria"]; !ok {
			t.Error("expected criteria parameter to be present")
		}
	})
}

// TestDisplayName tests topic display names.
func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want string
	}{
		{id: TopicFinancialHealth, want: "Financial Health"},
		{id: TopicBackground, want: "Background Information"},
		{id: "supply_chain", want: "Supply Chain"},
		{id: "esg-score", want: "Esg Score"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			if got := DisplayName(tt.id); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestParseVariant tests variant parsing.
func TestParseVariant(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"sentinel", "SENTINEL", " replace "} {
		if _, err := ParseVariant(in); err != nil {
			t.Errorf("expected %q to parse, got %v", in, err)
		}
	}

	_, err := ParseVariant("append")
	if !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("expected ErrUnknownVariant, got %v", err)
	}
}
