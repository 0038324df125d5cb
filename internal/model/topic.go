package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Topic IDs understood by the research endpoint.
// These are also the checkbox IDs of the research page.
const (
	TopicBackground      = "background"
	TopicFinancialHealth = "financial_health"
	TopicMarketPosition  = "market_position"
	TopicRecentNews      = "recent_news"
)

// Topic describes one research criterion.
type Topic struct {
	// ID is the checkbox element ID and the value sent in the criteria parameter.
	ID string `json:"id"`

	// Name is the human-readable section title.
	Name string `json:"name"`

	// Subtopics summarizes what the section covers.
	Subtopics string `json:"subtopics"`
}

// topics is the built-in vocabulary, in the order the research page lists it.
var topics = []Topic{
	{
		ID:        TopicBackground,
		Name:      "Background Information",
		Subtopics: "Mission, vision, history, leadership, company culture",
	},
	{
		ID:        TopicFinancialHealth,
		Name:      "Financial Health",
		Subtopics: "revenue, profits, debt, stock performance",
	},
	{
		ID:        TopicMarketPosition,
		Name:      "Market Position",
		Subtopics: "Competitors, market share, industry trends",
	},
	{
		ID:        TopicRecentNews,
		Name:      "Recent News",
		Subtopics: "Mergers, acquisitions, product launches, controversies",
	},
}

// Topics returns a copy of the built-in topic vocabulary.
func Topics() []Topic {
	out := make([]Topic, len(topics))
	copy(out, topics)
	return out
}

// TopicIDs returns the IDs of the built-in topics in page order.
func TopicIDs() []string {
	ids := make([]string, 0, len(topics))
	for _, t := range topics {
		ids = append(ids, t.ID)
	}
	return ids
}

// LookupTopic returns the built-in topic with the given ID.
func LookupTopic(id string) (Topic, bool) {
	for _, t := range topics {
		if t.ID == id {
			return t, true
		}
	}
	return Topic{}, false
}

// DisplayName returns a human-readable name for a criteria ID.
// Unknown IDs are title-cased with underscores and dashes turned into spaces,
// so "supply_chain" becomes "Supply Chain".
func DisplayName(id string) string {
	if t, ok := LookupTopic(id); ok {
		return t.Name
	}
	words := strings.NewReplacer("_", " ", "-", " ").Replace(id)
	return cases.Title(language.English).String(strings.TrimSpace(words))
}
