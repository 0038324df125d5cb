package model

import (
	"net/url"
	"slices"
	"strings"
)

// CriteriaSeparator joins criteria IDs in the query string.
const CriteriaSeparator = ";"

// Criteria is the ordered list of selected checkbox IDs.
// Order follows the page, not the order in which boxes were ticked.
type Criteria []string

// ParseCriteria splits a serialized criteria string.
// The empty string yields empty criteria rather than a single empty ID.
func ParseCriteria(s string) Criteria {
	if s == "" {
		return Criteria{}
	}
	return Criteria(strings.Split(s, CriteriaSeparator))
}

// String serializes the criteria as the endpoint expects: IDs joined by ";".
func (c Criteria) String() string {
	return strings.Join(c, CriteriaSeparator)
}

// Contains reports whether id is selected.
func (c Criteria) Contains(id string) bool {
	return slices.Contains(c, id)
}

// Unknown returns the IDs that are not part of vocabulary, in order.
func (c Criteria) Unknown(vocabulary []string) []string {
	var unknown []string
	for _, id := range c {
		if !slices.Contains(vocabulary, id) {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// Names returns the display names of the selected criteria.
func (c Criteria) Names() []string {
	names := make([]string, 0, len(c))
	for _, id := range c {
		names = append(names, DisplayName(id))
	}
	return names
}

// Query is the input of one research request.
type Query struct {
	// Company is the raw text of the user input field, sent verbatim.
	Company string `json:"company"`

	// Criteria are the selected checkbox IDs.
	Criteria Criteria `json:"criteria"`
}

// Values returns the query parameters of the research request.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("company", q.Company)
	v.Set("criteria", q.Criteria.String())
	return v
}

// Encode returns the URL-encoded query string.
func (q Query) Encode() string {
	return q.Values().Encode()
}
