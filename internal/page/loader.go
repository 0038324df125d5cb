package page

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Load builds a Document from research page markup.
//
// The markup must contain elements with every ID in RequiredIDs. Checkboxes
// are the input elements of type checkbox that carry an id attribute; their
// initial state follows the checked attribute. The value attribute of
// userInput becomes the initial input value.
func Load(r io.Reader) (*Document, error) {
	html, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	for _, id := range RequiredIDs() {
		if html.Find(idSelector(id)).Length() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingElement, id)
		}
	}

	d := NewDocument()

	var addErr error
	html.Find("input").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.AttrOr("type", "")), "checkbox") {
			return true
		}
		id := s.AttrOr("id", "")
		if id == "" {
			return true
		}
		_, checked := s.Attr("checked")
		if err := d.AddCheckbox(id, checked); err != nil {
			addErr = err
			return false
		}
		return true
	})
	if addErr != nil {
		return nil, addErr
	}

	if v, ok := html.Find(idSelector(IDUserInput)).First().Attr("value"); ok {
		d.Input().SetValue(v)
	}

	return d, nil
}

// idSelector matches an element by exact id attribute.
func idSelector(id string) string {
	return fmt.Sprintf(`[id=%q]`, id)
}
