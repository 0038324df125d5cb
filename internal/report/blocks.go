package report

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockListItem
	blockPreformatted
)

// block is one unit of report layout.
type block struct {
	kind  blockKind
	level int // heading level, 1-6
	text  string
}

// parseBlocks splits report markup into layout blocks in document order.
// Text outside any recognized block becomes a paragraph, so plain-text
// reports yield one paragraph per run of text.
func parseBlocks(content string) ([]block, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	p := &blockParser{}
	p.walk(doc)
	p.flushLoose()
	return p.blocks, nil
}

type blockParser struct {
	blocks []block
	loose  strings.Builder
}

func (p *blockParser) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		p.loose.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Head, atom.Template:
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			p.add(block{kind: blockHeading, level: int(n.Data[1] - '0'), text: collapse(textOf(n))})
			return
		case atom.P, atom.Blockquote, atom.Dt, atom.Dd, atom.Figcaption:
			p.add(block{kind: blockParagraph, text: collapse(textOf(n))})
			return
		case atom.Li:
			p.add(block{kind: blockListItem, text: collapse(textOf(n))})
			return
		case atom.Pre:
			p.add(block{kind: blockPreformatted, text: strings.Trim(textOf(n), "\n")})
			return
		case atom.Br, atom.Div, atom.Section, atom.Article, atom.Ul, atom.Ol, atom.Table, atom.Tr:
			p.flushLoose()
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

func (p *blockParser) add(b block) {
	p.flushLoose()
	if b.text == "" {
		return
	}
	p.blocks = append(p.blocks, b)
}

func (p *blockParser) flushLoose() {
	text := collapse(p.loose.String())
	p.loose.Reset()
	if text != "" {
		p.blocks = append(p.blocks, block{kind: blockParagraph, text: text})
	}
}

// textOf returns the concatenated text below n, skipping scripts and styles.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
			return
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// collapse trims s and folds internal whitespace runs to one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
