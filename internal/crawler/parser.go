package crawler

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Default structural probe selectors.
const (
	DefaultActionButtonSelector = "a.btn.btn-primary"
	DefaultNavPanelSelector     = "div.container-fluid.container-header"
	DefaultQuickLinksSelector   = "h3.panel-title"
	DefaultQuickLinksText       = "I Want To"
)

// ParserOptions configures the structural probes and text extraction.
// Zero values select the defaults.
type ParserOptions struct {
	// LinkSection is a space separated class list. When a div with those
	// classes exists, links are only taken from inside it.
	LinkSection string

	// TextSelectors, when set, replace paragraph text with the text of the
	// matched elements.
	TextSelectors []string

	ActionButtonSelector string
	NavPanelSelector     string
	QuickLinksSelector   string
	QuickLinksText       string
}

// Parser extracts links and page facts from HTML. It is safe for concurrent
// use; each Parse call builds its own document.
type Parser struct {
	linkSection     string
	textSelectors   []string
	actionButton    string
	navPanel        string
	quickLinks      string
	quickLinksLabel string
}

// ParseResult contains everything extracted from one document.
type ParseResult struct {
	// Title is the text of the first <title> element.
	Title string

	// Links are raw href values of anchor-like elements in document order.
	Links []string

	// BodyText is the newline-joined paragraph text (or selector text).
	BodyText string

	// Emails are addresses from mailto: links and from the document text,
	// lowercased and deduplicated.
	Emails []string

	HasActionButton bool
	HasNavPanel     bool
	HasQuickLinks   bool
}

// NewParser validates the configured selectors and returns a Parser.
func NewParser(opts ParserOptions) (*Parser, error) {
	p := &Parser{
		linkSection:     strings.TrimSpace(opts.LinkSection),
		textSelectors:   opts.TextSelectors,
		actionButton:    orDefault(opts.ActionButtonSelector, DefaultActionButtonSelector),
		navPanel:        orDefault(opts.NavPanelSelector, DefaultNavPanelSelector),
		quickLinks:      orDefault(opts.QuickLinksSelector, DefaultQuickLinksSelector),
		quickLinksLabel: orDefault(opts.QuickLinksText, DefaultQuickLinksText),
	}

	selectors := append([]string{p.actionButton, p.navPanel, p.quickLinks}, p.textSelectors...)
	if p.linkSection != "" {
		selectors = append(selectors, classSelector("div", p.linkSection))
	}
	for _, sel := range selectors {
		if _, err := cascadia.Compile(sel); err != nil {
			return nil, fmt.Errorf("invalid selector %q: %w", sel, err)
		}
	}
	return p, nil
}

// Parse reads an HTML document. Malformed markup degrades to empty fields;
// an error is returned only when the content cannot be read at all.
func (p *Parser) Parse(content io.Reader) (result *ParseResult, err error) {
	raw, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()

	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	result = &ParseResult{
		Links:  make([]string, 0),
		Emails: make([]string, 0),
	}

	linkRoot := root
	if p.linkSection != "" {
		if section := doc.Find(classSelector("div", p.linkSection)).First(); section.Length() > 0 {
			linkRoot = section.Nodes[0]
		}
	}

	emails := newOrderedSet()
	var paragraphs []string
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inLinkRoot bool) {
		if n == linkRoot {
			inLinkRoot = true
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" {
					result.Title = strings.TrimSpace(nodeText(n))
				}
			case "a", "area":
				if href, ok := getAttr(n, "href"); ok {
					if inLinkRoot {
						result.Links = append(result.Links, href)
					}
					if addr := mailtoAddress(href); addr != "" {
						emails.add(addr)
					}
				}
			case "p":
				if text := strings.TrimSpace(nodeText(n)); text != "" {
					paragraphs = append(paragraphs, text)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inLinkRoot)
		}
	}
	walk(root, false)

	if len(p.textSelectors) > 0 {
		result.BodyText = p.selectorText(doc)
	} else {
		result.BodyText = strings.Join(paragraphs, "\n")
	}

	for _, addr := range emailRegex.FindAllString(nodeText(root), -1) {
		emails.add(strings.ToLower(addr))
	}
	result.Emails = emails.items

	result.HasActionButton = doc.Find(p.actionButton).Length() > 0
	result.HasNavPanel = doc.Find(p.navPanel).Length() > 0
	doc.Find(p.quickLinks).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(strings.ReplaceAll(s.Text(), "\u00a0", " ")) == p.quickLinksLabel {
			result.HasQuickLinks = true
			return false
		}
		return true
	})

	return result, nil
}

func (p *Parser) selectorText(doc *goquery.Document) string {
	var parts []string
	for _, sel := range p.textSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
	}
	return strings.Join(parts, "\n")
}

// IsHTML reports whether a Content-Type names an HTML document. An empty
// content type is accepted.
func IsHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// mailtoAddress returns the lowercased address of a mailto: href.
func mailtoAddress(href string) string {
	href = strings.TrimSpace(href)
	if len(href) < len("mailto:") || !strings.EqualFold(href[:len("mailto:")], "mailto:") {
		return ""
	}
	addr := href[len("mailto:"):]
	if i := strings.IndexByte(addr, '?'); i >= 0 {
		addr = addr[:i]
	}
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !strings.Contains(addr, "@") {
		return ""
	}
	return addr
}

// classSelector turns "container-fluid container-body" into
// "div.container-fluid.container-body".
func classSelector(tag, classes string) string {
	fields := strings.Fields(classes)
	if len(fields) == 0 {
		return tag
	}
	return tag + "." + strings.Join(fields, ".")
}

// nodeText concatenates the text nodes under n, skipping script and style.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: make([]string, 0)}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
