package extract

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"prepcal/internal/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	deliveryDateLabel = "Delivery Date:"
	recipesLabel      = "Recipes:"
	summaryPrefix     = "FreshPrep Order - "

	// FreshPrep delivers in a fixed one hour window.
	deliveryStartHour = 17
	deliveryEndHour   = 18
)

// Extractor pulls Order records out of notification email bodies.
type Extractor struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewExtractor creates a new Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger, now: time.Now}
}

// Extract parses an HTML email body and returns the Order it describes.
// A nil Order with a nil error means the email contains no recognizable
// order; that is a normal outcome, not a fault.
func (e *Extractor) Extract(htmlBody string) (*models.Order, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email HTML: %w", err)
	}

	start, end := e.deliveryWindow(doc)

	items := recipeItems(doc)
	if len(items) == 0 {
		return nil, nil
	}

	joined := strings.Join(items, ", ")
	return &models.Order{
		Summary:     summaryPrefix + joined,
		Description: joined,
		Items:       items,
		Start:       start,
		End:         end,
	}, nil
}

// deliveryWindow locates the bold "Delivery Date:" marker and normalizes the
// text that follows it into the delivery window. A missing marker, a missing
// sibling or an unparseable phrase degrades to a window of "now"; it never
// aborts extraction of the item list.
func (e *Extractor) deliveryWindow(doc *goquery.Document) (time.Time, time.Time) {
	now := e.now().UTC()
	start, end := now, now

	doc.Find("strong, b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != deliveryDateLabel {
			return true
		}
		sibling := s.Get(0).NextSibling
		if sibling == nil || sibling.Type != html.TextNode {
			e.logger.Warn("Delivery date marker has no text sibling, using current time")
			return false
		}
		phrase := strings.TrimSpace(sibling.Data)
		st, err := normalizeDeliveryDateAt(phrase, deliveryStartHour, 0, now)
		if err != nil {
			e.logger.Warn("Could not normalize delivery date, using current time", "phrase", phrase, "error", err)
			return false
		}
		en, err := normalizeDeliveryDateAt(phrase, deliveryEndHour, 0, now)
		if err != nil {
			e.logger.Warn("Could not normalize delivery date, using current time", "phrase", phrase, "error", err)
			return false
		}
		start, end = st, en
		return false
	})

	return start, end
}

// recipeItems finds the "Recipes:" marker anywhere in the document and
// collects the text of every list item inside the element that follows it.
func recipeItems(doc *goquery.Document) []string {
	var marker *html.Node
	for _, root := range doc.Nodes {
		if marker = findByOwnText(root, recipesLabel); marker != nil {
			break
		}
	}
	if marker == nil {
		return nil
	}

	list := nextElementSibling(marker)
	if list == nil {
		return nil
	}

	var items []string
	goquery.NewDocumentFromNode(list).Find("li").Each(func(_ int, li *goquery.Selection) {
		items = append(items, strings.TrimSpace(li.Text()))
	})
	return items
}

// findByOwnText walks the tree depth first and returns the first node whose
// own text, excluding descendant elements, trims to exactly label. Partial
// matches do not count.
func findByOwnText(n *html.Node, label string) *html.Node {
	if strings.TrimSpace(ownText(n)) == label {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByOwnText(c, label); found != nil {
			return found
		}
	}
	return nil
}

// ownText returns the text carried directly by a node: the data of a text
// node, or the concatenated direct text children of an element.
func ownText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func nextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}
