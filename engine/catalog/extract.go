package catalog

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/partscout/partscout/engine/domain"
)

// cardRef is one product card on the listing page.
type cardRef struct {
	URL   string
	Title string
}

// extractCards pulls product cards off the listing page, at most max.
// The product URL is carried by the title node itself, either as a plain
// href or as a base64-encoded data-href64 attribute; cards carry other
// anchors (brand, image) whose hrefs are not product URLs. Cards without
// a title node, or whose title node yields no URL, are skipped rather
// than emitted with an empty URL.
func extractCards(doc *goquery.Document, baseURL string, max int) []cardRef {
	var cards []cardRef
	seen := make(map[string]bool)
	doc.Find("div.card.itemRow").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if max > 0 && len(cards) >= max {
			return false
		}
		titleNode := card.Find("a.card-title.itemTitle, span.card-title.itemTitle").First()
		if titleNode.Length() == 0 {
			return true
		}
		rawURL := titleURL(titleNode)
		if rawURL == "" {
			return true
		}
		abs := absoluteURL(baseURL, rawURL)
		if seen[abs] {
			return true
		}
		seen[abs] = true
		cards = append(cards, cardRef{URL: abs, Title: strings.TrimSpace(titleNode.Text())})
		return true
	})
	return cards
}

func titleURL(title *goquery.Selection) string {
	if href, ok := title.Attr("href"); ok && href != "" {
		return href
	}
	if encoded, ok := title.Attr("data-href64"); ok && encoded != "" {
		if decoded, err := base64.StdEncoding.DecodeString(encoded); err == nil {
			return string(decoded)
		}
	}
	return ""
}

func absoluteURL(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return base + "/" + strings.TrimPrefix(ref, "/")
}

// fillDetails extracts the product-page fields into listing. Every
// extractor is independent: a field the page does not carry keeps its
// FieldUnavailable sentinel without affecting the others.
func fillDetails(listing *domain.ProductListing, doc *goquery.Document) {
	setIfPresent(&listing.Title, doc.Find("h1").First().Text())

	if img, ok := doc.Find("div.carousel-inner span.zoomImg").First().Attr("href"); ok {
		setIfPresent(&listing.ImageURL, img)
	}
	setIfPresent(&listing.PriceRaw, doc.Find("span.supplierPrice").First().Text())
	setIfPresent(&listing.SellerName, doc.Find("div.supplierBox a[data-click=infopage]").First().Text())
	setIfPresent(&listing.DeliveryTime, deliveryTime(doc))
	setIfPresent(&listing.Description, doc.Find("div#partDescription").First().Text())
}

func setIfPresent(dst *string, val string) {
	if v := strings.TrimSpace(val); v != "" {
		*dst = v
	}
}

// deliveryTime finds the text node following the "Lieferzeit" label
// inside the part-info block. The value is unmarked text between the
// label span and the next element.
func deliveryTime(doc *goquery.Document) string {
	var out string
	doc.Find("div.partInfo span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.Contains(s.Text(), "Lieferzeit") {
			return true
		}
		for n := s.Nodes[0].NextSibling; n != nil; n = n.NextSibling {
			if n.Type == html.TextNode {
				if t := strings.TrimSpace(n.Data); t != "" {
					out = t
					return false
				}
			}
			if n.Type == html.ElementNode {
				break
			}
		}
		return false
	})
	return out
}

// extractResultCount reads the origin's result-count badge. The badge
// text looks like "1.234 Treffer"; thousands dots are stripped. Anything
// non-numeric counts as zero.
func extractResultCount(doc *goquery.Document) int {
	text := strings.TrimSpace(doc.Find("div.col-6.resultHits b").First().Text())
	if text == "" {
		return 0
	}
	first := strings.Fields(text)[0]
	first = strings.ReplaceAll(first, ".", "")
	n, err := strconv.Atoi(first)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
