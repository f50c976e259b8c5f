package catalog

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/partscout/partscout/engine/domain"
	"github.com/partscout/partscout/pkg/cache"
	"github.com/partscout/partscout/pkg/metrics"
)

const detailPage = `
<html><body>
<h1>Bremsscheibe RIDEX 82B0030</h1>
<div class="carousel-inner"><span class="zoomImg" href="https://img.example/82B0030.jpg"></span></div>
<span class="supplierPrice">30,91 €</span>
<div class="supplierBox"><a data-click="infopage">Autoteile Meyer GmbH</a></div>
<div class="partInfo"><span>Lieferzeit:</span> 2-4 Werktage <span>Versand</span></div>
<div id="partDescription">Belüftete Bremsscheibe, Vorderachse.</div>
</body></html>`

// originServer serves a listing page with two cards and a detail page,
// recording the arrival time of every request.
type originServer struct {
	*httptest.Server
	mu    sync.Mutex
	hits  []string
	times []time.Time
}

func newOriginServer(t *testing.T) *originServer {
	t.Helper()
	o := &originServer{}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.hits = append(o.hits, r.URL.Path)
		o.times = append(o.times, time.Now())
		o.mu.Unlock()

		switch {
		case strings.HasPrefix(r.URL.Path, "/shop/"):
			href64 := base64.StdEncoding.EncodeToString([]byte("/product/2"))
			fmt.Fprintf(w, `
<div class="col-6 resultHits"><b>1.234 Treffer</b></div>
<div class="card itemRow">
  <a href="/hersteller/ridex">RIDEX</a>
  <a class="card-title itemTitle" href="/product/1">Bremsscheibe vorne</a>
</div>
<div class="card itemRow">
  <span class="card-title itemTitle" data-href64="%s">Bremsscheibe hinten</span>
</div>
<div class="card itemRow">
  <span class="card-title itemTitle">kaputte Karte ohne Link</span>
</div>`, href64)
		case strings.HasPrefix(r.URL.Path, "/product/"):
			fmt.Fprint(w, detailPage)
		default:
			http.NotFound(w, r)
		}
	}))
	return o
}

func (o *originServer) requestCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.hits)
}

func newTestScraper(baseURL string) (*Scraper, *metrics.Registry) {
	reg := metrics.New()
	s := New(Config{
		BaseURL:           baseURL,
		PacerMin:          30 * time.Millisecond,
		PacerMax:          30 * time.Millisecond,
		RequestsPerSecond: 1000,
	}, cache.NewMemory(), reg, nil)
	return s, reg
}

func TestSearchScrapesCardsAndDetails(t *testing.T) {
	origin := newOriginServer(t)
	defer origin.Close()

	s, _ := newTestScraper(origin.URL)
	listings, err := s.Search(context.Background(), Request{Term: "bremsscheibe", MaxResults: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 2 {
		t.Fatalf("want 2 listings (card without link skipped), got %d", len(listings))
	}

	first := listings[0]
	if first.ProductURL != origin.URL+"/product/1" {
		t.Errorf("ProductURL = %q", first.ProductURL)
	}
	if first.Title != "Bremsscheibe RIDEX 82B0030" {
		t.Errorf("detail page h1 should override card title, got %q", first.Title)
	}
	if first.PriceRaw != "30,91 €" {
		t.Errorf("PriceRaw = %q", first.PriceRaw)
	}
	if first.SellerName != "Autoteile Meyer GmbH" {
		t.Errorf("SellerName = %q", first.SellerName)
	}
	if first.DeliveryTime != "2-4 Werktage" {
		t.Errorf("DeliveryTime = %q", first.DeliveryTime)
	}
	if first.ImageURL != "https://img.example/82B0030.jpg" {
		t.Errorf("ImageURL = %q", first.ImageURL)
	}
	if first.Description != "Belüftete Bremsscheibe, Vorderachse." {
		t.Errorf("Description = %q", first.Description)
	}

	// Second card resolved its URL via data-href64.
	if listings[1].ProductURL != origin.URL+"/product/2" {
		t.Errorf("base64 href not decoded: %q", listings[1].ProductURL)
	}
}

func TestSearchPacesDetailFetches(t *testing.T) {
	origin := newOriginServer(t)
	defer origin.Close()

	s, _ := newTestScraper(origin.URL)
	if _, err := s.Search(context.Background(), Request{Term: "x", MaxResults: 5}); err != nil {
		t.Fatal(err)
	}

	origin.mu.Lock()
	defer origin.mu.Unlock()
	// listing + 2 details; the gap between the two detail fetches must
	// honor the pacer's minimum.
	if len(origin.times) != 3 {
		t.Fatalf("expected 3 origin requests, got %d", len(origin.times))
	}
	if gap := origin.times[2].Sub(origin.times[1]); gap < 30*time.Millisecond {
		t.Fatalf("detail fetches not paced: gap %v", gap)
	}
}

func TestSearchSecondCallServedFromCache(t *testing.T) {
	origin := newOriginServer(t)
	defer origin.Close()

	s, reg := newTestScraper(origin.URL)
	req := Request{Term: "bremsscheibe", MaxResults: 5}

	first, err := s.Search(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	fetched := origin.requestCount()

	second, err := s.Search(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if origin.requestCount() != fetched {
		t.Fatal("cached query must not touch the origin")
	}
	if len(second) != len(first) || second[0] != first[0] {
		t.Fatal("cached result differs from scraped result")
	}
	if reg.Counter("catalog_cache_hits_total", "").Value() != 1 {
		t.Fatal("cache hit not counted")
	}
}

func TestSearchMaxResultsCapsCards(t *testing.T) {
	origin := newOriginServer(t)
	defer origin.Close()

	s, _ := newTestScraper(origin.URL)
	listings, err := s.Search(context.Background(), Request{Term: "x", MaxResults: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 1 {
		t.Fatalf("want 1 listing, got %d", len(listings))
	}
}

func TestSearchOriginFailureYieldsCachedEmpty(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer origin.Close()

	s, _ := newTestScraper(origin.URL)
	req := Request{Term: "x", MaxResults: 5}

	listings, err := s.Search(context.Background(), req)
	if err != nil {
		t.Fatal("origin failure must not be a pipeline error")
	}
	if len(listings) != 0 {
		t.Fatalf("want empty result, got %d", len(listings))
	}

	// The empty result is cached: no second origin hit.
	if _, err := s.Search(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	payload, ok, err := s.store.Get(context.Background(), CacheKey(req))
	if err != nil || !ok {
		t.Fatalf("empty result not cached: ok=%v err=%v", ok, err)
	}
	if string(payload) != `{"listings":[]}` {
		t.Fatalf("unexpected cache payload %s", payload)
	}
}

func TestSearchDropsListingOnDetailFetchFailure(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/shop/"):
			fmt.Fprint(w, `
<div class="card itemRow"><a class="card-title itemTitle" href="/product/ok">lebt</a></div>
<div class="card itemRow"><a class="card-title itemTitle" href="/product/dead">tot</a></div>`)
		case r.URL.Path == "/product/ok":
			fmt.Fprint(w, detailPage)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer origin.Close()

	s, _ := newTestScraper(origin.URL)
	listings, err := s.Search(context.Background(), Request{Term: "x", MaxResults: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 1 {
		t.Fatalf("unfetchable product must be dropped, got %d listings", len(listings))
	}
	if listings[0].ProductURL != origin.URL+"/product/ok" {
		t.Fatalf("wrong survivor: %q", listings[0].ProductURL)
	}
}

func TestCacheKeyDistinguishesBrand(t *testing.T) {
	base := Request{Term: "bremsscheibe", MaxResults: 10, VehicleFragment: "frag"}
	withBrand := base
	withBrand.Brand = domain.BrandBosch
	if CacheKey(base) == CacheKey(withBrand) {
		t.Fatal("brand must be part of the cache key")
	}
}

func TestListingURL(t *testing.T) {
	s, _ := newTestScraper("https://example.de")
	cases := []struct {
		req  Request
		want string
	}{
		{Request{Term: "bremsscheibe"}, "https://example.de/shop/q-bremsscheibe/"},
		{Request{Term: "bremsscheibe", Brand: domain.BrandFebiBilstein},
			"https://example.de/shop/h-febi-bilstein/q-bremsscheibe/"},
		{Request{Term: "bremsscheibe", VehicleFragment: "vw-passat-ersatzteile-fi19599"},
			"https://example.de/shop/q-bremsscheibe/vw-passat-ersatzteile-fi19599"},
	}
	for _, c := range cases {
		if got := s.ListingURL(c.req); got != c.want {
			t.Errorf("ListingURL(%+v) = %q, want %q", c.req, got, c.want)
		}
	}
}

func TestTotalCount(t *testing.T) {
	origin := newOriginServer(t)
	defer origin.Close()

	s, _ := newTestScraper(origin.URL)
	n, err := s.TotalCount(context.Background(), Request{Term: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1234 {
		t.Fatalf("TotalCount = %d, want 1234", n)
	}
}

func TestExtractCardsResolvesURLFromTitleNode(t *testing.T) {
	// A card carries other anchors (brand, image links) before the title;
	// only the title node's own href/data-href64 identifies the product.
	href64 := base64.StdEncoding.EncodeToString([]byte("/product/77"))
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(fmt.Sprintf(`
<div class="card itemRow">
  <a href="/hersteller/bosch">Bosch</a>
  <span class="card-title itemTitle" data-href64="%s">Bremsbelag</span>
</div>`, href64)))
	cards := extractCards(doc, "https://x.de", 10)
	if len(cards) != 1 {
		t.Fatalf("cards = %+v", cards)
	}
	if cards[0].URL != "https://x.de/product/77" {
		t.Fatalf("URL resolved from non-title anchor: %q", cards[0].URL)
	}
}

func TestExtractCardsSkipsTitlelessCard(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(`
<div class="card itemRow"><a href="/irgendwo">kein Titel</a></div>
<div class="card itemRow"><a class="card-title itemTitle" href="/product/1">echt</a></div>`))
	cards := extractCards(doc, "https://x.de", 10)
	if len(cards) != 1 || cards[0].URL != "https://x.de/product/1" {
		t.Fatalf("titleless card not skipped: %+v", cards)
	}
}

func TestExtractCardsDeduplicatesByURL(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(`
<div class="card itemRow"><a class="card-title itemTitle" href="/product/1">erste</a></div>
<div class="card itemRow"><a class="card-title itemTitle" href="/product/1">doppelt</a></div>
<div class="card itemRow"><a class="card-title itemTitle" href="/product/2">zweite</a></div>`))
	cards := extractCards(doc, "https://x.de", 10)
	if len(cards) != 2 {
		t.Fatalf("duplicate product URL not collapsed: %+v", cards)
	}
}

func TestExtractResultCountNonNumeric(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="col-6 resultHits"><b>keine Treffer</b></div>`))
	if n := extractResultCount(doc); n != 0 {
		t.Fatalf("non-numeric badge should count 0, got %d", n)
	}
}

func TestFillDetailsDefaultsToSentinel(t *testing.T) {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(`<html><body><h1>Nur Titel</h1></body></html>`))
	listing := domain.ProductListing{
		ImageURL:     domain.FieldUnavailable,
		PriceRaw:     domain.FieldUnavailable,
		SellerName:   domain.FieldUnavailable,
		DeliveryTime: domain.FieldUnavailable,
		Description:  domain.FieldUnavailable,
	}
	fillDetails(&listing, doc)
	if listing.Title != "Nur Titel" {
		t.Errorf("Title = %q", listing.Title)
	}
	for field, v := range map[string]string{
		"ImageURL": listing.ImageURL, "PriceRaw": listing.PriceRaw,
		"SellerName": listing.SellerName, "DeliveryTime": listing.DeliveryTime,
		"Description": listing.Description,
	} {
		if v != domain.FieldUnavailable {
			t.Errorf("%s = %q, want sentinel", field, v)
		}
	}
}
