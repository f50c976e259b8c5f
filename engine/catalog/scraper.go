// Package catalog scrapes product listings from the origin parts catalog.
// All outbound traffic funnels through one rate limiter and a jittered
// pacer, and every result set is written through to the cache so repeated
// queries never touch the origin twice within the TTL.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/partscout/partscout/engine/domain"
	"github.com/partscout/partscout/pkg/cache"
	"github.com/partscout/partscout/pkg/metrics"
	"github.com/partscout/partscout/pkg/resilience"
)

// Config for the scraper.
type Config struct {
	// BaseURL of the origin site.
	BaseURL string
	// Timeout per HTTP request.
	Timeout time.Duration
	// FreshTTL caches non-empty result sets.
	FreshTTL time.Duration
	// EmptyTTL caches empty result sets (long: an empty page rarely
	// changes and re-scraping it is wasted load).
	EmptyTTL time.Duration
	// PacerMin/PacerMax bound the jittered delay between detail fetches.
	PacerMin time.Duration
	PacerMax time.Duration
	// RequestsPerSecond bounds total origin request rate.
	RequestsPerSecond float64
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.FreshTTL <= 0 {
		c.FreshTTL = 24 * time.Hour
	}
	if c.EmptyTTL <= 0 {
		c.EmptyTTL = 30 * 24 * time.Hour
	}
	if c.PacerMin <= 0 && c.PacerMax <= 0 {
		c.PacerMin = 1 * time.Second
		c.PacerMax = 2 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
}

// Request identifies one catalog query. The zero Brand means no brand
// filter.
type Request struct {
	Term            string
	MaxResults      int
	VehicleFragment string
	Brand           domain.Brand
}

// Scraper fetches and caches catalog listings.
type Scraper struct {
	cfg     Config
	client  *http.Client
	store   cache.Cache
	limiter *rate.Limiter
	logger  *slog.Logger

	cacheHits   *metrics.Counter
	cacheMisses *metrics.Counter
	originReqs  *metrics.Counter

	pickUA func() string
}

// New creates a Scraper. store must be non-nil; logger and reg may be nil.
func New(cfg Config, store cache.Cache, reg *metrics.Registry, logger *slog.Logger) *Scraper {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.New()
	}
	return &Scraper{
		cfg:         cfg,
		client:      &http.Client{Timeout: cfg.Timeout},
		store:       store,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:      logger,
		cacheHits:   reg.Counter("catalog_cache_hits_total", "Catalog queries served from cache"),
		cacheMisses: reg.Counter("catalog_cache_misses_total", "Catalog queries that hit the origin"),
		originReqs:  reg.Counter("catalog_origin_requests_total", "HTTP requests sent to the origin site"),
		pickUA:      randomUserAgent,
	}
}

// cachedResult is the cache wire shape.
type cachedResult struct {
	Listings []domain.ProductListing `json:"listings"`
}

// CacheKey derives the cache key for a request: sha256 over the full
// query tuple, so any differing parameter (brand included) maps to a
// distinct entry.
func CacheKey(req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s", req.Term, req.MaxResults, req.VehicleFragment, req.Brand)
	return "catalog:" + hex.EncodeToString(h.Sum(nil))
}

// Search returns listings for the request, from cache when possible. An
// unreachable or erroring origin yields an empty result set, not an
// error; the empty set is cached with the long TTL.
func (s *Scraper) Search(ctx context.Context, req Request) ([]domain.ProductListing, error) {
	key := CacheKey(req)

	if payload, ok, err := s.store.Get(ctx, key); err != nil {
		s.logger.Warn("cache read failed", "err", err)
	} else if ok {
		var cached cachedResult
		if err := json.Unmarshal(payload, &cached); err == nil {
			s.cacheHits.Inc()
			return cached.Listings, nil
		}
		s.logger.Warn("cache payload corrupt, rescraping", "key", key)
	}
	s.cacheMisses.Inc()

	listings, err := s.scrape(ctx, req)
	if err != nil {
		return nil, err
	}

	ttl := s.cfg.FreshTTL
	if len(listings) == 0 {
		ttl = s.cfg.EmptyTTL
	}
	payload, _ := json.Marshal(cachedResult{Listings: listings})
	if err := s.store.Set(ctx, key, payload, ttl); err != nil {
		s.logger.Warn("cache write failed", "err", err)
	}
	return listings, nil
}

// scrape fetches the listing page and then each product page in
// sequence, paced between requests.
func (s *Scraper) scrape(ctx context.Context, req Request) ([]domain.ProductListing, error) {
	doc, err := s.fetchDocument(ctx, s.ListingURL(req))
	if err != nil {
		// Origin trouble is an empty result, not a pipeline failure.
		s.logger.Warn("listing fetch failed", "term", req.Term, "err", err)
		return []domain.ProductListing{}, nil
	}

	cards := extractCards(doc, s.cfg.BaseURL, req.MaxResults)
	if len(cards) == 0 {
		return []domain.ProductListing{}, nil
	}

	pacer := resilience.NewPacer(s.cfg.PacerMin, s.cfg.PacerMax)
	listings := make([]domain.ProductListing, 0, len(cards))
	for _, card := range cards {
		if err := pacer.Pace(ctx); err != nil {
			return nil, err
		}
		detail, err := s.fetchDocument(ctx, card.URL)
		if err != nil {
			// Unreachable product page: drop the card, keep the rest.
			s.logger.Warn("product fetch failed", "url", card.URL, "err", err)
			continue
		}
		listing := domain.ProductListing{
			ProductURL:   card.URL,
			Title:        card.Title,
			ImageURL:     domain.FieldUnavailable,
			PriceRaw:     domain.FieldUnavailable,
			SellerName:   domain.FieldUnavailable,
			DeliveryTime: domain.FieldUnavailable,
			Description:  domain.FieldUnavailable,
			Brand:        string(req.Brand),
		}
		fillDetails(&listing, detail)
		listings = append(listings, listing)
	}
	return listings, nil
}

// TotalCount fetches the listing page and reports the origin's own result
// count. A missing or non-numeric badge counts as zero.
func (s *Scraper) TotalCount(ctx context.Context, req Request) (int, error) {
	doc, err := s.fetchDocument(ctx, s.ListingURL(req))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrLookupUnavailable, err)
	}
	return extractResultCount(doc), nil
}

// ListingURL builds the catalog search URL:
// <base>/shop/[h-<brandSlug>/]q-<term>/[<fragment>]
func (s *Scraper) ListingURL(req Request) string {
	u := s.cfg.BaseURL + "/shop/"
	if req.Brand != "" {
		u += "h-" + domain.BrandSlug(req.Brand) + "/"
	}
	u += "q-" + url.PathEscape(req.Term) + "/"
	if req.VehicleFragment != "" {
		u += req.VehicleFragment
	}
	return u
}

func (s *Scraper) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.pickUA())
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.5")

	s.originReqs.Inc()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// userAgents rotates per request so origin-side heuristics see a mix of
// browsers rather than one hammering client.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

func randomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}
