// Package vehicle resolves an HSN/TSN regulatory code into a canonical
// vehicle descriptor by querying the origin site's vehicle-lookup endpoint
// and parsing the semi-structured HTML fragment it embeds in its JSON
// response.
package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/partscout/partscout/engine/domain"
	"github.com/partscout/partscout/pkg/resilience"
)

// Config for the resolver.
type Config struct {
	// BaseURL of the origin site, e.g. "https://www.autoteile-markt.de".
	BaseURL string
	// Timeout for the lookup call.
	Timeout time.Duration
}

// Resolver performs vehicle lookups against the origin site.
type Resolver struct {
	cfg     Config
	client  *http.Client
	breaker *resilience.Breaker
	logger  *slog.Logger
}

// New creates a Resolver. A nil logger falls back to slog.Default().
func New(cfg Config, logger *slog.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		logger:  logger,
	}
}

// lookupEnvelope is the JSON response of the kba endpoint; Content holds
// an HTML fragment.
type lookupEnvelope struct {
	Content string `json:"content"`
}

// Resolve looks up (hsn, tsn) and returns the vehicle identity. A
// transport or HTTP failure surfaces as ErrLookupUnavailable. A response
// the parser cannot find a vehicle row in yields an identity with all
// fields unset, not an error; the caller decides whether that is fatal.
func (r *Resolver) Resolve(ctx context.Context, hsn, tsn string) (domain.VehicleIdentity, error) {
	var identity domain.VehicleIdentity

	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		html, err := r.fetchFragment(ctx, hsn, tsn)
		if err != nil {
			return err
		}
		identity = r.parseFragment(html)
		return nil
	})
	if err != nil {
		return domain.VehicleIdentity{}, fmt.Errorf("%w: %v", domain.ErrLookupUnavailable, err)
	}

	if identity.Complete() {
		identity.CatalogURL = r.buildCatalogURL(identity)
		identity.SearchCode = searchCode(identity.CatalogURL)
	}
	return identity, nil
}

func (r *Resolver) fetchFragment(ctx context.Context, hsn, tsn string) (string, error) {
	form := url.Values{
		"provider": {"kumasoft"},
		"type":     {"1"},
		"hsn":      {hsn},
		"tsn":      {tsn},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.cfg.BaseURL+"/api/vehicle/kba", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	// The endpoint rejects non-browser callers; mimic the site's own
	// XHR headers.
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Origin", r.cfg.BaseURL)
	req.Header.Set("Referer", r.cfg.BaseURL+"/")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("kba lookup: status %d", resp.StatusCode)
	}

	var envelope lookupEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("kba lookup: decode: %w", err)
	}
	return envelope.Content, nil
}

// parseFragment extracts brand/model/engine/kbaId from the lookup HTML.
// A missing or unrecognisable row leaves all fields unset.
func (r *Resolver) parseFragment(html string) domain.VehicleIdentity {
	var identity domain.VehicleIdentity

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		r.logger.Warn("kba fragment unparsable", "err", err)
		return identity
	}

	row := doc.Find("div.row.top5").First()
	if row.Length() == 0 {
		r.logger.Warn("kba fragment has no vehicle row")
		return identity
	}

	brandModel := strings.TrimSpace(row.Find("div.col-sm-4").First().Text())
	if brand, model, ok := strings.Cut(brandModel, " "); ok {
		identity.Brand = brand
		identity.Model = strings.TrimSpace(model)
	} else {
		identity.Brand = brandModel
	}
	identity.Engine = strings.TrimSpace(row.Find("div.col-sm-2").First().Text())
	identity.KBAID, _ = row.Find("button[data-kbaselect]").First().Attr("data-kbaselect")

	return identity
}

// buildCatalogURL derives the vehicle's catalog URL. Only called for a
// complete identity; the result fails closed otherwise.
func (r *Resolver) buildCatalogURL(v domain.VehicleIdentity) string {
	brandModelSlug := domain.Slugify(v.Brand + " " + v.Model)
	engineSlug := domain.Slugify(v.Engine)
	return fmt.Sprintf("%s/shop/q-lamp/%s-%s-ersatzteile-fi%s",
		r.cfg.BaseURL, brandModelSlug, engineSlug, v.KBAID)
}

// searchCode is the last path segment of the catalog URL, with trailing
// slashes stripped first.
func searchCode(catalogURL string) string {
	if catalogURL == "" {
		return ""
	}
	trimmed := strings.TrimRight(catalogURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
