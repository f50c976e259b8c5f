// Package search orchestrates a parts search: normalize the free-text
// query, fan out over the requested brand filters, aggregate and
// price-filter the listings, and report the parameters the pipeline
// actually ran with.
package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/partscout/partscout/engine/catalog"
	"github.com/partscout/partscout/engine/domain"
	"github.com/partscout/partscout/pkg/fn"
)

// allBrandsTag labels the single branch of an unfiltered search.
const allBrandsTag = "ALL"

// TextNormalizer turns free-form part text into a short catalog search
// term.
type TextNormalizer interface {
	Normalize(ctx context.Context, text string, positionHint string) (string, error)
}

// Cataloger is the slice of the catalog scraper the orchestrator needs.
type Cataloger interface {
	Search(ctx context.Context, req catalog.Request) ([]domain.ProductListing, error)
}

// Orchestrator runs the fan-out search pipeline.
type Orchestrator struct {
	catalog    Cataloger
	normalizer TextNormalizer
	logger     *slog.Logger
}

// New creates an Orchestrator. normalizer may be nil, in which case the
// raw query text is used as the search term. A nil logger falls back to
// slog.Default().
func New(cat Cataloger, normalizer TextNormalizer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{catalog: cat, normalizer: normalizer, logger: logger}
}

// Run executes the search. Branch failures are tolerated: a branch that
// errors is logged and dropped, the others still contribute. Only a
// query with no usable term at all is a hard error.
func (o *Orchestrator) Run(ctx context.Context, q domain.PartQuery) (domain.SearchResult, error) {
	if err := domain.ValidateQuery(q); err != nil {
		return domain.SearchResult{}, err
	}

	term := o.searchTerm(ctx, q)

	type branch struct {
		tag    string
		result fn.Result[[]domain.ProductListing]
	}
	branches := make([]branch, 0, len(q.BrandFilters)+1)

	run := func(tag string, brand domain.Brand) {
		listings, err := o.catalog.Search(ctx, catalog.Request{
			Term:            term,
			MaxResults:      q.MaxResults,
			VehicleFragment: q.VehicleFragment,
			Brand:           brand,
		})
		branches = append(branches, branch{tag: tag, result: fn.FromPair(listings, err)})
	}

	if len(q.BrandFilters) == 0 {
		run(allBrandsTag, "")
	} else {
		for _, b := range q.BrandFilters {
			run(string(b), b)
		}
	}

	var listings []domain.ProductListing
	for _, br := range branches {
		branchListings, err := br.result.Unwrap()
		if err != nil {
			o.logger.Warn("search branch failed", "branch", br.tag, "err", err)
			continue
		}
		for _, l := range branchListings {
			l.PriceValue = domain.ParsePrice(l.PriceRaw)
			if l.Brand == "" || l.Brand == domain.FieldUnavailable {
				l.Brand = br.tag
			}
			if l.Position == "" {
				l.Position = string(q.PositionHint)
			}
			listings = append(listings, l)
		}
	}

	listings = filterByPrice(listings, q.PriceMin, q.PriceMax)

	return domain.SearchResult{
		Listings: listings,
		ParametersUsed: domain.SearchParameters{
			VINRecognized:      q.VehicleFragment,
			CodeRecognized:     q.VehicleFragment,
			IdentifiedPartType: term,
			VehicleModel: domain.VehicleModel{
				BrandModel: brandModelLabel(q.BrandFilters),
			},
			TotalProducts: len(listings),
		},
	}, nil
}

// searchTerm normalizes the raw query text, degrading to the raw text
// when no normalizer is wired or it fails.
func (o *Orchestrator) searchTerm(ctx context.Context, q domain.PartQuery) string {
	raw := strings.TrimSpace(q.RawText)
	if o.normalizer == nil || raw == "" {
		return raw
	}
	term, err := o.normalizer.Normalize(ctx, raw, string(q.PositionHint))
	if err != nil {
		o.logger.Warn("query normalization failed, using raw text", "err", err)
		return raw
	}
	return term
}

// filterByPrice keeps listings whose parsed price lies within the
// inclusive [min, max] bounds. A nil bound is open.
func filterByPrice(listings []domain.ProductListing, min, max *float64) []domain.ProductListing {
	if min == nil && max == nil {
		return listings
	}
	return fn.Filter(listings, func(l domain.ProductListing) bool {
		if min != nil && l.PriceValue < *min {
			return false
		}
		if max != nil && l.PriceValue > *max {
			return false
		}
		return true
	})
}

func brandModelLabel(brands []domain.Brand) string {
	if len(brands) == 0 {
		return "Any"
	}
	labels := fn.Map(brands, func(b domain.Brand) string { return string(b) })
	return strings.Join(labels, ", ")
}
