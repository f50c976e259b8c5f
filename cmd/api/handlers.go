package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go"

	"github.com/partscout/partscout/engine/domain"
	"github.com/partscout/partscout/engine/identify"
	"github.com/partscout/partscout/engine/search"
	"github.com/partscout/partscout/engine/vehicle"
	"github.com/partscout/partscout/pkg/natsutil"
)

// maxDocumentBytes caps uploaded registration-document images.
const maxDocumentBytes = 10 << 20

// subjectSearchCompleted carries one SearchEvent per finished search.
const subjectSearchCompleted = "partscout.search.completed"

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query      string   `json:"query"`
	Position   string   `json:"position,omitempty"`
	SearchCode string   `json:"search_code,omitempty"`
	Brands     []string `json:"brands,omitempty"`
	PriceMin   *float64 `json:"price_min,omitempty"`
	PriceMax   *float64 `json:"price_max,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}

// SearchEvent is published to NATS after every completed search.
type SearchEvent struct {
	Query         string `json:"query"`
	PartType      string `json:"part_type"`
	SearchCode    string `json:"search_code,omitempty"`
	TotalProducts int    `json:"total_products"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleSearch(orc *search.Orchestrator, nc *nats.Conn, defaultMax int, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		maxResults := req.MaxResults
		if maxResults <= 0 {
			maxResults = defaultMax
		}
		brands := make([]domain.Brand, 0, len(req.Brands))
		for _, b := range req.Brands {
			brands = append(brands, domain.Brand(b))
		}

		result, err := orc.Run(r.Context(), domain.PartQuery{
			RawText:         req.Query,
			PositionHint:    domain.PartPosition(req.Position),
			VehicleFragment: req.SearchCode,
			BrandFilters:    brands,
			PriceMin:        req.PriceMin,
			PriceMax:        req.PriceMax,
			MaxResults:      maxResults,
		})
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) || errors.Is(err, domain.ErrNoQueryTerm) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.Error("search failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if nc != nil {
			event := SearchEvent{
				Query:         req.Query,
				PartType:      result.ParametersUsed.IdentifiedPartType,
				SearchCode:    req.SearchCode,
				TotalProducts: result.ParametersUsed.TotalProducts,
			}
			if err := natsutil.Publish(r.Context(), nc, subjectSearchCompleted, event); err != nil {
				logger.Warn("search event publish failed", "err", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.SearchResponse{Status: "ok", Data: result})
	}
}

func handleIdentify(svc *identify.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
			writeError(w, http.StatusBadRequest, "multipart form with a document file is required")
			return
		}
		file, _, err := r.FormFile("document")
		if err != nil {
			writeError(w, http.StatusBadRequest, "document file is required")
			return
		}
		defer file.Close()

		image, err := io.ReadAll(io.LimitReader(file, maxDocumentBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read document")
			return
		}

		identity, err := svc.Identify(r.Context(), image)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrDocumentUnprocessable):
				writeError(w, http.StatusUnprocessableEntity, err.Error())
			case errors.Is(err, domain.ErrLookupUnavailable):
				writeError(w, http.StatusServiceUnavailable, "vehicle lookup unavailable")
			default:
				logger.Error("identify failed", "err", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "data": identity})
	}
}

func handleLookup(resolver *vehicle.Resolver, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hsn := r.URL.Query().Get("hsn")
		tsn := r.URL.Query().Get("tsn")
		if err := domain.ValidateCode(hsn, tsn); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		identity, err := resolver.Resolve(r.Context(), hsn, tsn)
		if err != nil {
			if errors.Is(err, domain.ErrLookupUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "vehicle lookup unavailable")
				return
			}
			logger.Error("lookup failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !identity.Complete() {
			writeError(w, http.StatusNotFound, "no vehicle for this code")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "data": identity})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
