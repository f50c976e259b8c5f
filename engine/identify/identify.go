// Package identify turns a photographed registration document into a
// resolved vehicle: OCR with fallback, field mining, then the HSN/TSN
// lookup.
package identify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/partscout/partscout/engine/docmine"
	"github.com/partscout/partscout/engine/domain"
)

// Recognizer extracts text from a document image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// CodeResolver resolves an HSN/TSN pair into a vehicle identity.
type CodeResolver interface {
	Resolve(ctx context.Context, hsn, tsn string) (domain.VehicleIdentity, error)
}

// Config for the identification service.
type Config struct {
	// AllowMockOCR enables the static-text fallback when both OCR
	// engines fail. The result is non-authoritative and only suitable
	// for degraded or offline operation.
	AllowMockOCR bool
}

// Service runs the document-to-vehicle pipeline.
type Service struct {
	cfg      Config
	primary  Recognizer
	fallback Recognizer
	mock     Recognizer
	resolver CodeResolver
	logger   *slog.Logger
}

// New creates a Service. primary and resolver are required; fallback and
// mock may be nil (mock is only consulted when cfg.AllowMockOCR is set).
func New(cfg Config, primary, fallback, mock Recognizer, resolver CodeResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		primary:  primary,
		fallback: fallback,
		mock:     mock,
		resolver: resolver,
		logger:   logger,
	}
}

// Identify OCRs the image, mines HSN/TSN, and resolves the vehicle.
// A document that yields no usable code pair, or a lookup that finds no
// vehicle, returns ErrDocumentUnprocessable; a lookup the origin cannot
// serve returns ErrLookupUnavailable.
func (s *Service) Identify(ctx context.Context, image []byte) (domain.VehicleIdentity, error) {
	text, err := s.recognize(ctx, image)
	if err != nil {
		return domain.VehicleIdentity{}, fmt.Errorf("%w: %v", domain.ErrDocumentUnprocessable, err)
	}

	fields := docmine.Mine(text)
	if fields.HSN == "" || fields.TSN == "" {
		s.logger.Info("document fields incomplete", "hsn", fields.HSN != "", "tsn", fields.TSN != "")
		return domain.VehicleIdentity{}, fmt.Errorf("%w: hsn/tsn not found", domain.ErrDocumentUnprocessable)
	}

	identity, err := s.resolver.Resolve(ctx, fields.HSN, fields.TSN)
	if err != nil {
		return domain.VehicleIdentity{}, err
	}
	if identity.KBAID == "" {
		return domain.VehicleIdentity{}, fmt.Errorf("%w: no vehicle for code %s/%s",
			domain.ErrDocumentUnprocessable, fields.HSN, fields.TSN)
	}
	identity.VIN = fields.VIN
	return identity, nil
}

// recognize tries the fast engine first, then the slow one, then the
// mock when degraded mode allows it.
func (s *Service) recognize(ctx context.Context, image []byte) (string, error) {
	var errs []error

	for _, r := range []Recognizer{s.primary, s.fallback} {
		if r == nil {
			continue
		}
		text, err := r.Recognize(ctx, image)
		if err == nil && text != "" {
			return text, nil
		}
		if err != nil {
			s.logger.Warn("ocr engine failed", "err", err)
			errs = append(errs, err)
		}
	}

	if s.cfg.AllowMockOCR && s.mock != nil {
		s.logger.Warn("all ocr engines failed, using mock text")
		return s.mock.Recognize(ctx, image)
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no ocr engine produced text"))
	}
	return "", errors.Join(errs...)
}
