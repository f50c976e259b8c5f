package identify

import (
	"context"
	"errors"
	"testing"

	"github.com/partscout/partscout/engine/domain"
)

// OCR output of a registration document: the identification-number row
// collapses into one line carrying the VIN and both date/code tokens,
// the variant code leads the next line.
const documentText = `Zulassungsbescheinigung Teil 1
Halterdaten
Fahrzeug-Identifizierungsnummer WVWZZZ3CZLE073029 2020 0600
BPP Diesel
Erstzulassung 01.03.2020`

type stubOCR struct {
	text  string
	err   error
	calls int
}

func (s *stubOCR) Recognize(context.Context, []byte) (string, error) {
	s.calls++
	return s.text, s.err
}

type stubResolver struct {
	identity domain.VehicleIdentity
	err      error
	hsn, tsn string
}

func (s *stubResolver) Resolve(_ context.Context, hsn, tsn string) (domain.VehicleIdentity, error) {
	s.hsn, s.tsn = hsn, tsn
	return s.identity, s.err
}

func resolved() domain.VehicleIdentity {
	return domain.VehicleIdentity{Brand: "VW", Model: "Passat", Engine: "2.0 TDI", KBAID: "19599"}
}

func TestIdentifyHappyPath(t *testing.T) {
	res := &stubResolver{identity: resolved()}
	svc := New(Config{}, &stubOCR{text: documentText}, nil, nil, res, nil)

	v, err := svc.Identify(context.Background(), []byte("img"))
	if err != nil {
		t.Fatal(err)
	}
	if res.hsn != "BPP" || res.tsn != "0600" {
		t.Fatalf("resolver got hsn=%q tsn=%q", res.hsn, res.tsn)
	}
	if v.KBAID != "19599" {
		t.Fatalf("identity = %+v", v)
	}
	if v.VIN != "WVWZZZ3CZLE073029" {
		t.Fatalf("mined VIN should be carried onto the identity, got %q", v.VIN)
	}
}

func TestIdentifyFallsBackToSecondEngine(t *testing.T) {
	primary := &stubOCR{err: errors.New("timeout")}
	fallback := &stubOCR{text: documentText}
	svc := New(Config{}, primary, fallback, nil, &stubResolver{identity: resolved()}, nil)

	if _, err := svc.Identify(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("engine order wrong: primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestIdentifyMockOnlyWhenAllowed(t *testing.T) {
	down := func() *stubOCR { return &stubOCR{err: errors.New("down")} }
	mock := &stubOCR{text: documentText}

	svc := New(Config{}, down(), down(), mock, &stubResolver{identity: resolved()}, nil)
	if _, err := svc.Identify(context.Background(), nil); !errors.Is(err, domain.ErrDocumentUnprocessable) {
		t.Fatalf("mock must stay disabled by default, got %v", err)
	}
	if mock.calls != 0 {
		t.Fatal("mock consulted without AllowMockOCR")
	}

	svc = New(Config{AllowMockOCR: true}, down(), down(), mock, &stubResolver{identity: resolved()}, nil)
	if _, err := svc.Identify(context.Background(), nil); err != nil {
		t.Fatalf("degraded mode should use the mock, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatal("mock not consulted in degraded mode")
	}
}

func TestIdentifyIncompleteFieldsUnprocessable(t *testing.T) {
	svc := New(Config{}, &stubOCR{text: "nur eine Zeile ohne Codes"}, nil, nil, &stubResolver{}, nil)
	_, err := svc.Identify(context.Background(), nil)
	if !errors.Is(err, domain.ErrDocumentUnprocessable) {
		t.Fatalf("want ErrDocumentUnprocessable, got %v", err)
	}
}

func TestIdentifyUnknownCodeUnprocessable(t *testing.T) {
	// Resolver reachable but no vehicle row: identity without kbaId.
	svc := New(Config{}, &stubOCR{text: documentText}, nil, nil, &stubResolver{}, nil)
	_, err := svc.Identify(context.Background(), nil)
	if !errors.Is(err, domain.ErrDocumentUnprocessable) {
		t.Fatalf("want ErrDocumentUnprocessable, got %v", err)
	}
}

func TestIdentifyLookupUnavailablePassesThrough(t *testing.T) {
	res := &stubResolver{err: domain.ErrLookupUnavailable}
	svc := New(Config{}, &stubOCR{text: documentText}, nil, nil, res, nil)
	_, err := svc.Identify(context.Background(), nil)
	if !errors.Is(err, domain.ErrLookupUnavailable) {
		t.Fatalf("want ErrLookupUnavailable, got %v", err)
	}
}
