package ocr

import "context"

// mockText imitates the OCR output of a German vehicle registration
// certificate (Fahrzeugschein). It exists for degraded/offline operation
// only and is never authoritative.
const mockText = `Fahrzeugschein
Zulassungsbescheinigung Teil 1

Fahrzeug-Identifizierungsnummer WDB9036621R123456 2018 0600
AHK Mercedes-Benz Sprinter
Erstzulassung: 12.06.2018`

// Mock returns a fixed registration-document text regardless of input.
type Mock struct{}

// Recognize ignores the image and returns the static sample text.
func (Mock) Recognize(_ context.Context, _ []byte) (string, error) {
	return mockText, nil
}
