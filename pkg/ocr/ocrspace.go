// Package ocr provides clients for the pluggable OCR capability: a
// fast-fail hosted provider (OCR.Space), a slower self-hosted provider
// (Sparrow), and a static mock for degraded/offline operation. Provider
// ordering is decided by the identify flow, not here.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// SpaceClient calls the hosted OCR.Space parse API. Its budget is kept
// deliberately short so a slow or down provider fails over quickly.
type SpaceClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewSpaceClient creates an OCR.Space client. An empty baseURL uses the
// public endpoint.
func NewSpaceClient(baseURL, apiKey string) *SpaceClient {
	if baseURL == "" {
		baseURL = "https://api.ocr.space"
	}
	return &SpaceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 1500 * time.Millisecond},
	}
}

type spaceResponse struct {
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	ParsedResults         []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
}

// Recognize submits the image and returns the recognized text.
func (c *SpaceClient) Recognize(ctx context.Context, image []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "doc.jpg")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(image); err != nil {
		return "", err
	}
	mw.WriteField("language", "eng")
	mw.WriteField("isOverlayRequired", "false")
	mw.WriteField("OCREngine", "1")
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse/image", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr.space: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr.space: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ocr.space: read body: %w", err)
	}

	var parsed spaceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("ocr.space: decode: %w", err)
	}
	if parsed.IsErroredOnProcessing || len(parsed.ParsedResults) == 0 {
		return "", fmt.Errorf("ocr.space: errored or empty ParsedResults")
	}
	return parsed.ParsedResults[0].ParsedText, nil
}
