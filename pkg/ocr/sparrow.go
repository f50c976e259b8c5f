package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/partscout/partscout/pkg/fn"
)

// SparrowClient calls a self-hosted Sparrow OCR inference endpoint. It is
// the slow provider: CPU inference can take tens of seconds, so the budget
// is generous and the call is attempted twice.
type SparrowClient struct {
	baseURL string
	client  *http.Client
}

// NewSparrowClient creates a Sparrow client for the given base URL.
func NewSparrowClient(baseURL string) *SparrowClient {
	return &SparrowClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type sparrowResult struct {
	ExtractedText string `json:"extracted_text"`
}

// Recognize submits the image and returns the recognized text, retrying
// once on failure.
func (c *SparrowClient) Recognize(ctx context.Context, image []byte) (string, error) {
	result := fn.Retry(ctx, fn.RetryOpts{MaxAttempts: 2, InitialWait: time.Second, Jitter: true},
		func(ctx context.Context) fn.Result[string] {
			return c.recognizeOnce(ctx, image)
		})
	return result.Unwrap()
}

func (c *SparrowClient) recognizeOnce(ctx context.Context, image []byte) fn.Result[string] {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "image.jpg")
	if err != nil {
		return fn.Err[string](err)
	}
	if _, err := fw.Write(image); err != nil {
		return fn.Err[string](err)
	}
	mw.WriteField("include_bbox", "false")
	mw.WriteField("debug", "false")
	if err := mw.Close(); err != nil {
		return fn.Err[string](err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/sparrow-ocr/inference", &buf)
	if err != nil {
		return fn.Err[string](err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return fn.Errf[string]("sparrow: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fn.Errf[string]("sparrow: status %d", resp.StatusCode)
	}

	var results []sparrowResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return fn.Errf[string]("sparrow: decode: %v", err)
	}
	if len(results) == 0 {
		return fn.Err[string](fmt.Errorf("sparrow: empty response"))
	}
	return fn.Ok(results[0].ExtractedText)
}
