// Package ocr extracts amount and date guesses from receipt images via Cloud
// Vision document text detection. The feature is optional; the bot runs
// without it and the guesses only pre-fill the receipt modal.
package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/vision/v1"
)

// Client wraps the Vision API.
type Client struct {
	svc *vision.Service
}

// New builds a Client. Returns nil when svc is nil so callers can treat a
// disabled feature uniformly.
func New(svc *vision.Service) *Client {
	if svc == nil {
		return nil
	}
	return &Client{svc: svc}
}

// DetectText runs document text detection on an image and returns the raw
// text, which may be empty.
func (c *Client) DetectText(ctx context.Context, image []byte) (string, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
			Features: []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}
	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("annotating image: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", fmt.Errorf("empty annotation response")
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("vision error: %s", r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", nil
	}
	return r.FullTextAnnotation.Text, nil
}
