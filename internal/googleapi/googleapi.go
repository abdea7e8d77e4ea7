// Package googleapi builds the authenticated, rate-limited clients for the
// Google services the bot talks to.
package googleapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"google.golang.org/api/vision/v1"
)

const (
	// DefaultTimeout bounds individual API calls; Drive uploads and the
	// spreadsheet PDF export can be slow.
	DefaultTimeout = 2 * time.Minute

	// RequestsPerSecond keeps us under the Sheets per-user quota
	// (60 requests/min) with headroom for Drive traffic on the same key.
	RequestsPerSecond = 1.0
	burst             = 5
)

// Clients bundles the service clients sharing one credential and one
// rate-limited transport.
type Clients struct {
	Sheets *sheets.Service
	Drive  *drive.Service
	Vision *vision.Service // nil unless OCR is enabled

	// HTTP is the authenticated client, used directly for the spreadsheet
	// PDF export URL which has no discovery-API surface.
	HTTP *http.Client
}

// NewClients authenticates with the given service account key JSON.
func NewClients(ctx context.Context, credentials []byte, ocrEnabled bool) (*Clients, error) {
	scopes := []string{sheets.SpreadsheetsScope, drive.DriveScope}
	if ocrEnabled {
		scopes = append(scopes, vision.CloudVisionScope)
	}

	jwtCfg, err := google.JWTConfigFromJSON(credentials, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
		Transport: &limitedTransport{
			base:    &oauth2.Transport{Source: jwtCfg.TokenSource(ctx)},
			limiter: rate.NewLimiter(rate.Limit(RequestsPerSecond), burst),
		},
	}

	c := &Clients{HTTP: httpClient}

	c.Sheets, err = sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}
	c.Drive, err = drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating drive client: %w", err)
	}
	if ocrEnabled {
		c.Vision, err = vision.NewService(ctx, option.WithHTTPClient(httpClient))
		if err != nil {
			return nil, fmt.Errorf("creating vision client: %w", err)
		}
	}

	return c, nil
}

// limitedTransport applies a client-side rate limit before each request.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return t.base.RoundTrip(req)
}
