// Package chips downloads image chips around sampling points and splits
// cropped chips into training and validation sets.
package chips

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// ErrNoImageSource is returned when no export endpoint is configured
var ErrNoImageSource = errors.New("chips: no image source configured")

// ExportRequest describes one chip export
type ExportRequest struct {
	Index int
	// Region is the lon/lat bounds of the chip
	Region orb.Bound
	// CRS and CRSTransform set the output grid of the chip
	CRS          string
	CRSTransform [6]float64
}

// ImageSource resolves an export request to a download URL
type ImageSource interface {
	ExportURL(ctx context.Context, req ExportRequest) (string, error)
}

// HTTPImageSource builds export URLs for an HTTP endpoint that renders a
// GeoTIFF from region, crs and crs_transform query parameters
type HTTPImageSource struct {
	BaseURL string
	// Params are extra query parameters, such as an image id
	Params url.Values
}

// NewHTTPImageSource returns a source for baseURL
func NewHTTPImageSource(baseURL string) (*HTTPImageSource, error) {
	if baseURL == "" {
		return nil, ErrNoImageSource
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid image export URL: %w", err)
	}
	return &HTTPImageSource{BaseURL: baseURL}, nil
}

// ExportURL implements ImageSource
func (s *HTTPImageSource) ExportURL(_ context.Context, req ExportRequest) (string, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid image export URL: %w", err)
	}

	q := u.Query()
	for k, vs := range s.Params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("region", joinFloats(req.Region.Min[0], req.Region.Min[1], req.Region.Max[0], req.Region.Max[1]))
	q.Set("crs", req.CRS)
	q.Set("crs_transform", joinFloats(req.CRSTransform[:]...))
	q.Set("format", "GEO_TIFF")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func joinFloats(vs ...float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
