package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gasamara891-boop/river/internal/domain/activity"
	"github.com/gasamara891-boop/river/pkg/logger"
)

const (
	defaultIPEndpoint  = "https://api.ipify.org?format=json"
	defaultGeoEndpoint = "https://ipapi.co"

	maxGeoResponse = 1 << 20
)

// HTTPLocator resolves the server's public IP via ipify and looks the IP up
// against ipapi.co. Every step degrades independently: a failed IP lookup
// yields a fully unknown location, a failed geo lookup keeps the IP but
// leaves the geography unknown.
type HTTPLocator struct {
	client      *http.Client
	ipEndpoint  string
	geoEndpoint string
	log         *logger.Logger
}

var _ Locator = (*HTTPLocator)(nil)

// NewHTTPLocator builds a locator with the public ipify and ipapi.co
// endpoints.
func NewHTTPLocator(client *http.Client, log *logger.Logger) *HTTPLocator {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("geo")
	}
	return &HTTPLocator{
		client:      client,
		ipEndpoint:  defaultIPEndpoint,
		geoEndpoint: defaultGeoEndpoint,
		log:         log,
	}
}

// WithEndpoints overrides the lookup URLs. Used by tests.
func (l *HTTPLocator) WithEndpoints(ipEndpoint, geoEndpoint string) *HTTPLocator {
	if ipEndpoint != "" {
		l.ipEndpoint = ipEndpoint
	}
	if geoEndpoint != "" {
		l.geoEndpoint = strings.TrimSuffix(geoEndpoint, "/")
	}
	return l
}

// Locate never returns an error together with a usable location; callers can
// ignore the error and still get placeholder fields.
func (l *HTTPLocator) Locate(ctx context.Context) (activity.Location, error) {
	loc := activity.UnknownLocation()

	ip, err := l.publicIP(ctx)
	if err != nil {
		return loc, fmt.Errorf("resolve public ip: %w", err)
	}
	loc.IP = ip

	geo, err := l.lookup(ctx, ip)
	if err != nil {
		l.log.WithError(err).WithField("ip", ip).Debug("geo lookup failed")
		return loc, nil
	}
	if geo.City != "" {
		loc.City = geo.City
	}
	if geo.Region != "" {
		loc.Region = geo.Region
	}
	if geo.CountryName != "" {
		loc.Country = geo.CountryName
	}
	return loc, nil
}

func (l *HTTPLocator) publicIP(ctx context.Context) (string, error) {
	var out struct {
		IP string `json:"ip"`
	}
	if err := l.getJSON(ctx, l.ipEndpoint, &out); err != nil {
		return "", err
	}
	if out.IP == "" {
		return "", fmt.Errorf("empty ip in response")
	}
	return out.IP, nil
}

type geoResult struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	CountryName string `json:"country_name"`
}

func (l *HTTPLocator) lookup(ctx context.Context, ip string) (geoResult, error) {
	var out geoResult
	url := fmt.Sprintf("%s/%s/json/", l.geoEndpoint, ip)
	if err := l.getJSON(ctx, url, &out); err != nil {
		return geoResult{}, err
	}
	return out, nil
}

func (l *HTTPLocator) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGeoResponse))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}
