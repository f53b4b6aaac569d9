// Package weather implements the get_weather skill: geocode a place name,
// then read its current conditions.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/morezero/agent-exchange/pkg/a2a"
	"github.com/morezero/agent-exchange/pkg/worker"
)

const logPrefix = "weather:weather"

// Default upstream endpoints.
const (
	DefaultGeocodeURL  = "https://nominatim.openstreetmap.org/search"
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	DefaultUserAgent   = "CoffeeAgntcy/1.0"
)

const defaultTimeout = 30 * time.Second

// Options configures the skill. Zero values use the defaults.
type Options struct {
	GeocodeURL  string
	ForecastURL string
	UserAgent   string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// Skill fetches current weather for a location.
type Skill struct {
	geocodeURL  string
	forecastURL string
	userAgent   string
	client      *http.Client
	timeout     time.Duration
}

// New creates a weather skill.
func New(opts Options) *Skill {
	s := &Skill{
		geocodeURL:  opts.GeocodeURL,
		forecastURL: opts.ForecastURL,
		userAgent:   opts.UserAgent,
		client:      opts.HTTPClient,
		timeout:     opts.Timeout,
	}
	if s.geocodeURL == "" {
		s.geocodeURL = DefaultGeocodeURL
	}
	if s.forecastURL == "" {
		s.forecastURL = DefaultForecastURL
	}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	return s
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

type forecast struct {
	CurrentWeather *struct {
		Temperature   float64 `json:"temperature"`
		WindSpeed     float64 `json:"windspeed"`
		WindDirection float64 `json:"winddirection"`
	} `json:"current_weather"`
}

// Execute returns a formatted report of the current weather at location.
func (s *Skill) Execute(ctx context.Context, location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", worker.Fail(a2a.ErrInvalidInput, "Location must be a non-empty string.")
	}

	lat, lon, err := s.geocode(ctx, location)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - Geocoding %q failed: %v", logPrefix, location, err))
		return "", worker.Fail(a2a.ErrComputationFailed, fmt.Sprintf("Could not determine coordinates for location: %s", location))
	}
	slog.Info(fmt.Sprintf("%s - Geocoded %s to coordinates: (%s, %s)", logPrefix, location, lat, lon))

	var fc forecast
	params := url.Values{
		"latitude":        {lat},
		"longitude":       {lon},
		"current_weather": {"true"},
	}
	if err := s.getJSON(ctx, s.forecastURL, params, &fc); err != nil {
		slog.Error(fmt.Sprintf("%s - Forecast for %s failed: %v", logPrefix, location, err))
		return "", worker.Fail(a2a.ErrComputationFailed, fmt.Sprintf("Error fetching weather data for %s: %v", location, err))
	}
	if fc.CurrentWeather == nil {
		return "", worker.Fail(a2a.ErrComputationFailed, fmt.Sprintf("No weather data available for %s.", location))
	}

	cw := fc.CurrentWeather
	return fmt.Sprintf("Current weather for %s:\nTemperature: %s°C\nWind speed: %s m/s\nWind direction: %s°",
		location, formatFloat(cw.Temperature), formatFloat(cw.WindSpeed), formatFloat(cw.WindDirection)), nil
}

func (s *Skill) geocode(ctx context.Context, location string) (string, string, error) {
	var places []place
	params := url.Values{
		"q":      {location},
		"format": {"json"},
		"limit":  {"1"},
	}
	if err := s.getJSON(ctx, s.geocodeURL, params, &places); err != nil {
		return "", "", err
	}
	if len(places) == 0 || places[0].Lat == "" || places[0].Lon == "" {
		return "", "", errors.New("no match")
	}
	for _, v := range []string{places[0].Lat, places[0].Lon} {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return "", "", fmt.Errorf("bad coordinate %q: %w", v, err)
		}
	}
	return places[0].Lat, places[0].Lon, nil
}

func (s *Skill) getJSON(ctx context.Context, base string, params url.Values, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
