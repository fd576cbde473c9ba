package googleplaces

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hiyadrive/hiya-core/core/directory"
)

const (
	textSearchURL = "https://maps.googleapis.com/maps/api/place/textsearch/json"
	detailsURL    = "https://maps.googleapis.com/maps/api/place/details/json"

	// maxDetailLookups caps the per-search details calls; only candidates
	// that can end up on the spoken shortlist need a phone number.
	maxDetailLookups = 5
)

// Client looks up bookable businesses through the Google Places API.
type Client struct {
	apiKey string
	http   *http.Client

	// origin is the caller's position, used to compute distances to the
	// returned places. Zero origin leaves distances at zero.
	originLat float64
	originLng float64
}

type ClientOption func(*Client)

// WithOrigin sets the position distances are measured from.
func WithOrigin(lat, lng float64) ClientOption {
	return func(c *Client) {
		c.originLat = lat
		c.originLng = lng
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	client := &Client{
		apiKey: apiKey,
		http:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Search runs a text search for the queried category near the queried
// location and resolves phone numbers for the leading results. Results keep
// the API's relevance order.
func (c *Client) Search(ctx context.Context, query directory.Query) ([]directory.Provider, error) {
	ctx, span := tracer.Start(ctx, "search places")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.category", query.Category),
		attribute.String("search.location", query.Location),
		attribute.Float64("search.radius_km", query.RadiusKM),
	)

	queryParams := url.Values{}
	queryParams.Set("query", query.Category+" near "+query.Location)
	queryParams.Set("radius", strconv.Itoa(int(query.RadiusKM*1000)))
	queryParams.Set("key", c.apiKey)

	var response textSearchResponse
	if err := c.getJSON(ctx, textSearchURL+"?"+queryParams.Encode(), &response); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if response.Status != "OK" && response.Status != "ZERO_RESULTS" {
		err := fmt.Errorf("places search failed with status %s", response.Status)
		span.RecordError(err)
		return nil, err
	}

	providers := make([]directory.Provider, 0, len(response.Results))
	for i, result := range response.Results {
		provider := directory.Provider{
			Name:    result.Name,
			Rating:  result.Rating,
			Address: result.FormattedAddress,
		}
		if c.originLat != 0 || c.originLng != 0 {
			provider.DistanceKM = haversineKM(
				c.originLat, c.originLng,
				result.Geometry.Location.Lat, result.Geometry.Location.Lng)
		}
		if i < maxDetailLookups {
			phone, err := c.phoneNumber(ctx, result.PlaceID)
			if err != nil {
				logger.WarnContext(ctx, "failed to resolve place phone number",
					"place_id", result.PlaceID, "error", err)
			}
			provider.Phone = phone
		}
		providers = append(providers, provider)
	}

	span.SetAttributes(attribute.Int("search.results", len(providers)))
	return providers, nil
}

func (c *Client) phoneNumber(ctx context.Context, placeID string) (string, error) {
	queryParams := url.Values{}
	queryParams.Set("place_id", placeID)
	queryParams.Set("fields", "international_phone_number")
	queryParams.Set("key", c.apiKey)

	var response detailsResponse
	if err := c.getJSON(ctx, detailsURL+"?"+queryParams.Encode(), &response); err != nil {
		return "", err
	}
	if response.Status != "OK" {
		return "", fmt.Errorf("place details failed with status %s", response.Status)
	}
	return response.Result.InternationalPhoneNumber, nil
}

func (c *Client) getJSON(ctx context.Context, requestURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error unmarshalling response: %w", err)
	}
	return nil
}

// haversineKM is the great-circle distance between two coordinates.
func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKM = 6371.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

type textSearchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID          string  `json:"place_id"`
		Name             string  `json:"name"`
		FormattedAddress string  `json:"formatted_address"`
		Rating           float64 `json:"rating"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		InternationalPhoneNumber string `json:"international_phone_number"`
	} `json:"result"`
}
