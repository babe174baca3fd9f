// README: Address to coordinate resolution via Google Geocoding (optional enrichment).
package geo

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"lifeline/internal/types"
)

// Resolver turns a free-text pickup location into coordinates. Implementations
// must treat failure as non-fatal; dispatch proceeds without coordinates.
type Resolver interface {
	Resolve(ctx context.Context, address string) (types.Point, bool, error)
}

// GoogleResolver resolves addresses through the Google Geocoding API.
type GoogleResolver struct {
	client *maps.Client
}

func NewGoogleResolver(apiKey string) (*GoogleResolver, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleResolver{client: client}, nil
}

func (g *GoogleResolver) Resolve(ctx context.Context, address string) (types.Point, bool, error) {
	if address == "" {
		return types.Point{}, false, nil
	}
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return types.Point{}, false, err
	}
	if len(results) == 0 {
		return types.Point{}, false, nil
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, true, nil
}

// NopResolver is used when no maps API key is configured.
type NopResolver struct{}

func (NopResolver) Resolve(context.Context, string) (types.Point, bool, error) {
	return types.Point{}, false, nil
}
