// Package location implements the coordinate fallback chain for crisis records.
package location

import (
	"context"
	"strings"

	"go-crisislens/geocode"
	"go-crisislens/types"

	"go.uber.org/zap"
)

// Resolver picks coordinates from the refined assessment, then the raw
// assessment, then the geocoder. It never fails: an unresolvable place keeps
// (0,0) and is tagged types.SourceUnresolved.
type Resolver struct {
	geocoder geocode.Geocoder
	logger   *zap.Logger
}

// NewResolver creates a resolver. geocoder may be nil, which disables step three.
func NewResolver(g geocode.Geocoder, logger *zap.Logger) *Resolver {
	return &Resolver{geocoder: g, logger: logger}
}

// Resolve returns the record location. The name comes from the refined
// assessment, then hint, then types.UnknownLocation.
func (r *Resolver) Resolve(ctx context.Context, refined, raw types.Assessment, hint string) types.Location {
	name := ResolveName(refined, raw, hint)

	if lon, lat, ok := refined.Location.Coordinates.Point(); ok {
		return types.Location{Name: name, Lon: lon, Lat: lat, Source: types.SourceRefined}
	}
	if lon, lat, ok := raw.Location.Coordinates.Point(); ok {
		return types.Location{Name: name, Lon: lon, Lat: lat, Source: types.SourceRaw}
	}

	if name != types.UnknownLocation && r.geocoder != nil {
		p, ok, err := r.geocoder.Geocode(ctx, name)
		switch {
		case err != nil:
			r.logger.Warn("geocoding failed", zap.String("location", name), zap.Error(err))
		case !ok:
			r.logger.Info("geocoder found no match", zap.String("location", name))
		case p.Lon == 0 && p.Lat == 0:
			r.logger.Info("geocoder returned origin", zap.String("location", name))
		default:
			return types.Location{Name: name, Lon: p.Lon, Lat: p.Lat, Source: types.SourceGeocoder}
		}
	}

	return types.Location{Name: name, Source: types.SourceUnresolved}
}

// ResolveName applies the naming half of the chain without any I/O.
func ResolveName(refined, raw types.Assessment, hint string) string {
	if n := refined.LocationName(); n != "" {
		return n
	}
	if n := raw.LocationName(); n != "" {
		return n
	}
	if h := strings.TrimSpace(hint); h != "" {
		return h
	}
	return types.UnknownLocation
}
