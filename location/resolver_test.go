package location

import (
	"context"
	"errors"
	"testing"

	"go-crisislens/geocode"
	"go-crisislens/types"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type mockGeocoder struct {
	point geocode.Point
	ok    bool
	err   error
	calls []string
}

func (m *mockGeocoder) Geocode(_ context.Context, name string) (geocode.Point, bool, error) {
	m.calls = append(m.calls, name)
	return m.point, m.ok, m.err
}

func located(name string, coords *types.Coordinates) types.Assessment {
	return types.Assessment{Location: types.AssessedLocation{Name: name, Coordinates: coords}}
}

func TestResolveOrder(t *testing.T) {
	chennai := &mockGeocoder{point: geocode.Point{Lon: 80.27, Lat: 13.08}, ok: true}

	tests := []struct {
		name      string
		refined   types.Assessment
		raw       types.Assessment
		hint      string
		geocoder  *mockGeocoder
		want      types.Location
		wantCalls int
	}{
		{
			name:     "refined coordinates win",
			refined:  located("Chennai", types.NewCoordinates(80.1, 13.1)),
			raw:      located("Chennai", types.NewCoordinates(80.2, 13.2)),
			geocoder: &mockGeocoder{},
			want:     types.Location{Name: "Chennai", Lon: 80.1, Lat: 13.1, Source: types.SourceRefined},
		},
		{
			name:     "raw coordinates when refinement dropped them",
			refined:  located("Chennai", nil),
			raw:      located("Chennai", types.NewCoordinates(80.2, 13.2)),
			geocoder: &mockGeocoder{},
			want:     types.Location{Name: "Chennai", Lon: 80.2, Lat: 13.2, Source: types.SourceRaw},
		},
		{
			name:      "geocoder when both are origin",
			refined:   located("Chennai", types.NewCoordinates(0, 0)),
			raw:       located("Chennai", types.NewCoordinates(0, 0)),
			geocoder:  chennai,
			want:      types.Location{Name: "Chennai", Lon: 80.27, Lat: 13.08, Source: types.SourceGeocoder},
			wantCalls: 1,
		},
		{
			name:      "hint names the place when assessments do not",
			hint:      " Chennai ",
			geocoder:  &mockGeocoder{point: geocode.Point{Lon: 80.27, Lat: 13.08}, ok: true},
			want:      types.Location{Name: "Chennai", Lon: 80.27, Lat: 13.08, Source: types.SourceGeocoder},
			wantCalls: 1,
		},
		{
			name:     "unknown name never geocodes",
			geocoder: &mockGeocoder{point: geocode.Point{Lon: 1, Lat: 1}, ok: true},
			want:     types.Location{Name: types.UnknownLocation, Source: types.SourceUnresolved},
		},
		{
			name:      "geocoder failure is swallowed",
			refined:   located("Chennai", nil),
			geocoder:  &mockGeocoder{err: errors.New("timeout")},
			want:      types.Location{Name: "Chennai", Source: types.SourceUnresolved},
			wantCalls: 1,
		},
		{
			name:      "geocoder miss",
			refined:   located("Chennai", nil),
			geocoder:  &mockGeocoder{},
			want:      types.Location{Name: "Chennai", Source: types.SourceUnresolved},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.geocoder, zap.NewNop())
			got := r.Resolve(context.Background(), tt.refined, tt.raw, tt.hint)
			assert.Equal(t, tt.want, got)
			assert.Len(t, tt.geocoder.calls, tt.wantCalls)
		})
	}
}

func TestResolveWithoutGeocoder(t *testing.T) {
	r := NewResolver(nil, zap.NewNop())
	got := r.Resolve(context.Background(), located("Chennai", nil), types.Assessment{}, "")
	assert.Equal(t, types.Location{Name: "Chennai", Source: types.SourceUnresolved}, got)
}

func TestResolveIsIdempotent(t *testing.T) {
	g := &mockGeocoder{point: geocode.Point{Lon: 80.27, Lat: 13.08}, ok: true}
	r := NewResolver(g, zap.NewNop())
	refined := located("Chennai", types.NewCoordinates(0, 0))
	raw := located("Chennai", nil)

	first := r.Resolve(context.Background(), refined, raw, "Tamil Nadu")
	second := r.Resolve(context.Background(), refined, raw, "Tamil Nadu")
	assert.Equal(t, first, second)
}

func TestResolveNamePrecedence(t *testing.T) {
	assert.Equal(t, "Refined", ResolveName(located("Refined", nil), located("Raw", nil), "Hint"))
	assert.Equal(t, "Raw", ResolveName(located("  ", nil), located("Raw", nil), "Hint"))
	assert.Equal(t, "Hint", ResolveName(types.Assessment{}, types.Assessment{}, "Hint"))
	assert.Equal(t, types.UnknownLocation, ResolveName(types.Assessment{}, types.Assessment{}, ""))
}
