// Package matcher links crisis locations to responder organizations by
// textual overlap between the place name and the registered address.
package matcher

import (
	"context"
	"fmt"
	"strings"

	"go-crisislens/types"
)

// ResponderLister is the slice of the store the matcher reads.
type ResponderLister interface {
	ListResponders(ctx context.Context) ([]types.ResponderOrganization, error)
}

// Overlaps reports whether location and address contain one another,
// ignoring case and surrounding space. Empty values and the "Unknown"
// placeholder never match.
func Overlaps(location, address string) bool {
	l := strings.ToLower(strings.TrimSpace(location))
	a := strings.ToLower(strings.TrimSpace(address))
	if l == "" || a == "" || l == strings.ToLower(types.UnknownLocation) {
		return false
	}
	return strings.Contains(a, l) || strings.Contains(l, a)
}

// Matcher is the Responder Matcher.
type Matcher struct {
	responders ResponderLister
}

func New(r ResponderLister) *Matcher {
	return &Matcher{responders: r}
}

// Match returns the IDs of every responder whose address overlaps
// locationName, in store order. The result may be empty.
func (m *Matcher) Match(ctx context.Context, locationName string) ([]string, error) {
	responders, err := m.responders.ListResponders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list responders: %w", err)
	}

	ids := make([]string, 0)
	for _, r := range responders {
		if Overlaps(locationName, r.Address) {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}
