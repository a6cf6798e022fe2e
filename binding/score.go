package binding

import (
	"fmt"

	"github.com/deep-rent/locus/location"
)

// ResourceTier classifies how a requested resource type matched a resource
// predicate.
type ResourceTier uint8

const (
	Wildcard ResourceTier = iota // The binding has no resource predicate.
	Subtype                      // The resource is a proper subtype.
	Exact                        // The resource equals the predicate.
)

// String returns the lower-case name of the tier.
func (t ResourceTier) String() string {
	switch t {
	case Exact:
		return "exact"
	case Subtype:
		return "subtype"
	default:
		return "wildcard"
	}
}

// ResourceWeight is the multiplier applied to the resource tier when
// combining tiers into a single value. It exceeds every attainable location
// tier, which keeps the resource dimension dominant.
const ResourceWeight = location.MaxDepth + 2

// Score is the outcome of matching a binding against a request. It is either
// Disqualified or a pair of resource and location tiers.
type Score struct {
	ok       bool
	resource ResourceTier
	location int
}

// Disqualified is the score of a binding that cannot serve a request.
var Disqualified = Score{}

// Qualified reports whether the score is not Disqualified.
func (s Score) Qualified() bool { return s.ok }

// Resource returns the resource tier. It is meaningless if disqualified.
func (s Score) Resource() ResourceTier { return s.resource }

// Location returns the location tier: zero for a wildcard, otherwise one
// more than the depth of the matched predicate.
func (s Score) Location() int { return s.location }

// Value folds both tiers into one number, or returns -1 if disqualified.
func (s Score) Value() int {
	if !s.ok {
		return -1
	}
	return int(s.resource)*ResourceWeight + s.location
}

// Beats reports whether s ranks strictly higher than other.
func (s Score) Beats(other Score) bool {
	return s.Value() > other.Value()
}

// String renders the score for diagnostics.
func (s Score) String() string {
	if !s.ok {
		return "disqualified"
	}
	return fmt.Sprintf("%s/%d", s.resource, s.location)
}

// Max returns the highest score any binding can attain for a request with
// the given inputs. Without a resource only the wildcard tier qualifies;
// without a location only the wildcard tier qualifies, and with one the best
// possible match is a predicate equal to the requested path.
func Max(hasResource bool, loc location.Path) Score {
	s := Score{ok: true}
	if hasResource {
		s.resource = Exact
	}
	if !loc.IsZero() {
		s.location = loc.Depth() + 1
	}
	return s
}
