package collector

import (
	"context"

	"fareflow/models"
)

// Category identifies a fare finding strategy.
type Category int

const (
	CategoryAddon Category = iota
	CategoryPublished
	CategoryIndustry
	CategoryFareByRule
	CategoryDiscounted
	CategoryNegotiated
)

func (c Category) String() string {
	switch c {
	case CategoryAddon:
		return "addon"
	case CategoryPublished:
		return "published"
	case CategoryIndustry:
		return "industry"
	case CategoryFareByRule:
		return "fare_by_rule"
	case CategoryDiscounted:
		return "discounted"
	case CategoryNegotiated:
		return "negotiated"
	}
	return "unknown"
}

// Result is the expected outcome of a fare finder. A non-zero FailCode is
// recorded on the market; it is not an error.
type Result struct {
	Fares    []*models.PaxTypeFare
	FailCode models.FailCode
}

// Finder retrieves candidate fares of one category for a fare market.
// The returned error is reserved for faults and aborts.
type Finder interface {
	Category() Category
	FindFares(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) (Result, error)
}

// Validator runs domain rule validation, clearing per-category validity on
// the market's fares in place.
type Validator interface {
	Validate(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) error
}

// Comparator orders fares: negative when a sorts before b.
type Comparator interface {
	Compare(a, b *models.PaxTypeFare) int
}

// CurrencySelector picks the inbound and outbound currency of each cortege.
type CurrencySelector interface {
	SelectCurrency(trx *models.Transaction, fm *models.FareMarket) error
}

type CarrierPreference struct {
	Carrier              string
	NoSurfaceAtFareBreak bool
	Alliance             string
}

// CarrierPreferences resolves the preference record of a governing carrier.
// ok is false when no record exists.
type CarrierPreferences interface {
	Preference(ctx context.Context, carrier string) (pref CarrierPreference, ok bool, err error)
}

// SalesRestrictions reports national sales restrictions on a market.
type SalesRestrictions interface {
	Restricted(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) (bool, error)
}

// DirectionResolver resolves the global direction of a market, returning
// GlobalDirectionUnknown when it cannot.
type DirectionResolver interface {
	Resolve(fm *models.FareMarket) models.GlobalDirection
}

// ContinentPolicy disqualifies continent-based fares on round-the-world
// requests.
type ContinentPolicy interface {
	Applies(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) (bool, error)
	Disqualified(fm *models.FareMarket, ptf *models.PaxTypeFare) bool
}

// FBRRevalidator checks that a fare-by-rule fare still applies to a market
// with the given seat count.
type FBRRevalidator interface {
	Revalidate(ptf *models.PaxTypeFare, seats int, fm *models.FareMarket) bool
}

// NegotiatedCheck reports whether a negotiated fare may be ticketed on the
// given itinerary.
type NegotiatedCheck interface {
	Eligible(fm *models.FareMarket, itin *models.Itinerary, ptf *models.PaxTypeFare) bool
}

// DummyFiller populates markets flagged for placeholder fares.
type DummyFiller interface {
	Fill(trx *models.Transaction, fm *models.FareMarket) error
}

// Aborter is the cooperative cancellation flag.
type Aborter interface {
	IsAborted() bool
}
