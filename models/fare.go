package models

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// FARES ////////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// Rule categories referenced by the collector.
const (
	CatSalesRestriction = 15
	CatFareByRule       = 25
	CatNegotiated       = 35
)

// Routing numbers carried by fare-by-rule fares that need special routing.
const (
	RoutingCat25Domestic      = "SPRD"
	RoutingCat25International = "SPRI"
	RoutingCat25Empty         = "SPRE"
)

type Directionality int

const (
	DirectionBoth Directionality = iota
	DirectionFrom
	DirectionTo
)

// OWRT is the one-way/round-trip indicator of a fare.
type OWRT int

const (
	OneWayMayBeDoubled      OWRT = 1
	RoundTripMayNotBeHalved OWRT = 2
	OneWayMayNotBeDoubled   OWRT = 3
)

type TariffCategory int

const (
	TariffPublic TariffCategory = iota
	TariffPrivate
)

// FareInfo is the published fare record. It is treated as immutable: an
// amount change replaces the pointer with a clone.
type FareInfo struct {
	Vendor         string         `json:"vendor"`
	Carrier        string         `json:"carrier"`
	FareClass      string         `json:"fare_class"`
	Tariff         int            `json:"tariff"`
	RuleNumber     string         `json:"rule"`
	Routing        string         `json:"routing"`
	Footnotes      string         `json:"footnotes,omitempty"`
	Amount         float64        `json:"amount"`
	Currency       string         `json:"currency"`
	OWRT           OWRT           `json:"owrt"`
	Directionality Directionality `json:"directionality"`
	Normal         bool           `json:"normal"`
	// Continents is the continent count of a continent-based round-the-world
	// fare, zero otherwise.
	Continents int `json:"continents"`
}

func (fi *FareInfo) Clone() *FareInfo {
	c := *fi
	return &c
}

// Fare is the underlying fare shared by every PaxTypeFare built on it within
// one fare market.
type Fare struct {
	Info                *FareInfo
	Industry            bool
	DirectionalityFail  bool
	SecondaryActionFail bool
	ContinentFail       bool
}

// Clone copies the fare flags. The FareInfo pointer is shared until replaced.
func (f *Fare) Clone() *Fare {
	c := *f
	return &c
}

func (f *Fare) IsValid() bool {
	return !f.DirectionalityFail && !f.SecondaryActionFail && !f.ContinentFail
}

type FareByRuleIndicator byte

const (
	FareByRuleCalculated FareByRuleIndicator = 'C'
	FareByRuleSpecified  FareByRuleIndicator = 'S'
)

// FareByRuleInfo is the fare-by-rule item a derived fare was built from.
type FareByRuleInfo struct {
	ItemNo             int
	Indicator          FareByRuleIndicator
	SpecifiedAmount1   float64
	SpecifiedCurrency1 string
	SpecifiedAmount2   float64
	SpecifiedCurrency2 string
	MinSeats           int
	MaxSeats           int
	MinMileage         int
	MaxMileage         int
}

// SpecifiedAmount returns the specified amount published in currency, or zero.
func (i *FareByRuleInfo) SpecifiedAmount(currency string) float64 {
	switch currency {
	case i.SpecifiedCurrency1:
		return i.SpecifiedAmount1
	case i.SpecifiedCurrency2:
		return i.SpecifiedAmount2
	}
	return 0
}

type NegotiatedInfo struct {
	// Carrier that must be eligible to ticket the fare; empty for any.
	Carrier string
}

type DiscountInfo struct {
	// Percent of the base amount that is charged.
	Percent float64
}

// RuleData links a rule category item to the base fare it was derived from.
type RuleData struct {
	Category int
	ItemNo   int
	BaseFare *PaxTypeFare
}

func (r *RuleData) Clone() *RuleData {
	c := *r
	return &c
}

// AllRuleData holds the fare rule and general rule records for one category.
type AllRuleData struct {
	FareRule    *RuleData
	GeneralRule *RuleData
}

type BrandState byte

const (
	BrandFail     BrandState = 'F'
	BrandSoftPass BrandState = 'S'
	BrandHardPass BrandState = 'H'
)

type BrandDirection int

const (
	BrandBothWays BrandDirection = iota
	BrandOriginal
	BrandReversed
)

type BrandStatus struct {
	State     BrandState
	Direction BrandDirection
}

// FailedBrand is the status of a brand slot with no mapping.
var FailedBrand = BrandStatus{State: BrandFail, Direction: BrandBothWays}

// PaxTypeFare is a priced candidate bound to one fare market and one Fare.
type PaxTypeFare struct {
	FareMarket     FareMarketID
	Fare           *Fare
	PaxType        string
	Reversed       bool
	TariffCategory TariffCategory
	Amount         float64

	FareByRule *FareByRuleInfo
	Negotiated *NegotiatedInfo
	Discount   *DiscountInfo

	ValidatingCarriers []string
	BrandStatuses      []BrandStatus
	RuleData           map[int]*AllRuleData

	categoryFail uint64
}

// Clone copies the fare with its own validating carrier and brand slices.
// Fare, rule data and rule item pointers are left for the caller to replace.
func (p *PaxTypeFare) Clone() *PaxTypeFare {
	c := *p
	c.ValidatingCarriers = append([]string(nil), p.ValidatingCarriers...)
	c.BrandStatuses = append([]BrandStatus(nil), p.BrandStatuses...)
	return &c
}

func (p *PaxTypeFare) Carrier() string                { return p.Fare.Info.Carrier }
func (p *PaxTypeFare) FareClass() string              { return p.Fare.Info.FareClass }
func (p *PaxTypeFare) Currency() string               { return p.Fare.Info.Currency }
func (p *PaxTypeFare) OWRT() OWRT                     { return p.Fare.Info.OWRT }
func (p *PaxTypeFare) Directionality() Directionality { return p.Fare.Info.Directionality }

func (p *PaxTypeFare) IsFareByRule() bool { return p.FareByRule != nil }
func (p *PaxTypeFare) IsNegotiated() bool { return p.Negotiated != nil }
func (p *PaxTypeFare) IsDiscounted() bool { return p.Discount != nil }

func (p *PaxTypeFare) IsSpecialRouting() bool {
	switch p.Fare.Info.Routing {
	case RoutingCat25Domestic, RoutingCat25International, RoutingCat25Empty:
		return true
	}
	return false
}

// CategoryValid reports whether rule category cat has not been failed.
func (p *PaxTypeFare) CategoryValid(cat int) bool {
	return p.categoryFail&categoryBit(cat) == 0
}

func (p *PaxTypeFare) SetCategoryValid(cat int, valid bool) {
	if valid {
		p.categoryFail &^= categoryBit(cat)
	} else {
		p.categoryFail |= categoryBit(cat)
	}
}

// IsValid reports whether every rule category passed and the underlying
// fare carries no failure flag.
func (p *PaxTypeFare) IsValid() bool {
	return p.categoryFail == 0 && p.Fare.IsValid()
}

func categoryBit(cat int) uint64 {
	if cat < 0 || cat > 63 {
		return 0
	}
	return 1 << uint(cat)
}
