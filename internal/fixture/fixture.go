// Package fixture loads pricing requests, catalog fares and reference data
// from YAML files.
package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fareflow/fares"
	"fareflow/internal/store"
	"fareflow/models"
)

type Fixture struct {
	Transaction  TransactionSpec   `yaml:"transaction"`
	Itineraries  []ItinerarySpec   `yaml:"itineraries"`
	FareMarkets  []FareMarketSpec  `yaml:"fare_markets"`
	Fares        []FareSpec        `yaml:"fares"`
	Preferences  []PreferenceSpec  `yaml:"preferences"`
	Restrictions []RestrictionSpec `yaml:"restrictions"`
}

type TransactionSpec struct {
	Type     string           `yaml:"type"`
	Reissue  bool             `yaml:"reissue"`
	AltDates bool             `yaml:"alt_dates"`
	PaxTypes []models.PaxType `yaml:"pax_types"`
	Options  OptionsSpec      `yaml:"options"`
}

type OptionsSpec struct {
	MultiCurrencyPricing bool   `yaml:"multi_currency_pricing"`
	RoundTheWorld        bool   `yaml:"round_the_world"`
	RetrieveNegotiated   bool   `yaml:"retrieve_negotiated"`
	RetrieveFareByRule   bool   `yaml:"retrieve_fare_by_rule"`
	FareFilter           string `yaml:"fare_filter"`
	Web                  bool   `yaml:"web"`
}

type SegmentSpec struct {
	Origin               string    `yaml:"origin"`
	Destination          string    `yaml:"destination"`
	OriginNation         string    `yaml:"origin_nation"`
	DestinationNation    string    `yaml:"destination_nation"`
	OriginContinent      string    `yaml:"origin_continent"`
	DestinationContinent string    `yaml:"destination_continent"`
	Carrier              string    `yaml:"carrier"`
	Departure            time.Time `yaml:"departure"`
	Type                 string    `yaml:"type"`
	Mileage              int       `yaml:"mileage"`
}

type ItinerarySpec struct {
	Name     string        `yaml:"name"`
	Segments []SegmentSpec `yaml:"segments"`
}

type FareMarketSpec struct {
	Itineraries         []string      `yaml:"itineraries"`
	Segments            []SegmentSpec `yaml:"segments"`
	GoverningCarrier    string        `yaml:"governing_carrier"`
	GlobalDirection     string        `yaml:"global_direction"`
	GeoTravelType       string        `yaml:"geo_travel_type"`
	SimpleTrip          bool          `yaml:"simple_trip"`
	TravelDate          time.Time     `yaml:"travel_date"`
	RetrievalDate       time.Time     `yaml:"retrieval_date"`
	TravelUnit          string        `yaml:"travel_unit"`
	UseDummyFare        bool          `yaml:"use_dummy_fare"`
	ForceNonDuplicate   bool          `yaml:"force_non_duplicate"`
	RemoveOutboundFares bool          `yaml:"remove_outbound_fares"`
	RepriceExcluded     bool          `yaml:"reprice_excluded"`
	ValidatingCarriers  []string      `yaml:"validating_carriers"`
	Brands              []int         `yaml:"brands"`
}

type FareByRuleSpec struct {
	ItemNo            int     `yaml:"item_no"`
	Indicator         string  `yaml:"indicator"`
	SpecifiedAmount   float64 `yaml:"specified_amount"`
	SpecifiedCurrency string  `yaml:"specified_currency"`
	MinSeats          int     `yaml:"min_seats"`
	MaxSeats          int     `yaml:"max_seats"`
	MinMileage        int     `yaml:"min_mileage"`
	MaxMileage        int     `yaml:"max_mileage"`
}

type BrandStatusSpec struct {
	State     string `yaml:"state"`
	Direction string `yaml:"direction"`
}

type FareSpec struct {
	Category       string  `yaml:"category"`
	Origin         string  `yaml:"origin"`
	Destination    string  `yaml:"destination"`
	Vendor         string  `yaml:"vendor"`
	Carrier        string  `yaml:"carrier"`
	FareClass      string  `yaml:"fare_class"`
	Tariff         int     `yaml:"tariff"`
	Rule           string  `yaml:"rule"`
	Routing        string  `yaml:"routing"`
	Footnotes      string  `yaml:"footnotes"`
	Amount         float64 `yaml:"amount"`
	Currency       string  `yaml:"currency"`
	OWRT           int     `yaml:"owrt"`
	Directionality string  `yaml:"directionality"`
	Normal         bool    `yaml:"normal"`
	Continents     int     `yaml:"continents"`
	PaxType        string  `yaml:"pax_type"`
	Private        bool    `yaml:"private"`

	FareByRule         *FareByRuleSpec   `yaml:"fare_by_rule"`
	NegotiatedCarrier  *string           `yaml:"negotiated_carrier"`
	DiscountPercent    *float64          `yaml:"discount_percent"`
	ValidatingCarriers []string          `yaml:"validating_carriers"`
	BrandStatuses      []BrandStatusSpec `yaml:"brand_statuses"`
}

type PreferenceSpec struct {
	Carrier              string `yaml:"carrier"`
	Alliance             string `yaml:"alliance"`
	NoSurfaceAtFareBreak bool   `yaml:"no_surface_at_fare_break"`
}

type RestrictionSpec struct {
	Carrier string `yaml:"carrier"`
	Nation  string `yaml:"nation"`
}

// Load reads and decodes the fixture file at path.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a fixture, rejecting unknown keys.
func Parse(data []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if len(f.Transaction.PaxTypes) == 0 {
		f.Transaction.PaxTypes = []models.PaxType{{Code: "ADT", Seats: 1}}
	}
	return &f, nil
}

// Build creates a fresh transaction from the fixture. Every call returns
// new fare markets so one fixture can be collected several times.
func (f *Fixture) Build() (*models.Transaction, error) {
	typ, err := lookup("transaction type", transactionTypes, f.Transaction.Type)
	if err != nil {
		return nil, err
	}
	filter, err := lookup("fare filter", fareFilters, f.Transaction.Options.FareFilter)
	if err != nil {
		return nil, err
	}

	trx := models.NewTransaction(typ)
	trx.Reissue = f.Transaction.Reissue
	trx.AltDates = f.Transaction.AltDates
	trx.PaxTypes = append([]models.PaxType(nil), f.Transaction.PaxTypes...)
	o := f.Transaction.Options
	trx.Options = models.Options{
		MultiCurrencyPricing: o.MultiCurrencyPricing,
		RoundTheWorld:        o.RoundTheWorld,
		RetrieveNegotiated:   o.RetrieveNegotiated,
		RetrieveFareByRule:   o.RetrieveFareByRule,
		FareFilter:           filter,
		Web:                  o.Web,
	}

	itins := make(map[string]models.ItineraryID, len(f.Itineraries))
	for i, is := range f.Itineraries {
		segs, err := segments(is.Segments)
		if err != nil {
			return nil, fmt.Errorf("itinerary %d: %w", i, err)
		}
		name := is.Name
		if name == "" {
			name = fmt.Sprintf("itin%d", i)
		}
		if _, dup := itins[name]; dup {
			return nil, fmt.Errorf("itinerary %q defined twice", name)
		}
		itins[name] = trx.AddItinerary(&models.Itinerary{TravelSegs: segs})
	}

	for i, ms := range f.FareMarkets {
		fm, err := ms.fareMarket()
		if err != nil {
			return nil, fmt.Errorf("fare market %d: %w", i, err)
		}
		owners := make([]models.ItineraryID, 0, len(ms.Itineraries))
		for _, name := range ms.Itineraries {
			id, ok := itins[name]
			if !ok {
				return nil, fmt.Errorf("fare market %d: unknown itinerary %q", i, name)
			}
			owners = append(owners, id)
		}
		trx.AddFareMarket(fm, owners...)
	}
	return trx, nil
}

func (ms *FareMarketSpec) fareMarket() (*models.FareMarket, error) {
	segs, err := segments(ms.Segments)
	if err != nil {
		return nil, err
	}
	geo, err := lookup("geo travel type", geoTravelTypes, ms.GeoTravelType)
	if err != nil {
		return nil, err
	}
	unit, err := lookup("travel unit", travelUnits, ms.TravelUnit)
	if err != nil {
		return nil, err
	}
	carrier := ms.GoverningCarrier
	if carrier == "" && len(segs) > 0 {
		carrier = segs[0].Carrier
	}
	travelDate := ms.TravelDate
	if travelDate.IsZero() && len(segs) > 0 {
		travelDate = segs[0].Departure
	}
	return &models.FareMarket{
		TravelSegs:          segs,
		GoverningCarrier:    carrier,
		GlobalDirection:     models.GlobalDirection(ms.GlobalDirection),
		GeoTravelType:       geo,
		SimpleTrip:          ms.SimpleTrip,
		TravelDate:          travelDate,
		RetrievalDate:       ms.RetrievalDate,
		TravelUnit:          unit,
		UseDummyFare:        ms.UseDummyFare,
		ForceNonDuplicate:   ms.ForceNonDuplicate,
		RemoveOutboundFares: ms.RemoveOutboundFares,
		RepriceExcluded:     ms.RepriceExcluded,
		ValidatingCarriers:  append([]string(nil), ms.ValidatingCarriers...),
		BrandIndices:        append([]int(nil), ms.Brands...),
	}, nil
}

func segments(specs []SegmentSpec) ([]models.TravelSeg, error) {
	out := make([]models.TravelSeg, 0, len(specs))
	for i, s := range specs {
		typ, err := lookup("segment type", segmentTypes, s.Type)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		out = append(out, models.TravelSeg{
			Origin:               s.Origin,
			Destination:          s.Destination,
			OriginNation:         s.OriginNation,
			DestinationNation:    s.DestinationNation,
			OriginContinent:      s.OriginContinent,
			DestinationContinent: s.DestinationContinent,
			Carrier:              s.Carrier,
			Departure:            s.Departure,
			Type:                 typ,
			Mileage:              s.Mileage,
		})
	}
	return out, nil
}

// Entries converts the fixture fares into catalog entries.
func (f *Fixture) Entries() ([]fares.Entry, error) {
	out := make([]fares.Entry, 0, len(f.Fares))
	for i, fs := range f.Fares {
		e, err := fs.entry()
		if err != nil {
			return nil, fmt.Errorf("fare %d (%s %s-%s): %w", i, fs.FareClass, fs.Origin, fs.Destination, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (fs *FareSpec) entry() (fares.Entry, error) {
	cat, err := lookup("category", categories, fs.Category)
	if err != nil {
		return fares.Entry{}, err
	}
	dir, err := lookup("directionality", directionalities, fs.Directionality)
	if err != nil {
		return fares.Entry{}, err
	}
	owrt := models.OWRT(fs.OWRT)
	if fs.OWRT == 0 {
		owrt = models.OneWayMayBeDoubled
	}

	e := fares.Entry{
		Category:    cat,
		Origin:      fs.Origin,
		Destination: fs.Destination,
		Info: models.FareInfo{
			Vendor:         fs.Vendor,
			Carrier:        fs.Carrier,
			FareClass:      fs.FareClass,
			Tariff:         fs.Tariff,
			RuleNumber:     fs.Rule,
			Routing:        fs.Routing,
			Footnotes:      fs.Footnotes,
			Amount:         fs.Amount,
			Currency:       fs.Currency,
			OWRT:           owrt,
			Directionality: dir,
			Normal:         fs.Normal,
			Continents:     fs.Continents,
		},
		PaxType:            fs.PaxType,
		ValidatingCarriers: append([]string(nil), fs.ValidatingCarriers...),
	}
	if fs.Private {
		e.Tariff = models.TariffPrivate
	}

	if r := fs.FareByRule; r != nil {
		ind, err := lookup("fare-by-rule indicator", fbrIndicators, r.Indicator)
		if err != nil {
			return fares.Entry{}, err
		}
		cur := r.SpecifiedCurrency
		if cur == "" {
			cur = fs.Currency
		}
		e.FareByRule = &models.FareByRuleInfo{
			ItemNo:             r.ItemNo,
			Indicator:          ind,
			SpecifiedAmount1:   r.SpecifiedAmount,
			SpecifiedCurrency1: cur,
			MinSeats:           r.MinSeats,
			MaxSeats:           r.MaxSeats,
			MinMileage:         r.MinMileage,
			MaxMileage:         r.MaxMileage,
		}
	}
	if fs.NegotiatedCarrier != nil {
		e.Negotiated = &models.NegotiatedInfo{Carrier: *fs.NegotiatedCarrier}
	}
	if fs.DiscountPercent != nil {
		e.Discount = &models.DiscountInfo{Percent: *fs.DiscountPercent}
	}
	for _, bs := range fs.BrandStatuses {
		st, err := lookup("brand state", brandStates, bs.State)
		if err != nil {
			return fares.Entry{}, err
		}
		bd, err := lookup("brand direction", brandDirections, bs.Direction)
		if err != nil {
			return fares.Entry{}, err
		}
		e.BrandStatuses = append(e.BrandStatuses, models.BrandStatus{State: st, Direction: bd})
	}
	return e, nil
}

// Seeder stores reference data.
type Seeder interface {
	SavePreference(ctx context.Context, rec *store.CarrierPreference) error
	SaveRestriction(ctx context.Context, r *store.SalesRestriction) error
}

// Seed writes the fixture preferences and restrictions to s.
func (f *Fixture) Seed(ctx context.Context, s Seeder) error {
	for _, p := range f.Preferences {
		rec := &store.CarrierPreference{
			Carrier:              p.Carrier,
			Alliance:             p.Alliance,
			NoSurfaceAtFareBreak: p.NoSurfaceAtFareBreak,
		}
		if err := s.SavePreference(ctx, rec); err != nil {
			return err
		}
	}
	for _, r := range f.Restrictions {
		if err := s.SaveRestriction(ctx, &store.SalesRestriction{Carrier: r.Carrier, Nation: r.Nation, Active: true}); err != nil {
			return err
		}
	}
	return nil
}

// HasReferenceData reports whether the fixture carries carrier preferences.
// Without them every market would fail on a missing preference.
func (f *Fixture) HasReferenceData() bool {
	return len(f.Preferences) > 0
}

var (
	_ Seeder = (*store.MemoryStore)(nil)
	_ Seeder = (*store.GormStore)(nil)
)
