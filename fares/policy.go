package fares

import (
	"context"
	"fmt"

	"fareflow/collector"
	"fareflow/models"
)

// ByAmount orders fares by ascending amount, then fare class and carrier.
type ByAmount struct{}

func (ByAmount) Compare(a, b *models.PaxTypeFare) int {
	switch {
	case a.Amount < b.Amount:
		return -1
	case a.Amount > b.Amount:
		return 1
	}
	if a.FareClass() != b.FareClass() {
		if a.FareClass() < b.FareClass() {
			return -1
		}
		return 1
	}
	if a.Carrier() != b.Carrier() {
		if a.Carrier() < b.Carrier() {
			return -1
		}
		return 1
	}
	return 0
}

// FareCurrency selects, for each cortege, the currency most of its fares are
// published in. Ties go to the currency seen first. Corteges without fares
// get Default, or keep their currencies when it is empty.
type FareCurrency struct {
	Default string
}

func (s FareCurrency) SelectCurrency(_ *models.Transaction, fm *models.FareMarket) error {
	for _, c := range fm.Corteges {
		cur := s.Default
		counts := make(map[string]int)
		best := 0
		for _, ptf := range c.Fares {
			code := ptf.Currency()
			if code == "" {
				continue
			}
			counts[code]++
			if counts[code] > best {
				best = counts[code]
				cur = code
			}
		}
		if cur == "" {
			continue
		}
		c.OutboundCurrency = cur
		c.InboundCurrency = cur
	}
	return nil
}

// AlliancePolicy disqualifies continent-based round-the-world fares whose
// continent count does not match the journey when the governing carrier
// belongs to Alliance.
type AlliancePolicy struct {
	Alliance    string
	Preferences collector.CarrierPreferences
}

func (p AlliancePolicy) Applies(ctx context.Context, _ *models.Transaction, fm *models.FareMarket) (bool, error) {
	if p.Preferences == nil {
		return false, nil
	}
	pref, ok, err := p.Preferences.Preference(ctx, fm.GoverningCarrier)
	if err != nil {
		return false, err
	}
	return ok && pref.Alliance == p.Alliance, nil
}

func (p AlliancePolicy) Disqualified(fm *models.FareMarket, ptf *models.PaxTypeFare) bool {
	want := ptf.Fare.Info.Continents
	return want > 0 && want != continentsVisited(fm)
}

func continentsVisited(fm *models.FareMarket) int {
	seen := make(map[string]struct{})
	for _, seg := range fm.TravelSegs {
		for _, c := range []string{seg.OriginContinent, seg.DestinationContinent} {
			if c != "" {
				seen[c] = struct{}{}
			}
		}
	}
	return len(seen)
}

// SeatsMileage checks the seat and mileage applicability published on a
// fare-by-rule item. Zero bounds are open.
type SeatsMileage struct{}

func (SeatsMileage) Revalidate(ptf *models.PaxTypeFare, seats int, fm *models.FareMarket) bool {
	info := ptf.FareByRule
	if info == nil {
		return true
	}
	if info.MinSeats > 0 && seats < info.MinSeats {
		return false
	}
	if info.MaxSeats > 0 && seats > info.MaxSeats {
		return false
	}
	miles := fm.Mileage()
	if info.MinMileage > 0 && miles < info.MinMileage {
		return false
	}
	if info.MaxMileage > 0 && miles > info.MaxMileage {
		return false
	}
	return true
}

// NegotiatedCarrier allows a negotiated fare when its ticketing carrier is
// one of the market's validating carriers or, when the market has none, one
// of the itinerary's carriers.
type NegotiatedCarrier struct{}

func (NegotiatedCarrier) Eligible(fm *models.FareMarket, itin *models.Itinerary, ptf *models.PaxTypeFare) bool {
	carrier := ptf.Negotiated.Carrier
	if carrier == "" {
		return true
	}
	candidates := fm.ValidatingCarriers
	if len(candidates) == 0 {
		candidates = itin.Carriers()
	}
	for _, c := range candidates {
		if c == carrier {
			return true
		}
	}
	return false
}

// CarrierValidator fails the sales restriction category of fares that no
// validating carrier of their market may ticket, and the fare-by-rule
// category of fares FareByRule rejects.
type CarrierValidator struct {
	FareByRule collector.FBRRevalidator
}

func (v CarrierValidator) Validate(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) error {
	allowed := make(map[string]struct{}, len(fm.ValidatingCarriers))
	for _, vc := range fm.ValidatingCarriers {
		allowed[vc] = struct{}{}
	}
	seats := trx.TotalSeats()
	for i, ptf := range fm.AllFares {
		if i%64 == 0 && ctx.Err() != nil {
			return fmt.Errorf("%w: %v", collector.ErrAborted, ctx.Err())
		}
		if len(allowed) > 0 && len(ptf.ValidatingCarriers) > 0 && !anyAllowed(allowed, ptf.ValidatingCarriers) {
			ptf.SetCategoryValid(models.CatSalesRestriction, false)
		}
		if ptf.IsFareByRule() && v.FareByRule != nil && !v.FareByRule.Revalidate(ptf, seats, fm) {
			ptf.SetCategoryValid(models.CatFareByRule, false)
		}
	}
	return nil
}

func anyAllowed(allowed map[string]struct{}, vcs []string) bool {
	for _, vc := range vcs {
		if _, ok := allowed[vc]; ok {
			return true
		}
	}
	return false
}

// ContinentDirections resolves the global direction from the continents of
// a market's endpoints.
type ContinentDirections map[[2]string]models.GlobalDirection

// DefaultDirections covers the continent pairs used by the fixtures.
func DefaultDirections() ContinentDirections {
	d := ContinentDirections{}
	add := func(a, b string, gd models.GlobalDirection) {
		d[[2]string{a, b}] = gd
		d[[2]string{b, a}] = gd
	}
	add("NA", "EU", "AT")
	add("NA", "AF", "AT")
	add("SA", "EU", "AT")
	add("NA", "AS", "PA")
	add("NA", "SP", "PA")
	add("NA", "NA", "WH")
	add("NA", "SA", "WH")
	add("SA", "SA", "WH")
	add("EU", "EU", "EH")
	add("EU", "AS", "EH")
	add("EU", "AF", "EH")
	add("AS", "AS", "EH")
	add("AS", "SP", "EH")
	return d
}

func (d ContinentDirections) Resolve(fm *models.FareMarket) models.GlobalDirection {
	if len(fm.TravelSegs) == 0 {
		return models.GlobalDirectionUnknown
	}
	from := fm.TravelSegs[0].OriginContinent
	to := fm.TravelSegs[len(fm.TravelSegs)-1].DestinationContinent
	if gd, ok := d[[2]string{from, to}]; ok {
		return gd
	}
	return models.GlobalDirectionUnknown
}

// PlaceholderFares gives a dummy-fare market one zero amount fare that
// every cortege accepts.
type PlaceholderFares struct{}

func (PlaceholderFares) Fill(_ *models.Transaction, fm *models.FareMarket) error {
	if len(fm.AllFares) > 0 {
		return nil
	}
	fare := &models.Fare{Info: &models.FareInfo{
		Carrier:   fm.GoverningCarrier,
		FareClass: "DUMMY",
		OWRT:      models.OneWayMayBeDoubled,
	}}
	fm.AddFares(&models.PaxTypeFare{Fare: fare})
	return nil
}
