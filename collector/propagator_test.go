package collector

import (
	"context"
	"testing"

	"fareflow/models"
)

// pair returns a multi-itinerary transaction with an equivalent
// representative and duplicate, both set up with an ADT cortege.
func pair(t *testing.T, repMiles, dupMiles int) (*models.Transaction, *models.FareMarket, *models.FareMarket) {
	t.Helper()
	rep := market("JFK", "LHR", "BA", repMiles)
	dup := market("JFK", "LHR", "BA", dupMiles)
	trx := newTrx(models.TrxMultiItin, rep, dup)
	p := NewPipeline(Settings{}, Collaborators{})
	for _, fm := range trx.FareMarkets() {
		if err := p.Setup(context.Background(), trx, fm); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	reg := BuildRegistry(trx)
	if len(reg.DuplicateGroups()) != 1 {
		t.Fatalf("expected one duplicate group")
	}
	return trx, rep, dup
}

func TestCopyToAllClonesFares(t *testing.T) {
	trx, rep, dup := pair(t, 3451, 3451)
	shared := &models.Fare{Info: &models.FareInfo{Carrier: "BA", FareClass: "Y", Amount: 450, Currency: "USD", OWRT: models.OneWayMayBeDoubled}}
	adult := &models.PaxTypeFare{Fare: shared, PaxType: "ADT", Amount: 450, ValidatingCarriers: []string{"BA"}}
	reversed := &models.PaxTypeFare{Fare: shared, PaxType: "ADT", Amount: 450, Reversed: true}
	rep.AddFares(adult, reversed)

	p := NewPropagator(Settings{AmountDecimals: 2}, Collaborators{})
	if err := p.CopyToAll(context.Background(), trx, rep, []*models.FareMarket{dup}); err != nil {
		t.Fatalf("copy: %v", err)
	}

	if len(dup.AllFares) != 2 || dup.FailCode != models.FailNone {
		t.Fatalf("duplicate got %d fares and fail code %v", len(dup.AllFares), dup.FailCode)
	}
	a, b := dup.AllFares[0], dup.AllFares[1]
	if a == adult || b == reversed {
		t.Fatal("duplicate fares must be clones")
	}
	if a.Fare != b.Fare || a.Fare == shared {
		t.Fatal("fares sharing a Fare must share one cloned Fare")
	}
	if a.FareMarket != dup.ID || adult.FareMarket != rep.ID {
		t.Fatalf("clones belong to the duplicate: got %d and %d", a.FareMarket, adult.FareMarket)
	}
	a.ValidatingCarriers[0] = "AA"
	if adult.ValidatingCarriers[0] != "BA" {
		t.Fatal("clone carriers must not alias the original")
	}

	c := dup.Cortege("ADT")
	if c == nil || len(c.Fares) != 2 || c.Fares[0] != a || c.Fares[1] != b {
		t.Fatal("cortege fares must be the same clones as all fares")
	}
	if got := trx.Counters.FaresCloned.Load(); got != 2 {
		t.Fatalf("expected 2 cloned fares, got %d", got)
	}
	if !trx.DataCacheLocal.Get() {
		t.Fatal("local data caches must be switched back on")
	}
}

func TestCopyToAllResolvesBaseFareCycles(t *testing.T) {
	trx, rep, dup := pair(t, 3451, 3451)
	base := fare("BA", "Y", 450)
	derived := fare("BA", "YFBR", 400)
	derived.FareByRule = &models.FareByRuleInfo{ItemNo: 7, Indicator: models.FareByRuleCalculated}
	derived.RuleData = map[int]*models.AllRuleData{
		models.CatFareByRule: {FareRule: &models.RuleData{Category: models.CatFareByRule, ItemNo: 7, BaseFare: base}},
	}
	// a fare that is its own base must resolve to its own clone
	derived.RuleData[models.CatNegotiated] = &models.AllRuleData{GeneralRule: &models.RuleData{BaseFare: derived}}
	rep.AddFares(base, derived)

	p := NewPropagator(Settings{}, Collaborators{})
	if err := p.CopyToAll(context.Background(), trx, rep, []*models.FareMarket{dup}); err != nil {
		t.Fatalf("copy: %v", err)
	}

	cBase, cDerived := dup.AllFares[0], dup.AllFares[1]
	rd := cDerived.RuleData[models.CatFareByRule].FareRule
	if rd == derived.RuleData[models.CatFareByRule].FareRule {
		t.Fatal("rule data must be cloned")
	}
	if rd.BaseFare != cBase {
		t.Fatal("base fare must point at the clone of the base")
	}
	if cDerived.RuleData[models.CatNegotiated].GeneralRule.BaseFare != cDerived {
		t.Fatal("self referencing base fare must resolve to the clone itself")
	}
	if derived.RuleData[models.CatFareByRule].FareRule.BaseFare != base {
		t.Fatal("representative rule data must be untouched")
	}
}

func specifiedFare(owrt models.OWRT) *models.PaxTypeFare {
	ptf := fare("BA", "SPR", 345.1)
	ptf.Fare.Info.OWRT = owrt
	ptf.FareByRule = &models.FareByRuleInfo{
		Indicator:          models.FareByRuleSpecified,
		SpecifiedAmount1:   10,
		SpecifiedCurrency1: "USD",
	}
	return ptf
}

func TestCopyToAllRescalesSpecifiedFareByRule(t *testing.T) {
	tests := []struct {
		name       string
		owrt       models.OWRT
		rtw        bool
		discount   float64
		dupMiles   int
		wantAmount float64
		wantInfo   float64
	}{
		{"one way", models.OneWayMayBeDoubled, false, 0, 3000, 300, 300},
		{"round trip halves the fare amount", models.RoundTripMayNotBeHalved, false, 0, 3000, 300, 150},
		{"round the world keeps the full amount", models.RoundTripMayNotBeHalved, true, 0, 3000, 300, 300},
		{"discount applies to the rescaled amount", models.OneWayMayBeDoubled, false, 80, 3000, 240, 300},
		{"rounding", models.OneWayMayBeDoubled, false, 0, 1234, 123.4, 123.4},
		{"same mileage is not rescaled", models.OneWayMayBeDoubled, false, 0, 3451, 345.1, 345.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trx, rep, dup := pair(t, 3451, tt.dupMiles)
			trx.Options.RoundTheWorld = tt.rtw
			ptf := specifiedFare(tt.owrt)
			if tt.discount > 0 {
				ptf.Discount = &models.DiscountInfo{Percent: tt.discount}
			}
			rep.AddFares(ptf)

			p := NewPropagator(Settings{AmountDecimals: 2}, Collaborators{})
			if err := p.CopyToAll(context.Background(), trx, rep, []*models.FareMarket{dup}); err != nil {
				t.Fatalf("copy: %v", err)
			}
			c := dup.AllFares[0]
			if c.Amount != tt.wantAmount || c.Fare.Info.Amount != tt.wantInfo {
				t.Fatalf("amount=%v info=%v, want %v and %v", c.Amount, c.Fare.Info.Amount, tt.wantAmount, tt.wantInfo)
			}
			if ptf.Amount != 345.1 || ptf.Fare.Info.Amount != 345.1 {
				t.Fatal("representative amounts must be untouched")
			}
		})
	}
}

func TestCopyToAllExcludesOutboundFares(t *testing.T) {
	trx, rep, dup := pair(t, 3451, 3451)
	rep.RemoveOutboundFares = true
	dup.RemoveOutboundFares = true

	from := fare("BA", "FROM", 100)
	from.Fare.Info.Directionality = models.DirectionFrom
	to := fare("BA", "TO", 100)
	to.Fare.Info.Directionality = models.DirectionTo
	reversedTo := fare("BA", "RTO", 100)
	reversedTo.Fare.Info.Directionality = models.DirectionTo
	reversedTo.Reversed = true
	rep.AddFares(from, to, reversedTo)

	p := NewPropagator(Settings{}, Collaborators{})
	if err := p.CopyToAll(context.Background(), trx, rep, []*models.FareMarket{dup}); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if len(dup.AllFares) != 1 || dup.AllFares[0].FareClass() != "TO" {
		t.Fatalf("expected only the TO fare, got %d fares", len(dup.AllFares))
	}
	if !from.Fare.DirectionalityFail || !reversedTo.Fare.DirectionalityFail || to.Fare.DirectionalityFail {
		t.Fatal("representative outbound fares must be marked, not removed")
	}
	if len(rep.AllFares) != 3 {
		t.Fatalf("representative keeps every fare, got %d", len(rep.AllFares))
	}
}

func TestCopyToAllRevalidatesFareByRuleSeats(t *testing.T) {
	trx, rep, dup := pair(t, 3451, 3451)
	trx.PaxTypes = []models.PaxType{{Code: "ADT", Seats: 2}}
	fbr := fare("BA", "FBR", 200)
	fbr.FareByRule = &models.FareByRuleInfo{Indicator: models.FareByRuleCalculated, MaxSeats: 1}
	rep.AddFares(fbr, fare("BA", "Y", 450))

	p := NewPropagator(Settings{}, Collaborators{FareByRule: seatLimit{max: 1}})
	if err := p.CopyToAll(context.Background(), trx, rep, []*models.FareMarket{dup}); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if len(dup.AllFares) != 1 || dup.AllFares[0].FareClass() != "Y" {
		t.Fatal("the fare by rule fare must not be copied")
	}
	if fbr.CategoryValid(models.CatFareByRule) {
		t.Fatal("the representative fare must fail its fare by rule category")
	}
}

func TestCopyToAllChecksNegotiatedEligibility(t *testing.T) {
	trx, rep, dup := pair(t, 3451, 3451)
	ok := fare("BA", "NEGBA", 300)
	ok.Negotiated = &models.NegotiatedInfo{Carrier: "BA"}
	other := fare("BA", "NEGXX", 250)
	other.Negotiated = &models.NegotiatedInfo{Carrier: "XX"}
	rep.AddFares(ok, other)

	check := negotiatedFunc(func(_ *models.FareMarket, itin *models.Itinerary, ptf *models.PaxTypeFare) bool {
		for _, c := range itin.Carriers() {
			if c == ptf.Negotiated.Carrier {
				return true
			}
		}
		return false
	})
	p := NewPropagator(Settings{}, Collaborators{Negotiated: check})
	if err := p.CopyToAll(context.Background(), trx, rep, []*models.FareMarket{dup}); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if len(dup.AllFares) != 1 || dup.AllFares[0].FareClass() != "NEGBA" {
		t.Fatalf("expected only the eligible negotiated fare, got %d", len(dup.AllFares))
	}
	if !ok.CategoryValid(models.CatNegotiated) || other.CategoryValid(models.CatNegotiated) {
		t.Fatal("only the ineligible representative fare must fail")
	}
}

func TestCopyToAllPropagatesFailure(t *testing.T) {
	trx, rep, dup := pair(t, 3451, 3451)
	rep.FailCode = models.FailNoFareForClass

	p := NewPropagator(Settings{}, Collaborators{})
	if err := p.CopyToAll(context.Background(), trx, rep, []*models.FareMarket{dup}); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if dup.FailCode != models.FailNoFareForClass || len(dup.AllFares) != 0 {
		t.Fatalf("duplicate should inherit the failure, got %v", dup.FailCode)
	}
}

func TestCopyToAllStopsOnAbort(t *testing.T) {
	trx, rep, dup := pair(t, 3451, 3451)
	rep.AddFares(fare("BA", "Y", 450))
	trx.Abort()

	p := NewPropagator(Settings{}, Collaborators{})
	if err := p.CopyToAll(context.Background(), trx, rep, []*models.FareMarket{dup}); !IsAborted(err) {
		t.Fatalf("expected an abort, got %v", err)
	}
	if len(dup.AllFares) != 0 || dup.FailCode != models.FailDuplicate {
		t.Fatal("an aborted copy leaves the duplicate untouched")
	}
	if !trx.DataCacheLocal.Get() {
		t.Fatal("local data caches must be switched back on after an abort")
	}
}
