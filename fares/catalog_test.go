package fares

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"fareflow/collector"
	"fareflow/models"
)

func jfkLhr(carrier string) *models.FareMarket {
	return &models.FareMarket{
		TravelSegs: []models.TravelSeg{{
			Origin:               "JFK",
			Destination:          "LHR",
			OriginNation:         "US",
			DestinationNation:    "GB",
			OriginContinent:      "NA",
			DestinationContinent: "EU",
			Carrier:              carrier,
			Departure:            time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC),
			Mileage:              3451,
		}},
		GoverningCarrier: carrier,
		GeoTravelType:    models.GeoInternational,
	}
}

func info(carrier, class string, amount float64) models.FareInfo {
	return models.FareInfo{Carrier: carrier, FareClass: class, Amount: amount, Currency: "USD", OWRT: models.OneWayMayBeDoubled}
}

func find(t *testing.T, c *Catalog, cat collector.Category, fm *models.FareMarket) []*models.PaxTypeFare {
	t.Helper()
	trx := models.NewTransaction(models.TrxPricing)
	res, err := c.Finder(cat).FindFares(context.Background(), trx, fm)
	if err != nil {
		t.Fatalf("find fares: %v", err)
	}
	if res.FailCode != models.FailNone {
		t.Fatalf("unexpected fail code %v", res.FailCode)
	}
	return res.Fares
}

func classes(fares []*models.PaxTypeFare) []string {
	out := make([]string, 0, len(fares))
	for _, ptf := range fares {
		out = append(out, ptf.FareClass())
	}
	return out
}

func TestCatalogMatchesMarket(t *testing.T) {
	c := NewCatalog(2,
		Entry{Category: collector.CategoryPublished, Origin: "JFK", Destination: "LHR", Info: info("BA", "Y", 450)},
		Entry{Category: collector.CategoryPublished, Origin: "LHR", Destination: "JFK", Info: info("BA", "B", 380)},
		Entry{Category: collector.CategoryPublished, Origin: "JFK", Destination: "LHR", Info: info("AA", "Y", 470)},
		Entry{Category: collector.CategoryPublished, Origin: "JFK", Destination: "CDG", Info: info("BA", "Y", 520)},
		Entry{Category: collector.CategoryFareByRule, Origin: "JFK", Destination: "LHR", Info: info("BA", "F", 900)},
	)

	got := find(t, c, collector.CategoryPublished, jfkLhr("BA"))
	if diff := cmp.Diff([]string{"Y", "B"}, classes(got)); diff != "" {
		t.Fatalf("fare classes mismatch (-want +got):\n%s", diff)
	}
	if got[0].Reversed || !got[1].Reversed {
		t.Fatal("the LHR-JFK fare must be marked reversed")
	}
	if got[0].Amount != 450 {
		t.Fatalf("expected amount 450, got %v", got[0].Amount)
	}
}

func TestCatalogSharesFareForEqualInfo(t *testing.T) {
	y := info("BA", "Y", 450)
	c := NewCatalog(2,
		Entry{Category: collector.CategoryPublished, Origin: "JFK", Destination: "LHR", Info: y, PaxType: "ADT", ValidatingCarriers: []string{"BA"}},
		Entry{Category: collector.CategoryPublished, Origin: "JFK", Destination: "LHR", Info: y, PaxType: "CNN"},
	)
	got := find(t, c, collector.CategoryPublished, jfkLhr("BA"))
	if len(got) != 2 || got[0].Fare != got[1].Fare {
		t.Fatal("entries with the same fare info must share one Fare")
	}

	again := find(t, c, collector.CategoryPublished, jfkLhr("BA"))
	if again[0].Fare == got[0].Fare {
		t.Fatal("every call must build fresh fares")
	}
	again[0].ValidatingCarriers[0] = "AA"
	if c.entries[0].ValidatingCarriers[0] != "BA" {
		t.Fatal("fares must not alias catalog slices")
	}
}

func TestCatalogIndustryFares(t *testing.T) {
	c := NewCatalog(2,
		Entry{Category: collector.CategoryIndustry, Origin: "JFK", Destination: "LHR", Info: info(models.IndustryCarrier, "Y", 700)},
		Entry{Category: collector.CategoryIndustry, Origin: "JFK", Destination: "LHR", Info: info("AA", "Y", 650)},
	)
	got := find(t, c, collector.CategoryIndustry, jfkLhr("BA"))
	if len(got) != 1 || got[0].Carrier() != models.IndustryCarrier || !got[0].Fare.Industry {
		t.Fatalf("expected only the YY industry fare, got %v", classes(got))
	}
}

func TestCatalogPricesSpecifiedFareByRule(t *testing.T) {
	rt := info("BA", "SPR", 0)
	rt.OWRT = models.RoundTripMayNotBeHalved
	spec := &models.FareByRuleInfo{Indicator: models.FareByRuleSpecified, SpecifiedAmount1: 10, SpecifiedCurrency1: "USD"}
	c := NewCatalog(2,
		Entry{Category: collector.CategoryFareByRule, Origin: "JFK", Destination: "LHR", Info: rt, FareByRule: spec},
		Entry{Category: collector.CategoryFareByRule, Origin: "JFK", Destination: "LHR", Info: rt, FareByRule: spec, PaxType: "CNN"},
	)

	got := find(t, c, collector.CategoryFareByRule, jfkLhr("BA"))
	if len(got) != 2 {
		t.Fatalf("expected 2 fares, got %d", len(got))
	}
	if got[0].Amount != 345.1 || got[0].Fare.Info.Amount != 172.55 {
		t.Fatalf("amount=%v info=%v, want 345.1 and 172.55", got[0].Amount, got[0].Fare.Info.Amount)
	}
	if got[0].Fare == got[1].Fare || got[0].Fare.Info == got[1].Fare.Info {
		t.Fatal("specified fares must not share a Fare")
	}
	if c.entries[0].Info.Amount != 0 {
		t.Fatal("catalog entries must be left untouched")
	}
}

func TestCatalogAppliesDiscount(t *testing.T) {
	c := NewCatalog(2, Entry{
		Category:    collector.CategoryDiscounted,
		Origin:      "JFK",
		Destination: "LHR",
		Info:        info("BA", "Y", 450.25),
		Discount:    &models.DiscountInfo{Percent: 75},
	})
	got := find(t, c, collector.CategoryDiscounted, jfkLhr("BA"))
	if len(got) != 1 || got[0].Amount != 337.69 || got[0].Fare.Info.Amount != 450.25 {
		t.Fatalf("unexpected discounted fare %+v", got)
	}
}

func TestCatalogFindersFollowPipelineOrder(t *testing.T) {
	c := NewCatalog(2)
	var got []collector.Category
	for _, f := range c.Finders() {
		got = append(got, f.Category())
	}
	want := []collector.Category{
		collector.CategoryAddon,
		collector.CategoryPublished,
		collector.CategoryIndustry,
		collector.CategoryFareByRule,
		collector.CategoryDiscounted,
		collector.CategoryNegotiated,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("finder categories mismatch (-want +got):\n%s", diff)
	}

	c.Add(Entry{Category: collector.CategoryNegotiated, Origin: "JFK", Destination: "LHR", Info: info("BA", "NEG", 300)})
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
	if got := find(t, c, collector.CategoryNegotiated, jfkLhr("BA")); len(got) != 1 {
		t.Fatalf("added entries must be served, got %d", len(got))
	}
}
