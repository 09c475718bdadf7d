package fares

import (
	"context"
	"sync"

	"fareflow/collector"
	"fareflow/models"
)

// Entry is one fare published in a Catalog.
type Entry struct {
	Category    collector.Category
	Origin      string
	Destination string
	Info        models.FareInfo
	PaxType     string
	Tariff      models.TariffCategory

	FareByRule *models.FareByRuleInfo
	Negotiated *models.NegotiatedInfo
	Discount   *models.DiscountInfo

	ValidatingCarriers []string
	BrandStatuses      []models.BrandStatus
}

// Catalog is an in-memory fare source serving every finder category.
type Catalog struct {
	mu       sync.RWMutex
	entries  []Entry
	decimals int32
}

// NewCatalog returns a catalog rounding computed amounts to decimals places.
func NewCatalog(decimals int32, entries ...Entry) *Catalog {
	return &Catalog{entries: append([]Entry(nil), entries...), decimals: decimals}
}

func (c *Catalog) Add(entries ...Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entries...)
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Finders returns one finder per category, in pipeline order.
func (c *Catalog) Finders() []collector.Finder {
	cats := []collector.Category{
		collector.CategoryAddon,
		collector.CategoryPublished,
		collector.CategoryIndustry,
		collector.CategoryFareByRule,
		collector.CategoryDiscounted,
		collector.CategoryNegotiated,
	}
	out := make([]collector.Finder, 0, len(cats))
	for _, cat := range cats {
		out = append(out, c.Finder(cat))
	}
	return out
}

// Finder returns the finder serving the catalog fares of one category.
func (c *Catalog) Finder(cat collector.Category) collector.Finder {
	return &catalogFinder{catalog: c, category: cat}
}

type catalogFinder struct {
	catalog  *Catalog
	category collector.Category
}

func (f *catalogFinder) Category() collector.Category { return f.category }

// FindFares returns a fare for every catalog entry of the finder's category
// that matches the market's endpoints, in either direction, and carrier.
// Entries sharing a FareInfo value share one Fare.
func (f *catalogFinder) FindFares(_ context.Context, trx *models.Transaction, fm *models.FareMarket) (collector.Result, error) {
	c := f.catalog
	c.mu.RLock()
	defer c.mu.RUnlock()

	shared := make(map[models.FareInfo]*models.Fare)
	var out []*models.PaxTypeFare
	for i := range c.entries {
		e := &c.entries[i]
		if e.Category != f.category || !carrierMatches(f.category, e, fm) {
			continue
		}

		var reversed bool
		switch {
		case e.Origin == fm.Origin() && e.Destination == fm.Destination():
		case e.Origin == fm.Destination() && e.Destination == fm.Origin():
			reversed = true
		default:
			continue
		}

		fare, ok := shared[e.Info]
		if !ok {
			info := e.Info
			fare = &models.Fare{Info: &info, Industry: f.category == collector.CategoryIndustry}
			shared[e.Info] = fare
		}

		ptf := &models.PaxTypeFare{
			Fare:               fare,
			PaxType:            e.PaxType,
			Reversed:           reversed,
			TariffCategory:     e.Tariff,
			Amount:             e.Info.Amount,
			FareByRule:         e.FareByRule,
			Negotiated:         e.Negotiated,
			Discount:           e.Discount,
			ValidatingCarriers: append([]string(nil), e.ValidatingCarriers...),
			BrandStatuses:      append([]models.BrandStatus(nil), e.BrandStatuses...),
		}
		if ptf.IsFareByRule() && ptf.FareByRule.Indicator == models.FareByRuleSpecified {
			// One Fare per specified fare: its amount depends on the market.
			ptf.Fare = fare.Clone()
			collector.ApplySpecifiedAmount(trx, ptf, fm.Mileage(), c.decimals)
		} else if ptf.IsDiscounted() {
			ptf.Amount = collector.ApplyDiscount(e.Info.Amount, e.Discount.Percent, c.decimals)
		}
		out = append(out, ptf)
	}
	return collector.Result{Fares: out}, nil
}

func carrierMatches(cat collector.Category, e *Entry, fm *models.FareMarket) bool {
	if cat == collector.CategoryIndustry {
		return e.Info.Carrier == models.IndustryCarrier || e.Info.Carrier == fm.GoverningCarrier
	}
	return e.Info.Carrier == fm.GoverningCarrier
}
