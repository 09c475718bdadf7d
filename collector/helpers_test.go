package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fareflow/models"
)

var day = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

func market(origin, destination, carrier string, miles int) *models.FareMarket {
	return &models.FareMarket{
		TravelSegs: []models.TravelSeg{{
			Origin:               origin,
			Destination:          destination,
			OriginNation:         "US",
			DestinationNation:    "GB",
			OriginContinent:      "NA",
			DestinationContinent: "EU",
			Carrier:              carrier,
			Departure:            day,
			Mileage:              miles,
		}},
		GoverningCarrier: carrier,
		GlobalDirection:  "AT",
		GeoTravelType:    models.GeoInternational,
		TravelDate:       day,
	}
}

func fare(carrier, class string, amount float64) *models.PaxTypeFare {
	return &models.PaxTypeFare{
		Fare: &models.Fare{Info: &models.FareInfo{
			Carrier:   carrier,
			FareClass: class,
			Amount:    amount,
			Currency:  "USD",
			OWRT:      models.OneWayMayBeDoubled,
		}},
		Amount: amount,
	}
}

// newTrx builds a transaction holding one itinerary per market.
func newTrx(typ models.TransactionType, fms ...*models.FareMarket) *models.Transaction {
	trx := models.NewTransaction(typ)
	trx.PaxTypes = []models.PaxType{{Code: "ADT", Seats: 1}}
	for _, fm := range fms {
		it := trx.AddItinerary(&models.Itinerary{TravelSegs: fm.TravelSegs})
		trx.AddFareMarket(fm, it)
	}
	return trx
}

// stubFinder returns fresh copies of the fares built by build on every call.
type stubFinder struct {
	category Category
	build    func(fm *models.FareMarket) []*models.PaxTypeFare
	failCode models.FailCode
	err      error
	// onCall runs before the result is returned.
	onCall func(trx *models.Transaction, fm *models.FareMarket)

	calls atomic.Int64
	mu    sync.Mutex
	seen  []models.FareMarketID
}

func (f *stubFinder) Category() Category { return f.category }

func (f *stubFinder) FindFares(_ context.Context, trx *models.Transaction, fm *models.FareMarket) (Result, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, fm.ID)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(trx, fm)
	}
	if f.err != nil {
		return Result{}, f.err
	}
	var fares []*models.PaxTypeFare
	if f.build != nil {
		fares = f.build(fm)
	}
	return Result{Fares: fares, FailCode: f.failCode}, nil
}

func published(build func(fm *models.FareMarket) []*models.PaxTypeFare) *stubFinder {
	return &stubFinder{category: CategoryPublished, build: build}
}

type byAmount struct{}

func (byAmount) Compare(a, b *models.PaxTypeFare) int {
	switch {
	case a.Amount < b.Amount:
		return -1
	case a.Amount > b.Amount:
		return 1
	}
	return 0
}

type validatorFunc func(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) error

func (f validatorFunc) Validate(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) error {
	return f(ctx, trx, fm)
}

type preferences map[string]CarrierPreference

func (p preferences) Preference(_ context.Context, carrier string) (CarrierPreference, bool, error) {
	pref, ok := p[carrier]
	return pref, ok, nil
}

type restrictions map[string]bool

func (r restrictions) Restricted(_ context.Context, _ *models.Transaction, fm *models.FareMarket) (bool, error) {
	return r[fm.GoverningCarrier+"/"+fm.DestinationNation()], nil
}

type seatLimit struct{ max int }

func (s seatLimit) Revalidate(_ *models.PaxTypeFare, seats int, _ *models.FareMarket) bool {
	return seats <= s.max
}

type negotiatedFunc func(fm *models.FareMarket, itin *models.Itinerary, ptf *models.PaxTypeFare) bool

func (f negotiatedFunc) Eligible(fm *models.FareMarket, itin *models.Itinerary, ptf *models.PaxTypeFare) bool {
	return f(fm, itin, ptf)
}

type dummyFiller struct{ filled []models.FareMarketID }

func (d *dummyFiller) Fill(_ *models.Transaction, fm *models.FareMarket) error {
	d.filled = append(d.filled, fm.ID)
	fm.AddFares(fare(fm.GoverningCarrier, "DUMMY", 0))
	return nil
}
