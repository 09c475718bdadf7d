package models

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

/////////////////////////////////////////////////////////////////////////////
/////////////////////////////// TRANSACTION /////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

type TransactionType int

const (
	TrxPricing TransactionType = iota
	TrxMultiItin
	TrxRepricing
)

func (t TransactionType) String() string {
	switch t {
	case TrxMultiItin:
		return "multi_itin"
	case TrxRepricing:
		return "repricing"
	default:
		return "pricing"
	}
}

// FareFilter is the secondary action restricting which fares may be kept.
type FareFilter int

const (
	FilterNone FareFilter = iota
	FilterNormalOnly
	FilterPublicOnly
	FilterPrivateOnly
)

type PaxType struct {
	Code  string `json:"code"`
	Seats int    `json:"seats"`
}

type Itinerary struct {
	ID          ItineraryID
	TravelSegs  []TravelSeg
	FareMarkets []FareMarketID
}

// Carriers lists the marketing carriers of the itinerary in travel order.
func (it *Itinerary) Carriers() []string {
	seen := make(map[string]struct{}, len(it.TravelSegs))
	var out []string
	for _, seg := range it.TravelSegs {
		if seg.Carrier == "" {
			continue
		}
		if _, ok := seen[seg.Carrier]; ok {
			continue
		}
		seen[seg.Carrier] = struct{}{}
		out = append(out, seg.Carrier)
	}
	return out
}

type Options struct {
	MultiCurrencyPricing bool       `json:"multi_currency_pricing"`
	RoundTheWorld        bool       `json:"round_the_world"`
	RetrieveNegotiated   bool       `json:"retrieve_negotiated"`
	RetrieveFareByRule   bool       `json:"retrieve_fare_by_rule"`
	FareFilter           FareFilter `json:"fare_filter"`
	Web                  bool       `json:"web"`
}

// Counters are transaction scoped tallies shared by the collector workers.
type Counters struct {
	FinderCalls    atomic.Int64
	FaresCollected atomic.Int64
	RulePassed     atomic.Int64
	RuleFailed     atomic.Int64
	FaresReleased  atomic.Int64
	FaresCloned    atomic.Int64
	Duplicates     atomic.Int64
}

type CounterSnapshot struct {
	FinderCalls    int64 `json:"finder_calls"`
	FaresCollected int64 `json:"fares_collected"`
	RulePassed     int64 `json:"rule_passed"`
	RuleFailed     int64 `json:"rule_failed"`
	FaresReleased  int64 `json:"fares_released"`
	FaresCloned    int64 `json:"fares_cloned"`
	Duplicates     int64 `json:"duplicates"`
}

func (c *Counters) Reset() {
	c.FinderCalls.Store(0)
	c.FaresCollected.Store(0)
	c.RulePassed.Store(0)
	c.RuleFailed.Store(0)
	c.FaresReleased.Store(0)
	c.FaresCloned.Store(0)
	c.Duplicates.Store(0)
}

func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		FinderCalls:    c.FinderCalls.Load(),
		FaresCollected: c.FaresCollected.Load(),
		RulePassed:     c.RulePassed.Load(),
		RuleFailed:     c.RuleFailed.Load(),
		FaresReleased:  c.FaresReleased.Load(),
		FaresCloned:    c.FaresCloned.Load(),
		Duplicates:     c.Duplicates.Load(),
	}
}

// ScopedFlag is a boolean that is switched for the length of a scope.
type ScopedFlag struct {
	v atomic.Bool
}

func (f *ScopedFlag) Get() bool { return f.v.Load() }

// Set stores value and returns a func that puts the previous value back.
// Callers defer the returned func so every exit path restores it.
func (f *ScopedFlag) Set(value bool) (restore func()) {
	prev := f.v.Swap(value)
	return func() { f.v.Store(prev) }
}

// Transaction owns every itinerary and fare market of one pricing request.
type Transaction struct {
	ID       string
	Type     TransactionType
	Reissue  bool
	AltDates bool
	PaxTypes []PaxType
	Options  Options
	// Deadline aborts the transaction once passed. Zero means none.
	Deadline time.Time

	Counters Counters
	// DataCacheLocal tells data access collaborators to use worker local
	// caches. It is switched off while results are copied between markets.
	DataCacheLocal ScopedFlag

	itins       []*Itinerary
	fareMarkets []*FareMarket
	aborted     atomic.Bool
}

func NewTransaction(typ TransactionType) *Transaction {
	trx := &Transaction{
		ID:   uuid.NewString(),
		Type: typ,
	}
	trx.DataCacheLocal.v.Store(true)
	return trx
}

// AddItinerary stores it in the arena and assigns its identifier.
func (t *Transaction) AddItinerary(it *Itinerary) ItineraryID {
	it.ID = ItineraryID(len(t.itins))
	t.itins = append(t.itins, it)
	return it.ID
}

// AddFareMarket stores fm in the arena, assigns its identifier and links it
// with its owning itineraries.
func (t *Transaction) AddFareMarket(fm *FareMarket, owners ...ItineraryID) FareMarketID {
	fm.ID = FareMarketID(len(t.fareMarkets))
	t.fareMarkets = append(t.fareMarkets, fm)
	for _, id := range owners {
		it := t.Itinerary(id)
		if it == nil {
			continue
		}
		it.FareMarkets = append(it.FareMarkets, fm.ID)
		fm.Itineraries = append(fm.Itineraries, id)
	}
	return fm.ID
}

func (t *Transaction) FareMarket(id FareMarketID) *FareMarket {
	if id < 0 || int(id) >= len(t.fareMarkets) {
		return nil
	}
	return t.fareMarkets[id]
}

func (t *Transaction) FareMarkets() []*FareMarket { return t.fareMarkets }

func (t *Transaction) Itinerary(id ItineraryID) *Itinerary {
	if id < 0 || int(id) >= len(t.itins) {
		return nil
	}
	return t.itins[id]
}

func (t *Transaction) Itineraries() []*Itinerary { return t.itins }

// IsMultiItin reports whether duplicate markets across itineraries are shared.
func (t *Transaction) IsMultiItin() bool { return t.Type == TrxMultiItin }

func (t *Transaction) TotalSeats() int {
	total := 0
	for _, pt := range t.PaxTypes {
		total += pt.Seats
	}
	return total
}

func (t *Transaction) Abort() { t.aborted.Store(true) }

// IsAborted reports whether the transaction was aborted or ran past its
// deadline.
func (t *Transaction) IsAborted() bool {
	if t.aborted.Load() {
		return true
	}
	return !t.Deadline.IsZero() && time.Now().After(t.Deadline)
}
