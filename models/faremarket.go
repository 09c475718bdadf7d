package models

import "time"

/////////////////////////////////////////////////////////////////////////////
/////////////////////////////// FARE MARKETS ////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

type FareMarketID int

type ItineraryID int

type SegmentType int

const (
	SegmentAir SegmentType = iota
	SegmentSurface
	SegmentArunk
)

// TravelSeg is one flown or surface segment of a fare market.
type TravelSeg struct {
	Origin               string      `json:"origin"`
	Destination          string      `json:"destination"`
	OriginNation         string      `json:"origin_nation"`
	DestinationNation    string      `json:"destination_nation"`
	OriginContinent      string      `json:"origin_continent"`
	DestinationContinent string      `json:"destination_continent"`
	Carrier              string      `json:"carrier"`
	Departure            time.Time   `json:"departure"`
	Type                 SegmentType `json:"type"`
	Mileage              int         `json:"mileage"`
}

func (s TravelSeg) IsSurface() bool {
	return s.Type == SegmentSurface || s.Type == SegmentArunk
}

// GlobalDirection is the two letter global indicator (AT, PA, WH, ...).
type GlobalDirection string

const GlobalDirectionUnknown GlobalDirection = "XX"

type GeoTravelType int

const (
	GeoUnknown GeoTravelType = iota
	GeoDomestic
	GeoInternational
	GeoTransborder
	GeoForeignDomestic
)

// TravelUnit tells whether a market spans the whole journey or a local leg.
type TravelUnit int

const (
	TravelUnitThru TravelUnit = iota
	TravelUnitLocal
)

type Status uint8

const (
	StatusProcessed Status = 1 << iota
	StatusHasDuplicates
	StatusBreakAtSurface
)

// IndustryCarrier is the governing carrier of industry-only markets.
const IndustryCarrier = "YY"

// Cortege is the per requested passenger type view of a market's fares.
type Cortege struct {
	PaxType          string
	InboundCurrency  string
	OutboundCurrency string
	Fares            []*PaxTypeFare
}

// Accepts reports whether a fare belongs to this cortege. Fares without a
// passenger type apply to every cortege.
func (c *Cortege) Accepts(ptf *PaxTypeFare) bool {
	return ptf.PaxType == "" || ptf.PaxType == c.PaxType
}

// FareMarket is an origin-destination-carrier-date travel unit.
type FareMarket struct {
	ID                  FareMarketID
	TravelSegs          []TravelSeg
	GoverningCarrier    string
	GlobalDirection     GlobalDirection
	GeoTravelType       GeoTravelType
	SimpleTrip          bool
	TravelDate          time.Time
	RetrievalDate       time.Time
	TravelUnit          TravelUnit
	UseDummyFare        bool
	ForceNonDuplicate   bool
	RemoveOutboundFares bool
	RepriceExcluded     bool

	AllFares            []*PaxTypeFare
	Corteges            []*Cortege
	FailCode            FailCode
	ValidatingCarriers  []string
	BrandIndices        []int
	SpecialRoutingFound bool

	// Itineraries holds the owning itinerary identifiers. Lookup only.
	Itineraries []ItineraryID

	status Status
}

func (fm *FareMarket) Origin() string {
	if len(fm.TravelSegs) == 0 {
		return ""
	}
	return fm.TravelSegs[0].Origin
}

func (fm *FareMarket) Destination() string {
	if len(fm.TravelSegs) == 0 {
		return ""
	}
	return fm.TravelSegs[len(fm.TravelSegs)-1].Destination
}

func (fm *FareMarket) OriginNation() string {
	if len(fm.TravelSegs) == 0 {
		return ""
	}
	return fm.TravelSegs[0].OriginNation
}

func (fm *FareMarket) DestinationNation() string {
	if len(fm.TravelSegs) == 0 {
		return ""
	}
	return fm.TravelSegs[len(fm.TravelSegs)-1].DestinationNation
}

// DepartureDate is the departure of the first segment.
func (fm *FareMarket) DepartureDate() time.Time {
	if len(fm.TravelSegs) == 0 {
		return time.Time{}
	}
	return fm.TravelSegs[0].Departure
}

// Mileage sums the ticketed point mileage of every segment.
func (fm *FareMarket) Mileage() int {
	total := 0
	for _, seg := range fm.TravelSegs {
		total += seg.Mileage
	}
	return total
}

func (fm *FareMarket) IsInternational() bool {
	return fm.GeoTravelType == GeoInternational
}

func (fm *FareMarket) HasStatus(s Status) bool { return fm.status&s != 0 }
func (fm *FareMarket) SetStatus(s Status)      { fm.status |= s }
func (fm *FareMarket) ClearStatus(s Status)    { fm.status &^= s }

func (fm *FareMarket) Processed() bool     { return fm.HasStatus(StatusProcessed) }
func (fm *FareMarket) HasDuplicates() bool { return fm.HasStatus(StatusHasDuplicates) }

// Cortege returns the bucket for paxType or nil.
func (fm *FareMarket) Cortege(paxType string) *Cortege {
	for _, c := range fm.Corteges {
		if c.PaxType == paxType {
			return c
		}
	}
	return nil
}

// AddFares attaches fares to the market and to every cortege accepting them.
func (fm *FareMarket) AddFares(fares ...*PaxTypeFare) {
	for _, ptf := range fares {
		ptf.FareMarket = fm.ID
		fm.AllFares = append(fm.AllFares, ptf)
		for _, c := range fm.Corteges {
			if c.Accepts(ptf) {
				c.Fares = append(c.Fares, ptf)
			}
		}
	}
}

// Retain keeps only the fares for which keep returns true, in all fares and
// in every cortege. It returns the number of fares removed from all fares.
func (fm *FareMarket) Retain(keep func(*PaxTypeFare) bool) int {
	before := len(fm.AllFares)
	fm.AllFares = filterFares(fm.AllFares, keep)
	for _, c := range fm.Corteges {
		c.Fares = filterFares(c.Fares, keep)
	}
	return before - len(fm.AllFares)
}

func filterFares(fares []*PaxTypeFare, keep func(*PaxTypeFare) bool) []*PaxTypeFare {
	out := fares[:0]
	for _, ptf := range fares {
		if keep(ptf) {
			out = append(out, ptf)
		}
	}
	for i := len(out); i < len(fares); i++ {
		fares[i] = nil
	}
	return out
}
