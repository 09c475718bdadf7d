package models

// FailCode records why a fare market could not be priced. FailNone means the
// market is usable; every other value is local to the market and never stops
// the rest of the transaction.
type FailCode int

const (
	FailNone FailCode = iota
	FailNoFareForClass
	// FailDuplicate marks a registered duplicate awaiting a cloned result.
	FailDuplicate
	FailNeedPreferredCarrier
	FailPricingRestrictedByGov
	FailInvalidRoutingOrSegment
	FailNotAvailableForReprice
)

var failCodeNames = map[FailCode]string{
	FailNone:                    "none",
	FailNoFareForClass:          "no_fare_for_class",
	FailDuplicate:               "duplicate",
	FailNeedPreferredCarrier:    "need_preferred_carrier",
	FailPricingRestrictedByGov:  "pricing_restricted_by_government",
	FailInvalidRoutingOrSegment: "invalid_routing_or_segment",
	FailNotAvailableForReprice:  "fare_market_not_available_for_reprice",
}

func (c FailCode) String() string {
	if name, ok := failCodeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Failed reports whether the code is a real failure. The duplicate sentinel
// is not one.
func (c FailCode) Failed() bool {
	return c != FailNone && c != FailDuplicate
}
