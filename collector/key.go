package collector

import (
	"strconv"
	"strings"
	"time"

	"fareflow/models"
)

// Key identifies fare markets that can share one computed fare set.
type Key string

const keyDateLayout = "20060102"

// BuildKey derives the equivalence key of fm. It reads only static market
// attributes, so repeated calls return the same key.
func BuildKey(fm *models.FareMarket, trx *models.Transaction) Key {
	if fm.ForceNonDuplicate || fm.Origin() == "" || fm.Destination() == "" {
		return UniqueKey(fm)
	}

	var b strings.Builder
	b.WriteString(fm.Origin())
	b.WriteByte('.')
	b.WriteString(fm.Destination())
	b.WriteByte('.')
	b.WriteString(string(fm.GlobalDirection))
	b.WriteByte('.')
	b.WriteString(fm.GoverningCarrier)
	b.WriteByte('.')
	b.WriteString(strconv.Itoa(int(fm.GeoTravelType)))
	if fm.SimpleTrip {
		b.WriteString("T")
	} else {
		b.WriteString("F")
	}

	switch {
	case trx.AltDates && trx.IsMultiItin():
		writeDate(&b, fm.TravelDate)
	case trx.Reissue:
		writeDate(&b, fm.TravelDate)
		writeDate(&b, fm.RetrievalDate)
		writeDate(&b, fm.DepartureDate())
	default:
		writeDate(&b, fm.TravelDate)
		writeDate(&b, fm.DepartureDate())
	}
	return Key(b.String())
}

// UniqueKey never equals the key of another market.
func UniqueKey(fm *models.FareMarket) Key {
	return Key("!" + strconv.Itoa(int(fm.ID)))
}

func writeDate(b *strings.Builder, t time.Time) {
	b.WriteByte('.')
	if t.IsZero() {
		b.WriteString("-")
		return
	}
	b.WriteString(t.Format(keyDateLayout))
}
