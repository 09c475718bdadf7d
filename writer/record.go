package writer

import (
	"time"

	"fareflow/collector"
	"fareflow/models"
)

// OutcomeRecord is one exported fare of a fare market, or one row for a
// market left without fares.
type OutcomeRecord struct {
	TransactionID string  `parquet:"name=trx_id, type=BYTE_ARRAY, convertedtype=UTF8" json:"trx_id"`
	CollectedAt   int64   `parquet:"name=collected_at, type=INT64" json:"collected_at"`
	FareMarket    int32   `parquet:"name=fare_market, type=INT32" json:"fare_market"`
	Origin        string  `parquet:"name=origin, type=BYTE_ARRAY, convertedtype=UTF8" json:"origin"`
	Destination   string  `parquet:"name=destination, type=BYTE_ARRAY, convertedtype=UTF8" json:"destination"`
	Carrier       string  `parquet:"name=carrier, type=BYTE_ARRAY, convertedtype=UTF8" json:"carrier"`
	FareClass     string  `parquet:"name=fare_class, type=BYTE_ARRAY, convertedtype=UTF8" json:"fare_class"`
	PaxType       string  `parquet:"name=pax_type, type=BYTE_ARRAY, convertedtype=UTF8" json:"pax_type"`
	Amount        float64 `parquet:"name=amount, type=DOUBLE" json:"amount"`
	Currency      string  `parquet:"name=currency, type=BYTE_ARRAY, convertedtype=UTF8" json:"currency"`
	FailCode      string  `parquet:"name=fail_code, type=BYTE_ARRAY, convertedtype=UTF8" json:"fail_code"`
	Duplicate     bool    `parquet:"name=duplicate, type=BOOLEAN" json:"duplicate"`
}

// MarketOutcome groups the records of one fare market. It is the Kafka
// message payload.
type MarketOutcome struct {
	TransactionID string          `json:"trx_id"`
	FareMarket    int             `json:"fare_market"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	Carrier       string          `json:"carrier"`
	FailCode      string          `json:"fail_code"`
	Fares         []OutcomeRecord `json:"fares"`
}

// Outcomes flattens the collected fares of trx as summarized by s.
func Outcomes(trx *models.Transaction, s *collector.Summary, at time.Time) []MarketOutcome {
	duplicates := make(map[models.FareMarketID]bool, len(s.DuplicateMarkets))
	for _, id := range s.DuplicateMarkets {
		duplicates[id] = true
	}
	out := make([]MarketOutcome, 0, len(trx.FareMarkets()))
	for _, fm := range trx.FareMarkets() {
		mo := MarketOutcome{
			TransactionID: trx.ID,
			FareMarket:    int(fm.ID),
			Origin:        fm.Origin(),
			Destination:   fm.Destination(),
			Carrier:       fm.GoverningCarrier,
			FailCode:      fm.FailCode.String(),
		}
		base := OutcomeRecord{
			TransactionID: trx.ID,
			CollectedAt:   at.UnixMilli(),
			FareMarket:    int32(fm.ID),
			Origin:        mo.Origin,
			Destination:   mo.Destination,
			Carrier:       fm.GoverningCarrier,
			FailCode:      mo.FailCode,
			Duplicate:     duplicates[fm.ID],
		}
		if len(fm.AllFares) == 0 {
			mo.Fares = []OutcomeRecord{base}
		}
		for _, ptf := range fm.AllFares {
			rec := base
			rec.Carrier = ptf.Carrier()
			rec.FareClass = ptf.FareClass()
			rec.PaxType = ptf.PaxType
			rec.Amount = ptf.Amount
			rec.Currency = ptf.Currency()
			mo.Fares = append(mo.Fares, rec)
		}
		out = append(out, mo)
	}
	return out
}

// Records returns every record of outcomes in market order.
func Records(outcomes []MarketOutcome) []OutcomeRecord {
	var n int
	for _, mo := range outcomes {
		n += len(mo.Fares)
	}
	recs := make([]OutcomeRecord, 0, n)
	for _, mo := range outcomes {
		recs = append(recs, mo.Fares...)
	}
	return recs
}
