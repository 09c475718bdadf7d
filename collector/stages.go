package collector

import (
	"context"
	"fmt"
	"sort"

	"fareflow/models"
)

// Setup prepares fm for fare retrieval. It is idempotent: a market that
// already has its corteges is left alone.
func (p *Pipeline) Setup(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) error {
	if len(fm.Corteges) > 0 {
		return nil
	}
	for _, pt := range trx.PaxTypes {
		fm.Corteges = append(fm.Corteges, &models.Cortege{PaxType: pt.Code})
	}

	if trx.Type == models.TrxRepricing && fm.RepriceExcluded {
		fm.FailCode = models.FailNotAvailableForReprice
		return nil
	}

	if fm.GlobalDirection == "" || fm.GlobalDirection == models.GlobalDirectionUnknown {
		dir := models.GlobalDirectionUnknown
		if p.c.Directions != nil {
			dir = p.c.Directions.Resolve(fm)
		}
		if dir == "" || dir == models.GlobalDirectionUnknown {
			fm.FailCode = models.FailInvalidRoutingOrSegment
			return nil
		}
		fm.GlobalDirection = dir
	}

	if p.c.Preferences != nil {
		pref, ok, err := p.c.Preferences.Preference(ctx, fm.GoverningCarrier)
		if err != nil {
			return fmt.Errorf("carrier preference for %s: %w", fm.GoverningCarrier, err)
		}
		if !ok {
			fm.FailCode = models.FailNeedPreferredCarrier
			return nil
		}
		if pref.NoSurfaceAtFareBreak && surfaceAtFareBreak(fm) {
			fm.SetStatus(models.StatusBreakAtSurface)
		}
	}

	if p.c.SalesRestrictions != nil {
		restricted, err := p.c.SalesRestrictions.Restricted(ctx, trx, fm)
		if err != nil {
			return fmt.Errorf("sales restriction for fare market %d: %w", fm.ID, err)
		}
		if restricted {
			fm.FailCode = models.FailPricingRestrictedByGov
		}
	}
	return nil
}

func surfaceAtFareBreak(fm *models.FareMarket) bool {
	if len(fm.TravelSegs) == 0 {
		return false
	}
	return fm.TravelSegs[0].IsSurface() || fm.TravelSegs[len(fm.TravelSegs)-1].IsSurface()
}

func (p *Pipeline) finderStage(cat Category) func(context.Context, *models.Transaction, *models.FareMarket) error {
	return func(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) error {
		for _, f := range p.finders[cat] {
			if err := checkAborted(ctx, trx); err != nil {
				return err
			}
			trx.Counters.FinderCalls.Add(1)
			res, err := f.FindFares(ctx, trx, fm)
			if err != nil {
				if IsAborted(err) {
					return err
				}
				return fmt.Errorf("%s finder: %w", cat, err)
			}
			fm.AddFares(res.Fares...)
			trx.Counters.FaresCollected.Add(int64(len(res.Fares)))
			if res.FailCode != models.FailNone {
				fm.FailCode = res.FailCode
				return nil
			}
		}
		return nil
	}
}

func (p *Pipeline) validate(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) error {
	if p.c.Validator != nil {
		if err := p.c.Validator.Validate(ctx, trx, fm); err != nil {
			if IsAborted(err) {
				return err
			}
			return fmt.Errorf("rule validation: %w", err)
		}
	}

	var passed, failed int64
	for _, ptf := range fm.AllFares {
		if ptf.IsValid() {
			passed++
		} else {
			failed++
		}
	}
	trx.Counters.RulePassed.Add(passed)
	trx.Counters.RuleFailed.Add(failed)

	fm.SpecialRoutingFound = false
	for _, c := range fm.Corteges {
		for _, ptf := range c.Fares {
			if ptf.IsSpecialRouting() {
				fm.SpecialRoutingFound = true
				return nil
			}
		}
	}
	return nil
}

func (p *Pipeline) selectCurrency(_ context.Context, trx *models.Transaction, fm *models.FareMarket) error {
	if p.c.Currency == nil {
		return nil
	}
	if err := p.c.Currency.SelectCurrency(trx, fm); err != nil {
		return fmt.Errorf("currency selection: %w", err)
	}
	return nil
}

func (p *Pipeline) release(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) error {
	if trx.Options.RoundTheWorld && p.c.Continents != nil {
		applies, err := p.c.Continents.Applies(ctx, trx, fm)
		if err != nil {
			return fmt.Errorf("continent policy: %w", err)
		}
		if applies {
			for _, ptf := range fm.AllFares {
				if p.c.Continents.Disqualified(fm, ptf) {
					ptf.Fare.ContinentFail = true
				}
			}
		}
	}

	if filter := trx.Options.FareFilter; filter != models.FilterNone {
		for _, ptf := range fm.AllFares {
			if !passesFareFilter(filter, ptf) {
				ptf.Fare.SecondaryActionFail = true
			}
		}
	}

	released := fm.Retain((*models.PaxTypeFare).IsValid)
	trx.Counters.FaresReleased.Add(int64(released))

	// Only surviving fares are compared, so an invalid twin never shadows a
	// valid one.
	if (trx.Options.Web && trx.IsMultiItin()) || p.settings.RemoveIdenticalFares {
		if n := removeIdenticalFares(fm); n > 0 {
			p.log.WithComponent("pipeline").ForFareMarket(int(fm.ID)).
				WithField("removed", n).Debug("identical fares removed")
		}
	}

	if len(fm.AllFares) == 0 && fm.FailCode == models.FailNone {
		fm.FailCode = models.FailNoFareForClass
	}
	return nil
}

func passesFareFilter(filter models.FareFilter, ptf *models.PaxTypeFare) bool {
	switch filter {
	case models.FilterNormalOnly:
		return ptf.Fare.Info.Normal
	case models.FilterPublicOnly:
		return ptf.TariffCategory == models.TariffPublic
	case models.FilterPrivateOnly:
		return ptf.TariffCategory == models.TariffPrivate
	}
	return true
}

// fareIdentity is what makes two candidates interchangeable for display.
type fareIdentity struct {
	vendor         string
	carrier        string
	fareClass      string
	tariff         int
	rule           string
	footnotes      string
	currency       string
	amount         float64
	owrt           models.OWRT
	directionality models.Directionality
	paxType        string
	reversed       bool
}

func identityOf(ptf *models.PaxTypeFare) fareIdentity {
	info := ptf.Fare.Info
	return fareIdentity{
		vendor:         info.Vendor,
		carrier:        info.Carrier,
		fareClass:      info.FareClass,
		tariff:         info.Tariff,
		rule:           info.RuleNumber,
		footnotes:      info.Footnotes,
		currency:       info.Currency,
		amount:         ptf.Amount,
		owrt:           info.OWRT,
		directionality: info.Directionality,
		paxType:        ptf.PaxType,
		reversed:       ptf.Reversed,
	}
}

// removeIdenticalFares drops every fare identical to an earlier one in all
// fares, from all fares and the corteges alike.
func removeIdenticalFares(fm *models.FareMarket) int {
	seen := make(map[fareIdentity]struct{}, len(fm.AllFares))
	drop := make(map[*models.PaxTypeFare]struct{})
	for _, ptf := range fm.AllFares {
		id := identityOf(ptf)
		if _, ok := seen[id]; ok {
			drop[ptf] = struct{}{}
			continue
		}
		seen[id] = struct{}{}
	}
	if len(drop) == 0 {
		return 0
	}
	return fm.Retain(func(ptf *models.PaxTypeFare) bool {
		_, ok := drop[ptf]
		return !ok
	})
}

func (p *Pipeline) order(_ context.Context, _ *models.Transaction, fm *models.FareMarket) error {
	if p.c.Comparator == nil {
		return nil
	}
	sortFares(fm.AllFares, p.c.Comparator)
	for _, c := range fm.Corteges {
		sortFares(c.Fares, p.c.Comparator)
	}
	return nil
}

func sortFares(fares []*models.PaxTypeFare, cmp Comparator) {
	sort.SliceStable(fares, func(i, j int) bool {
		return cmp.Compare(fares[i], fares[j]) < 0
	})
}
