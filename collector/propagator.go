package collector

import (
	"context"
	"time"

	"fareflow/logger"
	"fareflow/models"
)

// Propagator clones the fares computed for a representative into its
// duplicate markets.
type Propagator struct {
	fbr        FBRRevalidator
	negotiated NegotiatedCheck
	decimals   int32
	log        *logger.Log
}

func NewPropagator(settings Settings, c Collaborators) *Propagator {
	return &Propagator{
		fbr:        c.FareByRule,
		negotiated: c.Negotiated,
		decimals:   settings.AmountDecimals,
		log:        logger.GetLogger(),
	}
}

// cloneMemo maps every representative object to its clone in one duplicate.
type cloneMemo struct {
	fares map[*models.Fare]*models.Fare
	ptfs  map[*models.PaxTypeFare]*models.PaxTypeFare
}

func newCloneMemo() *cloneMemo {
	return &cloneMemo{
		fares: make(map[*models.Fare]*models.Fare),
		ptfs:  make(map[*models.PaxTypeFare]*models.PaxTypeFare),
	}
}

// copyContext is the fixed input of one representative to duplicate copy.
type copyContext struct {
	trx        *models.Transaction
	dup        *models.FareMarket
	memo       *cloneMemo
	seats      int
	srcMileage int
	dstMileage int
	eligible   map[*models.PaxTypeFare]struct{}
}

// CopyToAll copies rep into every market of dups in order, then revalidates
// the representative's own fares against its own constraints. Data access
// collaborators run without worker local caches for the duration.
func (p *Propagator) CopyToAll(ctx context.Context, trx *models.Transaction, rep *models.FareMarket, dups []*models.FareMarket) error {
	restore := trx.DataCacheLocal.Set(false)
	defer restore()

	if len(rep.AllFares) == 0 {
		for _, dup := range dups {
			dup.FailCode = rep.FailCode
		}
		return nil
	}

	start := time.Now()
	eligible := p.eligibleNegotiated(trx, rep)
	cloned := 0
	for _, dup := range dups {
		if err := checkAborted(ctx, trx); err != nil {
			return err
		}
		cloned += p.copyTo(&copyContext{
			trx:        trx,
			dup:        dup,
			memo:       newCloneMemo(),
			seats:      trx.TotalSeats(),
			srcMileage: rep.Mileage(),
			dstMileage: dup.Mileage(),
			eligible:   eligible,
		}, rep)
	}
	trx.Counters.FaresCloned.Add(int64(cloned))

	p.revalidate(trx, rep, eligible)

	logger.LogDataFlowEntry(p.log.WithComponent("propagator"), "representative", "duplicates", cloned, "pax_type_fare")
	logger.LogPerformanceEntry(p.log.WithComponent("propagator"), "propagator", "copy_to_all", time.Since(start), logger.Fields{
		"trx_id":         trx.ID,
		"representative": rep.ID,
		"duplicates":     len(dups),
	})
	return nil
}

// eligibleNegotiated returns the negotiated fares of rep that may be ticketed
// on its owning itinerary. A nil set means no negotiated fare is excluded,
// which is the case unless rep belongs to exactly one itinerary.
func (p *Propagator) eligibleNegotiated(trx *models.Transaction, rep *models.FareMarket) map[*models.PaxTypeFare]struct{} {
	if p.negotiated == nil || len(rep.Itineraries) != 1 {
		return nil
	}
	itin := trx.Itinerary(rep.Itineraries[0])
	if itin == nil {
		return nil
	}
	eligible := make(map[*models.PaxTypeFare]struct{})
	for _, ptf := range rep.AllFares {
		if ptf.IsNegotiated() && p.negotiated.Eligible(rep, itin, ptf) {
			eligible[ptf] = struct{}{}
		}
	}
	return eligible
}

// excludedOutbound reports whether a market removing outbound fares must
// drop ptf.
func excludedOutbound(removeOutbound bool, ptf *models.PaxTypeFare) bool {
	if !removeOutbound {
		return false
	}
	dir := ptf.Directionality()
	return (!ptf.Reversed && dir == models.DirectionFrom) || (ptf.Reversed && dir == models.DirectionTo)
}

func (p *Propagator) keep(cc *copyContext, ptf *models.PaxTypeFare) bool {
	if excludedOutbound(cc.dup.RemoveOutboundFares, ptf) {
		return false
	}
	if ptf.IsFareByRule() && p.fbr != nil && !p.fbr.Revalidate(ptf, cc.seats, cc.dup) {
		return false
	}
	if ptf.IsNegotiated() && cc.eligible != nil {
		if _, ok := cc.eligible[ptf]; !ok {
			return false
		}
	}
	return true
}

// copyTo replaces the fares of cc.dup with clones of rep's fares and returns
// how many fares were cloned.
func (p *Propagator) copyTo(cc *copyContext, rep *models.FareMarket) int {
	dup := cc.dup
	dup.FailCode = rep.FailCode
	dup.SpecialRoutingFound = rep.SpecialRoutingFound

	dup.AllFares = nil
	for _, ptf := range rep.AllFares {
		if !p.keep(cc, ptf) {
			continue
		}
		dup.AllFares = append(dup.AllFares, p.clonePaxTypeFare(cc, ptf))
	}

	for _, c := range rep.Corteges {
		dc := dup.Cortege(c.PaxType)
		if dc == nil {
			continue
		}
		dc.InboundCurrency = c.InboundCurrency
		dc.OutboundCurrency = c.OutboundCurrency
		dc.Fares = nil
		for _, ptf := range c.Fares {
			if !p.keep(cc, ptf) {
				continue
			}
			dc.Fares = append(dc.Fares, p.clonePaxTypeFare(cc, ptf))
		}
	}

	p.log.WithComponent("propagator").WithFields(logger.Fields{
		"representative": rep.ID,
		"duplicate":      dup.ID,
		"fares":          len(dup.AllFares),
		"cloned":         len(cc.memo.ptfs),
	}).Debug("fare market copied")
	return len(cc.memo.ptfs)
}

func (p *Propagator) clonePaxTypeFare(cc *copyContext, ptf *models.PaxTypeFare) *models.PaxTypeFare {
	if c, ok := cc.memo.ptfs[ptf]; ok {
		return c
	}

	fare, ok := cc.memo.fares[ptf.Fare]
	if !ok {
		fare = ptf.Fare.Clone()
		cc.memo.fares[ptf.Fare] = fare
	}

	c := ptf.Clone()
	c.Fare = fare
	c.FareMarket = cc.dup.ID
	// registered before the rule data so base fare cycles resolve to c
	cc.memo.ptfs[ptf] = c

	if ptf.RuleData != nil {
		c.RuleData = make(map[int]*models.AllRuleData, len(ptf.RuleData))
		for cat, all := range ptf.RuleData {
			if all == nil {
				continue
			}
			c.RuleData[cat] = &models.AllRuleData{
				FareRule:    p.cloneRuleData(cc, all.FareRule),
				GeneralRule: p.cloneRuleData(cc, all.GeneralRule),
			}
		}
	}

	if c.IsFareByRule() && cc.srcMileage != cc.dstMileage && c.FareByRule.Indicator == models.FareByRuleSpecified {
		ApplySpecifiedAmount(cc.trx, c, cc.dstMileage, p.decimals)
	}
	return c
}

func (p *Propagator) cloneRuleData(cc *copyContext, rd *models.RuleData) *models.RuleData {
	if rd == nil {
		return nil
	}
	c := rd.Clone()
	if rd.BaseFare != nil {
		c.BaseFare = p.clonePaxTypeFare(cc, rd.BaseFare)
	}
	return c
}

// revalidate marks the representative's own fares that its own market
// constraints rule out. Nothing is removed here; the markings are honoured
// by later pricing phases.
func (p *Propagator) revalidate(trx *models.Transaction, rep *models.FareMarket, eligible map[*models.PaxTypeFare]struct{}) {
	seats := trx.TotalSeats()
	mark := func(ptf *models.PaxTypeFare) {
		if excludedOutbound(rep.RemoveOutboundFares, ptf) {
			ptf.Fare.DirectionalityFail = true
		}
		if ptf.IsFareByRule() && p.fbr != nil && !p.fbr.Revalidate(ptf, seats, rep) {
			ptf.SetCategoryValid(models.CatFareByRule, false)
		}
		if ptf.IsNegotiated() && eligible != nil {
			if _, ok := eligible[ptf]; !ok {
				ptf.SetCategoryValid(models.CatNegotiated, false)
			}
		}
	}

	for _, ptf := range rep.AllFares {
		mark(ptf)
	}
	for _, c := range rep.Corteges {
		for _, ptf := range c.Fares {
			mark(ptf)
		}
	}
}
