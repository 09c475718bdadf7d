package collector

import (
	"context"
	"fmt"
	"time"

	"fareflow/diag"
	"fareflow/logger"
	"fareflow/models"
)

// Settings are the collector switches read from configuration.
type Settings struct {
	MaxWorkers             int
	SkipFareByRuleForLocal bool
	RemoveIdenticalFares   bool
	AmountDecimals         int32
}

// Collaborators wires the external services used by the pipeline and the
// propagator. A nil optional collaborator disables the step it drives.
type Collaborators struct {
	// Finders run in category order; several finders may share a category.
	Finders    []Finder
	Validator  Validator
	Comparator Comparator
	Currency   CurrencySelector

	// Optional.
	Preferences       CarrierPreferences
	SalesRestrictions SalesRestrictions
	Directions        DirectionResolver
	Continents        ContinentPolicy
	FareByRule        FBRRevalidator
	Negotiated        NegotiatedCheck
	DummyFares        DummyFiller
	Diagnostics       diag.Sink
}

type stage struct {
	name string
	// checkpoint stages observe the abort flag before running.
	checkpoint bool
	applies    func(trx *models.Transaction, fm *models.FareMarket) bool
	run        func(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) error
}

// Pipeline runs the per fare market stages in a fixed order.
type Pipeline struct {
	settings Settings
	finders  map[Category][]Finder
	c        Collaborators
	sink     diag.Sink
	stages   []stage
	log      *logger.Log
}

func NewPipeline(settings Settings, c Collaborators) *Pipeline {
	p := &Pipeline{
		settings: settings,
		finders:  make(map[Category][]Finder),
		c:        c,
		sink:     c.Diagnostics,
		log:      logger.GetLogger(),
	}
	if p.sink == nil {
		p.sink = diag.Discard{}
	}
	for _, f := range c.Finders {
		p.finders[f.Category()] = append(p.finders[f.Category()], f)
	}

	p.stages = []stage{
		{name: "setup", run: p.Setup},
		{name: "addon", checkpoint: true, applies: addonApplies, run: p.finderStage(CategoryAddon)},
		{name: "published", checkpoint: true, applies: publishedApplies, run: p.finderStage(CategoryPublished)},
		{name: "industry", checkpoint: true, applies: industryApplies, run: p.finderStage(CategoryIndustry)},
		{name: "fare_by_rule", checkpoint: true, applies: p.fareByRuleApplies, run: p.finderStage(CategoryFareByRule)},
		{name: "discounted", checkpoint: true, run: p.finderStage(CategoryDiscounted)},
		{name: "negotiated", checkpoint: true, applies: negotiatedApplies, run: p.finderStage(CategoryNegotiated)},
		{name: "validate", checkpoint: true, run: p.validate},
		{name: "currency", applies: currencyApplies, run: p.selectCurrency},
		{name: "release", run: p.release},
		{name: "sort", run: p.order},
	}
	return p
}

// Process runs every stage on fm. A fail code set by any stage skips the
// remaining ones but fm is still marked processed. Aborts and collaborator
// faults are returned and leave fm unprocessed.
func (p *Pipeline) Process(ctx context.Context, trx *models.Transaction, fm *models.FareMarket) error {
	start := time.Now()
	for _, st := range p.stages {
		if fm.FailCode != models.FailNone {
			break
		}
		if st.checkpoint {
			if err := checkAborted(ctx, trx); err != nil {
				return err
			}
		}
		if st.applies != nil && !st.applies(trx, fm) {
			continue
		}
		if err := st.run(ctx, trx, fm); err != nil {
			if IsAborted(err) {
				return err
			}
			return fmt.Errorf("%s stage on fare market %d: %w", st.name, fm.ID, err)
		}
		p.emit(trx, fm, st.name, "")
	}

	fm.SetStatus(models.StatusProcessed)
	p.emit(trx, fm, "processed", "")

	log := p.log.ForTransaction("pipeline", trx.ID, trx.Type.String()).ForFareMarket(int(fm.ID))
	logger.LogPerformanceEntry(log, "pipeline", "process", time.Since(start), logger.Fields{
		"fares":     len(fm.AllFares),
		"fail_code": fm.FailCode.String(),
	})
	return nil
}

func (p *Pipeline) emit(trx *models.Transaction, fm *models.FareMarket, stage, msg string) {
	ev := diag.Event{
		Time:        time.Now(),
		Transaction: trx.ID,
		FareMarket:  int(fm.ID),
		Stage:       stage,
		Message:     msg,
		Fares:       len(fm.AllFares),
	}
	if fm.FailCode != models.FailNone {
		ev.FailCode = fm.FailCode.String()
	}
	p.sink.Emit(ev)
}

func addonApplies(_ *models.Transaction, fm *models.FareMarket) bool {
	return fm.IsInternational() && fm.OriginNation() != fm.DestinationNation()
}

func publishedApplies(_ *models.Transaction, fm *models.FareMarket) bool {
	return fm.GoverningCarrier != models.IndustryCarrier
}

func industryApplies(_ *models.Transaction, fm *models.FareMarket) bool {
	return fm.IsInternational()
}

func (p *Pipeline) fareByRuleApplies(trx *models.Transaction, fm *models.FareMarket) bool {
	if p.settings.SkipFareByRuleForLocal && fm.TravelUnit == models.TravelUnitLocal {
		return false
	}
	return trx.Type != models.TrxRepricing || trx.Options.RetrieveFareByRule
}

func negotiatedApplies(trx *models.Transaction, _ *models.FareMarket) bool {
	return trx.Type != models.TrxRepricing || trx.Options.RetrieveNegotiated
}

func currencyApplies(trx *models.Transaction, fm *models.FareMarket) bool {
	return !trx.Options.MultiCurrencyPricing || fm.GeoTravelType == models.GeoTransborder
}
