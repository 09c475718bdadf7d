package fixture

import (
	"fmt"
	"sort"
	"strings"

	"fareflow/collector"
	"fareflow/models"
)

// The empty name selects the default of every table.
var (
	transactionTypes = map[string]models.TransactionType{
		"":           models.TrxPricing,
		"pricing":    models.TrxPricing,
		"multi_itin": models.TrxMultiItin,
		"repricing":  models.TrxRepricing,
	}
	fareFilters = map[string]models.FareFilter{
		"":        models.FilterNone,
		"none":    models.FilterNone,
		"normal":  models.FilterNormalOnly,
		"public":  models.FilterPublicOnly,
		"private": models.FilterPrivateOnly,
	}
	segmentTypes = map[string]models.SegmentType{
		"":        models.SegmentAir,
		"air":     models.SegmentAir,
		"surface": models.SegmentSurface,
		"arunk":   models.SegmentArunk,
	}
	geoTravelTypes = map[string]models.GeoTravelType{
		"":                 models.GeoUnknown,
		"domestic":         models.GeoDomestic,
		"international":    models.GeoInternational,
		"transborder":      models.GeoTransborder,
		"foreign_domestic": models.GeoForeignDomestic,
	}
	travelUnits = map[string]models.TravelUnit{
		"":      models.TravelUnitThru,
		"thru":  models.TravelUnitThru,
		"local": models.TravelUnitLocal,
	}
	categories = map[string]collector.Category{
		"":             collector.CategoryPublished,
		"addon":        collector.CategoryAddon,
		"published":    collector.CategoryPublished,
		"industry":     collector.CategoryIndustry,
		"fare_by_rule": collector.CategoryFareByRule,
		"discounted":   collector.CategoryDiscounted,
		"negotiated":   collector.CategoryNegotiated,
	}
	directionalities = map[string]models.Directionality{
		"":     models.DirectionBoth,
		"both": models.DirectionBoth,
		"from": models.DirectionFrom,
		"to":   models.DirectionTo,
	}
	fbrIndicators = map[string]models.FareByRuleIndicator{
		"":           models.FareByRuleCalculated,
		"calculated": models.FareByRuleCalculated,
		"specified":  models.FareByRuleSpecified,
	}
	brandStates = map[string]models.BrandState{
		"":     models.BrandFail,
		"fail": models.BrandFail,
		"soft": models.BrandSoftPass,
		"hard": models.BrandHardPass,
	}
	brandDirections = map[string]models.BrandDirection{
		"":         models.BrandBothWays,
		"both":     models.BrandBothWays,
		"original": models.BrandOriginal,
		"reversed": models.BrandReversed,
	}
)

func lookup[T any](what string, table map[string]T, name string) (T, error) {
	v, ok := table[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		var zero T
		names := make([]string, 0, len(table))
		for k := range table {
			if k != "" {
				names = append(names, k)
			}
		}
		sort.Strings(names)
		return zero, fmt.Errorf("unknown %s %q (want one of %s)", what, name, strings.Join(names, ", "))
	}
	return v, nil
}
