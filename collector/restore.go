package collector

import (
	"slices"
	"sort"

	"fareflow/models"
)

// Restore undoes the carrier and brand merge of g once every duplicate has
// its fares. The representative gets its own lists back and the fares of
// every member are reconciled with their market's own lists.
func (p *Propagator) Restore(g *Group) {
	rep := g.Representative()
	mergedVCs := rep.ValidatingCarriers
	mergedBrands := rep.BrandIndices

	rep.ValidatingCarriers = append([]string(nil), g.OrigValidatingCarriers...)
	rep.BrandIndices = append([]int(nil), g.OrigBrands...)

	for _, fm := range g.Members {
		restoreFareCarriers(fm, mergedVCs, fm.ValidatingCarriers)
		restoreFareBrands(fm, mergedBrands, fm.BrandIndices)
	}
}

// restoreFareCarriers narrows each fare's validating carriers to orig. A
// fare left with none fails the sales restriction category.
func restoreFareCarriers(fm *models.FareMarket, merged, orig []string) {
	if slices.Equal(merged, orig) {
		return
	}
	allowed := make(map[string]struct{}, len(orig))
	for _, vc := range orig {
		allowed[vc] = struct{}{}
	}

	for _, ptf := range fm.AllFares {
		if len(ptf.ValidatingCarriers) == 0 {
			continue
		}
		var actual []string
		seen := make(map[string]struct{}, len(ptf.ValidatingCarriers))
		for _, vc := range ptf.ValidatingCarriers {
			if _, ok := allowed[vc]; !ok {
				continue
			}
			if _, dup := seen[vc]; dup {
				continue
			}
			seen[vc] = struct{}{}
			actual = append(actual, vc)
		}
		sort.Strings(actual)
		ptf.ValidatingCarriers = actual
		if len(actual) == 0 {
			ptf.SetCategoryValid(models.CatSalesRestriction, false)
		}
	}
}

// restoreFareBrands moves each fare's brand statuses from the merged brand
// index order to orig. Brands of orig with no merged status fail.
func restoreFareBrands(fm *models.FareMarket, merged, orig []int) {
	if slices.Equal(merged, orig) {
		return
	}
	origPos := make(map[int]int, len(orig))
	for i, b := range orig {
		origPos[b] = i
	}
	toOrig := make([]int, len(merged))
	for i, b := range merged {
		if pos, ok := origPos[b]; ok {
			toOrig[i] = pos
		} else {
			toOrig[i] = -1
		}
	}

	for _, ptf := range fm.AllFares {
		statuses := make([]models.BrandStatus, len(orig))
		for i := range statuses {
			statuses[i] = models.FailedBrand
		}
		for i, st := range ptf.BrandStatuses {
			if i >= len(toOrig) || toOrig[i] < 0 {
				continue
			}
			statuses[toOrig[i]] = st
		}
		ptf.BrandStatuses = statuses
	}
}
