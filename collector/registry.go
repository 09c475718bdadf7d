package collector

import (
	"fareflow/logger"
	"fareflow/models"
)

// Group is every fare market registered under one key. Members[0] is the
// representative; the Orig fields are its lists captured before any
// duplicate was merged in.
type Group struct {
	Key                    Key
	Members                []*models.FareMarket
	OrigValidatingCarriers []string
	OrigBrands             []int
}

func (g *Group) Representative() *models.FareMarket { return g.Members[0] }

func (g *Group) Duplicates() []*models.FareMarket { return g.Members[1:] }

// Registry maps equivalence keys to their fare markets. It is built on one
// goroutine before execution starts and only read afterwards.
type Registry struct {
	groups []*Group
	byKey  map[Key]*Group
	log    *logger.Log
}

func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[Key]*Group),
		log:   logger.GetLogger(),
	}
}

// Eligible reports whether fm still needs its fares computed.
func Eligible(fm *models.FareMarket) bool {
	return !fm.Processed() &&
		fm.FailCode == models.FailNone &&
		!fm.UseDummyFare &&
		len(fm.AllFares) == 0
}

// Register files fm under key and reports whether it was taken. The first
// market of a key becomes its representative; later ones are marked
// duplicates and their carrier and brand lists are merged into the
// representative.
func (r *Registry) Register(key Key, fm *models.FareMarket) bool {
	if !Eligible(fm) {
		return false
	}

	g, ok := r.byKey[key]
	if !ok {
		g = &Group{
			Key:                    key,
			Members:                []*models.FareMarket{fm},
			OrigValidatingCarriers: append([]string(nil), fm.ValidatingCarriers...),
			OrigBrands:             append([]int(nil), fm.BrandIndices...),
		}
		r.byKey[key] = g
		r.groups = append(r.groups, g)
		return true
	}

	rep := g.Representative()
	fm.FailCode = models.FailDuplicate
	rep.SetStatus(models.StatusHasDuplicates)
	rep.ValidatingCarriers = unionStrings(rep.ValidatingCarriers, fm.ValidatingCarriers)
	rep.BrandIndices = unionInts(rep.BrandIndices, fm.BrandIndices)
	g.Members = append(g.Members, fm)

	r.log.WithComponent("registry").WithFields(logger.Fields{
		"key":            string(key),
		"representative": rep.ID,
		"duplicate":      fm.ID,
	}).Debug("duplicate fare market registered")
	return true
}

// Groups returns every group in first registration order.
func (r *Registry) Groups() []*Group { return r.groups }

// Representatives returns the first market of every group.
func (r *Registry) Representatives() []*models.FareMarket {
	out := make([]*models.FareMarket, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g.Representative())
	}
	return out
}

// DuplicateGroups returns the groups holding more than one market.
func (r *Registry) DuplicateGroups() []*Group {
	var out []*Group
	for _, g := range r.groups {
		if len(g.Members) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// Lookup returns the group registered under key.
func (r *Registry) Lookup(key Key) (*Group, bool) {
	g, ok := r.byKey[key]
	return g, ok
}

// unionStrings returns a new slice holding dst followed by the members of
// src not already present.
func unionStrings(dst, src []string) []string {
	dst = append([]string(nil), dst...)
	seen := make(map[string]struct{}, len(dst)+len(src))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range src {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}

func unionInts(dst, src []int) []int {
	dst = append([]int(nil), dst...)
	seen := make(map[int]struct{}, len(dst)+len(src))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range src {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
