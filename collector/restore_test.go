package collector

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"fareflow/models"
)

func group(t *testing.T, rep, dup *models.FareMarket) (*models.Transaction, *Group) {
	t.Helper()
	trx := newTrx(models.TrxMultiItin, rep, dup)
	reg := BuildRegistry(trx)
	groups := reg.DuplicateGroups()
	if len(groups) != 1 {
		t.Fatalf("expected one duplicate group, got %d", len(groups))
	}
	return trx, groups[0]
}

func TestRestoreNarrowsValidatingCarriers(t *testing.T) {
	rep := market("JFK", "LHR", "BA", 3451)
	rep.ValidatingCarriers = []string{"AA"}
	dup := market("JFK", "LHR", "BA", 3451)
	dup.ValidatingCarriers = []string{"BA"}
	trx, g := group(t, rep, dup)
	if diff := cmp.Diff([]string{"AA", "BA"}, rep.ValidatingCarriers); diff != "" {
		t.Fatalf("merged carriers mismatch (-want +got):\n%s", diff)
	}

	both := fare("BA", "Y", 450)
	both.ValidatingCarriers = []string{"BA", "AA"}
	baOnly := fare("BA", "B", 300)
	baOnly.ValidatingCarriers = []string{"BA"}
	open := fare("BA", "M", 200)
	rep.AddFares(both, baOnly, open)

	p := NewPropagator(Settings{}, Collaborators{})
	if err := p.CopyToAll(context.Background(), trx, rep, g.Duplicates()); err != nil {
		t.Fatalf("copy: %v", err)
	}
	p.Restore(g)

	if diff := cmp.Diff([]string{"AA"}, rep.ValidatingCarriers); diff != "" {
		t.Fatalf("representative carriers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"AA"}, both.ValidatingCarriers); diff != "" {
		t.Fatalf("representative fare carriers mismatch (-want +got):\n%s", diff)
	}
	if len(baOnly.ValidatingCarriers) != 0 || baOnly.CategoryValid(models.CatSalesRestriction) {
		t.Fatal("a representative fare left without carriers fails its sales restriction")
	}
	if !open.CategoryValid(models.CatSalesRestriction) || len(open.ValidatingCarriers) != 0 {
		t.Fatal("fares without carriers are left alone")
	}

	for _, ptf := range dup.AllFares {
		if ptf.ValidatingCarriers == nil {
			continue
		}
		if diff := cmp.Diff([]string{"BA"}, ptf.ValidatingCarriers); diff != "" {
			t.Fatalf("duplicate fare %s carriers mismatch (-want +got):\n%s", ptf.FareClass(), diff)
		}
		if !ptf.CategoryValid(models.CatSalesRestriction) {
			t.Fatalf("duplicate fare %s should stay valid", ptf.FareClass())
		}
	}
}

func TestRestoreRemapsBrandStatuses(t *testing.T) {
	hard := models.BrandStatus{State: models.BrandHardPass, Direction: models.BrandBothWays}
	soft := models.BrandStatus{State: models.BrandSoftPass, Direction: models.BrandBothWays}
	original := models.BrandStatus{State: models.BrandHardPass, Direction: models.BrandOriginal}

	rep := market("JFK", "LHR", "BA", 3451)
	rep.BrandIndices = []int{1, 2}
	dup := market("JFK", "LHR", "BA", 3451)
	dup.BrandIndices = []int{2, 3}
	trx, g := group(t, rep, dup)

	full := fare("BA", "Y", 450)
	full.BrandStatuses = []models.BrandStatus{hard, soft, original}
	short := fare("BA", "B", 300)
	short.BrandStatuses = []models.BrandStatus{hard}
	rep.AddFares(full, short)

	p := NewPropagator(Settings{}, Collaborators{})
	if err := p.CopyToAll(context.Background(), trx, rep, g.Duplicates()); err != nil {
		t.Fatalf("copy: %v", err)
	}
	p.Restore(g)

	if diff := cmp.Diff([]int{1, 2}, rep.BrandIndices); diff != "" {
		t.Fatalf("representative brands mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 3}, dup.BrandIndices); diff != "" {
		t.Fatalf("duplicate brands mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name string
		got  []models.BrandStatus
		want []models.BrandStatus
	}{
		{"representative full", full.BrandStatuses, []models.BrandStatus{hard, soft}},
		{"representative short", short.BrandStatuses, []models.BrandStatus{hard, models.FailedBrand}},
		{"duplicate full", dup.AllFares[0].BrandStatuses, []models.BrandStatus{soft, original}},
		{"duplicate short", dup.AllFares[1].BrandStatuses, []models.BrandStatus{models.FailedBrand, models.FailedBrand}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, tt.got); diff != "" {
			t.Errorf("%s brand statuses mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}

func TestRestoreLeavesUnmergedListsAlone(t *testing.T) {
	rep := market("JFK", "LHR", "BA", 3451)
	rep.ValidatingCarriers = []string{"BA"}
	rep.BrandIndices = []int{1}
	dup := market("JFK", "LHR", "BA", 3451)
	dup.ValidatingCarriers = []string{"BA"}
	dup.BrandIndices = []int{1}
	trx, g := group(t, rep, dup)

	ptf := fare("BA", "Y", 450)
	ptf.ValidatingCarriers = []string{"IB", "BA"}
	ptf.BrandStatuses = []models.BrandStatus{{State: models.BrandSoftPass}}
	rep.AddFares(ptf)

	p := NewPropagator(Settings{}, Collaborators{})
	if err := p.CopyToAll(context.Background(), trx, rep, g.Duplicates()); err != nil {
		t.Fatalf("copy: %v", err)
	}
	p.Restore(g)

	if diff := cmp.Diff([]string{"IB", "BA"}, ptf.ValidatingCarriers); diff != "" {
		t.Fatalf("carriers must be untouched when nothing was merged (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]models.BrandStatus{{State: models.BrandSoftPass}}, ptf.BrandStatuses); diff != "" {
		t.Fatalf("brand statuses must be untouched (-want +got):\n%s", diff)
	}
}
