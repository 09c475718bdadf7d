package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"fareflow/collector"
	"fareflow/models"
)

// ErrNotFound is returned when a reference record does not exist.
var ErrNotFound = errors.New("record not found")

// CarrierPreference is the carrier preference table.
type CarrierPreference struct {
	ID                   uint   `gorm:"primaryKey"`
	Carrier              string `gorm:"column:carrier;size:3;uniqueIndex"`
	NoSurfaceAtFareBreak bool   `gorm:"column:no_surface_at_fare_break"`
	Alliance             string `gorm:"column:alliance;size:16"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (CarrierPreference) TableName() string {
	return "carrier_preferences"
}

// SalesRestriction forbids selling a carrier's fares in a nation. An empty
// carrier applies to every carrier.
type SalesRestriction struct {
	ID        uint   `gorm:"primaryKey"`
	Carrier   string `gorm:"column:carrier;size:3;index"`
	Nation    string `gorm:"column:nation;size:2;index"`
	Active    bool   `gorm:"column:active"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SalesRestriction) TableName() string {
	return "sales_restrictions"
}

// Open connects to PostgreSQL.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// GormStore serves carrier preferences and sales restrictions from a SQL
// database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the reference tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&CarrierPreference{}, &SalesRestriction{}); err != nil {
		return fmt.Errorf("migrate reference tables: %w", err)
	}
	return nil
}

func (s *GormStore) preferenceQuery(ctx context.Context, carrier string, dst *CarrierPreference) *gorm.DB {
	return s.db.WithContext(ctx).Where("carrier = ?", carrier).First(dst)
}

// CarrierPreference returns the preference record of carrier.
func (s *GormStore) CarrierPreference(ctx context.Context, carrier string) (*CarrierPreference, error) {
	var rec CarrierPreference
	if err := s.preferenceQuery(ctx, carrier, &rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("carrier preference %s: %w", carrier, err)
	}
	return &rec, nil
}

// SavePreference inserts or updates the preference of rec.Carrier.
func (s *GormStore) SavePreference(ctx context.Context, rec *CarrierPreference) error {
	var existing CarrierPreference
	err := s.preferenceQuery(ctx, rec.Carrier, &existing).Error
	switch {
	case err == nil:
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("carrier preference %s: %w", rec.Carrier, err)
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("save carrier preference %s: %w", rec.Carrier, err)
	}
	return nil
}

// Preference implements collector.CarrierPreferences.
func (s *GormStore) Preference(ctx context.Context, carrier string) (collector.CarrierPreference, bool, error) {
	rec, err := s.CarrierPreference(ctx, carrier)
	if errors.Is(err, ErrNotFound) {
		return collector.CarrierPreference{}, false, nil
	}
	if err != nil {
		return collector.CarrierPreference{}, false, err
	}
	return toPreference(rec), true, nil
}

// SaveRestriction inserts a sales restriction.
func (s *GormStore) SaveRestriction(ctx context.Context, r *SalesRestriction) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("save sales restriction %s/%s: %w", r.Carrier, r.Nation, err)
	}
	return nil
}

func (s *GormStore) restrictionQuery(ctx context.Context, fm *models.FareMarket) *gorm.DB {
	return s.db.WithContext(ctx).Model(&SalesRestriction{}).
		Where("active = ?", true).
		Where("carrier IN ?", []string{"", fm.GoverningCarrier}).
		Where("nation IN ?", []string{fm.OriginNation(), fm.DestinationNation()})
}

// Restricted implements collector.SalesRestrictions.
func (s *GormStore) Restricted(ctx context.Context, _ *models.Transaction, fm *models.FareMarket) (bool, error) {
	var n int64
	if err := s.restrictionQuery(ctx, fm).Count(&n).Error; err != nil {
		return false, fmt.Errorf("sales restrictions for %s: %w", fm.GoverningCarrier, err)
	}
	return n > 0, nil
}

func toPreference(rec *CarrierPreference) collector.CarrierPreference {
	return collector.CarrierPreference{
		Carrier:              rec.Carrier,
		NoSurfaceAtFareBreak: rec.NoSurfaceAtFareBreak,
		Alliance:             rec.Alliance,
	}
}

// MemoryStore is an in-process reference data store.
type MemoryStore struct {
	mu           sync.RWMutex
	preferences  map[string]CarrierPreference
	restrictions []SalesRestriction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{preferences: make(map[string]CarrierPreference)}
}

func (m *MemoryStore) SavePreference(_ context.Context, rec *CarrierPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferences[rec.Carrier] = *rec
	return nil
}

func (m *MemoryStore) AddRestriction(r SalesRestriction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restrictions = append(m.restrictions, r)
}

func (m *MemoryStore) SaveRestriction(_ context.Context, r *SalesRestriction) error {
	m.AddRestriction(*r)
	return nil
}

func (m *MemoryStore) CarrierPreference(_ context.Context, carrier string) (*CarrierPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.preferences[carrier]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) Preference(ctx context.Context, carrier string) (collector.CarrierPreference, bool, error) {
	rec, err := m.CarrierPreference(ctx, carrier)
	if errors.Is(err, ErrNotFound) {
		return collector.CarrierPreference{}, false, nil
	}
	if err != nil {
		return collector.CarrierPreference{}, false, err
	}
	return toPreference(rec), true, nil
}

func (m *MemoryStore) Restricted(_ context.Context, _ *models.Transaction, fm *models.FareMarket) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.restrictions {
		if !r.Active {
			continue
		}
		if r.Carrier != "" && r.Carrier != fm.GoverningCarrier {
			continue
		}
		if r.Nation == fm.OriginNation() || r.Nation == fm.DestinationNation() {
			return true, nil
		}
	}
	return false, nil
}

var (
	_ collector.CarrierPreferences = (*GormStore)(nil)
	_ collector.SalesRestrictions  = (*GormStore)(nil)
	_ collector.CarrierPreferences = (*MemoryStore)(nil)
	_ collector.SalesRestrictions  = (*MemoryStore)(nil)
)
