package businessflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/detailing-pricing/models"
	"github.com/amirphl/detailing-pricing/utils"
	"github.com/google/uuid"
)

var errStorageDown = errors.New("storage down")

type passThroughTx struct{}

func (passThroughTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeServiceRepo struct {
	mu      sync.Mutex
	nextID  uint
	rows    []*models.Service
	loadErr error
}

func newFakeServiceRepo() *fakeServiceRepo {
	return &fakeServiceRepo{nextID: 1}
}

func (r *fakeServiceRepo) add(name string, active bool) *models.Service {
	svc := &models.Service{
		UUID:            uuid.New(),
		Name:            name,
		Category:        "general",
		DurationMinutes: 60,
		IsActive:        utils.ToPtr(active),
	}
	_ = r.Save(context.Background(), svc)
	return svc
}

func (r *fakeServiceRepo) ByID(_ context.Context, id uint) (*models.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeServiceRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	for _, s := range r.rows {
		if s.UUID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeServiceRepo) ByName(_ context.Context, name string) (*models.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	for _, s := range r.rows {
		if s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeServiceRepo) ByFilter(_ context.Context, filter models.ServiceFilter, _ string, _, _ int) ([]*models.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	var out []*models.Service
	for _, s := range r.rows {
		if filter.IsActive != nil && utils.IsTrue(s.IsActive) != *filter.IsActive {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeServiceRepo) Save(_ context.Context, svc *models.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc.ID = r.nextID
	r.nextID++
	cp := *svc
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeServiceRepo) SaveBatch(ctx context.Context, rows []*models.Service) error {
	for _, s := range rows {
		if err := r.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeServiceRepo) Count(ctx context.Context, filter models.ServiceFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *fakeServiceRepo) Exists(ctx context.Context, filter models.ServiceFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

// fakePricingRepo stores copies so that only Save/Update change persisted state
type fakePricingRepo struct {
	mu        sync.Mutex
	nextID    uint
	rows      []*models.DynamicPricing
	loadErr   error
	updateErr error
	loads     int
}

func newFakePricingRepo() *fakePricingRepo {
	return &fakePricingRepo{nextID: 1}
}

func (r *fakePricingRepo) ByID(_ context.Context, id uint) (*models.DynamicPricing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakePricingRepo) ActiveByServiceUUID(_ context.Context, id uuid.UUID, _ bool) (*models.DynamicPricing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	for _, p := range r.rows {
		if p.ServiceUUID == id && utils.IsTrue(p.IsActive) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakePricingRepo) ListActive(ctx context.Context) ([]*models.DynamicPricing, error) {
	return r.ByFilter(ctx, models.DynamicPricingFilter{IsActive: utils.ToPtr(true)}, "", 0, 0)
}

func (r *fakePricingRepo) ByFilter(_ context.Context, filter models.DynamicPricingFilter, _ string, _, _ int) ([]*models.DynamicPricing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	var out []*models.DynamicPricing
	for _, p := range r.rows {
		if filter.IsActive != nil && utils.IsTrue(p.IsActive) != *filter.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakePricingRepo) Save(_ context.Context, p *models.DynamicPricing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID
	r.nextID++
	cp := *p
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakePricingRepo) SaveBatch(ctx context.Context, rows []*models.DynamicPricing) error {
	for _, p := range rows {
		if err := r.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakePricingRepo) Update(_ context.Context, p *models.DynamicPricing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	for i, row := range r.rows {
		if row.ID == p.ID {
			cp := *p
			r.rows[i] = &cp
			return nil
		}
	}
	return errors.New("record not found")
}

func (r *fakePricingRepo) Count(ctx context.Context, filter models.DynamicPricingFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *fakePricingRepo) Exists(ctx context.Context, filter models.DynamicPricingFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakePricingRepo) stored(serviceID uuid.UUID) *models.DynamicPricing {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.ServiceUUID == serviceID && utils.IsTrue(p.IsActive) {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (r *fakePricingRepo) loadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	nextID  uint
	rows    []*models.PriceHistoryEntry
	saveErr error
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{nextID: 1}
}

func (r *fakeHistoryRepo) ByID(_ context.Context, id uint) (*models.PriceHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.rows {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeHistoryRepo) ByFilter(_ context.Context, filter models.PriceHistoryEntryFilter, _ string, _, _ int) ([]*models.PriceHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PriceHistoryEntry
	for _, e := range r.rows {
		if filter.PricingID != nil && e.PricingID != *filter.PricingID {
			continue
		}
		if filter.RecordedAfter != nil && e.RecordedAt.Before(*filter.RecordedAfter) {
			continue
		}
		if filter.RecordedBefore != nil && e.RecordedAt.After(*filter.RecordedBefore) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

func (r *fakeHistoryRepo) ListByPricing(ctx context.Context, pricingID uint, from, to *time.Time) ([]*models.PriceHistoryEntry, error) {
	return r.ByFilter(ctx, models.PriceHistoryEntryFilter{PricingID: &pricingID, RecordedAfter: from, RecordedBefore: to}, "", 0, 0)
}

func (r *fakeHistoryRepo) Prune(ctx context.Context, pricingID uint, keepLatest int, olderThan *time.Time) (int64, error) {
	ordered, _ := r.ListByPricing(ctx, pricingID, nil, nil)

	drop := make(map[uint]bool)
	if olderThan != nil {
		for _, e := range ordered {
			if e.RecordedAt.Before(*olderThan) {
				drop[e.ID] = true
			}
		}
	}
	if keepLatest > 0 && len(ordered) > keepLatest {
		for _, e := range ordered[:len(ordered)-keepLatest] {
			drop[e.ID] = true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, e := range r.rows {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	r.rows = kept
	return int64(len(drop)), nil
}

func (r *fakeHistoryRepo) Save(_ context.Context, e *models.PriceHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	e.ID = r.nextID
	r.nextID++
	cp := *e
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *fakeHistoryRepo) SaveBatch(ctx context.Context, rows []*models.PriceHistoryEntry) error {
	for _, e := range rows {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeHistoryRepo) Count(ctx context.Context, filter models.PriceHistoryEntryFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *fakeHistoryRepo) Exists(ctx context.Context, filter models.PriceHistoryEntryFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

// recordingCache is a map-backed PriceCache that counts invalidations
type recordingCache struct {
	mu            sync.Mutex
	entries       map[string]*models.DynamicPricing
	invalidations map[string]int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		entries:       make(map[string]*models.DynamicPricing),
		invalidations: make(map[string]int),
	}
}

func (c *recordingCache) Get(_ context.Context, serviceID string) (*models.DynamicPricing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[serviceID]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (c *recordingCache) Set(_ context.Context, p *models.DynamicPricing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *p
	c.entries[p.ServiceUUID.String()] = &cp
}

func (c *recordingCache) Invalidate(_ context.Context, serviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, serviceID)
	c.invalidations[serviceID]++
}

func (c *recordingCache) invalidated(serviceID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations[serviceID]
}
