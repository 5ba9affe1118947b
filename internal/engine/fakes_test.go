package engine

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"lumia-advisor/internal/entity"
	"lumia-advisor/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "console")
	if err != nil {
		t.Fatalf("create test logger: %v", err)
	}
	return log
}

type fakeAssetRepo struct {
	assets []entity.Asset
}

func (f *fakeAssetRepo) GetBySymbol(_ context.Context, symbol string) (*entity.Asset, error) {
	for i := range f.assets {
		if f.assets[i].Symbol == symbol {
			return &f.assets[i], nil
		}
	}
	return nil, nil
}

func (f *fakeAssetRepo) GetByIDs(_ context.Context, ids []uint) ([]entity.Asset, error) {
	want := make(map[uint]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []entity.Asset
	for _, a := range f.assets {
		if want[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssetRepo) FindActive(_ context.Context) ([]entity.Asset, error) {
	var out []entity.Asset
	for _, a := range f.assets {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakePriceRepo struct {
	bars       map[uint][]entity.DailyPrice
	panicArmed bool
}

func (f *fakePriceRepo) FindByAssetUpTo(_ context.Context, assetID uint, date time.Time, limit int) ([]entity.DailyPrice, error) {
	if f.panicArmed {
		panic("simulated price store failure")
	}
	var out []entity.DailyPrice
	for _, b := range f.bars[assetID] {
		if !b.Date.After(date) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakePriceRepo) GetLatestDate(_ context.Context) (*time.Time, error) {
	var latest *time.Time
	for _, bars := range f.bars {
		for _, b := range bars {
			if latest == nil || b.Date.After(*latest) {
				d := b.Date
				latest = &d
			}
		}
	}
	return latest, nil
}

type fakeFundamentalRepo struct {
	rows map[uint][]entity.QuarterlyFundamental
}

func (f *fakeFundamentalRepo) GetLatest(_ context.Context, assetID uint, asOf time.Time) (*entity.QuarterlyFundamental, error) {
	var latest *entity.QuarterlyFundamental
	for i := range f.rows[assetID] {
		row := &f.rows[assetID][i]
		if row.ReportDate.After(asOf) {
			continue
		}
		if latest == nil || row.ReportDate.After(latest.ReportDate) {
			latest = row
		}
	}
	return latest, nil
}

type fakeNewsRepo struct {
	items map[uint][]entity.NewsSentiment
}

func (f *fakeNewsRepo) FindByAssetBetween(_ context.Context, assetID uint, from, to time.Time) ([]entity.NewsSentiment, error) {
	var out []entity.NewsSentiment
	for _, item := range f.items[assetID] {
		if !item.PublishedAt.Before(from) && item.PublishedAt.Before(to) {
			out = append(out, item)
		}
	}
	return out, nil
}

type fakeSignalRepo struct {
	rows    map[string]*entity.AssetDailySignal
	upserts int
}

func newFakeSignalRepo() *fakeSignalRepo {
	return &fakeSignalRepo{rows: make(map[string]*entity.AssetDailySignal)}
}

func signalKey(assetID uint, date time.Time) string {
	return fmt.Sprintf("%d|%s", assetID, date.Format("2006-01-02"))
}

func (f *fakeSignalRepo) GetByAssetAndDate(_ context.Context, assetID uint, date time.Time) (*entity.AssetDailySignal, error) {
	row, ok := f.rows[signalKey(assetID, date)]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (f *fakeSignalRepo) Upsert(_ context.Context, signal *entity.AssetDailySignal) error {
	f.upserts++
	copied := *signal
	f.rows[signalKey(signal.AssetID, signal.Date)] = &copied
	return nil
}

func (f *fakeSignalRepo) FindLatestPerAssetSince(_ context.Context, since time.Time) ([]entity.AssetDailySignal, error) {
	latest := make(map[uint]*entity.AssetDailySignal)
	for _, row := range f.rows {
		if row.Date.Before(since) {
			continue
		}
		if cur, ok := latest[row.AssetID]; !ok || row.Date.After(cur.Date) {
			latest[row.AssetID] = row
		}
	}
	ids := make([]uint, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]entity.AssetDailySignal, 0, len(ids))
	for _, id := range ids {
		out = append(out, *latest[id])
	}
	return out, nil
}

func (f *fakeSignalRepo) GetLatestDate(_ context.Context) (*time.Time, error) {
	var latest *time.Time
	for _, row := range f.rows {
		if latest == nil || row.Date.After(*latest) {
			d := row.Date
			latest = &d
		}
	}
	return latest, nil
}

func (f *fakeSignalRepo) CountDistinctAssetsSince(_ context.Context, since time.Time) (int64, error) {
	seen := make(map[uint]bool)
	for _, row := range f.rows {
		if !row.Date.Before(since) {
			seen[row.AssetID] = true
		}
	}
	return int64(len(seen)), nil
}

func floatPtr(v float64) *float64 {
	return &v
}
