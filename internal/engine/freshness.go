package engine

import (
	"context"
	"fmt"
	"time"

	"lumia-advisor/internal/repository"
)

// SignalCoverage reports how much of the active universe carries a recent
// signal.
type SignalCoverage struct {
	AssetsWithSignals  int64   `json:"assets_with_signals"`
	TotalActiveAssets  int64   `json:"total_active_assets"`
	CoveragePercentage float64 `json:"coverage_percentage"`
}

// FreshnessStatus summarizes whether the signal and price stores are
// current enough to recommend from. Warnings accumulate, IsFresh flips
// only on the hard thresholds.
type FreshnessStatus struct {
	IsFresh       bool           `json:"is_fresh"`
	SignalAgeDays *int           `json:"signal_age_days"`
	PriceAgeDays  *int           `json:"price_age_days"`
	Coverage      SignalCoverage `json:"coverage"`
	Warnings      []string       `json:"warnings"`
	CheckedAt     time.Time      `json:"checked_at"`
}

// FreshnessChecker validates data recency before portfolio construction.
// Signals older than three days warn, older than seven mark the data
// stale. Coverage under half the universe warns, under a fifth is stale.
// Price history more than five days old warns.
type FreshnessChecker struct {
	assets  repository.AssetRepository
	prices  repository.DailyPriceRepository
	signals repository.DailySignalRepository
}

func NewFreshnessChecker(
	assets repository.AssetRepository,
	prices repository.DailyPriceRepository,
	signals repository.DailySignalRepository,
) *FreshnessChecker {
	return &FreshnessChecker{assets: assets, prices: prices, signals: signals}
}

func (f *FreshnessChecker) Check(ctx context.Context) (*FreshnessStatus, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	status := &FreshnessStatus{
		IsFresh:   true,
		Warnings:  []string{},
		CheckedAt: time.Now().UTC(),
	}

	latestSignal, err := f.signals.GetLatestDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("check signal age: %w", err)
	}
	if latestSignal == nil {
		status.Warnings = append(status.Warnings, "no signal data found")
		status.IsFresh = false
	} else {
		age := int(now.Sub(latestSignal.Truncate(24*time.Hour)).Hours() / 24)
		status.SignalAgeDays = &age
		if age > 3 {
			status.Warnings = append(status.Warnings, fmt.Sprintf("latest signals are %d days old", age))
			if age > 7 {
				status.IsFresh = false
			}
		}
	}

	weekAgo := now.AddDate(0, 0, -7)
	withSignals, err := f.signals.CountDistinctAssetsSince(ctx, weekAgo)
	if err != nil {
		return nil, fmt.Errorf("check signal coverage: %w", err)
	}
	active, err := f.assets.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active assets: %w", err)
	}
	totalActive := int64(len(active))
	var coveragePct float64
	if totalActive > 0 {
		coveragePct = float64(withSignals) / float64(totalActive) * 100
	}
	status.Coverage = SignalCoverage{
		AssetsWithSignals:  withSignals,
		TotalActiveAssets:  totalActive,
		CoveragePercentage: coveragePct,
	}
	if coveragePct < 50 {
		status.Warnings = append(status.Warnings, fmt.Sprintf("low signal coverage: %.1f%% of assets", coveragePct))
		if coveragePct < 20 {
			status.IsFresh = false
		}
	}

	latestPrice, err := f.prices.GetLatestDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("check price age: %w", err)
	}
	if latestPrice != nil {
		age := int(now.Sub(latestPrice.Truncate(24*time.Hour)).Hours() / 24)
		status.PriceAgeDays = &age
		if age > 5 {
			status.Warnings = append(status.Warnings, fmt.Sprintf("price data is %d days old", age))
		}
	}

	return status, nil
}
