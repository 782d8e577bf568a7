package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/patrickwarner/billboardserve/internal/models"
)

// BillboardSource supplies the stored billboards. *Postgres implements it.
type BillboardSource interface {
	LoadBillboards(ctx context.Context) ([]models.Billboard, error)
}

// SegmentSource supplies audience segment memberships. *Postgres implements it.
type SegmentSource interface {
	LoadSegmentMemberships(ctx context.Context) (map[int][]int, error)
}

// ReloadResult summarizes one snapshot reload.
type ReloadResult struct {
	Loaded   int `json:"loaded"`
	Rejected int `json:"rejected"`
	Segments int `json:"segments"`
}

// Init loads billboards from src, validates them and replaces the snapshot in
// store. Billboards failing validation are logged and left out rather than
// failing the whole load.
func Init(ctx context.Context, src BillboardSource, store models.BillboardStore) (ReloadResult, error) {
	billboards, err := src.LoadBillboards(ctx)
	if err != nil {
		return ReloadResult{}, fmt.Errorf("load billboards: %w", err)
	}

	valid := make([]models.Billboard, 0, len(billboards))
	var res ReloadResult
	for i := range billboards {
		b := billboards[i]
		if err := b.Validate(); err != nil {
			zap.L().Warn("skipping invalid billboard", zap.Int("billboard_id", b.ID), zap.Error(err))
			res.Rejected++
			continue
		}
		valid = append(valid, b)
	}
	if err := store.ReloadAll(valid); err != nil {
		return ReloadResult{}, fmt.Errorf("reload store: %w", err)
	}
	res.Loaded = len(valid)
	return res, nil
}

// SyncSegments copies segment memberships from src into the Redis cache.
func SyncSegments(ctx context.Context, src SegmentSource, rs *RedisStore) (int, error) {
	memberships, err := src.LoadSegmentMemberships(ctx)
	if err != nil {
		return 0, fmt.Errorf("load segment memberships: %w", err)
	}
	if err := rs.ReplaceSegmentMembers(ctx, memberships); err != nil {
		return 0, err
	}
	return len(memberships), nil
}
