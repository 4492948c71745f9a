package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/kanplan/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "kanplan.snapshot.v1"

// Snapshot is a portable copy of a store's records and id counter.
type Snapshot struct {
	Version    string          `json:"version" yaml:"version"`
	ExportedAt time.Time       `json:"exported_at" yaml:"exported_at"`
	Counter    int             `json:"counter" yaml:"counter"`
	Items      []domain.Record `json:"items" yaml:"items"`
}

// ExportSnapshot captures the current records in list order.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.store.List()
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Counter:    s.store.Counter(),
		Items:      make([]domain.Record, 0, len(items)),
	}
	for _, item := range items {
		snap.Items = append(snap.Items, domain.RecordFromItem(item))
	}
	return snap, nil
}

// ImportSnapshot replaces the store with the snapshot's records and saves the result.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) (LoadReport, error) {
	if err := ctx.Err(); err != nil {
		return LoadReport{}, err
	}
	if err := snap.Validate(); err != nil {
		return LoadReport{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	report := s.replay(snap.Items, snap.Counter)
	s.logger.Info("snapshot imported", "items", report.Loaded, "skipped", report.Skipped)
	return report, s.persist(ctx)
}

// Validate checks the snapshot header and that every record has a distinct positive id.
func (s *Snapshot) Validate() error {
	if strings.TrimSpace(s.Version) != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %q", s.Version)
	}
	if s.Counter < 0 {
		return errors.New("snapshot counter must not be negative")
	}
	seen := make(map[int]struct{}, len(s.Items))
	for i, rec := range s.Items {
		id, err := strconv.Atoi(strings.TrimSpace(rec.ID))
		if err != nil || id <= 0 {
			return fmt.Errorf("items[%d]: %w: id %q", i, domain.ErrInvalidRecord, rec.ID)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("items[%d]: %w: %d", i, ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
