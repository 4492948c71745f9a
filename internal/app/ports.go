package app

import (
	"context"

	"github.com/hylla/kanplan/internal/domain"
)

// Persister stores the flat record form of a store.
type Persister interface {
	Load(context.Context) (LoadResult, error)
	Save(context.Context, []domain.Record, int) error
}

// LoadResult carries the records read back from storage in their stored order.
type LoadResult struct {
	Records  []domain.Record
	Counter  int
	Rejected []RejectedRecord
}

// RejectedRecord describes one stored record that could not be read.
type RejectedRecord struct {
	Line int
	Err  error
}
