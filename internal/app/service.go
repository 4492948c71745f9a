package app

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hylla/kanplan/internal/domain"
)

// Clock returns the current time.
type Clock func() time.Time

// Logger receives structured service events. *log.Logger satisfies it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// ServiceConfig holds optional collaborators for a service.
type ServiceConfig struct {
	Logger Logger
	Clock  Clock
}

// Service serializes access to a Store and saves it after every mutation.
type Service struct {
	mu        sync.Mutex
	store     *Store
	persister Persister
	logger    Logger
	clock     Clock
}

// LoadReport summarizes a replay of stored records.
type LoadReport struct {
	Loaded  int
	Skipped int
	Counter int
}

// NewService constructs a service over store. A nil persister keeps data in memory only.
func NewService(store *Store, persister Persister, cfg ServiceConfig) *Service {
	if store == nil {
		store = NewStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:     store,
		persister: persister,
		logger:    logger,
		clock:     clock,
	}
}

// Load replaces the in-memory state with the persisted records. Records that
// fail to decode or add are logged and skipped. Unreadable storage is
// returned as an error wrapping ErrLoadCorruption.
func (s *Service) Load(ctx context.Context) (LoadReport, error) {
	if err := ctx.Err(); err != nil {
		return LoadReport{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persister == nil {
		return LoadReport{}, nil
	}
	res, err := s.persister.Load(ctx)
	if err != nil {
		return LoadReport{}, err
	}
	for _, rej := range res.Rejected {
		s.logger.Warn("skipping unreadable record", "line", rej.Line, "err", rej.Err)
	}
	report := s.replay(res.Records, res.Counter)
	report.Skipped += len(res.Rejected)
	s.logger.Info("store loaded", "items", report.Loaded, "skipped", report.Skipped, "counter", report.Counter)
	return report, nil
}

// replay rebuilds the store from records in order, then seeds the id counter once.
func (s *Service) replay(records []domain.Record, counter int) LoadReport {
	s.store.RemoveAll()
	report := LoadReport{}
	for i, rec := range records {
		item, err := domain.ItemFromRecord(rec)
		if err == nil {
			err = s.store.Add(item)
		}
		if err != nil {
			s.logger.Warn("skipping stored record", "position", i+1, "id", rec.ID, "type", rec.Type, "err", err)
			report.Skipped++
			continue
		}
		report.Loaded++
	}
	s.store.SeedCounter(counter)
	report.Counter = s.store.Counter()
	return report
}

// Reset empties the store and saves the empty state.
func (s *Service) Reset(ctx context.Context) error {
	return s.RemoveAll(ctx)
}

// Create adds a new item under a freshly minted id.
func (s *Service) Create(ctx context.Context, in domain.ItemInput) (domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return domain.Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.store.Exists(s.store.Counter() + 1) {
		s.store.NextID()
	}
	item, err := domain.NewItem(s.store.Counter()+1, in)
	if err != nil {
		return domain.Item{}, err
	}
	if err := s.store.Add(item); err != nil {
		return domain.Item{}, err
	}
	s.store.NextID()
	stored, _ := s.store.lookup(item.ID)
	s.logger.Debug("item created", "id", stored.ID, "kind", stored.Kind)
	return stored.Clone(), s.persist(ctx)
}

// Update replaces the item stored under id. The kind in in must match the stored kind.
func (s *Service) Update(ctx context.Context, id int, in domain.ItemInput) (domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return domain.Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := domain.NewItem(id, in)
	if err != nil {
		return domain.Item{}, err
	}
	if err := s.store.Update(item); err != nil {
		return domain.Item{}, err
	}
	stored, _ := s.store.lookup(id)
	s.logger.Debug("item updated", "id", stored.ID, "kind", stored.Kind, "status", stored.Status)
	return stored.Clone(), s.persist(ctx)
}

// Save creates the item when id is zero or unused and replaces it otherwise.
// created reports which path ran. An explicit new id is kept and the counter
// moves past it.
func (s *Service) Save(ctx context.Context, id int, in domain.ItemInput) (item domain.Item, created bool, err error) {
	if id == 0 {
		item, err = s.Create(ctx, in)
		return item, err == nil, err
	}
	if s.exists(id) {
		item, err = s.Update(ctx, id, in)
		return item, false, err
	}
	item, err = s.createWithID(ctx, id, in)
	return item, err == nil, err
}

// createWithID adds an item under a caller-chosen id.
func (s *Service) createWithID(ctx context.Context, id int, in domain.ItemInput) (domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return domain.Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := domain.NewItem(id, in)
	if err != nil {
		return domain.Item{}, err
	}
	if s.store.Exists(id) {
		return domain.Item{}, fmt.Errorf("item %d: %w", id, ErrDuplicateID)
	}
	if err := s.store.Add(item); err != nil {
		return domain.Item{}, err
	}
	s.store.SeedCounter(id)
	stored, _ := s.store.lookup(id)
	s.logger.Debug("item created", "id", stored.ID, "kind", stored.Kind)
	return stored.Clone(), s.persist(ctx)
}

// exists reports whether id is stored.
func (s *Service) exists(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Exists(id)
}

// Get returns one item and records the view in history. A non-empty kind must
// match the stored kind.
func (s *Service) Get(ctx context.Context, kind domain.Kind, id int) (domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return domain.Item{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.kindMatches(kind, id) {
		return domain.Item{}, ErrNotFound
	}
	return s.store.Get(id)
}

// kindMatches reports whether id is stored with kind. An empty kind matches any item.
func (s *Service) kindMatches(kind domain.Kind, id int) bool {
	stored, ok := s.store.Kind(id)
	if !ok {
		return false
	}
	return kind == "" || kind == stored
}

// List returns the items of one kind, or every item when kind is empty.
func (s *Service) List(ctx context.Context, kind domain.Kind) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if kind == "" {
		return s.store.List(), nil
	}
	return s.store.ListKind(kind), nil
}

// SubtasksOf returns the subtasks of one epic.
func (s *Service) SubtasksOf(ctx context.Context, epicID int) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SubtasksOf(epicID)
}

// Remove deletes one item. A non-empty kind must match the stored kind.
func (s *Service) Remove(ctx context.Context, kind domain.Kind, id int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.kindMatches(kind, id) || !s.store.Remove(id) {
		return ErrNotFound
	}
	s.logger.Debug("item removed", "id", id)
	return s.persist(ctx)
}

// RemoveAll deletes every item and rewinds the id counter.
func (s *Service) RemoveAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.RemoveAll()
	s.logger.Debug("store cleared")
	return s.persist(ctx)
}

// Prioritized returns the scheduled items, earliest first.
func (s *Service) Prioritized(ctx context.Context) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Prioritized(), nil
}

// History returns the items read by id, oldest view first.
func (s *Service) History(ctx context.Context) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.History(), nil
}

// persist saves the full store. The caller holds s.mu.
func (s *Service) persist(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	items := s.store.List()
	records := make([]domain.Record, 0, len(items))
	for _, item := range items {
		records = append(records, domain.RecordFromItem(item))
	}
	if err := s.persister.Save(ctx, records, s.store.Counter()); err != nil {
		s.logger.Error("saving store failed", "err", err)
		return fmt.Errorf("save store: %w", err)
	}
	return nil
}
