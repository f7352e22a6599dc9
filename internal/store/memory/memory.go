// Package memory implements the domain store interfaces in process memory.
// It backs the memory storage driver and the test suites.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

var errReadOnly = errors.New("memory: write in read-only transaction")

var _ domain.Transactor = (*Store)(nil)

type betKey struct {
	competitionID string
	participant   string
}

// state is one immutable snapshot of everything the store holds. Writers
// work on a clone and swap it in on commit.
type state struct {
	registry     *domain.PlatformRegistry
	competitions map[string]domain.Competition
	bets         map[betKey]domain.Bet
	balances     map[string]uint64
	entries      []domain.LedgerEntry
	nextEntryID  int64
}

func newState() *state {
	return &state{
		competitions: make(map[string]domain.Competition),
		bets:         make(map[betKey]domain.Bet),
		balances:     make(map[string]uint64),
	}
}

func (s *state) clone() *state {
	c := &state{
		competitions: make(map[string]domain.Competition, len(s.competitions)),
		bets:         make(map[betKey]domain.Bet, len(s.bets)),
		balances:     make(map[string]uint64, len(s.balances)),
		// Committed entries never change; capping the slice makes appends
		// reallocate instead of writing into the shared array.
		entries:     s.entries[:len(s.entries):len(s.entries)],
		nextEntryID: s.nextEntryID,
	}
	if s.registry != nil {
		reg := *s.registry
		c.registry = &reg
	}
	for k, v := range s.competitions {
		c.competitions[k] = v
	}
	for k, v := range s.bets {
		c.bets[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	return c
}

// Store is an in-memory domain.Transactor. Write transactions are fully
// serialized; a failed transaction leaves no trace.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		state: newState(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithinTx runs fn against a private copy of the state and commits it only
// when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// View runs fn against the committed state. Writes fail.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &tx{st: s.state, readOnly: true, now: s.now})
}

// Entries returns the committed ledger journal, oldest first.
func (s *Store) Entries() []domain.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LedgerEntry, len(s.state.entries))
	copy(out, s.state.entries)
	return out
}

type tx struct {
	st       *state
	readOnly bool
	now      func() time.Time
}

func (t *tx) Registry() domain.RegistryRepo       { return registryRepo{t} }
func (t *tx) Competitions() domain.CompetitionRepo { return competitionRepo{t} }
func (t *tx) Bets() domain.BetRepo                 { return betRepo{t} }
func (t *tx) Ledger() domain.Ledger                { return ledger{t} }

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// page applies offset and limit to an already ordered slice.
func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

func inWindow(ts time.Time, opts domain.ListOpts) bool {
	if opts.Since != nil && ts.Before(*opts.Since) {
		return false
	}
	if opts.Until != nil && ts.After(*opts.Until) {
		return false
	}
	return true
}

type registryRepo struct{ t *tx }

func (r registryRepo) Get(_ context.Context) (domain.PlatformRegistry, error) {
	if r.t.st.registry == nil {
		return domain.PlatformRegistry{}, domain.ErrNotFound
	}
	return *r.t.st.registry, nil
}

func (r registryRepo) Create(_ context.Context, reg domain.PlatformRegistry) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if r.t.st.registry != nil {
		return domain.ErrAlreadyExists
	}
	r.t.st.registry = &reg
	return nil
}

func (r registryRepo) Update(_ context.Context, reg domain.PlatformRegistry) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if r.t.st.registry == nil {
		return domain.ErrNotFound
	}
	r.t.st.registry = &reg
	return nil
}

type competitionRepo struct{ t *tx }

func (r competitionRepo) Get(_ context.Context, id string) (domain.Competition, error) {
	c, ok := r.t.st.competitions[id]
	if !ok {
		return domain.Competition{}, domain.ErrNotFound
	}
	return c, nil
}

func (r competitionRepo) Create(_ context.Context, c domain.Competition) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.competitions[c.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.t.st.competitions[c.ID] = c
	return nil
}

func (r competitionRepo) Update(_ context.Context, c domain.Competition) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.t.st.competitions[c.ID]; !ok {
		return domain.ErrNotFound
	}
	r.t.st.competitions[c.ID] = c
	return nil
}

func (r competitionRepo) List(_ context.Context, filter domain.CompetitionFilter, opts domain.ListOpts) ([]domain.Competition, error) {
	statuses := make(map[domain.CompetitionStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = true
	}

	var out []domain.Competition
	for _, c := range r.t.st.competitions {
		if len(statuses) > 0 && !statuses[c.Status] {
			continue
		}
		if filter.EndedBefore != nil && !c.EndTime.Before(*filter.EndedBefore) {
			continue
		}
		if !inWindow(c.CreatedAt, opts) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, opts), nil
}

type betRepo struct{ t *tx }

func (r betRepo) Get(_ context.Context, competitionID, participant string) (domain.Bet, error) {
	b, ok := r.t.st.bets[betKey{competitionID, participant}]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return b, nil
}

func (r betRepo) Create(_ context.Context, b domain.Bet) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	k := betKey{b.CompetitionID, b.Participant}
	if _, ok := r.t.st.bets[k]; ok {
		return domain.ErrAlreadyExists
	}
	r.t.st.bets[k] = b
	return nil
}

func (r betRepo) Update(_ context.Context, b domain.Bet) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	k := betKey{b.CompetitionID, b.Participant}
	if _, ok := r.t.st.bets[k]; !ok {
		return domain.ErrNotFound
	}
	r.t.st.bets[k] = b
	return nil
}

func (r betRepo) ListByCompetition(_ context.Context, competitionID string, opts domain.ListOpts) ([]domain.Bet, error) {
	var out []domain.Bet
	for k, b := range r.t.st.bets {
		if k.competitionID == competitionID && inWindow(b.Timestamp, opts) {
			out = append(out, b)
		}
	}
	sortBets(out, false)
	return page(out, opts), nil
}

func (r betRepo) ListByParticipant(_ context.Context, participant string, opts domain.ListOpts) ([]domain.Bet, error) {
	var out []domain.Bet
	for k, b := range r.t.st.bets {
		if k.participant == participant && inWindow(b.Timestamp, opts) {
			out = append(out, b)
		}
	}
	sortBets(out, true)
	return page(out, opts), nil
}

func sortBets(bets []domain.Bet, newestFirst bool) {
	sort.Slice(bets, func(i, j int) bool {
		a, b := bets[i], bets[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			if newestFirst {
				return a.Timestamp.After(b.Timestamp)
			}
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.CompetitionID != b.CompetitionID {
			return a.CompetitionID < b.CompetitionID
		}
		return a.Participant < b.Participant
	})
}
