package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// RegistryRepo persists the platform registry singleton.
type RegistryRepo interface {
	Get(ctx context.Context) (PlatformRegistry, error)
	Create(ctx context.Context, reg PlatformRegistry) error
	Update(ctx context.Context, reg PlatformRegistry) error
}

// CompetitionRepo persists competitions keyed by ID.
type CompetitionRepo interface {
	Get(ctx context.Context, id string) (Competition, error)
	Create(ctx context.Context, c Competition) error
	Update(ctx context.Context, c Competition) error
	List(ctx context.Context, filter CompetitionFilter, opts ListOpts) ([]Competition, error)
}

// BetRepo persists bets keyed by (competition, participant).
type BetRepo interface {
	Get(ctx context.Context, competitionID, participant string) (Bet, error)
	Create(ctx context.Context, bet Bet) error
	Update(ctx context.Context, bet Bet) error
	ListByCompetition(ctx context.Context, competitionID string, opts ListOpts) ([]Bet, error)
	ListByParticipant(ctx context.Context, participant string, opts ListOpts) ([]Bet, error)
}

// Tx groups the repositories and ledger that take part in one atomic
// operation.
type Tx interface {
	Registry() RegistryRepo
	Competitions() CompetitionRepo
	Bets() BetRepo
	Ledger() Ledger
}

// Transactor runs operations against the shared state. WithinTx serializes
// conflicting writers and commits only when fn returns nil; View runs fn
// read-only and never commits.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
