package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tokenbet/internal/crypto"
	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// FeeMode selects how often the platform fee leaves a competition escrow.
type FeeMode string

const (
	// FeeModeOnce pays the fee on the first successful claim only.
	FeeModeOnce FeeMode = "once"
	// FeeModePerClaim pays the full-pool fee on every claim.
	FeeModePerClaim FeeMode = "per_claim"
)

// DefaultStakeAmount is the fixed bet size in base units (0.1 of a
// 9-decimal token).
const DefaultStakeAmount uint64 = 100_000_000

// Policy holds the tunables of the betting engine.
type Policy struct {
	StakeAmount uint64
	FeeMode     FeeMode
	LockTTL     time.Duration
	LockRetries int
	LockBackoff time.Duration
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		StakeAmount: DefaultStakeAmount,
		FeeMode:     FeeModeOnce,
		LockTTL:     10 * time.Second,
		LockRetries: 5,
		LockBackoff: 50 * time.Millisecond,
	}
}

// EventNotifier forwards committed events to human channels.
type EventNotifier interface {
	NotifyEvent(ctx context.Context, evt domain.Event) error
}

// BettingService runs the competition lifecycle, escrow custody and payout
// engine. Every mutating operation executes inside one Transactor
// transaction; events are emitted only after that transaction commits.
type BettingService struct {
	tx       domain.Transactor
	clock    domain.Clock
	policy   Policy
	locks    domain.LockManager
	bus      domain.SignalBus
	audit    domain.AuditStore
	cache    domain.CompetitionCache
	notifier EventNotifier
	logger   *slog.Logger
}

// NewBettingService creates a BettingService over the given transactor.
func NewBettingService(tx domain.Transactor, clock domain.Clock, policy Policy, logger *slog.Logger) *BettingService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if policy.StakeAmount == 0 {
		policy.StakeAmount = DefaultStakeAmount
	}
	if policy.FeeMode == "" {
		policy.FeeMode = FeeModeOnce
	}
	return &BettingService{
		tx:     tx,
		clock:  clock,
		policy: policy,
		logger: logger.With(slog.String("component", "betting")),
	}
}

// WithLocks serializes operations on the same competition across replicas.
func (s *BettingService) WithLocks(locks domain.LockManager) *BettingService {
	s.locks = locks
	return s
}

// WithBus publishes committed events on the signal bus.
func (s *BettingService) WithBus(bus domain.SignalBus) *BettingService {
	s.bus = bus
	return s
}

// WithAudit records committed events in the audit log.
func (s *BettingService) WithAudit(audit domain.AuditStore) *BettingService {
	s.audit = audit
	return s
}

// WithCache enables the competition read cache.
func (s *BettingService) WithCache(cache domain.CompetitionCache) *BettingService {
	s.cache = cache
	return s
}

// WithNotifier forwards committed events to a notifier.
func (s *BettingService) WithNotifier(n EventNotifier) *BettingService {
	s.notifier = n
	return s
}

// Policy returns the active engine policy.
func (s *BettingService) Policy() Policy {
	return s.policy
}

// mutate runs fn under the lock for key inside a write transaction and emits
// the events it collected once the transaction has committed.
func (s *BettingService) mutate(ctx context.Context, key string, fn func(ctx context.Context, tx domain.Tx, ev *events) error) error {
	unlock, err := s.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	var ev events
	if err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		ev = events{}
		return fn(ctx, tx, &ev)
	}); err != nil {
		return err
	}

	s.emit(ctx, ev)
	return nil
}

// acquire takes the distributed lock for key, retrying a bounded number of
// times while another replica holds it.
func (s *BettingService) acquire(ctx context.Context, key string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}

	attempts := s.policy.LockRetries
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; ; i++ {
		unlock, err := s.locks.Acquire(ctx, key, s.policy.LockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("betting: acquire lock %s: %w", key, err)
		}
		if i+1 >= attempts {
			return nil, fmt.Errorf("betting: lock %s: %w", key, domain.ErrLockHeld)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.policy.LockBackoff * time.Duration(i+1)):
		}
	}
}

// events collects the events of one transaction.
type events struct {
	list []domain.Event
}

func (e *events) add(evt domain.Event) {
	e.list = append(e.list, evt)
}

func (s *BettingService) newEvent(typ domain.EventType, competitionID, actor string, data map[string]any) domain.Event {
	return domain.Event{
		ID:            uuid.NewString(),
		Type:          typ,
		CompetitionID: competitionID,
		Actor:         actor,
		Data:          data,
		At:            s.clock.Now(),
	}
}

// emit delivers committed events. Failures are logged and never returned:
// the state change has already happened.
func (s *BettingService) emit(ctx context.Context, ev events) {
	invalidated := make(map[string]bool)
	for _, evt := range ev.list {
		if evt.CompetitionID != "" && s.cache != nil && !invalidated[evt.CompetitionID] {
			invalidated[evt.CompetitionID] = true
			if err := s.cache.Invalidate(ctx, evt.CompetitionID); err != nil {
				s.logger.WarnContext(ctx, "betting: cache invalidate failed",
					slog.String("competition_id", evt.CompetitionID),
					slog.String("error", err.Error()),
				)
			}
		}

		payload, err := json.Marshal(evt)
		if err != nil {
			s.logger.WarnContext(ctx, "betting: marshal event failed",
				slog.String("event", string(evt.Type)),
				slog.String("error", err.Error()),
			)
			continue
		}

		if s.bus != nil {
			if err := s.bus.Publish(ctx, domain.EventsChannel, payload); err != nil {
				s.logger.WarnContext(ctx, "betting: publish event failed",
					slog.String("event", string(evt.Type)),
					slog.String("error", err.Error()),
				)
			}
			if evt.CompetitionID != "" {
				if err := s.bus.Publish(ctx, domain.CompetitionChannel(evt.CompetitionID), payload); err != nil {
					s.logger.WarnContext(ctx, "betting: publish competition event failed",
						slog.String("competition_id", evt.CompetitionID),
						slog.String("error", err.Error()),
					)
				}
			}
			if err := s.bus.StreamAppend(ctx, domain.EventsStream, payload); err != nil {
				s.logger.WarnContext(ctx, "betting: stream append failed",
					slog.String("event", string(evt.Type)),
					slog.String("error", err.Error()),
				)
			}
		}

		if s.audit != nil {
			detail := map[string]any{
				"event_id": evt.ID,
				"actor":    evt.Actor,
			}
			if evt.CompetitionID != "" {
				detail["competition_id"] = evt.CompetitionID
			}
			for k, v := range evt.Data {
				detail[k] = v
			}
			if err := s.audit.Log(ctx, string(evt.Type), detail); err != nil {
				s.logger.WarnContext(ctx, "betting: audit log failed",
					slog.String("event", string(evt.Type)),
					slog.String("error", err.Error()),
				)
			}
		}

		if s.notifier != nil {
			if err := s.notifier.NotifyEvent(ctx, evt); err != nil {
				s.logger.WarnContext(ctx, "betting: notify failed",
					slog.String("event", string(evt.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// loadRegistry reads the registry singleton, mapping a missing row to
// ErrNotInitialized.
func loadRegistry(ctx context.Context, tx domain.Tx) (domain.PlatformRegistry, error) {
	reg, err := tx.Registry().Get(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.PlatformRegistry{}, domain.ErrNotInitialized
	}
	if err != nil {
		return domain.PlatformRegistry{}, fmt.Errorf("betting: load registry: %w", err)
	}
	return reg, nil
}

// loadAuthorized loads the registry and checks that caller is its authority.
func loadAuthorized(ctx context.Context, tx domain.Tx, caller string) (domain.PlatformRegistry, error) {
	reg, err := loadRegistry(ctx, tx)
	if err != nil {
		return domain.PlatformRegistry{}, err
	}
	if !reg.IsAuthority(caller) {
		return domain.PlatformRegistry{}, domain.ErrUnauthorized
	}
	return reg, nil
}

func loadCompetition(ctx context.Context, tx domain.Tx, id string) (domain.Competition, error) {
	c, err := tx.Competitions().Get(ctx, id)
	if err != nil {
		return domain.Competition{}, fmt.Errorf("betting: competition %s: %w", id, err)
	}
	return c, nil
}

func loadBet(ctx context.Context, tx domain.Tx, competitionID, participant string) (domain.Bet, error) {
	b, err := tx.Bets().Get(ctx, competitionID, participant)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("betting: bet %s/%s: %w", competitionID, participant, err)
	}
	return b, nil
}

// normalizeCaller canonicalizes an authenticated identity. A malformed
// identity is never authorized.
func normalizeCaller(addr string) (string, error) {
	norm, err := crypto.NormalizeAddress(addr)
	if err != nil {
		return "", fmt.Errorf("betting: caller: %w", domain.ErrUnauthorized)
	}
	return norm, nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrMathOverflow
	}
	return sum, nil
}

func platformKey() string {
	return "platform"
}

func competitionKey(id string) string {
	return "competition:" + id
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// normalizeParticipant canonicalizes an address taken from a query.
func normalizeParticipant(addr string) (string, error) {
	norm, err := crypto.NormalizeAddress(addr)
	if err != nil {
		return "", fmt.Errorf("betting: participant: %w", err)
	}
	return norm, nil
}
