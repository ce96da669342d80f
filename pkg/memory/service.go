package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/cyberFlowTech/wanqing/pkg/logger"
	"github.com/cyberFlowTech/wanqing/pkg/observability"
)

// Config holds the thresholds of the memory subsystem. Values are fixed at
// startup.
type Config struct {
	MaxTurns       int
	CountThreshold int
	TimeThreshold  time.Duration
}

// Service owns the conversational memory pipeline: the bounded short-term
// turn log, the durable conversation buffer, the per-user lock table and
// the extraction trigger. Every multi-step sequence for one user runs under
// that user's lock; distinct users never contend.
type Service struct {
	cfg       Config
	store     Store
	extractor Extractor
	locks     *lockTable
}

func NewService(cfg Config, st Store, extractor Extractor) *Service {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 40
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 5
	}
	if cfg.TimeThreshold <= 0 {
		cfg.TimeThreshold = 24 * time.Hour
	}
	return &Service{
		cfg:       cfg,
		store:     st,
		extractor: extractor,
		locks:     newLockTable(),
	}
}

// RecordTurn ingests one real message (inbound or outbound). It appends the
// turn to both the short-term log and the conversation buffer, then checks
// the extraction trigger and, when it fires, drains the buffer and hands
// the batch to the extractor. Callers invoke it exactly once per message;
// there is no internal deduplication.
//
// Store errors propagate to the caller, which is expected to log and carry
// on — a missed append means one message absent from future memory, not a
// broken conversation. Extractor errors are swallowed here for the same
// reason.
func (s *Service) RecordTurn(ctx context.Context, userID, role, content string) error {
	batch, decision, err := s.appendAndMaybeDrain(ctx, userID, role, content)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	logger.InfoCF("memory", "extraction triggered", map[string]any{
		"user_id": userID,
		"reason":  decision.Reason,
		"turns":   len(batch),
	})
	s.handOff(ctx, userID, batch)
	return nil
}

// appendAndMaybeDrain runs the locked portion of RecordTurn. The user lock
// is held across every store access so a second message for the same user
// queues behind the whole sequence instead of interleaving its own I/O.
func (s *Service) appendAndMaybeDrain(ctx context.Context, userID, role, content string) ([]Message, Decision, error) {
	lock := s.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.AppendTurn(ctx, userID, role, content); err != nil {
		return nil, Decision{}, fmt.Errorf("record turn log: %w", err)
	}
	if err := s.store.TrimTurns(ctx, userID, s.cfg.MaxTurns); err != nil {
		return nil, Decision{}, fmt.Errorf("record turn trim: %w", err)
	}
	if err := s.store.BufferAppend(ctx, userID, role, content); err != nil {
		return nil, Decision{}, fmt.Errorf("record turn buffer: %w", err)
	}
	observability.TurnsRecorded.WithLabelValues(role).Inc()

	decision, err := s.evaluateLocked(ctx, userID)
	if err != nil {
		return nil, Decision{}, err
	}
	if !decision.Fire {
		return nil, decision, nil
	}

	batch, err := s.store.DrainBuffer(ctx, userID)
	if err != nil {
		return nil, decision, fmt.Errorf("record turn drain: %w", err)
	}
	if len(batch) > 0 {
		observability.TriggerFired.WithLabelValues(decision.Reason).Inc()
		observability.DrainsTotal.Inc()
	}
	return toMessages(batch), decision, nil
}

// evaluateLocked reads buffer size and extraction record and applies the
// trigger rule. Caller must hold the user lock.
func (s *Service) evaluateLocked(ctx context.Context, userID string) (Decision, error) {
	n, err := s.store.BufferSize(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("trigger buffer size: %w", err)
	}

	rec, hasRecord, err := s.store.GetExtractionRecord(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("trigger extraction record: %w", err)
	}

	var sinceLast time.Duration
	if hasRecord {
		sinceLast = time.Since(rec.LastExtraction)
	}
	return evaluateTrigger(n, hasRecord, sinceLast, s.cfg.CountThreshold, s.cfg.TimeThreshold), nil
}

func (s *Service) handOff(ctx context.Context, userID string, batch []Message) {
	if s.extractor == nil {
		return
	}
	if err := s.extractor.ExtractMemories(ctx, userID, batch); err != nil {
		observability.ExtractionFailures.Inc()
		logger.ErrorCF("memory", "extraction failed", map[string]any{
			"user_id": userID,
			"turns":   len(batch),
			"error":   err.Error(),
		})
	}
}

// Recent returns up to limit turns from the short-term log, oldest first.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]Message, error) {
	turns, err := s.store.RecentTurns(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, Message{Role: t.Role, Content: t.Content, Timestamp: t.CreatedAt})
	}
	return out, nil
}

// Status reports the user's memory state for the /memory command.
func (s *Service) Status(ctx context.Context, userID string) (Status, error) {
	lock := s.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	n, err := s.store.BufferSize(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	turns, err := s.store.CountTurns(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	st := Status{BufferSize: n, TurnCount: turns}

	rec, hasRecord, err := s.store.GetExtractionRecord(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if hasRecord {
		st.ExtractionCount = rec.Count
		st.LastExtraction = rec.LastExtraction
	}
	return st, nil
}

// ClearHistory empties the short-term turn log (/clear). The buffer and
// extraction record are untouched; memories already extracted stay.
func (s *Service) ClearHistory(ctx context.Context, userID string) error {
	lock := s.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.store.ClearTurns(ctx, userID)
}

// Forget is the full erasure flow (/forget): turn log, conversation buffer,
// extraction record, reading history and long-term memories all go, and the user's lock table
// entry is dropped. Anything less is a defect, so the first failure aborts.
func (s *Service) Forget(ctx context.Context, userID string) error {
	lock := s.locks.get(userID)
	lock.Lock()

	err := func() error {
		if err := s.store.ClearTurns(ctx, userID); err != nil {
			return fmt.Errorf("forget turn log: %w", err)
		}
		if err := s.store.ClearBuffer(ctx, userID); err != nil {
			return fmt.Errorf("forget buffer: %w", err)
		}
		if err := s.store.DeleteExtractionRecord(ctx, userID); err != nil {
			return fmt.Errorf("forget extraction record: %w", err)
		}
		if err := s.store.ClearReadings(ctx, userID); err != nil {
			return fmt.Errorf("forget readings: %w", err)
		}
		if err := s.store.ClearMemories(ctx, userID); err != nil {
			return fmt.Errorf("forget memories: %w", err)
		}
		return nil
	}()

	lock.Unlock()
	if err != nil {
		return err
	}
	s.locks.drop(userID)
	return nil
}

// SweepIdle checks every user with buffered turns and drains the stale
// ones. Wired to the cron schedule so users who go quiet still get their
// last fragment of conversation extracted.
func (s *Service) SweepIdle(ctx context.Context) (int, error) {
	users, err := s.store.BufferedUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep list users: %w", err)
	}

	drained := 0
	for _, userID := range users {
		batch, decision, err := s.sweepUser(ctx, userID)
		if err != nil {
			logger.WarnCF("memory", "sweep skipped user", map[string]any{
				"user_id": userID,
				"error":   err.Error(),
			})
			continue
		}
		if len(batch) == 0 {
			continue
		}
		drained++
		logger.InfoCF("memory", "sweep drained buffer", map[string]any{
			"user_id": userID,
			"reason":  decision.Reason,
			"turns":   len(batch),
		})
		s.handOff(ctx, userID, batch)
	}
	return drained, nil
}

func (s *Service) sweepUser(ctx context.Context, userID string) ([]Message, Decision, error) {
	lock := s.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()

	decision, err := s.evaluateLocked(ctx, userID)
	if err != nil {
		return nil, Decision{}, err
	}
	if !decision.Fire {
		return nil, decision, nil
	}
	batch, err := s.store.DrainBuffer(ctx, userID)
	if err != nil {
		return nil, decision, err
	}
	if len(batch) > 0 {
		observability.TriggerFired.WithLabelValues(decision.Reason).Inc()
		observability.DrainsTotal.Inc()
	}
	return toMessages(batch), decision, nil
}

// DrainAll force-drains a user's buffer regardless of the trigger and
// returns the batch, handing it to the extractor when non-empty.
func (s *Service) DrainAll(ctx context.Context, userID string) ([]Message, error) {
	lock := s.locks.get(userID)
	lock.Lock()
	batch, err := s.store.DrainBuffer(ctx, userID)
	lock.Unlock()
	if err != nil {
		return nil, fmt.Errorf("drain all: %w", err)
	}
	if len(batch) == 0 {
		return nil, nil
	}
	observability.DrainsTotal.Inc()
	msgs := toMessages(batch)
	s.handOff(ctx, userID, msgs)
	return msgs, nil
}

// BufferSize returns the buffered-turn count for one user, taken under the
// user's lock so a concurrent drain is never observed halfway.
func (s *Service) BufferSize(ctx context.Context, userID string) (int, error) {
	lock := s.locks.get(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.store.BufferSize(ctx, userID)
}

// LockCount exposes the lock table size (status command).
func (s *Service) LockCount() int {
	return s.locks.size()
}
