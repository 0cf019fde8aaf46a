// Package guard deduplicates payment requests by idempotency key. The first
// execution of a key pins its outcome for the configured TTL; retries within
// the window replay that outcome instead of moving money again.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vaultpay/payment-core/internal/domain/idempotency"
	"github.com/vaultpay/payment-core/internal/domain/payment"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// LedgerLookup finds the transaction a key produced when the recording step
// was lost to a crash. Implementations return nil without error when no
// transaction carries the key.
type LedgerLookup interface {
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*payment.Transaction, error)
}

// ErrKeyInFlight indicates a concurrent request holds the key but has not
// recorded an outcome yet
type ErrKeyInFlight struct {
	Key string
}

func (e ErrKeyInFlight) Error() string {
	return "idempotency key in flight: " + e.Key
}

// Outcome reports what the guard decided for a key
type Outcome struct {
	// Replayed is true when a stored result was returned instead of
	// admitting a new execution
	Replayed      bool
	TransactionID *uuid.UUID
	FailureCode   shared.FailureCode
}

// Guard performs the check-or-register step in front of the orchestrator
type Guard struct {
	repo        idempotency.Repository
	ledger      LedgerLookup
	ttl         time.Duration
	inFlightTTL time.Duration
	logger      *slog.Logger
}

// NewGuard creates an idempotency guard. ttl bounds the deduplication window
// per key; inFlightTTL bounds how long a key with no recorded outcome blocks
// retries before it is treated as abandoned by a crashed holder.
func NewGuard(logger *slog.Logger, repo idempotency.Repository, ledger LedgerLookup, ttl, inFlightTTL time.Duration) *Guard {
	return &Guard{
		repo:        repo,
		ledger:      ledger,
		ttl:         ttl,
		inFlightTTL: inFlightTTL,
		logger:      logger,
	}
}

// CheckOrRegister admits a request under its idempotency key. The first
// caller gets a non-replayed outcome and must later record a result; a retry
// with the same payload gets the stored outcome; reuse of the key with a
// different payload fails with ErrKeyConflict. An expired record is treated
// as if the key had never been seen.
func (g *Guard) CheckOrRegister(ctx context.Context, key, requestHash string) (*Outcome, error) {
	record := idempotency.NewRecord(key, requestHash, g.ttl)

	err := g.repo.Insert(ctx, record)
	if err == nil {
		return &Outcome{Replayed: false}, nil
	}

	var dupErr idempotency.ErrDuplicateKey
	if !errors.As(err, &dupErr) {
		return nil, err
	}

	existing, err := g.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, idempotency.ErrRecordNotFound{}) {
			// Lost a race with the cleanup job; the caller retries.
			return nil, ErrKeyInFlight{Key: key}
		}
		return nil, err
	}

	if existing.Expired(time.Now()) {
		if _, err := g.repo.DeleteExpired(ctx, time.Now()); err != nil {
			return nil, err
		}
		if err := g.repo.Insert(ctx, record); err != nil {
			if errors.As(err, &dupErr) {
				return nil, ErrKeyInFlight{Key: key}
			}
			return nil, err
		}
		return &Outcome{Replayed: false}, nil
	}

	if existing.RequestHash != requestHash {
		g.logger.Warn("Idempotency key reused with different payload", "key", key)
		return nil, idempotency.ErrKeyConflict{Key: key}
	}

	if existing.InFlight() {
		if !existing.StaleInFlight(time.Now(), g.inFlightTTL) {
			return nil, ErrKeyInFlight{Key: key}
		}
		return g.recoverStaleKey(ctx, key)
	}

	return &Outcome{
		Replayed:      true,
		TransactionID: existing.TransactionID,
		FailureCode:   existing.FailureCode,
	}, nil
}

// recoverStaleKey resolves a key whose holder died before recording an
// outcome. If the execution reached the ledger its transaction is adopted
// as the stored result; otherwise the key is reclaimed for a fresh attempt.
func (g *Guard) recoverStaleKey(ctx context.Context, key string) (*Outcome, error) {
	txn, err := g.ledger.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if txn != nil {
		if err := g.repo.SetResult(ctx, key, &txn.ID, ""); err != nil {
			return nil, err
		}
		g.logger.Warn("Adopted unrecorded outcome for stale idempotency key",
			"key", key,
			"transaction_id", txn.ID.String(),
			"status", string(txn.Status),
		)
		return &Outcome{Replayed: true, TransactionID: &txn.ID}, nil
	}

	claimed, err := g.repo.Reclaim(ctx, key, time.Now().Add(-g.inFlightTTL), g.ttl)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another retry won the takeover; it is the in-flight holder now.
		return nil, ErrKeyInFlight{Key: key}
	}

	g.logger.Warn("Reclaimed stale in-flight idempotency key", "key", key)
	return &Outcome{Replayed: false}, nil
}

// RecordSuccess pins a completed transaction to the key
func (g *Guard) RecordSuccess(ctx context.Context, key string, transactionID uuid.UUID) error {
	return g.repo.SetResult(ctx, key, &transactionID, "")
}

// RecordFailure pins a terminal failure to the key. Retries within the TTL
// replay the failure; a client that wants a fresh attempt sends a new key.
func (g *Guard) RecordFailure(ctx context.Context, key string, code shared.FailureCode) error {
	return g.repo.SetResult(ctx, key, nil, code)
}

// PurgeExpired removes records past their deduplication window
func (g *Guard) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := g.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		g.logger.Info("Purged expired idempotency records", "count", removed)
	}
	return removed, nil
}
