package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vaultpay/payment-core/internal/domain/shared"
)

// Record pins the outcome of the first execution of a request key. Retries
// within the TTL replay the stored outcome instead of moving money again.
type Record struct {
	Key           string             `json:"key"`
	RequestHash   string             `json:"request_hash"`
	TransactionID *uuid.UUID         `json:"transaction_id,omitempty"`
	FailureCode   shared.FailureCode `json:"failure_code,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	ExpiresAt     time.Time          `json:"expires_at"`
}

// NewRecord registers the first sight of a key
func NewRecord(key, requestHash string, ttl time.Duration) *Record {
	now := time.Now()
	return &Record{
		Key:         key,
		RequestHash: requestHash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// Expired reports whether the record has left its deduplication window
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// InFlight reports whether the record has no recorded outcome yet
func (r *Record) InFlight() bool {
	return r.TransactionID == nil && r.FailureCode == ""
}

// StaleInFlight reports whether an in-flight record has outlived the window
// an execution could plausibly still be running in. Such a record usually
// means its holder crashed before recording an outcome.
func (r *Record) StaleInFlight(now time.Time, window time.Duration) bool {
	return r.InFlight() && now.Sub(r.CreatedAt) > window
}

// Repository manages idempotency record persistence. Per-key atomicity
// (insert-if-absent) is the only coordination it needs.
type Repository interface {
	// Insert registers a record, returning ErrDuplicateKey if the key exists
	Insert(ctx context.Context, record *Record) error
	Get(ctx context.Context, key string) (*Record, error)
	SetResult(ctx context.Context, key string, transactionID *uuid.UUID, failureCode shared.FailureCode) error
	// Reclaim takes over an outcome-less record registered before
	// staleBefore, restarting its window. Exactly one of any number of
	// concurrent reclaimers gets true; false means the record is gone,
	// has an outcome, or was claimed by someone else.
	Reclaim(ctx context.Context, key string, staleBefore time.Time, ttl time.Duration) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrDuplicateKey indicates the key was already registered
type ErrDuplicateKey struct {
	Key string
}

func (e ErrDuplicateKey) Error() string {
	return "idempotency key already registered: " + e.Key
}

// ErrRecordNotFound indicates missing idempotency record
type ErrRecordNotFound struct {
	Key string
}

func (e ErrRecordNotFound) Error() string {
	return "idempotency record not found: " + e.Key
}

// Is matches any ErrRecordNotFound when the target carries an empty key
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	return t.Key == "" || e.Key == t.Key
}

// ErrKeyConflict indicates reuse of a key with a different request payload.
// This is a client programming error and is never retried.
type ErrKeyConflict struct {
	Key string
}

func (e ErrKeyConflict) Error() string {
	return "idempotency key reused with different request: " + e.Key
}
