package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	shared "github.com/felixgeelhaar/augur/internal/shared/domain"
)

// KeyPrefix namespaces every ledger key.
const KeyPrefix = "augur"

// Ledger field names. Each is stored under its own key.
const (
	FieldMessageCount       = "message_count"
	FieldIsPremium          = "is_premium"
	FieldBonusConsultations = "bonus_consultations"
	FieldSpinBalance        = "spin_balance"
	FieldLastFreeSpinDate   = "last_free_spin_date"
	FieldBlockedMessageID   = "blocked_message_id"
	fieldPaymentPrefix      = "payment:"
)

// Ledger reads and mutates the entitlement state of one scope through a
// LedgerStore. Values are JSON encoded. Mutations are read-modify-write per
// field, so callers serialize writers of the same scope.
type Ledger struct {
	store LedgerStore
	scope shared.Scope
}

// NewLedger binds a ledger to a store and scope.
func NewLedger(store LedgerStore, scope shared.Scope) *Ledger {
	return &Ledger{store: store, scope: scope}
}

// Scope returns the scope the ledger is bound to.
func (l *Ledger) Scope() shared.Scope {
	return l.scope
}

// Key returns the store key for a field of this ledger's scope.
func (l *Ledger) Key(field string) string {
	return KeyPrefix + ":" + l.scope.Module + ":" + l.scope.Session + ":" + field
}

// Read loads the full state. Missing, corrupt or negative values read as
// their zero value, so a partially written ledger is always readable.
func (l *Ledger) Read(ctx context.Context) (State, error) {
	var s State
	var err error

	if s.MessageCount, err = l.readCount(ctx, FieldMessageCount); err != nil {
		return State{}, err
	}
	if s.BonusConsultations, err = l.readCount(ctx, FieldBonusConsultations); err != nil {
		return State{}, err
	}
	if s.SpinBalance, err = l.readCount(ctx, FieldSpinBalance); err != nil {
		return State{}, err
	}
	if s.IsPremium, err = l.readBool(ctx, FieldIsPremium); err != nil {
		return State{}, err
	}
	if s.LastFreeSpinDate, err = l.readString(ctx, FieldLastFreeSpinDate); err != nil {
		return State{}, err
	}
	if s.LastFreeSpinDate != "" {
		if _, perr := time.Parse(DateLayout, s.LastFreeSpinDate); perr != nil {
			s.LastFreeSpinDate = ""
		}
	}
	if s.BlockedMessageID, err = l.readString(ctx, FieldBlockedMessageID); err != nil {
		return State{}, err
	}

	return s, nil
}

// RecordConsumedMessage increments the free-quota message count.
func (l *Ledger) RecordConsumedMessage(ctx context.Context) error {
	_, err := l.addCount(ctx, FieldMessageCount, 1)
	return err
}

// ConsumeBonusConsultation spends one bonus consultation. It returns false
// and writes nothing when the balance is zero.
func (l *Ledger) ConsumeBonusConsultation(ctx context.Context) (bool, error) {
	return l.takeOne(ctx, FieldBonusConsultations)
}

// GrantBonus adds n bonus consultations.
func (l *Ledger) GrantBonus(ctx context.Context, n int) error {
	if n <= 0 {
		return ErrInvalidAmount
	}
	_, err := l.addCount(ctx, FieldBonusConsultations, n)
	return err
}

// GrantPremium sets the premium flag. It reports whether the flag changed;
// a replayed grant writes nothing.
func (l *Ledger) GrantPremium(ctx context.Context) (bool, error) {
	premium, err := l.readBool(ctx, FieldIsPremium)
	if err != nil {
		return false, err
	}
	if premium {
		return false, nil
	}
	return true, l.write(ctx, FieldIsPremium, true)
}

// SetBlockedMessage records the teaser awaiting conversion.
func (l *Ledger) SetBlockedMessage(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyMessageID
	}
	return l.write(ctx, FieldBlockedMessageID, id)
}

// ClearBlockedMessage removes the pending teaser marker.
func (l *Ledger) ClearBlockedMessage(ctx context.Context) error {
	if err := l.store.Remove(ctx, l.Key(FieldBlockedMessageID)); err != nil {
		return fmt.Errorf("remove %s: %w", FieldBlockedMessageID, err)
	}
	return nil
}

// GrantSpins adds n extra spins.
func (l *Ledger) GrantSpins(ctx context.Context, n int) error {
	if n <= 0 {
		return ErrInvalidAmount
	}
	_, err := l.addCount(ctx, FieldSpinBalance, n)
	return err
}

// ConsumeSpin spends one extra spin, returning false when none are left.
func (l *Ledger) ConsumeSpin(ctx context.Context) (bool, error) {
	return l.takeOne(ctx, FieldSpinBalance)
}

// MarkFreeSpinUsed records the date of the daily free spin.
func (l *Ledger) MarkFreeSpinUsed(ctx context.Context, date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return ErrInvalidDate
	}
	return l.write(ctx, FieldLastFreeSpinDate, date)
}

// RecordPayment marks a payment as applied. It returns false when the
// payment was already recorded, letting replays be ignored.
func (l *Ledger) RecordPayment(ctx context.Context, paymentID string) (bool, error) {
	if paymentID == "" {
		return false, ErrEmptyPaymentID
	}
	field := fieldPaymentPrefix + paymentID
	_, found, err := l.store.GetString(ctx, l.Key(field))
	if err != nil {
		return false, fmt.Errorf("read %s: %w", field, err)
	}
	if found {
		return false, nil
	}
	return true, l.write(ctx, field, time.Now().UTC().Format(time.RFC3339))
}

func (l *Ledger) takeOne(ctx context.Context, field string) (bool, error) {
	n, err := l.readCount(ctx, field)
	if err != nil {
		return false, err
	}
	if n <= 0 {
		return false, nil
	}
	return true, l.write(ctx, field, n-1)
}

func (l *Ledger) addCount(ctx context.Context, field string, delta int) (int, error) {
	n, err := l.readCount(ctx, field)
	if err != nil {
		return 0, err
	}
	n += delta
	if n < 0 {
		n = 0
	}
	return n, l.write(ctx, field, n)
}

func (l *Ledger) readCount(ctx context.Context, field string) (int, error) {
	var n int
	if err := l.read(ctx, field, &n); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

func (l *Ledger) readBool(ctx context.Context, field string) (bool, error) {
	var b bool
	err := l.read(ctx, field, &b)
	return b, err
}

func (l *Ledger) readString(ctx context.Context, field string) (string, error) {
	var s string
	err := l.read(ctx, field, &s)
	return s, err
}

// read decodes a field into dst. Missing keys and undecodable values leave
// dst untouched; only store failures are errors.
func (l *Ledger) read(ctx context.Context, field string, dst any) error {
	raw, found, err := l.store.GetString(ctx, l.Key(field))
	if err != nil {
		return fmt.Errorf("read %s: %w", field, err)
	}
	if !found {
		return nil
	}
	_ = json.Unmarshal([]byte(raw), dst)
	return nil
}

func (l *Ledger) write(ctx context.Context, field string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}
	if err := l.store.SetString(ctx, l.Key(field), string(raw)); err != nil {
		return fmt.Errorf("write %s: %w", field, err)
	}
	return nil
}
