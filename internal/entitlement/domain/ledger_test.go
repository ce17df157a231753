package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/augur/internal/entitlement/domain"
	"github.com/felixgeelhaar/augur/internal/entitlement/infrastructure/persistence"
	shared "github.com/felixgeelhaar/augur/internal/shared/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScope = shared.Scope{Module: "numerology", Session: "sess-1"}

func newLedger() (*domain.Ledger, *persistence.MemoryStore) {
	store := persistence.NewMemoryStore()
	return domain.NewLedger(store, testScope), store
}

// countingStore counts writes to check that no-op operations do not mutate.
type countingStore struct {
	*persistence.MemoryStore
	writes int
}

func (s *countingStore) SetString(ctx context.Context, key, value string) error {
	s.writes++
	return s.MemoryStore.SetString(ctx, key, value)
}

func (s *countingStore) Remove(ctx context.Context, key string) error {
	s.writes++
	return s.MemoryStore.Remove(ctx, key)
}

type brokenStore struct{}

func (brokenStore) GetString(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store offline")
}
func (brokenStore) SetString(context.Context, string, string) error {
	return errors.New("store offline")
}
func (brokenStore) Remove(context.Context, string) error { return errors.New("store offline") }

func TestLedger_ReadFresh(t *testing.T) {
	ledger, _ := newLedger()

	state, err := ledger.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.State{}, state)
	assert.Equal(t, 1, state.NextOrdinal())
	assert.Equal(t, 3, state.FreeMessagesRemaining(3))
}

func TestLedger_Key(t *testing.T) {
	ledger, _ := newLedger()
	assert.Equal(t, "augur:numerology:sess-1:message_count", ledger.Key(domain.FieldMessageCount))
}

func TestLedger_Mutations(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()

	require.NoError(t, ledger.RecordConsumedMessage(ctx))
	require.NoError(t, ledger.RecordConsumedMessage(ctx))
	require.NoError(t, ledger.GrantBonus(ctx, 2))
	require.NoError(t, ledger.GrantSpins(ctx, 1))
	require.NoError(t, ledger.SetBlockedMessage(ctx, "msg-1"))
	require.NoError(t, ledger.MarkFreeSpinUsed(ctx, "2026-10-19"))

	state, err := ledger.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.State{
		MessageCount:       2,
		BonusConsultations: 2,
		SpinBalance:        1,
		LastFreeSpinDate:   "2026-10-19",
		BlockedMessageID:   "msg-1",
	}, state)

	ok, err := ledger.ConsumeBonusConsultation(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.ConsumeSpin(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, ledger.ClearBlockedMessage(ctx))

	state, err = ledger.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, state.BonusConsultations)
	assert.Equal(t, 0, state.SpinBalance)
	assert.False(t, state.Blocked())
}

func TestLedger_ConsumeBonusAtZeroDoesNotMutate(t *testing.T) {
	store := &countingStore{MemoryStore: persistence.NewMemoryStore()}
	ledger := domain.NewLedger(store, testScope)

	ok, err := ledger.ConsumeBonusConsultation(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.writes)

	state, err := ledger.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, state.BonusConsultations)
}

func TestLedger_GrantPremiumIsIdempotent(t *testing.T) {
	store := &countingStore{MemoryStore: persistence.NewMemoryStore()}
	ledger := domain.NewLedger(store, testScope)
	ctx := context.Background()

	changed, err := ledger.GrantPremium(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = ledger.GrantPremium(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, store.writes)

	state, err := ledger.Read(ctx)
	require.NoError(t, err)
	assert.True(t, state.IsPremium)
}

func TestLedger_RecordPayment(t *testing.T) {
	ledger, _ := newLedger()
	ctx := context.Background()

	first, err := ledger.RecordPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = ledger.RecordPayment(ctx, "pay-1")
	require.NoError(t, err)
	assert.False(t, first)

	_, err = ledger.RecordPayment(ctx, "")
	assert.ErrorIs(t, err, domain.ErrEmptyPaymentID)
}

func TestLedger_ReadClampsCorruptValues(t *testing.T) {
	ctx := context.Background()
	ledger, store := newLedger()

	require.NoError(t, store.SetString(ctx, ledger.Key(domain.FieldMessageCount), "-4"))
	require.NoError(t, store.SetString(ctx, ledger.Key(domain.FieldBonusConsultations), "not json"))
	require.NoError(t, store.SetString(ctx, ledger.Key(domain.FieldSpinBalance), `"7"`))
	require.NoError(t, store.SetString(ctx, ledger.Key(domain.FieldIsPremium), "yes"))
	require.NoError(t, store.SetString(ctx, ledger.Key(domain.FieldLastFreeSpinDate), `"19/10/2026"`))

	state, err := ledger.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.State{}, state)

	// Decrementing a clamped counter never goes negative.
	ok, err := ledger.ConsumeBonusConsultation(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_Validation(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()

	assert.ErrorIs(t, ledger.GrantBonus(ctx, 0), domain.ErrInvalidAmount)
	assert.ErrorIs(t, ledger.GrantSpins(ctx, -1), domain.ErrInvalidAmount)
	assert.ErrorIs(t, ledger.SetBlockedMessage(ctx, ""), domain.ErrEmptyMessageID)
	assert.ErrorIs(t, ledger.MarkFreeSpinUsed(ctx, "today"), domain.ErrInvalidDate)
}

func TestLedger_StoreErrorsPropagate(t *testing.T) {
	ledger := domain.NewLedger(brokenStore{}, testScope)

	_, err := ledger.Read(context.Background())
	assert.ErrorContains(t, err, "store offline")

	assert.Error(t, ledger.RecordConsumedMessage(context.Background()))
	assert.Error(t, ledger.ClearBlockedMessage(context.Background()))
}

func TestLedger_ScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	a := domain.NewLedger(store, shared.Scope{Module: "love", Session: "a"})
	b := domain.NewLedger(store, shared.Scope{Module: "love", Session: "b"})
	c := domain.NewLedger(store, shared.Scope{Module: "dreams", Session: "a"})

	_, err := a.GrantPremium(ctx)
	require.NoError(t, err)

	for _, other := range []*domain.Ledger{b, c} {
		state, err := other.Read(ctx)
		require.NoError(t, err)
		assert.False(t, state.IsPremium)
	}
}

// Every prefix of the two-write grant sequence (grant, then clear block)
// must still decide to something the invariants allow.
func TestLedger_PartialGrantStillSatisfiesInvariants(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newLedger()

	for i := 0; i < 3; i++ {
		require.NoError(t, ledger.RecordConsumedMessage(ctx))
	}
	require.NoError(t, ledger.SetBlockedMessage(ctx, "teaser-1"))

	// Crash after the premium write, before the block is cleared.
	_, err := ledger.GrantPremium(ctx)
	require.NoError(t, err)

	state, err := ledger.Read(ctx)
	require.NoError(t, err)
	d := domain.Decide(state, state.NextOrdinal(), domain.DefaultFreeLimit, domain.PolicyTeaserThenBlock)
	assert.Equal(t, domain.AccessFull, d.Access)
}
