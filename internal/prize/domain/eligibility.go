package domain

import entitlement "github.com/felixgeelhaar/augur/internal/entitlement/domain"

// SpinSource says which allowance a spin consumes.
type SpinSource string

const (
	SpinFromBalance SpinSource = "balance"
	SpinDailyFree   SpinSource = "daily_free"
)

// CanSpin reports whether a spin is available today: an extra spin in
// the balance, or the daily free spin not yet used on this date.
func CanSpin(state entitlement.State, today string) bool {
	_, ok := NextSpinSource(state, today)
	return ok
}

// NextSpinSource picks the allowance the next spin would consume. Extra
// spins are preferred over the daily free spin.
func NextSpinSource(state entitlement.State, today string) (SpinSource, bool) {
	if state.SpinBalance > 0 {
		return SpinFromBalance, true
	}
	if state.LastFreeSpinDate == "" || state.LastFreeSpinDate != today {
		return SpinDailyFree, true
	}
	return "", false
}
