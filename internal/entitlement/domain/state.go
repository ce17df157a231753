package domain

import "time"

// DateLayout is the calendar-date format used for the daily free spin.
const DateLayout = "2006-01-02"

// Today returns the calendar date of t in its own location.
func Today(t time.Time) string {
	return t.Format(DateLayout)
}

// State is the entitlement snapshot of one session within one module.
type State struct {
	// MessageCount counts messages that consumed the free quota.
	MessageCount int `json:"messageCount"`
	// IsPremium grants full access permanently once set.
	IsPremium bool `json:"isPremium"`
	// BonusConsultations are spent before the free quota is checked.
	BonusConsultations int `json:"bonusConsultations"`
	// SpinBalance counts extra spins on top of the daily free spin.
	SpinBalance int `json:"spinBalance"`
	// LastFreeSpinDate is the YYYY-MM-DD date of the last daily free spin.
	LastFreeSpinDate string `json:"lastFreeSpinDate,omitempty"`
	// BlockedMessageID marks the teaser awaiting a conversion action.
	BlockedMessageID string `json:"blockedMessageId,omitempty"`
}

// NextOrdinal is the 1-based position the next message would take if it
// consumed the free quota.
func (s State) NextOrdinal() int {
	return s.MessageCount + 1
}

// FreeMessagesRemaining reports how many free messages are left.
func (s State) FreeMessagesRemaining(freeLimit int) int {
	if rem := freeLimit - s.MessageCount; rem > 0 {
		return rem
	}
	return 0
}

// Blocked reports whether a teaser is pending conversion.
func (s State) Blocked() bool {
	return s.BlockedMessageID != ""
}
