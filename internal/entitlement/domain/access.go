package domain

import (
	"fmt"
	"strings"
)

// DefaultFreeLimit is the number of free full answers per module.
const DefaultFreeLimit = 3

// Access is the outcome of an access decision.
type Access string

const (
	AccessFull   Access = "FULL"
	AccessTeaser Access = "TEASER"
	AccessDeny   Access = "DENY"
)

// Consumption names the ledger mutation a successful FULL answer owes.
type Consumption int

const (
	ConsumeNothing Consumption = iota
	ConsumeBonus
	ConsumeFreeQuota
)

func (c Consumption) String() string {
	switch c {
	case ConsumeBonus:
		return "bonus"
	case ConsumeFreeQuota:
		return "free_quota"
	default:
		return "none"
	}
}

// PaywallPolicy selects what happens once the free quota is exhausted.
type PaywallPolicy string

const (
	// PolicyHardDeny refuses every message past the free limit.
	PolicyHardDeny PaywallPolicy = "hard_deny"
	// PolicyTeaserThenBlock answers the first over-quota message as a
	// teaser and refuses the following ones until access is restored.
	PolicyTeaserThenBlock PaywallPolicy = "teaser_then_block"
)

// ParsePaywallPolicy parses a policy name, accepting '-' for '_'.
func ParsePaywallPolicy(s string) (PaywallPolicy, error) {
	p := PaywallPolicy(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch p {
	case PolicyHardDeny, PolicyTeaserThenBlock:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Decision is the result of Decide.
type Decision struct {
	Access  Access
	Consume Consumption
}

// ShowPaywall reports whether the caller must be shown a conversion prompt.
func (d Decision) ShowPaywall() bool {
	return d.Access != AccessFull
}

// Decide grants access in this order: premium, bonus consultation, free
// quota, then the paywall policy. It never mutates state; the returned
// Consumption tells the caller what to record once the answer succeeded.
func Decide(state State, nextOrdinal, freeLimit int, policy PaywallPolicy) Decision {
	switch {
	case state.IsPremium:
		return Decision{Access: AccessFull, Consume: ConsumeNothing}
	case state.BonusConsultations > 0:
		return Decision{Access: AccessFull, Consume: ConsumeBonus}
	case nextOrdinal <= freeLimit:
		return Decision{Access: AccessFull, Consume: ConsumeFreeQuota}
	}

	if policy == PolicyTeaserThenBlock && !state.Blocked() {
		return Decision{Access: AccessTeaser, Consume: ConsumeNothing}
	}
	return Decision{Access: AccessDeny, Consume: ConsumeNothing}
}
