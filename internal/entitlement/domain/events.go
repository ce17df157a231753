package domain

import shared "github.com/felixgeelhaar/augur/internal/shared/domain"

// Routing keys for entitlement events.
const (
	RoutingKeyPremiumGranted  = "entitlement.premium.granted"
	RoutingKeyBonusGranted    = "entitlement.bonus.granted"
	RoutingKeySpinsGranted    = "entitlement.spins.granted"
	RoutingKeyPaymentApproved = "billing.payment.approved"
)

// Grant sources.
const (
	SourcePayment = "payment"
	SourcePrize   = "prize"
	SourceManual  = "manual"
)

// PremiumGranted is emitted the first time premium is set for a scope.
type PremiumGranted struct {
	shared.BaseEvent
	Source    string `json:"source"`
	PaymentID string `json:"paymentId,omitempty"`
}

// NewPremiumGranted creates a PremiumGranted event.
func NewPremiumGranted(scope shared.Scope, source, paymentID string) PremiumGranted {
	return PremiumGranted{
		BaseEvent: shared.NewBaseEvent(scope, RoutingKeyPremiumGranted),
		Source:    source,
		PaymentID: paymentID,
	}
}

// BonusGranted is emitted when bonus consultations are added.
type BonusGranted struct {
	shared.BaseEvent
	Source string `json:"source"`
	Amount int    `json:"amount"`
}

// NewBonusGranted creates a BonusGranted event.
func NewBonusGranted(scope shared.Scope, source string, amount int) BonusGranted {
	return BonusGranted{
		BaseEvent: shared.NewBaseEvent(scope, RoutingKeyBonusGranted),
		Source:    source,
		Amount:    amount,
	}
}

// SpinsGranted is emitted when extra spins are added.
type SpinsGranted struct {
	shared.BaseEvent
	Source string `json:"source"`
	Amount int    `json:"amount"`
}

// NewSpinsGranted creates a SpinsGranted event.
func NewSpinsGranted(scope shared.Scope, source string, amount int) SpinsGranted {
	return SpinsGranted{
		BaseEvent: shared.NewBaseEvent(scope, RoutingKeySpinsGranted),
		Source:    source,
		Amount:    amount,
	}
}

// PaymentApproved is the payload the payment processor delivers on the bus.
type PaymentApproved struct {
	PaymentID string `json:"paymentId"`
	Module    string `json:"module"`
	SessionID string `json:"sessionId"`
}
