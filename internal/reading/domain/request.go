package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageRunes bounds userMessage.
const MaxMessageRunes = 1500

// HistoryEntry is one prior turn as sent by clients.
type HistoryEntry struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Request is the inbound reading request.
type Request struct {
	UserMessage         string         `json:"userMessage"`
	ModuleContextData   map[string]any `json:"moduleContextData"`
	ConversationHistory []HistoryEntry `json:"conversationHistory,omitempty"`
	// MessageCount is the 1-based ordinal of this message. Only stateless
	// requests use it; session requests read the ledger instead.
	MessageCount  *int `json:"messageCount,omitempty"`
	IsPremiumUser bool `json:"isPremiumUser,omitempty"`

	BirthDate   string `json:"birthDate,omitempty"`
	FullName    string `json:"fullName,omitempty"`
	PartnerName string `json:"partnerName,omitempty"`
	ZodiacSign  string `json:"zodiacSign,omitempty"`
}

// Ordinal returns MessageCount, defaulting to 1.
func (r Request) Ordinal() int {
	if r.MessageCount == nil || *r.MessageCount < 1 {
		return 1
	}
	return *r.MessageCount
}

// Field returns a module-specific optional field by its JSON name.
func (r Request) Field(name string) string {
	switch name {
	case "birthDate":
		return r.BirthDate
	case "fullName":
		return r.FullName
	case "partnerName":
		return r.PartnerName
	case "zodiacSign":
		return r.ZodiacSign
	}
	return ""
}

// Validate rejects requests that must never reach a backend.
func (r Request) Validate(m Module) error {
	msg := strings.TrimSpace(r.UserMessage)
	if msg == "" {
		return &ValidationError{Code: CodeMissingUserMessage, Message: "userMessage is required"}
	}
	if n := utf8.RuneCountInString(msg); n > MaxMessageRunes {
		return &ValidationError{
			Code:    CodeMessageTooLong,
			Message: fmt.Sprintf("userMessage has %d characters, the limit is %d", n, MaxMessageRunes),
		}
	}

	code := m.MissingDataCode
	if code == "" {
		code = MissingDataCode(m.Name)
	}
	if len(r.ModuleContextData) == 0 {
		return &ValidationError{Code: code, Message: "moduleContextData is required"}
	}
	for _, field := range m.RequiredFields {
		if strings.TrimSpace(r.Field(field)) == "" {
			return &ValidationError{Code: code, Message: field + " is required"}
		}
	}
	return nil
}

// Response is the outbound reading response. Response is present iff
// Success; Error and Code are present iff not.
type Response struct {
	Success               bool   `json:"success"`
	Response              string `json:"response,omitempty"`
	Error                 string `json:"error,omitempty"`
	Code                  Code   `json:"code,omitempty"`
	Timestamp             string `json:"timestamp"`
	FreeMessagesRemaining *int   `json:"freeMessagesRemaining,omitempty"`
	ShowPaywall           *bool  `json:"showPaywall,omitempty"`
	PaywallMessage        string `json:"paywallMessage,omitempty"`
	IsCompleteResponse    *bool  `json:"isCompleteResponse,omitempty"`

	Module    string `json:"module,omitempty"`
	Backend   string `json:"backend,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// Answer is a successful reading.
type Answer struct {
	Module                string
	Text                  string
	Complete              bool
	ShowPaywall           bool
	PaywallMessage        string
	FreeMessagesRemaining int
	Backend               string
	Attempts              int
	MessageID             string
}

// SuccessResponse renders an answer.
func SuccessResponse(a Answer, now time.Time) Response {
	return Response{
		Success:               true,
		Response:              a.Text,
		Timestamp:             now.UTC().Format(time.RFC3339Nano),
		FreeMessagesRemaining: &a.FreeMessagesRemaining,
		ShowPaywall:           &a.ShowPaywall,
		PaywallMessage:        a.PaywallMessage,
		IsCompleteResponse:    &a.Complete,
		Module:                a.Module,
		Backend:               a.Backend,
		MessageID:             a.MessageID,
	}
}

// ErrorResponse renders a failure. A quota denial carries the conversion
// prompt.
func ErrorResponse(module string, err error, now time.Time) Response {
	code := Classify(err)
	resp := Response{
		Success:   false,
		Error:     UserMessage(code),
		Code:      code,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Module:    module,
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Message
	}

	var qerr *QuotaError
	if errors.As(err, &qerr) {
		zero, show := 0, true
		resp.FreeMessagesRemaining = &zero
		resp.ShowPaywall = &show
		resp.PaywallMessage = qerr.PaywallMessage
	}
	return resp
}
