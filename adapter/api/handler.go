package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	entapp "github.com/felixgeelhaar/augur/internal/entitlement/application"
	entitlement "github.com/felixgeelhaar/augur/internal/entitlement/domain"
	prizeapp "github.com/felixgeelhaar/augur/internal/prize/application"
	prize "github.com/felixgeelhaar/augur/internal/prize/domain"
	readapp "github.com/felixgeelhaar/augur/internal/reading/application"
	reading "github.com/felixgeelhaar/augur/internal/reading/domain"
	shared "github.com/felixgeelhaar/augur/internal/shared/domain"
	"github.com/felixgeelhaar/augur/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the API endpoints.
type Handler struct {
	readings     *readapp.Service
	entitlements *entapp.Service
	prizes       *prizeapp.Service
	payments     eventbus.Publisher
	clock        func() time.Time
	logger       *slog.Logger
}

// HandlerConfig holds dependencies for the handler.
type HandlerConfig struct {
	Readings     *readapp.Service
	Entitlements *entapp.Service
	Prizes       *prizeapp.Service
	// Payments receives approved-payment events for the worker.
	Payments eventbus.Publisher
	Clock    func() time.Time
	Logger   *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		readings:     cfg.Readings,
		entitlements: cfg.Entitlements,
		prizes:       cfg.Prizes,
		payments:     cfg.Payments,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}
}

type moduleSummary struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	FreeLimit int    `json:"freeLimit"`
	Policy    string `json:"paywallPolicy"`
	Backends  int    `json:"backends"`
}

// ListModules handles GET /api/v1/modules
func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	modules := h.readings.Catalog().All()
	out := make([]moduleSummary, 0, len(modules))
	for _, m := range modules {
		out = append(out, moduleSummary{
			Name:      m.Name,
			Title:     m.Title,
			FreeLimit: m.FreeLimit,
			Policy:    string(m.Policy),
			Backends:  len(m.Backends),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Ask handles POST /api/v1/modules/{module}/readings
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	module := r.PathValue("module")

	var req reading.Request
	if err := decodeBody(r, &req); err != nil {
		resp := reading.ErrorResponse(module, &reading.ValidationError{
			Code:    reading.CodeInvalidRequest,
			Message: "request body must be a JSON object",
		}, h.clock())
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	answer, err := h.readings.Ask(r.Context(), readapp.Input{
		Module:    module,
		SessionID: r.Header.Get(HeaderSessionID),
		Request:   req,
	})
	if err != nil {
		resp := reading.ErrorResponse(module, err, h.clock())
		if resp.Code == reading.CodeInternalError {
			h.logger.ErrorContext(r.Context(), "reading failed", "module", module, "error", err)
		}
		writeJSON(w, reading.HTTPStatus(resp.Code), resp)
		return
	}

	writeJSON(w, http.StatusOK, reading.SuccessResponse(answer, h.clock()))
}

type entitlementResponse struct {
	Module                string            `json:"module"`
	State                 entitlement.State `json:"state"`
	FreeLimit             int               `json:"freeLimit"`
	FreeMessagesRemaining int               `json:"freeMessagesRemaining"`
	PaywallPolicy         string            `json:"paywallPolicy"`
}

// GetEntitlement handles GET /api/v1/modules/{module}/entitlement
func (h *Handler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	scope, module, ok := h.scope(w, r)
	if !ok {
		return
	}

	state, err := h.entitlements.Snapshot(r.Context(), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entitlementResponse{
		Module:                module.Name,
		State:                 state,
		FreeLimit:             module.FreeLimit,
		FreeMessagesRemaining: state.FreeMessagesRemaining(module.FreeLimit),
		PaywallPolicy:         string(module.Policy),
	})
}

// GetSpinStatus handles GET /api/v1/modules/{module}/spin
func (h *Handler) GetSpinStatus(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	status, err := h.prizes.Status(r.Context(), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type spinResponse struct {
	Success bool              `json:"success"`
	Prize   prize.Prize       `json:"prize"`
	Source  prize.SpinSource  `json:"source"`
	State   entitlement.State `json:"state"`
}

// Spin handles POST /api/v1/modules/{module}/spin
func (h *Handler) Spin(w http.ResponseWriter, r *http.Request) {
	scope, _, ok := h.scope(w, r)
	if !ok {
		return
	}

	result, err := h.prizes.Spin(r.Context(), scope)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spinResponse{
		Success: true,
		Prize:   result.Prize,
		Source:  result.Source,
		State:   result.State,
	})
}

// PaymentApproved handles POST /api/v1/payments/approved. The event is
// queued for the worker; premium is granted asynchronously.
func (h *Handler) PaymentApproved(w http.ResponseWriter, r *http.Request) {
	var payment entitlement.PaymentApproved
	if err := decodeBody(r, &payment); err != nil {
		writeError(w, http.StatusBadRequest, string(reading.CodeInvalidRequest), "request body must be a JSON object")
		return
	}

	scope, err := shared.NewScope(payment.Module, payment.SessionID)
	if err != nil || payment.PaymentID == "" {
		writeError(w, http.StatusBadRequest, string(reading.CodeInvalidRequest), "paymentId, module and sessionId are required")
		return
	}
	if _, err := h.readings.Catalog().Get(scope.Module); err != nil {
		h.fail(w, r, err)
		return
	}
	payment.Module, payment.SessionID = scope.Module, scope.Session

	payload, err := json.Marshal(payment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := eventbus.NewEnvelope(r.Context(), uuid.New(), entitlement.RoutingKeyPaymentApproved, scope, h.clock().UTC(), payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.payments.Publish(r.Context(), entitlement.RoutingKeyPaymentApproved, body); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to queue payment", "payment_id", payment.PaymentID, "error", err)
		writeError(w, http.StatusServiceUnavailable, string(reading.CodeServiceOverloaded), "payment could not be queued, retry later")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "paymentId": payment.PaymentID})
}

// scope resolves the module and the X-Session-ID scope of a request.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (shared.Scope, reading.Module, bool) {
	module, err := h.readings.Catalog().Get(r.PathValue("module"))
	if err != nil {
		h.fail(w, r, err)
		return shared.Scope{}, reading.Module{}, false
	}

	scope, err := shared.NewScope(module.Name, r.Header.Get(HeaderSessionID))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(reading.CodeInvalidSession), HeaderSessionID+" header is required")
		return shared.Scope{}, reading.Module{}, false
	}
	return scope, module, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := reading.Classify(err)
	if errors.Is(err, prizeapp.ErrUnknownCatalog) {
		code = reading.CodeUnknownModule
	}
	if code == reading.CodeInternalError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, reading.HTTPStatus(code), string(code), reading.UserMessage(code))
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(dst)
}
