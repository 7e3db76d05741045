package crm

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/dgknshn20/yapigraniterp/internal/finance"
	"github.com/dgknshn20/yapigraniterp/internal/inventory"
	"github.com/dgknshn20/yapigraniterp/internal/platform/httpx"
	"github.com/dgknshn20/yapigraniterp/internal/shared"
	"github.com/dgknshn20/yapigraniterp/jobs"
)

// Handler exposes proposal endpoints.
type Handler struct {
	svc      *Service
	jobs     *jobs.Client
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(svc *Service, jobsClient *jobs.Client, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, jobs: jobsClient, logger: logger, validate: validator.New()}
}

// Routes mounts the proposal routes. Finalize is a sales action.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.getProposal)
	r.With(shared.RequireRoles(shared.RoleSales)).Post("/{id}/finalize", h.finalize)
	return r
}

type finalizeRequest struct {
	PaymentMethod    string               `json:"payment_method"`
	InstallmentCount int                  `json:"installment_count" validate:"min=0"`
	FirstDueDate     *time.Time           `json:"first_due_date"`
	Installments     []installmentHintRow `json:"installments" validate:"dive"`
}

type installmentHintRow struct {
	InstallmentNo int        `json:"installment_no"`
	DueDate       *time.Time `json:"due_date"`
	Amount        string     `json:"amount" validate:"required"`
	Method        string     `json:"method"`
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid proposal id")
		return
	}

	// Payment hints are optional; an empty body finalizes with proposal
	// defaults.
	var req finalizeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	payload := FinalizePayload{
		PaymentMethod:    req.PaymentMethod,
		InstallmentCount: req.InstallmentCount,
		FirstDueDate:     req.FirstDueDate,
	}
	for _, row := range req.Installments {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid installment amount")
			return
		}
		payload.Installments = append(payload.Installments, finance.ExplicitInstallment{
			No:      row.InstallmentNo,
			DueDate: row.DueDate,
			Amount:  amount,
			Method:  finance.PaymentMethod(row.Method),
		})
	}

	actor := shared.ActorFromContext(r.Context())
	result, err := h.svc.Finalize(r.Context(), id, actor, payload)
	if err != nil {
		respondCRMError(w, err)
		return
	}

	// The holds created here expire after the reservation window; schedule
	// a sweep at that horizon in addition to the worker cron.
	if h.jobs != nil {
		if _, err := h.jobs.EnqueueReservationSweep(r.Context(), jobs.ReservationSweepPayload{},
			asynq.ProcessIn(h.svc.ReservationWindow()), asynq.MaxRetry(3)); err != nil && h.logger != nil {
			h.logger.Warn("enqueue reservation sweep", slog.Any("error", err))
		}
	}

	httpx.JSON(w, http.StatusOK, BuildProposalView(result.Proposal, result.Customer, result.Items, actor.Role))
}

func (h *Handler) getProposal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid proposal id")
		return
	}

	p, err := h.svc.repo.GetProposal(r.Context(), id)
	if err != nil {
		respondCRMError(w, err)
		return
	}
	customer, err := h.svc.repo.GetCustomer(r.Context(), p.CustomerID)
	if err != nil {
		respondCRMError(w, err)
		return
	}
	items, err := h.svc.repo.ListItems(r.Context(), p.ID)
	if err != nil {
		respondCRMError(w, err)
		return
	}

	actor := shared.ActorFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, BuildProposalView(p, customer, items, actor.Role))
}

// respondCRMError hands domain errors to httpx.RespondError; the slab
// conflict keeps its dedicated 400 title because the detail names the slab.
func respondCRMError(w http.ResponseWriter, err error) {
	if errors.Is(err, inventory.ErrSlabConflict) {
		httpx.Problem(w, http.StatusBadRequest, "Reservation Conflict", err.Error())
		return
	}
	httpx.RespondError(w, err)
}
