package finance

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dgknshn20/yapigraniterp/internal/platform/httpx"
	"github.com/dgknshn20/yapigraniterp/internal/shared"
)

// Handler exposes payment plan endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// Routes mounts the payment plan routes. Money movement is restricted to
// finance staff.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.getPlan)
	r.With(shared.RequireRoles(shared.RoleFinance)).Group(func(r chi.Router) {
		r.Post("/{id}/pay-installment", h.payInstallment)
		r.Post("/{id}/rebuild", h.rebuild)
	})
	return r
}

type payInstallmentRequest struct {
	InstallmentID   int64  `json:"installment_id" validate:"required,min=1"`
	TargetAccountID int64  `json:"target_account_id" validate:"required,min=1"`
	Description     string `json:"description"`
}

type rebuildRequest struct {
	PaymentMethod string        `json:"payment_method"`
	Installments  int           `json:"installments" validate:"min=0"`
	FirstDueDate  time.Time     `json:"first_due_date"`
	Explicit      []explicitRow `json:"explicit_schedule"`
}

type explicitRow struct {
	No      int        `json:"no"`
	DueDate *time.Time `json:"due_date"`
	Amount  string     `json:"amount" validate:"required"`
	Method  string     `json:"method"`
}

type installmentResponse struct {
	ID            int64             `json:"id"`
	No            int               `json:"no"`
	DueDate       time.Time         `json:"due_date"`
	Amount        string            `json:"amount"`
	Currency      string            `json:"currency"`
	Method        PaymentMethod     `json:"method"`
	Status        InstallmentStatus `json:"status"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	TransactionID *int64            `json:"transaction_id,omitempty"`
}

type planResponse struct {
	ID               int64                 `json:"id"`
	ContractID       int64                 `json:"contract_id"`
	TotalAmount      string                `json:"total_amount"`
	Currency         string                `json:"currency"`
	Method           PaymentMethod         `json:"method"`
	InstallmentCount int                   `json:"installment_count"`
	StartDate        time.Time             `json:"start_date"`
	Installments     []installmentResponse `json:"installments"`
}

func toInstallmentResponse(inst *Installment) installmentResponse {
	return installmentResponse{
		ID:            inst.ID,
		No:            inst.No,
		DueDate:       inst.DueDate,
		Amount:        inst.Amount.StringFixed(2),
		Currency:      inst.Currency,
		Method:        inst.Method,
		Status:        inst.Status,
		PaidAt:        inst.PaidAt,
		TransactionID: inst.TransactionID,
	}
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid plan id")
		return
	}
	h.respondPlan(w, r, id)
}

// respondPlan writes the full plan view, installments included.
func (h *Handler) respondPlan(w http.ResponseWriter, r *http.Request, planID int64) {
	plan, err := h.svc.repo.GetPlan(r.Context(), planID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	installments, err := h.svc.repo.ListInstallments(r.Context(), plan.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	resp := planResponse{
		ID:               plan.ID,
		ContractID:       plan.ContractID,
		TotalAmount:      plan.TotalAmount.StringFixed(2),
		Currency:         plan.Currency,
		Method:           plan.Method,
		InstallmentCount: plan.InstallmentCount,
		StartDate:        plan.StartDate,
	}
	for i := range installments {
		resp.Installments = append(resp.Installments, toInstallmentResponse(&installments[i]))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) payInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid plan id")
		return
	}
	var req payInstallmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if _, err := h.svc.PayInstallment(r.Context(), id, req.InstallmentID, req.TargetAccountID, req.Description, time.Now().UTC()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondPlan(w, r, id)
}

func (h *Handler) rebuild(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid plan id")
		return
	}
	// Body is optional; a bare rebuild regenerates from the stored plan.
	var req rebuildRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}

	schedule := ScheduleRequest{
		PaymentMethod: req.PaymentMethod,
		Installments:  req.Installments,
		FirstDue:      req.FirstDueDate,
	}
	for _, row := range req.Explicit {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid installment amount")
			return
		}
		schedule.Explicit = append(schedule.Explicit, ExplicitInstallment{
			No:      row.No,
			DueDate: row.DueDate,
			Amount:  amount,
			Method:  PaymentMethod(row.Method),
		})
	}

	plan, err := h.svc.Rebuild(r.Context(), id, schedule, time.Now().UTC())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":                plan.ID,
		"contract_id":       plan.ContractID,
		"method":            plan.Method,
		"installment_count": plan.InstallmentCount,
	})
}
