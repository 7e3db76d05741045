package production

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dgknshn20/yapigraniterp/internal/platform/httpx"
	"github.com/dgknshn20/yapigraniterp/internal/shared"
)

// Handler exposes contract endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// Routes mounts the contract routes. Status changes are a sales action;
// reads are open to any authenticated actor.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.getContract)
	r.With(shared.RequireRoles(shared.RoleSales)).
		Post("/{id}/status", h.changeStatus)
	return r
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type contractResponse struct {
	ID             int64          `json:"id"`
	ProposalID     int64          `json:"proposal_id"`
	ContractNo     string         `json:"contract_no"`
	ProjectName    string         `json:"project_name"`
	CustomerName   string         `json:"customer_name"`
	SubtotalAmount string         `json:"subtotal_amount"`
	TaxAmount      string         `json:"tax_amount"`
	TotalAmount    string         `json:"total_amount"`
	Currency       string         `json:"currency"`
	Status         ContractStatus `json:"status"`
	Items          []SnapshotItem `json:"items"`
}

func toContractResponse(c *Contract) contractResponse {
	return contractResponse{
		ID:             c.ID,
		ProposalID:     c.ProposalID,
		ContractNo:     c.ContractNo,
		ProjectName:    c.ProjectName,
		CustomerName:   c.CustomerName,
		SubtotalAmount: c.SubtotalAmount.StringFixed(2),
		TaxAmount:      c.TaxAmount.StringFixed(2),
		TotalAmount:    c.TotalAmount.StringFixed(2),
		Currency:       c.Currency,
		Status:         c.Status,
		Items:          c.ItemsSnapshot,
	}
}

func (h *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid contract id")
		return
	}
	c, err := h.svc.repo.GetContract(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toContractResponse(c))
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid contract id")
		return
	}
	var req changeStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	c, err := h.svc.ChangeStatus(r.Context(), id, ContractStatus(req.Status), time.Now().UTC())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toContractResponse(c))
}
