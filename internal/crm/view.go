package crm

import (
	"time"

	"github.com/dgknshn20/yapigraniterp/internal/shared"
)

// ItemView is one line of a proposal view. Money fields are empty strings
// for roles that must not see pricing.
type ItemView struct {
	ID          int64  `json:"id"`
	ProductName string `json:"product_name"`
	Description string `json:"description"`
	StoneType   string `json:"stone_type"`
	SizeText    string `json:"size_text"`
	Width       string `json:"width"`
	Length      string `json:"length"`
	Quantity    int    `json:"quantity"`
	AreaM2      string `json:"area_m2"`
	UnitPrice   string `json:"unit_price,omitempty"`
	TotalPrice  string `json:"total_price,omitempty"`
}

// ProposalView is the role-shaped representation of a proposal with its
// derived totals.
type ProposalView struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number"`
	Status        ProposalStatus `json:"status"`
	CustomerName  string         `json:"customer_name"`
	ProjectName   string         `json:"project_name"`
	Currency      string         `json:"currency"`
	IncludeTax    bool           `json:"include_tax"`
	TaxRate       string         `json:"tax_rate,omitempty"`
	Subtotal      string         `json:"subtotal,omitempty"`
	TaxAmount     string         `json:"tax_amount,omitempty"`
	GrandTotal    string         `json:"grand_total,omitempty"`
	ValidUntil    *time.Time     `json:"valid_until,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	InternalNotes string         `json:"internal_notes,omitempty"`
	Items         []ItemView     `json:"items"`
}

// BuildProposalView shapes a proposal for the caller's role. Production
// staff see dimensions but no money; internal notes are limited to admins
// and sales.
func BuildProposalView(p *Proposal, customer *Customer, items []ProposalItem, role shared.Role) ProposalView {
	showMoney := role != shared.RoleProduction
	showInternal := role == shared.RoleAdmin || role == shared.RoleSales

	view := ProposalView{
		ID:           p.ID,
		Number:       p.Number,
		Status:       p.Status,
		CustomerName: customer.Name,
		ProjectName:  p.ProjectName,
		Currency:     p.Currency,
		IncludeTax:   p.IncludeTax,
		ValidUntil:   p.ValidUntil,
		Notes:        p.Notes,
	}
	if showMoney {
		totals := ProposalTotals(p.TotalAmount, p.TaxRate, p.IncludeTax)
		view.TaxRate = p.TaxRate.String()
		view.Subtotal = totals.Subtotal.StringFixed(2)
		view.TaxAmount = totals.Tax.StringFixed(2)
		view.GrandTotal = totals.GrandTotal.StringFixed(2)
	}
	if showInternal {
		view.InternalNotes = p.InternalNotes
	}

	view.Items = make([]ItemView, 0, len(items))
	for _, item := range items {
		iv := ItemView{
			ID:          item.ID,
			ProductName: item.ProductName,
			Description: item.Description,
			StoneType:   item.StoneType,
			SizeText:    item.SizeText,
			Width:       item.Width.String(),
			Length:      item.Length.String(),
			Quantity:    item.Quantity,
			AreaM2:      ItemArea(item).String(),
		}
		if showMoney {
			iv.UnitPrice = item.UnitPrice.StringFixed(2)
			iv.TotalPrice = ItemTotal(item).StringFixed(2)
		}
		view.Items = append(view.Items, iv)
	}
	return view
}
