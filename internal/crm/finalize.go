package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgknshn20/yapigraniterp/internal/core"
	"github.com/dgknshn20/yapigraniterp/internal/finance"
	"github.com/dgknshn20/yapigraniterp/internal/inventory"
	"github.com/dgknshn20/yapigraniterp/internal/production"
	"github.com/dgknshn20/yapigraniterp/internal/shared"
)

// Audit actions written by the finalize workflow, one row per step.
const (
	AuditContractCreated = "CONTRACT_CREATED"
	AuditPaymentPlan     = "PAYMENT_PLAN"
	AuditReservations    = "RESERVATIONS"
	AuditWorkOrders      = "WORK_ORDERS"
	AuditAppointment     = "APPOINTMENT"
	AuditTask            = "TASK"
	AuditApprovalFlow    = "APPROVAL_FLOW"
)

// defaultInstallmentCount applies when the payload requests installments
// without saying how many.
const defaultInstallmentCount = 4

// FinalizePayload carries the optional payment plan hints of a finalize
// call. Zero values fall back to proposal data.
type FinalizePayload struct {
	PaymentMethod    string
	InstallmentCount int
	FirstDueDate     *time.Time
	Installments     []finance.ExplicitInstallment
}

// FinalizeResult is everything a caller needs to render the updated
// proposal after a successful run.
type FinalizeResult struct {
	Proposal     *Proposal
	Items        []ProposalItem
	Customer     *Customer
	Contract     *production.Contract
	Plan         *finance.PaymentPlan
	Reservations []inventory.StockReservation
}

// Service drives the proposal-to-contract conversion workflow.
type Service struct {
	repo   Repository
	window time.Duration
	logger *slog.Logger
}

func NewService(repo Repository, window time.Duration, logger *slog.Logger) *Service {
	if window <= 0 {
		window = inventory.DefaultReservationWindow
	}
	return &Service{repo: repo, window: window, logger: logger}
}

// ReservationWindow reports how long finalize soft-holds stock.
func (s *Service) ReservationWindow() time.Duration {
	return s.window
}

// Finalize converts a DRAFT or APPROVED proposal into a contract with its
// payment plan, stock reservations, work orders, appointment, task, audit
// trail and notifications — all in one transaction. The operation is
// idempotent: re-running refreshes fields but never duplicates rows. Any
// failure rolls the whole transaction back, including the status change.
func (s *Service) Finalize(ctx context.Context, proposalID int64, actor shared.Actor, payload FinalizePayload) (*FinalizeResult, error) {
	now := time.Now().UTC()
	var result *FinalizeResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, st Stores) error {
		r, err := s.finalize(ctx, st, proposalID, actor, payload, now)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) finalize(ctx context.Context, st Stores, proposalID int64, actor shared.Actor, payload FinalizePayload, now time.Time) (*FinalizeResult, error) {
	// Step 1: lock the proposal and move it to APPROVED.
	p, err := st.CRM.GetProposalForUpdate(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != ProposalDraft && p.Status != ProposalApproved {
		return nil, fmt.Errorf("%w: proposal %d is %s", shared.ErrInvalidStatus, p.ID, p.Status)
	}
	if p.Status != ProposalApproved {
		if err := st.CRM.SetProposalStatus(ctx, p.ID, ProposalApproved); err != nil {
			return nil, fmt.Errorf("approve proposal %d: %w", p.ID, err)
		}
		p.Status = ProposalApproved
	}

	customer, err := st.CRM.GetCustomer(ctx, p.CustomerID)
	if err != nil {
		return nil, err
	}
	items, err := st.CRM.ListItems(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list items for proposal %d: %w", p.ID, err)
	}
	totals := ProposalTotals(p.TotalAmount, p.TaxRate, p.IncludeTax)

	// Step 2: materialize the contract.
	contract, created, err := production.EnsureContract(ctx, st.Production, buildSnapshot(p, customer, items, totals), now)
	if err != nil {
		return nil, err
	}

	// Step 3: build the payment plan.
	plan, err := finance.EnsurePlan(ctx, st.Finance, finance.PlanInput{
		ContractID: contract.ID,
		Schedule:   buildScheduleRequest(p, totals, payload, now),
	}, now)
	if err != nil {
		return nil, err
	}

	// Step 4: ensure stock reservations. A slab conflict aborts everything.
	reservations, err := inventory.EnsureReservations(ctx, st.Inventory, contract.ID, reservationRequests(items), now, s.window)
	if err != nil {
		return nil, err
	}

	// Step 5: ensure work orders.
	workOrders, err := production.EnsureWorkOrders(ctx, st.Production, contract, workOrderInputs(items), now)
	if err != nil {
		return nil, err
	}

	// Step 6: ensure the follow-up appointment.
	appointment, err := EnsureAppointment(ctx, st.CRM, customer.ID, p.ID,
		fmt.Sprintf("Contract signature meeting (%s)", contract.ContractNo),
		fmt.Sprintf("Proposal %s approved; collect signature for contract %s.", p.Number, contract.ContractNo),
		now)
	if err != nil {
		return nil, err
	}

	// Step 7: upsert the signature-reminder task.
	due := now.Add(appointmentLeadTime)
	task, _, err := core.EnsureTask(ctx, st.Core, core.Task{
		Title:        fmt.Sprintf("Collect signature for contract %s", contract.ContractNo),
		Description:  fmt.Sprintf("Customer %s, total %s %s.", customer.Name, totals.GrandTotal.StringFixed(2), p.Currency),
		DueDate:      &due,
		AssigneeRole: shared.RoleSales,
		SourceType:   SourceProposal,
		SourceID:     p.ID,
	})
	if err != nil {
		return nil, err
	}

	// Step 8: one audit row per step, keyed (proposal, action).
	contractMsg := fmt.Sprintf("Contract %s refreshed", contract.ContractNo)
	if created {
		contractMsg = fmt.Sprintf("Contract %s created", contract.ContractNo)
	}
	audits := []AuditEntry{
		{Action: AuditContractCreated, Message: contractMsg},
		{Action: AuditPaymentPlan, Message: fmt.Sprintf("Payment plan %d with %d installment(s)", plan.ID, plan.InstallmentCount)},
		{Action: AuditReservations, Message: fmt.Sprintf("%d stock reservation(s) ensured", len(reservations))},
		{Action: AuditWorkOrders, Message: fmt.Sprintf("%d work order(s) ensured", len(workOrders))},
		{Action: AuditAppointment, Message: fmt.Sprintf("Appointment %d scheduled for %s", appointment.ID, appointment.DueAt.Format("2006-01-02"))},
		{Action: AuditTask, Message: fmt.Sprintf("Task %d assigned to %s", task.ID, task.AssigneeRole)},
	}
	for _, entry := range audits {
		entry.ProposalID = p.ID
		entry.ActorID = actor.ID
		if err := st.CRM.UpsertAudit(ctx, &entry); err != nil {
			return nil, fmt.Errorf("audit %s: %w", entry.Action, err)
		}
	}

	// Step 9: upsert the approval flow receipt and its audit row.
	if err := s.ensureApprovalFlow(ctx, st, p.ID, actor, contract.ID, plan.ID, reservations, now); err != nil {
		return nil, err
	}

	// Step 10: deduplicated notifications to sales and admins.
	if err := s.notifyFinalized(ctx, st, p, contract, totals, now); err != nil {
		return nil, err
	}

	// Step 11: idempotent dashboard delta events.
	if err := s.emitEvents(ctx, st, p, totals, now); err != nil {
		return nil, err
	}

	s.logger.Info("proposal finalized",
		"proposal_id", p.ID,
		"contract_id", contract.ID,
		"contract_no", contract.ContractNo,
		"created", created,
		"reservations", len(reservations),
		"actor_id", actor.ID)

	return &FinalizeResult{
		Proposal:     p,
		Items:        items,
		Customer:     customer,
		Contract:     contract,
		Plan:         plan,
		Reservations: reservations,
	}, nil
}

func (s *Service) ensureApprovalFlow(ctx context.Context, st Stores, proposalID int64, actor shared.Actor, contractID, planID int64, reservations []inventory.StockReservation, now time.Time) error {
	ids := make([]int64, 0, len(reservations))
	for _, res := range reservations {
		ids = append(ids, res.ID)
	}

	flow, err := st.CRM.GetApprovalFlow(ctx, proposalID)
	switch {
	case err == nil:
		flow.ApprovedByID = actor.ID
		flow.ContractID = contractID
		flow.PaymentPlanID = planID
		flow.ReservationIDs = ids
		if err := st.CRM.UpdateApprovalFlow(ctx, flow); err != nil {
			return fmt.Errorf("update approval flow %d: %w", flow.ID, err)
		}
	case errors.Is(err, ErrApprovalFlowNotFound):
		flow = &ApprovalFlow{
			ProposalID:     proposalID,
			ApprovedByID:   actor.ID,
			ApprovedAt:     now,
			ContractID:     contractID,
			PaymentPlanID:  planID,
			ReservationIDs: ids,
		}
		if err := st.CRM.CreateApprovalFlow(ctx, flow); err != nil {
			return fmt.Errorf("create approval flow: %w", err)
		}
	default:
		return fmt.Errorf("lookup approval flow: %w", err)
	}

	return st.CRM.UpsertAudit(ctx, &AuditEntry{
		ProposalID: proposalID,
		Action:     AuditApprovalFlow,
		Message:    fmt.Sprintf("Approval recorded by actor %d", actor.ID),
		ActorID:    actor.ID,
	})
}

func (s *Service) notifyFinalized(ctx context.Context, st Stores, p *Proposal, contract *production.Contract, totals Totals, now time.Time) error {
	title := "Proposal finalized"
	body := fmt.Sprintf("Proposal %s became contract %s (%s %s)", p.Number, contract.ContractNo, totals.GrandTotal.StringFixed(2), p.Currency)
	for _, role := range []shared.Role{shared.RoleSales, shared.RoleAdmin} {
		if _, err := core.NotifyOnce(ctx, st.Core, core.Notification{
			RecipientRole: role,
			Title:         title,
			Body:          body,
			Topic:         "proposal_finalized",
			SourceType:    SourceProposal,
			SourceID:      p.ID,
		}, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) emitEvents(ctx context.Context, st Stores, p *Proposal, totals Totals, now time.Time) error {
	events := []core.SystemEvent{
		{EventType: "OFFER_FINALIZED", OfferID: p.ID, Metric: "contract_count", Payload: "1"},
		{EventType: "OFFER_FINALIZED", OfferID: p.ID, Metric: "contract_value", Payload: totals.GrandTotal.StringFixed(2)},
	}
	for _, ev := range events {
		if _, err := core.EmitEventOnce(ctx, st.Core, ev, now); err != nil {
			return err
		}
	}
	return nil
}

func buildSnapshot(p *Proposal, customer *Customer, items []ProposalItem, totals Totals) production.ProposalSnapshot {
	snap := production.ProposalSnapshot{
		ProposalID:        p.ID,
		ProposalNumber:    p.Number,
		ProjectName:       p.ProjectName,
		JobAddress:        p.JobAddress,
		CustomerName:      customer.Name,
		CustomerAddress:   customer.Address,
		CustomerPhone:     customer.Phone,
		CustomerEmail:     customer.Email,
		CustomerTaxNumber: customer.TaxNumber,
		CustomerTaxOffice: customer.TaxOffice,
		Subtotal:          totals.Subtotal,
		Tax:               totals.Tax,
		Discount:          p.DiscountAmount,
		Total:             totals.GrandTotal,
		Currency:          p.Currency,
		IncludeTax:        p.IncludeTax,
		TaxRate:           p.TaxRate,
		ValidUntil:        p.ValidUntil,
		Notes:             p.Notes,
	}
	snap.Items = make([]production.SnapshotItem, 0, len(items))
	for _, item := range items {
		var measure *string
		if item.TotalMeasure != nil {
			v := item.TotalMeasure.String()
			measure = &v
		}
		snap.Items = append(snap.Items, production.SnapshotItem{
			ProposalItemID: item.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			SlabID:         item.SlabID,
			SlabBarcode:    item.SlabBarcode,
			Description:    item.Description,
			StoneType:      item.StoneType,
			SizeText:       item.SizeText,
			TotalMeasure:   measure,
			TotalUnit:      item.TotalUnit,
			Width:          item.Width.String(),
			Length:         item.Length.String(),
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice.String(),
			FireRate:       item.FireRate.String(),
			LaborCost:      item.LaborCost.String(),
			TotalPrice:     ItemTotal(item).String(),
			AreaM2:         ItemArea(item).String(),
		})
	}
	return snap
}

func buildScheduleRequest(p *Proposal, totals Totals, payload FinalizePayload, now time.Time) finance.ScheduleRequest {
	method := payload.PaymentMethod
	if method == "" {
		method = p.PaymentMethod
	}
	count := payload.InstallmentCount
	if count <= 0 {
		count = defaultInstallmentCount
	}
	firstDue := now
	if p.ValidUntil != nil {
		firstDue = *p.ValidUntil
	}
	if payload.FirstDueDate != nil {
		firstDue = *payload.FirstDueDate
	}
	return finance.ScheduleRequest{
		Total:         totals.GrandTotal,
		Currency:      p.Currency,
		PaymentMethod: method,
		Installments:  count,
		FirstDue:      firstDue,
		Explicit:      payload.Installments,
	}
}

func reservationRequests(items []ProposalItem) []inventory.ReservationRequest {
	reqs := make([]inventory.ReservationRequest, 0, len(items))
	for _, item := range items {
		reqs = append(reqs, inventory.ReservationRequest{
			ProposalItemID: item.ID,
			ProductID:      item.ProductID,
			SlabID:         item.SlabID,
			AreaM2:         ItemArea(item),
		})
	}
	return reqs
}

func workOrderInputs(items []ProposalItem) []production.WorkOrderInput {
	inputs := make([]production.WorkOrderInput, 0, len(items))
	for _, item := range items {
		base := item.Description
		if base == "" {
			base = item.ProductName
		}
		if base == "" {
			base = "Item"
		}
		inputs = append(inputs, production.WorkOrderInput{
			ProposalItemID: item.ID,
			Title:          fmt.Sprintf("%s #%d", base, item.ID),
			Description:    item.SizeText,
			SlabID:         item.SlabID,
		})
	}
	return inputs
}
