package crm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dgknshn20/yapigraniterp/internal/core"
	"github.com/dgknshn20/yapigraniterp/internal/finance"
	"github.com/dgknshn20/yapigraniterp/internal/inventory"
	"github.com/dgknshn20/yapigraniterp/internal/production"
	"github.com/dgknshn20/yapigraniterp/internal/shared"
)

// memState is the whole database for finalize tests. memStores implements
// every domain TxStore over it; the repo clones the state per transaction so
// a failed run rolls back completely.
type memState struct {
	proposals    map[int64]Proposal
	items        map[int64][]ProposalItem
	customers    map[int64]Customer
	appointments map[int64]Appointment
	flows        map[int64]ApprovalFlow
	audits       map[string]AuditEntry

	contracts  map[int64]production.Contract
	workOrders map[int64]production.WorkOrder
	sequences  map[int]int64

	slabs        map[int64]inventory.Slab
	reservations map[int64]inventory.StockReservation

	plans        map[int64]finance.PaymentPlan
	installments map[int64]finance.Installment
	accounts     map[int64]finance.Account
	transactions map[int64]finance.Transaction

	notifications []core.Notification
	tasks         map[int64]core.Task
	events        map[int64]core.SystemEvent

	nextID int64
}

func newMemState() *memState {
	return &memState{
		proposals:    make(map[int64]Proposal),
		items:        make(map[int64][]ProposalItem),
		customers:    make(map[int64]Customer),
		appointments: make(map[int64]Appointment),
		flows:        make(map[int64]ApprovalFlow),
		audits:       make(map[string]AuditEntry),
		contracts:    make(map[int64]production.Contract),
		workOrders:   make(map[int64]production.WorkOrder),
		sequences:    make(map[int]int64),
		slabs:        make(map[int64]inventory.Slab),
		reservations: make(map[int64]inventory.StockReservation),
		plans:        make(map[int64]finance.PaymentPlan),
		installments: make(map[int64]finance.Installment),
		accounts:     make(map[int64]finance.Account),
		transactions: make(map[int64]finance.Transaction),
		tasks:        make(map[int64]core.Task),
		events:       make(map[int64]core.SystemEvent),
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *memState) clone() *memState {
	out := &memState{
		proposals:     cloneMap(s.proposals),
		items:         cloneMap(s.items),
		customers:     cloneMap(s.customers),
		appointments:  cloneMap(s.appointments),
		flows:         cloneMap(s.flows),
		audits:        cloneMap(s.audits),
		contracts:     cloneMap(s.contracts),
		workOrders:    cloneMap(s.workOrders),
		sequences:     cloneMap(s.sequences),
		slabs:         cloneMap(s.slabs),
		reservations:  cloneMap(s.reservations),
		plans:         cloneMap(s.plans),
		installments:  cloneMap(s.installments),
		accounts:      cloneMap(s.accounts),
		transactions:  cloneMap(s.transactions),
		notifications: append([]core.Notification(nil), s.notifications...),
		tasks:         cloneMap(s.tasks),
		events:        cloneMap(s.events),
		nextID:        s.nextID,
	}
	return out
}

type memStores struct {
	st *memState
}

// --- crm.TxStore ---

func (m *memStores) GetProposalForUpdate(ctx context.Context, id int64) (*Proposal, error) {
	p, ok := m.st.proposals[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	out := p
	return &out, nil
}

func (m *memStores) SetProposalStatus(ctx context.Context, id int64, status ProposalStatus) error {
	p, ok := m.st.proposals[id]
	if !ok {
		return ErrProposalNotFound
	}
	p.Status = status
	m.st.proposals[id] = p
	return nil
}

func (m *memStores) SetProposalTotal(ctx context.Context, id int64, total string) error {
	p, ok := m.st.proposals[id]
	if !ok {
		return ErrProposalNotFound
	}
	v, err := decimal.NewFromString(total)
	if err != nil {
		return err
	}
	p.TotalAmount = v
	m.st.proposals[id] = p
	return nil
}

func (m *memStores) ListItems(ctx context.Context, proposalID int64) ([]ProposalItem, error) {
	return append([]ProposalItem(nil), m.st.items[proposalID]...), nil
}

func (m *memStores) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	c, ok := m.st.customers[id]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	out := c
	return &out, nil
}

func (m *memStores) GetAppointment(ctx context.Context, customerID int64, sourceType string, sourceID int64) (*Appointment, error) {
	for _, a := range m.st.appointments {
		if a.CustomerID == customerID && a.SourceType == sourceType && a.SourceID == sourceID {
			out := a
			return &out, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *memStores) CreateAppointment(ctx context.Context, a *Appointment) error {
	m.st.nextID++
	a.ID = m.st.nextID
	m.st.appointments[a.ID] = *a
	return nil
}

func (m *memStores) UpdateAppointment(ctx context.Context, a *Appointment) error {
	if _, ok := m.st.appointments[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	m.st.appointments[a.ID] = *a
	return nil
}

func (m *memStores) GetApprovalFlow(ctx context.Context, proposalID int64) (*ApprovalFlow, error) {
	for _, f := range m.st.flows {
		if f.ProposalID == proposalID {
			out := f
			return &out, nil
		}
	}
	return nil, ErrApprovalFlowNotFound
}

func (m *memStores) CreateApprovalFlow(ctx context.Context, f *ApprovalFlow) error {
	m.st.nextID++
	f.ID = m.st.nextID
	m.st.flows[f.ID] = *f
	return nil
}

func (m *memStores) UpdateApprovalFlow(ctx context.Context, f *ApprovalFlow) error {
	if _, ok := m.st.flows[f.ID]; !ok {
		return ErrApprovalFlowNotFound
	}
	m.st.flows[f.ID] = *f
	return nil
}

func (m *memStores) UpsertAudit(ctx context.Context, e *AuditEntry) error {
	key := fmt.Sprintf("%d:%s", e.ProposalID, e.Action)
	if existing, ok := m.st.audits[key]; ok {
		e.ID = existing.ID
	} else {
		m.st.nextID++
		e.ID = m.st.nextID
	}
	m.st.audits[key] = *e
	return nil
}

// --- production.TxStore ---

func (m *memStores) GetContractByProposalForUpdate(ctx context.Context, proposalID int64) (*production.Contract, error) {
	for _, c := range m.st.contracts {
		if c.ProposalID == proposalID {
			out := c
			return &out, nil
		}
	}
	return nil, production.ErrContractNotFound
}

func (m *memStores) GetContractForUpdate(ctx context.Context, id int64) (*production.Contract, error) {
	c, ok := m.st.contracts[id]
	if !ok {
		return nil, production.ErrContractNotFound
	}
	out := c
	return &out, nil
}

func (m *memStores) CreateContract(ctx context.Context, c *production.Contract) error {
	for _, existing := range m.st.contracts {
		if existing.ContractNo == c.ContractNo {
			return production.ErrContractNoTaken
		}
	}
	m.st.nextID++
	c.ID = m.st.nextID
	m.st.contracts[c.ID] = *c
	return nil
}

func (m *memStores) UpdateContract(ctx context.Context, c *production.Contract) error {
	if _, ok := m.st.contracts[c.ID]; !ok {
		return production.ErrContractNotFound
	}
	m.st.contracts[c.ID] = *c
	return nil
}

func (m *memStores) SetContractStatus(ctx context.Context, id int64, status production.ContractStatus) error {
	c, ok := m.st.contracts[id]
	if !ok {
		return production.ErrContractNotFound
	}
	c.Status = status
	m.st.contracts[id] = c
	return nil
}

func (m *memStores) NextContractNo(ctx context.Context, year int) (int64, error) {
	m.st.sequences[year]++
	return m.st.sequences[year], nil
}

func (m *memStores) GetWorkOrder(ctx context.Context, contractID int64, title string) (*production.WorkOrder, error) {
	for _, wo := range m.st.workOrders {
		if wo.ContractID == contractID && wo.Title == title {
			out := wo
			return &out, nil
		}
	}
	return nil, production.ErrWorkOrderNotFound
}

func (m *memStores) CreateWorkOrder(ctx context.Context, wo *production.WorkOrder) error {
	m.st.nextID++
	wo.ID = m.st.nextID
	m.st.workOrders[wo.ID] = *wo
	return nil
}

func (m *memStores) UpdateWorkOrder(ctx context.Context, wo *production.WorkOrder) error {
	if _, ok := m.st.workOrders[wo.ID]; !ok {
		return production.ErrWorkOrderNotFound
	}
	m.st.workOrders[wo.ID] = *wo
	return nil
}

func (m *memStores) ListWorkOrders(ctx context.Context, contractID int64) ([]production.WorkOrder, error) {
	var out []production.WorkOrder
	for _, wo := range m.st.workOrders {
		if wo.ContractID == contractID {
			out = append(out, wo)
		}
	}
	return out, nil
}

// --- inventory.TxStore ---

func (m *memStores) GetSlabForUpdate(ctx context.Context, id int64) (*inventory.Slab, error) {
	slab, ok := m.st.slabs[id]
	if !ok {
		return nil, inventory.ErrSlabNotFound
	}
	out := slab
	return &out, nil
}

func (m *memStores) UpdateSlab(ctx context.Context, slab *inventory.Slab) error {
	if _, ok := m.st.slabs[slab.ID]; !ok {
		return inventory.ErrSlabNotFound
	}
	m.st.slabs[slab.ID] = *slab
	return nil
}

func (m *memStores) GetReservation(ctx context.Context, contractID, proposalItemID int64) (*inventory.StockReservation, error) {
	for _, res := range m.st.reservations {
		if res.ContractID == contractID && res.ProposalItemID == proposalItemID {
			out := res
			return &out, nil
		}
	}
	return nil, inventory.ErrReservationNotFound
}

func (m *memStores) CreateReservation(ctx context.Context, res *inventory.StockReservation) error {
	m.st.nextID++
	res.ID = m.st.nextID
	m.st.reservations[res.ID] = *res
	return nil
}

func (m *memStores) UpdateReservation(ctx context.Context, res *inventory.StockReservation) error {
	if _, ok := m.st.reservations[res.ID]; !ok {
		return inventory.ErrReservationNotFound
	}
	m.st.reservations[res.ID] = *res
	return nil
}

func (m *memStores) ListReservationsByContract(ctx context.Context, contractID int64) ([]inventory.StockReservation, error) {
	var out []inventory.StockReservation
	for _, res := range m.st.reservations {
		if res.ContractID == contractID {
			out = append(out, res)
		}
	}
	return out, nil
}

// --- finance.TxStore ---

func (m *memStores) GetPlanByContractForUpdate(ctx context.Context, contractID int64) (*finance.PaymentPlan, error) {
	for _, p := range m.st.plans {
		if p.ContractID == contractID {
			out := p
			return &out, nil
		}
	}
	return nil, finance.ErrPlanNotFound
}

func (m *memStores) GetPlanForUpdate(ctx context.Context, id int64) (*finance.PaymentPlan, error) {
	p, ok := m.st.plans[id]
	if !ok {
		return nil, finance.ErrPlanNotFound
	}
	out := p
	return &out, nil
}

func (m *memStores) CreatePlan(ctx context.Context, p *finance.PaymentPlan) error {
	m.st.nextID++
	p.ID = m.st.nextID
	m.st.plans[p.ID] = *p
	return nil
}

func (m *memStores) UpdatePlan(ctx context.Context, p *finance.PaymentPlan) error {
	if _, ok := m.st.plans[p.ID]; !ok {
		return finance.ErrPlanNotFound
	}
	m.st.plans[p.ID] = *p
	return nil
}

func (m *memStores) GetInstallment(ctx context.Context, planID int64, no int) (*finance.Installment, error) {
	for _, inst := range m.st.installments {
		if inst.PlanID == planID && inst.No == no {
			out := inst
			return &out, nil
		}
	}
	return nil, finance.ErrInstallmentNotFound
}

func (m *memStores) GetInstallmentByIDForUpdate(ctx context.Context, id int64) (*finance.Installment, error) {
	inst, ok := m.st.installments[id]
	if !ok {
		return nil, finance.ErrInstallmentNotFound
	}
	out := inst
	return &out, nil
}

func (m *memStores) CreateInstallment(ctx context.Context, inst *finance.Installment) error {
	m.st.nextID++
	inst.ID = m.st.nextID
	m.st.installments[inst.ID] = *inst
	return nil
}

func (m *memStores) UpdateInstallment(ctx context.Context, inst *finance.Installment) error {
	if _, ok := m.st.installments[inst.ID]; !ok {
		return finance.ErrInstallmentNotFound
	}
	m.st.installments[inst.ID] = *inst
	return nil
}

func (m *memStores) ListInstallments(ctx context.Context, planID int64) ([]finance.Installment, error) {
	var out []finance.Installment
	for _, inst := range m.st.installments {
		if inst.PlanID == planID {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (m *memStores) GetAccountForUpdate(ctx context.Context, id int64) (*finance.Account, error) {
	a, ok := m.st.accounts[id]
	if !ok {
		return nil, finance.ErrAccountNotFound
	}
	out := a
	return &out, nil
}

func (m *memStores) UpdateAccount(ctx context.Context, a *finance.Account) error {
	if _, ok := m.st.accounts[a.ID]; !ok {
		return finance.ErrAccountNotFound
	}
	m.st.accounts[a.ID] = *a
	return nil
}

func (m *memStores) CreateTransaction(ctx context.Context, t *finance.Transaction) error {
	m.st.nextID++
	t.ID = m.st.nextID
	m.st.transactions[t.ID] = *t
	return nil
}

// --- core.TxStore ---

func (m *memStores) LatestNotification(ctx context.Context, n core.Notification) (*core.Notification, error) {
	var latest *core.Notification
	for i := range m.st.notifications {
		candidate := m.st.notifications[i]
		if candidate.RecipientRole != n.RecipientRole || candidate.Topic != n.Topic ||
			candidate.SourceType != n.SourceType || candidate.SourceID != n.SourceID {
			continue
		}
		if latest == nil || candidate.CreatedAt.After(latest.CreatedAt) {
			out := candidate
			latest = &out
		}
	}
	if latest == nil {
		return nil, core.ErrNotificationNotFound
	}
	return latest, nil
}

func (m *memStores) CreateNotification(ctx context.Context, n *core.Notification) error {
	m.st.nextID++
	n.ID = m.st.nextID
	m.st.notifications = append(m.st.notifications, *n)
	return nil
}

func (m *memStores) GetTask(ctx context.Context, sourceType string, sourceID int64, title string) (*core.Task, error) {
	for _, task := range m.st.tasks {
		if task.SourceType == sourceType && task.SourceID == sourceID && task.Title == title {
			out := task
			return &out, nil
		}
	}
	return nil, core.ErrTaskNotFound
}

func (m *memStores) CreateTask(ctx context.Context, t *core.Task) error {
	m.st.nextID++
	t.ID = m.st.nextID
	m.st.tasks[t.ID] = *t
	return nil
}

func (m *memStores) UpdateTask(ctx context.Context, t *core.Task) error {
	if _, ok := m.st.tasks[t.ID]; !ok {
		return core.ErrTaskNotFound
	}
	m.st.tasks[t.ID] = *t
	return nil
}

func (m *memStores) GetEvent(ctx context.Context, eventType string, offerID int64, metric string) (*core.SystemEvent, error) {
	for _, ev := range m.st.events {
		if ev.EventType == eventType && ev.OfferID == offerID && ev.Metric == metric {
			out := ev
			return &out, nil
		}
	}
	return nil, core.ErrEventNotFound
}

func (m *memStores) CreateEvent(ctx context.Context, ev *core.SystemEvent) error {
	m.st.nextID++
	ev.ID = m.st.nextID
	m.st.events[ev.ID] = *ev
	return nil
}

// memRepo runs each transaction on a clone of the state and commits the
// clone only on success, mirroring real rollback behavior.
type memRepo struct {
	state *memState
}

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error {
	work := r.state.clone()
	stores := &memStores{st: work}
	err := fn(ctx, Stores{
		CRM:        stores,
		Production: stores,
		Inventory:  stores,
		Finance:    stores,
		Core:       stores,
	})
	if err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *memRepo) GetProposal(ctx context.Context, id int64) (*Proposal, error) {
	return (&memStores{st: r.state}).GetProposalForUpdate(ctx, id)
}

func (r *memRepo) ListItems(ctx context.Context, proposalID int64) ([]ProposalItem, error) {
	return (&memStores{st: r.state}).ListItems(ctx, proposalID)
}

func (r *memRepo) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return (&memStores{st: r.state}).GetCustomer(ctx, id)
}

func ptr[T any](v T) *T { return &v }

func seedFinalizeState() *memState {
	st := newMemState()
	st.customers[3] = Customer{ID: 3, Name: "Acme Construction", Phone: "+90 555 000 0000"}
	validUntil := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	st.proposals[5] = Proposal{
		ID:            5,
		Number:        "TKF-2026-000042",
		CustomerID:    3,
		Status:        ProposalDraft,
		Currency:      "TRY",
		IncludeTax:    true,
		TaxRate:       d("20"),
		TotalAmount:   d("1200"),
		ValidUntil:    &validUntil,
		ProjectName:   "Kitchen renovation",
		PaymentMethod: "INSTALLMENT",
	}
	st.slabs[30] = inventory.Slab{
		ID: 30, ProductID: 8, Barcode: "SLB-30",
		ThicknessMM: d("20"), Status: inventory.SlabAvailable,
	}
	st.items[5] = []ProposalItem{
		{
			ID: 11, ProposalID: 5, ProductID: ptr[int64](8), ProductName: "Granite counter",
			SlabID: ptr[int64](30), Width: d("65"), Length: d("240"), Quantity: 1,
			UnitPrice: d("300"),
		},
		{
			ID: 12, ProposalID: 5, ProductID: ptr[int64](9), ProductName: "Marble island",
			Width: d("80"), Length: d("150"), Quantity: 1, UnitPrice: d("400"),
		},
	}
	st.nextID = 100
	return st
}

func newFinalizeService(st *memState) (*Service, *memRepo) {
	repo := &memRepo{state: st}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, 0, logger), repo
}

func TestFinalizeCreatesFullChain(t *testing.T) {
	svc, repo := newFinalizeService(seedFinalizeState())
	actor := shared.Actor{ID: 42, Role: shared.RoleSales}

	result, err := svc.Finalize(context.Background(), 5, actor, FinalizePayload{})
	require.NoError(t, err)

	st := repo.state
	require.Equal(t, ProposalApproved, st.proposals[5].Status)
	require.Equal(t, ProposalApproved, result.Proposal.Status)

	// One contract, numbered from the yearly sequence, snapshot frozen.
	require.Len(t, st.contracts, 1)
	contract := result.Contract
	require.Equal(t, production.ContractAwaitingSignature, contract.Status)
	require.Contains(t, contract.ContractNo, "YG-")
	require.Equal(t, "Acme Construction", contract.CustomerName)
	require.Len(t, contract.ItemsSnapshot, 2)
	require.True(t, contract.SubtotalAmount.Equal(d("1000.00")))
	require.True(t, contract.TaxAmount.Equal(d("200.00")))
	require.True(t, contract.TotalAmount.Equal(d("1200.00")))

	// INSTALLMENT proposal defaults to four equal parts.
	require.Len(t, st.plans, 1)
	require.Equal(t, finance.MethodInstallment, result.Plan.Method)
	require.Equal(t, 4, result.Plan.InstallmentCount)
	require.Len(t, st.installments, 4)
	sum := decimal.Zero
	for _, inst := range st.installments {
		require.Equal(t, finance.MethodTransfer, inst.Method)
		sum = sum.Add(inst.Amount)
	}
	require.True(t, sum.Equal(d("1200.00")))

	// One soft reservation per item; the slab-bound one stamps the slab.
	require.Len(t, st.reservations, 2)
	require.Len(t, result.Reservations, 2)
	slab := st.slabs[30]
	require.Equal(t, contract.ID, *slab.SoftReservedForID)
	require.NotNil(t, slab.SoftReservedUntil)

	// One work order per item, one appointment, one open task.
	require.Len(t, st.workOrders, 2)
	require.Len(t, st.appointments, 1)
	require.Len(t, st.tasks, 1)
	for _, task := range st.tasks {
		require.Equal(t, core.TaskOpen, task.Status)
		require.Equal(t, shared.RoleSales, task.AssigneeRole)
	}

	// Seven audit rows, an approval flow, two notifications, two events.
	require.Len(t, st.audits, 7)
	for _, action := range []string{
		AuditContractCreated, AuditPaymentPlan, AuditReservations,
		AuditWorkOrders, AuditAppointment, AuditTask, AuditApprovalFlow,
	} {
		require.Contains(t, st.audits, fmt.Sprintf("5:%s", action))
	}
	require.Len(t, st.flows, 1)
	for _, flow := range st.flows {
		require.Equal(t, int64(42), flow.ApprovedByID)
		require.Equal(t, contract.ID, flow.ContractID)
		require.Equal(t, result.Plan.ID, flow.PaymentPlanID)
		require.Len(t, flow.ReservationIDs, 2)
	}
	require.Len(t, st.notifications, 2)
	require.Len(t, st.events, 2)
}

func TestFinalizeIdempotent(t *testing.T) {
	svc, repo := newFinalizeService(seedFinalizeState())
	actor := shared.Actor{ID: 42, Role: shared.RoleSales}

	first, err := svc.Finalize(context.Background(), 5, actor, FinalizePayload{})
	require.NoError(t, err)
	second, err := svc.Finalize(context.Background(), 5, actor, FinalizePayload{})
	require.NoError(t, err)

	require.Equal(t, first.Contract.ID, second.Contract.ID)
	require.Equal(t, first.Contract.ContractNo, second.Contract.ContractNo)
	require.Equal(t, first.Plan.ID, second.Plan.ID)

	st := repo.state
	require.Len(t, st.contracts, 1)
	require.Len(t, st.plans, 1)
	require.Len(t, st.installments, 4)
	require.Len(t, st.reservations, 2)
	require.Len(t, st.workOrders, 2)
	require.Len(t, st.appointments, 1)
	require.Len(t, st.tasks, 1)
	require.Len(t, st.audits, 7)
	require.Len(t, st.flows, 1)
	// Notifications and events are deduplicated, not re-sent.
	require.Len(t, st.notifications, 2)
	require.Len(t, st.events, 2)
}

func TestFinalizeRejectsInvalidStatus(t *testing.T) {
	for _, status := range []ProposalStatus{ProposalSent, ProposalRejected, ProposalConverted} {
		st := seedFinalizeState()
		p := st.proposals[5]
		p.Status = status
		st.proposals[5] = p

		svc, repo := newFinalizeService(st)
		_, err := svc.Finalize(context.Background(), 5, shared.Actor{ID: 42, Role: shared.RoleSales}, FinalizePayload{})
		require.ErrorIs(t, err, shared.ErrInvalidStatus, string(status))

		require.Equal(t, status, repo.state.proposals[5].Status)
		require.Empty(t, repo.state.contracts)
		require.Empty(t, repo.state.audits)
	}
}

func TestFinalizeSlabConflictRollsBackEverything(t *testing.T) {
	st := seedFinalizeState()
	slab := st.slabs[30]
	slab.Status = inventory.SlabReserved
	slab.ReservedForID = ptr[int64](999)
	st.slabs[30] = slab

	svc, repo := newFinalizeService(st)
	_, err := svc.Finalize(context.Background(), 5, shared.Actor{ID: 42, Role: shared.RoleSales}, FinalizePayload{})
	require.ErrorIs(t, err, inventory.ErrSlabConflict)

	// Nothing survives: not even the status flip or the contract.
	out := repo.state
	require.Equal(t, ProposalDraft, out.proposals[5].Status)
	require.Empty(t, out.contracts)
	require.Empty(t, out.plans)
	require.Empty(t, out.reservations)
	require.Empty(t, out.workOrders)
	require.Empty(t, out.audits)
	require.Empty(t, out.notifications)
}

func TestFinalizeWithExplicitInstallments(t *testing.T) {
	svc, repo := newFinalizeService(seedFinalizeState())
	due1 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	due2 := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	result, err := svc.Finalize(context.Background(), 5, shared.Actor{ID: 42, Role: shared.RoleSales}, FinalizePayload{
		Installments: []finance.ExplicitInstallment{
			{No: 1, DueDate: &due1, Amount: d("700"), Method: finance.MethodCash},
			{No: 2, DueDate: &due2, Amount: d("500"), Method: finance.MethodCheque},
		},
	})
	require.NoError(t, err)
	require.Equal(t, finance.MethodMixed, result.Plan.Method)
	require.Equal(t, 2, result.Plan.InstallmentCount)

	require.Len(t, repo.state.installments, 2)
	for _, inst := range repo.state.installments {
		switch inst.No {
		case 1:
			require.True(t, inst.Amount.Equal(d("700.00")))
			require.Equal(t, finance.MethodCash, inst.Method)
		case 2:
			require.True(t, inst.Amount.Equal(d("500.00")))
			require.Equal(t, finance.MethodCheque, inst.Method)
		}
	}
}

func TestFinalizePayloadOverridesPlanParams(t *testing.T) {
	svc, repo := newFinalizeService(seedFinalizeState())
	firstDue := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	result, err := svc.Finalize(context.Background(), 5, shared.Actor{ID: 42, Role: shared.RoleSales}, FinalizePayload{
		PaymentMethod:    "INSTALLMENT",
		InstallmentCount: 6,
		FirstDueDate:     &firstDue,
	})
	require.NoError(t, err)
	require.Equal(t, 6, result.Plan.InstallmentCount)
	require.Len(t, repo.state.installments, 6)

	rows, err := (&memStores{st: repo.state}).ListInstallments(context.Background(), result.Plan.ID)
	require.NoError(t, err)
	for _, inst := range rows {
		if inst.No == 1 {
			require.True(t, inst.DueDate.Equal(firstDue))
		}
	}
}

func TestFinalizeUnknownProposal(t *testing.T) {
	svc, _ := newFinalizeService(seedFinalizeState())
	_, err := svc.Finalize(context.Background(), 404, shared.Actor{ID: 42, Role: shared.RoleSales}, FinalizePayload{})
	require.ErrorIs(t, err, ErrProposalNotFound)
}
