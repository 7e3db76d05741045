package production

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WorkOrderInput describes one contract line item needing a work order.
type WorkOrderInput struct {
	ProposalItemID int64
	Title          string
	Description    string
	SlabID         *int64
}

// workOrderLeadTime separates contract creation from the default target date.
const workOrderLeadTime = 48 * time.Hour

// EnsureWorkOrders creates one production work order per line item, keyed by
// (contract, title) so re-runs are no-ops. When the contract has no items a
// single generic order is created instead. Existing orders are left in their
// current stage; only a missing slab link or target date is filled in.
func EnsureWorkOrders(ctx context.Context, store TxStore, contract *Contract, items []WorkOrderInput, now time.Time) ([]WorkOrder, error) {
	if len(items) == 0 {
		items = []WorkOrderInput{{
			Title:       fmt.Sprintf("Production (%s)", contract.ContractNo),
			Description: contract.ProjectName,
		}}
	}

	target := now.Add(workOrderLeadTime)
	out := make([]WorkOrder, 0, len(items))
	for i, item := range items {
		title := item.Title
		if title == "" {
			title = fmt.Sprintf("Item #%d", item.ProposalItemID)
		}
		wo, err := ensureWorkOrder(ctx, store, contract.ID, title, item, target, i)
		if err != nil {
			return nil, err
		}
		out = append(out, *wo)
	}
	return out, nil
}

func ensureWorkOrder(ctx context.Context, store TxStore, contractID int64, title string, item WorkOrderInput, target time.Time, priority int) (*WorkOrder, error) {
	existing, err := store.GetWorkOrder(ctx, contractID, title)
	switch {
	case err == nil:
		changed := false
		if existing.SlabID == nil && item.SlabID != nil {
			existing.SlabID = item.SlabID
			changed = true
		}
		if existing.TargetDate == nil {
			t := target
			existing.TargetDate = &t
			changed = true
		}
		if changed {
			if err := store.UpdateWorkOrder(ctx, existing); err != nil {
				return nil, fmt.Errorf("update work order %d: %w", existing.ID, err)
			}
		}
		return existing, nil

	case errors.Is(err, ErrWorkOrderNotFound):
		t := target
		wo := &WorkOrder{
			ContractID:  contractID,
			Title:       title,
			Description: item.Description,
			Stage:       StagePlanned,
			Kind:        KindProduction,
			Priority:    priority,
			SlabID:      item.SlabID,
			TargetDate:  &t,
		}
		if err := store.CreateWorkOrder(ctx, wo); err != nil {
			return nil, fmt.Errorf("create work order %q: %w", title, err)
		}
		return wo, nil

	default:
		return nil, fmt.Errorf("lookup work order %q: %w", title, err)
	}
}
