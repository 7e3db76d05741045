package crm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SourceProposal is the source type appointments and tasks spawned by the
// finalize workflow carry.
const SourceProposal = "PROPOSAL"

// appointmentLeadTime separates approval from the follow-up visit.
const appointmentLeadTime = 48 * time.Hour

// EnsureAppointment upserts the follow-up appointment for a proposal, keyed
// by (customer, source). A missing title or notes is filled in; populated
// fields and the scheduled time are never overwritten.
func EnsureAppointment(ctx context.Context, store TxStore, customerID, proposalID int64, title, notes string, now time.Time) (*Appointment, error) {
	existing, err := store.GetAppointment(ctx, customerID, SourceProposal, proposalID)
	switch {
	case err == nil:
		changed := false
		if existing.Title == "" && title != "" {
			existing.Title = title
			changed = true
		}
		if existing.Notes == "" && notes != "" {
			existing.Notes = notes
			changed = true
		}
		if changed {
			if err := store.UpdateAppointment(ctx, existing); err != nil {
				return nil, fmt.Errorf("update appointment %d: %w", existing.ID, err)
			}
		}
		return existing, nil

	case errors.Is(err, ErrAppointmentNotFound):
		a := &Appointment{
			CustomerID: customerID,
			Title:      title,
			Notes:      notes,
			DueAt:      now.Add(appointmentLeadTime),
			SourceType: SourceProposal,
			SourceID:   proposalID,
		}
		if err := store.CreateAppointment(ctx, a); err != nil {
			return nil, fmt.Errorf("create appointment for proposal %d: %w", proposalID, err)
		}
		return a, nil

	default:
		return nil, fmt.Errorf("lookup appointment for proposal %d: %w", proposalID, err)
	}
}
