package workflow

import (
	"context"

	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
)

// HoldStatus is the derived view of a fund hold's remaining balance (§4.4.7).
// It is computed at request time from the hold transfer's lines and the
// status of every child transfer linked to it; nothing here is persisted.
type HoldStatus struct {
	TransferID     string
	OriginalHold   float64
	UsedByChildren float64
	Remaining      float64
}

// HoldStatusFor computes the remaining balance of a hold transfer: the sum
// of its own line amounts, minus the sum of every child transfer's line
// amounts where the child counts as having drawn on the hold — approved,
// or progressed to "in review" or deeper (statusLevel >= 2). A child that
// is merely submitted (statusLevel 1) has not yet committed to drawing
// from the hold and is excluded.
func (e *Engine) HoldStatusFor(ctx context.Context, holdTransferID string) (*HoldStatus, error) {
	hold, err := e.transfers.GetTransfer(ctx, holdTransferID)
	if err != nil {
		return nil, wrapErr(KindInternalError, "transfer-lookup-failed", err)
	}
	if hold == nil {
		return nil, newErr(KindNotFound, ReasonUnknownTransfer, "hold transfer not found")
	}

	children, err := e.transfers.ChildrenOf(ctx, holdTransferID)
	if err != nil {
		return nil, wrapErr(KindInternalError, "children-lookup-failed", err)
	}

	original := hold.TotalAmount()
	var used float64
	for _, c := range children {
		if c.Status == "approved" || c.StatusLevel >= enums.TransferStatusLevelInReview {
			used += c.TotalAmount()
		}
	}

	return &HoldStatus{
		TransferID:     holdTransferID,
		OriginalHold:   original,
		UsedByChildren: used,
		Remaining:      original - used,
	}, nil
}

// ReleaseHoldIfRejected is the hook the caller runs when a hold transfer's
// workflow reaches a rejected terminal state (§4.4.7): any amount not yet
// drawn by a child transfer is requested back to the fund via an
// operational-warning-style integration event, since returning funds is the
// owning system's responsibility, not this engine's.
func (e *Engine) ReleaseHoldIfRejected(ctx context.Context, holdTransferID string) error {
	status, err := e.HoldStatusFor(ctx, holdTransferID)
	if err != nil {
		return err
	}
	if status.Remaining > 0 {
		e.sink.OperationalWarning(ctx, holdTransferID, "hold rejected with unreleased remaining balance; fund return required")
	}
	return nil
}
