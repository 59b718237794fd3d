// Package transfer holds the engine's read-model view of a budget transfer.
// The engine does not own transfers; it observes them through TransferStore
// (internal/workflow/ports.go) and this is the shape that port returns.
package transfer

import "github.com/enterprise-bte/bte-engine/internal/domain/enums"

// BudgetTransfer is the minimal external-system view the engine needs to
// route, authorize, and account for a transfer. The owning system (outside
// this module) is the system of record for everything else.
type BudgetTransfer struct {
	ID               string
	Code             string
	SecurityGroupID  int
	Status           string
	StatusLevel      enums.TransferStatusLevel
	LinkedTransferID *string
	Lines            []Line
}

// Line is one segment-tuple amount on a transfer: the combination of
// segment codes (keyed by segment type code) being moved and the amount
// taken from it.
type Line struct {
	SegmentCombination map[string]string
	FromAmount         float64
}

// TotalAmount sums FromAmount across all lines.
func (t BudgetTransfer) TotalAmount() float64 {
	var total float64
	for _, l := range t.Lines {
		total += l.FromAmount
	}
	return total
}

// IsHoldRelease reports whether this transfer releases a hold placed by a
// parent transfer (§4.4.7).
func (t BudgetTransfer) IsHoldRelease() bool {
	return t.LinkedTransferID != nil && *t.LinkedTransferID != ""
}
