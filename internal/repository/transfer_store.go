package repository

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/enterprise-bte/bte-engine/internal/domain/enums"
	"github.com/enterprise-bte/bte-engine/internal/domain/transfer"
)

func transferStatusLevel(level int) enums.TransferStatusLevel {
	return enums.TransferStatusLevel(level)
}

// transferRow is the persisted shape backing GormTransferStore. The engine
// does not own transfer CRUD (§1 Non-goals); this table is the narrow
// read/update mirror SPEC_FULL.md calls for, populated by whatever system
// owns the transfer, not by this module.
type transferRow struct {
	ID               string  `gorm:"column:id;primaryKey;size:64"`
	Code             string  `gorm:"column:code;size:64"`
	SecurityGroupID  int     `gorm:"column:security_group_id"`
	Status           string  `gorm:"column:status;size:32"`
	StatusLevel      int     `gorm:"column:status_level"`
	LinkedTransferID *string `gorm:"column:linked_transfer_id;size:64"`
	SoftDeleted      bool    `gorm:"column:soft_deleted;default:false;index"`
}

func (transferRow) TableName() string { return "bte.budget_transfers" }

// transferLineRow is one segment-tuple amount row on a transferRow.
// SegmentCombination is stored as a JSON object mapping segment-type code
// to segment code, since its key set varies by transfer type.
type transferLineRow struct {
	ID                 int     `gorm:"column:id;primaryKey;autoIncrement"`
	TransferID         string  `gorm:"column:transfer_id;size:64;index"`
	SegmentCombination string  `gorm:"column:segment_combination;type:jsonb"`
	FromAmount         float64 `gorm:"column:from_amount"`
	SoftDeleted        bool    `gorm:"column:soft_deleted;default:false;index"`
}

func (transferLineRow) TableName() string { return "bte.budget_transfer_lines" }

// GormTransferStore implements workflow.TransferStore over the mirror
// tables above.
type GormTransferStore struct {
	transfers *Repository[transferRow]
	lines     *Repository[transferLineRow]
	log       zerolog.Logger
}

// NewGormTransferStore builds a GormTransferStore.
func NewGormTransferStore(db *gorm.DB, log zerolog.Logger) *GormTransferStore {
	return &GormTransferStore{
		transfers: NewRepository[transferRow](db),
		lines:     NewRepository[transferLineRow](db),
		log:       log.With().Str("component", "repository.GormTransferStore").Logger(),
	}
}

// GetTransfer loads a transfer with its lines.
func (s *GormTransferStore) GetTransfer(ctx context.Context, transferID string) (*transfer.BudgetTransfer, error) {
	row, err := s.transfers.GetByStringID(ctx, "id", transferID)
	if err != nil || row == nil {
		return nil, err
	}
	return s.hydrate(ctx, *row)
}

// ChildrenOf returns every transfer linked to holdTransferID.
func (s *GormTransferStore) ChildrenOf(ctx context.Context, holdTransferID string) ([]transfer.BudgetTransfer, error) {
	rows, err := s.transfers.Where(ctx, "linked_transfer_id = ?", holdTransferID)
	if err != nil {
		return nil, err
	}
	out := make([]transfer.BudgetTransfer, 0, len(rows))
	for _, row := range rows {
		bt, err := s.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, *bt)
	}
	return out, nil
}

// SetStatus applies a terminal status transition. Idempotent: setting the
// same (status, statusLevel) twice is a no-op beyond the second write.
func (s *GormTransferStore) SetStatus(ctx context.Context, transferID string, status string, statusLevel int) error {
	row, err := s.transfers.GetByStringID(ctx, "id", transferID)
	if err != nil {
		return err
	}
	if row == nil {
		s.log.Warn().Str("transfer_id", transferID).Msg("SetStatus on unknown transfer, ignoring")
		return nil
	}
	row.Status = status
	row.StatusLevel = statusLevel
	return s.transfers.Update(ctx, row)
}

func (s *GormTransferStore) hydrate(ctx context.Context, row transferRow) (*transfer.BudgetTransfer, error) {
	lineRows, err := s.lines.Where(ctx, "transfer_id = ?", row.ID)
	if err != nil {
		return nil, err
	}
	lines := make([]transfer.Line, 0, len(lineRows))
	for _, lr := range lineRows {
		var combination map[string]string
		if lr.SegmentCombination != "" {
			if err := json.Unmarshal([]byte(lr.SegmentCombination), &combination); err != nil {
				s.log.Error().Err(err).Int("line_id", lr.ID).Msg("failed to decode segment combination")
				continue
			}
		}
		lines = append(lines, transfer.Line{SegmentCombination: combination, FromAmount: lr.FromAmount})
	}

	return &transfer.BudgetTransfer{
		ID:               row.ID,
		Code:             row.Code,
		SecurityGroupID:  row.SecurityGroupID,
		Status:           row.Status,
		StatusLevel:      transferStatusLevel(row.StatusLevel),
		LinkedTransferID: row.LinkedTransferID,
		Lines:            lines,
	}, nil
}
