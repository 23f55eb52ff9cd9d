package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/clinicdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// errDuplicateEntry is returned when an insert collides on the idempotency key or receipt number.
// It is retryable: the retried unit of work replays the stored entry or draws a fresh receipt.
var errDuplicateEntry = &shared.DomainError{
	Code:    "DUPLICATE_LEDGER_ENTRY",
	Message: "A ledger entry with the same idempotency key or receipt number was stored concurrently",
	Kind:    shared.KindConcurrency,
}

// GormLedgerEntryRepository implements LedgerEntryRepository using GORM
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// FindByID finds an entry by ID within a tenant
func (r *GormLedgerEntryRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*cashdesk.LedgerEntry, error) {
	var model models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cashdesk.ErrEntryNotFound(id)
		}
		return nil, wrapDBError("find ledger entry", err)
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey finds the entry created under a client idempotency key
func (r *GormLedgerEntryRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*cashdesk.LedgerEntry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, shared.ErrNotFound
	}
	var model models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, wrapDBError("find ledger entry by idempotency key", err)
	}
	return model.ToDomain(), nil
}

// FindBySession returns every entry of a session, voided ones included
func (r *GormLedgerEntryRepository) FindBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]cashdesk.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND session_id = ?", tenantID, sessionID).
		Order("recorded_at ASC").
		Find(&rows).Error; err != nil {
		return nil, wrapDBError("find ledger entries by session", err)
	}
	return toLedgerEntries(rows), nil
}

// Find returns entries matching the filter ordered by recording time. To is exclusive.
func (r *GormLedgerEntryRepository) Find(ctx context.Context, tenantID uuid.UUID, filter cashdesk.EntryFilter) ([]cashdesk.LedgerEntry, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if !filter.IncludeVoided {
		query = query.Where("state = ?", cashdesk.EntryStatePosted)
	}
	if filter.Site != "" {
		query = query.Where("site = ?", filter.Site)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}
	if filter.From != nil {
		query = query.Where("recorded_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("recorded_at < ?", filter.To.UTC())
	}

	var rows []models.LedgerEntryModel
	if err := query.Order("recorded_at ASC").Find(&rows).Error; err != nil {
		return nil, wrapDBError("find ledger entries", err)
	}
	return toLedgerEntries(rows), nil
}

// Create inserts a new entry
func (r *GormLedgerEntryRepository) Create(ctx context.Context, entry *cashdesk.LedgerEntry) error {
	model := models.LedgerEntryModelFromDomain(entry)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errDuplicateEntry
		}
		return wrapDBError("create ledger entry", err)
	}
	return nil
}

// Save persists the mutable fields of an entry with optimistic locking and bumps its version
func (r *GormLedgerEntryRepository) Save(ctx context.Context, entry *cashdesk.LedgerEntry) error {
	model := models.LedgerEntryModelFromDomain(entry)
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", entry.TenantID, entry.ID, entry.Version).
		Updates(map[string]any{
			"description": model.Description,
			"notes":       model.Notes,
			"attachments": model.Attachments,
			"state":       model.State,
			"void_reason": model.VoidReason,
			"voided_by":   model.VoidedBy,
			"voided_at":   model.VoidedAt,
			"version":     entry.Version + 1,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		return wrapDBError("save ledger entry", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).
			Where("tenant_id = ? AND id = ?", entry.TenantID, entry.ID).
			Count(&count).Error; err != nil {
			return wrapDBError("save ledger entry", err)
		}
		if count == 0 {
			return cashdesk.ErrEntryNotFound(entry.ID)
		}
		return shared.ErrConcurrencyConflict
	}
	entry.IncrementVersion()
	return nil
}

func toLedgerEntries(rows []models.LedgerEntryModel) []cashdesk.LedgerEntry {
	entries := make([]cashdesk.LedgerEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *rows[i].ToDomain())
	}
	return entries
}

var _ cashdesk.LedgerEntryRepository = (*GormLedgerEntryRepository)(nil)
