package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/clinicdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCashSessionRepository implements CashSessionRepository using GORM.
// Incidents, change records and entry links live in child tables and are loaded with the session.
type GormCashSessionRepository struct {
	db *gorm.DB
}

// NewGormCashSessionRepository creates a new GormCashSessionRepository
func NewGormCashSessionRepository(db *gorm.DB) *GormCashSessionRepository {
	return &GormCashSessionRepository{db: db}
}

// FindByID finds a session by ID within a tenant
func (r *GormCashSessionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*cashdesk.CashSession, error) {
	return r.findByID(ctx, tenantID, id, false)
}

// FindByIDForUpdate finds a session and takes a row lock on PostgreSQL
func (r *GormCashSessionRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*cashdesk.CashSession, error) {
	return r.findByID(ctx, tenantID, id, true)
}

func (r *GormCashSessionRepository) findByID(ctx context.Context, tenantID, id uuid.UUID, forUpdate bool) (*cashdesk.CashSession, error) {
	query := r.db.WithContext(ctx)
	if forUpdate && supportsRowLocks(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var model models.CashSessionModel
	if err := query.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cashdesk.ErrSessionNotFound(id)
		}
		return nil, wrapDBError("find cash session", err)
	}
	sessions, err := r.hydrate(ctx, []models.CashSessionModel{model})
	if err != nil {
		return nil, err
	}
	return &sessions[0], nil
}

// FindOpen returns the open session of the site on the business date
func (r *GormCashSessionRepository) FindOpen(ctx context.Context, tenantID uuid.UUID, site string, businessDate time.Time) (*cashdesk.CashSession, error) {
	var model models.CashSessionModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND site = ? AND state = ? AND business_date = ?",
			tenantID, site, cashdesk.SessionStateOpen, cashdesk.BusinessDay(businessDate, time.UTC)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, wrapDBError("find open cash session", err)
	}
	sessions, err := r.hydrate(ctx, []models.CashSessionModel{model})
	if err != nil {
		return nil, err
	}
	return &sessions[0], nil
}

// FindOpenBySite returns every open session of a site regardless of date
func (r *GormCashSessionRepository) FindOpenBySite(ctx context.Context, tenantID uuid.UUID, site string) ([]cashdesk.CashSession, error) {
	var rows []models.CashSessionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND site = ? AND state = ?", tenantID, site, cashdesk.SessionStateOpen).
		Order("business_date DESC, opened_at DESC").
		Find(&rows).Error; err != nil {
		return nil, wrapDBError("find open cash sessions", err)
	}
	return r.hydrate(ctx, rows)
}

// FindLastClosed returns the most recently closed session of the site
func (r *GormCashSessionRepository) FindLastClosed(ctx context.Context, tenantID uuid.UUID, site string) (*cashdesk.CashSession, error) {
	var model models.CashSessionModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND site = ? AND state = ? AND closed_at IS NOT NULL", tenantID, site, cashdesk.SessionStateClosed).
		Order("closed_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, wrapDBError("find last closed cash session", err)
	}
	sessions, err := r.hydrate(ctx, []models.CashSessionModel{model})
	if err != nil {
		return nil, err
	}
	return &sessions[0], nil
}

// FindAll lists sessions matching the filter with pagination
func (r *GormCashSessionRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter cashdesk.SessionFilter) ([]cashdesk.CashSession, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CashSessionModel{}).Where("tenant_id = ?", tenantID)
	if site := strings.TrimSpace(filter.Site); site != "" {
		query = query.Where("site = ?", site)
	}
	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.From != nil {
		query = query.Where("business_date >= ?", cashdesk.BusinessDay(*filter.From, time.UTC))
	}
	if filter.To != nil {
		query = query.Where("business_date <= ?", cashdesk.BusinessDay(*filter.To, time.UTC))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapDBError("count cash sessions", err)
	}

	orderBy := ValidateSortField(filter.OrderBy, CashSessionSortFields, "business_date")
	orderDir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(orderBy + " " + orderDir).Order("opened_at DESC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.CashSessionModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, wrapDBError("list cash sessions", err)
	}
	sessions, err := r.hydrate(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// FindInRange returns the sessions whose business date lies in [from, to]
func (r *GormCashSessionRepository) FindInRange(ctx context.Context, tenantID uuid.UUID, from, to time.Time, site string) ([]cashdesk.CashSession, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND business_date >= ? AND business_date <= ?", tenantID, from.UTC(), to.UTC())
	if site != "" {
		query = query.Where("site = ?", site)
	}
	var rows []models.CashSessionModel
	if err := query.Order("business_date DESC, opened_at DESC").Find(&rows).Error; err != nil {
		return nil, wrapDBError("find cash sessions in range", err)
	}
	return r.hydrate(ctx, rows)
}

// Create inserts a new session with its change log
func (r *GormCashSessionRepository) Create(ctx context.Context, session *cashdesk.CashSession) error {
	model := &models.CashSessionModel{}
	model.FromDomain(session)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return saveChildren(tx, session, false)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return cashdesk.ErrSessionAlreadyOpen(session.Site)
		}
		return wrapDBError("create cash session", err)
	}
	return nil
}

// SaveWithLock persists the session if nobody saved it since it was loaded, then bumps its version
func (r *GormCashSessionRepository) SaveWithLock(ctx context.Context, session *cashdesk.CashSession) error {
	model := &models.CashSessionModel{}
	model.FromDomain(session)
	model.UpdatedAt = time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CashSessionModel{}).
			Where("tenant_id = ? AND id = ? AND version = ?", session.TenantID, session.ID, session.Version).
			Updates(map[string]any{
				"state":                model.State,
				"closed_by":            model.ClosedBy,
				"closed_at":            model.ClosedAt,
				"total_income":         model.TotalIncome,
				"total_expense":        model.TotalExpense,
				"cash_total":           model.CashTotal,
				"card_total":           model.CardTotal,
				"transfer_total":       model.TransferTotal,
				"digital_wallet_total": model.DigitalWalletTotal,
				"financing_total":      model.FinancingTotal,
				"theoretical_balance":  model.TheoreticalBalance,
				"declared_balance":     model.DeclaredBalance,
				"discrepancy":          model.Discrepancy,
				"observations":         model.Observations,
				"breakdown":            model.Breakdown,
				"reopen_count":         model.ReopenCount,
				"version":              session.Version + 1,
				"updated_at":           model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.CashSessionModel{}).
				Where("tenant_id = ? AND id = ?", session.TenantID, session.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return cashdesk.ErrSessionNotFound(session.ID)
			}
			return shared.ErrConcurrencyConflict
		}
		return saveChildren(tx, session, true)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return cashdesk.ErrSessionAlreadyOpen(session.Site)
		}
		return wrapDBError("save cash session", err)
	}

	session.IncrementVersion()
	session.UpdatedAt = model.UpdatedAt
	return nil
}

// saveChildren upserts incidents and appends the change records and entry links added since the
// session was loaded. Both are append-only, so the stored row count is the index of the first new one.
// The version check in SaveWithLock guarantees nobody appended in between.
func saveChildren(tx *gorm.DB, session *cashdesk.CashSession, existing bool) error {
	if len(session.Incidents) > 0 {
		rows := make([]*models.CashIncidentModel, 0, len(session.Incidents))
		for i := range session.Incidents {
			rows = append(rows, models.CashIncidentModelFromDomain(session.TenantID, i, &session.Incidents[i]))
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"resolved", "resolved_at", "solution", "resolved_by"}),
		}).Create(&rows).Error; err != nil {
			return err
		}
	}

	if len(session.ChangeLog) > 0 {
		from, err := storedCount(tx, existing, &models.CashChangeRecordModel{}, session.ID)
		if err != nil {
			return err
		}
		if from < len(session.ChangeLog) {
			rows := make([]*models.CashChangeRecordModel, 0, len(session.ChangeLog)-from)
			for i := from; i < len(session.ChangeLog); i++ {
				rows = append(rows, models.CashChangeRecordModelFromDomain(session.TenantID, i, &session.ChangeLog[i]))
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return err
			}
		}
	}

	if len(session.EntryIDs) > 0 {
		from, err := storedCount(tx, existing, &models.CashSessionEntryModel{}, session.ID)
		if err != nil {
			return err
		}
		if from < len(session.EntryIDs) {
			rows := make([]*models.CashSessionEntryModel, 0, len(session.EntryIDs)-from)
			for i := from; i < len(session.EntryIDs); i++ {
				rows = append(rows, &models.CashSessionEntryModel{
					SessionID: session.ID,
					EntryID:   session.EntryIDs[i],
					TenantID:  session.TenantID,
					Seq:       i,
				})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func storedCount(tx *gorm.DB, existing bool, model any, sessionID uuid.UUID) (int, error) {
	if !existing {
		return 0, nil
	}
	var n int64
	if err := tx.Model(model).Where("session_id = ?", sessionID).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// hydrate converts rows to aggregates and loads their child collections in three queries
func (r *GormCashSessionRepository) hydrate(ctx context.Context, rows []models.CashSessionModel) ([]cashdesk.CashSession, error) {
	sessions := make([]cashdesk.CashSession, 0, len(rows))
	if len(rows) == 0 {
		return sessions, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	index := make(map[uuid.UUID]int, len(rows))
	for i := range rows {
		sessions = append(sessions, *rows[i].ToDomain())
		ids = append(ids, rows[i].ID)
		index[rows[i].ID] = i
	}

	db := r.db.WithContext(ctx)

	var incidents []models.CashIncidentModel
	if err := db.Where("session_id IN ?", ids).Order("seq ASC").Find(&incidents).Error; err != nil {
		return nil, wrapDBError("load incidents", err)
	}
	for i := range incidents {
		s := &sessions[index[incidents[i].SessionID]]
		s.Incidents = append(s.Incidents, incidents[i].ToDomain())
	}

	var changes []models.CashChangeRecordModel
	if err := db.Where("session_id IN ?", ids).Order("seq ASC").Find(&changes).Error; err != nil {
		return nil, wrapDBError("load change log", err)
	}
	for i := range changes {
		s := &sessions[index[changes[i].SessionID]]
		s.ChangeLog = append(s.ChangeLog, changes[i].ToDomain())
	}

	var links []models.CashSessionEntryModel
	if err := db.Where("session_id IN ?", ids).Order("seq ASC").Find(&links).Error; err != nil {
		return nil, wrapDBError("load entry links", err)
	}
	for i := range links {
		s := &sessions[index[links[i].SessionID]]
		s.EntryIDs = append(s.EntryIDs, links[i].EntryID)
	}
	return sessions, nil
}

var _ cashdesk.CashSessionRepository = (*GormCashSessionRepository)(nil)
