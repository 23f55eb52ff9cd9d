package cashdesk

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/clinicdesk/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EntryService records, voids and annotates ledger entries
type EntryService struct {
	txScope        TransactionScope
	sessionRepo    cashdesk.CashSessionRepository
	entryRepo      cashdesk.LedgerEntryRepository
	locker         SessionLocker
	idempotency    shared.IdempotencyStore
	storage        AttachmentStorage
	eventPublisher shared.EventPublisher
	opts           Options
	logger         *zap.Logger
}

// NewEntryService creates a new EntryService
func NewEntryService(
	txScope TransactionScope,
	sessionRepo cashdesk.CashSessionRepository,
	entryRepo cashdesk.LedgerEntryRepository,
	locker SessionLocker,
	opts Options,
) *EntryService {
	if locker == nil {
		locker = noopLocker{}
	}
	return &EntryService{
		txScope:     txScope,
		sessionRepo: sessionRepo,
		entryRepo:   entryRepo,
		locker:      locker,
		opts:        opts.normalized(),
		logger:      zap.NewNop(),
	}
}

// SetEventPublisher sets the publisher that receives domain events after commit
func (s *EntryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetIdempotencyStore enables the fast path for re-delivered create requests
func (s *EntryService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetAttachmentStorage sets the storage backing entry attachments
func (s *EntryService) SetAttachmentStorage(storage AttachmentStorage) {
	s.storage = storage
}

// SetLogger sets the service logger
func (s *EntryService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func idempotencyKey(tenantID uuid.UUID, key string) string {
	return "cashdesk:entry:" + tenantID.String() + ":" + key
}

// Create records an entry against today's open session of the site and links it.
// Income entries take the next receipt number of the year. Re-delivering a request
// with the same idempotency key returns the original entry.
func (s *EntryService) Create(ctx context.Context, tenantID uuid.UUID, req CreateEntryRequest) (*EntryResponse, error) {
	site := strings.TrimSpace(req.Site)
	if site == "" {
		return nil, shared.NewValidationError(cashdesk.CodeInvalidSite, "Site cannot be empty")
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if existing := s.replay(ctx, tenantID, key); existing != nil {
		return toEntryResponse(existing), nil
	}

	unlock, err := s.locker.Lock(ctx, LockKey(tenantID, site))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		entry    *cashdesk.LedgerEntry
		session  *cashdesk.CashSession
		replayed bool
	)
	now := s.opts.Now()
	err = traced(ctx, "create_entry", site, s.opts.MaxRetries, func(ctx context.Context) error {
		replayed = false
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			if key != "" {
				existing, err := repos.EntryRepo().FindByIdempotencyKey(ctx, tenantID, key)
				if err != nil && !isNotFound(err) {
					return err
				}
				if existing != nil {
					entry, replayed = existing, true
					return nil
				}
			}

			open, err := repos.SessionRepo().FindOpen(ctx, tenantID, site, cashdesk.BusinessDay(now, s.opts.Location))
			if err != nil {
				if isNotFound(err) {
					return cashdesk.ErrNoOpenSession(site)
				}
				return err
			}
			session, err = repos.SessionRepo().FindByIDForUpdate(ctx, tenantID, open.ID)
			if err != nil {
				return err
			}

			entry, err = cashdesk.NewLedgerEntry(cashdesk.NewEntryParams{
				TenantID:       tenantID,
				Session:        session,
				Kind:           cashdesk.EntryKind(strings.ToUpper(req.Kind)),
				Category:       cashdesk.Category(strings.ToUpper(req.Category)),
				Amount:         req.Amount,
				PaymentMethod:  cashdesk.PaymentMethod(strings.ToUpper(req.PaymentMethod)),
				PatientRef:     req.PatientRef,
				Description:    req.Description,
				CreatedBy:      req.CreatedBy,
				IdempotencyKey: key,
			})
			if err != nil {
				return err
			}
			entry.RecordedAt = now

			if entry.NeedsReceipt() {
				year := now.In(s.opts.Location).Year()
				n, err := repos.ReceiptRepo().Next(ctx, tenantID, year)
				if err != nil {
					return err
				}
				if err := entry.AssignReceipt(cashdesk.FormatReceiptNumber(s.opts.ReceiptPrefix, year, n)); err != nil {
					return err
				}
			}

			if err := repos.EntryRepo().Create(ctx, entry); err != nil {
				return err
			}
			if err := session.LinkEntry(entry); err != nil {
				return err
			}
			telemetry.SetAttributes(trace.SpanFromContext(ctx),
				telemetry.SpanAttrSessionID, session.ID.String(),
				telemetry.SpanAttrEntryID, entry.ID.String(),
				telemetry.SpanAttrAmount, entry.Amount.String(),
				telemetry.SpanAttrReceipt, entry.ReceiptNumber)
			return repos.SessionRepo().SaveWithLock(ctx, session)
		})
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		return toEntryResponse(entry), nil
	}

	if key != "" && s.idempotency != nil {
		if _, err := s.idempotency.Remember(ctx, idempotencyKey(tenantID, key), entry.ID.String(), s.opts.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to remember idempotency key", zap.String("key", key), zap.Error(err))
		}
	}
	s.logger.Info("Ledger entry recorded",
		zap.String("entry_id", entry.ID.String()),
		zap.String("session_id", entry.SessionID.String()),
		zap.String("kind", string(entry.Kind)),
		zap.String("amount", entry.Amount.String()),
		zap.String("receipt_number", entry.ReceiptNumber))
	publish(ctx, s.eventPublisher, entry, session)
	return toEntryResponse(entry), nil
}

// replay returns the entry already created under key, using the idempotency store only
func (s *EntryService) replay(ctx context.Context, tenantID uuid.UUID, key string) *cashdesk.LedgerEntry {
	if key == "" || s.idempotency == nil {
		return nil
	}
	value, ok, err := s.idempotency.Lookup(ctx, idempotencyKey(tenantID, key))
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil
	}
	entry, err := s.entryRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil
	}
	return entry
}

// GetByID returns a ledger entry
func (s *EntryService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*EntryResponse, error) {
	entry, err := s.entryRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return toEntryResponse(entry), nil
}

// ListBySession returns every entry of a session, voided ones included
func (s *EntryService) ListBySession(ctx context.Context, tenantID, sessionID uuid.UUID) ([]EntryResponse, error) {
	if _, err := s.sessionRepo.FindByID(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}
	entries, err := s.entryRepo.FindBySession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	return toEntryResponses(entries), nil
}

// Void voids a posted entry of an open session and applies the compensating update to its totals
func (s *EntryService) Void(ctx context.Context, tenantID, id uuid.UUID, req VoidEntryRequest) (*EntryResponse, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, shared.NewValidationError(cashdesk.CodeReasonRequired, "A reason is required to void an entry")
	}
	located, err := s.entryRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, LockKey(tenantID, located.Site))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		entry   *cashdesk.LedgerEntry
		session *cashdesk.CashSession
	)
	err = traced(ctx, "void_entry", located.Site, s.opts.MaxRetries, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			session, err = repos.SessionRepo().FindByIDForUpdate(ctx, tenantID, located.SessionID)
			if err != nil {
				return err
			}
			entry, err = repos.EntryRepo().FindByID(ctx, tenantID, id)
			if err != nil {
				return err
			}
			if !entry.IsPosted() {
				return shared.NewPreconditionError(cashdesk.CodeEntryNotPosted, "Entry is already voided")
			}
			if !session.IsOpen() {
				return shared.NewPreconditionError(cashdesk.CodeSessionNotOpen, "Entries of a closed cash session cannot be voided")
			}
			if err := entry.Void(req.Reason, req.VoidedBy); err != nil {
				return err
			}
			if err := session.ReverseEntry(entry, req.VoidedBy); err != nil {
				return err
			}
			if err := repos.EntryRepo().Save(ctx, entry); err != nil {
				return err
			}
			return repos.SessionRepo().SaveWithLock(ctx, session)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Ledger entry voided",
		zap.String("entry_id", entry.ID.String()),
		zap.String("session_id", session.ID.String()),
		zap.String("reason", entry.VoidReason))
	publish(ctx, s.eventPublisher, entry, session)
	return toEntryResponse(entry), nil
}

// Update changes description, notes or attachments. Any financial field in the patch is rejected.
func (s *EntryService) Update(ctx context.Context, tenantID, id uuid.UUID, req UpdateEntryRequest) (*EntryResponse, error) {
	patch := req.toPatch()
	return s.patch(ctx, "update_entry", tenantID, id, func(entry *cashdesk.LedgerEntry) error {
		return entry.ApplyPatch(patch)
	})
}

func (s *EntryService) patch(ctx context.Context, op string, tenantID, id uuid.UUID, fn func(entry *cashdesk.LedgerEntry) error) (*EntryResponse, error) {
	var entry *cashdesk.LedgerEntry
	err := traced(ctx, op, "", s.opts.MaxRetries, func(ctx context.Context) error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			entry, err = repos.EntryRepo().FindByID(ctx, tenantID, id)
			if err != nil {
				return err
			}
			if err := fn(entry); err != nil {
				return err
			}
			return repos.EntryRepo().Save(ctx, entry)
		})
	})
	if err != nil {
		return nil, err
	}
	return toEntryResponse(entry), nil
}

// Attach uploads a file and appends its storage key to the entry's attachments
func (s *EntryService) Attach(ctx context.Context, tenantID, id uuid.UUID, req AttachFileRequest) (*EntryResponse, error) {
	if s.storage == nil {
		return nil, shared.NewPreconditionError("STORAGE_UNAVAILABLE", "Attachment storage is not configured")
	}
	if len(req.Data) == 0 {
		return nil, shared.NewValidationError("EMPTY_ATTACHMENT", "Attachment is empty")
	}
	if int64(len(req.Data)) > s.opts.MaxAttachmentSize {
		return nil, shared.NewValidationError("ATTACHMENT_TOO_LARGE",
			fmt.Sprintf("Attachment exceeds %d bytes", s.opts.MaxAttachmentSize))
	}
	if _, err := s.entryRepo.FindByID(ctx, tenantID, id); err != nil {
		return nil, err
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	storageKey := attachmentKey(tenantID, id, req.FileName)
	if err := s.storage.Upload(ctx, storageKey, req.Data, contentType); err != nil {
		return nil, shared.NewInfrastructureError("upload attachment", err)
	}

	resp, err := s.patch(ctx, "attach_file", tenantID, id, func(entry *cashdesk.LedgerEntry) error {
		return entry.AddAttachment(storageKey)
	})
	if err != nil {
		if delErr := s.storage.DeleteObject(ctx, storageKey); delErr != nil {
			s.logger.Warn("Failed to remove orphaned attachment",
				zap.String("storage_key", storageKey), zap.Error(delErr))
		}
		return nil, err
	}
	return resp, nil
}

// AttachmentURL returns a presigned download link for one of the entry's attachments
func (s *EntryService) AttachmentURL(ctx context.Context, tenantID, id uuid.UUID, storageKey string) (*AttachmentURLResponse, error) {
	if s.storage == nil {
		return nil, shared.NewPreconditionError("STORAGE_UNAVAILABLE", "Attachment storage is not configured")
	}
	entry, err := s.entryRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !entry.OwnsAttachment(storageKey) || !slices.Contains(entry.Attachments, storageKey) {
		return nil, shared.NewNotFoundError("ATTACHMENT_NOT_FOUND", "Attachment not found on entry")
	}
	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, storageKey, s.opts.AttachmentURLExpiry)
	if err != nil {
		return nil, shared.NewInfrastructureError("presign attachment", err)
	}
	return &AttachmentURLResponse{Key: storageKey, URL: url, ExpiresAt: expiresAt}, nil
}

func attachmentKey(tenantID, entryID uuid.UUID, fileName string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return cashdesk.AttachmentPrefix(tenantID, entryID) + uuid.New().String()[:8] + "-" + name
}
