package cashdesk

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func incomeRequest(f *serviceFixture, amount string) CreateEntryRequest {
	patient := "P-100"
	return CreateEntryRequest{
		Site:          "main",
		Kind:          "income",
		Category:      "services",
		Amount:        dec(amount),
		PaymentMethod: "cash",
		PatientRef:    &patient,
		Description:   "Consultation",
		CreatedBy:     f.userID,
	}
}

func TestEntryService_Create(t *testing.T) {
	ctx := context.Background()
	today := cashdesk.BusinessDay(fixedNow, time.UTC)

	t.Run("income gets a receipt and is linked", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("100")
		f.sessionRepo.On("FindOpen", mock.Anything, f.tenantID, "main", today).Return(s, nil)
		f.sessionRepo.On("FindByIDForUpdate", mock.Anything, f.tenantID, s.ID).Return(s, nil)
		f.receiptRepo.On("Next", mock.Anything, f.tenantID, 2024).Return(7, nil)
		f.entryRepo.On("Create", mock.Anything, mock.AnythingOfType("*cashdesk.LedgerEntry")).Return(nil)
		f.sessionRepo.On("SaveWithLock", mock.Anything, s).Return(nil)

		resp, err := f.entryService().Create(ctx, f.tenantID, incomeRequest(f, "45.50"))
		require.NoError(t, err)
		assert.Equal(t, "R-2024-007", resp.ReceiptNumber)
		assert.Equal(t, "INCOME", resp.Kind)
		assert.Equal(t, "SERVICES", resp.Category)
		assert.Equal(t, "CASH", resp.PaymentMethod)
		assert.Equal(t, "POSTED", resp.State)
		assert.Equal(t, fixedNow, resp.RecordedAt)
		assert.Equal(t, s.ID, resp.SessionID)

		assert.True(t, s.TotalIncome.Equal(dec("45.50")))
		assert.True(t, s.TheoreticalBalance.Equal(dec("145.50")))
		assert.True(t, s.IsLinked(resp.ID))
		assert.Len(t, f.publisher.GetEventsByType(cashdesk.EventTypeLedgerEntryPosted), 1)
	})

	t.Run("expense has no receipt", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("100")
		f.sessionRepo.On("FindOpen", mock.Anything, f.tenantID, "main", today).Return(s, nil)
		f.sessionRepo.On("FindByIDForUpdate", mock.Anything, f.tenantID, s.ID).Return(s, nil)
		f.entryRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.sessionRepo.On("SaveWithLock", mock.Anything, s).Return(nil)

		resp, err := f.entryService().Create(ctx, f.tenantID, CreateEntryRequest{
			Site:          "main",
			Kind:          "EXPENSE",
			Category:      "SUPPLIES",
			Amount:        dec("30"),
			PaymentMethod: "CARD",
			CreatedBy:     f.userID,
		})
		require.NoError(t, err)
		assert.Empty(t, resp.ReceiptNumber)
		assert.True(t, s.TheoreticalBalance.Equal(dec("70")))
		assert.True(t, s.TotalsByMethod.Get(cashdesk.PaymentMethodCard).Equal(dec("30")))
		f.receiptRepo.AssertNotCalled(t, "Next", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no open session", func(t *testing.T) {
		f := newServiceFixture()
		f.sessionRepo.On("FindOpen", mock.Anything, f.tenantID, "main", today).Return(nil, shared.ErrNotFound)

		_, err := f.entryService().Create(ctx, f.tenantID, incomeRequest(f, "10"))
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindPrecondition))
		f.entryRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("category of the other kind", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("0")
		f.sessionRepo.On("FindOpen", mock.Anything, f.tenantID, "main", today).Return(s, nil)
		f.sessionRepo.On("FindByIDForUpdate", mock.Anything, f.tenantID, s.ID).Return(s, nil)

		req := incomeRequest(f, "10")
		req.Category = "PAYROLL"
		_, err := f.entryService().Create(ctx, f.tenantID, req)
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		assert.True(t, s.TotalIncome.IsZero())
	})

	t.Run("non positive amount", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("0")
		f.sessionRepo.On("FindOpen", mock.Anything, f.tenantID, "main", today).Return(s, nil)
		f.sessionRepo.On("FindByIDForUpdate", mock.Anything, f.tenantID, s.ID).Return(s, nil)

		_, err := f.entryService().Create(ctx, f.tenantID, incomeRequest(f, "0"))
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	for _, amount := range []string{"0.00001", "100000000000000"} {
		t.Run("unstorable amount "+amount, func(t *testing.T) {
			f := newServiceFixture()
			s := f.openSession("0")
			f.sessionRepo.On("FindOpen", mock.Anything, f.tenantID, "main", today).Return(s, nil)
			f.sessionRepo.On("FindByIDForUpdate", mock.Anything, f.tenantID, s.ID).Return(s, nil)

			_, err := f.entryService().Create(ctx, f.tenantID, incomeRequest(f, amount))
			require.Error(t, err)
			assert.True(t, shared.IsKind(err, shared.KindValidation))
			assert.False(t, shared.IsRetryable(err))
			assert.True(t, s.TotalIncome.IsZero())
			f.entryRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			f.receiptRepo.AssertNotCalled(t, "Next", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("receipt counter failure leaves the session untouched", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("0")
		f.sessionRepo.On("FindOpen", mock.Anything, f.tenantID, "main", today).Return(s, nil)
		f.sessionRepo.On("FindByIDForUpdate", mock.Anything, f.tenantID, s.ID).Return(s, nil)
		f.receiptRepo.On("Next", mock.Anything, f.tenantID, 2024).
			Return(0, shared.NewInfrastructureError("next receipt", errors.New("timeout")))

		_, err := f.entryService().Create(ctx, f.tenantID, incomeRequest(f, "10"))
		assert.True(t, shared.IsRetryable(err))
		assert.Empty(t, s.EntryIDs)
		f.sessionRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("idempotency key found in the store", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("0")
		existing := f.postedEntry(s, cashdesk.EntryKindIncome, cashdesk.CategoryServices, "10")
		store := newMapIdempotencyStore()
		_, _ = store.Remember(ctx, idempotencyKey(f.tenantID, "abc"), existing.ID.String(), time.Hour)
		f.entryRepo.On("FindByID", mock.Anything, f.tenantID, existing.ID).Return(existing, nil)

		svc := f.entryService()
		svc.SetIdempotencyStore(store)
		req := incomeRequest(f, "10")
		req.IdempotencyKey = "abc"

		resp, err := svc.Create(ctx, f.tenantID, req)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, resp.ID)
		assert.Empty(t, f.locker.keys)
		f.sessionRepo.AssertNotCalled(t, "FindOpen", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("idempotency key found in the ledger", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("0")
		existing := f.postedEntry(s, cashdesk.EntryKindIncome, cashdesk.CategoryServices, "10")
		f.entryRepo.On("FindByIdempotencyKey", mock.Anything, f.tenantID, "abc").Return(existing, nil)

		req := incomeRequest(f, "10")
		req.IdempotencyKey = "abc"
		resp, err := f.entryService().Create(ctx, f.tenantID, req)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, resp.ID)
		assert.True(t, s.TotalIncome.Equal(dec("10")))
		assert.Empty(t, f.publisher.GetEventsByType(cashdesk.EventTypeLedgerEntryPosted))
	})

	t.Run("first delivery remembers the key", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("0")
		store := newMapIdempotencyStore()
		f.entryRepo.On("FindByIdempotencyKey", mock.Anything, f.tenantID, "k-1").Return(nil, shared.ErrNotFound)
		f.sessionRepo.On("FindOpen", mock.Anything, f.tenantID, "main", today).Return(s, nil)
		f.sessionRepo.On("FindByIDForUpdate", mock.Anything, f.tenantID, s.ID).Return(s, nil)
		f.receiptRepo.On("Next", mock.Anything, f.tenantID, 2024).Return(1, nil)
		f.entryRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.sessionRepo.On("SaveWithLock", mock.Anything, s).Return(nil)

		svc := f.entryService()
		svc.SetIdempotencyStore(store)
		req := incomeRequest(f, "10")
		req.IdempotencyKey = "k-1"
		resp, err := svc.Create(ctx, f.tenantID, req)
		require.NoError(t, err)

		value, ok, _ := store.Lookup(ctx, idempotencyKey(f.tenantID, "k-1"))
		assert.True(t, ok)
		assert.Equal(t, resp.ID.String(), value)
	})
}

func TestEntryService_Void(t *testing.T) {
	ctx := context.Background()

	t.Run("voids and reverses totals", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("100")
		entry := f.postedEntry(s, cashdesk.EntryKindIncome, cashdesk.CategoryServices, "40")
		f.entryRepo.On("FindByID", mock.Anything, f.tenantID, entry.ID).Return(entry, nil)
		f.sessionRepo.On("FindByIDForUpdate", mock.Anything, f.tenantID, s.ID).Return(s, nil)
		f.entryRepo.On("Save", mock.Anything, entry).Return(nil)
		f.sessionRepo.On("SaveWithLock", mock.Anything, s).Return(nil)

		resp, err := f.entryService().Void(ctx, f.tenantID, entry.ID, VoidEntryRequest{Reason: "duplicate", VoidedBy: f.userID})
		require.NoError(t, err)
		assert.Equal(t, "VOIDED", resp.State)
		assert.Equal(t, "duplicate", resp.VoidReason)
		assert.True(t, s.TotalIncome.IsZero())
		assert.True(t, s.TheoreticalBalance.Equal(dec("100")))
		assert.Len(t, f.publisher.GetEventsByType(cashdesk.EventTypeLedgerEntryVoided), 1)
		assert.Equal(t, []string{LockKey(f.tenantID, "main")}, f.locker.keys)
	})

	t.Run("already voided", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("100")
		entry := f.postedEntry(s, cashdesk.EntryKindIncome, cashdesk.CategoryServices, "40")
		require.NoError(t, entry.Void("first", f.userID))
		f.entryRepo.On("FindByID", mock.Anything, f.tenantID, entry.ID).Return(entry, nil)
		f.sessionRepo.On("FindByIDForUpdate", mock.Anything, f.tenantID, s.ID).Return(s, nil)

		_, err := f.entryService().Void(ctx, f.tenantID, entry.ID, VoidEntryRequest{Reason: "again", VoidedBy: f.userID})
		assert.True(t, shared.IsKind(err, shared.KindPrecondition))
		assert.True(t, s.TotalIncome.Equal(dec("40")))
	})

	t.Run("session closed", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("100")
		entry := f.postedEntry(s, cashdesk.EntryKindExpense, cashdesk.CategoryRent, "40")
		_, err := s.Close(cashdesk.CloseParams{DeclaredBalance: decPtr("60"), ClosedBy: f.userID, Policy: f.opts.Policy})
		require.NoError(t, err)
		f.entryRepo.On("FindByID", mock.Anything, f.tenantID, entry.ID).Return(entry, nil)
		f.sessionRepo.On("FindByIDForUpdate", mock.Anything, f.tenantID, s.ID).Return(s, nil)

		_, err = f.entryService().Void(ctx, f.tenantID, entry.ID, VoidEntryRequest{Reason: "late", VoidedBy: f.userID})
		assert.True(t, shared.IsKind(err, shared.KindPrecondition))
		assert.True(t, entry.IsPosted())
	})

	t.Run("reason required", func(t *testing.T) {
		f := newServiceFixture()
		_, err := f.entryService().Void(ctx, f.tenantID, f.openSession("0").ID, VoidEntryRequest{})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})
}

func TestEntryService_Update(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	s := f.openSession("0")
	entry := f.postedEntry(s, cashdesk.EntryKindIncome, cashdesk.CategoryServices, "10")
	f.entryRepo.On("FindByID", mock.Anything, f.tenantID, entry.ID).Return(entry, nil)
	f.entryRepo.On("Save", mock.Anything, entry).Return(nil)
	svc := f.entryService()

	notes := "paid in coins"
	resp, err := svc.Update(ctx, f.tenantID, entry.ID, UpdateEntryRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "paid in coins", resp.Notes)

	_, err = svc.Update(ctx, f.tenantID, entry.ID, UpdateEntryRequest{Amount: decPtr("99")})
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindValidation))
	assert.True(t, entry.Amount.Equal(dec("10")))
	f.entryRepo.AssertNumberOfCalls(t, "Save", 1)
}

func TestEntryService_UpdateRejectsForeignAttachments(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	s := f.openSession("0")
	entry := f.postedEntry(s, cashdesk.EntryKindIncome, cashdesk.CategoryServices, "10")
	f.entryRepo.On("FindByID", mock.Anything, f.tenantID, entry.ID).Return(entry, nil)
	f.entryRepo.On("Save", mock.Anything, entry).Return(nil)

	storage := new(MockAttachmentStorage)
	svc := f.entryService()
	svc.SetAttachmentStorage(storage)

	foreign := cashdesk.AttachmentPrefix(uuid.New(), uuid.New()) + "abcd1234-payroll.pdf"
	_, err := svc.Update(ctx, f.tenantID, entry.ID, UpdateEntryRequest{Attachments: &[]string{foreign}})
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindValidation))
	assert.Empty(t, entry.Attachments)
	f.entryRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)

	_, err = svc.AttachmentURL(ctx, f.tenantID, entry.ID, foreign)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
	storage.AssertNotCalled(t, "GenerateDownloadURL", mock.Anything, mock.Anything, mock.Anything)

	t.Run("removing an attachment is allowed", func(t *testing.T) {
		own := cashdesk.AttachmentPrefix(f.tenantID, entry.ID) + "abcd1234-scan.png"
		require.NoError(t, entry.AddAttachment(own))

		resp, err := svc.Update(ctx, f.tenantID, entry.ID, UpdateEntryRequest{Attachments: &[]string{}})
		require.NoError(t, err)
		assert.Empty(t, resp.Attachments)
	})
}

func TestEntryService_Attach(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads and records the key", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("0")
		entry := f.postedEntry(s, cashdesk.EntryKindExpense, cashdesk.CategorySupplies, "10")
		storage := new(MockAttachmentStorage)
		storage.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "cashdesk/"+f.tenantID.String()+"/entries/"+entry.ID.String()+"/") &&
				strings.HasSuffix(key, "-invoice.pdf")
		}), []byte("pdf"), "application/pdf").Return(nil)
		f.entryRepo.On("FindByID", mock.Anything, f.tenantID, entry.ID).Return(entry, nil)
		f.entryRepo.On("Save", mock.Anything, entry).Return(nil)

		svc := f.entryService()
		svc.SetAttachmentStorage(storage)
		resp, err := svc.Attach(ctx, f.tenantID, entry.ID, AttachFileRequest{
			FileName:    "../../invoice.pdf",
			ContentType: "application/pdf",
			Data:        []byte("pdf"),
		})
		require.NoError(t, err)
		require.Len(t, resp.Attachments, 1)
		storage.AssertExpectations(t)
	})

	t.Run("removes the object when saving fails", func(t *testing.T) {
		f := newServiceFixture()
		s := f.openSession("0")
		entry := f.postedEntry(s, cashdesk.EntryKindExpense, cashdesk.CategorySupplies, "10")
		storage := new(MockAttachmentStorage)
		storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		storage.On("DeleteObject", mock.Anything, mock.Anything).Return(nil)
		f.entryRepo.On("FindByID", mock.Anything, f.tenantID, entry.ID).Return(entry, nil)
		f.entryRepo.On("Save", mock.Anything, entry).Return(errors.New("disk full"))

		svc := f.entryService()
		svc.SetAttachmentStorage(storage)
		_, err := svc.Attach(ctx, f.tenantID, entry.ID, AttachFileRequest{FileName: "a.png", Data: []byte{1}})
		require.Error(t, err)
		storage.AssertCalled(t, "DeleteObject", mock.Anything, mock.Anything)
	})

	t.Run("rejects oversized files", func(t *testing.T) {
		f := newServiceFixture()
		f.opts.MaxAttachmentSize = 4
		svc := f.entryService()
		svc.SetAttachmentStorage(new(MockAttachmentStorage))
		_, err := svc.Attach(ctx, f.tenantID, f.openSession("0").ID, AttachFileRequest{FileName: "a", Data: []byte("12345")})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	t.Run("without storage", func(t *testing.T) {
		f := newServiceFixture()
		_, err := f.entryService().Attach(ctx, f.tenantID, f.openSession("0").ID, AttachFileRequest{Data: []byte{1}})
		assert.True(t, shared.IsKind(err, shared.KindPrecondition))
	})
}

func TestEntryService_AttachmentURL(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	s := f.openSession("0")
	entry := f.postedEntry(s, cashdesk.EntryKindExpense, cashdesk.CategorySupplies, "10")
	key := cashdesk.AttachmentPrefix(f.tenantID, entry.ID) + "0badf00d-receipt.png"
	require.NoError(t, entry.AddAttachment(key))
	expires := fixedNow.Add(15 * time.Minute)

	storage := new(MockAttachmentStorage)
	storage.On("GenerateDownloadURL", mock.Anything, key, 15*time.Minute).
		Return("https://files.example/receipt.png", expires, nil)
	f.entryRepo.On("FindByID", mock.Anything, f.tenantID, entry.ID).Return(entry, nil)

	svc := f.entryService()
	svc.SetAttachmentStorage(storage)

	resp, err := svc.AttachmentURL(ctx, f.tenantID, entry.ID, key)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/receipt.png", resp.URL)
	assert.Equal(t, expires, resp.ExpiresAt)

	_, err = svc.AttachmentURL(ctx, f.tenantID, entry.ID, cashdesk.AttachmentPrefix(f.tenantID, entry.ID)+"0badf00d-other.png")
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestAttachmentKey(t *testing.T) {
	f := newServiceFixture()
	s := f.openSession("0")
	key := attachmentKey(f.tenantID, s.ID, `C:\scans\note.txt`)
	assert.True(t, strings.HasSuffix(key, "-note.txt"))

	key = attachmentKey(f.tenantID, s.ID, "")
	assert.True(t, strings.HasSuffix(key, "-file"))
}
