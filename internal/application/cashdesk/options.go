package cashdesk

import (
	"time"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
)

// Options tunes the cash desk services.
// AttachmentURLExpiry is the lifetime of presigned download URLs and Now is the clock used for business dates.
type Options struct {
	Policy              cashdesk.ReconciliationPolicy
	Location            *time.Location
	ReceiptPrefix       string
	MaxRetries          int
	IdempotencyTTL      time.Duration
	AttachmentURLExpiry time.Duration
	MaxAttachmentSize   int64
	Now                 func() time.Time
}

// DefaultOptions returns the production defaults
func DefaultOptions() Options {
	return Options{
		Policy:              cashdesk.DefaultReconciliationPolicy(),
		Location:            time.UTC,
		ReceiptPrefix:       cashdesk.ReceiptPrefix,
		MaxRetries:          3,
		IdempotencyTTL:      24 * time.Hour,
		AttachmentURLExpiry: 15 * time.Minute,
		MaxAttachmentSize:   10 << 20,
		Now:                 time.Now,
	}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Policy.MaterialityThreshold.IsZero() && o.Policy.SevereThreshold.IsZero() {
		o.Policy = d.Policy
	}
	if o.Location == nil {
		o.Location = d.Location
	}
	if o.ReceiptPrefix == "" {
		o.ReceiptPrefix = d.ReceiptPrefix
	}
	if o.MaxRetries < 1 {
		o.MaxRetries = d.MaxRetries
	}
	if o.IdempotencyTTL <= 0 {
		o.IdempotencyTTL = d.IdempotencyTTL
	}
	if o.AttachmentURLExpiry <= 0 {
		o.AttachmentURLExpiry = d.AttachmentURLExpiry
	}
	if o.MaxAttachmentSize <= 0 {
		o.MaxAttachmentSize = d.MaxAttachmentSize
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// today is the business date of the current instant
func (o Options) today() time.Time {
	return cashdesk.BusinessDay(o.Now(), o.Location)
}

// dayBounds returns the half-open instant range [start, end) covering the local days from..to
func (o Options) dayBounds(from, to time.Time) (time.Time, time.Time) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, o.Location)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, o.Location).AddDate(0, 0, 1)
	return start, end
}
