package fees

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AllocationInput names a specific cell for manual/override receipts.
// Negative amounts are allowed here; edit flows use them to move money
// between cells, still inside the cell invariant.
type AllocationInput struct {
	ComponentID int64
	Month       AcademicMonth
	Amount      decimal.Decimal
}

// CreateReceiptInput groups everything needed to record one payment.
// Tenant and session are always explicit; there is no ambient context.
type CreateReceiptInput struct {
	TenantID    int64
	SessionID   int64
	StudentID   int64
	Amount      decimal.Decimal
	Mode        PaymentMode
	Date        time.Time
	Note        string
	CreatedBy   int64
	Overrides   []AllocationInput
	Concessions []Concession
}

// Manual reports whether the caller pinned allocations instead of using the
// auto clearing order.
func (in CreateReceiptInput) Manual() bool {
	return len(in.Overrides) > 0
}

// Validate rejects malformed input before any store access.
func (in CreateReceiptInput) Validate() error {
	if in.TenantID == 0 || in.SessionID == 0 {
		return fmt.Errorf("%w: tenant and session required", ErrValidation)
	}
	if in.StudentID == 0 {
		return fmt.Errorf("%w: student required", ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !in.Mode.Valid() {
		return fmt.Errorf("%w: unknown payment mode %q", ErrValidation, in.Mode)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrValidation)
	}
	if in.CreatedBy == 0 {
		return fmt.Errorf("%w: creator required", ErrValidation)
	}
	total := decimal.Zero
	for i, line := range in.Overrides {
		if !line.Month.Valid() {
			return fmt.Errorf("%w: override %d has invalid month", ErrValidation, i)
		}
		if line.ComponentID == 0 {
			return fmt.Errorf("%w: override %d missing component", ErrValidation, i)
		}
		total = total.Add(line.Amount)
	}
	if total.GreaterThan(in.Amount) {
		return fmt.Errorf("%w: overrides allocate %s of %s received", ErrValidation, total, in.Amount)
	}
	for i, con := range in.Concessions {
		if !con.Month.Valid() {
			return fmt.Errorf("%w: concession %d has invalid month", ErrValidation, i)
		}
		if con.ComponentID == 0 {
			return fmt.Errorf("%w: concession %d missing component", ErrValidation, i)
		}
		if !con.Amount.IsPositive() {
			return fmt.Errorf("%w: concession %d must be positive", ErrValidation, i)
		}
	}
	return nil
}

// DeleteReceiptInput tombstones a receipt.
type DeleteReceiptInput struct {
	TenantID  int64
	SessionID int64
	ReceiptNo int64
	Reason    string
	DeletedBy int64
}

// Validate rejects malformed deletion requests.
func (in DeleteReceiptInput) Validate() error {
	if in.TenantID == 0 || in.SessionID == 0 {
		return fmt.Errorf("%w: tenant and session required", ErrValidation)
	}
	if in.ReceiptNo == 0 {
		return fmt.Errorf("%w: receipt number required", ErrValidation)
	}
	if in.DeletedBy == 0 {
		return fmt.Errorf("%w: actor required", ErrValidation)
	}
	if in.Reason == "" {
		return fmt.Errorf("%w: reason required", ErrValidation)
	}
	return nil
}

// ScanFilter bounds a journal scan. A zero or ALL mode means no filter.
type ScanFilter struct {
	TenantID  int64
	SessionID int64
	From      time.Time
	To        time.Time
	Mode      PaymentMode
}

// ModeFilter returns the stored-mode filter, empty when unfiltered.
func (f ScanFilter) ModeFilter() PaymentMode {
	if f.Mode == "" || f.Mode == ModeAll {
		return ""
	}
	return f.Mode
}

// Validate checks range sanity for reporting queries.
func (f ScanFilter) Validate() error {
	if f.TenantID == 0 || f.SessionID == 0 {
		return fmt.Errorf("%w: tenant and session required", ErrValidation)
	}
	if f.From.IsZero() || f.To.IsZero() {
		return fmt.Errorf("%w: date range required", ErrValidation)
	}
	if f.To.Before(f.From) {
		return fmt.Errorf("%w: range end before start", ErrValidation)
	}
	if f.Mode != "" && f.Mode != ModeAll && !f.Mode.Valid() {
		return fmt.Errorf("%w: unknown payment mode %q", ErrValidation, f.Mode)
	}
	return nil
}
