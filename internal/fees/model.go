package fees

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComponentClass buckets fee components for allocation ordering. Arrears are
// conventionally cleared fines first, then tuition, then transport, then
// everything else; the priority is declared here rather than inferred from
// component names.
type ComponentClass string

const (
	ClassFine      ComponentClass = "FINE"
	ClassTuition   ComponentClass = "TUITION"
	ClassTransport ComponentClass = "TRANSPORT"
	ClassOther     ComponentClass = "OTHER"
)

var clearingPriority = map[ComponentClass]int{
	ClassFine:      0,
	ClassTuition:   1,
	ClassTransport: 2,
	ClassOther:     3,
}

// Priority returns the clearing rank; unknown classes sort last.
func (c ComponentClass) Priority() int {
	if p, ok := clearingPriority[c]; ok {
		return p
	}
	return len(clearingPriority)
}

// Valid reports whether the class is one of the declared buckets.
func (c ComponentClass) Valid() bool {
	_, ok := clearingPriority[c]
	return ok
}

// PaymentMode identifies how a payment was tendered.
type PaymentMode string

const (
	ModeCash   PaymentMode = "CASH"
	ModeUPI    PaymentMode = "UPI"
	ModeCheque PaymentMode = "CHEQUE"
	ModeCard   PaymentMode = "CARD"
	ModeBank   PaymentMode = "BANK"
	// ModeAll is a report filter value, never stored on a receipt.
	ModeAll PaymentMode = "ALL"
)

var paymentModes = map[PaymentMode]bool{
	ModeCash:   true,
	ModeUPI:    true,
	ModeCheque: true,
	ModeCard:   true,
	ModeBank:   true,
}

// Valid reports whether the mode may be stored on a receipt.
func (m PaymentMode) Valid() bool {
	return paymentModes[m]
}

// FeeComponent is a named charge category scoped to a tenant and session.
type FeeComponent struct {
	ID        int64
	TenantID  int64
	SessionID int64
	Name      string
	Class     ComponentClass
}

// MonthlyCell is the (student, component, month) unit of charge, discount,
// fine and payment. Paid never exceeds Net and never goes negative.
type MonthlyCell struct {
	TenantID    int64
	SessionID   int64
	StudentID   int64
	ComponentID int64
	Month       AcademicMonth
	Base        decimal.Decimal
	Discount    decimal.Decimal
	Fine        decimal.Decimal
	Paid        decimal.Decimal
}

// Net is the amount actually chargeable for the cell.
func (c MonthlyCell) Net() decimal.Decimal {
	return c.Base.Sub(c.Discount).Add(c.Fine)
}

// Due is the unpaid remainder, floored at zero.
func (c MonthlyCell) Due() decimal.Decimal {
	due := c.Net().Sub(c.Paid)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// StudentAccount carries the per-session balance context for one student.
// OldBalance is frozen at session rollover and never recomputed.
type StudentAccount struct {
	StudentID      int64
	TenantID       int64
	SessionID      int64
	StudentName    string
	ClassName      string
	OldBalance     decimal.Decimal
	SiblingGroupID *int64
}

// Allocation is the portion of one payment applied to one cell.
type Allocation struct {
	ComponentID int64
	Month       AcademicMonth
	Amount      decimal.Decimal
	Discount    decimal.Decimal
	Fine        decimal.Decimal
}

// Receipt records one payment event. Immutable after creation; deletion is a
// tombstone in receipt_deletions, never an update here.
type Receipt struct {
	ReceiptNo     int64
	SourceID      uuid.UUID
	TenantID      int64
	SessionID     int64
	StudentID     int64
	ClassName     string
	Date          time.Time
	Mode          PaymentMode
	Allocations   []Allocation
	TotalReceived decimal.Decimal
	Remaining     decimal.Decimal
	Manual        bool
	Note          string
	CreatedBy     int64
	CreatedAt     time.Time
}

// DeletionRecord tombstones a receipt. The receipt row stays untouched; the
// tombstone excludes it from balances and cashbook totals while keeping it
// visible to the audit view.
type DeletionRecord struct {
	ReceiptNo int64
	TenantID  int64
	SessionID int64
	DeletedBy int64
	DeletedAt time.Time
	Reason    string
}

// DeletedReceipt pairs a receipt with its tombstone for audit reporting.
type DeletedReceipt struct {
	Receipt  Receipt
	Deletion DeletionRecord
}
