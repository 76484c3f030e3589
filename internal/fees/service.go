package fees

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shiksha-erp/shiksha-erp/internal/fees/reports"
)

// ReportCache stores built cashbooks keyed by scan filter. Implementations
// must treat misses and backend failures identically; the cache is never a
// source of truth.
type ReportCache interface {
	GetCashbook(ctx context.Context, f ScanFilter) (reports.Cashbook, bool)
	SetCashbook(ctx context.Context, f ScanFilter, book reports.Cashbook)
	Invalidate(ctx context.Context, tenantID, sessionID int64)
}

// Service implements the fee ledger commands and queries. Receipt creation
// and reversal run inside one repository transaction; everything else is a
// plain read.
type Service struct {
	repo  Repository
	cache ReportCache
	now   func() time.Time
	newID func() uuid.UUID
}

// NewService wires the ledger service. cache may be nil.
func NewService(repo Repository, cache ReportCache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now, newID: uuid.New}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateReceipt allocates a payment across the student's schedule and
// appends the receipt to the journal, atomically. Auto mode clears cells in
// the declared order; override mode applies the caller's lines directly.
func (s *Service) CreateReceipt(ctx context.Context, input CreateReceiptInput) (Receipt, error) {
	if err := input.Validate(); err != nil {
		return Receipt{}, err
	}
	var receipt Receipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acct, err := tx.LockAccount(ctx, input.TenantID, input.SessionID, input.StudentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: unknown student %d", ErrValidation, input.StudentID)
			}
			return err
		}
		comps, err := tx.GetComponents(ctx, input.TenantID, input.SessionID)
		if err != nil {
			return err
		}
		classes := make(map[int64]ComponentClass, len(comps))
		for _, c := range comps {
			classes[c.ID] = c.Class
		}
		if err := checkComponentsKnown(classes, input); err != nil {
			return err
		}

		cells, err := tx.GetCellsForUpdate(ctx, input.TenantID, input.SessionID, input.StudentID)
		if err != nil {
			return err
		}
		adjusted, err := ApplyConcessions(cells, input.Concessions)
		if err != nil {
			return err
		}

		var result AllocationResult
		if input.Manual() {
			lines := make([]Allocation, 0, len(input.Overrides))
			spent := decimal.Zero
			for _, o := range input.Overrides {
				lines = append(lines, Allocation{ComponentID: o.ComponentID, Month: o.Month, Amount: o.Amount})
				spent = spent.Add(o.Amount)
			}
			if err := CheckManual(adjusted, lines); err != nil {
				return err
			}
			result = AllocationResult{Allocations: lines, Remaining: input.Amount.Sub(spent)}
		} else {
			result = Allocate(adjusted, classes, input.Amount)
		}

		lines := mergeConcessions(result.Allocations, input.Concessions)
		for _, line := range lines {
			if _, err := tx.ApplyCellDelta(ctx, CellDelta{
				TenantID:    input.TenantID,
				SessionID:   input.SessionID,
				StudentID:   input.StudentID,
				ComponentID: line.ComponentID,
				Month:       line.Month,
				Amount:      line.Amount,
				Discount:    line.Discount,
				Fine:        line.Fine,
			}); err != nil {
				return err
			}
		}

		no, err := tx.NextReceiptNo(ctx, input.TenantID, input.SessionID)
		if err != nil {
			return err
		}
		receipt = Receipt{
			ReceiptNo:     no,
			SourceID:      s.newID(),
			TenantID:      input.TenantID,
			SessionID:     input.SessionID,
			StudentID:     input.StudentID,
			ClassName:     acct.ClassName,
			Date:          input.Date,
			Mode:          input.Mode,
			Allocations:   lines,
			TotalReceived: input.Amount,
			Remaining:     result.Remaining,
			Manual:        input.Manual(),
			Note:          input.Note,
			CreatedBy:     input.CreatedBy,
			CreatedAt:     s.now(),
		}
		return tx.InsertReceipt(ctx, receipt)
	})
	if err != nil {
		return Receipt{}, err
	}
	s.invalidate(ctx, input.TenantID, input.SessionID)
	return receipt, nil
}

// DeleteReceipt reverses each allocation against the schedule and appends a
// tombstone. The receipt row itself is never touched.
func (s *Service) DeleteReceipt(ctx context.Context, input DeleteReceiptInput) (DeletionRecord, error) {
	if err := input.Validate(); err != nil {
		return DeletionRecord{}, err
	}
	var record DeletionRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.GetReceipt(ctx, input.TenantID, input.SessionID, input.ReceiptNo)
		if err != nil {
			return err
		}
		// Same lock as creation, so reversal and creation for one student
		// are mutually exclusive.
		if _, err := tx.LockAccount(ctx, input.TenantID, input.SessionID, rec.StudentID); err != nil {
			return err
		}
		deleted, err := tx.IsDeleted(ctx, input.TenantID, input.SessionID, input.ReceiptNo)
		if err != nil {
			return err
		}
		if deleted {
			return fmt.Errorf("%w: receipt %d", ErrAlreadyDeleted, input.ReceiptNo)
		}
		for _, a := range rec.Allocations {
			if _, err := tx.ApplyCellDelta(ctx, CellDelta{
				TenantID:    input.TenantID,
				SessionID:   input.SessionID,
				StudentID:   rec.StudentID,
				ComponentID: a.ComponentID,
				Month:       a.Month,
				Amount:      a.Amount.Neg(),
				Discount:    a.Discount.Neg(),
				Fine:        a.Fine.Neg(),
			}); err != nil {
				return err
			}
		}
		record = DeletionRecord{
			ReceiptNo: input.ReceiptNo,
			TenantID:  input.TenantID,
			SessionID: input.SessionID,
			DeletedBy: input.DeletedBy,
			DeletedAt: s.now(),
			Reason:    input.Reason,
		}
		return tx.InsertDeletion(ctx, record)
	})
	if err != nil {
		return DeletionRecord{}, err
	}
	s.invalidate(ctx, input.TenantID, input.SessionID)
	return record, nil
}

// StudentSummary derives the current balance picture for one student.
func (s *Service) StudentSummary(ctx context.Context, tenantID, sessionID, studentID int64) (StudentFeeSummary, error) {
	acct, err := s.repo.GetAccount(ctx, tenantID, sessionID, studentID)
	if err != nil {
		return StudentFeeSummary{}, err
	}
	comps, err := s.repo.GetComponents(ctx, tenantID, sessionID)
	if err != nil {
		return StudentFeeSummary{}, err
	}
	cells, err := s.repo.GetCells(ctx, tenantID, sessionID, studentID)
	if err != nil {
		return StudentFeeSummary{}, err
	}
	return Summarize(acct, comps, cells), nil
}

// FamilySummary sums the sibling group. Figures stay per student; the family
// total is a pure sum, never a shared pool.
func (s *Service) FamilySummary(ctx context.Context, tenantID, sessionID, groupID int64) (FamilySummary, error) {
	accounts, err := s.repo.GetAccountsByGroup(ctx, tenantID, sessionID, groupID)
	if err != nil {
		return FamilySummary{}, err
	}
	if len(accounts) == 0 {
		return FamilySummary{}, fmt.Errorf("%w: sibling group %d", ErrNotFound, groupID)
	}
	comps, err := s.repo.GetComponents(ctx, tenantID, sessionID)
	if err != nil {
		return FamilySummary{}, err
	}
	summaries := make([]StudentFeeSummary, 0, len(accounts))
	for _, acct := range accounts {
		cells, err := s.repo.GetCells(ctx, tenantID, sessionID, acct.StudentID)
		if err != nil {
			return FamilySummary{}, err
		}
		summaries = append(summaries, Summarize(acct, comps, cells))
	}
	return SummarizeFamily(groupID, summaries), nil
}

// Cashbook builds the date-ranged rollup. Opening balance is a prefix sum
// over the journal with a date cutoff, so the report is reproducible for a
// fixed range regardless of concurrent writes at other dates.
func (s *Service) Cashbook(ctx context.Context, f ScanFilter) (reports.Cashbook, error) {
	if err := f.Validate(); err != nil {
		return reports.Cashbook{}, err
	}
	exists, err := s.repo.TenantSessionExists(ctx, f.TenantID, f.SessionID)
	if err != nil {
		return reports.Cashbook{}, err
	}
	if !exists {
		return reports.Cashbook{}, fmt.Errorf("%w: unknown tenant %d session %d", ErrValidation, f.TenantID, f.SessionID)
	}
	if s.cache != nil {
		if book, ok := s.cache.GetCashbook(ctx, f); ok {
			return book, nil
		}
	}
	opening, err := s.repo.SumReceivedBefore(ctx, f)
	if err != nil {
		return reports.Cashbook{}, err
	}
	receipts, err := s.repo.ScanReceipts(ctx, f)
	if err != nil {
		return reports.Cashbook{}, err
	}
	book := reports.BuildCashbook(opening, toEntries(receipts))
	if s.cache != nil {
		s.cache.SetCashbook(ctx, f, book)
	}
	return book, nil
}

// DeletedRecords returns the audit view of tombstoned receipts in the range.
// Shaped like the cashbook scan but kept apart from the financial totals.
func (s *Service) DeletedRecords(ctx context.Context, f ScanFilter) ([]DeletedReceipt, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ScanDeleted(ctx, f)
}

func (s *Service) invalidate(ctx context.Context, tenantID, sessionID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, tenantID, sessionID)
	}
}

func checkComponentsKnown(classes map[int64]ComponentClass, input CreateReceiptInput) error {
	for _, o := range input.Overrides {
		if _, ok := classes[o.ComponentID]; !ok {
			return fmt.Errorf("%w: unknown component %d", ErrValidation, o.ComponentID)
		}
	}
	for _, c := range input.Concessions {
		if _, ok := classes[c.ComponentID]; !ok {
			return fmt.Errorf("%w: unknown component %d", ErrValidation, c.ComponentID)
		}
	}
	return nil
}

// mergeConcessions folds receipt-time discounts into the allocation lines so
// the journal records cash and concession per cell on one line. Concessions
// on cells the payment never reached become zero-amount lines.
func mergeConcessions(allocs []Allocation, concessions []Concession) []Allocation {
	lines := make([]Allocation, len(allocs))
	copy(lines, allocs)
	index := make(map[cellKey]int, len(lines))
	for i, a := range lines {
		index[cellKey{a.ComponentID, a.Month}] = i
	}
	for _, con := range concessions {
		key := cellKey{con.ComponentID, con.Month}
		if i, ok := index[key]; ok {
			lines[i].Discount = lines[i].Discount.Add(con.Amount)
			continue
		}
		index[key] = len(lines)
		lines = append(lines, Allocation{ComponentID: con.ComponentID, Month: con.Month, Discount: con.Amount})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Month != lines[j].Month {
			return lines[i].Month < lines[j].Month
		}
		return lines[i].ComponentID < lines[j].ComponentID
	})
	return lines
}

func toEntries(receipts []Receipt) []reports.Entry {
	entries := make([]reports.Entry, 0, len(receipts))
	for _, r := range receipts {
		entries = append(entries, reports.Entry{
			ReceiptNo: r.ReceiptNo,
			Date:      r.Date,
			StudentID: r.StudentID,
			ClassName: r.ClassName,
			Mode:      string(r.Mode),
			CashierID: r.CreatedBy,
			Amount:    r.TotalReceived,
		})
	}
	return entries
}
