package reports

import "time"

// CashbookViewModel shapes the cashbook for JSON/PDF consumers. Amounts are
// duplicated as en-IN formatted strings so downstream renderers never
// re-derive figures from the ledger.
type CashbookViewModel struct {
	TenantID       int64              `json:"tenant_id"`
	SessionID      int64              `json:"session_id"`
	From           time.Time          `json:"from"`
	To             time.Time          `json:"to"`
	ModeFilter     string             `json:"mode_filter"`
	OpeningBalance string             `json:"opening_balance"`
	Entries        []EntryView        `json:"entries"`
	ModeSummary    []ModeSummaryView  `json:"payment_mode_summary"`
	ClassSummary   []ClassSummaryView `json:"class_wise_summary"`
	GrandTotal     string             `json:"grand_total"`
	Report         Cashbook           `json:"report"`
}

// EntryView is one formatted cashbook line.
type EntryView struct {
	ReceiptNo int64     `json:"receipt_no"`
	Date      time.Time `json:"date"`
	StudentID int64     `json:"student_id"`
	ClassName string    `json:"class_name"`
	Mode      string    `json:"mode"`
	CashierID int64     `json:"cashier_id"`
	Amount    string    `json:"amount"`
}

// CashierTotalView is one cashier row inside a mode group.
type CashierTotalView struct {
	CashierID int64  `json:"cashier_id"`
	Total     string `json:"total"`
}

// ModeSummaryView is one formatted payment-mode group.
type ModeSummaryView struct {
	Mode     string             `json:"mode"`
	Cashiers []CashierTotalView `json:"cashiers"`
	Total    string             `json:"total"`
}

// ClassSummaryView is one formatted class-wise row.
type ClassSummaryView struct {
	ClassName string `json:"class_name"`
	Count     int    `json:"count"`
	Min       string `json:"min"`
	Max       string `json:"max"`
	Average   string `json:"average"`
	Total     string `json:"total"`
}

// NewCashbookViewModel formats a built cashbook for rendering.
func NewCashbookViewModel(tenantID, sessionID int64, from, to time.Time, modeFilter string, book Cashbook) CashbookViewModel {
	vm := CashbookViewModel{
		TenantID:       tenantID,
		SessionID:      sessionID,
		From:           from,
		To:             to,
		ModeFilter:     modeFilter,
		OpeningBalance: FormatAmount(book.OpeningBalance),
		GrandTotal:     FormatAmount(book.GrandTotal),
		Report:         book,
	}
	for _, e := range book.Entries {
		vm.Entries = append(vm.Entries, EntryView{
			ReceiptNo: e.ReceiptNo,
			Date:      e.Date,
			StudentID: e.StudentID,
			ClassName: e.ClassName,
			Mode:      e.Mode,
			CashierID: e.CashierID,
			Amount:    FormatAmount(e.Amount),
		})
	}
	for _, m := range book.ModeSummary {
		view := ModeSummaryView{Mode: m.Mode, Total: FormatAmount(m.Total)}
		for _, c := range m.Cashiers {
			view.Cashiers = append(view.Cashiers, CashierTotalView{CashierID: c.CashierID, Total: FormatAmount(c.Total)})
		}
		vm.ModeSummary = append(vm.ModeSummary, view)
	}
	for _, c := range book.ClassSummary {
		vm.ClassSummary = append(vm.ClassSummary, ClassSummaryView{
			ClassName: c.ClassName,
			Count:     c.Count,
			Min:       FormatAmount(c.Min),
			Max:       FormatAmount(c.Max),
			Average:   FormatAmount(c.Average),
			Total:     FormatAmount(c.Total),
		})
	}
	return vm
}
