package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(d int) time.Time {
	return time.Date(2025, time.April, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildCashbookScenario(t *testing.T) {
	entries := []Entry{
		{ReceiptNo: 1, Date: day(2), StudentID: 1, ClassName: "V", Mode: "CASH", CashierID: 9, Amount: dec("500")},
		{ReceiptNo: 2, Date: day(3), StudentID: 2, ClassName: "VII", Mode: "UPI", CashierID: 9, Amount: dec("300")},
	}

	book := BuildCashbook(dec("1000"), entries)
	if !book.GrandTotal.Equal(dec("1800")) {
		t.Fatalf("expected grand total 1800, got %s", book.GrandTotal)
	}
	if len(book.ModeSummary) != 2 {
		t.Fatalf("expected 2 mode groups, got %d", len(book.ModeSummary))
	}
	if book.ModeSummary[0].Mode != "CASH" || !book.ModeSummary[0].Total.Equal(dec("500")) {
		t.Fatalf("unexpected cash summary %+v", book.ModeSummary[0])
	}
	if book.ModeSummary[1].Mode != "UPI" || !book.ModeSummary[1].Total.Equal(dec("300")) {
		t.Fatalf("unexpected upi summary %+v", book.ModeSummary[1])
	}

	// Deleting the cash receipt drops it from totals.
	book = BuildCashbook(dec("1000"), entries[1:])
	if !book.GrandTotal.Equal(dec("1300")) {
		t.Fatalf("expected grand total 1300 after deletion, got %s", book.GrandTotal)
	}
	if len(book.ModeSummary) != 1 || book.ModeSummary[0].Mode != "UPI" {
		t.Fatalf("cash group should be gone, got %+v", book.ModeSummary)
	}
}

func TestBuildCashbookReconciles(t *testing.T) {
	entries := []Entry{
		{ReceiptNo: 1, Date: day(1), ClassName: "V", Mode: "CASH", CashierID: 1, Amount: dec("750.50")},
		{ReceiptNo: 2, Date: day(1), ClassName: "V", Mode: "CASH", CashierID: 2, Amount: dec("249.50")},
		{ReceiptNo: 3, Date: day(2), ClassName: "VII", Mode: "UPI", CashierID: 1, Amount: dec("1200")},
		{ReceiptNo: 4, Date: day(5), ClassName: "X", Mode: "CHEQUE", CashierID: 3, Amount: dec("99.99")},
	}

	book := BuildCashbook(dec("5000"), entries)

	entryTotal := decimal.Zero
	for _, e := range book.Entries {
		entryTotal = entryTotal.Add(e.Amount)
	}
	modeTotal := decimal.Zero
	for _, m := range book.ModeSummary {
		modeTotal = modeTotal.Add(m.Total)
		cashierTotal := decimal.Zero
		for _, c := range m.Cashiers {
			cashierTotal = cashierTotal.Add(c.Total)
		}
		if !cashierTotal.Equal(m.Total) {
			t.Fatalf("mode %s cashier rows sum to %s, want %s", m.Mode, cashierTotal, m.Total)
		}
	}
	classTotal := decimal.Zero
	for _, c := range book.ClassSummary {
		classTotal = classTotal.Add(c.Total)
	}

	received := book.ReceivedTotal()
	if !received.Equal(entryTotal) || !received.Equal(modeTotal) || !received.Equal(classTotal) {
		t.Fatalf("reconciliation failed: received=%s entries=%s modes=%s classes=%s",
			received, entryTotal, modeTotal, classTotal)
	}
}

func TestBuildCashbookClassStats(t *testing.T) {
	entries := []Entry{
		{ClassName: "V", Mode: "CASH", Amount: dec("100")},
		{ClassName: "V", Mode: "CASH", Amount: dec("300")},
		{ClassName: "V", Mode: "UPI", Amount: dec("200")},
	}
	book := BuildCashbook(decimal.Zero, entries)
	if len(book.ClassSummary) != 1 {
		t.Fatalf("expected one class row, got %d", len(book.ClassSummary))
	}
	cls := book.ClassSummary[0]
	if cls.Count != 3 {
		t.Fatalf("expected count 3, got %d", cls.Count)
	}
	if !cls.Min.Equal(dec("100")) || !cls.Max.Equal(dec("300")) {
		t.Fatalf("min/max wrong: %s/%s", cls.Min, cls.Max)
	}
	if !cls.Average.Equal(dec("200")) {
		t.Fatalf("expected average 200, got %s", cls.Average)
	}
	if !cls.Total.Equal(dec("600")) {
		t.Fatalf("expected total 600, got %s", cls.Total)
	}
}

func TestBuildCashbookEmptyRange(t *testing.T) {
	book := BuildCashbook(dec("1000"), nil)
	if !book.GrandTotal.Equal(dec("1000")) {
		t.Fatalf("empty range keeps grand total at opening, got %s", book.GrandTotal)
	}
	if len(book.ModeSummary) != 0 || len(book.ClassSummary) != 0 {
		t.Fatalf("empty range must produce no groups")
	}
}
