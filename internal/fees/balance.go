package fees

import "github.com/shopspring/decimal"

// CellSummary is one schedule cell with its derived due, shaped for display.
type CellSummary struct {
	ComponentID   int64
	ComponentName string
	Month         AcademicMonth
	Base          decimal.Decimal
	Discount      decimal.Decimal
	Fine          decimal.Decimal
	Paid          decimal.Decimal
	Due           decimal.Decimal
}

// StudentFeeSummary is the full balance picture for one student in one
// session. TotalRemaining is old balance plus every open due; it must always
// equal OldBalance + TotalDue - TotalReceived recomputed from the schedule.
type StudentFeeSummary struct {
	StudentID      int64
	StudentName    string
	ClassName      string
	OldBalance     decimal.Decimal
	Cells          []CellSummary
	TotalDue       decimal.Decimal
	TotalReceived  decimal.Decimal
	TotalRemaining decimal.Decimal
}

// FamilySummary sums sibling accounts. A family total is a pure sum of the
// per-student figures; cells are never merged across students.
type FamilySummary struct {
	SiblingGroupID int64
	Students       []StudentFeeSummary
	TotalDue       decimal.Decimal
	TotalReceived  decimal.Decimal
	TotalRemaining decimal.Decimal
}

// Summarize derives the balance figures for one student from the schedule
// and the account's carried-forward old balance.
func Summarize(acct StudentAccount, components []FeeComponent, cells []MonthlyCell) StudentFeeSummary {
	names := make(map[int64]string, len(components))
	classes := make(map[int64]ComponentClass, len(components))
	for _, comp := range components {
		names[comp.ID] = comp.Name
		classes[comp.ID] = comp.Class
	}

	summary := StudentFeeSummary{
		StudentID:   acct.StudentID,
		StudentName: acct.StudentName,
		ClassName:   acct.ClassName,
		OldBalance:  acct.OldBalance,
	}
	for _, cell := range OrderCells(cells, classes) {
		due := cell.Due()
		summary.Cells = append(summary.Cells, CellSummary{
			ComponentID:   cell.ComponentID,
			ComponentName: names[cell.ComponentID],
			Month:         cell.Month,
			Base:          cell.Base,
			Discount:      cell.Discount,
			Fine:          cell.Fine,
			Paid:          cell.Paid,
			Due:           due,
		})
		summary.TotalDue = summary.TotalDue.Add(cell.Net())
		summary.TotalReceived = summary.TotalReceived.Add(cell.Paid)
		summary.TotalRemaining = summary.TotalRemaining.Add(due)
	}
	summary.TotalRemaining = summary.TotalRemaining.Add(acct.OldBalance)
	return summary
}

// SummarizeFamily folds per-student summaries into a combined view.
func SummarizeFamily(groupID int64, students []StudentFeeSummary) FamilySummary {
	family := FamilySummary{SiblingGroupID: groupID, Students: students}
	for _, s := range students {
		family.TotalDue = family.TotalDue.Add(s.TotalDue)
		family.TotalReceived = family.TotalReceived.Add(s.TotalReceived)
		family.TotalRemaining = family.TotalRemaining.Add(s.TotalRemaining)
	}
	return family
}
