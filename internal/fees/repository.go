package fees

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shiksha-erp/shiksha-erp/internal/platform/db"
)

// Repository encapsulates DB access for the fee ledger. Reads outside a
// transaction serve the balance calculator and the reporting engine; all
// writes go through WithTx so schedule deltas and journal appends commit
// together.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	TenantSessionExists(ctx context.Context, tenantID, sessionID int64) (bool, error)
	GetAccount(ctx context.Context, tenantID, sessionID, studentID int64) (StudentAccount, error)
	GetAccountsByGroup(ctx context.Context, tenantID, sessionID, groupID int64) ([]StudentAccount, error)
	GetComponents(ctx context.Context, tenantID, sessionID int64) ([]FeeComponent, error)
	GetCells(ctx context.Context, tenantID, sessionID, studentID int64) ([]MonthlyCell, error)

	// SumReceivedBefore is the opening-balance prefix sum: every non-deleted
	// receipt dated strictly before the filter's From, matching its mode.
	SumReceivedBefore(ctx context.Context, f ScanFilter) (decimal.Decimal, error)
	ScanReceipts(ctx context.Context, f ScanFilter) ([]Receipt, error)
	ScanDeleted(ctx context.Context, f ScanFilter) ([]DeletedReceipt, error)
}

// TxRepository exposes the operations available inside a receipt transaction.
type TxRepository interface {
	// LockAccount takes the per-student row lock that serializes creation and
	// reversal for the same student.
	LockAccount(ctx context.Context, tenantID, sessionID, studentID int64) (StudentAccount, error)
	GetComponents(ctx context.Context, tenantID, sessionID int64) ([]FeeComponent, error)
	GetCellsForUpdate(ctx context.Context, tenantID, sessionID, studentID int64) ([]MonthlyCell, error)
	ApplyCellDelta(ctx context.Context, d CellDelta) (MonthlyCell, error)
	// NextReceiptNo bumps the per-tenant-per-session sequence row; concurrent
	// callers for the same pair serialize on it, different pairs do not.
	NextReceiptNo(ctx context.Context, tenantID, sessionID int64) (int64, error)
	InsertReceipt(ctx context.Context, r Receipt) error
	GetReceipt(ctx context.Context, tenantID, sessionID, receiptNo int64) (Receipt, error)
	IsDeleted(ctx context.Context, tenantID, sessionID, receiptNo int64) (bool, error)
	InsertDeletion(ctx context.Context, d DeletionRecord) error
}

// CellDelta adjusts one cell. Amount adds to paid; Discount and Fine add to
// their columns. The update is guarded so paid can never leave [0, net].
type CellDelta struct {
	TenantID    int64
	SessionID   int64
	StudentID   int64
	ComponentID int64
	Month       AcademicMonth
	Amount      decimal.Decimal
	Discount    decimal.Decimal
	Fine        decimal.Decimal
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository wires the ledger repository over a pgx pool.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) TenantSessionExists(ctx context.Context, tenantID, sessionID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM student_accounts WHERE tenant_id=$1 AND session_id=$2)`, tenantID, sessionID).Scan(&exists)
	return exists, err
}

const accountColumns = `student_id, tenant_id, session_id, student_name, class_name, old_balance, sibling_group_id`

func scanAccount(row pgx.Row) (StudentAccount, error) {
	var a StudentAccount
	err := row.Scan(&a.StudentID, &a.TenantID, &a.SessionID, &a.StudentName, &a.ClassName, &a.OldBalance, &a.SiblingGroupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StudentAccount{}, fmt.Errorf("%w: student account", ErrNotFound)
		}
		return StudentAccount{}, err
	}
	return a, nil
}

func (r *repository) GetAccount(ctx context.Context, tenantID, sessionID, studentID int64) (StudentAccount, error) {
	return scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM student_accounts
WHERE tenant_id=$1 AND session_id=$2 AND student_id=$3`, tenantID, sessionID, studentID))
}

func (r *repository) GetAccountsByGroup(ctx context.Context, tenantID, sessionID, groupID int64) ([]StudentAccount, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM student_accounts
WHERE tenant_id=$1 AND session_id=$2 AND sibling_group_id=$3 ORDER BY student_id`, tenantID, sessionID, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []StudentAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func getComponents(ctx context.Context, q querier, tenantID, sessionID int64) ([]FeeComponent, error) {
	rows, err := q.Query(ctx, `SELECT id, tenant_id, session_id, name, class FROM fee_components
WHERE tenant_id=$1 AND session_id=$2 ORDER BY id`, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comps []FeeComponent
	for rows.Next() {
		var c FeeComponent
		if err := rows.Scan(&c.ID, &c.TenantID, &c.SessionID, &c.Name, &c.Class); err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

const cellColumns = `tenant_id, session_id, student_id, component_id, month, base, discount, fine, paid`

func collectCells(rows pgx.Rows) ([]MonthlyCell, error) {
	defer rows.Close()
	var cells []MonthlyCell
	for rows.Next() {
		var c MonthlyCell
		if err := rows.Scan(&c.TenantID, &c.SessionID, &c.StudentID, &c.ComponentID, &c.Month, &c.Base, &c.Discount, &c.Fine, &c.Paid); err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

func (r *repository) GetComponents(ctx context.Context, tenantID, sessionID int64) ([]FeeComponent, error) {
	return getComponents(ctx, r.db, tenantID, sessionID)
}

func (r *repository) GetCells(ctx context.Context, tenantID, sessionID, studentID int64) ([]MonthlyCell, error) {
	rows, err := r.db.Query(ctx, `SELECT `+cellColumns+` FROM monthly_cells
WHERE tenant_id=$1 AND session_id=$2 AND student_id=$3 ORDER BY month, component_id`, tenantID, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	return collectCells(rows)
}

const notDeleted = `NOT EXISTS (
SELECT 1 FROM receipt_deletions d
WHERE d.tenant_id=r.tenant_id AND d.session_id=r.session_id AND d.receipt_no=r.receipt_no)`

func (r *repository) SumReceivedBefore(ctx context.Context, f ScanFilter) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(r.total_received), 0) FROM receipts r
WHERE r.tenant_id=$1 AND r.session_id=$2 AND r.date < $3
AND ($4::text = '' OR r.mode = $4) AND `+notDeleted,
		f.TenantID, f.SessionID, f.From, string(f.ModeFilter())).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

const receiptColumns = `r.receipt_no, r.source_id, r.tenant_id, r.session_id, r.student_id, r.class_name,
r.date, r.mode, r.total_received, r.remaining, r.manual, r.note, r.created_by, r.created_at`

func scanReceiptRow(row pgx.Row) (Receipt, error) {
	var rec Receipt
	err := row.Scan(&rec.ReceiptNo, &rec.SourceID, &rec.TenantID, &rec.SessionID, &rec.StudentID, &rec.ClassName,
		&rec.Date, &rec.Mode, &rec.TotalReceived, &rec.Remaining, &rec.Manual, &rec.Note, &rec.CreatedBy, &rec.CreatedAt)
	return rec, err
}

func (r *repository) ScanReceipts(ctx context.Context, f ScanFilter) ([]Receipt, error) {
	rows, err := r.db.Query(ctx, `SELECT `+receiptColumns+` FROM receipts r
WHERE r.tenant_id=$1 AND r.session_id=$2 AND r.date >= $3 AND r.date <= $4
AND ($5::text = '' OR r.mode = $5) AND `+notDeleted+`
ORDER BY r.date, r.receipt_no`,
		f.TenantID, f.SessionID, f.From, f.To, string(f.ModeFilter()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var receipts []Receipt
	for rows.Next() {
		rec, err := scanReceiptRow(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, rec)
	}
	return receipts, rows.Err()
}

func (r *repository) ScanDeleted(ctx context.Context, f ScanFilter) ([]DeletedReceipt, error) {
	rows, err := r.db.Query(ctx, `SELECT `+receiptColumns+`, d.deleted_by, d.deleted_at, d.reason
FROM receipts r
JOIN receipt_deletions d ON d.tenant_id=r.tenant_id AND d.session_id=r.session_id AND d.receipt_no=r.receipt_no
WHERE r.tenant_id=$1 AND r.session_id=$2 AND r.date >= $3 AND r.date <= $4
AND ($5::text = '' OR r.mode = $5)
ORDER BY r.date, r.receipt_no`,
		f.TenantID, f.SessionID, f.From, f.To, string(f.ModeFilter()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deleted []DeletedReceipt
	for rows.Next() {
		var rec Receipt
		var del DeletionRecord
		if err := rows.Scan(&rec.ReceiptNo, &rec.SourceID, &rec.TenantID, &rec.SessionID, &rec.StudentID, &rec.ClassName,
			&rec.Date, &rec.Mode, &rec.TotalReceived, &rec.Remaining, &rec.Manual, &rec.Note, &rec.CreatedBy, &rec.CreatedAt,
			&del.DeletedBy, &del.DeletedAt, &del.Reason); err != nil {
			return nil, err
		}
		del.ReceiptNo = rec.ReceiptNo
		del.TenantID = rec.TenantID
		del.SessionID = rec.SessionID
		deleted = append(deleted, DeletedReceipt{Receipt: rec, Deletion: del})
	}
	return deleted, rows.Err()
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) LockAccount(ctx context.Context, tenantID, sessionID, studentID int64) (StudentAccount, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM student_accounts
WHERE tenant_id=$1 AND session_id=$2 AND student_id=$3 FOR UPDATE`, tenantID, sessionID, studentID))
}

func (r *txRepository) GetComponents(ctx context.Context, tenantID, sessionID int64) ([]FeeComponent, error) {
	return getComponents(ctx, r.tx, tenantID, sessionID)
}

func (r *txRepository) GetCellsForUpdate(ctx context.Context, tenantID, sessionID, studentID int64) ([]MonthlyCell, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+cellColumns+` FROM monthly_cells
WHERE tenant_id=$1 AND session_id=$2 AND student_id=$3 ORDER BY month, component_id FOR UPDATE`, tenantID, sessionID, studentID)
	if err != nil {
		return nil, err
	}
	return collectCells(rows)
}

func (r *txRepository) ApplyCellDelta(ctx context.Context, d CellDelta) (MonthlyCell, error) {
	row := r.tx.QueryRow(ctx, `UPDATE monthly_cells
SET paid = paid + $6, discount = discount + $7, fine = fine + $8
WHERE tenant_id=$1 AND session_id=$2 AND student_id=$3 AND component_id=$4 AND month=$5
AND paid + $6 >= 0
AND paid + $6 <= base - (discount + $7) + (fine + $8)
RETURNING `+cellColumns, d.TenantID, d.SessionID, d.StudentID, d.ComponentID, int(d.Month), d.Amount, d.Discount, d.Fine)
	var c MonthlyCell
	err := row.Scan(&c.TenantID, &c.SessionID, &c.StudentID, &c.ComponentID, &c.Month, &c.Base, &c.Discount, &c.Fine, &c.Paid)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return MonthlyCell{}, err
	}
	// Distinguish a missing cell from a guarded-out update.
	var exists bool
	if err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM monthly_cells
WHERE tenant_id=$1 AND session_id=$2 AND student_id=$3 AND component_id=$4 AND month=$5)`,
		d.TenantID, d.SessionID, d.StudentID, d.ComponentID, int(d.Month)).Scan(&exists); err != nil {
		return MonthlyCell{}, err
	}
	if !exists {
		return MonthlyCell{}, fmt.Errorf("%w: cell component %d month %s", ErrNotFound, d.ComponentID, d.Month)
	}
	return MonthlyCell{}, fmt.Errorf("%w: component %d month %s", ErrInvariant, d.ComponentID, d.Month)
}

func (r *txRepository) NextReceiptNo(ctx context.Context, tenantID, sessionID int64) (int64, error) {
	var no int64
	err := r.tx.QueryRow(ctx, `INSERT INTO receipt_sequences (tenant_id, session_id, last_no)
VALUES ($1, $2, 1)
ON CONFLICT (tenant_id, session_id) DO UPDATE SET last_no = receipt_sequences.last_no + 1
RETURNING last_no`, tenantID, sessionID).Scan(&no)
	if err != nil {
		return 0, fmt.Errorf("fees: next receipt no: %w", err)
	}
	return no, nil
}

func (r *txRepository) InsertReceipt(ctx context.Context, rec Receipt) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO receipts
(receipt_no, source_id, tenant_id, session_id, student_id, class_name, date, mode, total_received, remaining, manual, note, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.ReceiptNo, rec.SourceID, rec.TenantID, rec.SessionID, rec.StudentID, rec.ClassName,
		rec.Date, string(rec.Mode), rec.TotalReceived, rec.Remaining, rec.Manual, rec.Note, rec.CreatedBy, rec.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}
	for _, a := range rec.Allocations {
		if _, err := r.tx.Exec(ctx, `INSERT INTO receipt_allocations
(tenant_id, session_id, receipt_no, component_id, month, amount, discount, fine)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			rec.TenantID, rec.SessionID, rec.ReceiptNo, a.ComponentID, int(a.Month), a.Amount, a.Discount, a.Fine); err != nil {
			return mapPgError(err)
		}
	}
	return nil
}

func (r *txRepository) GetReceipt(ctx context.Context, tenantID, sessionID, receiptNo int64) (Receipt, error) {
	rec, err := scanReceiptRow(r.tx.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts r
WHERE r.tenant_id=$1 AND r.session_id=$2 AND r.receipt_no=$3`, tenantID, sessionID, receiptNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, fmt.Errorf("%w: receipt %d", ErrNotFound, receiptNo)
		}
		return Receipt{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT component_id, month, amount, discount, fine FROM receipt_allocations
WHERE tenant_id=$1 AND session_id=$2 AND receipt_no=$3 ORDER BY month, component_id`, tenantID, sessionID, receiptNo)
	if err != nil {
		return Receipt{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ComponentID, &a.Month, &a.Amount, &a.Discount, &a.Fine); err != nil {
			return Receipt{}, err
		}
		rec.Allocations = append(rec.Allocations, a)
	}
	return rec, rows.Err()
}

func (r *txRepository) IsDeleted(ctx context.Context, tenantID, sessionID, receiptNo int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM receipt_deletions
WHERE tenant_id=$1 AND session_id=$2 AND receipt_no=$3)`, tenantID, sessionID, receiptNo).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertDeletion(ctx context.Context, d DeletionRecord) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO receipt_deletions
(tenant_id, session_id, receipt_no, deleted_by, deleted_at, reason)
VALUES ($1,$2,$3,$4,$5,$6)`,
		d.TenantID, d.SessionID, d.ReceiptNo, d.DeletedBy, d.DeletedAt, d.Reason)
	return mapPgError(err)
}

// mapPgError folds unique-constraint races into ErrConflict so callers can
// retry explicitly instead of the engine retrying for them.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}
