package fees

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/shiksha-erp/shiksha-erp/internal/fees/reports"
	"github.com/shiksha-erp/shiksha-erp/internal/platform/httpx"
)

// Handler exposes the ledger commands and queries as a JSON API. Tenant and
// session arrive on every request as headers; nothing is ambient.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

const (
	headerTenant  = "X-Tenant-ID"
	headerSession = "X-Session-ID"
	headerActor   = "X-Actor-ID"
	dateLayout    = "2006-01-02"
)

type allocationLineRequest struct {
	ComponentID int64  `json:"component_id" validate:"required"`
	Month       string `json:"month" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
}

type createReceiptRequest struct {
	StudentID   int64                   `json:"student_id" validate:"required"`
	Amount      string                  `json:"amount" validate:"required"`
	Mode        string                  `json:"mode" validate:"required"`
	Date        string                  `json:"date" validate:"required"`
	Note        string                  `json:"note"`
	Allocations []allocationLineRequest `json:"allocations" validate:"omitempty,dive"`
	Concessions []allocationLineRequest `json:"concessions" validate:"omitempty,dive"`
}

type deleteReceiptRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	tenantID, sessionID, actorID, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req createReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := h.buildCreateInput(tenantID, sessionID, actorID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	receipt, err := h.service.CreateReceipt(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receiptView(receipt))
}

func (h *Handler) buildCreateInput(tenantID, sessionID, actorID int64, req createReceiptRequest) (CreateReceiptInput, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return CreateReceiptInput{}, errValidationf("malformed amount %q", req.Amount)
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return CreateReceiptInput{}, errValidationf("malformed date %q", req.Date)
	}
	input := CreateReceiptInput{
		TenantID:  tenantID,
		SessionID: sessionID,
		StudentID: req.StudentID,
		Amount:    amount,
		Mode:      PaymentMode(req.Mode),
		Date:      date,
		Note:      req.Note,
		CreatedBy: actorID,
	}
	for _, line := range req.Allocations {
		month, lineAmount, err := parseLine(line)
		if err != nil {
			return CreateReceiptInput{}, err
		}
		input.Overrides = append(input.Overrides, AllocationInput{
			ComponentID: line.ComponentID,
			Month:       month,
			Amount:      lineAmount,
		})
	}
	for _, line := range req.Concessions {
		month, lineAmount, err := parseLine(line)
		if err != nil {
			return CreateReceiptInput{}, err
		}
		input.Concessions = append(input.Concessions, Concession{
			ComponentID: line.ComponentID,
			Month:       month,
			Amount:      lineAmount,
		})
	}
	return input, nil
}

func parseLine(line allocationLineRequest) (AcademicMonth, decimal.Decimal, error) {
	month, err := ParseAcademicMonth(line.Month)
	if err != nil {
		return 0, decimal.Zero, errValidationf("unknown month %q", line.Month)
	}
	amount, err := decimal.NewFromString(line.Amount)
	if err != nil {
		return 0, decimal.Zero, errValidationf("malformed amount %q", line.Amount)
	}
	return month, amount, nil
}

func (h *Handler) deleteReceipt(w http.ResponseWriter, r *http.Request) {
	tenantID, sessionID, actorID, ok := h.scope(w, r)
	if !ok {
		return
	}
	receiptNo, err := strconv.ParseInt(chi.URLParam(r, "receiptNo"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed receipt number")
		return
	}
	var req deleteReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	record, err := h.service.DeleteReceipt(r.Context(), DeleteReceiptInput{
		TenantID:  tenantID,
		SessionID: sessionID,
		ReceiptNo: receiptNo,
		Reason:    req.Reason,
		DeletedBy: actorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) studentSummary(w http.ResponseWriter, r *http.Request) {
	tenantID, sessionID, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	studentID, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed student id")
		return
	}
	summary, err := h.service.StudentSummary(r.Context(), tenantID, sessionID, studentID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) familySummary(w http.ResponseWriter, r *http.Request) {
	tenantID, sessionID, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	groupID, err := strconv.ParseInt(chi.URLParam(r, "groupID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed group id")
		return
	}
	summary, err := h.service.FamilySummary(r.Context(), tenantID, sessionID, groupID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) cashbook(w http.ResponseWriter, r *http.Request) {
	tenantID, sessionID, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	filter, err := h.parseFilter(tenantID, sessionID, r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	book, err := h.service.Cashbook(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	vm := reports.NewCashbookViewModel(tenantID, sessionID, filter.From, filter.To, string(filter.Mode), book)
	httpx.JSON(w, http.StatusOK, vm)
}

func (h *Handler) deletedRecords(w http.ResponseWriter, r *http.Request) {
	tenantID, sessionID, _, ok := h.scope(w, r)
	if !ok {
		return
	}
	filter, err := h.parseFilter(tenantID, sessionID, r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	deleted, err := h.service.DeletedRecords(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]deletedReceiptView, 0, len(deleted))
	for _, d := range deleted {
		views = append(views, deletedReceiptView{
			Receipt:   receiptView(d.Receipt),
			DeletedBy: d.Deletion.DeletedBy,
			DeletedAt: d.Deletion.DeletedAt,
			Reason:    d.Deletion.Reason,
		})
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) parseFilter(tenantID, sessionID int64, r *http.Request) (ScanFilter, error) {
	q := r.URL.Query()
	from, err := time.Parse(dateLayout, q.Get("from"))
	if err != nil {
		return ScanFilter{}, errValidationf("malformed from date %q", q.Get("from"))
	}
	to, err := time.Parse(dateLayout, q.Get("to"))
	if err != nil {
		return ScanFilter{}, errValidationf("malformed to date %q", q.Get("to"))
	}
	mode := PaymentMode(q.Get("mode"))
	if mode == "" {
		mode = ModeAll
	}
	return ScanFilter{TenantID: tenantID, SessionID: sessionID, From: from, To: to, Mode: mode}, nil
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (tenantID, sessionID, actorID int64, ok bool) {
	var err error
	if tenantID, err = strconv.ParseInt(r.Header.Get(headerTenant), 10, 64); err != nil || tenantID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "missing or malformed "+headerTenant)
		return 0, 0, 0, false
	}
	if sessionID, err = strconv.ParseInt(r.Header.Get(headerSession), 10, 64); err != nil || sessionID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "missing or malformed "+headerSession)
		return 0, 0, 0, false
	}
	// Actor is optional on queries; commands validate it downstream.
	actorID, _ = strconv.ParseInt(r.Header.Get(headerActor), 10, 64)
	return tenantID, sessionID, actorID, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvariant):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invariant Violation", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrAlreadyDeleted), errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("fees request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func errValidationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type receiptViewModel struct {
	ReceiptNo     int64            `json:"receipt_no"`
	StudentID     int64            `json:"student_id"`
	ClassName     string           `json:"class_name"`
	Date          time.Time        `json:"date"`
	Mode          string           `json:"mode"`
	Allocations   []allocationView `json:"allocations"`
	TotalReceived decimal.Decimal  `json:"total_received"`
	Remaining     decimal.Decimal  `json:"remaining"`
	Manual        bool             `json:"manual"`
	Note          string           `json:"note,omitempty"`
	CreatedBy     int64            `json:"created_by"`
	CreatedAt     time.Time        `json:"created_at"`
}

type allocationView struct {
	ComponentID int64           `json:"component_id"`
	Month       string          `json:"month"`
	Amount      decimal.Decimal `json:"amount"`
	Discount    decimal.Decimal `json:"discount"`
	Fine        decimal.Decimal `json:"fine"`
}

type deletedReceiptView struct {
	Receipt   receiptViewModel `json:"receipt"`
	DeletedBy int64            `json:"deleted_by"`
	DeletedAt time.Time        `json:"deleted_at"`
	Reason    string           `json:"reason"`
}

func receiptView(rec Receipt) receiptViewModel {
	view := receiptViewModel{
		ReceiptNo:     rec.ReceiptNo,
		StudentID:     rec.StudentID,
		ClassName:     rec.ClassName,
		Date:          rec.Date,
		Mode:          string(rec.Mode),
		TotalReceived: rec.TotalReceived,
		Remaining:     rec.Remaining,
		Manual:        rec.Manual,
		Note:          rec.Note,
		CreatedBy:     rec.CreatedBy,
		CreatedAt:     rec.CreatedAt,
	}
	for _, a := range rec.Allocations {
		view.Allocations = append(view.Allocations, allocationView{
			ComponentID: a.ComponentID,
			Month:       a.Month.String(),
			Amount:      a.Amount,
			Discount:    a.Discount,
			Fine:        a.Fine,
		})
	}
	return view
}
