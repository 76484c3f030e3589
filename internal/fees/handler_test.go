package fees

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *mockRepository) {
	t.Helper()
	m := newMockRepository()
	seedStudent(m, 1, "0", nil)
	svc := NewService(m, nil)
	svc.WithNow(func() time.Time { return payday(10) })
	h := NewHandler(nil, svc)
	r := chi.NewRouter()
	r.Route("/api/fees", h.MountRoutes)
	return r, m
}

func doJSON(t *testing.T, r http.Handler, method, path, body string, scoped bool) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if scoped {
		req.Header.Set("X-Tenant-ID", "1")
		req.Header.Set("X-Session-ID", "2025")
		req.Header.Set("X-Actor-ID", "9")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHandlerRequiresScopeHeaders(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := doJSON(t, router, http.MethodPost, "/api/fees/receipts", `{}`, false)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "X-Tenant-ID")
}

func TestHandlerCreateReceipt(t *testing.T) {
	router, _ := newTestRouter(t)
	body := `{"student_id":1,"amount":"3000","mode":"CASH","date":"2025-04-02"}`
	rr := doJSON(t, router, http.MethodPost, "/api/fees/receipts", body, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var view struct {
		ReceiptNo   int64 `json:"receipt_no"`
		Allocations []struct {
			Month  string `json:"month"`
			Amount string `json:"amount"`
		} `json:"allocations"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, int64(1), view.ReceiptNo)
	require.Len(t, view.Allocations, 1)
	assert.Equal(t, "April", view.Allocations[0].Month)
}

func TestHandlerCreateReceiptRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/fees/receipts", `{not json`, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/fees/receipts",
		`{"student_id":1,"amount":"0","mode":"CASH","date":"2025-04-02"}`, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/fees/receipts",
		`{"student_id":1,"amount":"100","mode":"CASH","date":"2025-04-02","allocations":[{"component_id":10,"month":"Smarch","amount":"100"}]}`, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "month")
}

func TestHandlerManualOverfillMapsToUnprocessable(t *testing.T) {
	router, _ := newTestRouter(t)
	body := `{"student_id":1,"amount":"6000","mode":"CASH","date":"2025-04-02",
"allocations":[{"component_id":10,"month":"April","amount":"5500"}]}`
	rr := doJSON(t, router, http.MethodPost, "/api/fees/receipts", body, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
}

func TestHandlerDeleteReceipt(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/fees/receipts",
		`{"student_id":1,"amount":"500","mode":"UPI","date":"2025-04-02"}`, true)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/fees/receipts/1/delete", `{"reason":"test entry"}`, true)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Second delete hits the tombstone.
	rr = doJSON(t, router, http.MethodPost, "/api/fees/receipts/1/delete", `{"reason":"again"}`, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/fees/receipts/99/delete", `{"reason":"ghost"}`, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/fees/receipts/1/delete", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "reason is mandatory")
}

func TestHandlerCashbook(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/fees/receipts",
		`{"student_id":1,"amount":"1500","mode":"CASH","date":"2025-04-02"}`, true)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/fees/cashbook?from=2025-04-01&to=2025-04-30", "", true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var vm struct {
		GrandTotal  string `json:"grand_total"`
		ModeSummary []struct {
			Mode string `json:"mode"`
		} `json:"payment_mode_summary"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &vm))
	assert.Equal(t, "1,500.00", vm.GrandTotal)
	require.Len(t, vm.ModeSummary, 1)
	assert.Equal(t, "CASH", vm.ModeSummary[0].Mode)

	// Inverted range is a validation error.
	rr = doJSON(t, router, http.MethodGet, "/api/fees/cashbook?from=2025-04-30&to=2025-04-01", "", true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerStudentSummary(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := doJSON(t, router, http.MethodGet, "/api/fees/students/1/summary", "", true)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/fees/students/42/summary", "", true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
