package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanbook/internal/audit"
	"loanbook/internal/loan"
	"loanbook/pkg/date"
	txcontext "loanbook/pkg/platform/tx"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loans := loan.NewInMemoryStore()
	store := NewInMemoryStore(loans)
	pub := audit.NewPublisher(audit.NewInMemoryStore(), logger)
	svc := NewService(store, loans, txcontext.NopRunner{}, pub, nil, logger)

	_, err := loans.Create(context.Background(), &loan.Loan{
		Name:             "Home Loan HDFC",
		Type:             loan.TypeHome,
		BankName:         "HDFC",
		PrincipalAmount:  500000,
		SanctionedAmount: 500000,
		InterestRate:     8.5,
		RateType:         loan.RateFixed,
		TermMonths:       240,
		StartDate:        date.New(2024, 1, 1),
		EMIAmount:        4339,
		PaymentFrequency: loan.FrequencyMonthly,
		Status:           loan.StatusActive,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(svc, logger).Register(r)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func emiPayload(day string) map[string]any {
	return map[string]any{
		"payment_date":        day,
		"principal_component": 3000,
		"interest_component":  1339,
		"total_amount":        4339,
		"payment_type":        "EMI",
		"status":              "PAID",
	}
}

func TestHandler_RecordAndGetPayment(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/loans/1/payments", emiPayload("2024-02-01"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.LoanID)
	assert.Equal(t, 497000.0, created.BalanceRemaining)
	assert.Equal(t, "2024-02-01", created.ScheduledDate.String())

	rec = doJSON(t, r, http.MethodGet, "/payments/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_RecordPayment_BadStatus(t *testing.T) {
	r := newTestRouter(t)

	payload := emiPayload("2024-02-01")
	payload["status"] = "SETTLED"

	rec := doJSON(t, r, http.MethodPost, "/loans/1/payments", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RecordPayment_UnknownLoan(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/loans/42/payments", emiPayload("2024-02-01"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ListPayments_DateRange(t *testing.T) {
	r := newTestRouter(t)

	for _, day := range []string{"2024-02-01", "2024-03-01", "2024-04-01"} {
		rec := doJSON(t, r, http.MethodPost, "/loans/1/payments", emiPayload(day))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, r, http.MethodGet, "/loans/1/payments?from=2024-03-01&to=2024-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payments []Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payments))
	require.Len(t, payments, 1)
	assert.Equal(t, "2024-03-01", payments[0].PaymentDate.String())

	rec = doJSON(t, r, http.MethodGet, "/loans/1/payments?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_UpdateAndDeletePayment(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/loans/1/payments", emiPayload("2024-02-01"))
	require.Equal(t, http.StatusCreated, rec.Code)

	payload := emiPayload("2024-02-01")
	payload["notes"] = "paid via NEFT"
	rec = doJSON(t, r, http.MethodPut, "/payments/1", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated Payment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "paid via NEFT", updated.Notes)

	rec = doJSON(t, r, http.MethodDelete, "/payments/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/payments/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
