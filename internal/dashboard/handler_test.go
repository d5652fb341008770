package dashboard

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanbook/internal/loan"
	"loanbook/internal/payment"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loans := loan.NewInMemoryStore()
	payments := payment.NewInMemoryStore(loans)
	svc := NewService(NewInMemoryStore(loans, payments), nil, time.Minute, nil, logger)

	r := chi.NewRouter()
	NewHandler(svc, logger).Register(r)
	return r
}

func TestHandler_Summary(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/summary", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var summary Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.NotNil(t, summary.Cards)
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestHandler_Timeline(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/timeline?months=6", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var buckets []TimelineBucket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &buckets))
	assert.NotNil(t, buckets)
}
