package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLivenessHandler_AlwaysUp(t *testing.T) {
	h := NewHandler()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rr := httptest.NewRecorder()
	h.LivenessHandler()(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, StatusUp, resp.Status)
}

func TestReadinessHandler_NoChecks(t *testing.T) {
	h := NewHandler()

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()
	h.ReadinessHandler()(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReadinessHandler_AllHealthy(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", func(ctx context.Context) error { return nil })
	h.RegisterNonCritical("kafka", func(ctx context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()
	h.ReadinessHandler()(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, StatusUp, resp.Status)
	assert.Equal(t, StatusUp, resp.Checks["postgres"].Status)
	assert.Equal(t, StatusUp, resp.Checks["kafka"].Status)
}

func TestReadinessHandler_CriticalFailure(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()
	h.ReadinessHandler()(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, StatusDown, resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["postgres"].Error)
	assert.True(t, resp.Checks["postgres"].Critical)
}

func TestReadinessHandler_NonCriticalFailureStaysReady(t *testing.T) {
	h := NewHandler()
	h.RegisterCritical("postgres", func(ctx context.Context) error { return nil })
	h.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return errors.New("broker unreachable")
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()
	h.ReadinessHandler()(rr, req)

	// A non-critical dependency being down is reported but does not flip
	// readiness.
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, StatusUp, resp.Status)
	assert.Equal(t, StatusDown, resp.Checks["kafka"].Status)
	assert.False(t, resp.Checks["kafka"].Critical)
}
