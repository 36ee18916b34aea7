package health_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/phonebill/internal/health"
)

func TestReadinessAfterShutdown(t *testing.T) {
	handler := health.Handler{Checker: stubChecker{}}

	health.SetReady(true)
	code, _ := readyStatus(t, handler)
	require.Equal(t, http.StatusOK, code)

	health.SetReady(false)
	code, status := readyStatus(t, handler)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "shutting down", status["server"])

	// reset for other tests
	health.SetReady(true)
}
