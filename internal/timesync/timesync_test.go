package timesync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skewedServer(skew time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"server_time_ms":%d}`, time.Now().Add(skew).UnixMilli())
	}))
}

func TestSyncEstimatesServerOffset(t *testing.T) {
	const skew = 5 * time.Minute
	srv := skewedServer(skew)
	defer srv.Close()

	clock, err := Sync(context.Background(), srv.Client(), srv.URL, 3)
	require.NoError(t, err)

	// loopback round trips are fast, so the estimate lands near the skew
	assert.InDelta(t, skew, clock.Offset(), float64(time.Second))
	assert.InDelta(t, skew, time.Until(clock.Now()), float64(time.Second))
}

func TestSyncNoSkew(t *testing.T) {
	srv := skewedServer(0)
	defer srv.Close()

	clock, err := Sync(context.Background(), srv.Client(), srv.URL, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0, clock.Offset(), float64(time.Second))
}

func TestSyncFallsBackToLocalTime(t *testing.T) {
	srv := skewedServer(time.Hour)
	srv.Close() // unreachable endpoint

	clock, err := Sync(context.Background(), srv.Client(), srv.URL, 2)
	require.Error(t, err)
	require.NotNil(t, clock)
	assert.Zero(t, clock.Offset())
}

func TestSyncRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	clock, err := Sync(context.Background(), srv.Client(), srv.URL, 1)
	require.Error(t, err)
	assert.Zero(t, clock.Offset())
}

func TestSystemClockTracksWallTime(t *testing.T) {
	now := System().Now()
	assert.WithinDuration(t, time.Now(), now, time.Second)
}
