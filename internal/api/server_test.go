package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trobrock/trading-algo/pkg/config"
	"github.com/trobrock/trading-algo/pkg/logger"
)

func TestServer_ServesUntilContextDone(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	s := New(&config.Config{Port: "0"}, logger.Nop(), h, WithShutdownTimeout(time.Second))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}

	_, err = http.Get("http://" + ln.Addr().String() + "/health")
	assert.Error(t, err)
}

func TestServer_RunFailsOnBadAddress(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	s := New(&config.Config{Port: "not-a-port"}, logger.Nop(), h)

	assert.Error(t, s.Run(context.Background()))
}
