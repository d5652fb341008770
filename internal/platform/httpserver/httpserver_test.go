package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"loanbook/internal/platform/config"
)

func TestNew_TimeoutsFollowConfig(t *testing.T) {
	cfg := config.Server{Addr: ":9090", RequestTimeout: 10 * time.Second}

	srv := New(cfg, http.NewServeMux())

	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 10*time.Second, srv.ReadTimeout)
	assert.Greater(t, srv.WriteTimeout, cfg.RequestTimeout,
		"write timeout must outlast the request deadline")
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
}
