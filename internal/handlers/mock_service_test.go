package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tempest_bridge/internal/models"
	"tempest_bridge/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	genToken   string
	genErr     error
	parseSub   string
	parseErr   error
	lastParsed string
}

func (m *mockAuth) GenerateToken(subject string, ttl time.Duration) (string, error) {
	return m.genToken, m.genErr
}

func (m *mockAuth) ParseToken(token string) (string, error) {
	m.lastParsed = token
	return m.parseSub, m.parseErr
}

type mockMonitoring struct {
	mu     sync.Mutex
	status models.SessionStatus
	err    error
	latest models.ObservationRecord
	has    bool
}

func (m *mockMonitoring) GetStatus(ctx context.Context) (models.SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.err
}

func (m *mockMonitoring) Latest(ctx context.Context) (models.ObservationRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.has
}

func (m *mockMonitoring) setLatest(rec models.ObservationRecord) {
	m.mu.Lock()
	m.latest, m.has = rec, true
	m.mu.Unlock()
}

type mockEventLog struct {
	resp   []models.SessionEvent
	err    error
	filter service.LogFilter
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.SessionEvent, error) {
	m.filter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
