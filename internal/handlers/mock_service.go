package handlers

import (
	"context"
	"net/http"

	"thermostat_away"
	"thermostat_away/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockThermostat struct {
	overrideState thermostat_away.ThermostatState
	overrideErr   error
	syncResult    service.SyncResult
	syncErr       error
	energy        float64
	energyErr     error
	cost          float64
	costErr       error

	lastAccountID int
	lastAway      bool
	lastHours     float64
	overrideCalls int
	syncCalls     int
}

func (m *mockThermostat) Override(_ context.Context, accountID int, away bool, hours float64) (thermostat_away.ThermostatState, error) {
	m.overrideCalls++
	m.lastAccountID = accountID
	m.lastAway = away
	m.lastHours = hours
	return m.overrideState, m.overrideErr
}
func (m *mockThermostat) Sync(_ context.Context, accountID int) (service.SyncResult, error) {
	m.syncCalls++
	m.lastAccountID = accountID
	return m.syncResult, m.syncErr
}
func (m *mockThermostat) SavedEnergy(_ context.Context, accountID int) (float64, error) {
	m.lastAccountID = accountID
	return m.energy, m.energyErr
}
func (m *mockThermostat) SavedCost(_ context.Context, accountID int) (float64, error) {
	m.lastAccountID = accountID
	return m.cost, m.costErr
}

type mockMonitoring struct {
	state thermostat_away.ThermostatState
	err   error

	lastAccountID int
}

func (m *mockMonitoring) GetState(_ context.Context, accountID int) (thermostat_away.ThermostatState, error) {
	m.lastAccountID = accountID
	return m.state, m.err
}

type mockEventLog struct {
	resp          []thermostat_away.ThermostatEvent
	err           error
	lastAccountID int
	lastFilter    service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, accountID int, f service.LogFilter) ([]thermostat_away.ThermostatEvent, error) {
	m.lastAccountID = accountID
	m.lastFilter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
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
