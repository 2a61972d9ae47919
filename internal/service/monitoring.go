package service

import (
	"context"
	"errors"
	"fmt"

	"thermostat_away"
	"thermostat_away/internal/repository"
)

// MonitoringService serves read-only state snapshots for the API and the
// websocket push.
type MonitoringService struct {
	states repository.StateRepo
}

func NewMonitoringService(repos *repository.Repository) *MonitoringService {
	return &MonitoringService{states: repos.StateRepo}
}

func (s *MonitoringService) GetState(ctx context.Context, accountID int) (thermostat_away.ThermostatState, error) {
	st, err := s.states.Load(ctx, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return thermostat_away.ThermostatState{}, fmt.Errorf("%w: account %d", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return thermostat_away.ThermostatState{}, err
	}
	return st, nil
}
