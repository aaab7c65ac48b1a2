package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTemperatureScheduleLinearDescent(t *testing.T) {
	s := Schedule{StartTemp: 0.7, FloorTemp: 0.2}
	require.InDelta(t, 0.7, s.TemperatureSchedule(4, 0), 1e-9)
	require.InDelta(t, 0.2, s.TemperatureSchedule(4, 3), 1e-9)
	require.InDelta(t, 0.5333333, s.TemperatureSchedule(4, 1), 1e-6)
	require.InDelta(t, 0.3666667, s.TemperatureSchedule(4, 2), 1e-6)
}

func TestTemperatureScheduleSingleRound(t *testing.T) {
	s := Schedule{StartTemp: 0.7, FloorTemp: 0.2}
	require.InDelta(t, 0.7, s.TemperatureSchedule(1, 0), 1e-9)
}

func TestTemperatureScheduleClampsRound(t *testing.T) {
	s := DefaultSchedule
	require.Equal(t, s.TemperatureSchedule(5, 10), s.TemperatureSchedule(5, 4))
	require.Equal(t, s.TemperatureSchedule(5, -3), s.TemperatureSchedule(5, 0))
}
