// Package consensus implements the consensus engine: one round
// fans a prompt out to every configured model concurrently via an errgroup,
// merges each parameter per its declared action.ConsensusRule, and refines
// on disagreement up to a configured round limit.
package consensus

// Schedule is a monotonically non-increasing sequence of sampling
// temperatures, one per round. Round k of at most K rounds draws t_k.
// Implemented as linear interpolation from StartTemp down to FloorTemp,
// the concrete default chosen for "a function from K to a sequence".
type Schedule struct {
	StartTemp float64
	FloorTemp float64
}

// DefaultSchedule is a gentle descent from 0.7 to 0.2.
var DefaultSchedule = Schedule{StartTemp: 0.7, FloorTemp: 0.2}

// TemperatureSchedule returns t_k for round k (0-indexed) out of at most
// maxRounds total rounds. maxRounds <= 1 always returns StartTemp.
func (s Schedule) TemperatureSchedule(maxRounds, round int) float64 {
	if maxRounds <= 1 {
		return s.StartTemp
	}
	if round < 0 {
		round = 0
	}
	if round >= maxRounds {
		round = maxRounds - 1
	}
	frac := float64(round) / float64(maxRounds-1)
	return s.StartTemp - frac*(s.StartTemp-s.FloorTemp)
}

// TemperatureSchedule is the package-level convenience entry point using
// DefaultSchedule.
func TemperatureSchedule(k, roundIndex int) float64 {
	return DefaultSchedule.TemperatureSchedule(k, roundIndex)
}
