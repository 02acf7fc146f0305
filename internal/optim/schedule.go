package optim

import (
	log "github.com/sirupsen/logrus"
)

// Schedule retunes one hyperparameter of one parameter group. A schedule
// is attached to a group via ParamGroup.Schedules and driven by
// ScheduledOptimizer, which calls Step once per optimizer step.
//
// Each Step computes the value for the current step index, advances the
// index, and writes the value into the group's Options at the schedule's
// path. Schedules hold no reference to their group; the group is passed
// in on every call, so a schedule can be re-attached to a different
// group after a snapshot restore.
type Schedule interface {
	// Step computes the current value, writes it to the group, and
	// advances the internal step index.
	Step(group *ParamGroup)

	// StateDict captures the schedule's mutable state. Configuration is
	// not part of it; a restored schedule is expected to be constructed
	// with the same configuration as the saved one.
	StateDict() ScheduleState

	// LoadStateDict restores mutable state captured by StateDict.
	LoadStateDict(state ScheduleState)
}

// LinearScheduleConfig configures a LinearSchedule.
type LinearScheduleConfig struct {
	// TotalSteps is the schedule horizon. Past it the decay line keeps
	// extrapolating and the value goes negative; the caller is expected
	// to stop stepping at the horizon.
	TotalSteps int

	// StartValue is the value at step 0 (default: 0.0).
	StartValue float64

	// MaxValue is the peak reached at the end of warmup. Zero means
	// unset: the peak is resolved lazily from the group's current value
	// at the schedule's path on the first Step.
	MaxValue float64

	// WarmupRate is the fraction of TotalSteps spent warming up
	// (default: 0.1).
	WarmupRate float64

	// NoWarmup disables the warmup phase entirely: the schedule starts
	// at MaxValue and decays over all of TotalSteps.
	NoWarmup bool

	// Path is the dotted Options path the schedule writes to
	// (default: "lr").
	Path string
}

// LinearSchedule ramps a hyperparameter linearly from StartValue up to
// MaxValue over the warmup phase, then decays it linearly down to zero
// over the rest of the horizon:
//
//	warmup_steps = total_steps * warmup_rate
//	idx <  warmup_steps: value = start + (max - start) * idx / warmup_steps
//	idx >= warmup_steps: value = max * (1 - (idx - warmup_steps) / (total_steps - warmup_steps))
//
// Only the step index is mutable state; everything else is fixed at
// construction, except MaxValue which may be resolved lazily from the
// group on the first Step.
type LinearSchedule struct {
	path       string
	startValue float64
	maxValue   float64
	haveMax    bool
	warmupRate float64
	totalSteps int
	idx        int
}

// NewLinearSchedule creates a linear warmup/decay schedule.
func NewLinearSchedule(config LinearScheduleConfig) *LinearSchedule {
	if config.Path == "" {
		config.Path = "lr"
	}
	if config.WarmupRate == 0 {
		config.WarmupRate = 0.1
	}
	if config.NoWarmup {
		config.WarmupRate = 0
	}
	return &LinearSchedule{
		path:       config.Path,
		startValue: config.StartValue,
		maxValue:   config.MaxValue,
		haveMax:    config.MaxValue != 0,
		warmupRate: config.WarmupRate,
		totalSteps: config.TotalSteps,
	}
}

// Step computes the value for the current index, advances the index and
// writes the value to the group.
func (s *LinearSchedule) Step(group *ParamGroup) {
	if !s.haveMax {
		// Adopt whatever the group currently holds as the peak. A
		// missing path resolves to 0 and the schedule stays flat.
		v, _ := group.Options.Get(s.path)
		s.maxValue = v
		s.haveMax = true
	}

	warmupSteps := float64(s.totalSteps) * s.warmupRate
	var value float64
	if float64(s.idx) < warmupSteps {
		value = s.startValue + (s.maxValue-s.startValue)*(float64(s.idx)/warmupSteps)
	} else {
		value = s.maxValue * (1 - (float64(s.idx)-warmupSteps)/(float64(s.totalSteps)-warmupSteps))
	}
	s.idx++
	group.Options.Set(s.path, value)
}

// StateDict captures the step index.
func (s *LinearSchedule) StateDict() ScheduleState {
	return ScheduleState{Idx: s.idx}
}

// LoadStateDict restores the step index.
func (s *LinearSchedule) LoadStateDict(state ScheduleState) {
	s.idx = state.Idx
}

// CyclicalLinearScheduleConfig configures a CyclicalLinearSchedule.
type CyclicalLinearScheduleConfig struct {
	// StepsPerEpoch is the number of optimizer steps that make up one
	// epoch for the schedule's internal epoch counter.
	StepsPerEpoch int

	// MaxValue is the value at the start of each cycle (default: 0.01).
	MaxValue float64

	// MaxFromGroup resolves MaxValue lazily from the group's current
	// value at the schedule's path on the first Step, instead of using
	// MaxValue.
	MaxFromGroup bool

	// MinValue is the value at the last epoch of each cycle
	// (default: 0.001).
	MinValue float64

	// EpochsPerCycle is the cycle length in epochs (default: 10).
	// A cycle length of 1 divides by zero and yields NaN values.
	EpochsPerCycle int

	// Path is the dotted Options path the schedule writes to
	// (default: "lr").
	Path string
}

// CyclicalLinearSchedule decays a hyperparameter linearly from MaxValue
// to MinValue across EpochsPerCycle epochs, then jumps back to MaxValue
// and repeats:
//
//	value = max - (max - min) / (epochs_per_cycle - 1) * (num_epoch % epochs_per_cycle)
//
// Epochs are counted internally: the epoch counter advances when the
// step index passes (num_epoch+1)*steps_per_epoch. The counter is not
// part of StateDict, so a restored schedule re-derives nothing and
// restarts its cycle position from epoch zero even when the restored
// index is mid-cycle.
type CyclicalLinearSchedule struct {
	path           string
	maxValue       float64
	haveMax        bool
	minValue       float64
	epochsPerCycle int
	stepsPerEpoch  int
	numEpoch       int
	idx            int
}

// NewCyclicalLinearSchedule creates a cyclical sawtooth schedule.
func NewCyclicalLinearSchedule(config CyclicalLinearScheduleConfig) *CyclicalLinearSchedule {
	if config.Path == "" {
		config.Path = "lr"
	}
	if config.MaxValue == 0 {
		config.MaxValue = 0.01
	}
	if config.MinValue == 0 {
		config.MinValue = 0.001
	}
	if config.EpochsPerCycle == 0 {
		config.EpochsPerCycle = 10
	}
	return &CyclicalLinearSchedule{
		path:           config.Path,
		maxValue:       config.MaxValue,
		haveMax:        !config.MaxFromGroup,
		minValue:       config.MinValue,
		epochsPerCycle: config.EpochsPerCycle,
		stepsPerEpoch:  config.StepsPerEpoch,
	}
}

// Step computes the value for the current epoch, advances the epoch
// counter when the index crosses an epoch boundary, advances the index
// and writes the value to the group.
func (s *CyclicalLinearSchedule) Step(group *ParamGroup) {
	if !s.haveMax {
		v, _ := group.Options.Get(s.path)
		s.maxValue = v
		s.haveMax = true
	}

	posInCycle := float64(s.numEpoch % s.epochsPerCycle)
	value := s.maxValue - (s.maxValue-s.minValue)/float64(s.epochsPerCycle-1)*posInCycle

	if s.idx > (s.numEpoch+1)*s.stepsPerEpoch {
		s.numEpoch++
		log.WithField("epoch", s.numEpoch).Info("cyclical schedule advanced to next epoch")
	}
	s.idx++
	group.Options.Set(s.path, value)
}

// StateDict captures the step index. The epoch counter is deliberately
// not included.
func (s *CyclicalLinearSchedule) StateDict() ScheduleState {
	return ScheduleState{Idx: s.idx}
}

// LoadStateDict restores the step index. The epoch counter keeps its
// current value, so the cycle position after a restore does not match
// the position at capture time.
func (s *CyclicalLinearSchedule) LoadStateDict(state ScheduleState) {
	s.idx = state.Idx
}
