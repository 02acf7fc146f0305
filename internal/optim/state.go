package optim

import "fmt"

// State maps live parameters to the optimizer state accumulated for them.
type State map[*Parameter]*ParamState

// ParamState is the per-parameter bookkeeping of an optimizer: a step
// count and named buffers sized like the parameter (momentum buffers,
// moment estimates).
type ParamState struct {
	Step    int                  `json:"step,omitempty"`
	Buffers map[string][]float64 `json:"buffers,omitempty"`
}

// buffer returns the named buffer, creating a zeroed one of length n on
// first use.
func (ps *ParamState) buffer(name string, n int) []float64 {
	buf := ps.Buffers[name]
	if buf == nil {
		if ps.Buffers == nil {
			ps.Buffers = map[string][]float64{}
		}
		buf = make([]float64, n)
		ps.Buffers[name] = buf
	}
	return buf
}

func (ps *ParamState) clone() *ParamState {
	out := &ParamState{Step: ps.Step}
	if ps.Buffers != nil {
		out.Buffers = make(map[string][]float64, len(ps.Buffers))
		for name, buf := range ps.Buffers {
			out.Buffers[name] = append([]float64(nil), buf...)
		}
	}
	return out
}

// GroupState is the serializable form of a ParamGroup. Parameters are
// stored as indices into the optimizer's flattened parameter order;
// schedules never serialize and survive only within a process.
type GroupState struct {
	Options Options `json:"options"`
	Params  []int   `json:"params"`

	// Schedules carries the group's live schedules through an in-process
	// snapshot. ScheduledOptimizer.StateDict strips it before handing
	// the snapshot out, and JSON ignores it either way.
	Schedules []Schedule `json:"-"`
}

// StateDict is a portable snapshot of an optimizer: per-parameter state
// keyed by flattened parameter index, plus the group layout. It contains
// no parameter values and no pointers, so it can be serialized and later
// loaded into a different optimizer instance holding parameters of the
// same shapes.
type StateDict struct {
	State  map[int]*ParamState `json:"state"`
	Groups []GroupState        `json:"param_groups"`
}

// ScheduleState is the serializable state of a schedule. Only the step
// index persists; configuration is reconstructed from code.
type ScheduleState struct {
	Idx int `json:"idx"`
}

// ScheduledState is the composite snapshot of a ScheduledOptimizer: the
// inner optimizer's snapshot, the current value of each group's "lr"
// option, and the state of each group's schedules, all indexed by group
// position.
type ScheduledState struct {
	Optim     *StateDict        `json:"optim"`
	LR        []float64         `json:"lr"`
	Schedules [][]ScheduleState `json:"schedules"`
}

// StateDict snapshots the optimizer. Options and buffers are deep-copied
// both here and in LoadStateDict, so a snapshot is immune to later
// training and can be kept around or serialized at leisure.
func (b *base) StateDict() *StateDict {
	params := flattenParams(b.groups)
	index := make(map[*Parameter]int, len(params))
	for i, p := range params {
		index[p] = i
	}

	sd := &StateDict{
		State:  make(map[int]*ParamState, len(b.state)),
		Groups: make([]GroupState, len(b.groups)),
	}
	for p, ps := range b.state {
		if i, ok := index[p]; ok {
			sd.State[i] = ps.clone()
		}
	}
	next := 0
	for gi, g := range b.groups {
		ids := make([]int, len(g.Params))
		for j := range g.Params {
			ids[j] = next
			next++
		}
		sd.Groups[gi] = GroupState{
			Options:   g.Options.clone(),
			Params:    ids,
			Schedules: append([]Schedule(nil), g.Schedules...),
		}
	}
	return sd
}

// LoadStateDict restores a snapshot. The optimizer's current groups are
// replaced by the snapshot's groups, with each saved parameter index
// rebound to the parameter at the same position in the optimizer's own
// flattened order. Group count, parameter count, and buffer sizes must
// all line up.
func (b *base) LoadStateDict(sd *StateDict) error {
	if sd == nil {
		return fmt.Errorf("optim: nil state dict")
	}
	if len(sd.Groups) != len(b.groups) {
		return fmt.Errorf("optim: state dict has %d param groups, optimizer has %d", len(sd.Groups), len(b.groups))
	}
	current := flattenParams(b.groups)
	saved := 0
	for _, gs := range sd.Groups {
		saved += len(gs.Params)
	}
	if saved != len(current) {
		return fmt.Errorf("optim: state dict covers %d parameters, optimizer has %d", saved, len(current))
	}

	groups := make([]*ParamGroup, len(sd.Groups))
	for gi, gs := range sd.Groups {
		params := make([]*Parameter, len(gs.Params))
		for j, id := range gs.Params {
			if id < 0 || id >= len(current) {
				return fmt.Errorf("optim: state dict group %d refers to parameter index %d, optimizer has %d parameters", gi, id, len(current))
			}
			params[j] = current[id]
		}
		groups[gi] = &ParamGroup{
			Params:    params,
			Options:   gs.Options.clone(),
			Schedules: append([]Schedule(nil), gs.Schedules...),
		}
	}

	state := make(State, len(sd.State))
	for id, ps := range sd.State {
		if id < 0 || id >= len(current) {
			return fmt.Errorf("optim: state dict refers to parameter index %d, optimizer has %d parameters", id, len(current))
		}
		p := current[id]
		for name, buf := range ps.Buffers {
			if len(buf) != len(p.Data()) {
				return fmt.Errorf("optim: buffer %q for parameter %q has size %d, want %d", name, p.Name(), len(buf), len(p.Data()))
			}
		}
		state[p] = ps.clone()
	}

	b.groups = groups
	b.state = state
	return nil
}
