package optim

import "strings"

// Options holds the hyperparameters of a parameter group, keyed by name.
// Values are float64 scalars or nested maps of further options, so a
// dotted path such as "regularization.l2" can address a nested field.
//
// Optimizers read their hyperparameters from Options on every Step,
// which is what lets schedules retune a group between steps simply by
// writing to it.
type Options map[string]any

// Get resolves a dotted path and returns the numeric value at its end.
// It reports false when any path segment is missing or when the final
// value is not a number. Nested maps may be Options or plain
// map[string]any; the latter is what a JSON round trip produces.
func (o Options) Get(path string) (float64, bool) {
	m := map[string]any(o)
	rest := path
	for {
		key, tail, nested := strings.Cut(rest, ".")
		v, ok := m[key]
		if !ok {
			return 0, false
		}
		if !nested {
			switch n := v.(type) {
			case float64:
				return n, true
			case int:
				return float64(n), true
			default:
				return 0, false
			}
		}
		switch sub := v.(type) {
		case Options:
			m = sub
		case map[string]any:
			m = sub
		default:
			return 0, false
		}
		rest = tail
	}
}

// Set writes value at the dotted path, creating intermediate maps as
// needed and overwriting any non-map value that stands in the way.
func (o Options) Set(path string, value float64) {
	m := map[string]any(o)
	rest := path
	for {
		key, tail, nested := strings.Cut(rest, ".")
		if !nested {
			m[key] = value
			return
		}
		switch sub := m[key].(type) {
		case Options:
			m = sub
		case map[string]any:
			m = sub
		default:
			next := map[string]any{}
			m[key] = next
			m = next
		}
		rest = tail
	}
}

// clone deep-copies the options, including nested maps.
func (o Options) clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		switch sub := v.(type) {
		case Options:
			out[k] = sub.clone()
		case map[string]any:
			out[k] = Options(sub).clone()
		default:
			out[k] = v
		}
	}
	return out
}

// ParamGroup ties a set of parameters to the hyperparameters used to
// update them and to the schedules that retune those hyperparameters
// after every optimizer step.
//
// Groups are built by the caller, typically as literals:
//
//	&optim.ParamGroup{
//		Params:    []*optim.Parameter{w, b},
//		Options:   optim.Options{"lr": 0.0},
//		Schedules: []optim.Schedule{warmup},
//	}
//
// Options left unset are filled from the optimizer's defaults when the
// group is registered.
type ParamGroup struct {
	Params    []*Parameter
	Options   Options
	Schedules []Schedule
}
