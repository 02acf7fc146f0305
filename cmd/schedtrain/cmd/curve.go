package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aphp-datascience/study-information-redundancy-rwd-distant-supervision/internal/optim"
)

var (
	curveConfigPath     string
	curveSchedule       string
	curveSteps          int
	curveLR             float64
	curveStartValue     float64
	curveMaxValue       float64
	curveWarmupRate     float64
	curveNoWarmup       bool
	curveStepsPerEpoch  int
	curveMinValue       float64
	curveEpochsPerCycle int
	curveOutPath        string
)

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Evaluate schedules offline and print step,value CSV",
	Long: `Evaluate configured schedules without training and emit their values
as CSV, one row per step. Schedules come from flags or from the
schedules section of a run spec YAML file, so a planned run's learning
rate curve can be inspected before launching it.`,
	RunE: runCurve,
}

func init() {
	curveCmd.Flags().StringVar(&curveConfigPath, "config", "", "Run spec YAML file to take schedules from")
	curveCmd.Flags().StringVar(&curveSchedule, "schedule", "linear", "Schedule: linear, cyclical")
	curveCmd.Flags().IntVar(&curveSteps, "steps", 100, "Number of steps to evaluate")
	curveCmd.Flags().Float64Var(&curveLR, "lr", 0.01, "Group value schedules resolve their peak from")
	curveCmd.Flags().Float64Var(&curveStartValue, "start-value", 0, "Start of the linear warmup")
	curveCmd.Flags().Float64Var(&curveMaxValue, "max-value", 0, "Peak value (0 = resolve from the group)")
	curveCmd.Flags().Float64Var(&curveWarmupRate, "warmup-rate", 0.1, "Warmup fraction of the linear schedule")
	curveCmd.Flags().BoolVar(&curveNoWarmup, "no-warmup", false, "Disable the linear schedule's warmup phase")
	curveCmd.Flags().IntVar(&curveStepsPerEpoch, "steps-per-epoch", 10, "Steps per epoch of the cyclical schedule")
	curveCmd.Flags().Float64Var(&curveMinValue, "min-value", 0.001, "Bottom of the cyclical schedule")
	curveCmd.Flags().IntVar(&curveEpochsPerCycle, "epochs-per-cycle", 10, "Cycle length of the cyclical schedule")
	curveCmd.Flags().StringVar(&curveOutPath, "out", "", "Output file (default stdout)")
	rootCmd.AddCommand(curveCmd)
}

func runCurve(cmd *cobra.Command, args []string) error {
	specs, lr, steps, err := curveSpecs()
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return errors.New("no schedules configured")
	}

	schedules := make([]optim.Schedule, len(specs))
	paths := make([]string, len(specs))
	for i, s := range specs {
		built, err := buildSchedule(s)
		if err != nil {
			return err
		}
		schedules[i] = built
		paths[i] = s.Path
		if paths[i] == "" {
			paths[i] = "lr"
		}
	}

	// The scratch group gives schedules somewhere to write, and holds
	// the lr that group-resolving schedules adopt as their peak.
	group := &optim.ParamGroup{Options: optim.Options{"lr": lr}}

	out := os.Stdout
	if curveOutPath != "" {
		f, err := os.Create(curveOutPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	fmt.Fprintf(out, "step,%s\n", strings.Join(paths, ","))
	for step := 0; step < steps; step++ {
		row := make([]string, 0, len(schedules)+1)
		row = append(row, strconv.Itoa(step))
		for i, s := range schedules {
			s.Step(group)
			v, _ := group.Options.Get(paths[i])
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		fmt.Fprintln(out, strings.Join(row, ","))
	}
	return nil
}

// curveSpecs resolves the schedules to evaluate, the group lr they may
// resolve their peak from, and the number of steps.
func curveSpecs() ([]scheduleSpec, float64, int, error) {
	if curveConfigPath != "" {
		run, err := loadRunSpec(curveConfigPath)
		if err != nil {
			return nil, 0, 0, err
		}
		run.applyDefaults()
		steps := curveSteps
		if run.Loop.Steps > 0 {
			steps = run.Loop.Steps
		}
		return run.Schedules, run.Optimizer.LR, steps, nil
	}

	spec := scheduleSpec{Type: curveSchedule}
	switch curveSchedule {
	case "linear":
		spec.TotalSteps = curveSteps
		spec.StartValue = curveStartValue
		spec.MaxValue = curveMaxValue
		spec.WarmupRate = curveWarmupRate
		spec.NoWarmup = curveNoWarmup
	case "cyclical":
		spec.StepsPerEpoch = curveStepsPerEpoch
		spec.MaxValue = curveMaxValue
		spec.MaxFromGroup = curveMaxValue == 0
		spec.MinValue = curveMinValue
		spec.EpochsPerCycle = curveEpochsPerCycle
	default:
		return nil, 0, 0, fmt.Errorf("unknown schedule %q", curveSchedule)
	}
	return []scheduleSpec{spec}, curveLR, curveSteps, nil
}
