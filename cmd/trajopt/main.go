package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/trajopt/internal/config"
	"github.com/san-kum/trajopt/internal/solver"
	"github.com/san-kum/trajopt/internal/storage"
	"github.com/san-kum/trajopt/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	noSave     bool

	dt         float64
	knots      int
	iterations int
	squareRoot bool
	minTime    bool
	infeasible bool

	xAxis int
	yAxis int

	plotControls bool
	outputFile   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trajopt",
		Short: "constrained trajectory optimization lab",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".trajopt", "data directory")

	solveCmd := &cobra.Command{
		Use:   "solve [model]",
		Short: "solve a trajectory optimization problem",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}
	solveCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	solveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	solveCmd.Flags().Float64Var(&dt, "dt", 0, "timestep (overrides config)")
	solveCmd.Flags().IntVar(&knots, "knots", 0, "knot points (overrides config)")
	solveCmd.Flags().IntVar(&iterations, "iterations", 0, "iteration limit (overrides config)")
	solveCmd.Flags().BoolVar(&squareRoot, "square-root", false, "square-root backward pass")
	solveCmd.Flags().BoolVar(&minTime, "min-time", false, "free final time")
	solveCmd.Flags().BoolVar(&infeasible, "infeasible", false, "infeasible start")
	solveCmd.Flags().BoolVar(&noSave, "no-save", false, "skip persisting the run")

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "solve with a live iteration view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	liveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	liveCmd.Flags().BoolVar(&squareRoot, "square-root", false, "square-root backward pass")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().BoolVar(&plotControls, "controls", false, "plot controls instead of states")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase space plot of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&xAxis, "x-axis", 0, "state index for x-axis")
	phaseCmd.Flags().IntVar(&yAxis, "y-axis", 1, "state index for y-axis")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run trajectory to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write to file instead of stdout")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(solveCmd, liveCmd, listCmd, plotCmd, phaseCmd, exportCmd, exportCSVCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers preset, config file and flags, in that order.
func resolveConfig(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Model = model

	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		cfg = p
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		cfg.Model = model
	}

	if cmd.Flags().Changed("dt") {
		cfg.Dt = dt
	}
	if cmd.Flags().Changed("knots") {
		cfg.Knots = knots
	}
	if cmd.Flags().Changed("iterations") {
		cfg.Solver.MaxIterations = iterations
	}
	if cmd.Flags().Changed("square-root") {
		cfg.Solver.SquareRoot = squareRoot
	}
	if cmd.Flags().Changed("min-time") {
		cfg.MinTime = minTime
	}
	if cmd.Flags().Changed("infeasible") {
		cfg.Infeasible = infeasible
	}
	return cfg, nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	model := args[0]
	cfg, err := resolveConfig(cmd, model)
	if err != nil {
		return err
	}

	problem, err := cfg.Problem()
	if err != nil {
		return err
	}
	s, err := solver.New(problem, cfg.Options())
	if err != nil {
		return err
	}

	fmt.Printf("solving %s...\n", model)
	start := time.Now()
	sol, err := s.Solve()
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n\n", elapsed)
	fmt.Println(viz.Summary(model, sol))

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(model, preset, sol)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	model := args[0]
	cfg, err := resolveConfig(cmd, model)
	if err != nil {
		return err
	}
	problem, err := cfg.Problem()
	if err != nil {
		return err
	}

	m := viz.NewLive(model, cfg.Solver.MaxIterations, func(progress func(solver.Stats)) (*solver.Solution, error) {
		opts := cfg.Options()
		opts.Progress = progress
		s, err := solver.New(problem, opts)
		if err != nil {
			return nil, err
		}
		return s.Solve()
	})

	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tSTATUS\tITERS\tCOST\tVIOLATION")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.4g\t%.2g\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.Iterations,
			run.Cost,
			run.Violation,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, controls, _, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("model: %s\n", meta.Model)
	fmt.Printf("status: %s\n\n", meta.Status)

	if plotControls {
		fmt.Println(viz.PlotColumns(controls, nil, "u"))
	} else {
		fmt.Println(viz.PlotColumns(states, viz.StateCaptions(meta.Model), "x"))
	}
	if len(meta.CostHistory) > 1 {
		fmt.Println(viz.PlotCostHistory(meta.CostHistory))
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	states, _, _, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}
	if len(states[0]) <= xAxis || len(states[0]) <= yAxis {
		return fmt.Errorf("state dimension too small for selected axes")
	}

	fmt.Printf("phase space plot: %s (%s)\n", meta.ID, meta.Model)
	fmt.Printf("x-axis: x%d, y-axis: x%d\n\n", xAxis, yAxis)
	fmt.Println(viz.PhasePlot(states, xAxis, yAxis, 70, 20))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	if outputFile != "" {
		if err := st.Export(args[0], outputFile); err != nil {
			return err
		}
		fmt.Printf("exported to %s\n", outputFile)
		return nil
	}
	states, controls, times, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := []string{"time"}
	for i := range states[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	if len(controls) > 0 {
		for i := range controls[0] {
			header = append(header, fmt.Sprintf("u%d", i))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i := range states {
		row := []string{strconv.FormatFloat(times[i], 'f', 6, 64)}
		for _, v := range states[i] {
			row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
		}
		if i < len(controls) {
			for _, v := range controls[i] {
				row = append(row, strconv.FormatFloat(v, 'f', 6, 64))
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
