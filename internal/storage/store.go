package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/trajopt/internal/solver"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string    `json:"id"`
	Model       string    `json:"model"`
	Preset      string    `json:"preset,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Knots       int       `json:"knots"`
	Dt          float64   `json:"dt"`
	TotalTime   float64   `json:"total_time"`
	Status      string    `json:"status"`
	Iterations  int       `json:"iterations"`
	OuterIters  int       `json:"outer_iterations"`
	Cost        float64   `json:"cost"`
	CostHistory []float64 `json:"cost_history"`
	Gradient    float64   `json:"gradient"`
	Violation   float64   `json:"violation"`
}

func (s *Store) Save(model, preset string, sol *solver.Solution) (string, error) {
	runID := fmt.Sprintf("%s_%d", model, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	tr := sol.Trajectory
	meta := RunMetadata{
		ID:          runID,
		Model:       model,
		Preset:      preset,
		Timestamp:   time.Now(),
		Knots:       tr.N,
		Dt:          tr.Dt,
		TotalTime:   tr.TotalTime(),
		Status:      sol.Stats.Status.String(),
		Iterations:  sol.Stats.Iterations,
		OuterIters:  sol.Stats.OuterIterations,
		Cost:        sol.Stats.Cost,
		CostHistory: sol.Stats.CostHistory,
		Gradient:    sol.Stats.GradientNorm,
		Violation:   sol.Stats.MaxViolation,
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvPath := filepath.Join(runDir, "trajectory.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := []string{"time"}
	for i := 0; i < tr.NX; i++ {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	for i := 0; i < tr.NU; i++ {
		header = append(header, fmt.Sprintf("u%d", i))
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	t := 0.0
	for k := 0; k < tr.N; k++ {
		row := []string{strconv.FormatFloat(t, 'f', 6, 64)}
		for i := 0; i < tr.NX; i++ {
			row = append(row, strconv.FormatFloat(tr.X[k].AtVec(i), 'f', 6, 64))
		}
		if k < tr.N-1 {
			u := tr.TrueControl(k)
			for i := 0; i < tr.NU; i++ {
				row = append(row, strconv.FormatFloat(u.AtVec(i), 'f', 6, 64))
			}
			t += tr.StepDuration(k)
		} else {
			for i := 0; i < tr.NU; i++ {
				row = append(row, "0")
			}
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metaPath := filepath.Join(s.baseDir, entry.Name(), "metadata.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		runs = append(runs, meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadTrajectory reads a stored run back as time, state and control
// columns. States have one more row than controls.
func (s *Store) LoadTrajectory(runID string) (states [][]float64, controls [][]float64, times []float64, err error) {
	csvPath := filepath.Join(s.baseDir, runID, "trajectory.csv")
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return [][]float64{}, [][]float64{}, []float64{}, nil
	}

	nx, nu := 0, 0
	for _, name := range records[0][1:] {
		if len(name) > 0 && name[0] == 'x' {
			nx++
		}
		if len(name) > 0 && name[0] == 'u' {
			nu++
		}
	}

	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) < 1+nx+nu {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		times = append(times, t)

		state := make([]float64, nx)
		for j := 0; j < nx; j++ {
			state[j], _ = strconv.ParseFloat(record[1+j], 64)
		}
		states = append(states, state)

		ctrl := make([]float64, nu)
		for j := 0; j < nu; j++ {
			ctrl[j], _ = strconv.ParseFloat(record[1+nx+j], 64)
		}
		controls = append(controls, ctrl)
	}
	// the terminal row carries no control
	if len(controls) > 0 {
		controls = controls[:len(controls)-1]
	}

	return states, controls, times, nil
}

// Export copies a run's trajectory CSV to an arbitrary destination path.
func (s *Store) Export(runID, dst string) error {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "trajectory.csv"))
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
