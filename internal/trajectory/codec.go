package trajectory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// fileDTO is the on-disk form of a solution. External solvers can produce it
// to have their output queried and stored.
type fileDTO struct {
	T        []float64            `json:"t"`
	States   map[string][]float64 `json:"states"`
	Observed map[string][]float64 `json:"observed"`
}

// Encode writes sol as indented JSON.
func Encode(w io.Writer, sol Solution) error {
	dto := fileDTO{
		T:        sol.Times(),
		States:   make(map[string][]float64, len(sol.States())),
		Observed: make(map[string][]float64, len(sol.Observed())),
	}
	if dto.T == nil {
		dto.T = []float64{}
	}
	for _, name := range sol.States() {
		dto.States[name], _ = sol.Series(name)
	}
	for _, name := range sol.Observed() {
		dto.Observed[name], _ = sol.Series(name)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dto); err != nil {
		return fmt.Errorf("encoding solution: %w", err)
	}
	return nil
}

// Decode reads a solution written by Encode. A series longer than the time
// axis is rejected; shorter ones are kept.
func Decode(r io.Reader) (*Memory, error) {
	var dto fileDTO
	if err := json.NewDecoder(r).Decode(&dto); err != nil {
		return nil, fmt.Errorf("decoding solution: %w", err)
	}
	for i := 1; i < len(dto.T); i++ {
		if dto.T[i] < dto.T[i-1] {
			return nil, fmt.Errorf("decoding solution: time points not increasing at index %d", i)
		}
	}
	check := func(series map[string][]float64) error {
		for name, values := range series {
			if len(values) > len(dto.T) {
				return fmt.Errorf("decoding solution: %s has %d values for %d time points", name, len(values), len(dto.T))
			}
		}
		return nil
	}
	if err := check(dto.States); err != nil {
		return nil, err
	}
	if err := check(dto.Observed); err != nil {
		return nil, err
	}
	return FromSeries(dto.T, dto.States, dto.Observed), nil
}

// WriteFile encodes sol to path.
func WriteFile(path string, sol Solution) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(f, sol); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile decodes the solution stored at path.
func ReadFile(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	sol, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sol, nil
}
