package model

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileDTO is the on-disk YAML shape of a model file.
type fileDTO struct {
	Name      string      `yaml:"name"`
	Separator string      `yaml:"separator"`
	Time      *Span       `yaml:"time"`
	Sectors   []sectorDTO `yaml:"sectors"`
}

type sectorDTO struct {
	Name       string             `yaml:"name"`
	Prefix     string             `yaml:"prefix"`
	Parameters map[string]float64 `yaml:"parameters"`
	Variables  []variableDTO      `yaml:"variables"`
	Equations  []equationDTO      `yaml:"equations"`
}

type variableDTO struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	From        string   `yaml:"from"`
	Initial     *float64 `yaml:"initial"`
}

// equationDTO accepts either {eq: "LHS ~ RHS"} or {lhs: ..., rhs: ...}.
type equationDTO struct {
	Eq  string `yaml:"eq"`
	LHS string `yaml:"lhs"`
	RHS string `yaml:"rhs"`
}

// Load reads and parses a model file.
func Load(path string) (*Registry, error) {
	return LoadWithSeparator(path, "")
}

// LoadWithSeparator is Load with a fallback separator for model files that
// declare none.
func LoadWithSeparator(path, separator string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	reg, err := ParseWithSeparator(data, separator)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Parse builds a registry from YAML model data.
func Parse(data []byte) (*Registry, error) {
	return ParseWithSeparator(data, "")
}

// ParseWithSeparator builds a registry from YAML model data. separator
// applies when the data declares none; empty selects the default.
func ParseWithSeparator(data []byte, separator string) (*Registry, error) {
	var doc fileDTO
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}
	if doc.Separator == "" {
		doc.Separator = separator
	}
	if len(doc.Sectors) == 0 {
		return nil, fmt.Errorf("model %q declares no sectors", doc.Name)
	}

	sectors := make([]Sector, 0, len(doc.Sectors))
	for _, sd := range doc.Sectors {
		s, err := sd.toSector()
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, s)
	}
	return NewRegistry(doc.Name, doc.Separator, doc.Time, sectors)
}

func (sd sectorDTO) toSector() (Sector, error) {
	name := sd.Name
	if name == "" {
		name = sd.Prefix
	}
	s := Sector{
		Name:       name,
		Prefix:     sd.Prefix,
		Parameters: sd.Parameters,
		Variables:  make([]Declaration, 0, len(sd.Variables)),
		Equations:  make([]Equation, 0, len(sd.Equations)),
	}
	if s.Parameters == nil {
		s.Parameters = map[string]float64{}
	}
	for _, v := range sd.Variables {
		s.Variables = append(s.Variables, Declaration{
			Name:        strings.TrimSpace(v.Name),
			Description: strings.TrimSpace(v.Description),
			From:        strings.TrimSpace(v.From),
			Initial:     v.Initial,
		})
	}
	for i, e := range sd.Equations {
		eq, err := e.toEquation()
		if err != nil {
			return Sector{}, fmt.Errorf("sector %q equation %d: %w", sd.Prefix, i+1, err)
		}
		s.Equations = append(s.Equations, eq)
	}
	return s, nil
}

func (e equationDTO) toEquation() (Equation, error) {
	if e.Eq != "" {
		lhs, rhs, ok := strings.Cut(e.Eq, "~")
		if !ok {
			return Equation{}, fmt.Errorf("missing '~' in %q", e.Eq)
		}
		return Equation{LHS: strings.TrimSpace(lhs), RHS: strings.TrimSpace(rhs)}, nil
	}
	if e.LHS == "" || e.RHS == "" {
		return Equation{}, fmt.Errorf("equation needs either eq or both lhs and rhs")
	}
	return Equation{LHS: strings.TrimSpace(e.LHS), RHS: strings.TrimSpace(e.RHS)}, nil
}
