// Package program loads weekly workout programs from YAML. A program day is
// a list of exercise templates a new workout draft can be filled from.
package program

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrProgramNotFound = errors.New("program not found")
	ErrDayNotFound     = errors.New("program day not found")
)

type ExerciseTemplate struct {
	Name       string   `yaml:"name" json:"name"`
	ExternalID string   `yaml:"external_id" json:"externalId"`
	Thumbnail  string   `yaml:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Sets       int      `yaml:"sets" json:"sets"`
	Reps       *int     `yaml:"reps,omitempty" json:"reps,omitempty"`
	Weight     *float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
	WeightUnit string   `yaml:"weight_unit,omitempty" json:"weightUnit,omitempty"`
}

type Day struct {
	Day       int                `yaml:"day" json:"day"`
	Name      string             `yaml:"name" json:"name"`
	Exercises []ExerciseTemplate `yaml:"exercises" json:"exercises"`
}

type Program struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Days []Day  `yaml:"days" json:"days"`
}

type file struct {
	Programs []Program `yaml:"programs"`
}

type Catalog struct {
	programs map[string]Program
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read programs file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode programs yaml: %w", err)
	}

	catalog := &Catalog{programs: make(map[string]Program, len(f.Programs))}
	for _, p := range f.Programs {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("program [%s]: %w", p.ID, err)
		}
		if _, exists := catalog.programs[p.ID]; exists {
			return nil, fmt.Errorf("program [%s] defined twice", p.ID)
		}
		catalog.programs[p.ID] = p
	}
	return catalog, nil
}

// Empty returns a catalog with no programs.
func Empty() *Catalog {
	return &Catalog{programs: map[string]Program{}}
}

func (p Program) validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("id empty")
	}
	seen := map[int]bool{}
	for _, d := range p.Days {
		if d.Day < 1 || d.Day > 7 {
			return fmt.Errorf("day %d out of range 1-7", d.Day)
		}
		if seen[d.Day] {
			return fmt.Errorf("day %d defined twice", d.Day)
		}
		seen[d.Day] = true
		for _, e := range d.Exercises {
			if strings.TrimSpace(e.Name) == "" {
				return fmt.Errorf("day %d: exercise name empty", d.Day)
			}
			if e.Sets < 0 {
				return fmt.Errorf("day %d, %s: negative sets", d.Day, e.Name)
			}
		}
	}
	return nil
}

func (c *Catalog) Programs() []Program {
	out := make([]Program, 0, len(c.programs))
	for _, p := range c.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Get(id string) (Program, error) {
	p, ok := c.programs[id]
	if !ok {
		return Program{}, ErrProgramNotFound
	}
	return p, nil
}

// DayExercises returns the exercise templates of one program day.
func (c *Catalog) DayExercises(programID string, day int) ([]ExerciseTemplate, error) {
	p, err := c.Get(programID)
	if err != nil {
		return nil, err
	}
	for _, d := range p.Days {
		if d.Day == day {
			out := make([]ExerciseTemplate, len(d.Exercises))
			copy(out, d.Exercises)
			return out, nil
		}
	}
	return nil, ErrDayNotFound
}
