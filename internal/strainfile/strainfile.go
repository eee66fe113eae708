// Package strainfile reads strain definitions and their weekly targets from
// YAML documents.
package strainfile

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

// File is the root of a strain document
type File struct {
	Strains []StrainEntry `yaml:"strains"`
}

// StrainEntry is one strain with its target table
type StrainEntry struct {
	Name       string       `yaml:"name"`
	VegaWeeks  int          `yaml:"vega_weeks"`
	FloraWeeks int          `yaml:"flora_weeks"`
	Targets    []TargetEntry `yaml:"targets"`
}

// TargetEntry is one (phase, week) target row. Omitted ranges stay unset.
type TargetEntry struct {
	Phase       string            `yaml:"phase"`
	Week        int               `yaml:"week"`
	Temp        cultivation.Range `yaml:"temp"`
	RH          cultivation.Range `yaml:"rh"`
	PPFD        cultivation.Range `yaml:"ppfd"`
	PH          cultivation.Range `yaml:"ph"`
	EC          cultivation.Range `yaml:"ec"`
	Photoperiod string            `yaml:"photoperiod"`
	Notes       string            `yaml:"notes"`
}

// Parse decodes and validates a strain document. Every problem found is
// reported, not only the first.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid strain file: %w", err)
	}
	if len(f.Strains) == 0 {
		return nil, errors.New("strain file declares no strains")
	}

	var errs []error
	names := make(map[string]bool, len(f.Strains))
	for i, s := range f.Strains {
		strain := s.Strain()
		if err := strain.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("strains[%d]: %w", i, err))
			continue
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("strains[%d]: duplicate strain %q", i, s.Name))
		}
		names[s.Name] = true

		seen := make(map[string]bool, len(s.Targets))
		for j, ts := range s.Targets {
			t, err := ts.WeeklyTarget()
			if err == nil {
				err = t.ValidateWeek(strain)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("strains[%d].targets[%d]: %w", i, j, err))
				continue
			}
			key := fmt.Sprintf("%s/%d", t.Phase, t.Week)
			if seen[key] {
				errs = append(errs, fmt.Errorf("strains[%d].targets[%d]: duplicate %s week %d", i, j, t.Phase, t.Week))
			}
			seen[key] = true
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &f, nil
}

// Strain converts the entry to a strain without an ID
func (s StrainEntry) Strain() cultivation.Strain {
	return cultivation.Strain{
		Name:       s.Name,
		VegaWeeks:  s.VegaWeeks,
		FloraWeeks: s.FloraWeeks,
	}
}

// WeeklyTarget converts the entry to a target row without strain or ID
func (t TargetEntry) WeeklyTarget() (cultivation.WeeklyTarget, error) {
	p, err := cultivation.ParsePhase(t.Phase)
	if err != nil {
		return cultivation.WeeklyTarget{}, err
	}
	return cultivation.WeeklyTarget{
		Phase:       p,
		Week:        t.Week,
		Temp:        t.Temp.Clone(),
		RH:          t.RH.Clone(),
		PPFD:        t.PPFD.Clone(),
		PH:          t.PH.Clone(),
		EC:          t.EC.Clone(),
		Photoperiod: t.Photoperiod,
		Notes:       t.Notes,
	}, nil
}
