package main

import (
	"fmt"
	"os"

	"go-reports/internal/evaluation/model"
	"go-reports/internal/features/authorization"
	"go-reports/internal/features/report"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Fixtures is the layout of the seed file.
type Fixtures struct {
	Instances struct {
		Process  []model.Instance `yaml:"process"`
		Decision []model.Instance `yaml:"decision"`
	} `yaml:"instances"`
	Reports     []report.ReportDefinition               `yaml:"reports" validate:"dive"`
	Collections []authorization.Collection              `yaml:"collections"`
	Grants      []authorization.DefinitionAuthorization `yaml:"grants" validate:"dive"`
}

func LoadFixtures(path string) (*Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseFixtures(b)
}

func ParseFixtures(b []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	if err := validator.New().Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	for _, list := range [][]model.Instance{f.Instances.Process, f.Instances.Decision} {
		for _, inst := range list {
			if inst.ID == "" || inst.DefinitionKey == "" {
				return nil, fmt.Errorf("instance %q needs an id and a definition key", inst.ID)
			}
		}
	}
	for _, r := range f.Reports {
		if r.ID == "" {
			return nil, fmt.Errorf("report %q needs an id", r.Name)
		}
	}
	return &f, nil
}

// singleMembers returns the single reports a combined report lists, in its order.
func (f *Fixtures) singleMembers(combined *report.ReportDefinition) []report.ReportDefinition {
	var members []report.ReportDefinition
	for _, id := range combined.CombinedData.Reports {
		for _, r := range f.Reports {
			if r.ID == id && r.Kind == report.KindSingle {
				members = append(members, r)
			}
		}
	}
	return members
}
