package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Plan describes one sellable subscription plan from the YAML catalog.
type Plan struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Amount    int64  `yaml:"amount" json:"amount"`
	Currency  string `yaml:"currency" json:"currency"`
	Interval  string `yaml:"interval" json:"interval"`
	TrialDays int    `yaml:"trial_days" json:"trial_days"`
}

// PlanCatalog is the set of plans subscriptions can be created against.
type PlanCatalog struct {
	plans map[string]Plan
}

type planFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadPlans reads the plan catalog from a YAML file.
func LoadPlans(path string) (*PlanCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}

	var file planFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	if len(file.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog %s contains no plans", path)
	}

	plans := make(map[string]Plan, len(file.Plans))
	for _, p := range file.Plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan catalog %s: plan without id", path)
		}
		if _, dup := plans[p.ID]; dup {
			return nil, fmt.Errorf("plan catalog %s: duplicate plan id %s", path, p.ID)
		}
		if p.Amount < 0 {
			return nil, fmt.Errorf("plan %s: negative amount", p.ID)
		}
		plans[p.ID] = p
	}

	return &PlanCatalog{plans: plans}, nil
}

// Get returns the plan with the given id.
func (c *PlanCatalog) Get(id string) (Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// All returns every plan sorted by id.
func (c *PlanCatalog) All() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
