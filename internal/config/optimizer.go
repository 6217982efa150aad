package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Optimizer holds the genetic search tuning.
type Optimizer struct {
	PopulationSize   int           `yaml:"population_size"`
	Generations      int           `yaml:"generations"`
	StallGenerations int           `yaml:"stall_generations"`
	TournamentSize   int           `yaml:"tournament_size"`
	MutationRate     float64       `yaml:"mutation_rate"`
	EliteCount       int           `yaml:"elite_count"`
	Seed             int64         `yaml:"seed"`
	TimeBudget       time.Duration `yaml:"time_budget"`
}

func DefaultOptimizer() Optimizer {
	return Optimizer{
		PopulationSize:   60,
		Generations:      400,
		StallGenerations: 80,
		TournamentSize:   3,
		MutationRate:     0.3,
		EliteCount:       2,
	}
}

// LoadOptimizerFile overlays the YAML file at path onto base.
func LoadOptimizerFile(path string, base Optimizer) (Optimizer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Optimizer{}, fmt.Errorf("optimizer config: read %q: %w", path, err)
	}

	out := base
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil && !errors.Is(err, io.EOF) {
		return Optimizer{}, fmt.Errorf("optimizer config: parse %q: %w", path, err)
	}
	return out, nil
}

func (o Optimizer) withEnv() Optimizer {
	o.PopulationSize = GetInt("OPTIMIZER_POPULATION", o.PopulationSize)
	o.Generations = GetInt("OPTIMIZER_GENERATIONS", o.Generations)
	o.StallGenerations = GetInt("OPTIMIZER_STALL_GENERATIONS", o.StallGenerations)
	o.TournamentSize = GetInt("OPTIMIZER_TOURNAMENT_SIZE", o.TournamentSize)
	o.MutationRate = GetFloat("OPTIMIZER_MUTATION_RATE", o.MutationRate)
	o.EliteCount = GetInt("OPTIMIZER_ELITE_COUNT", o.EliteCount)
	o.Seed = GetInt64("OPTIMIZER_SEED", o.Seed)
	o.TimeBudget = GetDuration("OPTIMIZER_TIME_BUDGET", o.TimeBudget)
	return o
}

func (o Optimizer) Validate() error {
	switch {
	case o.PopulationSize < 2:
		return fmt.Errorf("optimizer config: population_size must be at least 2, got %d", o.PopulationSize)
	case o.Generations < 1:
		return fmt.Errorf("optimizer config: generations must be positive, got %d", o.Generations)
	case o.StallGenerations < 0:
		return fmt.Errorf("optimizer config: stall_generations must not be negative, got %d", o.StallGenerations)
	case o.TournamentSize < 1 || o.TournamentSize > o.PopulationSize:
		return fmt.Errorf("optimizer config: tournament_size must be in [1,%d], got %d", o.PopulationSize, o.TournamentSize)
	case o.MutationRate < 0 || o.MutationRate > 1:
		return fmt.Errorf("optimizer config: mutation_rate must be in [0,1], got %v", o.MutationRate)
	case o.EliteCount < 0 || o.EliteCount >= o.PopulationSize:
		return fmt.Errorf("optimizer config: elite_count must be in [0,%d), got %d", o.PopulationSize, o.EliteCount)
	case o.TimeBudget < 0:
		return fmt.Errorf("optimizer config: time_budget must not be negative, got %v", o.TimeBudget)
	}
	return nil
}
