package services

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"tour-planning-service/internal/config"
	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/platform/logger"
	"tour-planning-service/internal/platform/metrics"
	"tour-planning-service/internal/platform/obs"

	"go.uber.org/zap"
)

type OptimizerConfig struct {
	PopulationSize   int
	Generations      int
	StallGenerations int
	TournamentSize   int
	MutationRate     float64
	EliteCount       int

	// Seed makes runs reproducible; zero seeds from the clock.
	Seed int64

	// TimeBudget stops the search early, returning the best tour so far.
	// Zero disables it.
	TimeBudget time.Duration
}

// DefaultOptimizerConfig mirrors the service's configured defaults.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig(config.DefaultOptimizer())
}

type SearchStats struct {
	Seed         int64
	Generations  int
	Improvements int
	BestCost     float64
	BaselineCost float64
}

// GeneticOptimizer searches precedence-valid demand orders with a genetic
// algorithm. Search keeps no state between calls.
type GeneticOptimizer struct {
	Config OptimizerConfig
	Logger *zap.Logger
}

func NewGeneticOptimizer(cfg OptimizerConfig, log *zap.Logger) *GeneticOptimizer {
	return &GeneticOptimizer{Config: cfg, Logger: logger.OrNop(log)}
}

// Search returns the lowest-cost order found for the demands, starting and
// ending at depot. Every pickup precedes its delivery in the result, and the
// cost is never above the nearest-neighbor baseline.
func (o *GeneticOptimizer) Search(
	ctx context.Context,
	depot domain.IntersectionID,
	demands []*domain.Demand,
	table *domain.PathTable,
) (_ []*domain.Demand, stats SearchStats, err error) {
	defer obs.Time(ctx, "optimizer.Search")(&err)

	pairs, err := pairDemands(demands)
	if err != nil {
		return nil, stats, fmt.Errorf("search tour: %w", err)
	}
	m, err := newCostMatrix(depot, demands, table)
	if err != nil {
		return nil, stats, fmt.Errorf("search tour: %w", err)
	}

	cfg := o.config()
	stats.Seed = cfg.Seed
	if stats.Seed == 0 {
		stats.Seed = time.Now().UnixNano()
	}

	baseline := m.nearestNeighbor(pairs)
	stats.BaselineCost = m.cost(baseline)
	stats.BestCost = stats.BaselineCost

	// One request, a lone demand or nothing: the baseline is the only valid order.
	if len(demands) <= 1 || (len(demands) == 2 && pairs.partner[0] >= 0) {
		return decode(baseline, demands), stats, nil
	}

	rng := rand.New(rand.NewPCG(uint64(stats.Seed), uint64(stats.Seed)>>17|1))

	var deadline time.Time
	if cfg.TimeBudget > 0 {
		deadline = time.Now().Add(cfg.TimeBudget)
	}

	pop := make([]chromosome, 0, cfg.PopulationSize)
	pop = append(pop, chromosome{genes: baseline, cost: stats.BaselineCost})
	for len(pop) < cfg.PopulationSize {
		genes := randomInsertion(rng, pairs)
		pop = append(pop, chromosome{genes: genes, cost: m.cost(genes)})
	}
	sortPopulation(pop)
	best := pop[0].clone()

	stall := 0
	for gen := range cfg.Generations {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("search tour: %w", err)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		next := make([]chromosome, 0, cfg.PopulationSize)
		for i := 0; i < cfg.EliteCount && i < len(pop); i++ {
			next = append(next, pop[i].clone())
		}
		for len(next) < cfg.PopulationSize {
			a := tournament(rng, pop, cfg.TournamentSize)
			b := tournament(rng, pop, cfg.TournamentSize)

			genes := repair(rng, orderCrossover(rng, a.genes, b.genes), pairs)
			if rng.Float64() < cfg.MutationRate {
				genes = repair(rng, mutate(rng, genes), pairs)
			}
			next = append(next, chromosome{genes: genes, cost: m.cost(genes)})
		}
		sortPopulation(next)
		pop = next
		stats.Generations = gen + 1

		if pop[0].cost < best.cost {
			best = pop[0].clone()
			stats.Improvements++
			stall = 0
		} else {
			stall++
		}
		if cfg.StallGenerations > 0 && stall >= cfg.StallGenerations {
			break
		}
	}

	stats.BestCost = best.cost
	metrics.OptimizerGenerations.Observe(float64(stats.Generations))
	logger.OrNop(o.Logger).Debug("tour search finished",
		zap.Int("demands", len(demands)),
		zap.Int("generations", stats.Generations),
		zap.Int("improvements", stats.Improvements),
		zap.Float64("best_cost", stats.BestCost),
		zap.Float64("baseline_cost", stats.BaselineCost),
		zap.Int64("seed", stats.Seed),
	)

	return decode(best.genes, demands), stats, nil
}

// config fills zero fields with defaults.
func (o *GeneticOptimizer) config() OptimizerConfig {
	cfg := o.Config
	def := DefaultOptimizerConfig()
	if cfg.PopulationSize < 2 {
		cfg.PopulationSize = def.PopulationSize
	}
	if cfg.Generations < 1 {
		cfg.Generations = def.Generations
	}
	if cfg.TournamentSize < 1 {
		cfg.TournamentSize = def.TournamentSize
	}
	cfg.TournamentSize = min(cfg.TournamentSize, cfg.PopulationSize)
	cfg.EliteCount = min(max(cfg.EliteCount, 0), cfg.PopulationSize-1)
	return cfg
}

// tournament returns the cheapest of k randomly drawn individuals.
func tournament(rng *rand.Rand, pop []chromosome, k int) chromosome {
	best := pop[rng.IntN(len(pop))]
	for i := 1; i < k; i++ {
		if c := pop[rng.IntN(len(pop))]; c.cost < best.cost {
			best = c
		}
	}
	return best
}

func sortPopulation(pop []chromosome) {
	slices.SortStableFunc(pop, func(a, b chromosome) int { return cmp.Compare(a.cost, b.cost) })
}
