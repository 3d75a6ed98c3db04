package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trader/config"
	"trader/env"
	"trader/policy"
	"trader/searcher"
	"trader/simdata"
	"trader/simulator"
	"trader/trajectory"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML run configuration")
	dump := flag.Bool("dump", false, "Print the search tree of one decision and exit")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load config")
		}
	}
	zerolog.SetGlobalLevel(cfg.Level())

	factories, err := buildFactories(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare environments")
	}
	model, err := policy.NewLinearModel(2, cfg.EpisodeLength*env.Features, nil, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build model")
	}
	evaluator := policy.NewModelPolicy(model)

	if *dump {
		if err := dumpTree(cfg, factories[0], evaluator); err != nil {
			log.Fatal().Err(err).Msg("failed to dump search tree")
		}
		return
	}

	writer, err := simdata.NewWriter(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare data directory")
	}
	generator := simulator.NewGenerator(cfg.Model, factories, evaluator,
		simulator.WithWorkers(cfg.Workers),
		simulator.WithTimeout(cfg.WorkerTimeout),
		simulator.WithSeed(cfg.Seed),
		simulator.WithWriter(writer),
		simulator.WithTrajectoryOptions(
			trajectory.WithRoundsPerStep(cfg.RoundsPerStep),
			trajectory.WithExploreRate(cfg.ExploreRate),
			trajectory.WithTemperature(cfg.Temperature),
			trajectory.WithCPuct(cfg.CPuct),
		),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info().Msgf("starting simulation of %d trajectories on %d instruments with %d workers...",
		cfg.SimCount, len(factories), cfg.Workers)
	paths, err := generator.Run(ctx, cfg.SimCount, cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("simulation stopped")
	}
	log.Info().Msgf("completed simulation, stored %d batches", len(paths))

	path, err := writer.WriteBatchMetrics(cfg.Model, generator.Metrics())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to store batch metrics")
	}
	log.Info().Msgf("stored batch metrics in %s", path)

	path, err = writer.WriteBatchChart(cfg.Model, generator.Metrics())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to render batch chart")
	}
	log.Info().Msgf("rendered batch chart in %s", path)
}

func buildFactories(cfg config.Config) ([]env.Factory, error) {
	options := []env.TradingOption{env.WithTradingCost(cfg.TradingCost), env.WithSeed(cfg.Seed)}

	var factories []env.Factory
	for _, in := range cfg.Instruments {
		f, err := os.Open(in.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", in.Name, err)
		}
		bars, err := env.LoadBars(in.Name, f, in.AdjustedClose)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", in.Name, err)
		}
		if bars.Len()-cfg.EpisodeLength <= 1 {
			log.Warn().Msgf("skipping %s: %d bars are too few for %d days", in.Name, bars.Len(), cfg.EpisodeLength)
			continue
		}
		factories = append(factories, env.NewTradingFactory(bars, cfg.EpisodeLength, options...))
	}

	if len(cfg.Instruments) == 0 {
		for i := 0; i < cfg.Synthetic.Instruments; i++ {
			name := fmt.Sprintf("SYN%d", i)
			bars, err := env.SyntheticBars(name, cfg.Synthetic.Bars, cfg.Synthetic.Seed+uint64(i))
			if err != nil {
				return nil, fmt.Errorf("generate %s: %w", name, err)
			}
			factories = append(factories, env.NewTradingFactory(bars, cfg.EpisodeLength, options...))
		}
		log.Info().Msgf("no instruments configured, using %d synthetic series", len(factories))
	}

	if len(factories) == 0 {
		return nil, env.ErrDataTooShort
	}
	return factories, nil
}

// dumpTree searches one decision point and prints the resulting tree.
func dumpTree(cfg config.Config, factory env.Factory, evaluator policy.Evaluator) error {
	live, err := factory()
	if err != nil {
		return err
	}
	if _, err := live.Reset(); err != nil {
		return err
	}
	scratch, err := factory()
	if err != nil {
		return err
	}
	m := searcher.NewMCTS(scratch, searcher.WithCPuct(cfg.CPuct), searcher.WithSeed(cfg.Seed))
	root, err := m.RunBatch(evaluator, cfg.RoundsPerStep, live.Snapshot())
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d episodes, q-table %v\n", live.Name(), m.Episodes(), root.QTable(cfg.Temperature))
	return root.Dump(os.Stdout, 3)
}
