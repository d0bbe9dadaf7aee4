// Command rollout plays episodes on a batch of environments and prints one
// line per finished episode. Agents act at random unless -action names a
// fixed action. With -dumps the episodes are also written to a dump database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/zeusync/football/internal/core/dump"
	"github.com/zeusync/football/internal/core/env"
	"github.com/zeusync/football/internal/core/env/vector"
	"github.com/zeusync/football/internal/core/events/bus"
	"github.com/zeusync/football/internal/core/models"
	"github.com/zeusync/football/internal/core/observability/log"
	"github.com/zeusync/football/internal/core/observation"
	"github.com/zeusync/football/internal/core/scenario"
)

func main() {
	defaults := env.DefaultConfig()
	var (
		cfg     env.Config
		opts    options
		verbose bool
	)
	flag.StringVar(&cfg.Scenario, "scenario", defaults.Scenario, "scenario name ("+strings.Join(scenario.Names(), ", ")+")")
	flag.StringVar(&cfg.Representation, "representation", defaults.Representation, "observation representation ("+strings.Join(observation.Names(), ", ")+")")
	flag.StringVar(&cfg.Rewards, "rewards", defaults.Rewards, "comma separated reward list")
	flag.IntVar(&cfg.LeftAgents, "left", defaults.LeftAgents, "controlled left players")
	flag.IntVar(&cfg.RightAgents, "right", defaults.RightAgents, "controlled right players")
	flag.StringVar(&cfg.EngineAddr, "engine", "", "remote engine address; empty uses the built-in engine")
	flag.IntVar(&opts.episodes, "episodes", 10, "episodes to play in total")
	flag.IntVar(&opts.envs, "envs", 4, "environments in the batch")
	flag.IntVar(&opts.concurrency, "concurrency", 0, "environments stepped at once; 0 steps all of them")
	flag.Int64Var(&opts.seed, "seed", 0, "seed of the first environment; environment i uses seed+i")
	flag.StringVar(&opts.dumpDir, "dumps", "", "directory for goal and episode dumps")
	flag.StringVar(&opts.action, "action", "", "play this action (e.g. shot, right) for every agent instead of random ones")
	flag.BoolVar(&verbose, "v", false, "debug logging")
	flag.Parse()

	level := log.LevelWarn
	if verbose {
		level = log.LevelDebug
	}
	logger := log.New(level)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("Rollout failed", log.Error(err))
		os.Exit(1)
	}
}

type options struct {
	episodes    int
	envs        int
	concurrency int
	seed        int64
	dumpDir     string
	action      string
}

// policy picks the joint actions of every environment for one step.
type policy func(v *vector.Env) [][]int

func newPolicy(name string) (policy, error) {
	if name == "" {
		return (*vector.Env).SampleActions, nil
	}
	a, err := models.ParseAction(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", env.ErrBadAction, err)
	}
	return func(v *vector.Env) [][]int {
		out := make([][]int, v.Len())
		for i := range out {
			out[i] = make([]int, v.At(i).NumAgents())
			for j := range out[i] {
				out[i][j] = int(a)
			}
		}
		return out
	}, nil
}

func run(ctx context.Context, cfg env.Config, o options, logger log.Log) error {
	act, err := newPolicy(o.action)
	if err != nil {
		return err
	}

	envOpts := []env.Option{env.WithLogger(logger)}
	if o.dumpDir != "" {
		b := bus.New()
		store, err := dump.Open(o.dumpDir)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		dc := dump.DefaultConfig()
		dc.GoalDumps, dc.FullEpisodeDumps, dc.LogDir = true, true, o.dumpDir
		rec, err := dump.NewRecorder(dc, store, logger)
		if err != nil {
			return err
		}
		if err = rec.Attach(b); err != nil {
			return err
		}
		defer rec.Detach()
		envOpts = append(envOpts, env.WithBus(b))
	}

	v, err := vector.Make(ctx, cfg, o.envs,
		vector.WithEnvOptions(envOpts...),
		vector.WithConcurrency(o.concurrency),
	)
	if err != nil {
		return err
	}
	defer func() { _ = v.Close() }()

	if _, _, err = v.Reset(ctx, &o.seed); err != nil {
		return err
	}

	returns := make([][]float64, v.Len())
	for finished := 0; finished < o.episodes; {
		res, err := v.Step(ctx, act(v))
		if err != nil {
			return err
		}
		for i, r := range res.Results {
			if returns[i] == nil {
				returns[i] = make([]float64, len(r.Rewards))
			}
			for a, rew := range r.Rewards {
				returns[i][a] += rew
			}
			if !r.Done() || finished >= o.episodes {
				continue
			}
			finished++
			outcome := "terminated"
			if r.Truncated {
				outcome = "truncated"
			}
			fmt.Printf("env=%d episode=%d steps=%d score=%d:%d outcome=%s return=%v fingerprint=%016x\n",
				i, r.Info.Episode, r.Info.Step, r.Info.Score[0], r.Info.Score[1], outcome,
				returns[i], observation.FingerprintAll(res.Final[i]))
			returns[i] = nil
		}
	}
	return nil
}
