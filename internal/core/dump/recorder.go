// Package dump records episode traces into SQLite.
//
// A Recorder listens to the episode events of the bus. It keeps the frames of
// every running episode in memory and writes them out when a goal is scored
// (the frames leading up to it) or when an episode ends (the whole episode,
// every DumpFrequency episodes).
package dump

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeusync/football/internal/core/events"
	"github.com/zeusync/football/internal/core/events/bus"
	"github.com/zeusync/football/internal/core/observability/log"
)

// GoalFrames is the number of frames kept before a goal.
const GoalFrames = 200

var ErrInvalidConfig = errors.New("invalid dump configuration")

type Config struct {
	GoalDumps        bool `json:"write_goal_dumps" yaml:"write_goal_dumps" mapstructure:"write_goal_dumps"`
	FullEpisodeDumps bool `json:"write_full_episode_dumps" yaml:"write_full_episode_dumps" mapstructure:"write_full_episode_dumps"`

	// Every DumpFrequency-th episode is written when full dumps are on.
	DumpFrequency int `json:"dump_frequency" yaml:"dump_frequency" mapstructure:"dump_frequency"`

	// Directory of the SQLite file; empty keeps dumps in memory.
	LogDir string `json:"logdir" yaml:"logdir" mapstructure:"logdir"`

	// Time allowed for one write.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
}

func DefaultConfig() Config {
	return Config{DumpFrequency: 1, WriteTimeout: 5 * time.Second}
}

func (c Config) Enabled() bool { return c.GoalDumps || c.FullEpisodeDumps }

func (c Config) Validate() error {
	if c.FullEpisodeDumps && c.DumpFrequency < 1 {
		return fmt.Errorf("%w: dump_frequency must be at least 1, got %d", ErrInvalidConfig, c.DumpFrequency)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("%w: negative write_timeout", ErrInvalidConfig)
	}
	return nil
}

type episode struct {
	number   int
	scenario string
	seed     int64
	frames   []Frame
}

// Recorder turns episode events into stored traces. It is safe to attach to
// a bus shared by concurrently stepping environments.
type Recorder struct {
	cfg    Config
	store  *Store
	logger log.Log

	mu       sync.Mutex
	running  map[string]*episode
	subs     []bus.Subscription
	attached bool
}

func NewRecorder(cfg Config, store *Store, logger log.Log) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Recorder{
		cfg:     cfg,
		store:   store,
		logger:  logger.With(log.String("component", "dump")),
		running: make(map[string]*episode),
	}, nil
}

// Attach subscribes the recorder to the episode events of b.
func (r *Recorder) Attach(b bus.EventBus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attached {
		return nil
	}
	handlers := map[string]bus.EventHandler{
		events.EpisodeReset: r.onReset,
		events.EpisodeStep:  r.onStep,
		events.EpisodeGoal:  r.onGoal,
		events.EpisodeEnd:   r.onEnd,
	}
	for _, typ := range []string{events.EpisodeReset, events.EpisodeStep, events.EpisodeGoal, events.EpisodeEnd} {
		sub, err := b.Subscribe(typ, handlers[typ])
		if err != nil {
			r.cancelLocked()
			return err
		}
		r.subs = append(r.subs, sub)
	}
	r.attached = true
	return nil
}

// Detach cancels the subscriptions and drops buffered episodes.
func (r *Recorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
	r.running = make(map[string]*episode)
}

func (r *Recorder) cancelLocked() {
	for _, s := range r.subs {
		_ = s.Cancel()
	}
	r.subs = nil
	r.attached = false
}

func (r *Recorder) onReset(ev bus.Event) error {
	data, ok := ev.Data().(events.Reset)
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running[data.Instance] = &episode{number: data.Episode, scenario: data.Scenario, seed: data.Seed}
	return nil
}

func (r *Recorder) onStep(ev bus.Event) error {
	data, ok := ev.Data().(events.Step)
	if !ok {
		return nil
	}
	frame, err := newFrame(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ep := r.running[data.Instance]
	if ep == nil || ep.number != data.Episode {
		return nil
	}
	ep.frames = append(ep.frames, frame)
	// without full dumps only the goal window is ever needed
	if !r.cfg.FullEpisodeDumps && len(ep.frames) > GoalFrames {
		ep.frames = append(ep.frames[:0], ep.frames[len(ep.frames)-GoalFrames:]...)
	}
	return nil
}

func (r *Recorder) onGoal(ev bus.Event) error {
	data, ok := ev.Data().(events.Goal)
	if !ok || !r.cfg.GoalDumps {
		return nil
	}
	r.mu.Lock()
	ep := r.running[data.Instance]
	if ep == nil || ep.number != data.Episode {
		r.mu.Unlock()
		return nil
	}
	frames := ep.frames[max(0, len(ep.frames)-GoalFrames):]
	t := ep.trace(data.Instance, KindGoal, data.Score, frames)
	r.mu.Unlock()

	return r.save(t)
}

func (r *Recorder) onEnd(ev bus.Event) error {
	data, ok := ev.Data().(events.End)
	if !ok {
		return nil
	}
	r.mu.Lock()
	ep := r.running[data.Instance]
	delete(r.running, data.Instance)
	r.mu.Unlock()

	if ep == nil || ep.number != data.Episode || !r.cfg.FullEpisodeDumps || data.Episode%r.cfg.DumpFrequency != 0 {
		return nil
	}
	return r.save(ep.trace(data.Instance, KindEpisode, data.Score, ep.frames))
}

func (r *Recorder) save(t *Trace) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()
	if err := r.store.Save(ctx, t); err != nil {
		r.logger.Error("Failed to write dump",
			log.String("instance", t.Instance),
			log.Int("episode", t.Episode),
			log.String("kind", t.Kind),
			log.Error(err),
		)
		return fmt.Errorf("write %s dump: %w", t.Kind, err)
	}
	r.logger.Debug("Dump written",
		log.String("instance", t.Instance),
		log.Int("episode", t.Episode),
		log.String("kind", t.Kind),
		log.Int("frames", len(t.Frames)),
	)
	return nil
}

// trace copies frames so gorm can assign ids without touching the buffer.
func (ep *episode) trace(instance, kind string, score [2]int, frames []Frame) *Trace {
	scoreJSON, _ := json.Marshal(score)
	return &Trace{
		Instance: instance,
		Episode:  ep.number,
		Kind:     kind,
		Scenario: ep.scenario,
		Seed:     ep.seed,
		Score:    scoreJSON,
		Frames:   append([]Frame(nil), frames...),
	}
}

func newFrame(s events.Step) (Frame, error) {
	actions, err := json.Marshal(s.Actions)
	if err != nil {
		return Frame{}, err
	}
	rewards, err := json.Marshal(s.Rewards)
	if err != nil {
		return Frame{}, err
	}
	obs, err := json.Marshal(s.Observation)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Step: s.Step, Actions: actions, Rewards: rewards, Observation: obs}, nil
}
