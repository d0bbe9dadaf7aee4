package scenario

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/football/internal/core/models"
)

//go:embed scenarios.yaml
var builtin []byte

var (
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrInvalidScenario = errors.New("invalid scenario")
)

// DefaultGameDuration is the episode length in steps when a scenario leaves it unset.
const DefaultGameDuration = 400

var roles = map[string]models.PlayerRole{
	"GK": models.RoleGoalkeeper,
	"CB": models.RoleCentreBack,
	"LB": models.RoleLeftBack,
	"RB": models.RoleRightBack,
	"DM": models.RoleDefenceMidfield,
	"CM": models.RoleCentralMidfield,
	"LM": models.RoleLeftMidfield,
	"RM": models.RoleRightMidfield,
	"AM": models.RoleAttackMidfield,
	"CF": models.RoleCentralFront,
}

// Player is the starting setup of one player.
type Player struct {
	Position [2]float64 `yaml:"position"`
	Role     string     `yaml:"role"`
}

// Scenario describes the starting state and episode rules of a match setup.
// Right team positions are in the right team's own frame.
type Scenario struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Ball        [2]float64 `yaml:"ball"`
	Left        []Player   `yaml:"left"`
	Right       []Player   `yaml:"right"`

	GameDuration                 int  `yaml:"game_duration"`
	EndEpisodeOnScore            bool `yaml:"end_episode_on_score"`
	EndEpisodeOnOutOfPlay        bool `yaml:"end_episode_on_out_of_play"`
	EndEpisodeOnPossessionChange bool `yaml:"end_episode_on_possession_change"`
}

type file struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Validate checks the scenario for structural errors and fills defaults.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScenario)
	}
	if len(s.Left) == 0 {
		return fmt.Errorf("%w: %s: left team needs at least one player", ErrInvalidScenario, s.Name)
	}
	for side, team := range map[string][]Player{"left": s.Left, "right": s.Right} {
		for i, p := range team {
			if _, ok := roles[strings.ToUpper(p.Role)]; !ok {
				return fmt.Errorf("%w: %s: %s player %d has unknown role %q", ErrInvalidScenario, s.Name, side, i, p.Role)
			}
		}
	}
	if s.GameDuration < 0 {
		return fmt.Errorf("%w: %s: negative game duration", ErrInvalidScenario, s.Name)
	}
	if s.GameDuration == 0 {
		s.GameDuration = DefaultGameDuration
	}
	return nil
}

// Roles returns the parsed roles of a team, in player order.
func Roles(team []Player) []models.PlayerRole {
	out := make([]models.PlayerRole, len(team))
	for i, p := range team {
		out[i] = roles[strings.ToUpper(p.Role)]
	}
	return out
}

// Controllable returns the indices agents may drive on the given side, field
// players first. Goalkeepers are only handed out when nobody else is left.
func (s *Scenario) Controllable(side models.Side) []int {
	team := s.Left
	if side == models.SideRight {
		team = s.Right
	}
	var field, keepers []int
	for i, role := range Roles(team) {
		if role == models.RoleGoalkeeper {
			keepers = append(keepers, i)
		} else {
			field = append(field, i)
		}
	}
	return append(field, keepers...)
}

// LoadYAML parses a scenario file and validates every entry.
func LoadYAML(r io.Reader) ([]Scenario, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode scenarios: %w", err)
	}
	for i := range f.Scenarios {
		if err := f.Scenarios[i].Validate(); err != nil {
			return nil, err
		}
	}
	return f.Scenarios, nil
}

var (
	registryMu   sync.RWMutex
	registry     map[string]Scenario
	registryOnce sync.Once
)

func loadBuiltin() {
	registry = make(map[string]Scenario)
	list, err := LoadYAML(bytes.NewReader(builtin))
	if err != nil {
		panic(fmt.Sprintf("scenario: embedded scenarios are broken: %v", err))
	}
	for _, s := range list {
		registry[s.Name] = s
	}
}

// Register adds or replaces a scenario in the registry.
func Register(s Scenario) error {
	if err := s.Validate(); err != nil {
		return err
	}
	registryOnce.Do(loadBuiltin)
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name] = s
	return nil
}

// Lookup returns a copy of the named scenario.
func Lookup(name string) (Scenario, error) {
	registryOnce.Do(loadBuiltin)
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	s.Left = append([]Player(nil), s.Left...)
	s.Right = append([]Player(nil), s.Right...)
	return s, nil
}

// Names lists the registered scenarios in sorted order.
func Names() []string {
	registryOnce.Do(loadBuiltin)
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
