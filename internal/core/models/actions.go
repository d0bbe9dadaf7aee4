package models

import (
	"fmt"
	"strings"
)

// Action is an index into the default football action set.
type Action int

const (
	ActionIdle Action = iota
	ActionLeft
	ActionTopLeft
	ActionTop
	ActionTopRight
	ActionRight
	ActionBottomRight
	ActionBottom
	ActionBottomLeft
	ActionLongPass
	ActionHighPass
	ActionShortPass
	ActionShot
	ActionSprint
	ActionReleaseDirection
	ActionReleaseSprint
	ActionSliding
	ActionDribble
	ActionReleaseDribble
)

// ActionCount is the size of the default action set.
const ActionCount = 19

var actionNames = [ActionCount]string{
	"idle", "left", "top_left", "top", "top_right", "right", "bottom_right", "bottom", "bottom_left",
	"long_pass", "high_pass", "short_pass", "shot", "sprint", "release_direction", "release_sprint",
	"sliding", "dribble", "release_dribble",
}

func (a Action) Valid() bool { return a >= 0 && int(a) < ActionCount }

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// ParseAction resolves an action by its name.
func ParseAction(name string) (Action, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range actionNames {
		if n == name {
			return Action(i), nil
		}
	}
	return ActionIdle, fmt.Errorf("unknown action %q", name)
}

// Direction returns the unit movement vector of a directional action.
func (a Action) Direction() (Vec2, bool) {
	const d = 0.70710678118654752440
	switch a {
	case ActionLeft:
		return Vec2{-1, 0}, true
	case ActionTopLeft:
		return Vec2{-d, -d}, true
	case ActionTop:
		return Vec2{0, -1}, true
	case ActionTopRight:
		return Vec2{d, -d}, true
	case ActionRight:
		return Vec2{1, 0}, true
	case ActionBottomRight:
		return Vec2{d, d}, true
	case ActionBottom:
		return Vec2{0, 1}, true
	case ActionBottomLeft:
		return Vec2{-d, d}, true
	default:
		return Vec2{}, false
	}
}

// StickyAction indexes the persistent action flags carried by a controlled player.
type StickyAction int

const (
	StickyLeft StickyAction = iota
	StickyTopLeft
	StickyTop
	StickyTopRight
	StickyRight
	StickyBottomRight
	StickyBottom
	StickyBottomLeft
	StickySprint
	StickyDribble
)

// StickyActionCount is the number of sticky flags.
const StickyActionCount = 10

// StickyActions holds the sticky flags in StickyAction order.
type StickyActions [StickyActionCount]bool

func (s StickyActions) Sprinting() bool { return s[StickySprint] }
func (s StickyActions) Dribbling() bool { return s[StickyDribble] }

// Direction returns the active movement direction, if any.
func (s StickyActions) Direction() (Vec2, bool) {
	for i := StickyLeft; i <= StickyBottomLeft; i++ {
		if s[i] {
			return Action(int(i) + int(ActionLeft)).Direction()
		}
	}
	return Vec2{}, false
}

// Apply updates the flags for an action taken this step.
func (s *StickyActions) Apply(a Action) {
	switch {
	case a >= ActionLeft && a <= ActionBottomLeft:
		for i := StickyLeft; i <= StickyBottomLeft; i++ {
			s[i] = false
		}
		s[int(a)-int(ActionLeft)] = true
	case a == ActionReleaseDirection:
		for i := StickyLeft; i <= StickyBottomLeft; i++ {
			s[i] = false
		}
	case a == ActionSprint:
		s[StickySprint] = true
	case a == ActionReleaseSprint:
		s[StickySprint] = false
	case a == ActionDribble:
		s[StickyDribble] = true
	case a == ActionReleaseDribble:
		s[StickyDribble] = false
	}
}

// StickyAction maps a sticky flag to the action that sets it.
func (i StickyAction) Action() Action {
	switch i {
	case StickySprint:
		return ActionSprint
	case StickyDribble:
		return ActionDribble
	default:
		return Action(int(i) + int(ActionLeft))
	}
}
