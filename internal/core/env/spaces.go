package env

import (
	"encoding/json"
	"math"
	"math/rand"
	"slices"
)

// Box is a continuous space of float32 vectors with per-space bounds.
type Box struct {
	Low   float32
	High  float32
	Shape []int
}

func unboundedBox(dim int) Box {
	return Box{Low: float32(math.Inf(-1)), High: float32(math.Inf(1)), Shape: []int{dim}}
}

// Contains reports whether v has the box shape and lies within its bounds.
func (b Box) Contains(v []float32) bool {
	size := 1
	for _, d := range b.Shape {
		size *= d
	}
	if len(v) != size {
		return false
	}
	for _, x := range v {
		if x < b.Low || x > b.High || math.IsNaN(float64(x)) {
			return false
		}
	}
	return true
}

func bound(f float32) any {
	switch {
	case math.IsInf(float64(f), 1):
		return "inf"
	case math.IsInf(float64(f), -1):
		return "-inf"
	default:
		return f
	}
}

func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Low   any    `json:"low"`
		High  any    `json:"high"`
		Shape []int  `json:"shape"`
		Dtype string `json:"dtype"`
	}{"box", bound(b.Low), bound(b.High), b.Shape, "float32"})
}

// Discrete is the space {0, ..., N-1}.
type Discrete struct {
	N int `json:"n"`
}

func (d Discrete) Contains(a int) bool { return a >= 0 && a < d.N }

func (d Discrete) Sample(rng *rand.Rand) int { return rng.Intn(d.N) }

// MultiDiscrete is one Discrete space per agent. With a single agent it
// describes itself as a plain Discrete space.
type MultiDiscrete struct {
	Nvec []int
}

func (m MultiDiscrete) Contains(actions []int) bool {
	if len(actions) != len(m.Nvec) {
		return false
	}
	for i, a := range actions {
		if a < 0 || a >= m.Nvec[i] {
			return false
		}
	}
	return true
}

func (m MultiDiscrete) Sample(rng *rand.Rand) []int {
	out := make([]int, len(m.Nvec))
	for i, n := range m.Nvec {
		out[i] = rng.Intn(n)
	}
	return out
}

func (m MultiDiscrete) MarshalJSON() ([]byte, error) {
	if len(m.Nvec) == 1 {
		return json.Marshal(struct {
			Type string `json:"type"`
			N    int    `json:"n"`
		}{"discrete", m.Nvec[0]})
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		Nvec []int  `json:"nvec"`
	}{"multi_discrete", slices.Clone(m.Nvec)})
}
