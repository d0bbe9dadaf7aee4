package observation

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/zeusync/football/internal/core/models"
)

// Representation turns a raw snapshot into a flat feature vector for one player.
type Representation interface {
	Name() string
	// Dim returns the vector length for the given team sizes.
	Dim(n1, n2 int) int
	Encode(obs *models.Observation, view models.PlayerView) ([]float32, error)
}

type funcRepresentation struct {
	name   string
	dim    func(n1, n2 int) int
	encode func(*models.Observation, models.PlayerView) ([]float32, error)
}

func (r funcRepresentation) Name() string      { return r.name }
func (r funcRepresentation) Dim(n1, n2 int) int { return r.dim(n1, n2) }
func (r funcRepresentation) Encode(obs *models.Observation, view models.PlayerView) ([]float32, error) {
	return r.encode(obs, view)
}

var representations = map[string]Representation{
	SimpleV1: funcRepresentation{
		name:   SimpleV1,
		dim:    SimpleV1Dim,
		encode: EncodeSimpleV1,
	},
	Simple115V2: funcRepresentation{
		name:   Simple115V2,
		dim:    func(int, int) int { return simple115Dim },
		encode: EncodeSimple115V2,
	},
}

// Lookup returns the representation registered under name.
func Lookup(name string) (Representation, error) {
	r, ok := representations[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRepresentation, name)
	}
	return r, nil
}

// Names lists the registered representations in sorted order.
func Names() []string {
	names := make([]string, 0, len(representations))
	for name := range representations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type teamSizes struct{ left, right int }

// Encoder binds a representation to one scenario instance. The team sizes seen
// by the first successful Encode are locked in; a later snapshot with other
// sizes is rejected, so the vector length stays fixed for the whole scenario.
// An Encoder is safe for concurrent use.
type Encoder struct {
	repr Representation
	dims atomic.Pointer[teamSizes]
}

// NewEncoder creates an Encoder for the given representation.
func NewEncoder(repr Representation) *Encoder {
	return &Encoder{repr: repr}
}

// Representation returns the wrapped representation.
func (e *Encoder) Representation() Representation { return e.repr }

// Dims reports the locked team sizes, if any call has succeeded yet.
func (e *Encoder) Dims() (n1, n2 int, ok bool) {
	d := e.dims.Load()
	if d == nil {
		return 0, 0, false
	}
	return d.left, d.right, true
}

// Dim returns the locked vector length, or 0 before the first call.
func (e *Encoder) Dim() int {
	n1, n2, ok := e.Dims()
	if !ok {
		return 0
	}
	return e.repr.Dim(n1, n2)
}

// Encode checks the snapshot against the locked team sizes and encodes it.
func (e *Encoder) Encode(obs *models.Observation, view models.PlayerView) ([]float32, error) {
	if obs == nil {
		return nil, stateError("nil observation", 0, 0, view.Active)
	}
	seen := teamSizes{left: obs.Left.Size(), right: obs.Right.Size()}
	if err := e.check(seen, view); err != nil {
		return nil, err
	}

	out, err := e.repr.Encode(obs, view)
	if err != nil {
		return nil, err
	}

	if e.dims.Load() == nil && !e.dims.CompareAndSwap(nil, &seen) {
		// Another goroutine locked first; its sizes win.
		if err = e.check(seen, view); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *Encoder) check(seen teamSizes, view models.PlayerView) error {
	locked := e.dims.Load()
	if locked == nil || *locked == seen {
		return nil
	}
	return stateError(
		fmt.Sprintf("team sizes changed within scenario, expected left=%d right=%d", locked.left, locked.right),
		seen.left, seen.right, view.Active,
	)
}
