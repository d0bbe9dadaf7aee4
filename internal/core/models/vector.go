package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Vec2 is a point or direction on the pitch plane.
// The pitch spans x in [-1, 1] and y in [-0.42, 0.42] with the origin at the centre spot.
type Vec2 struct{ X, Y float64 }

// Vec3 adds height to Vec2; only the ball uses it.
type Vec3 struct{ X, Y, Z float64 }

func (v Vec2) Add(o Vec2) Vec2           { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2           { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(k float64) Vec2      { return Vec2{v.X * k, v.Y * k} }
func (v Vec2) Neg() Vec2                 { return Vec2{-v.X, -v.Y} }
func (v Vec2) Len() float64              { return math.Hypot(v.X, v.Y) }
func (v Vec2) Distance(o Vec2) float64   { return math.Hypot(o.X-v.X, o.Y-v.Y) }
func (v Vec3) XY() Vec2                  { return Vec2{v.X, v.Y} }
func (v Vec3) Add(o Vec3) Vec3           { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Scale(k float64) Vec3      { return Vec3{v.X * k, v.Y * k, v.Z * k} }
func (v Vec3) DistanceXY(o Vec2) float64 { return math.Hypot(o.X-v.X, o.Y-v.Y) }

// Normalized returns the unit vector of v, or the zero vector when v has no length.
func (v Vec2) Normalized() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Vectors travel as plain JSON arrays so engines written against numpy payloads can talk to us.

func (v Vec2) MarshalJSON() ([]byte, error) { return json.Marshal([2]float64{v.X, v.Y}) }

func (v *Vec2) UnmarshalJSON(data []byte) error {
	var a []float64
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a) != 2 {
		return fmt.Errorf("vec2: expected 2 components, got %d", len(a))
	}
	v.X, v.Y = a[0], a[1]
	return nil
}

func (v Vec3) MarshalJSON() ([]byte, error) { return json.Marshal([3]float64{v.X, v.Y, v.Z}) }

func (v *Vec3) UnmarshalJSON(data []byte) error {
	var a []float64
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a) != 3 {
		return fmt.Errorf("vec3: expected 3 components, got %d", len(a))
	}
	v.X, v.Y, v.Z = a[0], a[1], a[2]
	return nil
}
