package state

// Vec2 represents a 2D point shared across world and bot state.
type Vec2 struct {
	X float64
	Y float64
}
