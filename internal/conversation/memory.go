// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package conversation

import "github.com/pdiddy/research-assistant/pkg/types"

// DefaultMemoryWindow bounds the turns kept for the model.
const DefaultMemoryWindow = 40

// Memory is the bounded, append-only turn sequence of one session. When
// it grows past the window the oldest unpinned turns are dropped.
type Memory struct {
	window int
	turns  []types.Turn
}

// NewMemory returns an empty memory holding at most window turns.
func NewMemory(window int) *Memory {
	if window <= 0 {
		window = DefaultMemoryWindow
	}
	return &Memory{window: window}
}

// Append adds t and truncates.
func (m *Memory) Append(t types.Turn) {
	m.turns = append(m.turns, t)
	m.truncate()
}

func (m *Memory) truncate() {
	for len(m.turns) > m.window {
		drop := -1
		for i, t := range m.turns {
			if !t.Pinned {
				drop = i
				break
			}
		}
		if drop < 0 {
			return
		}
		m.turns = append(m.turns[:drop], m.turns[drop+1:]...)
	}
}

// Turns returns a copy of the retained turns.
func (m *Memory) Turns() []types.Turn {
	return append([]types.Turn(nil), m.turns...)
}

// Len returns the number of retained turns.
func (m *Memory) Len() int { return len(m.turns) }
