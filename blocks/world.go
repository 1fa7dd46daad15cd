// Package blocks is a small in-memory block world and the scanner module
// methods that read it.
package blocks

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/mgomes/capdispatch/dispatch"
)

// Air is the block reported for positions nothing was placed at.
const Air = "minecraft:air"

// ErrWorldUnloaded is returned when resolving a location in a world that
// has been unloaded.
var ErrWorldUnloaded = errors.New("world is not loaded")

type Pos struct {
	X, Y, Z int64
}

func (p Pos) Add(o Pos) Pos {
	return Pos{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

// Block is a block state: a registry name plus optional properties.
type Block struct {
	Name  string
	State map[string]string
}

// World stores placed blocks. It is safe for concurrent use, though the
// scanner methods only read it from the tick loop.
type World struct {
	name string

	mu     sync.RWMutex
	blocks map[Pos]Block
	loaded bool
}

func NewWorld(name string) *World {
	return &World{name: name, blocks: make(map[Pos]Block), loaded: true}
}

func (w *World) Name() string { return w.name }

// Set places b at pos. Placing air clears the position.
func (w *World) Set(pos Pos, b Block) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b.Name == "" || b.Name == Air {
		delete(w.blocks, pos)
		return
	}
	b.State = maps.Clone(b.State)
	w.blocks[pos] = b
}

// At returns the block at pos.
func (w *World) At(pos Pos) Block {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, ok := w.blocks[pos]
	if !ok {
		return Block{Name: Air}
	}
	b.State = maps.Clone(b.State)
	return b
}

// Unload makes every location in w stale.
func (w *World) Unload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loaded = false
}

func (w *World) Loaded() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loaded
}

// Location is a position in a world. Methods needing to know where they
// run require it as context.
type Location struct {
	World *World
	Pos   Pos
}

func (l *Location) String() string {
	return fmt.Sprintf("%s%s", l.World.Name(), l.Pos)
}

// Ref returns a lazy reference to l that fails once the world unloads.
func (l *Location) Ref() dispatch.Reference {
	return dispatch.ReferenceFunc(func() (any, error) {
		if !l.World.Loaded() {
			return nil, fmt.Errorf("%w: %s", ErrWorldUnloaded, l.World.Name())
		}
		return l, nil
	})
}
