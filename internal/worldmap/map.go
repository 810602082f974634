// Package worldmap instantiates a tileset against a tile grid to produce
// an absolute-coordinate collision grid, player spawn points, and loot-box
// spawn descriptors.
package worldmap

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"boxborne/internal/tileset"
)

// Point is a plain coordinate pair with no identity.
type Point = tileset.Point

// Collision is an axis-aligned rectangle in world coordinates, expanded
// from a tileset.Collision template. Immutable after map load.
type Collision struct {
	CenterX, CenterY float64
	HalfWidth        float64
	HalfHeight       float64
	Friction         float64
	Vertices         [4]Point
}

// Center satisfies entity.Collidable.
func (c Collision) Center() (float64, float64) { return c.CenterX, c.CenterY }

// HalfExtents satisfies entity.Collidable.
func (c Collision) HalfExtents() (float64, float64) { return c.HalfWidth, c.HalfHeight }

// VerticesCW satisfies entity.Collidable.
func (c Collision) VerticesCW() [4]Point { return c.Vertices }

// LootSpawn pairs a world-space point with the loot-box variant it spawns.
type LootSpawn struct {
	Point   Point
	Variant tileset.LootboxVariant
}

// Map is an instantiated, immutable tile map: an absolute-coordinate
// collision grid plus player and loot spawn tables.
//
// Grid coordinates: Grid[y][x] holds the collisions in that cell, with
// y flipped so index 0 is the bottom row.
type Map struct {
	ID      string
	Name    string
	Pool    string
	Width   int
	Height  int
	Grid    [][][]Collision // [y][x] -> collisions
	Spawns  []Point
	Loot    []LootSpawn
}

// --- Authoring format (input) ---

// Layer is one authored map layer: a flat, row-major tile-id array.
type Layer struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []int  `json:"data"`
}

// Data is the full authored map file.
type Data struct {
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Layers     []Layer           `json:"layers"`
	Properties []tileset.Property `json:"properties"`
}

const (
	spawnsLayerName = "spawns"
	defaultPoolName = "default-pool"
	allPoolName     = "all"
)

// Load instantiates ts against data, producing an absolute-coordinate
// collision grid. The layer named "spawns" (case-insensitive) is spawn
// tags only; every other layer is a collision layer. Layers whose name
// starts with "A" (case-insensitive) are rendered above entities on the
// client and are otherwise treated as ordinary collision layers here.
func Load(id string, data Data, ts *tileset.Tileset) (*Map, error) {
	m := &Map{
		ID:     id,
		Name:   id,
		Pool:   defaultPoolName,
		Width:  data.Width,
		Height: data.Height,
	}

	for _, p := range data.Properties {
		switch p.Name {
		case "pool":
			if v, ok := p.AsString(); ok && v != "" {
				m.Pool = v
			}
		case "name":
			if v, ok := p.AsString(); ok && v != "" {
				m.Name = v
			}
		}
	}

	m.Grid = make([][][]Collision, data.Height)
	for y := range m.Grid {
		m.Grid[y] = make([][]Collision, data.Width)
	}

	for _, layer := range data.Layers {
		if layer.Width*layer.Height != len(layer.Data) {
			return nil, fmt.Errorf("worldmap %s: layer %q tile count %d does not match %dx%d", id, layer.Name, len(layer.Data), layer.Width, layer.Height)
		}

		isSpawnLayer := strings.EqualFold(layer.Name, spawnsLayerName)

		for i, rawID := range layer.Data {
			if rawID == 0 {
				continue
			}
			tileID := rawID - 1

			row := i / layer.Width
			col := i % layer.Width
			// Flip y so grid index 0 is the bottom row.
			gy := data.Height - 1 - row
			gx := col

			tile, ok := ts.Tiles[tileID]
			if !ok {
				continue
			}

			worldCenterX := float64(gx) + 0.5
			worldCenterY := float64(gy) + 0.5

			if isSpawnLayer {
				if tile.IsPlayerSpawn {
					m.Spawns = append(m.Spawns, Point{X: worldCenterX, Y: worldCenterY})
				}
				if tile.LootboxVariant != "" {
					m.Loot = append(m.Loot, LootSpawn{Point: Point{X: worldCenterX, Y: worldCenterY}, Variant: tile.LootboxVariant})
				}
				continue
			}

			for _, tmpl := range tile.Collisions {
				abs := Collision{
					CenterX:    worldCenterX + tmpl.CenterX,
					CenterY:    worldCenterY + tmpl.CenterY,
					HalfWidth:  tmpl.HalfWidth,
					HalfHeight: tmpl.HalfHeight,
					Friction:   tmpl.Friction,
				}
				for v := range tmpl.Vertices {
					abs.Vertices[v] = Point{
						X: worldCenterX + tmpl.Vertices[v].X,
						Y: worldCenterY + tmpl.Vertices[v].Y,
					}
				}
				if gy < 0 || gy >= data.Height || gx < 0 || gx >= data.Width {
					continue
				}
				m.Grid[gy][gx] = append(m.Grid[gy][gx], abs)
			}
		}
	}

	return m, nil
}

// --- Registry ---

// Registry tracks loaded maps by id and by pool, and holds the "current
// map" slot. The hub owns one Registry loaded once at startup; each room
// works against its own RoomView so each worker exclusively owns its
// mutable current-map slot, while the underlying catalog of loaded maps is
// shared and read-only after load.
type Registry struct {
	mu        sync.RWMutex
	byID      map[string]*Map
	byPool    map[string][]*Map
	current   *Map
	listeners []func(*Map)
}

// NewRegistry creates an empty map registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Map),
		byPool: make(map[string][]*Map),
	}
}

// RoomView returns a Registry that shares this one's loaded-map catalog
// (byID/byPool, immutable after load) but has its own independent
// current-map slot and listener set. Call once per room at room creation.
func (r *Registry) RoomView() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Registry{
		byID:   r.byID,
		byPool: r.byPool,
	}
}

// Register adds m under its own id, its pool, and the implicit "all" pool.
func (r *Registry) Register(m *Map) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[m.ID] = m
	r.byPool[m.Pool] = append(r.byPool[m.Pool], m)
	r.byPool[allPoolName] = append(r.byPool[allPoolName], m)
}

// Get returns a registered map by id.
func (r *Registry) Get(id string) (*Map, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	return m, ok
}

// RandomInPool returns a uniformly random map from the named pool.
func (r *Registry) RandomInPool(pool string) (*Map, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	maps := r.byPool[pool]
	if len(maps) == 0 {
		return nil, false
	}
	return maps[rand.Intn(len(maps))], true
}

// RandomPool returns the name of a uniformly random non-empty pool.
func (r *Registry) RandomPool() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pools := make([]string, 0, len(r.byPool))
	for name := range r.byPool {
		pools = append(pools, name)
	}
	if len(pools) == 0 {
		return "", false
	}
	return pools[rand.Intn(len(pools))], true
}

// Current returns the room's current map slot.
func (r *Registry) Current() *Map {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// SetCurrent changes the current-map slot and fires registered listeners
// (used by entity subsystems to rebuild chunk indices).
func (r *Registry) SetCurrent(m *Map) {
	r.mu.Lock()
	r.current = m
	listeners := append([]func(*Map){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(m)
	}
}

// OnMapChange registers a listener invoked whenever SetCurrent runs.
func (r *Registry) OnMapChange(fn func(*Map)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}
