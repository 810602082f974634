// Package tileset compiles authored tile-collision data into reusable
// per-tile collision templates and spawn classifiers.
//
// The authoring format mirrors a Tiled (.tsx-as-JSON) tileset: a flat
// array of tiles, each optionally carrying an object group of
// axis-aligned collision rectangles and a property list.
package tileset

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// LootboxVariant names a loot-box spawn flavor bound to a tile id.
type LootboxVariant string

// Point is a plain coordinate pair with no identity.
type Point struct {
	X, Y float64
}

// Collision is one per-tile collision rectangle, expressed in tile-local
// coordinates centred on a unit tile (simulation convention: y up).
type Collision struct {
	CenterX, CenterY float64
	HalfWidth        float64
	HalfHeight       float64
	Friction         float64
	// Vertices are the four corners in clockwise order, tile-local.
	Vertices [4]Point
}

// Tile is the compiled, per-tile record: its collision templates plus
// whatever spawn tag it carries.
type Tile struct {
	Collisions     []Collision
	IsPlayerSpawn  bool
	LootboxVariant LootboxVariant // empty string means "not a loot spawn"
}

// Tileset is the immutable, load-time product: one compiled Tile per tile id.
type Tileset struct {
	TileWidth  float64
	TileHeight float64
	Tiles      map[int]Tile
}

// --- Authoring format (input) ---

// Property is a single authored tile property. Value is left as raw JSON
// so both numeric (friction) and string (spawnpoint) properties decode.
type Property struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// AsFloat decodes the property value as a float64.
func (p Property) AsFloat() (float64, bool) {
	var f float64
	if err := json.Unmarshal(p.Value, &f); err == nil {
		return f, true
	}
	// Tolerate numbers authored as quoted strings.
	var s string
	if err := json.Unmarshal(p.Value, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// AsString decodes the property value as a string.
func (p Property) AsString() (string, bool) {
	var s string
	if err := json.Unmarshal(p.Value, &s); err == nil {
		return s, true
	}
	return "", false
}

// Rect is one authored axis-aligned collision rectangle, in tile-pixel
// space with the authoring convention that y grows downward.
type Rect struct {
	X, Y, Width, Height float64
	Properties          []Property
}

// ObjectGroup is the authored collection of collision rectangles for one tile.
type ObjectGroup struct {
	Objects []Rect `json:"objects"`
}

// TileData is one authored tile record.
type TileData struct {
	ID          int          `json:"id"`
	ObjectGroup *ObjectGroup `json:"objectgroup"`
	Properties  []Property   `json:"properties"`
}

// Data is the full authored tileset file.
type Data struct {
	TileWidth  float64    `json:"tilewidth"`
	TileHeight float64    `json:"tileheight"`
	TileCount  int        `json:"tilecount"`
	Tiles      []TileData `json:"tiles"`
}

// propertyFriction is the authored property name carrying a collision's friction.
const propertyFriction = "friction"

// propertySpawnpoint is the authored property name carrying a tile's spawn tag.
const propertySpawnpoint = "spawnpoint"

// spawnpointPlayer is the spawnpoint property value tagging a player spawn tile.
const spawnpointPlayer = "player"

// spawnpointLootboxPrefix prefixes a spawnpoint value naming a loot-box variant.
const spawnpointLootboxPrefix = "lootbox="

// Load compiles an authored tileset into collision templates and spawn tags.
//
// Tile width must equal tile height. A collision rectangle
// missing a numeric friction property, or a spawnpoint property whose value
// matches neither "player" nor "lootbox=<variant>", is a fatal load error.
func Load(data Data) (*Tileset, error) {
	if data.TileWidth != data.TileHeight {
		return nil, fmt.Errorf("tileset: tile width (%v) must equal tile height (%v)", data.TileWidth, data.TileHeight)
	}

	ts := &Tileset{
		TileWidth:  data.TileWidth,
		TileHeight: data.TileHeight,
		Tiles:      make(map[int]Tile, len(data.Tiles)),
	}

	for _, td := range data.Tiles {
		tile := Tile{}

		if td.ObjectGroup != nil {
			for _, rect := range td.ObjectGroup.Objects {
				collision, err := compileCollision(rect, data.TileWidth, data.TileHeight)
				if err != nil {
					return nil, fmt.Errorf("tileset: tile %d: %w", td.ID, err)
				}
				tile.Collisions = append(tile.Collisions, collision)
			}
		}

		for _, prop := range td.Properties {
			if prop.Name != propertySpawnpoint {
				continue
			}
			value, ok := prop.AsString()
			if !ok {
				return nil, fmt.Errorf("tileset: tile %d: spawnpoint property is not a string", td.ID)
			}
			switch {
			case value == spawnpointPlayer:
				tile.IsPlayerSpawn = true
			case len(value) > len(spawnpointLootboxPrefix) && value[:len(spawnpointLootboxPrefix)] == spawnpointLootboxPrefix:
				tile.LootboxVariant = LootboxVariant(value[len(spawnpointLootboxPrefix):])
			default:
				return nil, fmt.Errorf("tileset: tile %d: unrecognized spawnpoint value %q", td.ID, value)
			}
		}

		ts.Tiles[td.ID] = tile
	}

	return ts, nil
}

// compileCollision remaps an authored rectangle (authoring y down) into
// tile-local simulation coordinates (y up, centred on the unit tile) and
// emits its four corners in clockwise order.
func compileCollision(rect Rect, tileWidth, tileHeight float64) (Collision, error) {
	friction, ok := frictionOf(rect.Properties)
	if !ok {
		return Collision{}, fmt.Errorf("collision rectangle missing numeric friction property")
	}

	// Authored rect is in tile-pixel space, origin top-left, y down.
	centerXPx := rect.X + rect.Width/2
	centerYPx := rect.Y + rect.Height/2

	// Remap to tile-local units centred on the unit tile, flipping y.
	centerX := centerXPx/tileWidth - 0.5
	centerY := 0.5 - centerYPx/tileHeight
	halfWidth := (rect.Width / tileWidth) / 2
	halfHeight := (rect.Height / tileHeight) / 2

	c := Collision{
		CenterX:    centerX,
		CenterY:    centerY,
		HalfWidth:  halfWidth,
		HalfHeight: halfHeight,
		Friction:   friction,
	}
	// Clockwise starting top-left, in a y-up frame: top-left, top-right,
	// bottom-right, bottom-left.
	c.Vertices = [4]Point{
		{X: centerX - halfWidth, Y: centerY + halfHeight},
		{X: centerX + halfWidth, Y: centerY + halfHeight},
		{X: centerX + halfWidth, Y: centerY - halfHeight},
		{X: centerX - halfWidth, Y: centerY - halfHeight},
	}
	return c, nil
}

func frictionOf(props []Property) (float64, bool) {
	for _, p := range props {
		if p.Name == propertyFriction {
			return p.AsFloat()
		}
	}
	return 0, false
}
