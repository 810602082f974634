package main

import (
	"encoding/json"
	"fmt"

	"boxborne/internal/tileset"
	"boxborne/internal/worldmap"
)

// The bundled arena stands in for the Tiled-authored tileset/map files a
// real deployment loads from disk; it exists so a freshly
// cloned server has at least one map to put a room's players into.
const (
	seedTileSize  = 32.0
	seedMapWidth  = 20
	seedMapHeight = 12
)

func buildSeedTileset() (*tileset.Tileset, error) {
	data := tileset.Data{
		TileWidth:  seedTileSize,
		TileHeight: seedTileSize,
		TileCount:  3,
		Tiles: []tileset.TileData{
			{
				ID: 0, // solid wall/floor tile
				ObjectGroup: &tileset.ObjectGroup{
					Objects: []tileset.Rect{
						{
							X: 0, Y: 0, Width: seedTileSize, Height: seedTileSize,
							Properties: []tileset.Property{
								{Name: "friction", Value: json.RawMessage(`0.8`)},
							},
						},
					},
				},
			},
			{
				ID: 1, // player spawn marker, no collision
				Properties: []tileset.Property{
					{Name: "spawnpoint", Value: json.RawMessage(`"player"`)},
				},
			},
			{
				ID: 2, // health loot-box spawn marker, no collision
				Properties: []tileset.Property{
					{Name: "spawnpoint", Value: json.RawMessage(`"lootbox=health"`)},
				},
			},
		},
	}
	return tileset.Load(data)
}

func buildSeedMap(ts *tileset.Tileset) (*worldmap.Map, error) {
	collision := make([]int, seedMapWidth*seedMapHeight)
	spawns := make([]int, seedMapWidth*seedMapHeight)
	idx := func(row, col int) int { return row*seedMapWidth + col }

	for row := 0; row < seedMapHeight; row++ {
		for col := 0; col < seedMapWidth; col++ {
			if row == 0 || row == seedMapHeight-1 || col == 0 || col == seedMapWidth-1 {
				collision[idx(row, col)] = 1 // rawID = tile id 0 + 1
			}
		}
	}

	spawnRow := seedMapHeight - 2
	spawnCols := []int{2, 4, 6, 8, 10, 12, 14, 16}
	for _, col := range spawnCols {
		spawns[idx(spawnRow, col)] = 2 // rawID = tile id 1 + 1
	}
	spawns[idx(spawnRow, 9)] = 3 // rawID = tile id 2 + 1

	data := worldmap.Data{
		Width:  seedMapWidth,
		Height: seedMapHeight,
		Layers: []worldmap.Layer{
			{Name: "collision", Width: seedMapWidth, Height: seedMapHeight, Data: collision},
			{Name: "spawns", Width: seedMapWidth, Height: seedMapHeight, Data: spawns},
		},
		Properties: []tileset.Property{
			{Name: "name", Value: json.RawMessage(`"arena-1"`)},
			{Name: "pool", Value: json.RawMessage(`"default-pool"`)},
		},
	}
	return worldmap.Load("arena-1", data, ts)
}

// seedRegistry builds the bundled tileset and map and registers the map,
// returning an error if either compile step fails.
func seedRegistry(reg *worldmap.Registry) error {
	ts, err := buildSeedTileset()
	if err != nil {
		return fmt.Errorf("seed tileset: %w", err)
	}
	m, err := buildSeedMap(ts)
	if err != nil {
		return fmt.Errorf("seed map: %w", err)
	}
	reg.Register(m)
	return nil
}
