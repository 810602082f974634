package entity

import "math"

// cellKey addresses one chunk.
type cellKey struct{ cx, cy int }

// ChunkIndex is the broad-phase membership index for one entity type:
// a mapping from chunk coordinate to the set of entity ids occupying it.
// An entity may span up to four chunks at once. Grounded on the same
// fixed-cell bucketing idea as a traditional spatial hash grid, but
// unbounded (map-keyed) since room worlds are not pre-sized.
type ChunkIndex struct {
	chunkSize  float64
	cells      map[cellKey]map[uint64]struct{}
	membership map[uint64][]cellKey
	scratch    map[uint64]struct{}
}

// NewChunkIndex creates an empty index with the given chunk size in tiles.
func NewChunkIndex(chunkSizeTiles int) *ChunkIndex {
	if chunkSizeTiles < 1 {
		chunkSizeTiles = 8
	}
	return &ChunkIndex{
		chunkSize:  float64(chunkSizeTiles),
		cells:      make(map[cellKey]map[uint64]struct{}),
		membership: make(map[uint64][]cellKey),
		scratch:    make(map[uint64]struct{}),
	}
}

// occupiedChunks returns the chunk coordinates a box centred at (x,y) with
// the given half-extents overlaps (up to four).
func (idx *ChunkIndex) occupiedChunks(x, y, halfW, halfH float64) []cellKey {
	minCX := int(math.Floor((x - halfW) / idx.chunkSize))
	maxCX := int(math.Floor((x + halfW) / idx.chunkSize))
	minCY := int(math.Floor((y - halfH) / idx.chunkSize))
	maxCY := int(math.Floor((y + halfH) / idx.chunkSize))

	keys := make([]cellKey, 0, 4)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			keys = append(keys, cellKey{cx, cy})
		}
	}
	return keys
}

// Update recomputes id's chunk membership from its current bounding box,
// removing it from any chunk it no longer occupies.
func (idx *ChunkIndex) Update(id uint64, x, y, halfW, halfH float64) {
	idx.Remove(id)

	keys := idx.occupiedChunks(x, y, halfW, halfH)
	for _, k := range keys {
		set, ok := idx.cells[k]
		if !ok {
			set = make(map[uint64]struct{}, 4)
			idx.cells[k] = set
		}
		set[id] = struct{}{}
	}
	idx.membership[id] = keys
}

// Remove deregisters id from every chunk it currently occupies.
func (idx *ChunkIndex) Remove(id uint64) {
	keys, ok := idx.membership[id]
	if !ok {
		return
	}
	for _, k := range keys {
		if set, ok := idx.cells[k]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(idx.cells, k)
			}
		}
	}
	delete(idx.membership, id)
}

// Clear removes all entities from the index, for a map change.
func (idx *ChunkIndex) Clear() {
	idx.cells = make(map[cellKey]map[uint64]struct{})
	idx.membership = make(map[uint64][]cellKey)
}

// InSameChunks returns the union of entity ids occupying any chunk that
// (x, y, halfW, halfH) overlaps, excluding the caller itself.
func (idx *ChunkIndex) InSameChunks(self uint64, x, y, halfW, halfH float64) []uint64 {
	for k := range idx.scratch {
		delete(idx.scratch, k)
	}

	for _, k := range idx.occupiedChunks(x, y, halfW, halfH) {
		for id := range idx.cells[k] {
			if id == self {
				continue
			}
			idx.scratch[id] = struct{}{}
		}
	}

	out := make([]uint64, 0, len(idx.scratch))
	for id := range idx.scratch {
		out = append(out, id)
	}
	return out
}
