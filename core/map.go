package core

import (
	"math/rand"
)

// MapSize is the edge length of the square torus map.
const MapSize = 256

// Location is a wrapped (x, y) coordinate on the torus map. Values are
// always taken mod MapSize by NewLocation and the arithmetic helpers
// below, so a Location is never out of range.
type Location struct {
	X, Y int
}

// NewLocation wraps raw coordinates onto the torus.
func NewLocation(x, y int) Location {
	return Location{X: wrapCoord(x), Y: wrapCoord(y)}
}

func wrapCoord(v int) int {
	v %= MapSize
	if v < 0 {
		v += MapSize
	}
	return v
}

// ChebyshevDistance returns the wrap-around Chebyshev distance between
// two locations: the maximum, over x and y, of the shorter of the two
// ways around the torus in that axis.
func (l Location) ChebyshevDistance(other Location) int {
	dx := wrapDelta(l.X, other.X)
	dy := wrapDelta(l.Y, other.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func wrapDelta(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > MapSize-d {
		return MapSize - d
	}
	return d
}

// MapCell is one torus cell's occupancy and crypto-challenge state.
type MapCell struct {
	Occupant  *uint32 // process id, nil if empty
	Challenge *Challenge
	Wall      bool
}

// Status is the one-byte map-reading summary: 0 for land, 1 for wall.
// Occupants and challenges are not distinguished at this granularity;
// see StatusDetail for that.
func (c MapCell) Status() uint8 {
	if c.Wall {
		return 1
	}
	return 0
}

// StatusDetail is the three-byte detailed cell reading: a process's
// presence and challenge placement take priority over the bare terrain
// type, matching readmapdetail's per-cell tag+payload encoding (tag 2 =
// process, low+high bytes of its pid; tag 3 = challenge, low+high bytes
// of its numeric id; otherwise the terrain tag with a zero payload).
func (c MapCell) StatusDetail() [3]byte {
	if c.Occupant != nil {
		pid := *c.Occupant
		return [3]byte{2, byte(pid), byte(pid >> 8)}
	}
	if c.Challenge != nil {
		id := c.Challenge.Kind.ChallengeID()
		return [3]byte{3, byte(id), byte(id >> 8)}
	}
	if c.Wall {
		return [3]byte{1, 0, 0}
	}
	return [3]byte{0, 0, 0}
}

// GameMap is the 256x256 torus world: a grid of cells plus a reverse
// pid -> location index kept in lockstep with cell occupancy.
type GameMap struct {
	cells           [MapSize][MapSize]MapCell
	processLocation map[uint32]Location
}

// NewGameMap builds an empty map with no processes and no challenges.
func NewGameMap() *GameMap {
	return &GameMap{processLocation: make(map[uint32]Location)}
}

// CellAt returns a copy of the cell at loc.
func (m *GameMap) CellAt(loc Location) MapCell {
	return m.cells[loc.X][loc.Y]
}

// ChallengeAt returns the challenge at loc, if any.
func (m *GameMap) ChallengeAt(loc Location) *Challenge {
	return m.cells[loc.X][loc.Y].Challenge
}

// SetChallenge installs (or clears, with nil) the challenge at loc.
func (m *GameMap) SetChallenge(loc Location, challenge *Challenge) {
	m.cells[loc.X][loc.Y].Challenge = challenge
}

// LocationOf returns the process's current location, if it is placed on
// the map.
func (m *GameMap) LocationOf(pid uint32) (Location, bool) {
	loc, ok := m.processLocation[pid]
	return loc, ok
}

// IsEmpty reports whether a cell is land with no occupant and no
// challenge — the stricter predicate used when placing a brand new
// process or a new challenge, so spawns never collide with existing
// world state.
func (m *GameMap) IsEmpty(loc Location) bool {
	cell := m.cells[loc.X][loc.Y]
	return !cell.Wall && cell.Occupant == nil && cell.Challenge == nil
}

// IsUnoccupied reports only whether a cell has no process on it. Unlike
// IsEmpty, a cell carrying a challenge counts as unoccupied: a process
// must be able to step onto a challenge cell to fetch or solve it.
func (m *GameMap) IsUnoccupied(loc Location) bool {
	return m.cells[loc.X][loc.Y].Occupant == nil
}

// PlaceProcess sets both the cell occupant and the reverse index for pid
// at loc; it overwrites whatever was there, so callers must confirm the
// cell is empty first when that matters.
func (m *GameMap) PlaceProcess(pid uint32, loc Location) {
	p := pid
	m.cells[loc.X][loc.Y].Occupant = &p
	m.processLocation[pid] = loc
}

// RemoveProcess clears both the cell occupant and the reverse index for
// pid, if it is currently placed.
func (m *GameMap) RemoveProcess(pid uint32) {
	loc, ok := m.processLocation[pid]
	if !ok {
		return
	}
	m.cells[loc.X][loc.Y].Occupant = nil
	delete(m.processLocation, pid)
}

// MoveProcess relocates pid from its current location to dst, updating
// both the cell occupancy and the reverse index together so the two
// never drift out of sync with each other.
func (m *GameMap) MoveProcess(pid uint32, dst Location) {
	m.RemoveProcess(pid)
	m.PlaceProcess(pid, dst)
}

// RandomEmptyLocation samples up to attempts random cells and returns the
// first empty one found. It does not retry indefinitely: a full map (or
// a map so crowded that attempts random draws all collide) simply
// reports failure, matching the source's bounded-sampling spawn rule.
func RandomEmptyLocation(m *GameMap, rng *rand.Rand, attempts int) (Location, bool) {
	for i := 0; i < attempts; i++ {
		loc := NewLocation(rng.Intn(MapSize), rng.Intn(MapSize))
		if m.IsEmpty(loc) {
			return loc, true
		}
	}
	return Location{}, false
}

// FindEmptyLocationNearby samples up to attempts cells within a
// (2*radius+1)-wide square centered on src (each axis drawn
// independently and wrapped) and returns the first empty one found. It
// does not fall back to a wider search: a neighborhood crowded across
// every attempt simply reports failure, matching the source's
// bounded-radius spawn rule used by fork. Unbound to any current
// syscall, it is also exposed standalone for future tooling, same as
// the original's own unreached helper of this name.
func FindEmptyLocationNearby(m *GameMap, rng *rand.Rand, src Location, radius, attempts int) (Location, bool) {
	for i := 0; i < attempts; i++ {
		dx := rng.Intn(2*radius+1) - radius
		dy := rng.Intn(2*radius+1) - radius
		loc := NewLocation(src.X+dx, src.Y+dy)
		if m.IsEmpty(loc) {
			return loc, true
		}
	}
	return Location{}, false
}

// SpawnedChallenge is one challenge placed by a SpawnChallenges pass,
// paired with the cell it landed on so the caller can emit a
// NewChallenge event for it.
type SpawnedChallenge struct {
	Location  Location
	Challenge Challenge
}

// SpawnChallenges runs one independent probability draw per (kind, rule)
// entry in spawn: on a hit, it draws a single uniform-random cell and
// places the generated challenge there only if the cell is empty. There
// is no retry on a collision — matching
// original_source/src/game/map.rs's try_add_crypto_at_random, which
// spec.md's Open Questions section preserves deliberately. Kinds are
// visited in a fixed order so placement is deterministic for a given rng
// sequence even though the caller's spawn map has no inherent order.
func (m *GameMap) SpawnChallenges(rng *rand.Rand, spawn map[ChallengeKind][]SpawnRule) []SpawnedChallenge {
	var placed []SpawnedChallenge
	for _, kind := range challengeKindOrder {
		for _, rule := range spawn[kind] {
			if rng.Float64() >= rule.Probability {
				continue
			}
			challenge := GenerateChallenge(kind, rule.Difficulty, rng)
			loc := NewLocation(rng.Intn(MapSize), rng.Intn(MapSize))
			if !m.IsEmpty(loc) {
				continue
			}
			m.SetChallenge(loc, &challenge)
			placed = append(placed, SpawnedChallenge{Location: loc, Challenge: challenge})
		}
	}
	return placed
}

// pathNode is one visited cell in FindPath's BFS frontier: its location,
// the index (into the same slice) of the node it was reached from, and
// its distance in hops from src.
type pathNode struct {
	loc   Location
	prev  int
	depth int
}

// FindPath runs a breadth-first search from src to dst across
// non-wall cells (8-directional, torus-wrapped adjacency), returning
// the step-by-step path excluding src, capped at maxLen hops. It
// reports false if dst is unreachable within maxLen steps. Like
// FindEmptyLocationNearby, no syscall currently binds this; it exists
// as an ordinary exported method for future tooling, matching the
// original's own unreached pathfind_process_to.
func (m *GameMap) FindPath(src, dst Location, maxLen int) ([]Location, bool) {
	if src == dst {
		return nil, true
	}
	if maxLen <= 0 {
		return nil, false
	}
	visited := map[Location]bool{src: true}
	nodes := []pathNode{{loc: src, prev: -1, depth: 0}}
	for head := 0; head < len(nodes); head++ {
		cur := nodes[head]
		if cur.depth >= maxLen {
			continue
		}
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				next := NewLocation(cur.loc.X+dx, cur.loc.Y+dy)
				if visited[next] || m.cells[next.X][next.Y].Wall {
					continue
				}
				visited[next] = true
				nodes = append(nodes, pathNode{loc: next, prev: head, depth: cur.depth + 1})
				if next == dst {
					return reconstructPath(nodes, len(nodes)-1), true
				}
			}
		}
	}
	return nil, false
}

func reconstructPath(nodes []pathNode, idx int) []Location {
	var rev []Location
	for i := idx; nodes[i].prev != -1; i = nodes[i].prev {
		rev = append(rev, nodes[i].loc)
	}
	path := make([]Location, len(rev))
	for i, loc := range rev {
		path[len(rev)-1-i] = loc
	}
	return path
}
