package core

import (
	"math/rand"
	"testing"
)

func TestChebyshevDistanceWrapsAround(t *testing.T) {
	a := NewLocation(0, 0)
	b := NewLocation(255, 0)
	if got := a.ChebyshevDistance(b); got != 1 {
		t.Fatalf("distance across the wrap = %d, want 1", got)
	}
}

func TestChebyshevDistanceStraightLine(t *testing.T) {
	a := NewLocation(10, 10)
	b := NewLocation(13, 11)
	if got := a.ChebyshevDistance(b); got != 3 {
		t.Fatalf("distance = %d, want 3", got)
	}
}

func TestPlaceAndRemoveProcessKeepsIndexConsistent(t *testing.T) {
	m := NewGameMap()
	loc := NewLocation(5, 5)
	m.PlaceProcess(1, loc)

	if m.IsEmpty(loc) {
		t.Fatal("expected cell to be occupied after PlaceProcess")
	}
	got, ok := m.LocationOf(1)
	if !ok || got != loc {
		t.Fatalf("LocationOf(1) = (%v, %v), want (%v, true)", got, ok, loc)
	}

	m.RemoveProcess(1)
	if !m.IsEmpty(loc) {
		t.Fatal("expected cell to be empty after RemoveProcess")
	}
	if _, ok := m.LocationOf(1); ok {
		t.Fatal("expected LocationOf to report false after RemoveProcess")
	}
}

func TestMoveProcessUpdatesBothCellAndIndexTogether(t *testing.T) {
	m := NewGameMap()
	src := NewLocation(1, 1)
	dst := NewLocation(2, 2)
	m.PlaceProcess(7, src)
	m.MoveProcess(7, dst)

	if !m.IsEmpty(src) {
		t.Fatal("source cell should be empty after MoveProcess")
	}
	if m.IsEmpty(dst) {
		t.Fatal("destination cell should be occupied after MoveProcess")
	}
	loc, ok := m.LocationOf(7)
	if !ok || loc != dst {
		t.Fatalf("LocationOf(7) = (%v, %v), want (%v, true)", loc, ok, dst)
	}
}

func TestRandomEmptyLocationAvoidsOccupiedCells(t *testing.T) {
	m := NewGameMap()
	rng := rand.New(rand.NewSource(1))
	occupied := NewLocation(0, 0)
	m.PlaceProcess(1, occupied)

	for i := 0; i < 100; i++ {
		loc, ok := RandomEmptyLocation(m, rng, 1000)
		if !ok {
			t.Fatal("expected to find an empty cell on a near-empty map")
		}
		if loc == occupied {
			t.Fatal("RandomEmptyLocation returned an occupied cell")
		}
	}
}

func TestFindEmptyLocationNearbyStaysWithinRadiusOrFails(t *testing.T) {
	m := NewGameMap()
	rng := rand.New(rand.NewSource(1))
	src := NewLocation(100, 100)
	for i := 0; i < 50; i++ {
		loc, ok := FindEmptyLocationNearby(m, rng, src, 2, 5)
		if !ok {
			continue
		}
		if loc.ChebyshevDistance(src) > 2 {
			t.Fatalf("FindEmptyLocationNearby returned %v, farther than radius 2 from %v", loc, src)
		}
	}
}

func TestFindEmptyLocationNearbyFailsWhenNeighborhoodFull(t *testing.T) {
	m := NewGameMap()
	rng := rand.New(rand.NewSource(1))
	src := NewLocation(50, 50)
	for dx := -2; dx <= 2; dx++ {
		for dy := -2; dy <= 2; dy++ {
			loc := NewLocation(src.X+dx, src.Y+dy)
			if loc == src {
				continue
			}
			pid := uint32(dx+3)*10 + uint32(dy+3)
			m.PlaceProcess(pid, loc)
		}
	}
	m.cells[src.X][src.Y].Wall = true
	if _, ok := FindEmptyLocationNearby(m, rng, src, 2, 5); ok {
		t.Fatal("expected FindEmptyLocationNearby to fail when every cell in radius is occupied")
	}
}

func TestFindPathNoOpWhenAlreadyAtDestination(t *testing.T) {
	m := NewGameMap()
	loc := NewLocation(3, 3)
	path, ok := m.FindPath(loc, loc, 5)
	if !ok || path != nil {
		t.Fatalf("FindPath(loc, loc, _) = (%v, %v), want (nil, true)", path, ok)
	}
}

func TestFindPathFindsShortestRouteAroundAWall(t *testing.T) {
	m := NewGameMap()
	src := NewLocation(0, 2)
	dst := NewLocation(4, 2)
	for y := 0; y < MapSize; y++ {
		m.cells[2][y].Wall = true
	}
	m.cells[2][2].Wall = false // leave a single gap at (2,2)

	path, ok := m.FindPath(src, dst, 10)
	if !ok {
		t.Fatal("expected a path to be found through the gap")
	}
	if len(path) == 0 || path[len(path)-1] != dst {
		t.Fatalf("FindPath path = %v, want it to end at %v", path, dst)
	}
	for _, step := range path {
		if m.cells[step.X][step.Y].Wall {
			t.Fatalf("FindPath path %v steps onto a wall cell %v", path, step)
		}
	}
}

func TestFindPathFailsWhenWallsFullySurroundDestination(t *testing.T) {
	m := NewGameMap()
	src := NewLocation(0, 0)
	dst := NewLocation(10, 10)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			m.cells[dst.X+dx][dst.Y+dy].Wall = true
		}
	}
	if _, ok := m.FindPath(src, dst, 50); ok {
		t.Fatal("expected no path when the destination is fully walled in")
	}
}

func TestSpawnChallengesPlacesOnProbabilityHit(t *testing.T) {
	m := NewGameMap()
	rng := rand.New(rand.NewSource(1))
	spawn := map[ChallengeKind][]SpawnRule{
		ChallengeBed: {{Difficulty: 5, Probability: 1.0}},
	}

	placed := m.SpawnChallenges(rng, spawn)
	if len(placed) != 1 {
		t.Fatalf("SpawnChallenges with probability 1.0 placed %d challenges, want 1", len(placed))
	}
	if placed[0].Challenge.Kind != ChallengeBed || placed[0].Challenge.Difficulty != 5 {
		t.Fatalf("placed challenge = %+v, want a bed challenge at difficulty 5", placed[0].Challenge)
	}
	if m.ChallengeAt(placed[0].Location) == nil {
		t.Fatal("expected the placed challenge to actually be set on its cell")
	}
}

func TestSpawnChallengesSkipsOnProbabilityMiss(t *testing.T) {
	m := NewGameMap()
	rng := rand.New(rand.NewSource(1))
	spawn := map[ChallengeKind][]SpawnRule{
		ChallengeBed: {{Difficulty: 5, Probability: 0.0}},
	}
	if placed := m.SpawnChallenges(rng, spawn); len(placed) != 0 {
		t.Fatalf("SpawnChallenges with probability 0.0 placed %d challenges, want 0", len(placed))
	}
}

func TestTeleportProcessToStaysWithinRadius(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	src, _ := k.Map.LocationOf(proc.Pid)

	if !k.TeleportProcessTo(proc.Pid, 3, 20) {
		t.Fatal("expected teleport to find an empty cell on a near-empty map")
	}
	dst, _ := k.Map.LocationOf(proc.Pid)
	if dst.ChebyshevDistance(src) > 3 {
		t.Fatalf("teleported to %v, farther than radius 3 from %v", dst, src)
	}
}

func TestTeleportProcessToFailsForUnplacedProcess(t *testing.T) {
	k := newTestKernel()
	if k.TeleportProcessTo(9999, 2, 5) {
		t.Fatal("expected teleport to fail for a pid that is not on the map")
	}
}
