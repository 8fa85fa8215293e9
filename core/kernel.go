package core

import (
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
)

// spawnAttempts bounds how many random cells RandomEmptyLocation will
// sample before giving up.
const spawnAttempts = 64

// forkSpawnRadius and forkSpawnAttempts bound ForkProcess's search for an
// empty cell near the forking parent: up to forkSpawnAttempts uniform
// draws within a square of forkSpawnRadius cells.
const (
	forkSpawnRadius   = 2
	forkSpawnAttempts = 5
)

// Kernel owns every process, user, and the shared map; it is the single
// point of mutation for a tick. Nothing outside Kernel is allowed to
// mutate a Process's Emulator or the GameMap directly.
type Kernel struct {
	Map       *GameMap
	Processes map[uint32]*Process
	Users     map[uint32]*User
	nextPid   uint32
	rng       *rand.Rand
	tick      uint64
	events    *EventWriter
	log       *logrus.Logger
	// MaxProcesses caps how many live processes a single owner may hold;
	// fork fails once an owner is at this cap. Zero means unlimited,
	// matching a zero-value Kernel's behavior before any config is wired.
	MaxProcesses int
	// CryptoSpawn is the per-tick challenge spawn distribution, keyed by
	// challenge kind, fed from the config's crypto_spawn field.
	CryptoSpawn map[ChallengeKind][]SpawnRule
}

// NewKernel builds an empty kernel. Callers populate Users via
// SetupUsers and seed initial processes via ForkInitProcess before
// calling RunFullGame.
func NewKernel(events *EventWriter, log *logrus.Logger, rng *rand.Rand) *Kernel {
	return &Kernel{
		Map:       NewGameMap(),
		Processes: make(map[uint32]*Process),
		Users:     make(map[uint32]*User),
		rng:       rng,
		events:    events,
		log:       log,
	}
}

// SetupUsers registers one User per (uid, username) pair with the
// newbieWelcomePack starting wallet, matching the config-driven player
// roster.
func (k *Kernel) SetupUsers(uids []uint32, usernames []string) {
	for i, uid := range uids {
		name := ""
		if i < len(usernames) {
			name = usernames[i]
		}
		k.Users[uid] = &User{UID: uid, Username: name, Wallet: newbieWelcomePack()}
	}
}

func (k *Kernel) allocatePid() uint32 {
	pid := k.nextPid
	k.nextPid++
	return pid
}

// ForkInitProcess places a new init process (no parent, the given
// lifetime, unsplit on future forks) for the given owner at a random
// empty cell. It is used for the initial process roster, never during
// normal ticking.
func (k *Kernel) ForkInitProcess(ownerUID uint32, nice uint16, lifetime int64, emu *Emulator) (*Process, bool) {
	loc, ok := RandomEmptyLocation(k.Map, k.rng, spawnAttempts)
	if !ok {
		return nil, false
	}
	pid := k.allocatePid()
	proc := &Process{
		Pid:      pid,
		OwnerUID: ownerUID,
		Nice:     nice,
		Lifetime: lifetime,
		Emulator: emu,
		IsInit:   true,
	}
	k.Processes[pid] = proc
	k.Map.PlaceProcess(pid, loc)
	if owner, exists := k.Users[ownerUID]; exists {
		owner.InitPid = &pid
		owner.NumProcesses++
	}
	k.emit(NewProcessEvent{Pid: pid, ParentPid: pid, OwnerUID: ownerUID, Location: loc})
	return proc, true
}

// ForkProcess clones parent's emulator into a new child process placed
// near the parent's cell, splitting parent's remaining lifetime between
// the two (unless parent is an init process). It fails (with no state
// changes) if the owner already holds MaxProcesses processes, if
// parent's lifetime is below 2, or if no empty cell turns up nearby. The
// fork syscall's Eth 4 cost is charged by the generic dispatch protocol,
// not here. The child's AX is primed to 0xffff; the parent's is set to
// the child's pid by the normal syscall return path.
func (k *Kernel) ForkProcess(parentPid uint32) (childPid uint32, ok bool) {
	parent, exists := k.Processes[parentPid]
	if !exists {
		return 0, false
	}
	if parent.Lifetime < 2 {
		return 0, false
	}
	owner, exists := k.Users[parent.OwnerUID]
	if !exists {
		return 0, false
	}
	if k.MaxProcesses > 0 && owner.NumProcesses >= k.MaxProcesses {
		return 0, false
	}
	parentLoc, ok := k.Map.LocationOf(parentPid)
	if !ok {
		return 0, false
	}
	loc, ok := FindEmptyLocationNearby(k.Map, k.rng, parentLoc, forkSpawnRadius, forkSpawnAttempts)
	if !ok {
		return 0, false
	}

	parentShare, childShare := SplitLifetime(parent.Lifetime, parent.IsInit)
	parent.Lifetime = parentShare

	childPidVal := k.allocatePid()
	childEmu := parent.Emulator.Clone()
	childEmu.SetSyscallReturnValue(0xffff)
	child := &Process{
		Pid:       childPidVal,
		OwnerUID:  parent.OwnerUID,
		ParentPid: &parentPid,
		Nice:      0,
		Lifetime:  childShare,
		Emulator:  childEmu,
		IsInit:    false,
	}
	k.Processes[childPidVal] = child
	k.Map.PlaceProcess(childPidVal, loc)
	owner.NumProcesses++
	k.emit(NewProcessEvent{Pid: childPidVal, ParentPid: parentPid, OwnerUID: child.OwnerUID, Location: loc})
	return childPidVal, true
}

// TeleportProcessTo relocates pid to a random empty cell within radius
// of its current location, trying up to attempts draws. It reports
// false (with no state change) if pid is not on the map or no empty
// cell turns up within those attempts. No syscall currently binds
// this; it exists as ordinary exported kernel functionality for future
// tooling, matching the original's own unreached teleport_process_to.
func (k *Kernel) TeleportProcessTo(pid uint32, radius, attempts int) bool {
	src, ok := k.Map.LocationOf(pid)
	if !ok {
		return false
	}
	dst, ok := FindEmptyLocationNearby(k.Map, k.rng, src, radius, attempts)
	if !ok {
		return false
	}
	k.Map.MoveProcess(pid, dst)
	k.emit(MoveEvent{Pid: pid, From: src, To: dst})
	return true
}

// IsSelfOrDescendant reports whether candidate is pid itself or was
// (transitively) forked from it.
func (k *Kernel) IsSelfOrDescendant(pid, candidate uint32) bool {
	for candidate != pid {
		proc, exists := k.Processes[candidate]
		if !exists || proc.ParentPid == nil {
			return false
		}
		candidate = *proc.ParentPid
	}
	return true
}

// KillProcess removes a single process from the map and process table,
// emitting a Kill event with the given reason.
func (k *Kernel) KillProcess(pid uint32, reason string) {
	proc, exists := k.Processes[pid]
	if !exists {
		return
	}
	if owner, ok := k.Users[proc.OwnerUID]; ok {
		if owner.InitPid != nil && *owner.InitPid == pid {
			owner.InitPid = nil
		}
		if owner.NumProcesses > 0 {
			owner.NumProcesses--
		}
	}
	k.Map.RemoveProcess(pid)
	delete(k.Processes, pid)
	k.emit(KillEvent{Pid: pid, Reason: reason})
}

// KillProcessRecursive kills pid and every descendant, depth-first,
// descendants before their ancestor.
func (k *Kernel) KillProcessRecursive(pid uint32, reason string) {
	for _, child := range k.childrenOf(pid) {
		k.KillProcessRecursive(child, reason)
	}
	k.KillProcess(pid, reason)
}

func (k *Kernel) childrenOf(pid uint32) []uint32 {
	var children []uint32
	for candidate, proc := range k.Processes {
		if proc.ParentPid != nil && *proc.ParentPid == pid {
			children = append(children, candidate)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
	return children
}

// MoveProcessTo relocates pid to dst, succeeding only if dst is exactly
// one cell (Chebyshev distance 1) from pid's current location and
// unoccupied; it emits a Move event on success. This backs the move
// syscall's exact single-step contract: callers name the absolute
// destination, not a direction to step toward.
func (k *Kernel) MoveProcessTo(pid uint32, dst Location) bool {
	src, ok := k.Map.LocationOf(pid)
	if !ok || src.ChebyshevDistance(dst) != 1 || !k.Map.IsUnoccupied(dst) {
		return false
	}
	k.Map.MoveProcess(pid, dst)
	k.emit(MoveEvent{Pid: pid, From: src, To: dst})
	return true
}

// FetchChallengeData returns the challenge at pid's current cell, if any.
func (k *Kernel) FetchChallengeData(pid uint32) (Challenge, bool) {
	loc, ok := k.Map.LocationOf(pid)
	if !ok {
		return Challenge{}, false
	}
	c := k.Map.ChallengeAt(loc)
	if c == nil {
		return Challenge{}, false
	}
	return *c, true
}

// SolveChallenge checks nonce against the challenge at pid's cell. On
// success it credits the reward to pid's owner, clears the cell's
// challenge, emits ChallengeSolved + WalletUpdate, and returns 1. On
// failure — including no challenge on the cell at all — it recursively
// kills pid and returns 0; the caller always succeeds in the dispatch
// sense (the solvechallenge syscall charges its cost either way).
func (k *Kernel) SolveChallenge(pid uint32, nonce uint32) uint16 {
	loc, ok := k.Map.LocationOf(pid)
	if !ok {
		k.KillProcessRecursive(pid, "failed crypto challenge")
		return 0
	}
	challenge := k.Map.ChallengeAt(loc)
	if challenge == nil || !challenge.Verify(nonce) {
		k.KillProcessRecursive(pid, "failed crypto challenge")
		return 0
	}
	proc := k.Processes[pid]
	owner := k.Users[proc.OwnerUID]
	owner.Credit(challenge.Reward)
	k.Map.SetChallenge(loc, nil)

	k.emit(ChallengeSolvedEvent{Pid: pid, Location: loc, Kind: challenge.Kind})
	k.emit(WalletUpdateEvent{UID: owner.UID, Wallet: owner.Wallet})
	return 1
}

func (k *Kernel) emit(ev Event) {
	if k.events == nil {
		return
	}
	if err := k.events.Emit(ev); err != nil {
		k.log.WithError(err).Error("failed to emit event")
	}
}

// schedulingOrder returns this tick's process execution order: nice
// descending (higher nice runs first), then pid ascending to break ties
// deterministically.
func (k *Kernel) schedulingOrder() []uint32 {
	pids := make([]uint32, 0, len(k.Processes))
	for pid := range k.Processes {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool {
		pi, pj := k.Processes[pids[i]], k.Processes[pids[j]]
		if pi.Nice != pj.Nice {
			return pi.Nice > pj.Nice
		}
		return pids[i] < pids[j]
	})
	return pids
}

// MapTick runs the per-tick challenge spawn pass against CryptoSpawn's
// configured distributions, emitting a NewChallenge event for every
// challenge that lands on an empty cell. Per spec.md's ordering
// guarantee, TickProcesses always runs this before any process executes
// in the same tick.
func (k *Kernel) MapTick() {
	for _, placed := range k.Map.SpawnChallenges(k.rng, k.CryptoSpawn) {
		k.emit(NewChallengeEvent{
			Location:   placed.Location,
			Kind:       placed.Challenge.Kind,
			Difficulty: placed.Challenge.Difficulty,
		})
	}
}

// RunProcessTick executes a single process for one tick: computes its
// effective cycle budget, runs its VM until the budget is exhausted or a
// syscall is hit, dispatches the syscall (possibly more than one, since
// budget may remain after a cheap syscall), and advances its TS.
func (k *Kernel) RunProcessTick(pid uint32) {
	proc, exists := k.Processes[pid]
	if !exists {
		return
	}
	if proc.Lifetime > 0 {
		proc.Lifetime--
	}
	proc.Emulator.IncrementTS()
	owner := k.Users[proc.OwnerUID]
	budget := EffectiveBudget(proc.Nice, owner.Wallet.StarSleepShortage)
	owner.Score += int64(budget) / 100
	k.emit(ScoreUpdateEvent{UID: owner.UID, Score: owner.Score})

	for budget > 0 {
		syscallNum, hit := proc.Emulator.RunUntilInterrupt(&budget)
		if !hit {
			break
		}
		k.dispatchSyscall(pid, syscallNum)
		if _, stillExists := k.Processes[pid]; !stillExists {
			return
		}
	}
}

// TickProcesses runs one full tick: the map's challenge spawn pass
// first, then every process once in scheduling order (lifetime is
// decremented inside RunProcessTick, before that process runs), then
// recursively kills any process whose lifetime hit zero this tick. The
// kill pass only happens after every process has had its turn, so a
// process killed this way still got to run this tick.
func (k *Kernel) TickProcesses() {
	k.MapTick()
	order := k.schedulingOrder()
	for _, pid := range order {
		k.RunProcessTick(pid)
	}
	var expired []uint32
	for _, pid := range order {
		if proc, exists := k.Processes[pid]; exists && proc.Lifetime == 0 {
			expired = append(expired, pid)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	for _, pid := range expired {
		if _, exists := k.Processes[pid]; exists {
			k.KillProcessRecursive(pid, "lifetime exhausted")
		}
	}
	k.tick++
}

// RunFullGame ticks the simulation until no processes remain or maxTicks
// ticks have run, flushing the event stream after every tick. Wallets are
// settled into score only when it stops because no processes remain.
func (k *Kernel) RunFullGame(maxTicks uint64) {
	for k.tick < maxTicks && len(k.Processes) > 0 {
		k.TickProcesses()
		if k.events != nil {
			if err := k.events.Flush(); err != nil {
				k.log.WithError(err).Error("failed to flush event stream")
			}
		}
	}
	if len(k.Processes) == 0 {
		k.settleAllUsers()
	}
}

// settleAllUsers converts every remaining wallet into score once the
// simulation has no processes left to run, in uid order for determinism.
func (k *Kernel) settleAllUsers() {
	uids := make([]uint32, 0, len(k.Users))
	for uid := range k.Users {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	for _, uid := range uids {
		user := k.Users[uid]
		user.SettleFinalScore()
		k.emit(WalletUpdateEvent{UID: user.UID, Wallet: user.Wallet})
		k.emit(ScoreUpdateEvent{UID: user.UID, Score: user.Score})
	}
	if k.events != nil {
		if err := k.events.Flush(); err != nil {
			k.log.WithError(err).Error("failed to flush event stream")
		}
	}
}

// Tick returns the number of ticks executed so far.
func (k *Kernel) Tick() uint64 { return k.tick }
