package core

import "log"

// syscallEffect mutates kernel/process state for one syscall invocation.
// It returns the value to store in AX and whether the syscall succeeded;
// the kernel only charges cost when it succeeds.
type syscallEffect func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool)

// syscallCost computes a syscall's wallet cost from its raw (internal,
// non-observing) argument registers, before the effect runs.
type syscallCost func(args SyscallArgs) Wallet

type syscallDef struct {
	number uint8
	name   string
	cost   syscallCost
	effect syscallEffect
}

// Syscall numbers fix the ABI: the low byte of AX at the syscall opcode
// selects one of these; any other number runs the reserved syscall.
const (
	sysGetPid         = 0x00
	sysGetUidOf       = 0x01
	sysFork           = 0x02
	sysKill           = 0x03
	sysGetProcInfo    = 0x04
	sysDetach         = 0x05
	sysRenice         = 0x06
	sysMove           = 0x10
	sysReadMap        = 0x11
	sysReadMapDetail  = 0x12
	sysFetchChallenge = 0x13
	sysSolveChallenge = 0x14
	sysAttack1        = 0x20
	sysAttack2        = 0x21
	sysUpdateCode     = 0x30
	sysShareMemory    = 0x31
)

const maxNice = 0xffff

func freeCost(SyscallArgs) Wallet { return Wallet{} }

func costEth(n int64) syscallCost {
	return func(SyscallArgs) Wallet { return Wallet{Ethereum: n} }
}

func costDoge(n int64) syscallCost {
	return func(SyscallArgs) Wallet { return Wallet{DogeCoin: n} }
}

func costStarSleep(n int64) syscallCost {
	return func(SyscallArgs) Wallet { return Wallet{StarSleepShortage: n} }
}

func ceilDiv(a, b int64) int64 { return (a + b - 1) / b }

// ethByChunks is updatecode/sharememory's shared cost shape: one Eth per
// 1024-byte chunk (or fraction) of the n+1 bytes being copied.
func ethByChunks(n uint16) Wallet {
	chunks := ceilDiv(int64(n)+1, 1024)
	return Wallet{Ethereum: chunks}
}

// readRectCost shares the wrap-around rectangle sizing used by readmap and
// readmapdetail: total cells in the (x1,y1)-(x2,y2) rectangle, wrapping on
// the 256-wide torus the same way the addresses themselves wrap.
func readRectCost(args SyscallArgs, cellsPerUnit int64) Wallet {
	dx := uint8(args.R3) - uint8(args.R1)
	dy := uint8(args.R4) - uint8(args.R2)
	total := (int64(dx) + 1) * (int64(dy) + 1)
	return Wallet{DogeCoin: ceilDiv(total, cellsPerUnit)}
}

// rectCells iterates the wrap-around rectangle (x1,y1)-(x2,y2) row-major,
// matching readRectCost's sizing exactly.
func rectCells(x1, y1, x2, y2 uint8, visit func(x, y uint8)) {
	dx := x2 - x1
	dy := y2 - y1
	for i := 0; ; i++ {
		x := x1 + uint8(i)
		for j := 0; ; j++ {
			y := y1 + uint8(j)
			visit(x, y)
			if uint8(j) == dy {
				break
			}
		}
		if uint8(i) == dx {
			break
		}
	}
}

var syscallCatalogue = []syscallDef{
	{sysGetPid, "getpid", freeCost, func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		return uint16(pid), true
	}},
	{sysGetUidOf, "getuidof", freeCost, func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		target, exists := k.Processes[uint32(args.R0)]
		if !exists {
			return 0, false
		}
		return uint16(target.OwnerUID), true
	}},
	{sysFork, "fork", costEth(4), func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		childPid, ok := k.ForkProcess(pid)
		if !ok {
			return 0, false
		}
		return uint16(childPid), true
	}},
	{sysKill, "kill", costEth(2), func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		targetPid := uint32(args.R0)
		target, exists := k.Processes[targetPid]
		if !exists || !k.IsSelfOrDescendant(pid, targetPid) || target.IsInit {
			return 0, false
		}
		k.KillProcessRecursive(targetPid, "killed by syscall")
		return 1, true
	}},
	{sysGetProcInfo, "getprocinfo", costStarSleep(-1), func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		proc := k.Processes[pid]
		targetPid := uint32(args.R0)
		target, exists := k.Processes[targetPid]
		if !exists || target.OwnerUID != proc.OwnerUID {
			return 0, false
		}
		loc, ok := k.Map.LocationOf(targetPid)
		if !ok {
			return 0, false
		}
		var ppid uint16
		if target.ParentPid != nil {
			ppid = uint16(*target.ParentPid)
		}
		data := make([]byte, 0, 10)
		data = append(data, byte(loc.X), byte(loc.Y))
		lifetime := uint32(target.Lifetime)
		data = append(data, byte(lifetime), byte(lifetime>>8), byte(lifetime>>16), byte(lifetime>>24))
		data = append(data, byte(target.Nice), byte(target.Nice>>8))
		data = append(data, byte(ppid), byte(ppid>>8))
		proc.Emulator.WriteBytesToMem(args.R1, data)
		return 1, true
	}},
	{sysDetach, "detach", costEth(1), func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		proc, exists := k.Processes[pid]
		if !exists || proc.IsInit {
			return 0, false
		}
		owner := k.Users[proc.OwnerUID]
		if owner.InitPid == nil {
			return 0, false
		}
		k.emit(DetachEvent{Pid: pid})
		initPid := *owner.InitPid
		proc.ParentPid = &initPid
		return 1, true
	}},
	{sysRenice, "renice", costEth(10), func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		proc, exists := k.Processes[pid]
		if !exists {
			return 0, false
		}
		if proc.Nice != maxNice {
			proc.Nice++
		}
		k.emit(RenicesEvent{Pid: pid, NewNice: proc.Nice})
		return 1, true
	}},
	{sysMove, "move", func(args SyscallArgs) Wallet {
		return Wallet{DogeCoin: 1, StarSleepShortage: -1}
	}, func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		proc, exists := k.Processes[pid]
		if !exists || proc.IsInit {
			return 0, false
		}
		dst := NewLocation(int(uint8(args.R0)), int(uint8(args.R1)))
		if !k.MoveProcessTo(pid, dst) {
			return 0, false
		}
		return 1, true
	}},
	{sysReadMap, "readmap", func(args SyscallArgs) Wallet {
		return readRectCost(args, 256)
	}, func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		proc := k.Processes[pid]
		x1, y1, x2, y2 := uint8(args.R1), uint8(args.R2), uint8(args.R3), uint8(args.R4)
		var data []byte
		rectCells(x1, y1, x2, y2, func(x, y uint8) {
			cell := k.Map.CellAt(NewLocation(int(x), int(y)))
			data = append(data, cell.Status())
		})
		proc.Emulator.WriteBytesToMem(args.R0, data)
		return uint16(len(data)), true
	}},
	{sysReadMapDetail, "readmapdetail", func(args SyscallArgs) Wallet {
		return readRectCost(args, 64)
	}, func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		proc := k.Processes[pid]
		x1, y1, x2, y2 := uint8(args.R1), uint8(args.R2), uint8(args.R3), uint8(args.R4)
		dx, dy := x2-x1, y2-y1
		totalCells := (int64(dx) + 1) * (int64(dy) + 1)
		if totalCells*3 > 65535 {
			return 0, false
		}
		loc, ok := k.Map.LocationOf(pid)
		if !ok {
			return 0, false
		}
		isInit := proc.IsInit
		var data []byte
		rectCells(x1, y1, x2, y2, func(x, y uint8) {
			cellLoc := NewLocation(int(x), int(y))
			if !isInit && loc.ChebyshevDistance(cellLoc) <= 4 {
				detail := k.Map.CellAt(cellLoc).StatusDetail()
				data = append(data, detail[:]...)
			} else {
				data = append(data, byte(k.rng.Intn(256)), byte(k.rng.Intn(256)), byte(k.rng.Intn(256)))
			}
		})
		proc.Emulator.WriteBytesToMem(args.R0, data)
		return uint16(len(data)), true
	}},
	{sysFetchChallenge, "fetchchallenge", costStarSleep(-1), func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		challenge, ok := k.FetchChallengeData(pid)
		if !ok {
			return 0, false
		}
		id := uint16(challenge.Kind.ChallengeID())
		difficulty := uint16(challenge.Difficulty)
		dataLen := uint16(len(challenge.Data))
		payload := make([]byte, 0, 6+len(challenge.Data))
		payload = append(payload, byte(id), byte(id>>8))
		payload = append(payload, byte(difficulty), byte(difficulty>>8))
		payload = append(payload, byte(dataLen), byte(dataLen>>8))
		payload = append(payload, challenge.Data...)
		if uint16(len(payload)) > args.R1 {
			return 0, false
		}
		proc := k.Processes[pid]
		proc.Emulator.WriteBytesToMem(args.R0, payload)
		return uint16(len(payload)), true
	}},
	{sysSolveChallenge, "solvechallenge", costDoge(1), func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		nonce := uint32(args.R0) | uint32(args.R1)<<16
		return k.SolveChallenge(pid, nonce), true
	}},
	{sysAttack1, "attack1", costDoge(8), func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		attackerLoc, ok := k.Map.LocationOf(pid)
		if !ok {
			return 0, false
		}
		targetLoc := NewLocation(int(uint8(args.R0)), int(uint8(args.R1)))
		if attackerLoc.ChebyshevDistance(targetLoc) > 4 {
			return 0, false
		}
		occupant := k.Map.CellAt(targetLoc).Occupant
		if occupant == nil {
			return 0, false
		}
		target := k.Processes[*occupant]
		if target.Lifetime > 0 {
			target.Lifetime--
		}
		k.emit(AttackEvent{AttackerPid: pid, DefenderPid: *occupant})
		return 1, true
	}},
	{sysAttack2, "attack2", costDoge(16), func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		attackerLoc, ok := k.Map.LocationOf(pid)
		if !ok {
			return 0, false
		}
		targetLoc := NewLocation(int(uint8(args.R0)), int(uint8(args.R1)))
		if attackerLoc.ChebyshevDistance(targetLoc) > 2 {
			return 0, false
		}
		occupant := k.Map.CellAt(targetLoc).Occupant
		if occupant == nil {
			return 0, false
		}
		target := k.Processes[*occupant]
		target.Emulator.NasalDemons()
		k.emit(AttackEvent{AttackerPid: pid, DefenderPid: *occupant})
		return 1, true
	}},
	{sysUpdateCode, "updatecode", func(args SyscallArgs) Wallet {
		return ethByChunks(args.R2)
	}, func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		proc := k.Processes[pid]
		n := int(args.R2) + 1
		data := proc.Emulator.PeekBytesFromMem(args.R0, n)
		proc.Emulator.WriteBytesToCode(args.R1, data)
		return 1, true
	}},
	{sysShareMemory, "sharememory", func(args SyscallArgs) Wallet {
		return ethByChunks(args.R3)
	}, func(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
		targetPid := uint32(args.R0)
		if targetPid == pid {
			return 0, false
		}
		target, exists := k.Processes[targetPid]
		if !exists || !k.IsSelfOrDescendant(pid, targetPid) {
			return 0, false
		}
		proc := k.Processes[pid]
		n := int(args.R3) + 1
		data := proc.Emulator.PeekBytesFromMem(args.R2, n)
		target.Emulator.WriteBytesToMem(args.R1, data)
		return 1, true
	}},
}

var syscallTable [256]*syscallDef

func init() {
	var used [256]bool
	for i := range syscallCatalogue {
		entry := &syscallCatalogue[i]
		if used[entry.number] {
			log.Panicf("syscalls: duplicate syscall number 0x%02x (%s)", entry.number, entry.name)
		}
		used[entry.number] = true
		syscallTable[entry.number] = entry
	}
}

// reservedCost and reservedEffect back every unmapped syscall number: a
// StarSleepShortage cost of -10 (debiting it adds 10 to the owner's
// sleep debt) and a corruption pass on the caller, returning no value.
func reservedCost(SyscallArgs) Wallet { return Wallet{StarSleepShortage: -10} }

func reservedEffect(k *Kernel, pid uint32, args SyscallArgs) (uint16, bool) {
	proc, exists := k.Processes[pid]
	if !exists {
		return 0, false
	}
	proc.Emulator.NasalDemons()
	return 0, true
}

// dispatchSyscall resolves and runs one syscall for pid: it reads the
// argument registers, looks up the cost from them, checks affordability,
// runs the effect, and only charges the cost if the effect reports
// success. The process table is re-checked after dispatch since the
// effect (kill, a failed solvechallenge) may have removed pid.
func (k *Kernel) dispatchSyscall(pid uint32, number uint8) {
	proc, exists := k.Processes[pid]
	if !exists {
		return
	}
	def := syscallTable[number]
	cost := reservedCost
	effect := reservedEffect
	if def != nil {
		cost = def.cost
		effect = def.effect
	}
	args := proc.Emulator.GetSyscallArgs()
	owner := k.Users[proc.OwnerUID]
	if !owner.Wallet.CanAfford(cost(args)) {
		proc.Emulator.SetSyscallReturnValue(0)
		return
	}
	result, ok := effect(k, pid, args)
	if !ok {
		proc.Emulator.SetSyscallReturnValue(0)
		return
	}
	owner.Debit(cost(args))
	k.emit(WalletUpdateEvent{UID: owner.UID, Wallet: owner.Wallet})
	if proc2, stillExists := k.Processes[pid]; stillExists {
		proc2.Emulator.SetSyscallReturnValue(result)
	}
}
