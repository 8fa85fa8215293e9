package core

import "testing"

func TestSyscallCatalogueHasNoDuplicates(t *testing.T) {
	seen := make(map[uint8]string)
	for _, entry := range syscallCatalogue {
		if prev, ok := seen[entry.number]; ok {
			t.Fatalf("syscall %#x registered by both %q and %q", entry.number, prev, entry.name)
		}
		seen[entry.number] = entry.name
	}
}

func TestUnknownSyscallReturnsZeroWithoutCrashing(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	k.Users[1].Wallet.StarSleepShortage = 0
	k.dispatchSyscall(proc.Pid, 0xff)
	if got := proc.Emulator.GetRegMut(RegAX); got != 0 {
		t.Fatalf("AX after unknown syscall = %d, want 0", got)
	}
	if got := k.Users[1].Wallet.StarSleepShortage; got != 10 {
		t.Fatalf("StarSleepShortage after unknown syscall = %d, want 10 (the reserved syscall's debt)", got)
	}
}

func TestGetPidSyscallWritesOwnPid(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	k.dispatchSyscall(proc.Pid, sysGetPid)
	if got := proc.Emulator.GetRegMut(RegAX); got != uint16(proc.Pid) {
		t.Fatalf("AX after getpid = %d, want %d", got, proc.Pid)
	}
}

func TestGetUidOfSyscallReturnsTargetOwner(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1, 2}, []string{"alice", "bob"})
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	target, _ := k.ForkInitProcess(2, 0, 1000, emptyEmulator())
	proc.Emulator.SetReg(RegR0, uint16(target.Pid))
	k.dispatchSyscall(proc.Pid, sysGetUidOf)
	if got := proc.Emulator.GetRegMut(RegAX); got != 2 {
		t.Fatalf("AX after getuidof = %d, want target owner uid 2", got)
	}
}

func TestGetUidOfSyscallFailsForUnknownTarget(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	proc.Emulator.SetReg(RegR0, 9999)
	k.dispatchSyscall(proc.Pid, sysGetUidOf)
	if got := proc.Emulator.GetRegMut(RegAX); got != 0 {
		t.Fatalf("AX after getuidof on unknown pid = %d, want 0", got)
	}
}

func TestGetProcInfoSyscallWritesTenByteRecord(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	target, _ := k.ForkInitProcess(1, 3, 1000, emptyEmulator())

	proc.Emulator.SetReg(RegR0, uint16(target.Pid))
	proc.Emulator.SetReg(RegR1, 0)
	k.dispatchSyscall(proc.Pid, sysGetProcInfo)
	if got := proc.Emulator.GetRegMut(RegAX); got != 1 {
		t.Fatalf("AX after getprocinfo = %d, want 1", got)
	}
	data := proc.Emulator.PeekBytesFromMem(0, 10)
	nice := uint16(data[6]) | uint16(data[7])<<8
	if nice != 3 {
		t.Fatalf("nice field in getprocinfo payload = %d, want 3", nice)
	}
}

func TestGetProcInfoSyscallFailsForDifferentOwner(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1, 2}, []string{"alice", "bob"})
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	target, _ := k.ForkInitProcess(2, 0, 1000, emptyEmulator())
	proc.Emulator.SetReg(RegR0, uint16(target.Pid))
	k.dispatchSyscall(proc.Pid, sysGetProcInfo)
	if got := proc.Emulator.GetRegMut(RegAX); got != 0 {
		t.Fatalf("AX after getprocinfo on another user's process = %d, want 0", got)
	}
}

func TestRenicesSyscallSaturatingAddsOne(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	k.Users[1].Wallet.Ethereum = 100
	proc, _ := k.ForkInitProcess(1, 5, 1000, emptyEmulator())
	k.dispatchSyscall(proc.Pid, sysRenice)
	if proc.Nice != 6 {
		t.Fatalf("Nice = %d, want 6 after a single renice", proc.Nice)
	}
}

func TestRenicesSyscallSaturatesAtMaxNice(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	k.Users[1].Wallet.Ethereum = 100
	proc, _ := k.ForkInitProcess(1, maxNice, 1000, emptyEmulator())
	k.dispatchSyscall(proc.Pid, sysRenice)
	if proc.Nice != maxNice {
		t.Fatalf("Nice = %d, want saturated at %d", proc.Nice, maxNice)
	}
}

func TestForkSyscallFailsGracefullyWhenUnaffordable(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	k.Users[1].Wallet.Ethereum = 0
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	// fork costs 4 Eth; the owner has none
	k.dispatchSyscall(proc.Pid, sysFork)
	if len(k.Processes) != 1 {
		t.Fatalf("expected no child process from an unaffordable fork, have %d processes", len(k.Processes))
	}
	if got := proc.Emulator.GetRegMut(RegAX); got != 0 {
		t.Fatalf("AX after failed fork = %d, want 0", got)
	}
}

func TestForkSyscallSucceedsAndChargesEther(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	k.Users[1].Wallet.Ethereum = 10
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	k.dispatchSyscall(proc.Pid, sysFork)
	if len(k.Processes) != 2 {
		t.Fatalf("expected a child process from a successful fork, have %d processes", len(k.Processes))
	}
	if k.Users[1].Wallet.Ethereum != 6 {
		t.Fatalf("owner Ethereum = %d, want 6 after a 4-Eth fork cost", k.Users[1].Wallet.Ethereum)
	}
}

func TestMoveSyscallRequiresSingleStep(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	k.Users[1].Wallet.DogeCoin = 10
	root, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	childPid, _ := k.ForkProcess(root.Pid)
	proc := k.Processes[childPid]
	loc, _ := k.Map.LocationOf(proc.Pid)

	proc.Emulator.SetReg(RegR0, uint16(wrapCoord(loc.X+5)))
	proc.Emulator.SetReg(RegR1, uint16(loc.Y))
	k.dispatchSyscall(proc.Pid, sysMove)
	if got := proc.Emulator.GetRegMut(RegAX); got != 0 {
		t.Fatalf("AX after a non-adjacent move = %d, want 0", got)
	}
}

func TestMoveSyscallStepsToAdjacentCell(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	k.Users[1].Wallet.DogeCoin = 10
	k.Users[1].Wallet.StarSleepShortage = 0
	root, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	rootLoc, _ := k.Map.LocationOf(root.Pid)
	childPid, _ := k.ForkProcess(root.Pid)
	proc := k.Processes[childPid]
	k.Map.MoveProcess(childPid, NewLocation(rootLoc.X+10, rootLoc.Y))
	loc, _ := k.Map.LocationOf(proc.Pid)

	dst := NewLocation(loc.X+1, loc.Y)
	proc.Emulator.SetReg(RegR0, uint16(dst.X))
	proc.Emulator.SetReg(RegR1, uint16(dst.Y))
	k.dispatchSyscall(proc.Pid, sysMove)
	if got := proc.Emulator.GetRegMut(RegAX); got != 1 {
		t.Fatalf("AX after a valid move = %d, want 1", got)
	}
	if newLoc, _ := k.Map.LocationOf(proc.Pid); newLoc != dst {
		t.Fatalf("process location after move = %v, want %v", newLoc, dst)
	}
	if k.Users[1].Wallet.DogeCoin != 9 {
		t.Fatalf("owner DogeCoin = %d, want 9 after move's 1-doge cost", k.Users[1].Wallet.DogeCoin)
	}
	if k.Users[1].Wallet.StarSleepShortage != 1 {
		t.Fatalf("owner StarSleepShortage = %d, want 1 (move's negative cost adds debt)", k.Users[1].Wallet.StarSleepShortage)
	}
}

func TestReadMapSyscallWritesStatusBytes(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	k.Users[1].Wallet.DogeCoin = 10
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())

	proc.Emulator.SetReg(RegR0, 0)
	proc.Emulator.SetReg(RegR1, 0)
	proc.Emulator.SetReg(RegR2, 0)
	proc.Emulator.SetReg(RegR3, 2)
	proc.Emulator.SetReg(RegR4, 2)
	k.dispatchSyscall(proc.Pid, sysReadMap)
	if got := proc.Emulator.GetRegMut(RegAX); got != 9 {
		t.Fatalf("AX after readmap over a 3x3 rect = %d, want 9 bytes written", got)
	}
}

func TestReadMapDetailSyscallRefusesOversizedRect(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	k.Users[1].Wallet.DogeCoin = 2000
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())

	proc.Emulator.SetReg(RegR0, 0)
	proc.Emulator.SetReg(RegR1, 0)
	proc.Emulator.SetReg(RegR2, 0)
	proc.Emulator.SetReg(RegR3, 255)
	proc.Emulator.SetReg(RegR4, 255)
	k.dispatchSyscall(proc.Pid, sysReadMapDetail)
	if got := proc.Emulator.GetRegMut(RegAX); got != 0 {
		t.Fatalf("AX after an oversized readmapdetail rect = %d, want 0", got)
	}
}

func TestFetchChallengeSyscallSerializesPayload(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	loc, _ := k.Map.LocationOf(proc.Pid)
	challenge := NewChallenge(ChallengeDog, 3, []byte("xy"), Wallet{DogeCoin: 1})
	k.Map.SetChallenge(loc, &challenge)

	proc.Emulator.SetReg(RegR0, 0)
	proc.Emulator.SetReg(RegR1, 64)
	k.dispatchSyscall(proc.Pid, sysFetchChallenge)
	if got := proc.Emulator.GetRegMut(RegAX); got != 8 {
		t.Fatalf("AX after fetchchallenge = %d, want 8 (6 header bytes + 2 data bytes)", got)
	}
	payload := proc.Emulator.PeekBytesFromMem(0, 8)
	id := uint16(payload[0]) | uint16(payload[1])<<8
	if id != uint16(ChallengeDog.ChallengeID()) {
		t.Fatalf("fetchchallenge id = %#x, want %#x", id, ChallengeDog.ChallengeID())
	}
}

func TestFetchChallengeSyscallFailsWhenPayloadExceedsMaxLen(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	proc, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	loc, _ := k.Map.LocationOf(proc.Pid)
	challenge := NewChallenge(ChallengeDog, 3, []byte("xy"), Wallet{DogeCoin: 1})
	k.Map.SetChallenge(loc, &challenge)

	proc.Emulator.SetReg(RegR0, 0)
	proc.Emulator.SetReg(RegR1, 4)
	k.dispatchSyscall(proc.Pid, sysFetchChallenge)
	if got := proc.Emulator.GetRegMut(RegAX); got != 0 {
		t.Fatalf("AX after an undersized max_len = %d, want 0", got)
	}
}

func TestAttack1SyscallDecrementsTargetLifetime(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1, 2}, []string{"alice", "bob"})
	k.Users[1].Wallet.DogeCoin = 100
	attacker, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	loc, _ := k.Map.LocationOf(attacker.Pid)
	target, _ := k.ForkInitProcess(2, 0, 1000, emptyEmulator())
	targetLoc := NewLocation(loc.X+1, loc.Y)
	k.Map.MoveProcess(target.Pid, targetLoc)

	attacker.Emulator.SetReg(RegR0, uint16(targetLoc.X))
	attacker.Emulator.SetReg(RegR1, uint16(targetLoc.Y))
	k.dispatchSyscall(attacker.Pid, sysAttack1)
	if got := proc(k, target.Pid).Lifetime; got != 999 {
		t.Fatalf("target lifetime after attack1 = %d, want 999", got)
	}
}

func TestAttack1SyscallFailsBeyondRange(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1, 2}, []string{"alice", "bob"})
	k.Users[1].Wallet.DogeCoin = 100
	attacker, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	loc, _ := k.Map.LocationOf(attacker.Pid)
	target, _ := k.ForkInitProcess(2, 0, 1000, emptyEmulator())
	targetLoc := NewLocation(loc.X+10, loc.Y)
	k.Map.MoveProcess(target.Pid, targetLoc)

	attacker.Emulator.SetReg(RegR0, uint16(targetLoc.X))
	attacker.Emulator.SetReg(RegR1, uint16(targetLoc.Y))
	k.dispatchSyscall(attacker.Pid, sysAttack1)
	if got := attacker.Emulator.GetRegMut(RegAX); got != 0 {
		t.Fatalf("AX after an out-of-range attack1 = %d, want 0", got)
	}
	if got := proc(k, target.Pid).Lifetime; got != 1000 {
		t.Fatalf("target lifetime after a failed attack1 = %d, want unchanged 1000", got)
	}
}

func TestDetachSyscallReparentsToOwnersInit(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	k.Users[1].Wallet.Ethereum = 10
	root, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	childPid, _ := k.ForkProcess(root.Pid)
	grandchildPid, _ := k.ForkProcess(childPid)

	grandchild := k.Processes[grandchildPid]
	grandchild.Emulator.SetReg(RegR0, 0)
	k.dispatchSyscall(grandchildPid, sysDetach)
	if _, exists := k.Processes[grandchildPid]; !exists {
		t.Fatal("detach must not kill the calling process")
	}
	if *k.Processes[grandchildPid].ParentPid != root.Pid {
		t.Fatalf("grandchild ParentPid after detach = %d, want owner's init %d", *k.Processes[grandchildPid].ParentPid, root.Pid)
	}
}

func TestDetachSyscallFailsForInitProcess(t *testing.T) {
	k := newTestKernel()
	k.SetupUsers([]uint32{1}, []string{"alice"})
	k.Users[1].Wallet.Ethereum = 10
	root, _ := k.ForkInitProcess(1, 0, 1000, emptyEmulator())
	k.dispatchSyscall(root.Pid, sysDetach)
	if got := root.Emulator.GetRegMut(RegAX); got != 0 {
		t.Fatalf("AX after an init process detaches = %d, want 0", got)
	}
}

func proc(k *Kernel, pid uint32) *Process {
	return k.Processes[pid]
}
