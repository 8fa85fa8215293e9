package core

// Process is one running program: its isolated VM plus the kernel-level
// bookkeeping needed to schedule, charge, and eventually retire it.
type Process struct {
	Pid       uint32
	OwnerUID  uint32
	ParentPid *uint32
	Nice      uint16
	Lifetime  int64 // ticks remaining; process is killed once this reaches zero
	Emulator  *Emulator
	IsInit    bool
}

// niceBreakpoint is one knot of the piecewise-linear nice -> cycle-budget
// table: a process with nice at or below MaxNice gets Slope*nice +
// Intercept cycles per tick. Nice values above the table's last knot fall
// through to maxNiceCycles.
type niceBreakpoint struct {
	MaxNice   uint16
	Slope     int
	Intercept int
}

// niceCycleTable maps nice to a per-tick cycle budget: higher nice (lower
// scheduling priority cost to renice into) yields MORE cycles, matching
// the source's budget growing with nice rather than shrinking.
var niceCycleTable = []niceBreakpoint{
	{0, 0, 1000},
	{5, 200, 1000},
	{10, 150, 1250},
	{15, 100, 1750},
	{20, 50, 2500},
}

// maxNiceCycles is the flat budget for nice >= 21.
const maxNiceCycles = 3500

// CyclesForNice returns the base per-tick cycle budget for a nice value.
func CyclesForNice(nice uint16) int {
	for _, bp := range niceCycleTable {
		if nice <= bp.MaxNice {
			return int(nice)*bp.Slope + bp.Intercept
		}
	}
	return maxNiceCycles
}

// sleepDebtDeduction computes how many cycles of a budget are shaved off
// for the owner's outstanding sleep debt: the StarSleepShortage balance is
// clamped to [0, cycles*3/4] and the result is the cycle count to
// subtract. A negative balance (no debt) deducts nothing; a balance past
// the cap deducts no more than 75% of the base budget.
func sleepDebtDeduction(cycles int, ownerSleepShortage int64) int {
	ceiling := int64(cycles * 3 / 4)
	s := ownerSleepShortage
	if s < 0 {
		s = 0
	}
	if s > ceiling {
		s = ceiling
	}
	return int(s)
}

// EffectiveBudget applies the nice table and sleep-debt deduction to
// produce this tick's actual cycle budget for a process.
func EffectiveBudget(nice uint16, ownerSleepShortage int64) int {
	cycles := CyclesForNice(nice)
	return cycles - sleepDebtDeduction(cycles, ownerSleepShortage)
}

// SplitLifetime divides a parent's remaining lifetime between it and a
// freshly forked child: each gets half, rounded down, with any odd tick
// left to the parent. Init processes do not split: they keep their full
// (conventionally unbounded) lifetime and the child also gets it.
func SplitLifetime(parentLifetime int64, parentIsInit bool) (parentShare, childShare int64) {
	if parentIsInit {
		return parentLifetime, parentLifetime
	}
	half := parentLifetime / 2
	return parentLifetime - half, half
}
