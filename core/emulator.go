package core

import (
	"math/rand"
)

// BytecodeSize and MemorySize are the fixed sizes of the two address
// planes; every address wraps modulo these on both read and write.
const (
	BytecodeSize = 65536
	MemorySize   = 65536
)

// CpuFlag indexes a bit of the FL register.
type CpuFlag uint

const (
	FlagZero CpuFlag = iota
	FlagCarry
	FlagOverflow
	FlagSign
	FlagSleep
)

// Emulator is one process's isolated VM: a register bank plus two
// independent 65536-byte planes (data memory and bytecode).
type Emulator struct {
	memory    []byte
	bytecode  []byte
	registers *Registers
}

// NewEmulator builds an emulator over the given memory and bytecode
// planes. Both must already be exactly MemorySize/BytecodeSize bytes;
// callers (config loading) are responsible for that invariant.
func NewEmulator(memory, bytecode []byte) *Emulator {
	mem := make([]byte, MemorySize)
	code := make([]byte, BytecodeSize)
	copy(mem, memory)
	copy(code, bytecode)
	return &Emulator{
		memory:    mem,
		bytecode:  code,
		registers: NewRegisters(),
	}
}

// Clone deep-copies memory, bytecode, and the register bank (per
// Registers.Clone's semantics). Used by fork.
func (e *Emulator) Clone() *Emulator {
	mem := make([]byte, MemorySize)
	code := make([]byte, BytecodeSize)
	copy(mem, e.memory)
	copy(code, e.bytecode)
	return &Emulator{
		memory:    mem,
		bytecode:  code,
		registers: e.registers.Clone(),
	}
}

// RunUntilInterrupt executes bytecode while the remaining budget covers
// each instruction's latency. It returns the resolved syscall number and
// true when a syscall opcode has been fetched (AX already holds the
// syscall number, PC points past the syscall opcode); it returns
// (0, false) once the budget is exhausted before the next instruction.
func (e *Emulator) RunUntilInterrupt(budget *int) (uint8, bool) {
	for {
		opcode := e.peekByteFromPC()
		instr := opcodeTable[opcode]
		if *budget < instr.latency {
			return 0, false
		}
		*budget -= instr.latency
		e.incrementPC(1)

		if e.GetFlag(FlagSleep) && !isSleepOpcode(opcode) {
			e.NasalDemons()
			e.SetFlag(FlagSleep, false)
		}

		if opcode == syscallOpcode {
			return uint8(e.getRegInternal(RegAX)), true
		}
		instr.execute(e)
	}
}

func (e *Emulator) getRegInternal(name RegisterName) uint16 { return e.registers.Internal(name) }

// GetRegMut performs the VM's normal observing register read (the public
// name matches the side-effecting nature documented in the register
// file: CT post-increments, RR draws fresh entropy, RE reverses bits).
func (e *Emulator) GetRegMut(name RegisterName) uint16 { return e.registers.Observe(name) }

// SetReg stores a value into a register, subject to that register's
// write policy.
func (e *Emulator) SetReg(name RegisterName, value uint16) { e.registers.Set(name, value) }

func (e *Emulator) incrementPC(count uint16) {
	pc := e.getRegInternal(RegPC)
	e.SetReg(RegPC, pc+count)
}

func (e *Emulator) peekByteFromPC() uint8 {
	pc := int(e.getRegInternal(RegPC))
	return e.bytecode[pc%BytecodeSize]
}

func (e *Emulator) readBytesFromPC(n int) []byte {
	result := make([]byte, n)
	pc := int(e.getRegInternal(RegPC))
	for i := range result {
		result[i] = e.bytecode[pc%BytecodeSize]
		pc++
	}
	e.incrementPC(uint16(n))
	return result
}

func readU8(e *Emulator) uint8  { return e.readBytesFromPC(1)[0] }
func readI8(e *Emulator) int8   { return int8(readU8(e)) }
func readU16(e *Emulator) uint16 {
	b := e.readBytesFromPC(2)
	return uint16(b[0]) | uint16(b[1])<<8
}

// PeekBytesFromMem reads count bytes starting at addr, wrapping mod
// MemorySize, without mutating state.
func (e *Emulator) PeekBytesFromMem(addr uint16, count int) []byte {
	result := make([]byte, count)
	a := int(addr)
	for i := range result {
		result[i] = e.memory[a%MemorySize]
		a++
	}
	return result
}

func peekU8FromMem(e *Emulator, addr uint16) uint8 { return e.PeekBytesFromMem(addr, 1)[0] }
func peekU16FromMem(e *Emulator, addr uint16) uint16 {
	b := e.PeekBytesFromMem(addr, 2)
	return uint16(b[0]) | uint16(b[1])<<8
}

// WriteBytesToMem writes bytes starting at addr, wrapping mod MemorySize.
func (e *Emulator) WriteBytesToMem(addr uint16, data []byte) {
	a := int(addr)
	for _, b := range data {
		e.memory[a%MemorySize] = b
		a++
	}
}

func writeU8ToMem(e *Emulator, addr uint16, v uint8) { e.WriteBytesToMem(addr, []byte{v}) }
func writeU16ToMem(e *Emulator, addr uint16, v uint16) {
	e.WriteBytesToMem(addr, []byte{byte(v), byte(v >> 8)})
}

// WriteBytesToCode writes bytes into the bytecode plane starting at addr,
// wrapping mod BytecodeSize. Used by updatecode and nasal_demons.
func (e *Emulator) WriteBytesToCode(addr uint16, data []byte) {
	a := int(addr)
	for _, b := range data {
		e.bytecode[a%BytecodeSize] = b
		a++
	}
}

// readRegistersOperand reads one operand byte and splits it into
// (dst, src) register names: low nibble is dst, high nibble is src.
func readRegistersOperand(e *Emulator) (RegisterName, RegisterName) {
	b := readU8(e)
	return RegisterNameFromNibble(b), RegisterNameFromNibble(b >> 4)
}

// readAddressOperand decodes the four addressing modes described in
// §4.2 of the address operand contract: mode is bits 6..7 of the first
// byte, base register is bits 0..3.
//
// Mode 01's displacement is a single signed byte, sign-extended to 16
// bits and added to the base with wraparound. Mode 11's displacement is
// a 16-bit little-endian value.
func readAddressOperand(e *Emulator) uint16 {
	modeBase := readU8(e)
	mode := modeBase >> 6
	base := e.GetRegMut(RegisterNameFromNibble(modeBase))
	switch mode {
	case 0b00:
		return base
	case 0b01:
		disp := uint16(int16(readI8(e)))
		return base + disp
	case 0b10:
		scaleIndex := readU8(e)
		index := e.GetRegMut(RegisterNameFromNibble(scaleIndex))
		scale := nextPowerOfTwo(scaleIndex >> 4)
		return base + index*scale
	case 0b11:
		scaleIndex := readU8(e)
		index := e.GetRegMut(RegisterNameFromNibble(scaleIndex))
		scale := nextPowerOfTwo(scaleIndex >> 4)
		disp := readU16(e)
		return base + index*scale + disp
	default:
		panic("unreachable address mode")
	}
}

// nextPowerOfTwo mirrors Rust's u8::next_power_of_two for the small
// scale-code range used here (0 maps to 1, matching the source's
// next_power_of_two(0) == 1 behavior).
func nextPowerOfTwo(n uint8) uint16 {
	if n <= 1 {
		return 1
	}
	v := uint16(n) - 1
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	return v + 1
}

// GetFlag reports whether the named bit of FL is set.
func (e *Emulator) GetFlag(flag CpuFlag) bool {
	fl := e.getRegInternal(RegFL)
	return fl&(1<<uint(flag)) != 0
}

// SetFlag sets or clears the named bit of FL.
func (e *Emulator) SetFlag(flag CpuFlag, value bool) {
	fl := e.getRegInternal(RegFL)
	if value {
		fl |= 1 << uint(flag)
	} else {
		fl &^= 1 << uint(flag)
	}
	e.SetReg(RegFL, fl)
}

// SetLogicalFlags updates Zero and Sign from a computed 16-bit result.
func (e *Emulator) SetLogicalFlags(value uint16) {
	e.SetFlag(FlagZero, value == 0)
	e.SetFlag(FlagSign, int16(value) < 0)
}

// SetArithmeticFlags additionally sets Carry and Overflow, then delegates
// to SetLogicalFlags for Zero/Sign.
func (e *Emulator) SetArithmeticFlags(value uint16, carry, overflow bool) {
	e.SetFlag(FlagCarry, carry)
	e.SetFlag(FlagOverflow, overflow)
	e.SetLogicalFlags(value)
}

// NasalDemons is the VM's corruption primitive: exactly one of four
// weighted outcomes fires on every call. It is intentional, user-visible
// undefined behavior, not an error path.
func (e *Emulator) NasalDemons() {
	switch roll := rand.Intn(100) + 1; {
	case roll <= 40:
		addr := uint16(rand.Intn(1 << 16))
		e.WriteBytesToMem(addr, []byte{byte(rand.Intn(256))})
	case roll <= 60:
		reg := RegisterName(rand.Intn(16))
		e.SetReg(reg, uint16(rand.Intn(1<<16)))
	case roll <= 85:
		reg1 := RegisterName(rand.Intn(16))
		reg2 := RegisterName(rand.Intn(16))
		v1 := e.GetRegMut(reg1)
		v2 := e.GetRegMut(reg2)
		e.SetReg(reg1, v2)
		e.SetReg(reg2, v1)
	default:
		addr := uint16(rand.Intn(1 << 16))
		e.WriteBytesToCode(addr, []byte{byte(rand.Intn(256))})
	}
}

// SyscallArgs is the observing-free, internal-read snapshot of R0..R5
// passed to a syscall's cost and effect functions.
type SyscallArgs struct {
	R0, R1, R2, R3, R4, R5 uint16
}

// GetSyscallArgs reads R0..R5 via internal (non-observing) reads, matching
// the source's syscall-argument capture semantics.
func (e *Emulator) GetSyscallArgs() SyscallArgs {
	return SyscallArgs{
		R0: e.getRegInternal(RegR0),
		R1: e.getRegInternal(RegR1),
		R2: e.getRegInternal(RegR2),
		R3: e.getRegInternal(RegR3),
		R4: e.getRegInternal(RegR4),
		R5: e.getRegInternal(RegR5),
	}
}

// SetSyscallReturnValue writes the syscall's result (or 0 on failure) into
// AX.
func (e *Emulator) SetSyscallReturnValue(value uint16) {
	e.SetReg(RegAX, value)
}

// IncrementTS advances the TS register by one; the kernel calls this once
// per process-tick.
func (e *Emulator) IncrementTS() {
	ts := e.getRegInternal(RegTS)
	e.SetReg(RegTS, ts+1)
}
