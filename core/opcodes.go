package core

import "log"

// instruction is one opcode's latency and execution effect. The zero
// value's execute is never called directly; opcodeTable is always fully
// populated by init() below.
type instruction struct {
	name    string
	latency int
	execute func(*Emulator)
}

const syscallOpcode = 0x0f

func isSleepOpcode(opcode uint8) bool {
	return opcode == 0x6f || opcode == 0x70 // Op, P
}

var opcodeTable [256]instruction

// opcodeCatalogue is the authoritative opcode → instruction mapping.
// Every opcode appears exactly once; init() below asserts that at
// startup and panics on any duplicate, the same discipline the kernel's
// syscall table uses.
var opcodeCatalogue = []struct {
	opcode uint8
	instr  instruction
}{
	// ---- data moves ----
	{0x23, instruction{"mov.reg8", 3, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v := e.GetRegMut(src) & 0xff
		e.SetReg(dst, v)
	}}},
	{0x22, instruction{"mov.reg16", 3, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		e.SetReg(dst, e.GetRegMut(src))
	}}},
	{0x21, instruction{"mov.imm8", 3, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		e.SetReg(dst, uint16(readU8(e)))
	}}},
	{0x20, instruction{"mov.imm16", 4, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		e.SetReg(dst, readU16(e))
	}}},
	{0x25, instruction{"load8", 24, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		addr := readAddressOperand(e)
		e.SetReg(dst, uint16(peekU8FromMem(e, addr)))
	}}},
	{0x24, instruction{"load16", 28, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		addr := readAddressOperand(e)
		e.SetReg(dst, peekU16FromMem(e, addr))
	}}},
	{0x29, instruction{"store.reg8", 22, func(e *Emulator) {
		addr := readAddressOperand(e)
		src, _ := readRegistersOperand(e)
		writeU8ToMem(e, addr, uint8(e.GetRegMut(src)))
	}}},
	{0x28, instruction{"store.reg16", 26, func(e *Emulator) {
		addr := readAddressOperand(e)
		src, _ := readRegistersOperand(e)
		writeU16ToMem(e, addr, e.GetRegMut(src))
	}}},
	{0x27, instruction{"store.imm8", 24, func(e *Emulator) {
		addr := readAddressOperand(e)
		writeU8ToMem(e, addr, readU8(e))
	}}},
	{0x26, instruction{"store.imm16", 28, func(e *Emulator) {
		addr := readAddressOperand(e)
		writeU16ToMem(e, addr, readU16(e))
	}}},
	{0x8d, instruction{"lea", 5, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		addr := readAddressOperand(e)
		e.SetReg(dst, addr)
	}}},
	{0x92, instruction{"xchg", 3, func(e *Emulator) {
		r1, r2 := readRegistersOperand(e)
		v1, v2 := e.GetRegMut(r1), e.GetRegMut(r2)
		e.SetReg(r1, v2)
		e.SetReg(r2, v1)
	}}},
	{0x62, instruction{"sex", 3, func(e *Emulator) {
		reg, _ := readRegistersOperand(e)
		v := int8(e.GetRegMut(reg))
		e.SetReg(reg, uint16(int16(v)))
	}}},

	// ---- conditional moves (reg16/imm16 forms) ----
	{0xd6, instruction{"cmova.reg16", 8, cmovReg16(func(e *Emulator) bool {
		return !e.GetFlag(FlagCarry) && !e.GetFlag(FlagZero)
	})}},
	{0xe6, instruction{"cmova.imm16", 9, cmovImm16(func(e *Emulator) bool {
		return !e.GetFlag(FlagCarry) && !e.GetFlag(FlagZero)
	})}},
	{0xd7, instruction{"cmovae.reg16", 8, cmovReg16(func(e *Emulator) bool {
		return !e.GetFlag(FlagCarry)
	})}},
	{0xe7, instruction{"cmovae.imm16", 9, cmovImm16(func(e *Emulator) bool {
		return !e.GetFlag(FlagCarry)
	})}},
	{0xd8, instruction{"cmovb.reg16", 8, cmovReg16(func(e *Emulator) bool {
		return e.GetFlag(FlagCarry)
	})}},
	{0xe8, instruction{"cmovb.imm16", 9, cmovImm16(func(e *Emulator) bool {
		return e.GetFlag(FlagCarry)
	})}},
	{0xd9, instruction{"cmovbe.reg16", 8, cmovReg16(func(e *Emulator) bool {
		return e.GetFlag(FlagCarry) || e.GetFlag(FlagZero)
	})}},
	{0xe9, instruction{"cmovbe.imm16", 9, cmovImm16(func(e *Emulator) bool {
		return e.GetFlag(FlagCarry) || e.GetFlag(FlagZero)
	})}},
	{0xda, instruction{"cmove.reg16", 8, cmovReg16(func(e *Emulator) bool {
		return e.GetFlag(FlagZero)
	})}},
	{0xea, instruction{"cmove.imm16", 9, cmovImm16(func(e *Emulator) bool {
		return e.GetFlag(FlagZero)
	})}},
	{0xdb, instruction{"cmovne.reg16", 8, cmovReg16(func(e *Emulator) bool {
		return !e.GetFlag(FlagZero)
	})}},
	{0xeb, instruction{"cmovne.imm16", 9, cmovImm16(func(e *Emulator) bool {
		return !e.GetFlag(FlagZero)
	})}},
	{0xdc, instruction{"cmovg.reg16", 8, cmovReg16(func(e *Emulator) bool {
		return !e.GetFlag(FlagZero) && e.GetFlag(FlagSign) == e.GetFlag(FlagOverflow)
	})}},
	{0xec, instruction{"cmovg.imm16", 9, cmovImm16(func(e *Emulator) bool {
		return !e.GetFlag(FlagZero) && e.GetFlag(FlagSign) == e.GetFlag(FlagOverflow)
	})}},
	{0xdd, instruction{"cmovge.reg16", 8, cmovReg16(func(e *Emulator) bool {
		return e.GetFlag(FlagSign) == e.GetFlag(FlagOverflow)
	})}},
	{0xed, instruction{"cmovge.imm16", 9, cmovImm16(func(e *Emulator) bool {
		return e.GetFlag(FlagSign) == e.GetFlag(FlagOverflow)
	})}},
	{0xde, instruction{"cmovl.reg16", 8, cmovReg16(func(e *Emulator) bool {
		return e.GetFlag(FlagSign) != e.GetFlag(FlagOverflow)
	})}},
	{0xee, instruction{"cmovl.imm16", 9, cmovImm16(func(e *Emulator) bool {
		return e.GetFlag(FlagSign) != e.GetFlag(FlagOverflow)
	})}},
	{0xdf, instruction{"cmovle.reg16", 8, cmovReg16(func(e *Emulator) bool {
		return e.GetFlag(FlagZero) || e.GetFlag(FlagSign) != e.GetFlag(FlagOverflow)
	})}},
	{0xef, instruction{"cmovle.imm16", 9, cmovImm16(func(e *Emulator) bool {
		return e.GetFlag(FlagZero) || e.GetFlag(FlagSign) != e.GetFlag(FlagOverflow)
	})}},

	// ---- stack ----
	{0x50, instruction{"push.reg8", 24, func(e *Emulator) {
		src, _ := readRegistersOperand(e)
		v := uint8(e.GetRegMut(src))
		sp := e.GetRegMut(RegSP)
		writeU8ToMem(e, sp, v)
		e.SetReg(RegSP, sp+1)
	}}},
	{0x51, instruction{"push.reg16", 28, func(e *Emulator) {
		src, _ := readRegistersOperand(e)
		v := e.GetRegMut(src)
		sp := e.GetRegMut(RegSP)
		writeU16ToMem(e, sp, v)
		e.SetReg(RegSP, sp+2)
	}}},
	{0x52, instruction{"push.imm8", 26, func(e *Emulator) {
		v := readU8(e)
		sp := e.GetRegMut(RegSP)
		writeU8ToMem(e, sp, v)
		e.SetReg(RegSP, sp+1)
	}}},
	{0x53, instruction{"push.imm16", 30, func(e *Emulator) {
		v := readU16(e)
		sp := e.GetRegMut(RegSP)
		writeU16ToMem(e, sp, v)
		e.SetReg(RegSP, sp+2)
	}}},
	{0x60, instruction{"pop8", 26, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		sp := e.GetRegMut(RegSP)
		e.SetReg(RegSP, sp-1)
		v := peekU8FromMem(e, sp-1)
		e.SetReg(dst, uint16(v))
	}}},
	{0x61, instruction{"pop16", 30, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		sp := e.GetRegMut(RegSP)
		e.SetReg(RegSP, sp-2)
		v := peekU16FromMem(e, sp-2)
		e.SetReg(dst, v)
	}}},

	// ---- block memory ops ----
	{0x71, instruction{"memcpy", 512, func(e *Emulator) {
		nreg, _ := readRegistersOperand(e)
		n := (e.GetRegMut(nreg) & 0xff) + 1
		dst := readAddressOperand(e)
		src := readAddressOperand(e)
		if dst-src < n || src-dst < n {
			e.NasalDemons()
			return
		}
		bytes := e.PeekBytesFromMem(src, int(n))
		e.WriteBytesToMem(dst, bytes)
	}}},
	{0x81, instruction{"memset.reg", 384, func(e *Emulator) {
		nreg, _ := readRegistersOperand(e)
		n := (e.GetRegMut(nreg) & 0xff) + 1
		dst := readAddressOperand(e)
		breg, _ := readRegistersOperand(e)
		b := uint8(e.GetRegMut(breg))
		bytes := make([]byte, n)
		for i := range bytes {
			bytes[i] = b
		}
		e.WriteBytesToMem(dst, bytes)
	}}},
	{0x82, instruction{"memset.imm8", 384, func(e *Emulator) {
		nreg, _ := readRegistersOperand(e)
		n := (e.GetRegMut(nreg) & 0xff) + 1
		dst := readAddressOperand(e)
		b := readU8(e)
		bytes := make([]byte, n)
		for i := range bytes {
			bytes[i] = b
		}
		e.WriteBytesToMem(dst, bytes)
	}}},

	// ---- arithmetic ----
	{0xc4, instruction{"add.reg16", 4, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v1, v2 := e.GetRegMut(dst), e.GetRegMut(src)
		sum, carry := addOverflowing(v1, v2)
		overflow := addOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(sum, carry, overflow)
		e.SetReg(dst, sum)
	}}},
	{0xc5, instruction{"add.imm8", 4, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := uint16(int16(readI8(e)))
		sum, carry := addOverflowing(v1, v2)
		overflow := addOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(sum, carry, overflow)
		e.SetReg(dst, sum)
	}}},
	{0xc6, instruction{"add.imm16", 4, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := readU16(e)
		sum, carry := addOverflowing(v1, v2)
		overflow := addOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(sum, carry, overflow)
		e.SetReg(dst, sum)
	}}},
	{0xb4, instruction{"sub.reg16", 4, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v1, v2 := e.GetRegMut(dst), e.GetRegMut(src)
		diff, carry := subOverflowing(v1, v2)
		overflow := subOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(diff, carry, overflow)
		e.SetReg(dst, diff)
	}}},
	{0xb5, instruction{"sub.imm8", 4, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := uint16(int16(readI8(e)))
		diff, carry := subOverflowing(v1, v2)
		overflow := subOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(diff, carry, overflow)
		e.SetReg(dst, diff)
	}}},
	{0xb6, instruction{"sub.imm16", 4, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := readU16(e)
		diff, carry := subOverflowing(v1, v2)
		overflow := subOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(diff, carry, overflow)
		e.SetReg(dst, diff)
	}}},

	{0xa4, instruction{"mul.reg16", 18, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		src, _ := readRegistersOperand(e)
		v1, v2 := e.GetRegMut(dst1), e.GetRegMut(src)
		lo, hi := wideningMul(v1, v2)
		e.SetArithmeticFlags(lo, hi != 0, hi != 0)
		e.SetReg(dst1, lo)
		e.SetReg(dst2, hi)
	}}},
	{0xa5, instruction{"mul.imm8", 16, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		v1 := e.GetRegMut(dst1)
		v2 := uint16(readU8(e))
		lo, hi := wideningMul(v1, v2)
		e.SetArithmeticFlags(lo, hi != 0, hi != 0)
		e.SetReg(dst1, lo)
		e.SetReg(dst2, hi)
	}}},
	{0xa6, instruction{"mul.imm16", 18, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		v1 := e.GetRegMut(dst1)
		v2 := readU16(e)
		lo, hi := wideningMul(v1, v2)
		e.SetArithmeticFlags(lo, hi != 0, hi != 0)
		e.SetReg(dst1, lo)
		e.SetReg(dst2, hi)
	}}},

	{0x94, instruction{"mullo.reg16", 12, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v1, v2 := e.GetRegMut(dst), e.GetRegMut(src)
		prod, carry := mulOverflowing(v1, v2)
		overflow := mulOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(prod, carry, overflow)
		e.SetReg(dst, prod)
	}}},
	{0x95, instruction{"mullo.imm8", 10, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := uint16(readU8(e))
		prod, carry := mulOverflowing(v1, v2)
		overflow := mulOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(prod, carry, overflow)
		e.SetReg(dst, prod)
	}}},
	{0x96, instruction{"mullo.imm16", 12, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := readU16(e)
		prod, carry := mulOverflowing(v1, v2)
		overflow := mulOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(prod, carry, overflow)
		e.SetReg(dst, prod)
	}}},

	{0x84, instruction{"imul.reg16", 18, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		src, _ := readRegistersOperand(e)
		v1 := int16(e.GetRegMut(dst1))
		v2 := int16(e.GetRegMut(src))
		prod := int32(v1) * int32(v2)
		overflow := mulOverflowSigned(v1, v2)
		lo, hi := uint16(prod), uint16(prod>>16)
		e.SetArithmeticFlags(lo, overflow, overflow)
		e.SetReg(dst1, lo)
		e.SetReg(dst2, hi)
	}}},
	{0x85, instruction{"imul.imm8", 16, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		v1 := int16(e.GetRegMut(dst1))
		v2 := int16(readI8(e))
		prod := int32(v1) * int32(v2)
		overflow := mulOverflowSigned(v1, v2)
		lo, hi := uint16(prod), uint16(prod>>16)
		e.SetArithmeticFlags(lo, overflow, overflow)
		e.SetReg(dst1, lo)
		e.SetReg(dst2, hi)
	}}},
	{0x86, instruction{"imul.imm16", 18, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		v1 := int16(e.GetRegMut(dst1))
		v2 := int16(readU16(e))
		prod := int32(v1) * int32(v2)
		overflow := mulOverflowSigned(v1, v2)
		lo, hi := uint16(prod), uint16(prod>>16)
		e.SetArithmeticFlags(lo, overflow, overflow)
		e.SetReg(dst1, lo)
		e.SetReg(dst2, hi)
	}}},

	{0x74, instruction{"div.reg16", 30, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		src, _ := readRegistersOperand(e)
		v1, v2 := e.GetRegMut(dst1), e.GetRegMut(src)
		if v2 == 0 {
			e.NasalDemons()
			return
		}
		e.SetReg(dst1, v1/v2)
		e.SetReg(dst2, v1%v2)
	}}},
	{0x75, instruction{"div.imm8", 24, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		v1 := e.GetRegMut(dst1)
		v2 := uint16(readU8(e))
		if v2 == 0 {
			e.NasalDemons()
			return
		}
		e.SetReg(dst1, v1/v2)
		e.SetReg(dst2, v1%v2)
	}}},
	{0x76, instruction{"div.imm16", 30, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		v1 := e.GetRegMut(dst1)
		v2 := readU16(e)
		if v2 == 0 {
			e.NasalDemons()
			return
		}
		e.SetReg(dst1, v1/v2)
		e.SetReg(dst2, v1%v2)
	}}},

	{0x64, instruction{"idiv.reg16", 30, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		src, _ := readRegistersOperand(e)
		v1 := int16(e.GetRegMut(dst1))
		v2 := int16(e.GetRegMut(src))
		if v2 == 0 {
			e.NasalDemons()
			return
		}
		e.SetReg(dst1, uint16(divEuclid16(v1, v2)))
		e.SetReg(dst2, uint16(remEuclid16(v1, v2)))
	}}},
	{0x65, instruction{"idiv.imm8", 24, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		v1 := int16(e.GetRegMut(dst1))
		v2 := int16(readI8(e))
		if v2 == 0 {
			e.NasalDemons()
			return
		}
		e.SetReg(dst1, uint16(divEuclid16(v1, v2)))
		e.SetReg(dst2, uint16(remEuclid16(v1, v2)))
	}}},
	{0x66, instruction{"idiv.imm16", 30, func(e *Emulator) {
		dst1, dst2 := readRegistersOperand(e)
		v1 := int16(e.GetRegMut(dst1))
		v2 := int16(readU16(e))
		if v2 == 0 {
			e.NasalDemons()
			return
		}
		e.SetReg(dst1, uint16(divEuclid16(v1, v2)))
		e.SetReg(dst2, uint16(remEuclid16(v1, v2)))
	}}},

	{0x7f, instruction{"neg", 3, func(e *Emulator) {
		reg, _ := readRegistersOperand(e)
		v := e.GetRegMut(reg)
		result, carry := negOverflowing(v)
		overflow := negOverflowSigned(int16(v))
		e.SetArithmeticFlags(result, carry, overflow)
		e.SetReg(reg, result)
	}}},
	{0x8f, instruction{"abs", 3, func(e *Emulator) {
		reg, _ := readRegistersOperand(e)
		v := int16(e.GetRegMut(reg))
		result, overflow := absOverflowing(v)
		e.SetArithmeticFlags(uint16(result), overflow, overflow)
		e.SetReg(reg, uint16(result))
	}}},

	{0x54, instruction{"cmp.reg16", 4, func(e *Emulator) {
		r1, r2 := readRegistersOperand(e)
		v1, v2 := e.GetRegMut(r1), e.GetRegMut(r2)
		sum, carry := subOverflowing(v1, v2)
		overflow := subOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(sum, carry, overflow)
	}}},
	{0x55, instruction{"cmp.imm8", 4, func(e *Emulator) {
		reg, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(reg)
		v2 := uint16(int16(readI8(e)))
		sum, carry := subOverflowing(v1, v2)
		overflow := subOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(sum, carry, overflow)
	}}},
	{0x56, instruction{"cmp.imm16", 4, func(e *Emulator) {
		reg, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(reg)
		v2 := readU16(e)
		sum, carry := subOverflowing(v1, v2)
		overflow := subOverflowSigned(int16(v1), int16(v2))
		e.SetArithmeticFlags(sum, carry, overflow)
	}}},

	// ---- logical ----
	{0x80, instruction{"not", 3, func(e *Emulator) {
		reg, _ := readRegistersOperand(e)
		e.SetReg(reg, ^e.GetRegMut(reg))
	}}},
	{0x37, instruction{"and.reg16", 4, logicalReg16(func(a, b uint16) uint16 { return a & b })}},
	{0x36, instruction{"and.imm8", 4, logicalImm8(func(a, b uint16) uint16 { return a & b })}},
	{0x46, instruction{"and.imm16", 4, logicalImm16(func(a, b uint16) uint16 { return a & b })}},
	{0x48, instruction{"or.reg16", 4, logicalReg16(func(a, b uint16) uint16 { return a | b })}},
	{0x47, instruction{"or.imm8", 4, logicalImm8(func(a, b uint16) uint16 { return a | b })}},
	{0x57, instruction{"or.imm16", 4, logicalImm16(func(a, b uint16) uint16 { return a | b })}},
	{0x59, instruction{"xor.reg16", 4, logicalReg16(func(a, b uint16) uint16 { return a ^ b })}},
	{0x58, instruction{"xor.imm8", 4, logicalImm8(func(a, b uint16) uint16 { return a ^ b })}},
	{0x68, instruction{"xor.imm16", 4, logicalImm16(func(a, b uint16) uint16 { return a ^ b })}},
	{0x6a, instruction{"nand.reg16", 4, logicalReg16(func(a, b uint16) uint16 { return ^(a & b) })}},
	{0x69, instruction{"nand.imm8", 4, logicalImm8(func(a, b uint16) uint16 { return ^(a & b) })}},
	{0x79, instruction{"nand.imm16", 4, logicalImm16(func(a, b uint16) uint16 { return ^(a & b) })}},
	{0x7b, instruction{"nor.reg16", 4, logicalReg16(func(a, b uint16) uint16 { return ^(a | b) })}},
	{0x7a, instruction{"nor.imm8", 4, logicalImm8(func(a, b uint16) uint16 { return ^(a | b) })}},
	{0x8a, instruction{"nor.imm16", 4, logicalImm16(func(a, b uint16) uint16 { return ^(a | b) })}},
	{0x8c, instruction{"xnor.reg16", 4, logicalReg16(func(a, b uint16) uint16 { return ^(a ^ b) })}},
	{0x8b, instruction{"xnor.imm8", 4, logicalImm8(func(a, b uint16) uint16 { return ^(a ^ b) })}},
	{0x9b, instruction{"xnor.imm16", 4, logicalImm16(func(a, b uint16) uint16 { return ^(a ^ b) })}},

	{0x9d, instruction{"shr.reg16", 4, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := e.GetRegMut(src)
		if v2 >= 16 {
			e.NasalDemons()
			return
		}
		result := v1 >> v2
		e.SetLogicalFlags(result)
		e.SetReg(dst, result)
	}}},
	{0x9c, instruction{"shr.imm8", 4, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := readU8(e)
		if v2 >= 16 {
			e.NasalDemons()
			return
		}
		result := v1 >> v2
		e.SetLogicalFlags(result)
		e.SetReg(dst, result)
	}}},
	{0xae, instruction{"sar.reg16", 4, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v1 := int16(e.GetRegMut(dst))
		v2 := e.GetRegMut(src)
		if v2 >= 16 {
			e.NasalDemons()
			return
		}
		result := v1 >> v2
		e.SetLogicalFlags(uint16(result))
		e.SetReg(dst, uint16(result))
	}}},
	{0xad, instruction{"sar.imm8", 4, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := int16(e.GetRegMut(dst))
		v2 := readU8(e)
		if v2 >= 16 {
			e.NasalDemons()
			return
		}
		result := v1 >> v2
		e.SetLogicalFlags(uint16(result))
		e.SetReg(dst, uint16(result))
	}}},
	{0xbf, instruction{"shl.reg16", 4, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := e.GetRegMut(src)
		if v2 >= 16 {
			e.NasalDemons()
			return
		}
		result := v1 << v2
		e.SetLogicalFlags(result)
		e.SetReg(dst, result)
	}}},
	{0xbe, instruction{"shl.imm8", 4, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := readU8(e)
		if v2 >= 16 {
			e.NasalDemons()
			return
		}
		result := v1 << v2
		e.SetLogicalFlags(result)
		e.SetReg(dst, result)
	}}},

	{0xf0, instruction{"ctz", 4, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v := e.GetRegMut(src)
		e.SetReg(dst, uint16(trailingZeros16(v)))
	}}},
	{0xe0, instruction{"clz", 4, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v := e.GetRegMut(src)
		e.SetReg(dst, uint16(leadingZeros16(v)))
	}}},
	{0xd0, instruction{"popcnt", 4, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v := e.GetRegMut(src)
		e.SetReg(dst, uint16(popCount16(v)))
	}}},

	{0xc0, instruction{"rol.reg16", 4, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v1, v2 := e.GetRegMut(dst), e.GetRegMut(src)
		e.SetReg(dst, rotateLeft16(v1, uint32(v2)))
	}}},
	{0xc1, instruction{"rol.imm8", 4, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := readU8(e)
		e.SetReg(dst, rotateLeft16(v1, uint32(v2)))
	}}},
	{0xb0, instruction{"ror.reg16", 4, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v1, v2 := e.GetRegMut(dst), e.GetRegMut(src)
		e.SetReg(dst, rotateRight16(v1, uint32(v2)))
	}}},
	{0xb1, instruction{"ror.imm8", 4, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := readU8(e)
		e.SetReg(dst, rotateRight16(v1, uint32(v2)))
	}}},

	{0xa0, instruction{"bswap", 3, func(e *Emulator) {
		reg, _ := readRegistersOperand(e)
		e.SetReg(reg, swapBytes16(e.GetRegMut(reg)))
	}}},

	{0x90, instruction{"pext.reg16", 4, func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		v1, v2 := e.GetRegMut(dst), e.GetRegMut(src)
		e.SetReg(dst, pext16(v1, v2))
	}}},
	{0x91, instruction{"pext.imm16", 4, func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		v1 := e.GetRegMut(dst)
		v2 := readU16(e)
		e.SetReg(dst, pext16(v1, v2))
	}}},

	// ---- control flow ----
	{0xfe, instruction{"call.reg", 26, func(e *Emulator) {
		src, _ := readRegistersOperand(e)
		target := e.GetRegMut(src)
		pc := e.GetRegMut(RegPC)
		sp := e.GetRegMut(RegSP)
		writeU16ToMem(e, sp, pc)
		e.SetReg(RegSP, sp+2)
		e.SetReg(RegPC, target)
	}}},
	{0xfd, instruction{"call.imm16", 28, func(e *Emulator) {
		target := readU16(e)
		pc := e.GetRegMut(RegPC)
		sp := e.GetRegMut(RegSP)
		writeU16ToMem(e, sp, pc)
		e.SetReg(RegSP, sp+2)
		e.SetReg(RegPC, target)
	}}},
	{0xc3, instruction{"ret", 24, func(e *Emulator) {
		sp := e.GetRegMut(RegSP)
		e.SetReg(RegSP, sp-2)
		target := peekU16FromMem(e, sp-2)
		e.SetReg(RegPC, target)
	}}},

	// ---- misc ----
	{0x6e, instruction{"nop", 1, func(e *Emulator) {
		e.SetFlag(FlagSleep, true)
	}}},
	{0x6f, instruction{"op", 1, func(e *Emulator) {
		if !e.GetFlag(FlagSleep) {
			e.NasalDemons()
		}
	}}},
	{0x70, instruction{"p", 1, func(e *Emulator) {
		if !e.GetFlag(FlagSleep) {
			e.NasalDemons()
			return
		}
		e.SetFlag(FlagSleep, false)
	}}},
	{syscallOpcode, instruction{"syscall", 100, func(*Emulator) {}}},
	{0xff, instruction{"reserved", 420, func(e *Emulator) {
		e.NasalDemons()
	}}},
}

// cmov{Reg16,Imm16} build a conditional-move execute function: when the
// condition is false the operand bytes are still skipped (PC advances as
// if the move had been decoded) rather than executed.
func cmovReg16(cond func(*Emulator) bool) func(*Emulator) {
	mov := opcodeBody(0x22)
	return func(e *Emulator) {
		if cond(e) {
			mov(e)
		} else {
			e.incrementPC(1)
		}
	}
}

func cmovImm16(cond func(*Emulator) bool) func(*Emulator) {
	mov := opcodeBody(0x20)
	return func(e *Emulator) {
		if cond(e) {
			mov(e)
		} else {
			e.incrementPC(3)
		}
	}
}

// opcodeBody resolves to the execute closure of another catalogue entry,
// looked up lazily since opcodeTable is only populated by init(), after
// the catalogue literal that calls this has been built.
func opcodeBody(opcode uint8) func(*Emulator) {
	return func(e *Emulator) {
		opcodeTable[opcode].execute(e)
	}
}

func logicalReg16(op func(a, b uint16) uint16) func(*Emulator) {
	return func(e *Emulator) {
		dst, src := readRegistersOperand(e)
		result := op(e.GetRegMut(dst), e.GetRegMut(src))
		e.SetLogicalFlags(result)
		e.SetReg(dst, result)
	}
}

func logicalImm8(op func(a, b uint16) uint16) func(*Emulator) {
	return func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		result := op(e.GetRegMut(dst), uint16(readU8(e)))
		e.SetLogicalFlags(result)
		e.SetReg(dst, result)
	}
}

func logicalImm16(op func(a, b uint16) uint16) func(*Emulator) {
	return func(e *Emulator) {
		dst, _ := readRegistersOperand(e)
		result := op(e.GetRegMut(dst), readU16(e))
		e.SetLogicalFlags(result)
		e.SetReg(dst, result)
	}
}

func trailingZeros16(v uint16) int {
	if v == 0 {
		return 16
	}
	n := 0
	for v&1 == 0 {
		v >>= 1
		n++
	}
	return n
}

func leadingZeros16(v uint16) int {
	if v == 0 {
		return 16
	}
	n := 0
	for v&0x8000 == 0 {
		v <<= 1
		n++
	}
	return n
}

func popCount16(v uint16) int {
	n := 0
	for v != 0 {
		n += int(v & 1)
		v >>= 1
	}
	return n
}

// pext16 is parallel-bits-extract: for each set bit of mask from MSB to
// LSB, the corresponding source bit is shifted into the low end of the
// result.
func pext16(value, mask uint16) uint16 {
	var result uint16
	for idx := 15; idx >= 0; idx-- {
		if mask&(1<<uint(idx)) != 0 {
			result = result<<1 | (value>>uint(idx))&1
		}
	}
	return result
}

func init() {
	var used [256]bool
	for _, entry := range opcodeCatalogue {
		if used[entry.opcode] {
			log.Panicf("opcodes: duplicate opcode 0x%02x (%s)", entry.opcode, entry.instr.name)
		}
		used[entry.opcode] = true
		opcodeTable[entry.opcode] = entry.instr
	}
	reserved := instruction{"reserved", 420, func(e *Emulator) { e.NasalDemons() }}
	for i, u := range used {
		if !u {
			opcodeTable[i] = reserved
		}
	}
}
