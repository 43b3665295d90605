package rt

import "math"

// step executes exactly one bytecode instruction (or, for impdep1 and the
// clinit-triggering reference opcodes, an instruction plus whatever frame
// pushes it causes) on frame, already positioned just past the opcode byte
// (and past the wide-prefix byte, with wide set, if one preceded it).
// startPC is the offset of the opcode itself, needed both for relative
// branch targets and for reverting the frame when a class-init is
// triggered mid-instruction.
//
// Returns (value, hasValue, returned, err): returned is true for every
// return-family opcode (including bare "return", with hasValue false);
// the caller pops the frame and, if hasValue, pushes value onto the new
// top frame's operand stack.
func (vm *VM) step(frame *Frame, op byte, wide bool, startPC int) (Value, bool, bool, error) {
	switch op {
	case OpNop:

	case OpAconstNull:
		frame.Push(NullVal())
	case OpIconstM1, OpIconst0, OpIconst1, OpIconst2, OpIconst3, OpIconst4, OpIconst5:
		frame.Push(IntVal(int32(op) - OpIconst0))
	case OpLconst0, OpLconst1:
		frame.Push(LongVal(int64(op - OpLconst0)))
	case OpFconst0, OpFconst1, OpFconst2:
		frame.Push(FloatVal(float32(op - OpFconst0)))
	case OpDconst0, OpDconst1:
		frame.Push(DoubleVal(float64(op - OpDconst0)))
	case OpBipush:
		frame.Push(IntVal(int32(frame.ReadI8())))
	case OpSipush:
		frame.Push(IntVal(int32(frame.ReadI16())))
	case OpLdc:
		return Value{}, false, false, vm.execLdc(frame, uint16(frame.ReadU8()))
	case OpLdcW:
		return Value{}, false, false, vm.execLdc(frame, frame.ReadU16())
	case OpLdc2W:
		return Value{}, false, false, vm.execLdc(frame, frame.ReadU16())

	case OpIload, OpLload, OpFload, OpDload, OpAload:
		frame.Push(frame.GetLocal(localIndex(frame, wide)))
	case OpIload0, OpIload1, OpIload2, OpIload3:
		frame.Push(frame.GetLocal(int(op - OpIload0)))
	case OpLload0, OpLload1, OpLload2, OpLload3:
		frame.Push(frame.GetLocal(int(op - OpLload0)))
	case OpFload0, OpFload1, OpFload2, OpFload3:
		frame.Push(frame.GetLocal(int(op - OpFload0)))
	case OpDload0, OpDload1, OpDload2, OpDload3:
		frame.Push(frame.GetLocal(int(op - OpDload0)))
	case OpAload0, OpAload1, OpAload2, OpAload3:
		frame.Push(frame.GetLocal(int(op - OpAload0)))

	case OpIaload, OpLaload, OpFaload, OpDaload, OpAaload, OpBaload, OpCaload, OpSaload:
		idx := frame.Pop().Int()
		arr, err := vm.popArray(frame)
		if err != nil {
			return Value{}, false, false, err
		}
		v, err := loadArrayElement(arr, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		frame.Push(v)

	case OpIstore, OpLstore, OpFstore, OpDstore, OpAstore:
		frame.SetLocal(localIndex(frame, wide), frame.Pop())
	case OpIstore0, OpIstore1, OpIstore2, OpIstore3:
		frame.SetLocal(int(op-OpIstore0), frame.Pop())
	case OpLstore0, OpLstore1, OpLstore2, OpLstore3:
		frame.SetLocal(int(op-OpLstore0), frame.Pop())
	case OpFstore0, OpFstore1, OpFstore2, OpFstore3:
		frame.SetLocal(int(op-OpFstore0), frame.Pop())
	case OpDstore0, OpDstore1, OpDstore2, OpDstore3:
		frame.SetLocal(int(op-OpDstore0), frame.Pop())
	case OpAstore0, OpAstore1, OpAstore2, OpAstore3:
		frame.SetLocal(int(op-OpAstore0), frame.Pop())

	case OpIastore, OpLastore, OpFastore, OpDastore, OpAastore, OpBastore, OpCastore, OpSastore:
		v := frame.Pop()
		idx := frame.Pop().Int()
		arr, err := vm.popArray(frame)
		if err != nil {
			return Value{}, false, false, err
		}
		if err := storeArrayElement(arr, idx, v); err != nil {
			return Value{}, false, false, err
		}

	case OpPop:
		frame.Pop()
	case OpPop2:
		frame.Pop()
		frame.Pop()
	case OpDup:
		frame.dup()
	case OpDupX1:
		frame.dupX1()
	case OpDupX2:
		frame.dupX2()
	case OpDup2:
		frame.dup2()
	case OpDup2X1:
		frame.dup2X1()
	case OpDup2X2:
		frame.dup2X2()
	case OpSwap:
		frame.swap()

	case OpIadd:
		b, a := frame.Pop().Int(), frame.Pop().Int()
		frame.Push(IntVal(a + b))
	case OpLadd:
		b, a := frame.Pop().Long(), frame.Pop().Long()
		frame.Push(LongVal(a + b))
	case OpFadd:
		b, a := frame.Pop().Float(), frame.Pop().Float()
		frame.Push(FloatVal(a + b))
	case OpDadd:
		b, a := frame.Pop().Double(), frame.Pop().Double()
		frame.Push(DoubleVal(a + b))
	case OpIsub:
		b, a := frame.Pop().Int(), frame.Pop().Int()
		frame.Push(IntVal(a - b))
	case OpLsub:
		b, a := frame.Pop().Long(), frame.Pop().Long()
		frame.Push(LongVal(a - b))
	case OpFsub:
		b, a := frame.Pop().Float(), frame.Pop().Float()
		frame.Push(FloatVal(a - b))
	case OpDsub:
		b, a := frame.Pop().Double(), frame.Pop().Double()
		frame.Push(DoubleVal(a - b))
	case OpImul:
		b, a := frame.Pop().Int(), frame.Pop().Int()
		frame.Push(IntVal(a * b))
	case OpLmul:
		b, a := frame.Pop().Long(), frame.Pop().Long()
		frame.Push(LongVal(a * b))
	case OpFmul:
		b, a := frame.Pop().Float(), frame.Pop().Float()
		frame.Push(FloatVal(a * b))
	case OpDmul:
		b, a := frame.Pop().Double(), frame.Pop().Double()
		frame.Push(DoubleVal(a * b))
	case OpIdiv:
		b, a := frame.Pop().Int(), frame.Pop().Int()
		if b == 0 {
			return Value{}, false, false, throwNamed("java.lang.ArithmeticException", "/ by zero")
		}
		frame.Push(IntVal(a / b))
	case OpLdiv:
		b, a := frame.Pop().Long(), frame.Pop().Long()
		if b == 0 {
			return Value{}, false, false, throwNamed("java.lang.ArithmeticException", "/ by zero")
		}
		frame.Push(LongVal(a / b))
	case OpFdiv:
		b, a := frame.Pop().Float(), frame.Pop().Float()
		frame.Push(FloatVal(a / b))
	case OpDdiv:
		b, a := frame.Pop().Double(), frame.Pop().Double()
		frame.Push(DoubleVal(a / b))
	case OpIrem:
		b, a := frame.Pop().Int(), frame.Pop().Int()
		if b == 0 {
			return Value{}, false, false, throwNamed("java.lang.ArithmeticException", "/ by zero")
		}
		frame.Push(IntVal(a % b))
	case OpLrem:
		b, a := frame.Pop().Long(), frame.Pop().Long()
		if b == 0 {
			return Value{}, false, false, throwNamed("java.lang.ArithmeticException", "/ by zero")
		}
		frame.Push(LongVal(a % b))
	case OpFrem:
		b, a := frame.Pop().Float(), frame.Pop().Float()
		frame.Push(FloatVal(float32(math.Mod(float64(a), float64(b)))))
	case OpDrem:
		b, a := frame.Pop().Double(), frame.Pop().Double()
		frame.Push(DoubleVal(math.Mod(a, b)))
	case OpIneg:
		frame.Push(IntVal(-frame.Pop().Int()))
	case OpLneg:
		frame.Push(LongVal(-frame.Pop().Long()))
	case OpFneg:
		frame.Push(FloatVal(-frame.Pop().Float()))
	case OpDneg:
		frame.Push(DoubleVal(-frame.Pop().Double()))
	case OpIshl:
		s, a := frame.Pop().Int(), frame.Pop().Int()
		frame.Push(IntVal(a << (uint32(s) & 0x1F)))
	case OpLshl:
		s, a := frame.Pop().Int(), frame.Pop().Long()
		frame.Push(LongVal(a << (uint32(s) & 0x3F)))
	case OpIshr:
		s, a := frame.Pop().Int(), frame.Pop().Int()
		frame.Push(IntVal(a >> (uint32(s) & 0x1F)))
	case OpLshr:
		s, a := frame.Pop().Int(), frame.Pop().Long()
		frame.Push(LongVal(a >> (uint32(s) & 0x3F)))
	case OpIushr:
		s, a := frame.Pop().Int(), frame.Pop().Int()
		frame.Push(IntVal(int32(uint32(a) >> (uint32(s) & 0x1F))))
	case OpLushr:
		s, a := frame.Pop().Int(), frame.Pop().Long()
		frame.Push(LongVal(int64(uint64(a) >> (uint32(s) & 0x3F))))
	case OpIand:
		b, a := frame.Pop().Int(), frame.Pop().Int()
		frame.Push(IntVal(a & b))
	case OpLand:
		b, a := frame.Pop().Long(), frame.Pop().Long()
		frame.Push(LongVal(a & b))
	case OpIor:
		b, a := frame.Pop().Int(), frame.Pop().Int()
		frame.Push(IntVal(a | b))
	case OpLor:
		b, a := frame.Pop().Long(), frame.Pop().Long()
		frame.Push(LongVal(a | b))
	case OpIxor:
		b, a := frame.Pop().Int(), frame.Pop().Int()
		frame.Push(IntVal(a ^ b))
	case OpLxor:
		b, a := frame.Pop().Long(), frame.Pop().Long()
		frame.Push(LongVal(a ^ b))
	case OpIinc:
		idx := localIndex(frame, wide)
		var delta int32
		if wide {
			delta = int32(frame.ReadI16())
		} else {
			delta = int32(frame.ReadI8())
		}
		frame.SetLocal(idx, IntVal(frame.GetLocal(idx).Int()+delta))

	case OpI2l:
		frame.Push(LongVal(int64(frame.Pop().Int())))
	case OpI2f:
		frame.Push(FloatVal(float32(frame.Pop().Int())))
	case OpI2d:
		frame.Push(DoubleVal(float64(frame.Pop().Int())))
	case OpL2i:
		frame.Push(IntVal(int32(frame.Pop().Long())))
	case OpL2f:
		frame.Push(FloatVal(float32(frame.Pop().Long())))
	case OpL2d:
		frame.Push(DoubleVal(float64(frame.Pop().Long())))
	case OpF2i:
		frame.Push(IntVal(float32ToInt32(frame.Pop().Float())))
	case OpF2l:
		frame.Push(LongVal(float32ToInt64(frame.Pop().Float())))
	case OpF2d:
		frame.Push(DoubleVal(float64(frame.Pop().Float())))
	case OpD2i:
		frame.Push(IntVal(float64ToInt32(frame.Pop().Double())))
	case OpD2l:
		frame.Push(LongVal(float64ToInt64(frame.Pop().Double())))
	case OpD2f:
		frame.Push(FloatVal(float32(frame.Pop().Double())))
	case OpI2b:
		frame.Push(IntVal(int32(int8(frame.Pop().Int()))))
	case OpI2c:
		frame.Push(IntVal(int32(uint16(frame.Pop().Int()))))
	case OpI2s:
		frame.Push(IntVal(int32(int16(frame.Pop().Int()))))

	case OpLcmp:
		b, a := frame.Pop().Long(), frame.Pop().Long()
		frame.Push(IntVal(cmp64(a, b)))
	case OpFcmpl:
		b, a := frame.Pop().Float(), frame.Pop().Float()
		frame.Push(IntVal(fcmp(float64(a), float64(b), -1)))
	case OpFcmpg:
		b, a := frame.Pop().Float(), frame.Pop().Float()
		frame.Push(IntVal(fcmp(float64(a), float64(b), 1)))
	case OpDcmpl:
		b, a := frame.Pop().Double(), frame.Pop().Double()
		frame.Push(IntVal(fcmp(a, b, -1)))
	case OpDcmpg:
		b, a := frame.Pop().Double(), frame.Pop().Double()
		frame.Push(IntVal(fcmp(a, b, 1)))

	case OpIfeq, OpIfne, OpIflt, OpIfge, OpIfgt, OpIfle:
		v := frame.Pop().Int()
		branchIf(frame, startPC, intCond(op, OpIfeq, v, 0))
	case OpIfIcmpeq, OpIfIcmpne, OpIfIcmplt, OpIfIcmpge, OpIfIcmpgt, OpIfIcmple:
		b, a := frame.Pop().Int(), frame.Pop().Int()
		branchIf(frame, startPC, intCond(op, OpIfIcmpeq, a, b))
	case OpIfAcmpeq, OpIfAcmpne:
		b, a := frame.Pop(), frame.Pop()
		eq := a.Ref == b.Ref
		if op == OpIfAcmpne {
			eq = !eq
		}
		branchIf(frame, startPC, eq)
	case OpIfnull, OpIfnonnull:
		v := frame.Pop()
		branchIf(frame, startPC, v.IsNull() == (op == OpIfnull))

	case OpGoto:
		frame.PC = startPC + int(frame.ReadI16())
	case OpGotoW:
		frame.PC = startPC + int(frame.ReadI32())
	case OpJsr:
		ret := frame.PC + 2
		frame.PC = startPC + int(frame.ReadI16())
		frame.Push(IntVal(int32(ret)))
	case OpJsrW:
		ret := frame.PC + 4
		frame.PC = startPC + int(frame.ReadI32())
		frame.Push(IntVal(int32(ret)))
	case OpRet:
		idx := localIndex(frame, wide)
		frame.PC = int(frame.GetLocal(idx).Int())
	case OpTableswitch:
		vm.execTableswitch(frame, startPC)
	case OpLookupswitch:
		vm.execLookupswitch(frame, startPC)

	case OpIreturn, OpFreturn:
		return frame.Pop(), true, true, nil
	case OpLreturn, OpDreturn:
		return frame.Pop(), true, true, nil
	case OpAreturn:
		return frame.Pop(), true, true, nil
	case OpReturn:
		return Value{}, false, true, nil

	default:
		return vm.stepRef(frame, op, startPC)
	}
	return Value{}, false, false, nil
}

// localIndex reads a local-variable index operand: 16-bit under a wide
// prefix, 8-bit otherwise.
func localIndex(frame *Frame, wide bool) int {
	if wide {
		return int(frame.ReadU16())
	}
	return int(frame.ReadU8())
}

func branchIf(frame *Frame, startPC int, taken bool) {
	offset := frame.ReadI16()
	if taken {
		frame.PC = startPC + int(offset)
	}
}

func intCond(op byte, base byte, a, b int32) bool {
	switch op - base {
	case 0:
		return a == b
	case 1:
		return a != b
	case 2:
		return a < b
	case 3:
		return a >= b
	case 4:
		return a > b
	case 5:
		return a <= b
	}
	return false
}

func cmp64(a, b int64) int32 {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// fcmp implements fcmpl/fcmpg and dcmpl/dcmpg: nanResult is the value
// pushed when either operand is NaN (-1 for the *l variants, 1 for *g).
func fcmp(a, b float64, nanResult int32) int32 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return nanResult
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func (vm *VM) execTableswitch(frame *Frame, startPC int) {
	frame.SkipPadding()
	def := frame.ReadI32()
	low := frame.ReadI32()
	high := frame.ReadI32()
	index := frame.Pop().Int()
	if index < low || index > high {
		frame.PC = startPC + int(def)
		return
	}
	offset := int32(0)
	for i := low; i <= index; i++ {
		offset = frame.ReadI32()
	}
	frame.PC = startPC + int(offset)
}

func (vm *VM) execLookupswitch(frame *Frame, startPC int) {
	frame.SkipPadding()
	def := frame.ReadI32()
	npairs := frame.ReadI32()
	key := frame.Pop().Int()
	target := def
	for i := int32(0); i < npairs; i++ {
		match := frame.ReadI32()
		offset := frame.ReadI32()
		if match == key {
			target = offset
		}
	}
	frame.PC = startPC + int(target)
}

func float32ToInt32(f float32) int32 {
	if math.IsNaN(float64(f)) {
		return 0
	}
	if f >= float32(math.MaxInt32) {
		return math.MaxInt32
	}
	if f <= float32(math.MinInt32) {
		return math.MinInt32
	}
	return int32(f)
}

func float32ToInt64(f float32) int64 {
	if math.IsNaN(float64(f)) {
		return 0
	}
	if f >= float32(math.MaxInt64) {
		return math.MaxInt64
	}
	if f <= float32(math.MinInt64) {
		return math.MinInt64
	}
	return int64(f)
}

func float64ToInt32(f float64) int32 {
	if math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt32 {
		return math.MaxInt32
	}
	if f <= math.MinInt32 {
		return math.MinInt32
	}
	return int32(f)
}

func float64ToInt64(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}
