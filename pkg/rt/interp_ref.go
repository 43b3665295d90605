package rt

import (
	"fmt"

	"github.com/rkoga/tinyjvm/pkg/classfile"
)

// execLdc implements ldc/ldc_w/ldc2_w: the pool slot's exact entry type
// (rather than classfile.Pool.ConstantAt's generic view) decides both the
// Value Kind pushed and, for String/Class entries, what gets resolved.
func (vm *VM) execLdc(frame *Frame, idx uint16) error {
	pool := frame.Class.CF.ConstantPool
	switch e := pool[idx].(type) {
	case classfile.Integer:
		frame.Push(IntVal(e.Value))
	case classfile.Float:
		frame.Push(FloatVal(e.Value))
	case classfile.Long:
		frame.Push(LongVal(e.Value))
	case classfile.Double:
		frame.Push(DoubleVal(e.Value))
	case classfile.String:
		s, err := pool.Utf8At(e.StringIndex)
		if err != nil {
			return err
		}
		frame.Push(RefVal(vm.Heap.NewJString(vm.Loader, s)))
	case classfile.Class:
		name, err := pool.Utf8At(e.NameIndex)
		if err != nil {
			return err
		}
		target, err := vm.Loader.Load(name)
		if err != nil {
			return err
		}
		frame.Push(RefVal(target.Mirror))
	default:
		return fmt.Errorf("rt: constant pool index %d is not valid for ldc (%T)", idx, e)
	}
	return nil
}

func (vm *VM) popArray(frame *Frame) (*Array, error) {
	v := frame.Pop()
	if v.IsNull() {
		return nil, throwNamed("java.lang.NullPointerException", "")
	}
	arr, ok := v.Ref.(*Array)
	if !ok {
		return nil, fmt.Errorf("rt: expected array reference, got %T", v.Ref)
	}
	return arr, nil
}

func (vm *VM) popObject(frame *Frame) (*Object, error) {
	v := frame.Pop()
	if v.IsNull() {
		return nil, throwNamed("java.lang.NullPointerException", "")
	}
	obj, ok := v.Ref.(*Object)
	if !ok {
		return nil, fmt.Errorf("rt: expected object reference, got %T", v.Ref)
	}
	return obj, nil
}

func loadArrayElement(arr *Array, idx int32) (Value, error) {
	if idx < 0 || idx >= arr.Length() {
		return Value{}, throwNamed("java.lang.ArrayIndexOutOfBoundsException", fmt.Sprintf("index %d out of bounds for length %d", idx, arr.Length()))
	}
	return arr.Data[idx], nil
}

func storeArrayElement(arr *Array, idx int32, v Value) error {
	if idx < 0 || idx >= arr.Length() {
		return throwNamed("java.lang.ArrayIndexOutOfBoundsException", fmt.Sprintf("index %d out of bounds for length %d", idx, arr.Length()))
	}
	switch arr.AType {
	case AtypeBoolean, AtypeByte:
		arr.Data[idx] = IntVal(int32(int8(v.Int())))
	case AtypeChar:
		arr.Data[idx] = IntVal(int32(uint16(v.Int())))
	case AtypeShort:
		arr.Data[idx] = IntVal(int32(int16(v.Int())))
	default:
		arr.Data[idx] = v
	}
	return nil
}

// stepRef handles every opcode from getstatic (0xB2) up: field and static
// access, the invoke family, object/array creation, casts and monitors,
// plus the native trampoline (impdep1).
func (vm *VM) stepRef(frame *Frame, op byte, startPC int) (Value, bool, bool, error) {
	switch op {
	case OpGetstatic:
		idx := frame.ReadU16()
		ref, err := vm.Loader.ResolveFieldRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		triggered, err := vm.ensureInitialized(frame, startPC, ref.Class)
		if err != nil || triggered {
			return Value{}, false, false, err
		}
		frame.Push(ref.Class.StaticVars[ref.Field.Index])

	case OpPutstatic:
		idx := frame.ReadU16()
		ref, err := vm.Loader.ResolveFieldRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		triggered, err := vm.ensureInitialized(frame, startPC, ref.Class)
		if err != nil {
			return Value{}, false, false, err
		}
		if triggered {
			return Value{}, false, false, nil
		}
		ref.Class.StaticVars[ref.Field.Index] = frame.Pop()

	case OpGetfield:
		idx := frame.ReadU16()
		ref, err := vm.Loader.ResolveFieldRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		obj, err := vm.popObject(frame)
		if err != nil {
			return Value{}, false, false, err
		}
		frame.Push(obj.GetField(ref.Field.Index))

	case OpPutfield:
		idx := frame.ReadU16()
		ref, err := vm.Loader.ResolveFieldRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		v := frame.Pop()
		obj, err := vm.popObject(frame)
		if err != nil {
			return Value{}, false, false, err
		}
		obj.SetField(ref.Field.Index, v)

	case OpInvokestatic:
		idx := frame.ReadU16()
		ref, err := vm.Loader.ResolveMethodRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		triggered, err := vm.ensureInitialized(frame, startPC, ref.Class)
		if err != nil {
			return Value{}, false, false, err
		}
		if triggered {
			return Value{}, false, false, nil
		}
		args := popArgs(frame, ref.Method.ArgCount)
		return Value{}, false, false, vm.pushCall(ref.Method, ref.Method.Owner, args)

	case OpInvokespecial:
		idx := frame.ReadU16()
		ref, err := vm.Loader.ResolveMethodRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		args := popArgs(frame, ref.Method.ArgCount)
		if args[0].IsNull() {
			return Value{}, false, false, throwNamed("java.lang.NullPointerException", "")
		}
		return Value{}, false, false, vm.pushCall(ref.Method, ref.Method.Owner, args)

	case OpInvokevirtual:
		idx := frame.ReadU16()
		ref, err := vm.Loader.ResolveMethodRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		args := popArgs(frame, ref.Method.ArgCount)
		if args[0].IsNull() {
			return Value{}, false, false, throwNamed("java.lang.NullPointerException", "")
		}
		recvClass := runtimeClassOf(args[0])
		target := recvClass.LookupMethod(ref.Name, ref.Desc)
		if target == nil {
			target = ref.Method
		}
		return Value{}, false, false, vm.pushCall(target, target.Owner, args)

	case OpInvokeinterface:
		idx := frame.ReadU16()
		frame.ReadU8() // count, historical
		frame.ReadU8() // must be 0
		ref, err := vm.Loader.ResolveIfaceMethodRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		args := popArgs(frame, ref.Method.ArgCount)
		if args[0].IsNull() {
			return Value{}, false, false, throwNamed("java.lang.NullPointerException", "")
		}
		recvClass := runtimeClassOf(args[0])
		target := recvClass.LookupMethod(ref.Name, ref.Desc)
		if target == nil {
			target = ref.Method
		}
		return Value{}, false, false, vm.pushCall(target, target.Owner, args)

	case OpInvokedynamic:
		return Value{}, false, false, fmt.Errorf("rt: invokedynamic is not supported")

	case OpNew:
		idx := frame.ReadU16()
		class, err := vm.Loader.ResolveClassRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		triggered, err := vm.ensureInitialized(frame, startPC, class)
		if err != nil {
			return Value{}, false, false, err
		}
		if triggered {
			return Value{}, false, false, nil
		}
		frame.Push(RefVal(vm.Heap.NewObject(class)))

	case OpNewarray:
		atype := frame.ReadU8()
		length := frame.Pop().Int()
		arr, err := vm.Heap.NewPrimitiveArray(vm.Loader, atype, length)
		if err != nil {
			return Value{}, false, false, err
		}
		frame.Push(RefVal(arr))

	case OpAnewarray:
		idx := frame.ReadU16()
		elem, err := vm.Loader.ResolveClassRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		length := frame.Pop().Int()
		arr, err := vm.Heap.NewArray(vm.Loader, elem.Name, length)
		if err != nil {
			return Value{}, false, false, err
		}
		frame.Push(RefVal(arr))

	case OpMultianewarray:
		idx := frame.ReadU16()
		n := int(frame.ReadU8())
		dims := make([]int32, n)
		for i := n - 1; i >= 0; i-- {
			dims[i] = frame.Pop().Int()
		}
		arrClass, err := vm.Loader.ResolveClassRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		arr, err := vm.Heap.NewMultiDim(vm.Loader, arrClass, dims)
		if err != nil {
			return Value{}, false, false, err
		}
		frame.Push(RefVal(arr))

	case OpArraylength:
		arr, err := vm.popArray(frame)
		if err != nil {
			return Value{}, false, false, err
		}
		frame.Push(IntVal(arr.Length()))

	case OpAthrow:
		obj, err := vm.popObject(frame)
		if err != nil {
			return Value{}, false, false, err
		}
		return Value{}, false, false, &JavaException{Object: obj}

	case OpCheckcast:
		idx := frame.ReadU16()
		target, err := vm.Loader.ResolveClassRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		v := frame.Peek(0)
		if !v.IsNull() && !target.IsAssignable(runtimeClassOf(v)) {
			return Value{}, false, false, throwNamed("java.lang.ClassCastException", target.Name)
		}

	case OpInstanceof:
		idx := frame.ReadU16()
		target, err := vm.Loader.ResolveClassRef(frame.Class, idx)
		if err != nil {
			return Value{}, false, false, err
		}
		v := frame.Pop()
		if v.IsNull() {
			frame.Push(IntVal(0))
		} else {
			frame.Push(BoolVal(target.IsAssignable(runtimeClassOf(v))))
		}

	case OpMonitorenter, OpMonitorexit:
		frame.Pop() // single-threaded: lock/unlock is a no-op, just drop the ref

	case OpImpdep1:
		fn, err := vm.Natives.Find(frame.Class.Name, frame.Method.Name, frame.Method.Descriptor)
		if err != nil {
			return Value{}, false, false, err
		}
		if err := fn(vm, frame); err != nil {
			return Value{}, false, false, err
		}

	default:
		return Value{}, false, false, fmt.Errorf("rt: unimplemented opcode 0x%02X at pc=%d in %s.%s", op, startPC, frame.Class.Name, frame.Method.Name)
	}
	return Value{}, false, false, nil
}

// popArgs pops n values off frame's operand stack, returning them in
// left-to-right (call-site) order: args[0] is the receiver for instance
// calls, the rest are parameters in source order.
func popArgs(frame *Frame, n int) []Value {
	args := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}
	return args
}

// runtimeClassOf recovers the runtime class backing a reference value, for
// virtual dispatch and instanceof/checkcast: an Object's own class, or an
// Array's synthesized array class.
func runtimeClassOf(v Value) *Class {
	switch r := v.Ref.(type) {
	case *Object:
		return r.Class
	case *Array:
		return r.Class
	default:
		return nil
	}
}
