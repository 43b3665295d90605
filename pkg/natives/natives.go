// Package natives supplies the concrete native-method bodies this runtime
// ships with: just enough of java/lang/System and sun/misc/VM to let a
// program reach main() and print results, per spec.md's stated scope (the
// registry API is specified, the bodies of native methods beyond a small
// bootstrap/test set are not). Grounded on daimatz-gojvm's
// executeNativeMethod case list (registerNatives, <clinit>, VM.initialize)
// reimplemented against pkg/rt's registry instead of a switch.
package natives

import (
	"fmt"
	"unicode/utf16"

	"github.com/rkoga/tinyjvm/pkg/rt"
)

// Register installs every native body this package provides into r.
func Register(r *rt.NativeRegistry) {
	r.Register("java/lang/Object", "registerNatives", "()V", 0, noop)
	r.Register("java/lang/System", "registerNatives", "()V", 0, noop)
	r.Register("java/lang/System", "<clinit>", "()V", 0, noop)
	r.Register("sun/misc/VM", "initialize", "()V", 0, noop)

	r.Register("java/lang/System", "print", "(I)V", 1, printInt)
	r.Register("java/lang/System", "println", "(I)V", 1, printlnInt)
	r.Register("java/lang/System", "print", "(Ljava/lang/String;)V", 1, printString)
	r.Register("java/lang/System", "println", "(Ljava/lang/String;)V", 1, printlnString)
}

func noop(vm *rt.VM, frame *rt.Frame) error { return nil }

func printInt(vm *rt.VM, frame *rt.Frame) error {
	fmt.Fprintf(vm.Stdout, "%d", frame.GetLocal(0).Int())
	return nil
}

func printlnInt(vm *rt.VM, frame *rt.Frame) error {
	fmt.Fprintf(vm.Stdout, "%d\n", frame.GetLocal(0).Int())
	return nil
}

func printString(vm *rt.VM, frame *rt.Frame) error {
	s, err := javaString(frame.GetLocal(0))
	if err != nil {
		return err
	}
	fmt.Fprint(vm.Stdout, s)
	return nil
}

func printlnString(vm *rt.VM, frame *rt.Frame) error {
	s, err := javaString(frame.GetLocal(0))
	if err != nil {
		return err
	}
	fmt.Fprintln(vm.Stdout, s)
	return nil
}

// javaString decodes a java/lang/String instance's backing char[] (field 0
// of the object's payload, per pkg/rt/heap.go's NewJString layout) back
// into a Go string.
func javaString(v rt.Value) (string, error) {
	if v.IsNull() {
		return "null", nil
	}
	obj, ok := v.Ref.(*rt.Object)
	if !ok {
		return "", fmt.Errorf("natives: expected java/lang/String instance, got %T", v.Ref)
	}
	if len(obj.Payload) == 0 {
		return "", nil
	}
	arr, ok := obj.GetField(0).Ref.(*rt.Array)
	if !ok {
		return "", nil
	}
	units := make([]uint16, len(arr.Data))
	for i, c := range arr.Data {
		units[i] = uint16(c.Int())
	}
	return string(utf16.Decode(units)), nil
}
