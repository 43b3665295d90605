package natives

import (
	"bytes"
	"testing"

	"github.com/rkoga/tinyjvm/pkg/rt"
)

func newCallFrame(t *testing.T, nargs int, arg rt.Value) (*rt.VM, *rt.Frame) {
	t.Helper()
	stack := rt.NewStack()
	class := &rt.Class{Name: "java/lang/System", Initialized: true}
	method := &rt.Method{Owner: class, Name: "print", MaxLocals: uint16(nargs), MaxStack: 0}
	frame, err := stack.PushFrame(method, class, nil)
	if err != nil {
		t.Fatalf("PushFrame: %v", err)
	}
	if nargs > 0 {
		frame.SetLocal(0, arg)
	}
	vm := &rt.VM{Stack: stack, Stdout: &bytes.Buffer{}}
	return vm, frame
}

func TestPrintInt(t *testing.T) {
	vm, frame := newCallFrame(t, 1, rt.IntVal(7))
	if err := printInt(vm, frame); err != nil {
		t.Fatalf("printInt: %v", err)
	}
	if got := vm.Stdout.(*bytes.Buffer).String(); got != "7" {
		t.Fatalf("printInt wrote %q, want %q", got, "7")
	}
}

func TestPrintlnInt(t *testing.T) {
	vm, frame := newCallFrame(t, 1, rt.IntVal(-3))
	if err := printlnInt(vm, frame); err != nil {
		t.Fatalf("printlnInt: %v", err)
	}
	if got := vm.Stdout.(*bytes.Buffer).String(); got != "-3\n" {
		t.Fatalf("printlnInt wrote %q, want %q", got, "-3\n")
	}
}

func TestPrintStringAndNull(t *testing.T) {
	chars := []rt.Value{rt.IntVal('h'), rt.IntVal('i')}
	obj := &rt.Object{Payload: []rt.Value{rt.RefVal(&rt.Array{Data: chars})}}

	vm, frame := newCallFrame(t, 1, rt.RefVal(obj))
	if err := printString(vm, frame); err != nil {
		t.Fatalf("printString: %v", err)
	}
	if got := vm.Stdout.(*bytes.Buffer).String(); got != "hi" {
		t.Fatalf("printString wrote %q, want %q", got, "hi")
	}

	vm2, frame2 := newCallFrame(t, 1, rt.NullVal())
	if err := printlnString(vm2, frame2); err != nil {
		t.Fatalf("printlnString: %v", err)
	}
	if got := vm2.Stdout.(*bytes.Buffer).String(); got != "null\n" {
		t.Fatalf("printlnString(null) wrote %q, want %q", got, "null\n")
	}
}

func TestNoop(t *testing.T) {
	vm, frame := newCallFrame(t, 0, rt.Value{})
	if err := noop(vm, frame); err != nil {
		t.Fatalf("noop: %v", err)
	}
}
