package rt

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/rkoga/tinyjvm/pkg/classfile"
)

// VM ties together the pieces a running program needs: the class loader,
// the heap, the native registry, and the single execution stack every
// frame shares. It is grounded on the teacher's VM struct in vm.go, with
// ClassLoader/staticFields/initializedClasses replaced by this
// repo's Loader (which owns class state directly) and Stack.
type VM struct {
	Loader  *Loader
	Heap    *Heap
	Natives *NativeRegistry
	Stack   *Stack
	Stdout  io.Writer
	Log     *slog.Logger
}

// NewVM wires a VM from its already-constructed parts. Stdout defaults to
// io.Discard and Log to slog.Default if nil.
func NewVM(loader *Loader, heap *Heap, natives *NativeRegistry, stdout io.Writer, log *slog.Logger) *VM {
	if stdout == nil {
		stdout = io.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	return &VM{Loader: loader, Heap: heap, Natives: natives, Stack: NewStack(), Stdout: stdout, Log: log}
}

// Execute loads mainClassName, locates its main(String[]) method, and runs
// it to completion (spec.md §4.11's driver sequence, minus argv handling,
// which is cmd/tinyjvm's job). Before touching mainClassName it runs the
// mandatory runtime bootstrap: java/lang/System then sun/misc/VM to
// quiescence.
func (vm *VM) Execute(mainClassName string) error {
	if err := vm.bootstrapRuntime(); err != nil {
		return err
	}
	class, err := vm.Loader.Load(mainClassName)
	if err != nil {
		return err
	}
	main := class.FindMainMethod()
	if main == nil {
		return fmt.Errorf("rt: %s has no static main([Ljava/lang/String;)V method", mainClassName)
	}
	argsArr, err := vm.Heap.NewArray(vm.Loader, "java/lang/String", 0)
	if err != nil {
		return err
	}
	vm.Log.Debug("invoking main", "class", mainClassName)
	_, err = vm.Invoke(main, class, []Value{RefVal(argsArr)})
	return err
}

// bootstrapRuntime implements spec.md §9's "coroutine-style bootstrap":
// java/lang/System.<clinit> and sun/misc/VM.initialize must run to
// completion before any user code, not merely whenever something happens
// to touch them lazily. It pushes the initializer frames and drives the
// interpreter until the stack drains, then calls VM.initialize directly
// the same way any other caller would invoke a method.
func (vm *VM) bootstrapRuntime() error {
	sys, err := vm.Loader.Load("java/lang/System")
	if err != nil {
		return fmt.Errorf("rt: bootstrap: loading java/lang/System: %w", err)
	}
	if err := vm.runClinitToQuiescence(sys); err != nil {
		return fmt.Errorf("rt: bootstrap: java/lang/System.<clinit>: %w", err)
	}

	vmClass, err := vm.Loader.Load("sun/misc/VM")
	if err != nil {
		return fmt.Errorf("rt: bootstrap: loading sun/misc/VM: %w", err)
	}
	if err := vm.runClinitToQuiescence(vmClass); err != nil {
		return fmt.Errorf("rt: bootstrap: sun/misc/VM.<clinit>: %w", err)
	}

	initialize := vmClass.LookupMethod("initialize", "()V")
	if initialize == nil {
		return fmt.Errorf("rt: bootstrap: sun/misc/VM has no initialize()V method")
	}
	if _, err := vm.Invoke(initialize, vmClass, nil); err != nil {
		return fmt.Errorf("rt: bootstrap: sun/misc/VM.initialize: %w", err)
	}
	vm.Log.Debug("runtime bootstrap complete")
	return nil
}

// runClinitToQuiescence pushes c's own <clinit> (if any) and its
// superclass's, in that order -- so LIFO makes the superclass's frame run
// first, same ordering as ensureInitialized -- then drains the stack. It
// differs from ensureInitialized only in having no triggering instruction
// to revert to: this runs ahead of any frame, as part of driver startup.
func (vm *VM) runClinitToQuiescence(c *Class) error {
	if err := vm.pushClinitChain(c); err != nil {
		return err
	}
	_, err := vm.run()
	return err
}

func (vm *VM) pushClinitChain(c *Class) error {
	if c.Initialized {
		return nil
	}
	c.Initialized = true
	if clinit := c.lookupOwnClinit(); clinit != nil {
		if err := vm.pushCall(clinit, c, nil); err != nil {
			return err
		}
	}
	if c.Super != nil {
		return vm.pushClinitChain(c.Super)
	}
	return nil
}

// Invoke pushes a frame for m with locals seeded from args and drives the
// stack to quiescence, returning m's return value (zero Value for void).
func (vm *VM) Invoke(m *Method, class *Class, args []Value) (Value, error) {
	if err := vm.pushCall(m, class, args); err != nil {
		return Value{}, err
	}
	return vm.run()
}

// pushCall reserves a frame for m and copies args into its locals using the
// standard JVM local-slot numbering (wide values occupy one cell here but
// still account for two slots of index space, so that the method's own
// iload/lstore/etc instructions -- emitted by a compiler that used the
// standard convention -- land on the right cell). See pkg/rt/stack.go.
func (vm *VM) pushCall(m *Method, class *Class, args []Value) error {
	f, err := vm.Stack.PushFrame(m, class, m.Code)
	if err != nil {
		return err
	}
	li := 0
	ai := 0
	if !m.IsStatic() {
		f.SetLocal(0, args[0])
		li = 1
		ai = 1
	}
	for _, p := range m.MT.Params {
		f.SetLocal(li, args[ai])
		ai++
		if p.Kind == classfile.KindWide {
			li += 2
		} else {
			li++
		}
	}
	return nil
}

// run drives frames on vm.Stack until it empties, returning the value the
// very last (outermost) frame returned.
func (vm *VM) run() (Value, error) {
	var final Value
	for vm.Stack.Depth() > 0 {
		frame := vm.Stack.Top()
		if frame.PC >= len(frame.Code) {
			vm.Stack.PopFrame()
			continue
		}
		startPC := frame.PC
		op := frame.ReadU8()
		wide := false
		if op == OpWide {
			wide = true
			op = frame.ReadU8()
		}
		val, hasVal, returned, err := vm.step(frame, op, wide, startPC)
		if err != nil {
			return Value{}, err
		}
		if returned {
			vm.Stack.PopFrame()
			if vm.Stack.Depth() > 0 {
				if hasVal {
					vm.Stack.Top().Push(val)
				}
			} else {
				final = val
			}
		}
	}
	return final, nil
}

// ensureInitialized implements spec.md §4.5's lazy-<clinit> protocol: if c
// is already initialized this is a no-op; otherwise c is marked
// initialized, frames for its own <clinit>()V (if declared) and then its
// superclass's initialization are pushed in that order -- so that, because
// the stack is LIFO, the superclass's frame ends up on top and runs first,
// exactly matching the JVM's "superclass initializes before subclass"
// rule -- and the caller's program counter is reverted to re-execute the
// triggering instruction once initialization finally drains off the stack.
// Returns true if it pushed any work, telling the caller to revert pc and
// yield this step rather than proceeding.
func (vm *VM) ensureInitialized(frame *Frame, instructionPC int, c *Class) (bool, error) {
	if c.Initialized {
		return false, nil
	}
	c.Initialized = true
	pushed := false
	if clinit := c.lookupOwnClinit(); clinit != nil {
		if err := vm.pushCall(clinit, c, nil); err != nil {
			return false, err
		}
		pushed = true
	}
	if c.Super != nil {
		triggered, err := vm.ensureInitialized(frame, instructionPC, c.Super)
		if err != nil {
			return false, err
		}
		pushed = pushed || triggered
	}
	if pushed {
		frame.PC = instructionPC
	}
	return pushed, nil
}
