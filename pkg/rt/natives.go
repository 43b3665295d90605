package rt

import "fmt"

// NativeFunc is a host function bound into the registry. It receives the
// active frame so it can read argument slots out of frame.locals[0..N) and
// push its return value (if any) onto the frame's operand stack — the
// native registry ABI (spec.md §6).
type NativeFunc func(vm *VM, frame *Frame) error

// nativeEntry carries the callable plus its parsed descriptor, so the
// argument-slot count is available without re-parsing (spec.md §4.10).
type nativeEntry struct {
	fn       NativeFunc
	argSlots int
}

// NativeRegistry is the "{class}_{method}_{desc}"-keyed host function
// table, grounded on jacobin's MethodSignatures map (see DESIGN.md) rather
// than daimatz-gojvm's inline switch, so new native methods can be
// registered independently of the interpreter's dispatch loop.
type NativeRegistry struct {
	entries map[string]*nativeEntry
}

// NewNativeRegistry returns an empty registry.
func NewNativeRegistry() *NativeRegistry {
	return &NativeRegistry{entries: make(map[string]*nativeEntry)}
}

func nativeKey(class, method, desc string) string {
	return class + "_" + method + "_" + desc
}

// Register installs fn under (class, method, desc). argSlots is the
// slot-weighted argument count; for an instance native it includes the
// implicit receiver, which callers add themselves, matching how
// Method.ArgSlots is computed in pkg/rt/loader.go.
func (r *NativeRegistry) Register(class, method, desc string, argSlots int, fn NativeFunc) {
	r.entries[nativeKey(class, method, desc)] = &nativeEntry{fn: fn, argSlots: argSlots}
}

// Find looks up a registered native by (class, method, desc). A miss is
// fatal per spec.md §4.10.
func (r *NativeRegistry) Find(class, method, desc string) (NativeFunc, error) {
	e, ok := r.entries[nativeKey(class, method, desc)]
	if !ok {
		return nil, fmt.Errorf("rt: no native method registered for %s.%s:%s", class, method, desc)
	}
	return e.fn, nil
}
