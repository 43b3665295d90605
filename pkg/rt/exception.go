package rt

import "fmt"

// JavaException wraps an object thrown by athrow so the dispatch loop's Go
// error return can carry it through ordinary error handling. No exception
// table is consulted: the error ends the run and is returned to the caller.
type JavaException struct {
	Object *Object
}

func (e *JavaException) Error() string {
	if e.Object == nil || e.Object.Class == nil {
		return "JavaException"
	}
	return fmt.Sprintf("JavaException: %s", e.Object.Class.Name)
}

// throwNamed is the minimal shape needed to raise a named runtime
// exception (NullPointerException, ArithmeticException, ...) without a
// loaded class: most of these classes are never defined by a minimal test
// fixture, so the interpreter raises them as plain Go errors carrying the
// conventional "java.lang.X: detail" message (spec.md §7's error table),
// and only wraps a *JavaException when the bytecode itself used athrow on
// a real heap object.
func throwNamed(name, detail string) error {
	if detail == "" {
		return fmt.Errorf("%s", name)
	}
	return fmt.Errorf("%s: %s", name, detail)
}
