package rt

import (
	"testing"

	"github.com/rkoga/tinyjvm/pkg/classfile"
)

func newBootstrappedLoader(t *testing.T) *Loader {
	t.Helper()
	cp := &memEntry{classes: bootstrapClassBytes()}
	l := NewLoader(cp, NewHeap(), nil)
	if err := l.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return l
}

func TestBootstrapInstallsPrimitivesAndMirrors(t *testing.T) {
	l := newBootstrappedLoader(t)

	if l.StringClass() == nil {
		t.Fatalf("StringClass() is nil after Bootstrap")
	}
	if l.ClassClass() == nil {
		t.Fatalf("ClassClass() is nil after Bootstrap")
	}
	if l.StringClass().Mirror == nil {
		t.Fatalf("java/lang/String has no mirror after Bootstrap")
	}

	intClass, err := l.Load("int")
	if err != nil {
		t.Fatalf("Load(int): %v", err)
	}
	if !intClass.IsPrimitive {
		t.Fatalf("int class is not marked primitive")
	}
	if intClass.Mirror == nil {
		t.Fatalf("int primitive class has no mirror")
	}
	if byDesc, err := l.Load("I"); err != nil || byDesc != intClass {
		t.Fatalf("Load(I) = %v, %v; want the same class as Load(int)", byDesc, err)
	}
}

func TestLoadArraySynthesizesElementAndSuper(t *testing.T) {
	l := newBootstrappedLoader(t)

	arr, err := l.Load("[I")
	if err != nil {
		t.Fatalf("Load([I): %v", err)
	}
	if !arr.IsArray {
		t.Fatalf("[I is not marked as an array class")
	}
	if arr.ArrayDim != 1 {
		t.Fatalf("[I ArrayDim = %d, want 1", arr.ArrayDim)
	}
	if arr.ElemDescriptor != "I" {
		t.Fatalf("[I ElemDescriptor = %q, want %q", arr.ElemDescriptor, "I")
	}
	if arr.ElemClass == nil || !arr.ElemClass.IsPrimitive || arr.ElemClass.Name != "int" {
		t.Fatalf("[I ElemClass = %+v, want the int primitive class", arr.ElemClass)
	}
	if arr.Super == nil || arr.Super.Name != "java/lang/Object" {
		t.Fatalf("[I Super = %v, want java/lang/Object", arr.Super)
	}

	arr2d, err := l.Load("[[I")
	if err != nil {
		t.Fatalf("Load([[I): %v", err)
	}
	if arr2d.ArrayDim != 2 {
		t.Fatalf("[[I ArrayDim = %d, want 2", arr2d.ArrayDim)
	}
	if arr2d.ElemClass != arr {
		t.Fatalf("[[I ElemClass should be the cached [I class")
	}
}

// TestBuildFieldsLayoutInheritance exercises define()'s field-layout pass:
// a subclass's instance fields are laid out as the superclass's prefix
// followed by its own, while static fields live in the declaring class's
// own StaticVars only.
func TestBuildFieldsLayoutInheritance(t *testing.T) {
	baseBytes := newClassBuilder().build("Base", "java/lang/Object",
		[]builtField{
			{accessFlags: 0, name: "a", desc: "I"},
			{accessFlags: classfile.AccStatic, name: "s", desc: "I"},
		}, nil)
	derivedBytes := newClassBuilder().build("Derived", "Base",
		[]builtField{
			{accessFlags: 0, name: "b", desc: "I"},
		}, nil)

	classes := bootstrapClassBytes()
	classes["Base"] = baseBytes
	classes["Derived"] = derivedBytes
	cp := &memEntry{classes: classes}
	l := NewLoader(cp, NewHeap(), nil)
	if err := l.Bootstrap(); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	base, err := l.Load("Base")
	if err != nil {
		t.Fatalf("Load(Base): %v", err)
	}
	if len(base.InstanceFields) != 1 || base.InstanceFields[0].Name != "a" || base.InstanceFields[0].Index != 0 {
		t.Fatalf("Base.InstanceFields = %+v, want [a@0]", base.InstanceFields)
	}
	if len(base.StaticFields) != 1 || base.StaticFields[0].Name != "s" || base.StaticFields[0].Index != 0 {
		t.Fatalf("Base.StaticFields = %+v, want [s@0]", base.StaticFields)
	}

	derived, err := l.Load("Derived")
	if err != nil {
		t.Fatalf("Load(Derived): %v", err)
	}
	if len(derived.InstanceFields) != 2 {
		t.Fatalf("Derived.InstanceFields = %+v, want 2 entries", derived.InstanceFields)
	}
	if derived.InstanceFields[0].Name != "a" || derived.InstanceFields[0].Index != 0 {
		t.Fatalf("Derived.InstanceFields[0] = %+v, want inherited a@0", derived.InstanceFields[0])
	}
	if derived.InstanceFields[1].Name != "b" || derived.InstanceFields[1].Index != 1 {
		t.Fatalf("Derived.InstanceFields[1] = %+v, want own b@1", derived.InstanceFields[1])
	}
	if len(derived.StaticFields) != 0 {
		t.Fatalf("Derived.StaticFields = %+v, want none (s belongs to Base)", derived.StaticFields)
	}
	if derived.Fields[0].Name != "b" {
		t.Fatalf("Derived.Fields should only list its own declared fields, got %+v", derived.Fields)
	}
}

func TestLoadUnknownClassFails(t *testing.T) {
	l := newBootstrappedLoader(t)
	if _, err := l.Load("does/not/Exist"); err == nil {
		t.Fatalf("Load of a missing class should fail")
	}
}
