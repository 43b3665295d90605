package rt

import (
	"fmt"
	"log/slog"

	"github.com/rkoga/tinyjvm/pkg/classfile"
	"github.com/rkoga/tinyjvm/pkg/classpath"
)

// primitiveDescriptors maps the eight primitive type names to their
// single-letter field descriptor.
var primitiveDescriptors = map[string]string{
	"boolean": "Z",
	"byte":    "B",
	"char":    "C",
	"short":   "S",
	"int":     "I",
	"long":    "J",
	"float":   "F",
	"double":  "D",
}

// Loader owns the classpath, the name-indexed class table, and a dense
// vector of every loaded class for stable ids. It back-references a Heap so
// loading can allocate Class mirrors.
type Loader struct {
	CP   classpath.Entry
	Heap *Heap
	Log  *slog.Logger

	byName map[string]*Class
	all    []*Class

	stringClass *Class
	classClass  *Class
}

// NewLoader builds a Loader over a classpath entry. The heap must be
// supplied up front since loading primitive/array classes allocates
// mirrors immediately.
func NewLoader(cp classpath.Entry, heap *Heap, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{CP: cp, Heap: heap, Log: log, byName: make(map[string]*Class)}
}

// Bootstrap eagerly loads java/lang/String then java/lang/Class, assigns
// mirrors retroactively to anything loaded in the process, installs the
// eight primitive classes, and preloads each primitive's array companion.
func (l *Loader) Bootstrap() error {
	var err error
	l.stringClass, err = l.Load("java/lang/String")
	if err != nil {
		return fmt.Errorf("rt: bootstrapping java/lang/String: %w", err)
	}
	l.classClass, err = l.Load("java/lang/Class")
	if err != nil {
		return fmt.Errorf("rt: bootstrapping java/lang/Class: %w", err)
	}
	for _, c := range l.all {
		if c.Mirror == nil {
			c.Mirror = l.Heap.newClassMirror(l, c)
		}
	}
	for name, desc := range primitiveDescriptors {
		c := l.installPrimitive(name, desc)
		if _, err := l.Load("[" + desc); err != nil {
			return fmt.Errorf("rt: preloading array class for %s: %w", name, err)
		}
		l.Log.Debug("installed primitive class", "name", name, "descriptor", desc, "id", c.ID)
	}
	return nil
}

func (l *Loader) installPrimitive(name, desc string) *Class {
	c := &Class{
		Name:        name,
		AccessFlags: AccPublic | AccFinal,
		IsPrimitive: true,
		Initialized: true,
	}
	l.insert(c)
	c.Mirror = l.Heap.newClassMirror(l, c)
	l.byName[desc] = c // also addressable by its single-letter descriptor
	return c
}

func (l *Loader) insert(c *Class) {
	c.ID = len(l.all)
	l.all = append(l.all, c)
	l.byName[c.Name] = c
}

// Load returns the cached class for name, loading and linking it first if
// necessary.
func (l *Loader) Load(name string) (*Class, error) {
	if c, ok := l.byName[name]; ok {
		if !c.IsPrimitive || c.Name == name {
			return c, nil
		}
		// name is a primitive's single-letter descriptor alias; a class
		// file of the same name on the classpath takes precedence.
		if data, found, err := l.CP.Open(name); err == nil && found {
			return l.define(name, data)
		}
		return c, nil
	}
	if len(name) > 0 && name[0] == '[' {
		return l.loadArray(name)
	}
	data, ok, err := l.CP.Open(name)
	if err != nil {
		return nil, fmt.Errorf("rt: loading %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("rt: class not found on classpath: %s", name)
	}
	return l.define(name, data)
}

func (l *Loader) loadArray(name string) (*Class, error) {
	ft, err := classfile.ParseFieldType(name)
	if err != nil {
		return nil, fmt.Errorf("rt: parsing array class name %q: %w", name, err)
	}
	var elem *Class
	if ft.ArrayDims > 1 {
		elem, err = l.Load(name[1:])
	} else {
		elem, err = l.loadElement(ft.ElemDescriptor)
	}
	if err != nil {
		return nil, fmt.Errorf("rt: loading element class for %s: %w", name, err)
	}
	obj, err := l.Load("java/lang/Object")
	if err != nil {
		return nil, fmt.Errorf("rt: loading java/lang/Object for array super: %w", err)
	}
	c := &Class{
		Name:           name,
		AccessFlags:    AccPublic | AccFinal,
		Super:          obj,
		IsArray:        true,
		ArrayDim:       ft.ArrayDims,
		ElemClass:      elem,
		ElemDescriptor: ft.ElemDescriptor,
		Initialized:    true,
	}
	l.insert(c)
	c.Mirror = l.Heap.newClassMirror(l, c)
	return c, nil
}

func (l *Loader) loadElement(desc string) (*Class, error) {
	if c, ok := l.byName[desc]; ok {
		return c, nil
	}
	if desc[0] == '[' {
		return l.Load(desc)
	}
	if desc[0] == 'L' {
		return l.Load(desc[1 : len(desc)-1])
	}
	return nil, fmt.Errorf("rt: unknown primitive element descriptor %q", desc)
}

// define decodes bytes as a class file, links supertypes and interfaces,
// computes field layouts, injects native trampolines, and registers the
// result.
func (l *Loader) define(name string, data []byte) (*Class, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rt: parsing class file %s: %w", name, err)
	}
	thisName, err := cf.ThisClassName()
	if err != nil {
		return nil, fmt.Errorf("rt: resolving this_class for %s: %w", name, err)
	}
	c := &Class{Name: thisName, CF: cf, AccessFlags: cf.AccessFlags}

	superName, err := cf.SuperClassName()
	if err != nil {
		return nil, fmt.Errorf("rt: resolving super_class for %s: %w", name, err)
	}
	if superName != "" {
		c.Super, err = l.Load(superName)
		if err != nil {
			return nil, fmt.Errorf("rt: loading superclass %s of %s: %w", superName, name, err)
		}
	}

	ifaceNames, err := cf.InterfaceNames()
	if err != nil {
		return nil, fmt.Errorf("rt: resolving interfaces of %s: %w", name, err)
	}
	for _, in := range ifaceNames {
		iface, err := l.Load(in)
		if err != nil {
			return nil, fmt.Errorf("rt: loading interface %s of %s: %w", in, name, err)
		}
		c.Interfaces = append(c.Interfaces, iface)
	}

	if err := l.buildMethods(c, cf); err != nil {
		return nil, err
	}
	if err := l.buildFields(c, cf); err != nil {
		return nil, err
	}

	l.insert(c)
	if l.classClass != nil {
		c.Mirror = l.Heap.newClassMirror(l, c)
	}
	l.Log.Debug("defined class", "name", thisName, "id", c.ID, "methods", len(c.Methods), "fields", len(c.Fields))
	return c, nil
}

func (l *Loader) buildMethods(c *Class, cf *classfile.ClassFile) error {
	for i := range cf.Methods {
		mi := &cf.Methods[i]
		mt, err := classfile.ParseMethodType(mi.Descriptor)
		if err != nil {
			return fmt.Errorf("rt: parsing descriptor of %s.%s: %w", c.Name, mi.Name, err)
		}
		mi.Parsed = mt
		mi.ArgSlots = mt.ArgSlots

		m := &Method{
			Owner:       c,
			Name:        mi.Name,
			Descriptor:  mi.Descriptor,
			AccessFlags: mi.AccessFlags,
			ArgSlots:    mt.ArgSlots,
			ArgCount:    len(mt.Params),
			MT:          mt,
			IsNative:    mi.IsNative(),
		}
		if m.AccessFlags&AccStatic == 0 {
			m.ArgSlots++ // implicit receiver occupies local 0
			m.ArgCount++
		}

		switch {
		case mi.IsNative():
			l.injectTrampoline(m, mt)
		case mi.Code != nil:
			m.MaxLocals = mi.Code.MaxLocals
			m.MaxStack = mi.Code.MaxStack
			m.Code = mi.Code.Code
			m.ExceptionTable = mi.Code.ExceptionHandlers
		}
		c.Methods = append(c.Methods, m)
	}
	return nil
}

// injectTrampoline builds the synthetic [impdep1, <return>] body the
// dispatch loop uses to invoke a host function as an ordinary frame.
func (l *Loader) injectTrampoline(m *Method, mt classfile.MethodType) {
	var retOp byte
	switch mt.Return.Kind {
	case classfile.KindVoid:
		retOp = OpReturn
	case classfile.KindWide:
		if mt.Return.Descriptor == "J" {
			retOp = OpLreturn
		} else {
			retOp = OpDreturn
		}
	case classfile.KindReference:
		retOp = OpAreturn
	default:
		if mt.Return.Descriptor == "F" {
			retOp = OpFreturn
		} else {
			retOp = OpIreturn
		}
	}
	m.Code = []byte{OpImpdep1, retOp}
	m.MaxLocals = uint16(m.ArgSlots)
	m.MaxStack = 2
}

func (l *Loader) buildFields(c *Class, cf *classfile.ClassFile) error {
	staticIdx := 0
	instanceIdx := 0
	if c.Super != nil {
		c.InstanceFields = append(c.InstanceFields, c.Super.InstanceFields...)
		instanceIdx = len(c.InstanceFields)
	}
	var staticVars []Value
	for i := range cf.Fields {
		fi := &cf.Fields[i]
		ft, err := classfile.ParseFieldType(fi.Descriptor)
		if err != nil {
			return fmt.Errorf("rt: parsing descriptor of %s.%s: %w", c.Name, fi.Name, err)
		}
		f := &Field{
			Owner:       c,
			Name:        fi.Name,
			Descriptor:  fi.Descriptor,
			AccessFlags: fi.AccessFlags,
			FT:          ft,
			IsStatic:    fi.IsStatic(),
		}
		if fi.ConstantValueIndex != 0 {
			f.HasConstantValue = true
			f.ConstantValueIdx = fi.ConstantValueIndex
		}
		c.Fields = append(c.Fields, f)
		if f.IsStatic {
			f.Index = staticIdx
			staticIdx++
			c.StaticFields = append(c.StaticFields, f)
			staticVars = append(staticVars, ZeroOf(f.SlotKind()))
		} else {
			f.Index = instanceIdx
			instanceIdx++
			c.InstanceFields = append(c.InstanceFields, f)
		}
	}
	c.StaticVars = staticVars
	return l.seedConstantValues(c, cf)
}

// seedConstantValues applies spec.md §4.5's static-field initial-value
// rule: a final static field with a ConstantValue attribute is seeded from
// the pool by descriptor kind, ahead of any <clinit> run.
func (l *Loader) seedConstantValues(c *Class, cf *classfile.ClassFile) error {
	for _, f := range c.StaticFields {
		if !f.HasConstantValue {
			continue
		}
		switch f.Descriptor {
		case "Z", "B", "C", "S", "I":
			v, err := cf.ConstantPool.U32At(f.ConstantValueIdx)
			if err != nil {
				return fmt.Errorf("rt: seeding %s.%s: %w", c.Name, f.Name, err)
			}
			c.StaticVars[f.Index] = IntVal(int32(v))
		case "J":
			v, err := cf.ConstantPool.U64At(f.ConstantValueIdx)
			if err != nil {
				return fmt.Errorf("rt: seeding %s.%s: %w", c.Name, f.Name, err)
			}
			c.StaticVars[f.Index] = LongVal(int64(v))
		case "F":
			v, err := cf.ConstantPool.F32At(f.ConstantValueIdx)
			if err != nil {
				return fmt.Errorf("rt: seeding %s.%s: %w", c.Name, f.Name, err)
			}
			c.StaticVars[f.Index] = FloatVal(v)
		case "D":
			v, err := cf.ConstantPool.F64At(f.ConstantValueIdx)
			if err != nil {
				return fmt.Errorf("rt: seeding %s.%s: %w", c.Name, f.Name, err)
			}
			c.StaticVars[f.Index] = DoubleVal(v)
		case "Ljava/lang/String;":
			s, err := cf.ConstantPool.StringAt(f.ConstantValueIdx)
			if err != nil {
				return fmt.Errorf("rt: seeding %s.%s: %w", c.Name, f.Name, err)
			}
			c.StaticVars[f.Index] = RefVal(l.Heap.NewJString(l, s))
		default:
			// Non-string reference constants without a literal stay null.
		}
	}
	return nil
}

// ClassByID is used by mirrors and diagnostics to map a stable id back to
// its class record.
func (l *Loader) ClassByID(id int) *Class {
	if id < 0 || id >= len(l.all) {
		return nil
	}
	return l.all[id]
}

func (l *Loader) StringClass() *Class { return l.stringClass }
func (l *Loader) ClassClass() *Class  { return l.classClass }
