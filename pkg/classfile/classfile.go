package classfile

import "fmt"

// Magic is the fixed class-file magic number (spec.md §6).
const Magic = 0xCAFEBABE

// Access flags (spec.md §6).
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccProtected  = 0x0004
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccVolatile   = 0x0040
	AccTransient  = 0x0080
	AccNative     = 0x0100
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccStrict     = 0x0800
	AccSynthetic  = 0x1000
	AccAnnotation = 0x2000
	AccEnum       = 0x4000
)

// ExceptionHandler is one row of a Code attribute's exception table.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16 // constant pool index of a Class entry, or 0 for catch-all
}

// CodeAttribute is the decoded form of a method's "Code" attribute.
type CodeAttribute struct {
	MaxStack          uint16
	MaxLocals         uint16
	Code              []byte
	ExceptionHandlers []ExceptionHandler
	LineNumbers       []LineNumberEntry
	LocalVariables    []LocalVariableEntry
}

// LineNumberEntry is one row of a LineNumberTable attribute.
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

// LocalVariableEntry is one row of a LocalVariableTable attribute.
type LocalVariableEntry struct {
	StartPC   uint16
	Length    uint16
	Name      string
	Desc      string
	Index     uint16
}

// RawAttribute preserves an attribute this decoder does not otherwise model,
// verbatim (spec.md §4.3: "Unrecognized attributes are preserved verbatim as
// (name, length, bytes)").
type RawAttribute struct {
	Name string
	Data []byte
}

// MethodInfo is a decoded method_info structure.
type MethodInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Parsed      MethodType // pre-parsed by the loader; zero value until then
	ArgSlots    int        // pre-parsed by the loader; does not include receiver slot

	Code             *CodeAttribute
	LineNumbers      []LineNumberEntry
	LocalVariables   []LocalVariableEntry
	Exceptions       []string // class names from the Exceptions attribute
	Synthetic        bool
	Deprecated       bool
	RawAttributes    []RawAttribute
}

func (m *MethodInfo) IsStatic() bool   { return m.AccessFlags&AccStatic != 0 }
func (m *MethodInfo) IsNative() bool   { return m.AccessFlags&AccNative != 0 }
func (m *MethodInfo) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }

// FieldInfo is a decoded field_info structure.
type FieldInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	// ConstantValueIndex is the pool index of a ConstantValue attribute, or
	// 0 if the field has none (spec.md §3: "a field's cons_i").
	ConstantValueIndex uint16
	Synthetic          bool
	Deprecated         bool
	RawAttributes      []RawAttribute
}

func (f *FieldInfo) IsStatic() bool { return f.AccessFlags&AccStatic != 0 }

// ClassFile is the parsed, but not yet linked, representation of a .class
// file's binary contents (spec.md §4.3).
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool Pool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo
	SourceFile   string
}

// ThisClassName returns the internal name of the class being defined.
func (cf *ClassFile) ThisClassName() (string, error) {
	return cf.ConstantPool.ClassNameAt(cf.ThisClass)
}

// SuperClassName returns the internal name of the superclass, or "" for
// java/lang/Object (whose SuperClass field is 0).
func (cf *ClassFile) SuperClassName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.ConstantPool.ClassNameAt(cf.SuperClass)
}

// InterfaceNames resolves every entry of cf.Interfaces to its class name.
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, len(cf.Interfaces))
	for i, idx := range cf.Interfaces {
		n, err := cf.ConstantPool.ClassNameAt(idx)
		if err != nil {
			return nil, fmt.Errorf("resolving interface %d: %w", i, err)
		}
		names[i] = n
	}
	return names, nil
}

// FindMethod finds a method by exact (name, descriptor) match, declared
// directly on cf (no superclass search: that is pkg/rt's job).
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// FindField finds a field by exact (name, descriptor) match, declared
// directly on cf.
func (cf *ClassFile) FindField(name, descriptor string) *FieldInfo {
	for i := range cf.Fields {
		if cf.Fields[i].Name == name && cf.Fields[i].Descriptor == descriptor {
			return &cf.Fields[i]
		}
	}
	return nil
}

// Parse decodes a full class file from buf (spec.md §4.3's field table).
func Parse(buf []byte) (*ClassFile, error) {
	r := NewReader(buf)

	magic, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("classfile: bad magic 0x%08X (want 0x%08X)", magic, uint32(Magic))
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = r.U16(); err != nil {
		return nil, fmt.Errorf("classfile: reading minor version: %w", err)
	}
	if cf.MajorVersion, err = r.U16(); err != nil {
		return nil, fmt.Errorf("classfile: reading major version: %w", err)
	}

	cpCount, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading constant pool count: %w", err)
	}
	cf.ConstantPool, err = parsePool(r, cpCount)
	if err != nil {
		return nil, fmt.Errorf("classfile: parsing constant pool: %w", err)
	}

	if cf.AccessFlags, err = r.U16(); err != nil {
		return nil, fmt.Errorf("classfile: reading access flags: %w", err)
	}
	if cf.ThisClass, err = r.U16(); err != nil {
		return nil, fmt.Errorf("classfile: reading this_class: %w", err)
	}
	if cf.SuperClass, err = r.U16(); err != nil {
		return nil, fmt.Errorf("classfile: reading super_class: %w", err)
	}

	ifaceCount, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading interfaces_count: %w", err)
	}
	cf.Interfaces = make([]uint16, ifaceCount)
	for i := range cf.Interfaces {
		if cf.Interfaces[i], err = r.U16(); err != nil {
			return nil, fmt.Errorf("classfile: reading interface %d: %w", i, err)
		}
	}

	fieldsCount, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading fields_count: %w", err)
	}
	cf.Fields = make([]FieldInfo, fieldsCount)
	for i := range cf.Fields {
		if cf.Fields[i], err = parseField(r, cf.ConstantPool); err != nil {
			return nil, fmt.Errorf("classfile: parsing field %d: %w", i, err)
		}
	}

	methodsCount, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("classfile: reading methods_count: %w", err)
	}
	cf.Methods = make([]MethodInfo, methodsCount)
	for i := range cf.Methods {
		if cf.Methods[i], err = parseMethod(r, cf.ConstantPool); err != nil {
			return nil, fmt.Errorf("classfile: parsing method %d: %w", i, err)
		}
	}

	classAttrs, err := parseAttributes(r, cf.ConstantPool)
	if err != nil {
		return nil, fmt.Errorf("classfile: parsing class attributes: %w", err)
	}
	for _, a := range classAttrs {
		if a.Name == "SourceFile" && len(a.Data) >= 2 {
			idx := uint16(a.Data[0])<<8 | uint16(a.Data[1])
			if sf, err := cf.ConstantPool.Utf8At(idx); err == nil {
				cf.SourceFile = sf
			}
		}
	}

	return cf, nil
}

func parseField(r *Reader, pool Pool) (FieldInfo, error) {
	fi := FieldInfo{}
	var nameIdx, descIdx uint16
	var err error
	if fi.AccessFlags, err = r.U16(); err != nil {
		return fi, err
	}
	if nameIdx, err = r.U16(); err != nil {
		return fi, err
	}
	if descIdx, err = r.U16(); err != nil {
		return fi, err
	}
	if fi.Name, err = pool.Utf8At(nameIdx); err != nil {
		return fi, fmt.Errorf("resolving name: %w", err)
	}
	if fi.Descriptor, err = pool.Utf8At(descIdx); err != nil {
		return fi, fmt.Errorf("resolving descriptor: %w", err)
	}
	attrs, err := parseAttributes(r, pool)
	if err != nil {
		return fi, fmt.Errorf("parsing attributes: %w", err)
	}
	for _, a := range attrs {
		switch a.Name {
		case "ConstantValue":
			if len(a.Data) >= 2 {
				fi.ConstantValueIndex = uint16(a.Data[0])<<8 | uint16(a.Data[1])
			}
		case "Synthetic":
			fi.Synthetic = true
		case "Deprecated":
			fi.Deprecated = true
		default:
			fi.RawAttributes = append(fi.RawAttributes, a)
		}
	}
	return fi, nil
}

func parseMethod(r *Reader, pool Pool) (MethodInfo, error) {
	mi := MethodInfo{}
	var nameIdx, descIdx uint16
	var err error
	if mi.AccessFlags, err = r.U16(); err != nil {
		return mi, err
	}
	if nameIdx, err = r.U16(); err != nil {
		return mi, err
	}
	if descIdx, err = r.U16(); err != nil {
		return mi, err
	}
	if mi.Name, err = pool.Utf8At(nameIdx); err != nil {
		return mi, fmt.Errorf("resolving name: %w", err)
	}
	if mi.Descriptor, err = pool.Utf8At(descIdx); err != nil {
		return mi, fmt.Errorf("resolving descriptor: %w", err)
	}
	attrs, err := parseAttributes(r, pool)
	if err != nil {
		return mi, fmt.Errorf("parsing attributes: %w", err)
	}
	for _, a := range attrs {
		switch a.Name {
		case "Code":
			mi.Code, err = parseCodeAttribute(a.Data, pool)
			if err != nil {
				return mi, fmt.Errorf("parsing Code: %w", err)
			}
		case "Exceptions":
			mi.Exceptions, err = parseExceptionsAttribute(a.Data, pool)
			if err != nil {
				return mi, fmt.Errorf("parsing Exceptions: %w", err)
			}
		case "Synthetic":
			mi.Synthetic = true
		case "Deprecated":
			mi.Deprecated = true
		default:
			mi.RawAttributes = append(mi.RawAttributes, a)
		}
	}
	if mi.Code != nil {
		mi.LineNumbers = mi.Code.LineNumbers
		mi.LocalVariables = mi.Code.LocalVariables
	}
	return mi, nil
}

// parseAttributes reads an attribute_count followed by that many
// attribute_info entries, resolving each name eagerly.
func parseAttributes(r *Reader, pool Pool) ([]RawAttribute, error) {
	count, err := r.U16()
	if err != nil {
		return nil, err
	}
	out := make([]RawAttribute, count)
	for i := range out {
		nameIdx, err := r.U16()
		if err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		length, err := r.U32()
		if err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		data, err := r.Bytes(int(length))
		if err != nil {
			return nil, fmt.Errorf("reading attribute %d data: %w", i, err)
		}
		name, err := pool.Utf8At(nameIdx)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		out[i] = RawAttribute{Name: name, Data: data}
	}
	return out, nil
}

func parseCodeAttribute(data []byte, pool Pool) (*CodeAttribute, error) {
	r := NewReader(data)
	ca := &CodeAttribute{}
	var err error
	if ca.MaxStack, err = r.U16(); err != nil {
		return nil, err
	}
	if ca.MaxLocals, err = r.U16(); err != nil {
		return nil, err
	}
	codeLen, err := r.U32()
	if err != nil {
		return nil, err
	}
	if ca.Code, err = r.Bytes(int(codeLen)); err != nil {
		return nil, fmt.Errorf("reading code bytes: %w", err)
	}
	exTableLen, err := r.U16()
	if err != nil {
		return nil, err
	}
	ca.ExceptionHandlers = make([]ExceptionHandler, exTableLen)
	for i := range ca.ExceptionHandlers {
		h := &ca.ExceptionHandlers[i]
		if h.StartPC, err = r.U16(); err != nil {
			return nil, err
		}
		if h.EndPC, err = r.U16(); err != nil {
			return nil, err
		}
		if h.HandlerPC, err = r.U16(); err != nil {
			return nil, err
		}
		if h.CatchType, err = r.U16(); err != nil {
			return nil, err
		}
	}
	nested, err := parseAttributes(r, pool)
	if err != nil {
		return nil, fmt.Errorf("reading nested Code attributes: %w", err)
	}
	for _, a := range nested {
		switch a.Name {
		case "LineNumberTable":
			lns, err := parseLineNumberTable(a.Data)
			if err != nil {
				return nil, fmt.Errorf("parsing LineNumberTable: %w", err)
			}
			ca.LineNumbers = lns
		case "LocalVariableTable":
			lvs, err := parseLocalVariableTable(a.Data, pool)
			if err != nil {
				return nil, fmt.Errorf("parsing LocalVariableTable: %w", err)
			}
			ca.LocalVariables = lvs
		}
	}
	return ca, nil
}

func parseLineNumberTable(data []byte) ([]LineNumberEntry, error) {
	r := NewReader(data)
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	out := make([]LineNumberEntry, n)
	for i := range out {
		if out[i].StartPC, err = r.U16(); err != nil {
			return nil, err
		}
		if out[i].LineNumber, err = r.U16(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseLocalVariableTable(data []byte, pool Pool) ([]LocalVariableEntry, error) {
	r := NewReader(data)
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	out := make([]LocalVariableEntry, n)
	for i := range out {
		e := &out[i]
		var nameIdx, descIdx uint16
		if e.StartPC, err = r.U16(); err != nil {
			return nil, err
		}
		if e.Length, err = r.U16(); err != nil {
			return nil, err
		}
		if nameIdx, err = r.U16(); err != nil {
			return nil, err
		}
		if descIdx, err = r.U16(); err != nil {
			return nil, err
		}
		if e.Index, err = r.U16(); err != nil {
			return nil, err
		}
		if e.Name, err = pool.Utf8At(nameIdx); err != nil {
			return nil, fmt.Errorf("resolving name: %w", err)
		}
		if e.Desc, err = pool.Utf8At(descIdx); err != nil {
			return nil, fmt.Errorf("resolving descriptor: %w", err)
		}
	}
	return out, nil
}

func parseExceptionsAttribute(data []byte, pool Pool) ([]string, error) {
	r := NewReader(data)
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		idx, err := r.U16()
		if err != nil {
			return nil, err
		}
		name, err := pool.ClassNameAt(idx)
		if err != nil {
			return nil, fmt.Errorf("resolving exception %d: %w", i, err)
		}
		out[i] = name
	}
	return out, nil
}
