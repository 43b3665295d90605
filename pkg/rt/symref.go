package rt

import "fmt"

// RefKind tags what a ResolvedRef points at.
type RefKind int

const (
	RefKindClass RefKind = iota
	RefKindField
	RefKindMethod
	RefKindIfaceMethod
)

// ResolvedRef is the write-once cache entry for a constant-pool symbolic
// reference, keyed by pool slot on the referrer class.
type ResolvedRef struct {
	Kind   RefKind
	Class  *Class
	Name   string
	Desc   string
	Field  *Field
	Method *Method
}

// ResolveClassRef resolves referrer's constant-pool slot i as a class
// reference, caching the result.
func (l *Loader) ResolveClassRef(referrer *Class, i uint16) (*Class, error) {
	if cached := referrer.cachedRef(i); cached != nil {
		return cached.Class, nil
	}
	name, err := referrer.CF.ConstantPool.ClassNameAt(i)
	if err != nil {
		return nil, fmt.Errorf("rt: resolving class ref in %s at %d: %w", referrer.Name, i, err)
	}
	target, err := l.Load(name)
	if err != nil {
		return nil, err
	}
	referrer.cacheRef(i, &ResolvedRef{Kind: RefKindClass, Class: target, Name: name})
	return target, nil
}

// ResolveFieldRef resolves a field reference, looking up the field on the
// owning class once loaded.
func (l *Loader) ResolveFieldRef(referrer *Class, i uint16) (*ResolvedRef, error) {
	if cached := referrer.cachedRef(i); cached != nil {
		return cached, nil
	}
	mr, err := referrer.CF.ConstantPool.FieldRefAt(i)
	if err != nil {
		return nil, fmt.Errorf("rt: resolving field ref in %s at %d: %w", referrer.Name, i, err)
	}
	owner, err := l.Load(mr.ClassName)
	if err != nil {
		return nil, err
	}
	f := owner.LookupField(mr.Name, mr.Descriptor)
	if f == nil {
		return nil, fmt.Errorf("rt: NoSuchFieldError: %s.%s:%s", mr.ClassName, mr.Name, mr.Descriptor)
	}
	ref := &ResolvedRef{Kind: RefKindField, Class: owner, Name: mr.Name, Desc: mr.Descriptor, Field: f}
	referrer.cacheRef(i, ref)
	return ref, nil
}

// ResolveMethodRef resolves a plain (class) method reference via
// class-chain-then-interface lookup.
func (l *Loader) ResolveMethodRef(referrer *Class, i uint16) (*ResolvedRef, error) {
	if cached := referrer.cachedRef(i); cached != nil {
		return cached, nil
	}
	mr, err := referrer.CF.ConstantPool.MethodRefAt(i)
	if err != nil {
		return nil, fmt.Errorf("rt: resolving method ref in %s at %d: %w", referrer.Name, i, err)
	}
	owner, err := l.Load(mr.ClassName)
	if err != nil {
		return nil, err
	}
	m := owner.LookupMethod(mr.Name, mr.Descriptor)
	if m == nil {
		return nil, fmt.Errorf("rt: NoSuchMethodError: %s.%s%s", mr.ClassName, mr.Name, mr.Descriptor)
	}
	ref := &ResolvedRef{Kind: RefKindMethod, Class: owner, Name: mr.Name, Desc: mr.Descriptor, Method: m}
	referrer.cacheRef(i, ref)
	return ref, nil
}

// ResolveIfaceMethodRef resolves an interface method reference.
func (l *Loader) ResolveIfaceMethodRef(referrer *Class, i uint16) (*ResolvedRef, error) {
	if cached := referrer.cachedRef(i); cached != nil {
		return cached, nil
	}
	mr, err := referrer.CF.ConstantPool.InterfaceMethodRefAt(i)
	if err != nil {
		return nil, fmt.Errorf("rt: resolving interface method ref in %s at %d: %w", referrer.Name, i, err)
	}
	owner, err := l.Load(mr.ClassName)
	if err != nil {
		return nil, err
	}
	m := owner.lookupIfaceMethod(mr.Name, mr.Descriptor)
	if m == nil {
		return nil, fmt.Errorf("rt: NoSuchMethodError: %s.%s%s", mr.ClassName, mr.Name, mr.Descriptor)
	}
	ref := &ResolvedRef{Kind: RefKindIfaceMethod, Class: owner, Name: mr.Name, Desc: mr.Descriptor, Method: m}
	referrer.cacheRef(i, ref)
	return ref, nil
}

func (c *Class) cachedRef(i uint16) *ResolvedRef {
	if int(i) >= len(c.symRefs) {
		return nil
	}
	return c.symRefs[i]
}

func (c *Class) cacheRef(i uint16, ref *ResolvedRef) {
	if c.symRefs == nil {
		c.symRefs = make([]*ResolvedRef, len(c.CF.ConstantPool))
	}
	if c.symRefs[i] != nil {
		return // write-once: first resolution wins
	}
	c.symRefs[i] = ref
}
