package rt

// Object is a heap-allocated instance: a class link plus a dense payload of
// 64-bit slots, one per entry of Class.InstanceFields (plus any extra slots
// requested by NewObjectSize, used to stash host-side state on mirrors).
type Object struct {
	Class   *Class
	Payload []Value
}

// GetField reads an instance field by its layout index.
func (o *Object) GetField(index int) Value { return o.Payload[index] }

// SetField writes an instance field by its layout index.
func (o *Object) SetField(index int, v Value) { o.Payload[index] = v }

// Array is a heap-allocated array: either a reference array (Elem ==
// KindRef) or a primitive array, whose element width is implied by AType.
type Array struct {
	Class *Class
	AType byte // one of the Atype* constants, or 0 for reference arrays
	Elem  Kind
	Data  []Value
}

func (a *Array) Length() int32 { return int32(len(a.Data)) }
