package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Kind is the tag of a PropertyValue's variant. Kind order is also the
// primary key of PropertyValue's total order (spec §4.A): values of a lower
// Kind always sort before values of a higher Kind.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindString
	KindDateTime
	KindArray
	KindMap
	KindVector
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBoolean:
		return "Boolean"
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindDateTime:
		return "DateTime"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindVector:
		return "Vector"
	default:
		return "Unknown"
	}
}

// MapEntry is one key/value pair of a Map PropertyValue, kept in insertion
// order (spec §3: "Map(ordered key→PropertyValue)").
type MapEntry struct {
	Key   string
	Value PropertyValue
}

// PropertyValue is the tagged union described in spec §3/§4.A. The zero
// value is Null. Values are immutable after construction; copy the slice
// fields if you intend to mutate a builder around one.
type PropertyValue struct {
	kind Kind

	b   bool
	i   int64
	f   float64
	s   string
	dt  int64 // milliseconds since epoch
	arr []PropertyValue
	m   []MapEntry
	vec []float32
}

// Null is the singleton Null value.
var Null = PropertyValue{kind: KindNull}

func NewBoolean(v bool) PropertyValue    { return PropertyValue{kind: KindBoolean, b: v} }
func NewInteger(v int64) PropertyValue   { return PropertyValue{kind: KindInteger, i: v} }
func NewFloat(v float64) PropertyValue   { return PropertyValue{kind: KindFloat, f: v} }
func NewString(v string) PropertyValue   { return PropertyValue{kind: KindString, s: v} }
func NewDateTime(msEpoch int64) PropertyValue {
	return PropertyValue{kind: KindDateTime, dt: msEpoch}
}

// NewArray copies elems into a new Array value.
func NewArray(elems []PropertyValue) PropertyValue {
	cp := make([]PropertyValue, len(elems))
	copy(cp, elems)
	return PropertyValue{kind: KindArray, arr: cp}
}

// NewMap builds a Map value, preserving the order entries are given in.
func NewMap(entries []MapEntry) PropertyValue {
	cp := make([]MapEntry, len(entries))
	copy(cp, entries)
	return PropertyValue{kind: KindMap, m: cp}
}

// NewVector copies v into a new Vector value.
func NewVector(v []float32) PropertyValue {
	cp := make([]float32, len(v))
	copy(cp, v)
	return PropertyValue{kind: KindVector, vec: cp}
}

func (v PropertyValue) Kind() Kind   { return v.kind }
func (v PropertyValue) IsNull() bool { return v.kind == KindNull }

func (v PropertyValue) AsBoolean() (bool, bool)  { return v.b, v.kind == KindBoolean }
func (v PropertyValue) AsInteger() (int64, bool) { return v.i, v.kind == KindInteger }
func (v PropertyValue) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }
func (v PropertyValue) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v PropertyValue) AsDateTime() (int64, bool) { return v.dt, v.kind == KindDateTime }
func (v PropertyValue) AsArray() ([]PropertyValue, bool) { return v.arr, v.kind == KindArray }
func (v PropertyValue) AsMap() ([]MapEntry, bool)        { return v.m, v.kind == KindMap }
func (v PropertyValue) AsVector() ([]float32, bool)      { return v.vec, v.kind == KindVector }

// AsNumeric returns v as a float64 if it is an Integer or a Float, applying
// the numeric promotion spec §4.A allows for mixed comparisons.
func (v PropertyValue) AsNumeric() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// Equal implements spec §4.A strict-by-variant equality: Integer(1) !=
// Float(1.0). Maps compare entry-by-entry after sorting by key; arrays
// compare element-wise in order.
func (v PropertyValue) Equal(o PropertyValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBoolean:
		return v.b == o.b
	case KindInteger:
		return v.i == o.i
	case KindFloat:
		return floatBits(v.f) == floatBits(o.f)
	case KindString:
		return v.s == o.s
	case KindDateTime:
		return v.dt == o.dt
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		va, oa := sortedEntries(v.m), sortedEntries(o.m)
		if len(va) != len(oa) {
			return false
		}
		for i := range va {
			if va[i].Key != oa[i].Key || !va[i].Value.Equal(oa[i].Value) {
				return false
			}
		}
		return true
	case KindVector:
		if len(v.vec) != len(o.vec) {
			return false
		}
		for i := range v.vec {
			if v.vec[i] != o.vec[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func sortedEntries(m []MapEntry) []MapEntry {
	cp := make([]MapEntry, len(m))
	copy(cp, m)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Key < cp[j].Key })
	return cp
}

// floatBits gives NaN and -0.0/+0.0 a deterministic, total-ordered bit
// representation (spec §3: "floats use total-order bit comparison").
func floatBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		// Negative: flip everything so more-negative sorts lower.
		bits = ^bits
	} else {
		// Positive: flip only the sign bit so positives sort above negatives.
		bits |= 1 << 63
	}
	return bits
}

// Compare defines the total order of spec §4.A: first by variant Kind, then
// by within-variant natural order (floats via bit pattern, maps by
// sorted-key then value). It never errors — it is the order used by
// indices and ORDER BY, not the three-valued WHERE comparison operators
// (those live in pkg/plan, which yields Null when either side is Null and
// otherwise calls CompareOrdinal below, reporting a type mismatch as an
// error).
func Compare(a, b PropertyValue) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBoolean:
		return boolCompare(a.b, b.b)
	case KindInteger:
		return int64Compare(a.i, b.i)
	case KindFloat:
		return uint64Compare(floatBits(a.f), floatBits(b.f))
	case KindString:
		return stringCompare(a.s, b.s)
	case KindDateTime:
		return int64Compare(a.dt, b.dt)
	case KindArray:
		return compareSlices(a.arr, b.arr)
	case KindMap:
		ae, be := sortedEntries(a.m), sortedEntries(b.m)
		n := len(ae)
		if len(be) < n {
			n = len(be)
		}
		for i := 0; i < n; i++ {
			if c := stringCompare(ae[i].Key, be[i].Key); c != 0 {
				return c
			}
			if c := Compare(ae[i].Value, be[i].Value); c != 0 {
				return c
			}
		}
		return int64Compare(int64(len(ae)), int64(len(be)))
	case KindVector:
		af := make([]PropertyValue, len(a.vec))
		bf := make([]PropertyValue, len(b.vec))
		for i, x := range a.vec {
			af[i] = NewFloat(float64(x))
		}
		for i, x := range b.vec {
			bf[i] = NewFloat(float64(x))
		}
		return compareSlices(af, bf)
	default:
		return 0
	}
}

func compareSlices(a, b []PropertyValue) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return int64Compare(int64(len(a)), int64(len(b)))
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}
func int64Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
func uint64Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
func stringCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ErrTypeMismatch is returned by CompareOrdinal when the two operands are
// not both numeric and not both strings.
var ErrTypeMismatch = fmt.Errorf("type error: operands are not comparable")

// CompareOrdinal implements the relational-operator comparison of spec
// §4.A: succeeds when both sides are numeric (Integer/Float mixed allowed
// via promotion) or both strings; otherwise it is a type error. Null
// operands are handled by the caller (WHERE treats them as three-valued),
// not here.
func CompareOrdinal(a, b PropertyValue) (int, error) {
	if af, aok := a.AsNumeric(); aok {
		if bf, bok := b.AsNumeric(); bok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
		return 0, ErrTypeMismatch
	}
	if as, aok := a.AsString(); aok {
		if bs, bok := b.AsString(); bok {
			return stringCompare(as, bs), nil
		}
		return 0, ErrTypeMismatch
	}
	return 0, ErrTypeMismatch
}

// Hash returns a deterministic hash of v using xxhash, per spec §4.A:
// "Hashing must be deterministic: map hashing sorts keys first; float
// hashing uses bit pattern."
func (v PropertyValue) Hash() uint64 {
	h := xxhash.New()
	hashInto(h, v)
	return h.Sum64()
}

func hashInto(h *xxhash.Digest, v PropertyValue) {
	var kindByte [1]byte
	kindByte[0] = byte(v.kind)
	h.Write(kindByte[:])
	switch v.kind {
	case KindNull:
	case KindBoolean:
		if v.b {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case KindInteger:
		writeUint64(h, uint64(v.i))
	case KindFloat:
		writeUint64(h, floatBits(v.f))
	case KindString:
		h.Write([]byte(v.s))
	case KindDateTime:
		writeUint64(h, uint64(v.dt))
	case KindArray:
		for _, e := range v.arr {
			hashInto(h, e)
		}
	case KindMap:
		for _, e := range sortedEntries(v.m) {
			h.Write([]byte(e.Key))
			hashInto(h, e.Value)
		}
	case KindVector:
		for _, f := range v.vec {
			writeUint64(h, floatBits(float64(f)))
		}
	}
}

func writeUint64(h *xxhash.Digest, u uint64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(u >> (8 * i))
	}
	h.Write(buf[:])
}

// jsonValue is the wire shape PropertyValue marshals to: a type tag plus a
// variant-appropriate payload. Kept separate from the in-memory layout so
// persistence (pkg/persistence's WAL entries) doesn't depend on
// PropertyValue's unexported fields.
type jsonValue struct {
	Kind  string         `json:"kind"`
	Bool  *bool          `json:"b,omitempty"`
	Int   *int64         `json:"i,omitempty"`
	Float *float64       `json:"f,omitempty"`
	Str   *string        `json:"s,omitempty"`
	DT    *int64         `json:"dt,omitempty"`
	Arr   []jsonValue    `json:"arr,omitempty"`
	Map   []jsonMapEntry `json:"m,omitempty"`
	Vec   []float32      `json:"vec,omitempty"`
}

type jsonMapEntry struct {
	Key   string    `json:"key"`
	Value jsonValue `json:"value"`
}

// MarshalJSON encodes v as a tagged {"kind":...} object so the variant
// survives a round trip through persistence (WAL entries, snapshots).
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toJSONValue())
}

func (v PropertyValue) toJSONValue() jsonValue {
	jv := jsonValue{Kind: v.kind.String()}
	switch v.kind {
	case KindBoolean:
		jv.Bool = &v.b
	case KindInteger:
		jv.Int = &v.i
	case KindFloat:
		jv.Float = &v.f
	case KindString:
		jv.Str = &v.s
	case KindDateTime:
		jv.DT = &v.dt
	case KindArray:
		jv.Arr = make([]jsonValue, len(v.arr))
		for i, e := range v.arr {
			jv.Arr[i] = e.toJSONValue()
		}
	case KindMap:
		jv.Map = make([]jsonMapEntry, len(v.m))
		for i, e := range v.m {
			jv.Map[i] = jsonMapEntry{Key: e.Key, Value: e.Value.toJSONValue()}
		}
	case KindVector:
		jv.Vec = v.vec
	}
	return jv
}

// UnmarshalJSON decodes the tagged form produced by MarshalJSON.
func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	pv, err := fromJSONValue(jv)
	if err != nil {
		return err
	}
	*v = pv
	return nil
}

func fromJSONValue(jv jsonValue) (PropertyValue, error) {
	switch jv.Kind {
	case "Null", "":
		return Null, nil
	case "Boolean":
		if jv.Bool == nil {
			return PropertyValue{}, fmt.Errorf("graph: malformed Boolean value")
		}
		return NewBoolean(*jv.Bool), nil
	case "Integer":
		if jv.Int == nil {
			return PropertyValue{}, fmt.Errorf("graph: malformed Integer value")
		}
		return NewInteger(*jv.Int), nil
	case "Float":
		if jv.Float == nil {
			return PropertyValue{}, fmt.Errorf("graph: malformed Float value")
		}
		return NewFloat(*jv.Float), nil
	case "String":
		if jv.Str == nil {
			return PropertyValue{}, fmt.Errorf("graph: malformed String value")
		}
		return NewString(*jv.Str), nil
	case "DateTime":
		if jv.DT == nil {
			return PropertyValue{}, fmt.Errorf("graph: malformed DateTime value")
		}
		return NewDateTime(*jv.DT), nil
	case "Array":
		elems := make([]PropertyValue, len(jv.Arr))
		for i, e := range jv.Arr {
			pv, err := fromJSONValue(e)
			if err != nil {
				return PropertyValue{}, err
			}
			elems[i] = pv
		}
		return NewArray(elems), nil
	case "Map":
		entries := make([]MapEntry, len(jv.Map))
		for i, e := range jv.Map {
			pv, err := fromJSONValue(e.Value)
			if err != nil {
				return PropertyValue{}, err
			}
			entries[i] = MapEntry{Key: e.Key, Value: pv}
		}
		return NewMap(entries), nil
	case "Vector":
		return NewVector(jv.Vec), nil
	default:
		return PropertyValue{}, fmt.Errorf("graph: unknown PropertyValue kind %q", jv.Kind)
	}
}

func (v PropertyValue) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBoolean:
		return fmt.Sprintf("%t", v.b)
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindDateTime:
		return fmt.Sprintf("DateTime(%d)", v.dt)
	case KindArray:
		return fmt.Sprintf("%v", v.arr)
	case KindMap:
		return fmt.Sprintf("%v", v.m)
	case KindVector:
		return fmt.Sprintf("Vector(%d)", len(v.vec))
	default:
		return "?"
	}
}
