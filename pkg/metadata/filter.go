package metadata

// Filter is a predicate tree evaluated against a document's metadata map
// during search (spec §4.8). The zero value of every concrete filter type
// is not meaningful; build filters with the constructors below.
type Filter interface {
	// Eval reports whether md satisfies the filter. Eval is deterministic
	// and side-effect-free: the same (filter, md) pair always returns the
	// same result.
	Eval(md Map) bool
}

// comparison filters

type eqFilter struct {
	key string
	val Value
}

type neFilter struct {
	key string
	val Value
}

type ltFilter struct {
	key string
	val Value
}

type leFilter struct {
	key string
	val Value
}

type gtFilter struct {
	key string
	val Value
}

type geFilter struct {
	key string
	val Value
}

type inFilter struct {
	key string
	set []Value
}

type existsFilter struct {
	key string
}

// boolean combinators

type andFilter struct{ operands []Filter }
type orFilter struct{ operands []Filter }
type notFilter struct{ operand Filter }

func Eq(key string, val Value) Filter    { return eqFilter{key, val} }
func Ne(key string, val Value) Filter    { return neFilter{key, val} }
func Lt(key string, val Value) Filter    { return ltFilter{key, val} }
func Le(key string, val Value) Filter    { return leFilter{key, val} }
func Gt(key string, val Value) Filter    { return gtFilter{key, val} }
func Ge(key string, val Value) Filter    { return geFilter{key, val} }
func In(key string, set []Value) Filter  { return inFilter{key, set} }
func Exists(key string) Filter           { return existsFilter{key} }
func And(operands ...Filter) Filter      { return andFilter{operands} }
func Or(operands ...Filter) Filter       { return orFilter{operands} }
func Not(operand Filter) Filter          { return notFilter{operand} }

// Eq matches when md[key] is present and equal to val under Value.Equal's
// coercion rules. Absent key never matches.
func (f eqFilter) Eval(md Map) bool {
	v, ok := md[f.key]
	if !ok {
		return false
	}
	return v.Equal(f.val)
}

// Ne matches when md[key] is present and not equal to val. Absent key
// never matches: Ne is not the logical negation of Eq over missing keys,
// matching spec §4.8's rule that comparisons on a missing key are always
// false (Exists/Not are the only operators that observe absence directly).
func (f neFilter) Eval(md Map) bool {
	v, ok := md[f.key]
	if !ok {
		return false
	}
	return !v.Equal(f.val)
}

func (f ltFilter) Eval(md Map) bool {
	v, ok := md[f.key]
	if !ok {
		return false
	}
	cmp, ok := v.Compare(f.val)
	return ok && cmp < 0
}

func (f leFilter) Eval(md Map) bool {
	v, ok := md[f.key]
	if !ok {
		return false
	}
	cmp, ok := v.Compare(f.val)
	return ok && cmp <= 0
}

func (f gtFilter) Eval(md Map) bool {
	v, ok := md[f.key]
	if !ok {
		return false
	}
	cmp, ok := v.Compare(f.val)
	return ok && cmp > 0
}

func (f geFilter) Eval(md Map) bool {
	v, ok := md[f.key]
	if !ok {
		return false
	}
	cmp, ok := v.Compare(f.val)
	return ok && cmp >= 0
}

// In matches when md[key] is present and equal (per Value.Equal) to any
// member of the set.
func (f inFilter) Eval(md Map) bool {
	v, ok := md[f.key]
	if !ok {
		return false
	}
	for _, candidate := range f.set {
		if v.Equal(candidate) {
			return true
		}
	}
	return false
}

// Exists matches whenever key is present in md, regardless of value
// (including Null).
func (f existsFilter) Eval(md Map) bool {
	_, ok := md[f.key]
	return ok
}

// And is vacuously true over zero operands.
func (f andFilter) Eval(md Map) bool {
	for _, op := range f.operands {
		if !op.Eval(md) {
			return false
		}
	}
	return true
}

// Or is vacuously false over zero operands.
func (f orFilter) Eval(md Map) bool {
	for _, op := range f.operands {
		if op.Eval(md) {
			return true
		}
	}
	return false
}

func (f notFilter) Eval(md Map) bool {
	return !f.operand.Eval(md)
}
