package record

// Value is a scalar context/attribute value: string, integer, float, bool,
// or null (represented by Kind == KindNull with the other fields zeroed).
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Flt  float64
	Bool bool
}

// ValueKind discriminates the scalar type carried by a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
)

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Flt: f} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func NullValue() Value            { return Value{Kind: KindNull} }

// Any returns the value's dynamic Go type, for encoders that want it
// (e.g. the JSON formatter).
func (v Value) Any() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Flt
	case KindBool:
		return v.Bool
	default:
		return nil
	}
}

// Field is one key->scalar context binding.
type Field struct {
	Key   string
	Value Value
}

// Context is an immutable linked list of binding frames: a parent pointer
// plus a local delta of fields added at this frame. Logger.Bind pushes a
// new frame rather than copying the full map (Unbind rebuilds one flat
// frame; Scoped shares the parent's frame unchanged), so a log call only
// ever snapshots the frame pointer (design note §9) — the
// snapshot is O(1) regardless of how many bindings the logger has
// accumulated.
type Context struct {
	parent *Context
	fields []Field
}

// Push returns a new Context with fields appended as a new frame on top of
// c. c is never mutated. A nil receiver is treated as an empty context.
func (c *Context) Push(fields ...Field) *Context {
	if len(fields) == 0 {
		return c
	}
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return &Context{parent: c, fields: cp}
}

// Unbind returns a Context without the given key. It does not push a
// tombstone frame: it flattens c, deletes the key, and returns a single
// new root frame (no parent) holding the remaining bindings, since unbind
// is rare (administrative) compared to bind/log. If the key is not bound,
// c itself is returned.
func (c *Context) Unbind(key string) *Context {
	flat := c.Flatten()
	if _, ok := flat[key]; !ok {
		return c
	}
	delete(flat, key)
	fields := make([]Field, 0, len(flat))
	for k, v := range flat {
		fields = append(fields, Field{Key: k, Value: v})
	}
	return &Context{fields: fields}
}

// Flatten materializes the full key->value map by walking from this frame
// to the root, letting the newest binding for a given key win. Call sites
// that only need this once per Record (e.g. the JSON formatter) should
// cache the result rather than calling Flatten repeatedly.
func (c *Context) Flatten() map[string]Value {
	out := make(map[string]Value)
	var frames []*Context
	for f := c; f != nil; f = f.parent {
		frames = append(frames, f)
	}
	// Walk root-first so newer frames overwrite older ones.
	for i := len(frames) - 1; i >= 0; i-- {
		for _, fld := range frames[i].fields {
			out[fld.Key] = fld.Value
		}
	}
	return out
}

// Len reports the number of distinct keys visible from this frame.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Flatten())
}
