package docstore

import (
	"fmt"
	"reflect"
	"strings"
)

type opKind int

const (
	opSet opKind = iota
	opUnset
	opPush
	opPull
	opSetElem
	opInc
	opClearIf
	opRatio
)

type op struct {
	kind  opKind
	field string
	value interface{}
	match Filter
	sub   string
	delta float64
	num   string
	den   string
}

// Mutation is an ordered list of field operations applied atomically to one document.
type Mutation struct {
	ops []op
	err error
}

// NewMutation starts an empty mutation.
func NewMutation() *Mutation {
	return &Mutation{}
}

func (m *Mutation) add(o op) *Mutation {
	if o.field == IDField {
		m.fail(fmt.Errorf("%w: %s is immutable", ErrInvalidMutation, IDField))
		return m
	}
	m.ops = append(m.ops, o)
	return m
}

func (m *Mutation) fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

func (m *Mutation) value(v interface{}) interface{} {
	n, err := normalize(v)
	if err != nil {
		m.fail(fmt.Errorf("%w: %v", ErrInvalidMutation, err))
	}
	return n
}

// Set assigns value to a dotted field path.
func (m *Mutation) Set(field string, value interface{}) *Mutation {
	return m.add(op{kind: opSet, field: field, value: m.value(value)})
}

// Unset removes a field.
func (m *Mutation) Unset(field string) *Mutation {
	return m.add(op{kind: opUnset, field: field})
}

// Push appends element to an array field, creating it when missing.
func (m *Mutation) Push(field string, element interface{}) *Mutation {
	return m.add(op{kind: opPush, field: field, value: m.value(element)})
}

// Pull removes every array element matching match.
func (m *Mutation) Pull(field string, match Filter) *Mutation {
	return m.add(op{kind: opPull, field: field, match: m.filter(match)})
}

// SetElem assigns sub = value inside every array element matching match.
func (m *Mutation) SetElem(field string, match Filter, sub string, value interface{}) *Mutation {
	return m.add(op{kind: opSetElem, field: field, match: m.filter(match), sub: sub, value: m.value(value)})
}

// Inc adds delta to a numeric field, treating a missing field as zero.
func (m *Mutation) Inc(field string, delta float64) *Mutation {
	return m.add(op{kind: opInc, field: field, delta: delta})
}

// ClearIf sets field to null when its current value equals equals.
func (m *Mutation) ClearIf(field string, equals interface{}) *Mutation {
	return m.add(op{kind: opClearIf, field: field, value: m.value(equals)})
}

// Ratio sets field to numerator/denominator using the values present when the
// op runs, so it belongs after the Inc ops it depends on. A zero denominator yields 0.
func (m *Mutation) Ratio(field, numerator, denominator string) *Mutation {
	return m.add(op{kind: opRatio, field: field, num: numerator, den: denominator})
}

// Err reports a construction error, if any.
func (m *Mutation) Err() error {
	return m.err
}

// Fields lists every top-level field the mutation touches.
func (m *Mutation) Fields() []string {
	seen := map[string]bool{}
	var out []string
	for _, o := range m.ops {
		top := strings.SplitN(o.field, ".", 2)[0]
		if !seen[top] {
			seen[top] = true
			out = append(out, top)
		}
	}
	return out
}

func (m *Mutation) filter(f Filter) Filter {
	n, err := NormalizeFilter(f)
	if err != nil {
		m.fail(fmt.Errorf("%w: %v", ErrInvalidMutation, err))
	}
	return n
}

// Apply runs the mutation against doc in place and reports whether anything changed.
func Apply(doc Document, m *Mutation) (bool, error) {
	if m == nil {
		return false, nil
	}
	if m.err != nil {
		return false, m.err
	}

	changed := false
	for _, o := range m.ops {
		c, err := applyOp(doc, o)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	return changed, nil
}

func applyOp(doc Document, o op) (bool, error) {
	root := map[string]interface{}(doc)

	switch o.kind {
	case opSet:
		return setPath(root, o.field, o.value)

	case opUnset:
		return unsetPath(root, o.field), nil

	case opPush:
		arr, err := arrayAt(root, o.field)
		if err != nil {
			return false, err
		}
		arr = append(arr, deepCopy(o.value))
		return setPath(root, o.field, arr)

	case opPull:
		arr, err := arrayAt(root, o.field)
		if err != nil {
			return false, err
		}
		kept := make([]interface{}, 0, len(arr))
		for _, el := range arr {
			if obj, ok := el.(map[string]interface{}); ok && Match(Document(obj), o.match) {
				continue
			}
			kept = append(kept, el)
		}
		if len(kept) == len(arr) {
			return false, nil
		}
		return setPath(root, o.field, kept)

	case opSetElem:
		arr, err := arrayAt(root, o.field)
		if err != nil {
			return false, err
		}
		changed := false
		for _, el := range arr {
			obj, ok := el.(map[string]interface{})
			if !ok || !Match(Document(obj), o.match) {
				continue
			}
			c, err := setPath(obj, o.sub, o.value)
			if err != nil {
				return false, err
			}
			changed = changed || c
		}
		return changed, nil

	case opInc:
		cur, err := numberAt(root, o.field)
		if err != nil {
			return false, err
		}
		if o.delta == 0 {
			return false, nil
		}
		return setPath(root, o.field, cur+o.delta)

	case opClearIf:
		cur, ok := lookup(root, o.field)
		if !ok || cur == nil || !valuesEqual(cur, o.value) {
			return false, nil
		}
		return setPath(root, o.field, nil)

	case opRatio:
		num, err := numberAt(root, o.num)
		if err != nil {
			return false, err
		}
		den, err := numberAt(root, o.den)
		if err != nil {
			return false, err
		}
		ratio := 0.0
		if den != 0 {
			ratio = num / den
		}
		return setPath(root, o.field, ratio)
	}

	return false, fmt.Errorf("%w: unknown op", ErrInvalidMutation)
}

func setPath(root map[string]interface{}, path string, value interface{}) (bool, error) {
	segs := splitPath(path)
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg]
		if !ok || next == nil {
			child := map[string]interface{}{}
			cur[seg] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return false, fmt.Errorf("%w: %s crosses a non-object field", ErrInvalidMutation, path)
		}
		cur = child
	}

	last := segs[len(segs)-1]
	if old, ok := cur[last]; ok && reflect.DeepEqual(old, value) {
		return false, nil
	}
	cur[last] = value
	return true, nil
}

func unsetPath(root map[string]interface{}, path string) bool {
	segs := splitPath(path)
	cur := root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := cur[seg].(map[string]interface{})
		if !ok {
			return false
		}
		cur = child
	}
	last := segs[len(segs)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	delete(cur, last)
	return true
}

func arrayAt(root map[string]interface{}, path string) ([]interface{}, error) {
	v, ok := lookup(root, path)
	if !ok || v == nil {
		return []interface{}{}, nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an array", ErrInvalidMutation, path)
	}
	return arr, nil
}

func numberAt(root map[string]interface{}, path string) (float64, error) {
	v, ok := lookup(root, path)
	if !ok || v == nil {
		return 0, nil
	}
	n, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidMutation, path)
	}
	return n, nil
}

func deepCopy(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[k] = deepCopy(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, val := range x {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return x
	}
}

// CloneDocument returns a deep copy of doc.
func CloneDocument(doc Document) Document {
	if doc == nil {
		return nil
	}
	return Document(deepCopy(map[string]interface{}(doc)).(map[string]interface{}))
}
