package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Document is a schema-less, insertion-ordered key→value document. It is the
// single representation for negotiation proposals and shared-context content,
// so the numeric-mean / boolean-majority / most-frequent combination rule
// lives here once instead of being repeated per engine.
//
// Values are JSON-shaped: numbers, booleans, strings, nil, []any, and
// map[string]any round-trip losslessly.
type Document struct {
	keys   []string
	values map[string]any
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{values: make(map[string]any)}
}

// DocumentFromMap builds a document from a plain map. Keys are inserted in
// sorted order so the result is deterministic.
func DocumentFromMap(m map[string]any) *Document {
	d := NewDocument()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d.Set(k, m[k])
	}
	return d
}

// Set stores a value, appending the key on first insertion.
func (d *Document) Set(key string, value any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get retrieves a value.
func (d *Document) Get(key string) (any, bool) {
	if d == nil || d.values == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// Delete removes a key. Missing keys are a no-op.
func (d *Document) Delete(key string) {
	if d == nil || d.values == nil {
		return
	}
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The slice is a copy.
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the number of keys.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := NewDocument()
	for _, k := range d.keys {
		out.Set(k, deepCopyValue(d.values[k]))
	}
	return out
}

// Map returns the document as a plain map. Nested values are deep-copied.
func (d *Document) Map() map[string]any {
	if d == nil {
		return nil
	}
	out := make(map[string]any, len(d.keys))
	for _, k := range d.keys {
		out[k] = deepCopyValue(d.values[k])
	}
	return out
}

// Equal reports whether two documents hold the same keys and values,
// ignoring key order.
func (d *Document) Equal(other *Document) bool {
	if d.Len() != other.Len() {
		return false
	}
	for _, k := range d.keys {
		ov, ok := other.Get(k)
		if !ok || !valuesEqual(d.values[k], ov) {
			return false
		}
	}
	return true
}

// Canonical returns a deterministic string form of the document: JSON with
// keys sorted lexicographically. Used for VOTING comparisons and hashing.
func (d *Document) Canonical() string {
	if d == nil || len(d.keys) == 0 {
		return "{}"
	}
	keys := make([]string, len(d.keys))
	copy(keys, d.keys)
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(normalizeNumbers(d.values[k]))
		if err != nil {
			vb, _ = json.Marshal(fmt.Sprint(d.values[k]))
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.String()
}

// MarshalJSON encodes the document as a JSON object in insertion order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving the key order of the
// encoded form.
func (d *Document) UnmarshalJSON(data []byte) error {
	d.keys = nil
	d.values = make(map[string]any)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document: expected JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("document: non-string key %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		val, err := decodeValue(raw)
		if err != nil {
			return err
		}
		d.Set(key, val)
	}
	// Consume closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// decodeValue decodes raw JSON into a JSON-shaped Go value, converting
// numbers to float64.
func decodeValue(raw json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// MergePolicy selects how overlapping keys are resolved when merging two
// documents.
type MergePolicy string

const (
	// MergeLastWrite takes the incoming (source) value for every
	// overlapping key, identical to MergeSourceWins but named for callers
	// that think in write-order terms.
	MergeLastWrite MergePolicy = "last_write"
	// MergeSourceWins takes the source value on overlap.
	MergeSourceWins MergePolicy = "source_wins"
	// MergeTargetWins keeps the target value on overlap.
	MergeTargetWins MergePolicy = "target_wins"
	// MergeCombine applies the combination rule on overlap:
	// numeric→mean, boolean→majority, other→most frequent.
	MergeCombine MergePolicy = "combine"
)

// MergeFunc resolves a single overlapping key. Used when a caller supplies
// its own merge behavior.
type MergeFunc func(key string, target, source any) any

// Merge returns a new document containing the union of d (target) and source.
// Keys unique to either side are carried over; overlapping keys are resolved
// by policy. fn is consulted only when policy is empty and fn non-nil.
func (d *Document) Merge(source *Document, policy MergePolicy, fn MergeFunc) *Document {
	out := d.Clone()
	if out == nil {
		out = NewDocument()
	}
	if source == nil {
		return out
	}
	for _, k := range source.keys {
		sv := source.values[k]
		tv, exists := out.Get(k)
		if !exists {
			out.Set(k, deepCopyValue(sv))
			continue
		}
		switch {
		case fn != nil && policy == "":
			out.Set(k, fn(k, tv, sv))
		case policy == MergeTargetWins:
			// keep target
		case policy == MergeCombine:
			out.Set(k, CombineValues([]any{tv, sv}))
		default: // MergeSourceWins, MergeLastWrite
			out.Set(k, deepCopyValue(sv))
		}
	}
	return out
}

// CombineValues reduces candidate values for one key to a single value:
// all-numeric→arithmetic mean, all-boolean→majority vote, otherwise the most
// frequent value (ties broken by first occurrence).
func CombineValues(values []any) any {
	if len(values) == 0 {
		return nil
	}

	numeric := true
	boolean := true
	for _, v := range values {
		if _, ok := AsNumber(v); !ok {
			numeric = false
		}
		if _, ok := v.(bool); !ok {
			boolean = false
		}
	}

	if numeric {
		var sum float64
		for _, v := range values {
			n, _ := AsNumber(v)
			sum += n
		}
		return sum / float64(len(values))
	}

	if boolean {
		trues := 0
		for _, v := range values {
			if v.(bool) {
				trues++
			}
		}
		return trues*2 > len(values)
	}

	// Most frequent value by canonical form; first occurrence wins ties.
	counts := make(map[string]int)
	first := make(map[string]any)
	order := make([]string, 0, len(values))
	for _, v := range values {
		key := canonicalValue(v)
		if _, seen := counts[key]; !seen {
			first[key] = v
			order = append(order, key)
		}
		counts[key]++
	}
	bestKey := order[0]
	for _, k := range order {
		if counts[k] > counts[bestKey] {
			bestKey = k
		}
	}
	return first[bestKey]
}

// ChangeOp identifies the kind of change between two document states.
type ChangeOp string

const (
	OpCreate ChangeOp = "CREATE"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
	// OpMerge marks a synthetic change recording a context merge.
	OpMerge ChangeOp = "MERGE"
	// OpRevert marks a synthetic change recording a revert.
	OpRevert ChangeOp = "REVERT"
)

// Change is a path-level difference between two document states.
type Change struct {
	Op       ChangeOp       `json:"op"`
	Path     string         `json:"path"`
	OldValue any            `json:"old_value,omitempty"`
	NewValue any            `json:"new_value,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Diff computes the path-level changes that transform d into next. Keys are
// visited in next's insertion order, then d's order for deletions.
func (d *Document) Diff(next *Document) []Change {
	var changes []Change
	if next != nil {
		for _, k := range next.keys {
			nv := next.values[k]
			ov, existed := d.Get(k)
			switch {
			case !existed:
				changes = append(changes, Change{Op: OpCreate, Path: k, NewValue: nv})
			case !valuesEqual(ov, nv):
				changes = append(changes, Change{Op: OpUpdate, Path: k, OldValue: ov, NewValue: nv})
			}
		}
	}
	if d != nil {
		for _, k := range d.keys {
			if _, ok := next.Get(k); !ok {
				changes = append(changes, Change{Op: OpDelete, Path: k, OldValue: d.values[k]})
			}
		}
	}
	return changes
}

// AsNumber converts a JSON-shaped numeric value to float64.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func canonicalValue(v any) string {
	b, err := json.Marshal(normalizeNumbers(v))
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// normalizeNumbers folds every numeric representation to float64 so that
// int(10) and float64(10) canonicalize identically.
func normalizeNumbers(v any) any {
	if n, ok := AsNumber(v); ok {
		return n
	}
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeNumbers(e)
		}
		return out
	default:
		return v
	}
}

func valuesEqual(a, b any) bool {
	an, aok := AsNumber(a)
	bn, bok := AsNumber(b)
	if aok && bok {
		return an == bn
	}
	return reflect.DeepEqual(normalizeNumbers(a), normalizeNumbers(b))
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = deepCopyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
