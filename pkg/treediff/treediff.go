// Package treediff computes a categorized structural diff between two JSON
// trees. Categories follow the usual deep-diff vocabulary: changed values,
// changed types, mapping keys added or removed, and sequence items added or
// removed.
package treediff

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"

	"github.com/jdgilhuly/go_struct_eval/pkg/jsontree"
)

// Category names a class of difference.
type Category string

const (
	ValuesChanged         Category = "values_changed"
	TypeChanges           Category = "type_changes"
	DictionaryItemAdded   Category = "dictionary_item_added"
	DictionaryItemRemoved Category = "dictionary_item_removed"
	IterableItemAdded     Category = "iterable_item_added"
	IterableItemRemoved   Category = "iterable_item_removed"
)

// RootPath is the path of the compared values themselves.
const RootPath = "root"

// Change records the two sides of a value or type change at a path.
type Change struct {
	Old jsontree.Value `json:"-"`
	New jsontree.Value `json:"-"`
}

// MarshalJSON renders the change with plain JSON values and kinds.
func (c Change) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OldValue any    `json:"old_value"`
		NewValue any    `json:"new_value"`
		OldType  string `json:"old_type"`
		NewType  string `json:"new_type"`
	}{
		OldValue: jsontree.ToAny(c.Old),
		NewValue: jsontree.ToAny(c.New),
		OldType:  kindName(c.Old),
		NewType:  kindName(c.New),
	})
}

func kindName(v jsontree.Value) string {
	if v == nil {
		return "absent"
	}
	return v.Kind().String()
}

// Result is the set of differences found between an expected and an actual
// tree. A nil or empty category means no differences of that kind.
type Result struct {
	ValuesChanged         map[string]Change
	TypeChanges           map[string]Change
	DictionaryItemAdded   []string
	DictionaryItemRemoved []string
	IterableItemAdded     map[string]jsontree.Value
	IterableItemRemoved   map[string]jsontree.Value
}

// Empty reports whether r holds no differences. A nil Result is empty.
func (r *Result) Empty() bool {
	if r == nil {
		return true
	}
	return len(r.ValuesChanged) == 0 &&
		len(r.TypeChanges) == 0 &&
		len(r.DictionaryItemAdded) == 0 &&
		len(r.DictionaryItemRemoved) == 0 &&
		len(r.IterableItemAdded) == 0 &&
		len(r.IterableItemRemoved) == 0
}

// Counts returns the number of entries in each non-empty category.
func (r *Result) Counts() map[Category]int {
	counts := make(map[Category]int)
	if r == nil {
		return counts
	}
	add := func(c Category, n int) {
		if n > 0 {
			counts[c] = n
		}
	}
	add(ValuesChanged, len(r.ValuesChanged))
	add(TypeChanges, len(r.TypeChanges))
	add(DictionaryItemAdded, len(r.DictionaryItemAdded))
	add(DictionaryItemRemoved, len(r.DictionaryItemRemoved))
	add(IterableItemAdded, len(r.IterableItemAdded))
	add(IterableItemRemoved, len(r.IterableItemRemoved))
	return counts
}

// MarshalJSON emits only the non-empty categories.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any)
	if r == nil {
		return json.Marshal(out)
	}
	if len(r.ValuesChanged) > 0 {
		out[string(ValuesChanged)] = r.ValuesChanged
	}
	if len(r.TypeChanges) > 0 {
		out[string(TypeChanges)] = r.TypeChanges
	}
	if len(r.DictionaryItemAdded) > 0 {
		out[string(DictionaryItemAdded)] = r.DictionaryItemAdded
	}
	if len(r.DictionaryItemRemoved) > 0 {
		out[string(DictionaryItemRemoved)] = r.DictionaryItemRemoved
	}
	if len(r.IterableItemAdded) > 0 {
		out[string(IterableItemAdded)] = plainValues(r.IterableItemAdded)
	}
	if len(r.IterableItemRemoved) > 0 {
		out[string(IterableItemRemoved)] = plainValues(r.IterableItemRemoved)
	}
	return json.Marshal(out)
}

func plainValues(m map[string]jsontree.Value) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = jsontree.ToAny(v)
	}
	return out
}

// Option configures a diff.
type Option func(*options)

type options struct {
	ignoreOrder bool
}

// IgnoreOrder compares sequences as multisets: element position does not
// matter, only which elements are present and how often.
func IgnoreOrder() Option {
	return func(o *options) { o.ignoreOrder = true }
}

// Diff compares expected against actual. Either side may be absent (nil); an
// absent side against a present one is reported as a type change at the root.
func Diff(expected, actual jsontree.Value, opts ...Option) *Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	d := newDiffer(o)
	d.compare(RootPath, expected, actual)
	sort.Strings(d.res.DictionaryItemAdded)
	sort.Strings(d.res.DictionaryItemRemoved)
	return d.res
}

// pairBudget bounds how many candidate pairs one Diff may cost out while
// matching unordered sequences. Once it is spent, leftover elements are
// reported as removed and added without being paired.
const pairBudget = 1 << 14

type differ struct {
	opts   options
	res    *Result
	shared *pairing
}

// pairing is the state shared by a differ and the sub-differs it spawns to
// cost candidate pairs. Costs are keyed by the hashed unordered fingerprints
// of both sides.
type pairing struct {
	budget int
	costs  map[[2]uint64]int
}

func newDiffer(o options) *differ {
	return &differ{
		opts:   o,
		res:    &Result{},
		shared: &pairing{budget: pairBudget, costs: make(map[[2]uint64]int)},
	}
}

// sub diffs a and b at path into a fresh Result.
func (d *differ) sub(path string, a, b jsontree.Value) *Result {
	s := &differ{opts: d.opts, res: &Result{}, shared: d.shared}
	s.compare(path, a, b)
	return s.res
}

func (d *differ) compare(path string, a, b jsontree.Value) {
	if a == nil && b == nil {
		return
	}
	if a == nil || b == nil || a.Kind() != b.Kind() {
		d.typeChange(path, a, b)
		return
	}

	switch at := a.(type) {
	case jsontree.Null:
		return
	case jsontree.Bool, jsontree.Number, jsontree.String:
		if !jsontree.Equal(a, b) {
			d.valueChange(path, a, b)
		}
	case jsontree.Object:
		d.compareObjects(path, at, b.(jsontree.Object))
	case jsontree.Array:
		if d.opts.ignoreOrder {
			d.compareUnordered(path, at, b.(jsontree.Array))
		} else {
			d.compareOrdered(path, at, b.(jsontree.Array))
		}
	}
}

func (d *differ) compareObjects(path string, a, b jsontree.Object) {
	for _, k := range jsontree.Keys(a) {
		bv, ok := b[k]
		if !ok {
			d.res.DictionaryItemRemoved = append(d.res.DictionaryItemRemoved, keyPath(path, k))
			continue
		}
		d.compare(keyPath(path, k), a[k], bv)
	}
	for _, k := range jsontree.Keys(b) {
		if _, ok := a[k]; !ok {
			d.res.DictionaryItemAdded = append(d.res.DictionaryItemAdded, keyPath(path, k))
		}
	}
}

func (d *differ) compareOrdered(path string, a, b jsontree.Array) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		d.compare(indexPath(path, i), a[i], b[i])
	}
	for i := n; i < len(a); i++ {
		d.removed(indexPath(path, i), a[i])
	}
	for i := n; i < len(b); i++ {
		d.added(indexPath(path, i), b[i])
	}
}

// compareUnordered matches identical elements first, then pairs leftover
// containers of the same kind when descending into them costs less than
// reporting a removal and an addition. Leaves are never paired.
func (d *differ) compareUnordered(path string, a, b jsontree.Array) {
	fa, fb := fingerprints(a), fingerprints(b)
	pool := make(map[string][]int, len(b))
	for j, fp := range fb {
		pool[fp] = append(pool[fp], j)
	}

	matchedB := make([]bool, len(b))
	var leftA []int
	for i, fp := range fa {
		if idx := pool[fp]; len(idx) > 0 {
			matchedB[idx[0]] = true
			pool[fp] = idx[1:]
			continue
		}
		leftA = append(leftA, i)
	}
	var leftB []int
	for j, ok := range matchedB {
		if !ok {
			leftB = append(leftB, j)
		}
	}

	hb := make(map[int]uint64, len(leftB))
	for _, j := range leftB {
		if isContainer(b[j]) {
			hb[j] = hashFingerprint(fb[j])
		}
	}

	usedB := make(map[int]bool, len(leftB))
	for _, i := range leftA {
		p := indexPath(path, i)
		best, bestCost := -1, 0
		var bestRes *Result
		if isContainer(a[i]) {
			ha, na := hashFingerprint(fa[i]), jsontree.Count(a[i])
			for _, j := range leftB {
				if usedB[j] || b[j].Kind() != a[i].Kind() {
					continue
				}
				cost, res, ok := d.pairCost(p, a[i], b[j], [2]uint64{ha, hb[j]})
				if !ok {
					break
				}
				if cost < na+jsontree.Count(b[j]) && (best < 0 || cost < bestCost) {
					best, bestCost, bestRes = j, cost, res
				}
			}
		}
		if best < 0 {
			d.removed(p, a[i])
			continue
		}
		usedB[best] = true
		if bestRes == nil {
			bestRes = d.sub(p, a[i], b[best])
		}
		d.merge(bestRes)
	}
	for _, j := range leftB {
		if !usedB[j] {
			d.added(indexPath(path, j), b[j])
		}
	}
}

// pairCost returns the penalty of descending into a and b. A freshly
// computed cost comes with its Result so the chosen pair is not diffed
// twice; a remembered cost comes without one. ok is false once the pair
// budget is spent.
func (d *differ) pairCost(path string, a, b jsontree.Value, key [2]uint64) (cost int, res *Result, ok bool) {
	if c, seen := d.shared.costs[key]; seen {
		return c, nil, true
	}
	if d.shared.budget <= 0 {
		return 0, nil, false
	}
	d.shared.budget--
	res = d.sub(path, a, b)
	cost = Penalty(res)
	d.shared.costs[key] = cost
	return cost, res, true
}

// merge adds the differences in r to d's result.
func (d *differ) merge(r *Result) {
	for p, c := range r.ValuesChanged {
		d.valueChange(p, c.Old, c.New)
	}
	for p, c := range r.TypeChanges {
		d.typeChange(p, c.Old, c.New)
	}
	d.res.DictionaryItemAdded = append(d.res.DictionaryItemAdded, r.DictionaryItemAdded...)
	d.res.DictionaryItemRemoved = append(d.res.DictionaryItemRemoved, r.DictionaryItemRemoved...)
	for p, v := range r.IterableItemAdded {
		d.added(p, v)
	}
	for p, v := range r.IterableItemRemoved {
		d.removed(p, v)
	}
}

func fingerprints(arr jsontree.Array) []string {
	out := make([]string, len(arr))
	for i, e := range arr {
		out[i] = jsontree.Fingerprint(e, true)
	}
	return out
}

func hashFingerprint(fp string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(fp))
	return h.Sum64()
}

func (d *differ) typeChange(path string, a, b jsontree.Value) {
	if d.res.TypeChanges == nil {
		d.res.TypeChanges = make(map[string]Change)
	}
	d.res.TypeChanges[path] = Change{Old: a, New: b}
}

func (d *differ) valueChange(path string, a, b jsontree.Value) {
	if d.res.ValuesChanged == nil {
		d.res.ValuesChanged = make(map[string]Change)
	}
	d.res.ValuesChanged[path] = Change{Old: a, New: b}
}

func (d *differ) removed(path string, v jsontree.Value) {
	if d.res.IterableItemRemoved == nil {
		d.res.IterableItemRemoved = make(map[string]jsontree.Value)
	}
	d.res.IterableItemRemoved[path] = v
}

func (d *differ) added(path string, v jsontree.Value) {
	if d.res.IterableItemAdded == nil {
		d.res.IterableItemAdded = make(map[string]jsontree.Value)
	}
	d.res.IterableItemAdded[path] = v
}

// Penalty is the number of value units that differ: one per changed value,
// changed type, or added/removed mapping key, plus the full value count of
// every added or removed sequence element.
func Penalty(r *Result) int {
	if r == nil {
		return 0
	}
	n := len(r.ValuesChanged) + len(r.TypeChanges) +
		len(r.DictionaryItemRemoved) + len(r.DictionaryItemAdded)
	for _, v := range r.IterableItemRemoved {
		n += jsontree.Count(v)
	}
	for _, v := range r.IterableItemAdded {
		n += jsontree.Count(v)
	}
	return n
}

func isContainer(v jsontree.Value) bool {
	k := v.Kind()
	return k == jsontree.KindArray || k == jsontree.KindObject
}

func keyPath(parent, key string) string {
	return fmt.Sprintf("%s[%s]", parent, quoteKey(key))
}

func indexPath(parent string, i int) string {
	return parent + "[" + strconv.Itoa(i) + "]"
}

// quoteKey renders a mapping key the way paths show it: single quoted, with
// embedded quotes and backslashes escaped.
func quoteKey(k string) string {
	b := make([]byte, 0, len(k)+2)
	b = append(b, '\'')
	for i := 0; i < len(k); i++ {
		c := k[i]
		if c == '\'' || c == '\\' {
			b = append(b, '\\')
		}
		b = append(b, c)
	}
	b = append(b, '\'')
	return string(b)
}
