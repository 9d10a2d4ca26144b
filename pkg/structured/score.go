package structured

import (
	"sort"

	"github.com/jdgilhuly/go_struct_eval/pkg/jsontree"
	"github.com/jdgilhuly/go_struct_eval/pkg/treediff"
)

// FieldScores maps each top-level key of the compared objects to its score.
type FieldScores map[string]float64

// Similarity scores extracted against expected given their diff. A nil value
// is absent: two absent values score 1, one absent value scores 0. Otherwise
// the diff penalty is normalized by the number of value units in expected.
//
// Added or removed mapping keys cost 1 each whatever they hold; added or
// removed sequence elements cost their full value count.
func Similarity(expected, extracted jsontree.Value, diff *treediff.Result) float64 {
	if expected == nil && extracted == nil {
		return 1.0
	}
	if expected == nil || extracted == nil {
		return 0.0
	}
	if diff.Empty() {
		return 1.0
	}

	penalty := treediff.Penalty(diff)
	total := jsontree.Count(expected)
	if total == 0 {
		if penalty == 0 {
			return 1.0
		}
		return 0.0
	}

	return max(0.0, 1.0-float64(penalty)/float64(total))
}

// FieldLevelScores scores every key in the union of two objects
// independently, comparing sequences without regard to order. A missing key
// and a null value are both absent: two absent values score 1, an absent
// value against anything else scores 0. Non-object inputs yield an empty map.
func FieldLevelScores(expected, extracted jsontree.Value) FieldScores {
	exp, ok := expected.(jsontree.Object)
	if !ok {
		return FieldScores{}
	}
	got, ok := extracted.(jsontree.Object)
	if !ok {
		return FieldScores{}
	}

	scores := make(FieldScores, len(exp)+len(got))
	for _, key := range unionKeys(exp, got) {
		ev, gv := lookup(exp, key), lookup(got, key)
		scores[key] = Similarity(ev, gv, treediff.Diff(ev, gv, treediff.IgnoreOrder()))
	}
	return scores
}

// Mean returns the arithmetic mean of the scores and false when there are
// none. Scores are summed in key order so the result is reproducible.
func (fs FieldScores) Mean() (float64, bool) {
	if len(fs) == 0 {
		return 0, false
	}
	var sum float64
	for _, k := range fs.Keys() {
		sum += fs[k]
	}
	return sum / float64(len(fs)), true
}

// Keys returns the field names in sorted order.
func (fs FieldScores) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lookup returns the value under key, or nil when the key is missing or
// holds null.
func lookup(o jsontree.Object, key string) jsontree.Value {
	v, ok := o[key]
	if !ok {
		return nil
	}
	if _, isNull := v.(jsontree.Null); isNull {
		return nil
	}
	return v
}

func unionKeys(a, b jsontree.Object) []string {
	keys := jsontree.Keys(a)
	for _, k := range jsontree.Keys(b) {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	return keys
}
