package leafdiff

import (
	"encoding/json"
	"reflect"
)

// jsonEquivalent reports whether two column values are the same JSON
// document despite differing serialized form (key order, whitespace,
// numeric formatting) — spec.md §4.5's JSON post-filter. Non-JSON or
// unparseable values fall back to raw equality so a malformed document on
// one side is still treated as a real difference.
func jsonEquivalent(a, b any) bool {
	as, aok := asJSONText(a)
	bs, bok := asJSONText(b)
	if !aok || !bok {
		return a == b
	}

	var av, bv any
	if err := json.Unmarshal([]byte(as), &av); err != nil {
		return as == bs
	}
	if err := json.Unmarshal([]byte(bs), &bv); err != nil {
		return as == bs
	}
	return reflect.DeepEqual(av, bv)
}

func asJSONText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}
