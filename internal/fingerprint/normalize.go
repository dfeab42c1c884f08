// Normalisation of raw upstream payloads: unwrapping and delta merge.
//
// The upstream wire format is a loosely-typed nested mapping. Everything here
// works over map[string]any / []any so it can walk shapes that are not known
// statically, then hands typed entity.Game values to callers once resolved.

package fingerprint

// Unwrap peels one or two "data" layers off a raw upstream payload, returning
// the innermost mapping. Anything that isn't itself wrapped is returned as-is.
func Unwrap(raw map[string]any) map[string]any {
	cur := raw
	for i := 0; i < 2; i++ {
		inner, ok := cur["data"]
		if !ok {
			break
		}
		innerMap, ok := inner.(map[string]any)
		if !ok {
			break
		}
		cur = innerMap
	}
	return cur
}

// MergeDelta applies delta onto accum in place and returns accum, following
// the wire protocol's merge semantics: null deletes, a slice replaces, a
// sub-mapping merges recursively, anything else (a scalar) replaces.
//
// accum is mutated and returned so callers can chain: state = MergeDelta(state, delta).
func MergeDelta(accum, delta map[string]any) map[string]any {
	if accum == nil {
		accum = make(map[string]any, len(delta))
	}
	for key, val := range delta {
		if val == nil {
			delete(accum, key)
			continue
		}
		switch v := val.(type) {
		case []any:
			accum[key] = v
		case map[string]any:
			existing, ok := accum[key].(map[string]any)
			if !ok {
				existing = make(map[string]any, len(v))
			}
			accum[key] = MergeDelta(existing, v)
		default:
			accum[key] = v
		}
	}
	return accum
}
