package mock

import (
	"sort"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// SanitizeHeaders merges header layers into one map. Later layers win. Keys
// are lower-cased; empty values and invalid names or values are dropped, so a
// later layer can remove a header by setting it to "". Within one layer an
// exact lower-case key beats its other spellings; remaining collisions are
// resolved in sorted key order.
func SanitizeHeaders(layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, layer := range layers {
		keys := make([]string, 0, len(layer))
		for key := range layer {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			name := strings.ToLower(strings.TrimSpace(key))
			if name == "" {
				continue
			}
			if name != key {
				if _, ok := layer[name]; ok {
					continue
				}
			}
			merged[name] = layer[key]
		}
	}

	for name, value := range merged {
		if value == "" || !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			delete(merged, name)
		}
	}
	return merged
}
