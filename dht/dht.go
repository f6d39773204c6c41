// Package dht keeps track of the other nodes in the network: the addresses at
// which they can be reached, and the live authenticated connections to them.
// It also defines the distance between public keys that is used to decide
// which node is asked when an address is unknown.
package dht

import (
	"sort"
)

// Distance returns the number of positions at which the bytes of two keys
// differ. Keys are expected to have equal lengths, but when they do not, every
// byte beyond the end of the shorter key counts as a difference.
func Distance(a, b string) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	d := len(b) - len(a)
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// Closest returns the candidate with the minimal distance to the target, and
// that distance. Ties are broken by choosing the lowest key, so the result
// does not depend on the order of the candidates. It returns false if there
// are no candidates.
func Closest(target string, candidates []string) (string, int, bool) {
	if len(candidates) == 0 {
		return "", 0, false
	}
	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.Strings(sorted)

	closest, min := sorted[0], Distance(target, sorted[0])
	for _, candidate := range sorted[1:] {
		if d := Distance(target, candidate); d < min {
			closest, min = candidate, d
		}
	}
	return closest, min, true
}

// Without returns the keys, in order, with the excluded keys removed.
func Without(keys []string, excluded ...string) []string {
	filtered := make([]string, 0, len(keys))
	for _, key := range keys {
		skip := false
		for _, ex := range excluded {
			if key == ex {
				skip = true
				break
			}
		}
		if !skip {
			filtered = append(filtered, key)
		}
	}
	return filtered
}
