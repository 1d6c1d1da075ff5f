// Package textutil holds small string helpers shared across the pipeline,
// in particular rune-aware truncation: spec.md's Open Question on character
// vs. byte truncation (§9) is resolved here, in one place, as code points.
package textutil

// TruncateRunes returns s restricted to its first n code points. Unlike a
// byte slice, this never splits a multi-byte rune.
func TruncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
