// Package stringseq joins sequences of values into strings.
package stringseq

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Map appends the string of each element of a sequence to a builder.
// The separator sep is placed between elements.
func Map[T any](b *strings.Builder, seq iter.Seq[T], sep string, f func(T) string) {
	n := 0
	for item := range seq {
		if n > 0 {
			b.WriteString(sep)
		}
		b.WriteString(f(item))
		n++
	}
}

// JoinFunc returns the string of each element of a slice joined by sep.
func JoinFunc[T any](s []T, sep string, f func(T) string) string {
	var b strings.Builder
	Map(&b, slices.Values(s), sep, f)
	return b.String()
}

// JoinStringer returns the elements of a slice joined by sep.
func JoinStringer[T fmt.Stringer](s []T, sep string) string {
	return JoinFunc(s, sep, func(x T) string { return x.String() })
}
