package stringseq_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/gx-org/dynshape/base/stringseq"
)

type name string

func (n name) String() string { return "%" + string(n) }

func TestJoin(t *testing.T) {
	if got, want := stringseq.JoinFunc([]int{1, 2, 3}, "x", strconv.Itoa), "1x2x3"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	if got, want := stringseq.JoinStringer([]name{"n", "m"}, ", "), "%n, %m"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
	if got := stringseq.JoinStringer([]name{}, ", "); got != "" {
		t.Errorf("got %q but want an empty string", got)
	}
	var b strings.Builder
	b.WriteString("(")
	stringseq.Map(&b, func(yield func(string) bool) {
		_ = yield("a") && yield("b")
	}, " ", strings.ToUpper)
	b.WriteString(")")
	if got, want := b.String(), "(A B)"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}
