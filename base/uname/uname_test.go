// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package uname_test

import (
	"testing"

	"github.com/gx-org/dynshape/base/uname"
)

func TestName(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{name: "n", want: "n"},
		{name: "n", want: "n0"},
		{name: "n", want: "n1"},
		{name: "m", want: "m"},
		{name: "m", want: "m0"},
	}
	unames := uname.New()
	for i, test := range tests {
		got := unames.Name(test.name)
		if got != test.want {
			t.Errorf("test %d: for name %s, got %s but want %s", i, test.name, got, test.want)
		}
	}
}

func TestIndexed(t *testing.T) {
	unames := uname.New()
	for _, name := range []string{"_d1", "_d3"} {
		unames.Register(name)
	}
	want := []string{"_d0", "_d2", "_d4"}
	for i, w := range want {
		if got := unames.Indexed("_d"); got != w {
			t.Errorf("call %d: got %s but want %s", i, got, w)
		}
	}
	if got := unames.Name("_d0"); got == "_d0" {
		t.Errorf("name _d0 generated twice")
	}
}
