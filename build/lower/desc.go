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

package lower

import (
	"strconv"
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/dynshape/interp/aval"
)

// Dynamic marks an axis whose length is unknown at compile time.
const Dynamic = -1

// TypeDesc describes the type of a lowered value: its element type
// and, for each axis, either a literal length or Dynamic.
type TypeDesc struct {
	DType dtype.DataType
	Dims  []int
	// Index is set for the implicit scalars carrying the length of an axis.
	// DType and Dims are then ignored.
	Index bool
}

// IndexDesc is the type of the implicit scalars carrying axis lengths.
var IndexDesc = TypeDesc{Index: true}

// DescOf returns the type descriptor of an abstract value.
// Axes with a length depending on a dimension variable are dynamic.
func DescOf(v aval.Value) TypeDesc {
	desc := TypeDesc{DType: v.DType, Dims: make([]int, len(v.Shape))}
	for i, length := range v.Shape {
		if c, ok := length.Const(); ok {
			desc.Dims[i] = c
		} else {
			desc.Dims[i] = Dynamic
		}
	}
	return desc
}

// NumDynamic returns the number of dynamic axes.
func (t TypeDesc) NumDynamic() int {
	n := 0
	for _, d := range t.Dims {
		if d == Dynamic {
			n++
		}
	}
	return n
}

var dtypeNames = map[dtype.DataType]string{
	dtype.Bool:     "i1",
	dtype.Int32:    "i32",
	dtype.Int64:    "i64",
	dtype.Uint32:   "ui32",
	dtype.Uint64:   "ui64",
	dtype.Bfloat16: "bf16",
	dtype.Float32:  "f32",
	dtype.Float64:  "f64",
}

func dtypeName(dt dtype.DataType) string {
	if name, ok := dtypeNames[dt]; ok {
		return name
	}
	return dt.String()
}

// String returns the type as a ranked tensor type, for example tensor<?x3xf64>.
func (t TypeDesc) String() string {
	if t.Index {
		return "index"
	}
	var s strings.Builder
	s.WriteString("tensor<")
	for _, d := range t.Dims {
		if d == Dynamic {
			s.WriteString("?")
		} else {
			s.WriteString(strconv.Itoa(d))
		}
		s.WriteString("x")
	}
	s.WriteString(dtypeName(t.DType))
	s.WriteString(">")
	return s.String()
}
