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
	"fmt"
	"io"
	"strings"

	"github.com/gx-org/dynshape/build/dim"
	"github.com/pkg/errors"
)

// Text is a target writing lowered functions in a textual form close to MLIR:
//
//	func @main(%n: index, %0: tensor<?xf64>) -> (tensor<?xf64>) {
//	  %1 = exp %0 : (tensor<?xf64>) -> (tensor<?xf64>)
//	  return %1
//	}
//
// Implicit values carrying axis lengths are named after the expression they hold.
type Text struct {
	w    io.Writer
	decl *FuncDecl
}

var _ Target = (*Text)(nil)

// NewText returns a target writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

func dimName(x dim.Expr) string {
	if v, ok := x.Var(); ok {
		return "%" + v.Name
	}
	return "%[" + x.String() + "]"
}

func varNames(vars []*dim.Var) []string {
	ss := make([]string, len(vars))
	for i, v := range vars {
		ss[i] = "%" + v.Name
	}
	return ss
}

func exprNames(xs []dim.Expr) []string {
	ss := make([]string, len(xs))
	for i, x := range xs {
		ss[i] = dimName(x)
	}
	return ss
}

func valueNames(vals []Value) []string {
	ss := make([]string, len(vals))
	for i, v := range vals {
		ss[i] = fmt.Sprintf("%%%d", v.ID)
	}
	return ss
}

func types(numIndex int, vals []Value) string {
	ss := make([]string, 0, numIndex+len(vals))
	for range numIndex {
		ss = append(ss, IndexDesc.String())
	}
	for _, v := range vals {
		ss = append(ss, v.Type.String())
	}
	return "(" + strings.Join(ss, ", ") + ")"
}

// BeginFunc writes the header of a function.
func (t *Text) BeginFunc(decl *FuncDecl) error {
	if t.decl != nil {
		return errors.Errorf("cannot begin function %s: function %s has not ended", decl.Name, t.decl.Name)
	}
	t.decl = decl
	params := make([]string, 0, len(decl.ImplicitParams)+len(decl.Params))
	for _, v := range decl.ImplicitParams {
		params = append(params, fmt.Sprintf("%%%s: %s", v.Name, IndexDesc))
	}
	for _, p := range decl.Params {
		params = append(params, fmt.Sprintf("%%%d: %s", p.ID, p.Type))
	}
	_, err := fmt.Fprintf(t.w, "func @%s(%s) -> %s {\n",
		decl.Name,
		strings.Join(params, ", "),
		types(len(decl.ImplicitResults), decl.Results),
	)
	return err
}

// Emit writes an instruction.
func (t *Text) Emit(instr *Instruction) error {
	if t.decl == nil {
		return errors.Errorf("cannot emit %s outside of a function", instr.Op)
	}
	var s strings.Builder
	s.WriteString("  ")
	results := append(exprNames(instr.DimResults), valueNames(instr.Results)...)
	if len(results) > 0 {
		s.WriteString(strings.Join(results, ", "))
		s.WriteString(" = ")
	}
	s.WriteString(instr.Op)
	if instr.Callee != "" {
		s.WriteString(" @" + instr.Callee)
		s.WriteString("[" + strings.Join(varNames(instr.DimOperands), ", ") + "]")
	}
	s.WriteString(instr.Attrs)
	operands := valueNames(instr.Operands)
	if instr.Callee != "" {
		s.WriteString("(" + strings.Join(operands, ", ") + ")")
	} else if len(operands) > 0 {
		s.WriteString(" " + strings.Join(operands, ", "))
	}
	fmt.Fprintf(&s, " : %s -> %s\n",
		types(len(instr.DimOperands), instr.Operands),
		types(len(instr.DimResults), instr.Results),
	)
	_, err := io.WriteString(t.w, s.String())
	return err
}

// EndFunc writes the return statement of the current function.
func (t *Text) EndFunc() error {
	if t.decl == nil {
		return errors.Errorf("no function to end")
	}
	decl := t.decl
	t.decl = nil
	results := append(exprNames(decl.ImplicitResults), valueNames(decl.Results)...)
	_, err := fmt.Fprintf(t.w, "  return %s\n}\n", strings.Join(results, ", "))
	return err
}

// String returns the module in its textual form.
func (m *Module) String() string {
	var s strings.Builder
	if err := m.Replay(NewText(&s)); err != nil {
		return fmt.Sprintf("%s\nERROR: %v", s.String(), err)
	}
	return s.String()
}
