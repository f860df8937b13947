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
	"github.com/gx-org/dynshape/build/dim"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

type (
	// Value is a value of a lowered function.
	Value struct {
		// ID of the value, unique within its function.
		ID   int
		Type TypeDesc
	}

	// FuncDecl declares a lowered function.
	//
	// A lowered function takes the length of its symbolic axes as leading
	// implicit index parameters, followed by its explicit parameters.
	// It returns the lengths computed by the function as leading implicit
	// index results, followed by its explicit results.
	FuncDecl struct {
		Name string
		// ImplicitParams are the dimension variables passed to the function.
		ImplicitParams []*dim.Var
		Params         []Value
		// ImplicitResults are the lengths computed by the function.
		ImplicitResults []dim.Expr
		Results         []Value
	}

	// Instruction is a lowered operator.
	Instruction struct {
		// Op is the name of the operator.
		Op string
		// Attrs are the static attributes of the operator, or an empty string.
		Attrs    string
		Operands []Value
		Results  []Value

		// Callee is the name of the function called by a call instruction.
		Callee string
		// DimOperands are the implicit parameters passed to the callee.
		DimOperands []*dim.Var
		// DimResults are the implicit results returned by the callee.
		DimResults []dim.Expr
	}

	// Target receives the lowered functions.
	// Functions are given callees first: a function is always
	// declared before any instruction calling it.
	Target interface {
		// BeginFunc starts a new function.
		BeginFunc(*FuncDecl) error
		// Emit an instruction in the current function.
		Emit(*Instruction) error
		// EndFunc ends the current function.
		EndFunc() error
	}
)

// Func is a lowered function recorded by a Recorder.
type Func struct {
	Decl *FuncDecl
	Body []*Instruction
}

// Module is a set of lowered functions. The last function is the entry point.
type Module struct {
	Funcs []*Func
}

// Entry returns the function called by the runtime.
func (m *Module) Entry() *Func {
	if len(m.Funcs) == 0 {
		return nil
	}
	return m.Funcs[len(m.Funcs)-1]
}

// Replay sends all the functions of the module to a target.
func (m *Module) Replay(t Target) error {
	for _, fn := range m.Funcs {
		if err := t.BeginFunc(fn.Decl); err != nil {
			return err
		}
		for _, instr := range fn.Body {
			if err := t.Emit(instr); err != nil {
				return err
			}
		}
		if err := t.EndFunc(); err != nil {
			return err
		}
	}
	return nil
}

// Recorder is a target recording lowered functions in a module.
type Recorder struct {
	module  Module
	current *Func
}

var _ Target = (*Recorder)(nil)

// NewRecorder returns a target recording functions.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// BeginFunc starts recording a new function.
func (r *Recorder) BeginFunc(decl *FuncDecl) error {
	if r.current != nil {
		return errors.Errorf("cannot begin function %s: function %s has not ended", decl.Name, r.current.Decl.Name)
	}
	r.current = &Func{Decl: decl}
	return nil
}

// Emit records an instruction in the current function.
func (r *Recorder) Emit(instr *Instruction) error {
	if r.current == nil {
		return errors.Errorf("cannot emit %s outside of a function", instr.Op)
	}
	r.current.Body = append(r.current.Body, instr)
	return nil
}

// EndFunc adds the current function to the module.
func (r *Recorder) EndFunc() error {
	if r.current == nil {
		return errors.Errorf("no function to end")
	}
	r.module.Funcs = append(r.module.Funcs, r.current)
	r.current = nil
	return nil
}

// Module returns the recorded module.
func (r *Recorder) Module() *Module {
	return &r.module
}

type tee []Target

// Tee returns a target forwarding everything to all the given targets.
func Tee(targets ...Target) Target {
	return tee(targets)
}

func (t tee) BeginFunc(decl *FuncDecl) (err error) {
	for _, target := range t {
		err = multierr.Append(err, target.BeginFunc(decl))
	}
	return
}

func (t tee) Emit(instr *Instruction) (err error) {
	for _, target := range t {
		err = multierr.Append(err, target.Emit(instr))
	}
	return
}

func (t tee) EndFunc() (err error) {
	for _, target := range t {
		err = multierr.Append(err, target.EndFunc())
	}
	return
}
