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

package trace

import (
	"fmt"
	"strings"

	"github.com/gx-org/dynshape/base/stringseq"
	"github.com/gx-org/dynshape/interp/aval"
)

type (
	// Value is a value in a trace graph.
	Value struct {
		aval.Value
		// ID of the value, unique within its graph.
		ID int

		owner *Graph
	}

	// Node is the application of an operator in a trace graph.
	Node struct {
		// ID of the node, unique within its graph.
		ID       int
		Op       Op
		Attrs    Attrs
		Operands []*Value
		Results  []*Value
		// Callee is the graph of the sub-program called by an OpCall node.
		// The node owns the graph.
		Callee *Graph
		// Site is the call-site path of the node.
		Site string
	}

	// Graph is the trace of a function: its parameters, the nodes applying
	// operators in dependency order, and its outputs.
	// Graphs of nested calls are owned by their call node, forming a tree.
	Graph struct {
		Name    string
		Params  []*Value
		Nodes   []*Node
		Outputs []*Value

		numValues int
	}
)

func (g *Graph) newValue(v aval.Value) *Value {
	val := &Value{Value: v, ID: g.numValues, owner: g}
	g.numValues++
	return val
}

// NumValues returns the number of values defined in the graph.
func (g *Graph) NumValues() int {
	return g.numValues
}

// Walk calls f on the graph and, recursively, on the graphs of
// all nested calls. Callees are visited before their caller.
func (g *Graph) Walk(f func(*Graph) error) error {
	for _, node := range g.Nodes {
		if node.Callee == nil {
			continue
		}
		if err := node.Callee.Walk(f); err != nil {
			return err
		}
	}
	return f(g)
}

func (v *Value) String() string {
	return fmt.Sprintf("%%%d", v.ID)
}

func (v *Value) decl() string {
	return fmt.Sprintf("%%%d:%s", v.ID, v.Key())
}

func joinValues(vals []*Value, f func(*Value) string) string {
	return stringseq.JoinFunc(vals, " ", f)
}

// String returns the node in a single line, without the graph of its callee.
func (n *Node) String() string {
	var s strings.Builder
	s.WriteString(joinValues(n.Results, (*Value).decl))
	s.WriteString(" = ")
	s.WriteString(n.Op.String())
	if n.Callee != nil {
		s.WriteString(" @" + n.Callee.Name)
	}
	s.WriteString(n.Attrs.Format(n.Op))
	if len(n.Operands) > 0 {
		s.WriteString(" ")
		s.WriteString(joinValues(n.Operands, (*Value).String))
	}
	return s.String()
}

func (g *Graph) write(s *strings.Builder, indent string) {
	fmt.Fprintf(s, "%s{ lambda %s ; %s. let\n", indent, g.Name, joinValues(g.Params, (*Value).decl))
	for _, node := range g.Nodes {
		fmt.Fprintf(s, "%s    %s\n", indent, node.String())
		if node.Callee != nil {
			node.Callee.write(s, indent+"      ")
		}
	}
	fmt.Fprintf(s, "%s  in (%s) }\n", indent, joinValues(g.Outputs, (*Value).String))
}

// String returns a textual representation of the graph,
// including the graphs of all the nested calls.
func (g *Graph) String() string {
	var s strings.Builder
	g.write(&s, "")
	return s.String()
}
