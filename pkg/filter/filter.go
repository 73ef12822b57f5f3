// Package filter implements the declarative predicate tree the query
// pipeline evaluates against a chunk's metadata, creation timestamp, and
// document id. It is a recursive tagged variant evaluated by a single
// traversal, grounded on the teacher's FilterExpression (pkg/core/advanced_filter.go)
// but redesigned from a string grammar into a typed tree with no runtime
// reflection.
package filter

import (
	"strings"
	"time"

	"github.com/liliang-cn/vectorcore/pkg/entity"
)

// Op names a metadata comparison operator.
type Op string

const (
	OpEq          Op = "eq"
	OpNe          Op = "ne"
	OpGt          Op = "gt"
	OpGte         Op = "gte"
	OpLt          Op = "lt"
	OpLte         Op = "lte"
	OpIn          Op = "in"
	OpNotIn       Op = "not_in"
	OpContains    Op = "contains"
	OpNotContains Op = "not_contains"
	OpStartsWith  Op = "starts_with"
	OpEndsWith    Op = "ends_with"
)

// LogicalOp names a Group's combinator.
type LogicalOp string

const (
	And LogicalOp = "and"
	Or  LogicalOp = "or"
)

// Expr is the sealed tagged-variant interface every predicate node satisfies.
// The unexported method keeps the variant set closed to this package, the
// same way a sum type would be in a language with one.
type Expr interface {
	isExpr()
}

// MetadataPredicate compares chunk.Metadata[Field] against Value using Op.
// An absent field evaluates false for every Op, including the negative ones —
// undefined is not "not equal".
type MetadataPredicate struct {
	Field string
	Op    Op
	Value any
}

func (MetadataPredicate) isExpr() {}

// Group combines Children with a logical operator. An empty And group is
// true; an empty Or group is false.
type Group struct {
	Op       LogicalOp
	Children []Expr
}

func (Group) isExpr() {}

// CreatedAfter passes chunks created at or after Time (inclusive).
type CreatedAfter struct{ Time time.Time }

func (CreatedAfter) isExpr() {}

// CreatedBefore passes chunks created at or before Time (inclusive).
type CreatedBefore struct{ Time time.Time }

func (CreatedBefore) isExpr() {}

// DocumentIDIn passes chunks whose DocumentID is a member of IDs.
type DocumentIDIn struct{ IDs []string }

func (DocumentIDIn) isExpr() {}

// Evaluate traverses expr against chunk and returns whether it passes.
// Type mismatches on metadata comparisons (e.g. gt against a string) return
// false, never an error.
func Evaluate(expr Expr, chunk *entity.Chunk) bool {
	if expr == nil {
		return true
	}
	switch e := expr.(type) {
	case MetadataPredicate:
		return evalMetadata(e, chunk)
	case Group:
		return evalGroup(e, chunk)
	case CreatedAfter:
		return !chunk.CreatedAt.Before(e.Time)
	case CreatedBefore:
		return !chunk.CreatedAt.After(e.Time)
	case DocumentIDIn:
		for _, id := range e.IDs {
			if id == chunk.DocumentID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evalGroup(g Group, chunk *entity.Chunk) bool {
	switch g.Op {
	case Or:
		for _, child := range g.Children {
			if Evaluate(child, chunk) {
				return true
			}
		}
		return false
	default: // And, and any unrecognized op defaults to conjunction semantics
		for _, child := range g.Children {
			if !Evaluate(child, chunk) {
				return false
			}
		}
		return true
	}
}

func evalMetadata(p MetadataPredicate, chunk *entity.Chunk) bool {
	actual, ok := chunk.Metadata[p.Field]
	if !ok {
		return false
	}

	switch p.Op {
	case OpEq:
		return compareEq(actual, p.Value)
	case OpNe:
		return !compareEq(actual, p.Value)
	case OpGt, OpGte, OpLt, OpLte:
		return compareOrdered(p.Op, actual, p.Value)
	case OpIn:
		return membership(actual, p.Value)
	case OpNotIn:
		return !membership(actual, p.Value)
	case OpContains:
		return stringOp(actual, p.Value, strings.Contains)
	case OpNotContains:
		return !stringOp(actual, p.Value, strings.Contains)
	case OpStartsWith:
		return stringOp(actual, p.Value, strings.HasPrefix)
	case OpEndsWith:
		return stringOp(actual, p.Value, strings.HasSuffix)
	default:
		return false
	}
}

func compareEq(actual, want any) bool {
	an, aok := asFloat64(actual)
	wn, wok := asFloat64(want)
	if aok && wok {
		return an == wn
	}
	as, aok := actual.(string)
	ws, wok := want.(string)
	if aok && wok {
		return as == ws
	}
	ab, aok := actual.(bool)
	wb, wok := want.(bool)
	if aok && wok {
		return ab == wb
	}
	return false
}

func compareOrdered(op Op, actual, want any) bool {
	an, aok := asFloat64(actual)
	wn, wok := asFloat64(want)
	if !aok || !wok {
		return false
	}
	switch op {
	case OpGt:
		return an > wn
	case OpGte:
		return an >= wn
	case OpLt:
		return an < wn
	case OpLte:
		return an <= wn
	default:
		return false
	}
}

func membership(actual, want any) bool {
	values, ok := want.([]any)
	if !ok {
		return false
	}
	for _, v := range values {
		if compareEq(actual, v) {
			return true
		}
	}
	return false
}

func stringOp(actual, want any, fn func(s, substr string) bool) bool {
	as, aok := actual.(string)
	ws, wok := want.(string)
	if !aok || !wok {
		return false
	}
	return fn(as, ws)
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
