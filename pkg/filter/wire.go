package filter

import (
	"time"

	"github.com/liliang-cn/vectorcore/pkg/vecerrors"
)

// Node is the wire form accepted by the query pipeline: a tree of
// {operator, filters} nodes whose leaves are {field, op, value} metadata
// predicates, plus optional top-level temporal/document-id constraints.
type Node struct {
	Operator      string    `json:"operator,omitempty"`
	Filters       []Node    `json:"filters,omitempty"`
	Field         string    `json:"field,omitempty"`
	Op            string    `json:"op,omitempty"`
	Value         any       `json:"value,omitempty"`
	CreatedAfter  *string   `json:"created_after,omitempty"`
	CreatedBefore *string   `json:"created_before,omitempty"`
	DocumentIDs   []string  `json:"document_ids,omitempty"`
}

// Compile converts the wire form into an Expr tree, validating operator
// tokens and timestamp formats. Returns InvalidArgument on any unrecognized
// token or malformed timestamp.
func Compile(n *Node) (Expr, error) {
	if n == nil {
		return nil, nil
	}

	root, err := compileGroup(n)
	if err != nil {
		return nil, err
	}

	extras := make([]Expr, 0, 3)
	if root != nil {
		extras = append(extras, root)
	}
	if n.CreatedAfter != nil {
		ts, err := time.Parse(time.RFC3339, *n.CreatedAfter)
		if err != nil {
			return nil, vecerrors.Newf("filter.compile", vecerrors.InvalidArgument, "invalid created_after: %v", err)
		}
		extras = append(extras, CreatedAfter{Time: ts})
	}
	if n.CreatedBefore != nil {
		ts, err := time.Parse(time.RFC3339, *n.CreatedBefore)
		if err != nil {
			return nil, vecerrors.Newf("filter.compile", vecerrors.InvalidArgument, "invalid created_before: %v", err)
		}
		extras = append(extras, CreatedBefore{Time: ts})
	}
	if len(n.DocumentIDs) > 0 {
		extras = append(extras, DocumentIDIn{IDs: n.DocumentIDs})
	}

	switch len(extras) {
	case 0:
		return nil, nil
	case 1:
		return extras[0], nil
	default:
		return Group{Op: And, Children: extras}, nil
	}
}

// compileGroup compiles the logical-tree portion of n (operator/filters or
// a leaf field/op/value), ignoring the top-level temporal/document-id keys.
func compileGroup(n *Node) (Expr, error) {
	if n.Field != "" {
		op, ok := parseOp(n.Op)
		if !ok {
			return nil, vecerrors.Newf("filter.compile", vecerrors.InvalidArgument, "unknown filter op %q", n.Op)
		}
		return MetadataPredicate{Field: n.Field, Op: op, Value: n.Value}, nil
	}

	if n.Operator == "" {
		if len(n.Filters) == 0 {
			return nil, nil
		}
		return nil, vecerrors.New("filter.compile", vecerrors.InvalidArgument, errMissingOperator)
	}

	logicalOp, ok := parseLogicalOp(n.Operator)
	if !ok {
		return nil, vecerrors.Newf("filter.compile", vecerrors.InvalidArgument, "unknown logical operator %q", n.Operator)
	}

	children := make([]Expr, 0, len(n.Filters))
	for i := range n.Filters {
		child, err := compileGroup(&n.Filters[i])
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, child)
		}
	}
	return Group{Op: logicalOp, Children: children}, nil
}

var errMissingOperator = missingOperatorErr{}

type missingOperatorErr struct{}

func (missingOperatorErr) Error() string { return "group node with filters requires an operator" }

func parseOp(s string) (Op, bool) {
	switch Op(s) {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn, OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		return Op(s), true
	default:
		return "", false
	}
}

func parseLogicalOp(s string) (LogicalOp, bool) {
	switch LogicalOp(s) {
	case And, Or:
		return LogicalOp(s), true
	default:
		return "", false
	}
}
