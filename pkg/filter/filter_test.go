package filter

import (
	"testing"
	"time"

	"github.com/liliang-cn/vectorcore/pkg/entity"
)

func chunkWithMeta(meta map[string]any) *entity.Chunk {
	return &entity.Chunk{
		ID:         "c1",
		DocumentID: "doc1",
		Metadata:   meta,
		CreatedAt:  time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestMetadataPredicateAbsentFieldIsFalse(t *testing.T) {
	c := chunkWithMeta(map[string]any{"other": "x"})
	for _, op := range []Op{OpEq, OpNe, OpGt, OpIn, OpNotIn, OpContains, OpNotContains} {
		p := MetadataPredicate{Field: "category", Op: op, Value: "a"}
		if Evaluate(p, c) {
			t.Errorf("op %q on absent field should be false", op)
		}
	}
}

func TestMetadataPredicateEq(t *testing.T) {
	c := chunkWithMeta(map[string]any{"category": "a"})
	if !Evaluate(MetadataPredicate{Field: "category", Op: OpEq, Value: "a"}, c) {
		t.Error("expected eq match")
	}
	if Evaluate(MetadataPredicate{Field: "category", Op: OpEq, Value: "b"}, c) {
		t.Error("expected eq mismatch to be false")
	}
}

func TestMetadataPredicateTypeMismatchIsFalse(t *testing.T) {
	c := chunkWithMeta(map[string]any{"category": "a"})
	if Evaluate(MetadataPredicate{Field: "category", Op: OpGt, Value: 5.0}, c) {
		t.Error("expected type mismatch on gt to be false, not an error")
	}
}

func TestMetadataPredicateOrdered(t *testing.T) {
	c := chunkWithMeta(map[string]any{"score": 10.0})
	if !Evaluate(MetadataPredicate{Field: "score", Op: OpGte, Value: 10.0}, c) {
		t.Error("expected gte 10 >= 10 to be true")
	}
	if !Evaluate(MetadataPredicate{Field: "score", Op: OpLt, Value: 11.0}, c) {
		t.Error("expected lt 10 < 11 to be true")
	}
	if Evaluate(MetadataPredicate{Field: "score", Op: OpLt, Value: 5.0}, c) {
		t.Error("expected lt 10 < 5 to be false")
	}
}

func TestMetadataPredicateStringOps(t *testing.T) {
	c := chunkWithMeta(map[string]any{"title": "hello world"})
	if !Evaluate(MetadataPredicate{Field: "title", Op: OpContains, Value: "lo wo"}, c) {
		t.Error("expected contains match")
	}
	if !Evaluate(MetadataPredicate{Field: "title", Op: OpStartsWith, Value: "hello"}, c) {
		t.Error("expected starts_with match")
	}
	if !Evaluate(MetadataPredicate{Field: "title", Op: OpEndsWith, Value: "world"}, c) {
		t.Error("expected ends_with match")
	}
}

func TestGroupEmptyAndIsTrue(t *testing.T) {
	if !Evaluate(Group{Op: And, Children: nil}, chunkWithMeta(nil)) {
		t.Error("expected empty And group to be true")
	}
}

func TestGroupEmptyOrIsFalse(t *testing.T) {
	if Evaluate(Group{Op: Or, Children: nil}, chunkWithMeta(nil)) {
		t.Error("expected empty Or group to be false")
	}
}

func TestGroupNested(t *testing.T) {
	c := chunkWithMeta(map[string]any{"tag": "ai"})
	expr := Group{
		Op: Or,
		Children: []Expr{
			MetadataPredicate{Field: "tag", Op: OpEq, Value: "ml"},
			MetadataPredicate{Field: "tag", Op: OpEq, Value: "ai"},
		},
	}
	if !Evaluate(expr, c) {
		t.Error("expected or-group to match second child")
	}
}

func TestCreatedAfterBeforeInclusive(t *testing.T) {
	c := chunkWithMeta(nil)
	ts := c.CreatedAt
	if !Evaluate(CreatedAfter{Time: ts}, c) {
		t.Error("expected CreatedAfter to be inclusive")
	}
	if !Evaluate(CreatedBefore{Time: ts}, c) {
		t.Error("expected CreatedBefore to be inclusive")
	}
	if Evaluate(CreatedAfter{Time: ts.Add(time.Hour)}, c) {
		t.Error("expected CreatedAfter in the future to be false")
	}
}

func TestDocumentIDIn(t *testing.T) {
	c := chunkWithMeta(nil)
	if !Evaluate(DocumentIDIn{IDs: []string{"doc1", "doc2"}}, c) {
		t.Error("expected document id membership to match")
	}
	if Evaluate(DocumentIDIn{IDs: []string{"other"}}, c) {
		t.Error("expected non-membership to be false")
	}
}

func TestEvaluateNilExprIsTrue(t *testing.T) {
	if !Evaluate(nil, chunkWithMeta(nil)) {
		t.Error("expected nil expression to always pass")
	}
}

func TestCompileWireForm(t *testing.T) {
	node := &Node{
		Operator: "or",
		Filters: []Node{
			{Field: "category", Op: "eq", Value: "a"},
			{Field: "category", Op: "eq", Value: "b"},
		},
	}
	expr, err := Compile(node)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !Evaluate(expr, chunkWithMeta(map[string]any{"category": "b"})) {
		t.Error("expected compiled or-group to match")
	}
	if Evaluate(expr, chunkWithMeta(map[string]any{"category": "c"})) {
		t.Error("expected compiled or-group to reject non-member")
	}
}

func TestCompileUnknownOperatorFails(t *testing.T) {
	node := &Node{Operator: "xor", Filters: []Node{{Field: "a", Op: "eq", Value: 1}}}
	if _, err := Compile(node); err == nil {
		t.Fatal("expected error for unknown logical operator")
	}
}

func TestCompileUnknownOpFails(t *testing.T) {
	node := &Node{Field: "a", Op: "bogus", Value: 1}
	if _, err := Compile(node); err == nil {
		t.Fatal("expected error for unknown predicate op")
	}
}

func TestCompileWithTemporalAndDocumentConstraints(t *testing.T) {
	after := "2026-01-01T00:00:00Z"
	node := &Node{CreatedAfter: &after, DocumentIDs: []string{"doc1"}}
	expr, err := Compile(node)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !Evaluate(expr, chunkWithMeta(nil)) {
		t.Error("expected combined temporal + document-id constraints to pass")
	}
}

func TestCompileNilNode(t *testing.T) {
	expr, err := Compile(nil)
	if err != nil || expr != nil {
		t.Fatalf("expected nil, nil for nil node, got %v, %v", expr, err)
	}
}
