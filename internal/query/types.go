package query

import "github.com/AppleFlash/BackgroundRealm/internal/record"

// Query selects records of one kind.
//
// Results are ordered by Order, then by insertion order. A nil Where
// matches every record of the kind.
type Query struct {
	Kind  string
	Where Predicate
	Order []Order
}

// Order sorts results by a body field.
type Order struct {
	Field string
	Desc  bool
}

// All selects every record of kind.
func All(kind string) Query {
	return Query{Kind: kind}
}

// Where selects the records of kind matching p.
func Where(kind string, p Predicate) Query {
	return Query{Kind: kind, Where: p}
}

// OrderBy returns a copy of q with an extra sort key appended.
func (q Query) OrderBy(field string, desc bool) Query {
	order := make([]Order, len(q.Order), len(q.Order)+1)
	copy(order, q.Order)
	q.Order = append(order, Order{Field: field, Desc: desc})
	return q
}

// Predicate is a filter condition. The interface is sealed; only the types
// in this package implement it.
type Predicate interface {
	predicateNode()
}

// Equals matches records whose field equals Value. Comparing to
// record.Null matches records where the field is null or absent.
type Equals struct {
	Field string
	Value record.Value
}

func (Equals) predicateNode() {}

// Op is a comparison operator for Compare.
type Op string

const (
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

// Compare matches records whose field relates to Value by Op. Value must be
// a scalar (string, int or bool).
type Compare struct {
	Field string
	Op    Op
	Value record.Value
}

func (Compare) predicateNode() {}

// In matches records whose field equals any of Values. An empty In matches
// nothing.
type In struct {
	Field  string
	Values []record.Value
}

func (In) predicateNode() {}

// And matches when every predicate matches. Empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or matches when any predicate matches. Empty Or matches nothing.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Eq is shorthand for Equals.
func Eq(field string, v record.Value) Equals {
	return Equals{Field: field, Value: v}
}

// AllOf is shorthand for And.
func AllOf(preds ...Predicate) And {
	return And{Predicates: preds}
}

// AnyOf is shorthand for Or.
func AnyOf(preds ...Predicate) Or {
	return Or{Predicates: preds}
}
