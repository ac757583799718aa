package filter

import (
	"fmt"
	"strconv"
)

// MaxConditions is the maximum number of conditions per expression.
const MaxConditions = 16

// Filterable document fields. Array fields (AdminIDs) match on membership.
const (
	FieldCitySlug     = "citySlug"
	FieldType         = "type"
	FieldIsActive     = "isActive"
	FieldHasEmbedding = "hasEmbedding"
	FieldAdminIDs     = "adminIds"
)

// Expression is a conjunction of equality conditions.
type Expression struct {
	must []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must ...Condition) (Expression, error) {
	if len(must) > MaxConditions {
		return Expression{}, fmt.Errorf("too many conditions (max %d)", MaxConditions)
	}
	return Expression{must: must}, nil
}

// Must returns the conditions; all must hold.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// And returns a copy of e extended with more conditions.
func (e Expression) And(conds ...Condition) (Expression, error) {
	all := make([]Condition, 0, len(e.must)+len(conds))
	all = append(all, e.must...)
	all = append(all, conds...)
	return NewExpression(all...)
}

// Condition is a single equality clause on a string or boolean field.
type Condition struct {
	key    string
	match  string
	isBool bool
}

// NewMatch creates an exact string match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewBool creates a boolean equality condition.
func NewBool(key string, v bool) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, match: strconv.FormatBool(v), isBool: true}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the value in string form ("true"/"false" for booleans).
func (c Condition) Match() string { return c.match }

// IsBool reports whether the condition compares a boolean field.
func (c Condition) IsBool() bool { return c.isBool }

// Bool returns the boolean value of a boolean condition.
func (c Condition) Bool() bool { return c.isBool && c.match == "true" }
