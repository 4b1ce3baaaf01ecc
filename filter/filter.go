package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/silo/lineage"
	"github.com/hupe1980/silo/storage"
	"github.com/hupe1980/silo/symbol"
)

// Expression is a validated filter tree node. The set of implementations is
// closed; evaluators switch over the concrete types.
type Expression interface {
	fmt.Stringer
	isExpression()
}

// True matches every sequence.
type True struct{}

// False matches no sequence.
type False struct{}

// And matches the intersection of its children.
type And struct{ Children []Expression }

// Or matches the union of its children.
type Or struct{ Children []Expression }

// Not matches the complement of its child.
type Not struct{ Child Expression }

// NOf matches sequences matched by at least (or, with MatchExactly, exactly)
// NumberOfMatchers children.
type NOf struct {
	Children         []Expression
	NumberOfMatchers int
	MatchExactly     bool
}

// SymbolEquals matches sequences with Symbol at Position. A '.' in the query
// is resolved to the reference symbol during parsing.
type SymbolEquals struct {
	Alphabet *symbol.Alphabet
	Sequence string
	// Position is 0-based.
	Position int
	Symbol   symbol.Symbol
}

// HasMutation matches sequences whose symbol at Position can not be the
// reference symbol.
type HasMutation struct {
	Alphabet *symbol.Alphabet
	Sequence string
	// Position is 0-based.
	Position int
}

// IntEquals matches int column values; a nil Value matches nulls.
type IntEquals struct {
	Column string
	Value  *int32
}

// IntBetween matches From <= value <= To; nil bounds are open.
type IntBetween struct {
	Column   string
	From, To *int32
}

// FloatEquals matches float column values; a nil Value matches nulls.
type FloatEquals struct {
	Column string
	Value  *float64
}

// FloatBetween matches From <= value <= To; nil bounds are open.
type FloatBetween struct {
	Column   string
	From, To *float64
}

// DateEquals matches a date given as days since 1970-01-01; nil matches nulls.
type DateEquals struct {
	Column string
	Value  *int32
}

// DateBetween matches From <= date <= To in days since 1970-01-01.
type DateBetween struct {
	Column   string
	From, To *int32
}

// BoolEquals matches bool column values; a nil Value matches nulls.
type BoolEquals struct {
	Column string
	Value  *bool
}

// StringEquals matches string or lineage column values; nil matches nulls.
type StringEquals struct {
	Column string
	Value  *string
}

// StringInSet matches any of Values.
type StringInSet struct {
	Column string
	Values []string
}

// StringSearch matches values containing a match of Pattern.
type StringSearch struct {
	Column  string
	Pattern *regexp.Regexp
}

// Lineage matches a lineage column. Value holds the resolved lineage name;
// nil matches nulls.
type Lineage struct {
	Column             string
	Value              *string
	IncludeSublineages bool
	Mode               lineage.Mode
}

// IsNull matches rows without a value in Column.
type IsNull struct{ Column string }

func (True) isExpression()         {}
func (False) isExpression()        {}
func (And) isExpression()          {}
func (Or) isExpression()           {}
func (Not) isExpression()          {}
func (NOf) isExpression()          {}
func (SymbolEquals) isExpression() {}
func (HasMutation) isExpression()  {}
func (IntEquals) isExpression()    {}
func (IntBetween) isExpression()   {}
func (FloatEquals) isExpression()  {}
func (FloatBetween) isExpression() {}
func (DateEquals) isExpression()   {}
func (DateBetween) isExpression()  {}
func (BoolEquals) isExpression()   {}
func (StringEquals) isExpression() {}
func (StringInSet) isExpression()  {}
func (StringSearch) isExpression() {}
func (Lineage) isExpression()      {}
func (IsNull) isExpression()       {}

func (True) String() string  { return "True" }
func (False) String() string { return "False" }

func (e And) String() string { return "(" + join(e.Children, " & ") + ")" }
func (e Or) String() string  { return "(" + join(e.Children, " | ") + ")" }
func (e Not) String() string { return "!" + e.Child.String() }

func (e NOf) String() string {
	prefix := "["
	if e.MatchExactly {
		prefix += "exactly-"
	}
	return prefix + strconv.Itoa(e.NumberOfMatchers) + "-of:" + join(e.Children, ", ") + "]"
}

func (e SymbolEquals) String() string {
	return fmt.Sprintf("%s:%d=%s", e.Sequence, e.Position+1, e.Alphabet.String(e.Symbol))
}

func (e HasMutation) String() string {
	return fmt.Sprintf("%s:%d!=ref", e.Sequence, e.Position+1)
}

func (e IntEquals) String() string    { return e.Column + " = " + ptr(e.Value, "NULL") }
func (e FloatEquals) String() string  { return e.Column + " = " + ptr(e.Value, "NULL") }
func (e BoolEquals) String() string   { return e.Column + " = " + ptr(e.Value, "NULL") }
func (e StringEquals) String() string { return e.Column + " = " + quoted(e.Value) }
func (e IsNull) String() string       { return e.Column + " IS NULL" }

func (e IntBetween) String() string {
	return "[" + e.Column + " " + ptr(e.From, "unbounded") + " - " + ptr(e.To, "unbounded") + "]"
}

func (e FloatBetween) String() string {
	return "[" + e.Column + " " + ptr(e.From, "unbounded") + " - " + ptr(e.To, "unbounded") + "]"
}

func (e DateEquals) String() string {
	if e.Value == nil {
		return e.Column + " IS NULL"
	}
	return e.Column + " = '" + storage.FormatDate(*e.Value) + "'"
}

func (e DateBetween) String() string {
	date := func(d *int32) string {
		if d == nil {
			return "unbounded"
		}
		return storage.FormatDate(*d)
	}
	return "[" + e.Column + " " + date(e.From) + " - " + date(e.To) + "]"
}

func (e StringInSet) String() string {
	return e.Column + " IN [" + strings.Join(e.Values, ",") + "]"
}

func (e StringSearch) String() string {
	return e.Column + " regex_matches \"" + e.Pattern.String() + "\""
}

func (e Lineage) String() string {
	if e.Value == nil {
		return e.Column + " IS NULL"
	}
	if e.IncludeSublineages {
		return e.Column + " = '" + *e.Value + "*'"
	}
	return e.Column + " = '" + *e.Value + "'"
}

func join(children []Expression, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return strings.Join(parts, sep)
}

func ptr[T int32 | float64 | bool](v *T, null string) string {
	if v == nil {
		return null
	}
	return fmt.Sprint(*v)
}

func quoted(v *string) string {
	if v == nil {
		return "NULL"
	}
	return "'" + *v + "'"
}
