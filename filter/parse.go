package filter

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/silo/apierr"
	"github.com/hupe1980/silo/codec"
	"github.com/hupe1980/silo/lineage"
	"github.com/hupe1980/silo/storage"
	"github.com/hupe1980/silo/symbol"
)

// Catalog is what filters are validated against: the schema of a snapshot
// and the lineage indexes of its lineage columns.
type Catalog struct {
	Schema   *storage.Schema
	Lineages map[string]*lineage.Index
}

// Parse decodes a JSON filter expression and validates it against cat.
func Parse(data []byte, cat Catalog) (Expression, error) {
	var v any
	if err := codec.Default.UnmarshalNumbers(data, &v); err != nil {
		return nil, apierr.Wrap(apierr.BadRequest, err,
			"The filter expression was not a valid JSON: "+codec.DescribeSyntaxError(data, err))
	}
	return FromValue(v, cat)
}

// FromValue validates an already decoded filter expression. Numbers must be
// json.Number values. All structural and schema checks happen here, so
// evaluation never fails on user input.
func FromValue(v any, cat Catalog) (Expression, error) {
	p := parser{cat: cat}
	return p.expression(v)
}

type parser struct {
	cat Catalog
}

// node is one JSON object of the filter tree together with its type name,
// used to format validation messages.
type node struct {
	typ    string
	fields map[string]any
}

func (p *parser) expression(v any) (Expression, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apierr.BadRequestf("The field 'type' is required in any filter expression")
	}
	raw, ok := obj["type"]
	if !ok {
		return nil, apierr.BadRequestf("The field 'type' is required in any filter expression")
	}
	typ, ok := raw.(string)
	if !ok {
		return nil, apierr.BadRequestf("The field 'type' in all filter expressions needs to be a string, but is: %s", dump(raw))
	}
	n := node{typ: typ, fields: obj}

	switch typ {
	case "True":
		return True{}, nil
	case "False":
		return False{}, nil
	case "And", "Or":
		children, err := p.children(n)
		if err != nil {
			return nil, err
		}
		if typ == "And" {
			return And{Children: children}, nil
		}
		return Or{Children: children}, nil
	case "Not":
		raw, ok := obj["child"]
		if !ok {
			return nil, n.required("child")
		}
		child, err := p.expression(raw)
		if err != nil {
			return nil, err
		}
		return Not{Child: child}, nil
	case "N-Of":
		return p.nOf(n)
	case "NucleotideEquals":
		return p.symbolEquals(n, symbol.Nucleotide)
	case "AminoAcidEquals":
		return p.symbolEquals(n, symbol.AminoAcid)
	case "HasNucleotideMutation":
		return p.hasMutation(n, symbol.Nucleotide)
	case "HasAminoAcidMutation":
		return p.hasMutation(n, symbol.AminoAcid)
	case "IntEquals":
		return p.intEquals(n)
	case "IntBetween":
		return p.intBetween(n)
	case "FloatEquals":
		return p.floatEquals(n)
	case "FloatBetween":
		return p.floatBetween(n)
	case "DateEquals":
		return p.dateEquals(n)
	case "DateBetween":
		return p.dateBetween(n)
	case "BooleanEquals", "BoolEquals":
		return p.boolEquals(n)
	case "StringEquals":
		return p.stringEquals(n)
	case "StringInSet":
		return p.stringInSet(n)
	case "StringSearch":
		return p.stringSearch(n)
	case "Lineage", "PangoLineage":
		return p.lineage(n)
	case "IsNull":
		return p.isNull(n)
	}
	return nil, apierr.BadRequestf("Unknown object filter type '%s'", typ)
}

func (p *parser) children(n node) ([]Expression, error) {
	raw, ok := n.fields["children"]
	if !ok {
		return nil, n.required("children")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, n.invalid("children", "needs to be an array")
	}
	out := make([]Expression, 0, len(list))
	for _, c := range list {
		child, err := p.expression(c)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func (p *parser) nOf(n node) (Expression, error) {
	children, err := p.children(n)
	if err != nil {
		return nil, err
	}
	raw, ok := n.fields["numberOfMatchers"]
	if !ok {
		return nil, n.required("numberOfMatchers")
	}
	k, ok := unsigned(raw)
	if !ok {
		return nil, n.invalid("numberOfMatchers", "needs to be an unsigned integer")
	}
	raw, ok = n.fields["matchExactly"]
	if !ok {
		return nil, n.required("matchExactly")
	}
	exact, ok := raw.(bool)
	if !ok {
		return nil, n.invalid("matchExactly", "needs to be a boolean")
	}
	return NOf{Children: children, NumberOfMatchers: int(k), MatchExactly: exact}, nil
}

// sequence resolves the optional sequenceName field against the schema.
func (p *parser) sequence(n node, alphabet *symbol.Alphabet) (storage.SequenceSpec, error) {
	var name string
	if raw, ok := n.fields["sequenceName"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return storage.SequenceSpec{}, n.invalid("sequenceName", "needs to be a string")
		}
		name = s
	} else {
		def, ok := p.cat.Schema.DefaultSequence(alphabet)
		if !ok {
			return storage.SequenceSpec{}, apierr.BadRequestf(
				"Database does not have a default sequence name for %s sequences. You need to provide the sequence name with the %s filter.",
				alphabet.Name(), n.typ)
		}
		name = def
	}
	spec, ok := p.cat.Schema.Sequence(alphabet, name)
	if !ok {
		return storage.SequenceSpec{}, apierr.BadRequestf(
			"Database does not contain the %s sequence with name: '%s'", alphabet.LowerName(), name)
	}
	return spec, nil
}

// position reads the 1-based position field and returns it 0-based.
func (p *parser) position(n node, spec storage.SequenceSpec) (int, error) {
	raw, ok := n.fields["position"]
	if !ok {
		return 0, n.required("position")
	}
	pos, ok := unsigned(raw)
	if !ok {
		return 0, n.invalid("position", "needs to be an unsigned integer")
	}
	if pos == 0 {
		return 0, apierr.BadRequestf("The field 'position' is 1-indexed. Value of 0 not allowed.")
	}
	if pos > uint64(len(spec.Reference)) {
		return 0, apierr.BadRequestf("%s position is out of bounds %d > %d", n.typ, pos, len(spec.Reference))
	}
	return int(pos - 1), nil
}

func (p *parser) symbolEquals(n node, alphabet *symbol.Alphabet) (Expression, error) {
	spec, err := p.sequence(n, alphabet)
	if err != nil {
		return nil, err
	}
	pos, err := p.position(n, spec)
	if err != nil {
		return nil, err
	}
	raw, ok := n.fields["symbol"]
	if !ok {
		return nil, n.required("symbol")
	}
	s, ok := raw.(string)
	if !ok {
		return nil, n.invalid("symbol", "needs to be a string")
	}
	if len(s) != 1 {
		return nil, apierr.BadRequestf("The string field 'symbol' must be exactly one character long")
	}
	var sym symbol.Symbol
	if s[0] == '.' {
		sym = alphabet.MustParse(spec.Reference[pos])
	} else if sym, ok = alphabet.Parse(s[0]); !ok {
		return nil, apierr.BadRequestf(
			"The string field 'symbol' must be either a valid %s symbol or the '.' symbol.", alphabet.LowerName())
	}
	return SymbolEquals{Alphabet: alphabet, Sequence: spec.Name, Position: pos, Symbol: sym}, nil
}

func (p *parser) hasMutation(n node, alphabet *symbol.Alphabet) (Expression, error) {
	spec, err := p.sequence(n, alphabet)
	if err != nil {
		return nil, err
	}
	pos, err := p.position(n, spec)
	if err != nil {
		return nil, err
	}
	return HasMutation{Alphabet: alphabet, Sequence: spec.Name, Position: pos}, nil
}

// column reads the column field and checks that it names a column of one of
// the accepted types.
func (p *parser) column(n node, types ...storage.ColumnType) (string, error) {
	raw, ok := n.fields["column"]
	if !ok {
		return "", n.required("column")
	}
	name, ok := raw.(string)
	if !ok {
		return "", n.invalid("column", "needs to be a string")
	}
	spec, ok := p.cat.Schema.Column(name)
	if !ok {
		return "", apierr.BadRequestf("The column %s does not exist in this instance.", name)
	}
	if len(types) == 0 {
		return name, nil
	}
	for _, t := range types {
		if spec.Type == t {
			return name, nil
		}
	}
	return "", apierr.BadRequestf("The column '%s' is not of type %s", name, types[0])
}

// nullable returns the field value, reporting whether it is null.
func (n node) nullable(field string) (any, bool, error) {
	raw, ok := n.fields[field]
	if !ok {
		return nil, false, n.required(field)
	}
	return raw, raw == nil, nil
}

const int32Range = "must be an integer in [-2147483648; 2147483647] or null"

func (n node) optionalInt(field string) (*int32, error) {
	raw, null, err := n.nullable(field)
	if err != nil || null {
		return nil, err
	}
	num, ok := raw.(json.Number)
	if !ok {
		return nil, n.invalid(field, int32Range)
	}
	v, err := strconv.ParseInt(string(num), 10, 32)
	if err != nil {
		return nil, n.invalid(field, int32Range)
	}
	i := int32(v)
	return &i, nil
}

func (n node) optionalFloat(field string) (*float64, error) {
	raw, null, err := n.nullable(field)
	if err != nil || null {
		return nil, err
	}
	num, ok := raw.(json.Number)
	if !ok {
		return nil, n.invalid(field, "must be a float or null")
	}
	v, err := num.Float64()
	if err != nil || math.IsInf(v, 0) {
		return nil, n.invalid(field, "must be a float or null")
	}
	return &v, nil
}

func (n node) optionalString(field string) (*string, error) {
	raw, null, err := n.nullable(field)
	if err != nil || null {
		return nil, err
	}
	s, ok := raw.(string)
	if !ok {
		return nil, n.invalid(field, "needs to be a string or null")
	}
	return &s, nil
}

func (n node) optionalDate(field string) (*int32, error) {
	raw, null, err := n.nullable(field)
	if err != nil || null {
		return nil, err
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return nil, n.invalid(field, "needs to be a non-empty string or null")
	}
	d, err := storage.ParseDate(s)
	if err != nil {
		return nil, apierr.BadRequestf("Invalid date in '%s' field: %s", field, s)
	}
	return &d, nil
}

func (p *parser) intEquals(n node) (Expression, error) {
	col, err := p.column(n, storage.ColumnInt)
	if err != nil {
		return nil, err
	}
	v, err := n.optionalInt("value")
	if err != nil {
		return nil, err
	}
	return IntEquals{Column: col, Value: v}, nil
}

func (p *parser) intBetween(n node) (Expression, error) {
	col, err := p.column(n, storage.ColumnInt)
	if err != nil {
		return nil, err
	}
	from, err := n.optionalInt("from")
	if err != nil {
		return nil, err
	}
	to, err := n.optionalInt("to")
	if err != nil {
		return nil, err
	}
	return IntBetween{Column: col, From: from, To: to}, nil
}

func (p *parser) floatEquals(n node) (Expression, error) {
	col, err := p.column(n, storage.ColumnFloat)
	if err != nil {
		return nil, err
	}
	v, err := n.optionalFloat("value")
	if err != nil {
		return nil, err
	}
	return FloatEquals{Column: col, Value: v}, nil
}

func (p *parser) floatBetween(n node) (Expression, error) {
	col, err := p.column(n, storage.ColumnFloat)
	if err != nil {
		return nil, err
	}
	from, err := n.optionalFloat("from")
	if err != nil {
		return nil, err
	}
	to, err := n.optionalFloat("to")
	if err != nil {
		return nil, err
	}
	return FloatBetween{Column: col, From: from, To: to}, nil
}

func (p *parser) dateEquals(n node) (Expression, error) {
	col, err := p.column(n, storage.ColumnDate)
	if err != nil {
		return nil, err
	}
	v, err := n.optionalDate("value")
	if err != nil {
		return nil, err
	}
	return DateEquals{Column: col, Value: v}, nil
}

func (p *parser) dateBetween(n node) (Expression, error) {
	col, err := p.column(n, storage.ColumnDate)
	if err != nil {
		return nil, err
	}
	from, err := n.optionalDate("from")
	if err != nil {
		return nil, err
	}
	to, err := n.optionalDate("to")
	if err != nil {
		return nil, err
	}
	return DateBetween{Column: col, From: from, To: to}, nil
}

func (p *parser) boolEquals(n node) (Expression, error) {
	col, err := p.column(n, storage.ColumnBool)
	if err != nil {
		return nil, err
	}
	raw, null, err := n.nullable("value")
	if err != nil {
		return nil, err
	}
	if null {
		return BoolEquals{Column: col}, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return nil, n.invalid("value", "must be a boolean or null")
	}
	return BoolEquals{Column: col, Value: &b}, nil
}

func (p *parser) stringEquals(n node) (Expression, error) {
	col, err := p.column(n, storage.ColumnString, storage.ColumnLineage)
	if err != nil {
		return nil, err
	}
	v, err := n.optionalString("value")
	if err != nil {
		return nil, err
	}
	return StringEquals{Column: col, Value: v}, nil
}

func (p *parser) stringInSet(n node) (Expression, error) {
	col, err := p.column(n, storage.ColumnString, storage.ColumnLineage)
	if err != nil {
		return nil, err
	}
	raw, ok := n.fields["values"]
	if !ok {
		return nil, n.required("values")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, n.invalid("values", "needs to be an array")
	}
	values := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, apierr.BadRequestf("The field 'values' in a StringInSet may only contain strings")
		}
		values = append(values, s)
	}
	return StringInSet{Column: col, Values: values}, nil
}

func (p *parser) stringSearch(n node) (Expression, error) {
	col, err := p.column(n, storage.ColumnString, storage.ColumnLineage)
	if err != nil {
		return nil, err
	}
	raw, ok := n.fields["searchExpression"]
	if !ok {
		return nil, n.required("searchExpression")
	}
	s, ok := raw.(string)
	if !ok {
		return nil, n.invalid("searchExpression", "needs to be a string")
	}
	re, err := regexp.Compile(s)
	if err != nil {
		return nil, apierr.BadRequestf(
			"Invalid Regular Expression. The parsing of the regular expression failed with the error '%v'.", err)
	}
	return StringSearch{Column: col, Pattern: re}, nil
}

func (p *parser) lineage(n node) (Expression, error) {
	col, err := p.column(n)
	if err != nil {
		return nil, err
	}
	ix, ok := p.cat.Lineages[col]
	if !ok || ix == nil {
		return nil, apierr.BadRequestf("The column %s does not have a lineageIndex defined.", col)
	}
	value, err := n.optionalString("value")
	if err != nil {
		return nil, err
	}
	raw, ok := n.fields["includeSublineages"]
	if !ok {
		return nil, n.required("includeSublineages")
	}
	include, ok := raw.(bool)
	if !ok {
		return nil, n.invalid("includeSublineages", "needs to be a boolean")
	}

	mode := lineage.DoNotFollow
	if raw, ok := n.fields["recombinantFollowingMode"]; ok && include {
		s, _ := raw.(string)
		if mode, ok = lineage.ParseMode(s); !ok {
			return nil, n.invalid("recombinantFollowingMode", "needs to be one of: "+strings.Join(lineage.ModeNames(), ","))
		}
	}

	if value == nil {
		return Lineage{Column: col}, nil
	}
	resolved, ok := ix.Resolve(*value)
	if !ok {
		return nil, apierr.BadRequestf("The lineage '%s' is not a valid lineage for column '%s'.", *value, col)
	}
	return Lineage{Column: col, Value: &resolved, IncludeSublineages: include, Mode: mode}, nil
}

func (p *parser) isNull(n node) (Expression, error) {
	col, err := p.column(n)
	if err != nil {
		return nil, err
	}
	return IsNull{Column: col}, nil
}

func (n node) required(field string) error {
	return apierr.BadRequestf("The field '%s' is required in %s %s expression", field, article(n.typ), n.typ)
}

func (n node) invalid(field, want string) error {
	return apierr.BadRequestf("The field '%s' in %s %s expression %s", field, article(n.typ), n.typ, want)
}

func article(word string) string {
	if strings.HasPrefix(word, "N-") || word != "" && strings.ContainsRune("AEIOU", rune(word[0])) {
		return "an"
	}
	return "a"
}

// unsigned accepts non-negative integral JSON numbers up to uint32.
func unsigned(v any) (uint64, bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	u, err := strconv.ParseUint(string(num), 10, 32)
	if err != nil {
		return 0, false
	}
	return u, true
}

func dump(v any) string {
	b, err := codec.Default.Marshal(v)
	if err != nil {
		return "?"
	}
	return string(b)
}
