package query

import (
	"encoding/json"
	"strconv"

	"github.com/hupe1980/silo/apierr"
	"github.com/hupe1980/silo/codec"
	"github.com/hupe1980/silo/filter"
	"github.com/hupe1980/silo/internal/bitmap"
	"github.com/hupe1980/silo/storage"
)

// Action reduces the per-partition matches of a filter into a Result.
//
// compute runs once per partition, concurrently; merge receives the partial
// results in partition order.
type Action interface {
	// Type returns the action name as used in requests.
	Type() string
	// Fields returns the result schema.
	Fields() []Field

	compute(p *storage.Partition, match *bitmap.Bitmap) (any, error)
	merge(partials []any) ([]Row, error)
	options() *Options
}

// Options are the ordering and paging settings shared by all actions.
type Options struct {
	OrderBy []OrderBy
	// Limit of 0 means unlimited.
	Limit  int
	Offset int
}

func (o *Options) options() *Options { return o }

// ParseAction validates a decoded action object against cat. Numbers must
// be json.Number values.
func ParseAction(v any, cat filter.Catalog) (Action, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apierr.BadRequestf("The field 'type' is required in any action")
	}
	raw, ok := obj["type"]
	if !ok {
		return nil, apierr.BadRequestf("The field 'type' is required in any action")
	}
	typ, ok := raw.(string)
	if !ok {
		return nil, apierr.BadRequestf("The field 'type' in all actions needs to be a string")
	}

	opts, err := parseOptions(obj)
	if err != nil {
		return nil, err
	}

	var action Action
	switch typ {
	case "Aggregated":
		action, err = parseAggregated(obj, cat.Schema, opts)
	case "Mutations":
		action, err = parseMutations(obj, cat.Schema, nucleotideMutations, opts)
	case "AminoAcidMutations":
		action, err = parseMutations(obj, cat.Schema, aminoAcidMutations, opts)
	default:
		return nil, apierr.BadRequestf("%s is not a valid action", typ)
	}
	if err != nil {
		return nil, err
	}

	fields := action.Fields()
	for _, o := range opts.OrderBy {
		if fieldIndex(fields, o.Field) < 0 {
			return nil, apierr.BadRequestf("OrderByField %s is not contained in the result of this operation.", o.Field)
		}
	}
	return action, nil
}

func parseOptions(obj map[string]any) (Options, error) {
	var opts Options

	if raw, ok := obj["orderByFields"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return opts, apierr.BadRequestf("orderByFields must be an array")
		}
		for _, item := range list {
			o, ok := parseOrderBy(item)
			if !ok {
				return opts, apierr.BadRequestf(
					"The orderByField '%s' must be either a string or an object containing the fields "+
						"'field':string and 'order':string, where the value of order is 'ascending' or 'descending'",
					dump(item))
			}
			opts.OrderBy = append(opts.OrderBy, o)
		}
	}

	if raw, ok := obj["limit"]; ok {
		n, ok := integer(raw)
		if !ok || n <= 0 {
			return opts, apierr.BadRequestf("If the action contains a limit, it must be a positive number")
		}
		opts.Limit = n
	}
	if raw, ok := obj["offset"]; ok {
		n, ok := integer(raw)
		if !ok || n < 0 {
			return opts, apierr.BadRequestf("If the action contains an offset, it must be a non-negative number")
		}
		opts.Offset = n
	}
	return opts, nil
}

func parseOrderBy(v any) (OrderBy, bool) {
	switch t := v.(type) {
	case string:
		return OrderBy{Field: t, Ascending: true}, true
	case map[string]any:
		field, ok := t["field"].(string)
		if !ok {
			return OrderBy{}, false
		}
		switch t["order"] {
		case "ascending":
			return OrderBy{Field: field, Ascending: true}, true
		case "descending":
			return OrderBy{Field: field}, true
		}
	}
	return OrderBy{}, false
}

func integer(v any) (int, bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(string(num), 10, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

func dump(v any) string {
	b, err := codec.Default.Marshal(v)
	if err != nil {
		return "?"
	}
	return string(b)
}

func number(v any) (float64, bool) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := num.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}
