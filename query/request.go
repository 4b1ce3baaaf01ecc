package query

import (
	"github.com/hupe1980/silo/apierr"
	"github.com/hupe1980/silo/codec"
	"github.com/hupe1980/silo/filter"
)

// Request is a validated query: which sequences to select and what to
// compute over them.
type Request struct {
	Filter filter.Expression
	Action Action
}

// ParseRequest decodes and validates a query body of the form
// {"filterExpression": {...}, "action": {...}} against cat.
func ParseRequest(body []byte, cat filter.Catalog) (*Request, error) {
	var v any
	if err := codec.Default.UnmarshalNumbers(body, &v); err != nil {
		return nil, apierr.Wrap(apierr.BadRequest, err, "The query was not a valid JSON: "+codec.DescribeSyntaxError(body, err))
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apierr.BadRequestf("Query json must contain filterExpression and action.")
	}
	rawFilter, hasFilter := obj["filterExpression"]
	rawAction, hasAction := obj["action"]
	if !hasFilter || !hasAction {
		return nil, apierr.BadRequestf("Query json must contain filterExpression and action.")
	}

	expr, err := filter.FromValue(rawFilter, cat)
	if err != nil {
		return nil, err
	}
	action, err := ParseAction(rawAction, cat)
	if err != nil {
		return nil, err
	}
	return &Request{Filter: expr, Action: action}, nil
}
