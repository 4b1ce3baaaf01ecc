package query

import (
	"fmt"

	"github.com/hupe1980/silo/filter"
	"github.com/hupe1980/silo/internal/bitmap"
	"github.com/hupe1980/silo/lineage"
	"github.com/hupe1980/silo/storage"
	"github.com/hupe1980/silo/symbol"
)

// Evaluate computes the ids of p matched by expr. The returned bitmap is
// owned by the caller.
//
// expr must have been validated against the schema of p. Inconsistencies
// between the two are reported as storage.ErrCorrupt.
func Evaluate(expr filter.Expression, p *storage.Partition, lineages map[string]*lineage.Index) (*bitmap.Bitmap, error) {
	ev := evaluator{p: p, lineages: lineages}
	return ev.eval(expr)
}

type evaluator struct {
	p        *storage.Partition
	lineages map[string]*lineage.Index
}

func (ev *evaluator) eval(expr filter.Expression) (*bitmap.Bitmap, error) {
	n := ev.p.SequenceCount()

	switch e := expr.(type) {
	case filter.True:
		return bitmap.Full(n), nil
	case filter.False:
		return bitmap.New(), nil
	case filter.And:
		return ev.and(e)
	case filter.Or:
		return ev.or(e)
	case filter.Not:
		child, err := ev.eval(e.Child)
		if err != nil {
			return nil, err
		}
		child.Flip(n)
		return child, nil
	case filter.NOf:
		return ev.nOf(e)
	case filter.SymbolEquals:
		seq, err := ev.sequence(e.Alphabet, e.Sequence)
		if err != nil {
			return nil, err
		}
		b, err := seq.Bitmap(e.Position, e.Symbol)
		if err != nil {
			return nil, err
		}
		return b.Clone(), nil
	case filter.HasMutation:
		return ev.hasMutation(e)
	case filter.IntEquals:
		col, err := columnAs[*storage.IntColumn](ev.p, e.Column)
		if err != nil {
			return nil, err
		}
		if e.Value == nil {
			return col.Nulls().Clone(), nil
		}
		return col.Equal(*e.Value), nil
	case filter.IntBetween:
		col, err := columnAs[*storage.IntColumn](ev.p, e.Column)
		if err != nil {
			return nil, err
		}
		return col.Between(e.From, e.To), nil
	case filter.FloatEquals:
		col, err := columnAs[*storage.FloatColumn](ev.p, e.Column)
		if err != nil {
			return nil, err
		}
		if e.Value == nil {
			return col.Nulls().Clone(), nil
		}
		return col.Equal(*e.Value), nil
	case filter.FloatBetween:
		col, err := columnAs[*storage.FloatColumn](ev.p, e.Column)
		if err != nil {
			return nil, err
		}
		return col.Between(e.From, e.To), nil
	case filter.DateEquals:
		col, err := columnAs[*storage.DateColumn](ev.p, e.Column)
		if err != nil {
			return nil, err
		}
		if e.Value == nil {
			return col.Nulls().Clone(), nil
		}
		return col.Between(e.Value, e.Value), nil
	case filter.DateBetween:
		col, err := columnAs[*storage.DateColumn](ev.p, e.Column)
		if err != nil {
			return nil, err
		}
		return col.Between(e.From, e.To), nil
	case filter.BoolEquals:
		col, err := columnAs[*storage.BoolColumn](ev.p, e.Column)
		if err != nil {
			return nil, err
		}
		if e.Value == nil {
			return col.Nulls().Clone(), nil
		}
		return col.Equal(*e.Value).Clone(), nil
	case filter.StringEquals:
		col, err := columnAs[*storage.StringColumn](ev.p, e.Column)
		if err != nil {
			return nil, err
		}
		if e.Value == nil {
			return col.Nulls().Clone(), nil
		}
		return col.Equal(*e.Value).Clone(), nil
	case filter.StringInSet:
		col, err := columnAs[*storage.StringColumn](ev.p, e.Column)
		if err != nil {
			return nil, err
		}
		parts := make([]*bitmap.Bitmap, 0, len(e.Values))
		for _, v := range e.Values {
			parts = append(parts, col.Equal(v))
		}
		return bitmap.Union(parts...), nil
	case filter.StringSearch:
		col, err := columnAs[*storage.StringColumn](ev.p, e.Column)
		if err != nil {
			return nil, err
		}
		var parts []*bitmap.Bitmap
		for i, v := range col.Dictionary() {
			if e.Pattern.MatchString(v) {
				parts = append(parts, col.ValueBitmap(i))
			}
		}
		return bitmap.Union(parts...), nil
	case filter.Lineage:
		return ev.lineage(e)
	case filter.IsNull:
		col, ok := ev.p.Column(e.Column)
		if !ok {
			return nil, missingColumn(e.Column)
		}
		return col.Nulls().Clone(), nil
	}
	return nil, fmt.Errorf("query: unsupported expression %T", expr)
}

// and evaluates the positive children first and subtracts the negated ones.
// Evaluation stops as soon as the intermediate result is empty.
func (ev *evaluator) and(e filter.And) (*bitmap.Bitmap, error) {
	var positive, negated []filter.Expression
	for _, c := range e.Children {
		if not, ok := c.(filter.Not); ok {
			negated = append(negated, not.Child)
			continue
		}
		positive = append(positive, c)
	}

	var result *bitmap.Bitmap
	for _, c := range positive {
		b, err := ev.eval(c)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = b
		} else {
			result.And(b)
		}
		if result.IsEmpty() {
			return result, nil
		}
	}
	if result == nil {
		result = bitmap.Full(ev.p.SequenceCount())
	}

	for _, c := range negated {
		if result.IsEmpty() {
			break
		}
		b, err := ev.eval(c)
		if err != nil {
			return nil, err
		}
		result.AndNot(b)
	}
	return result, nil
}

func (ev *evaluator) or(e filter.Or) (*bitmap.Bitmap, error) {
	parts, err := ev.evalAll(e.Children)
	if err != nil {
		return nil, err
	}
	return bitmap.Union(parts...), nil
}

func (ev *evaluator) nOf(e filter.NOf) (*bitmap.Bitmap, error) {
	n := ev.p.SequenceCount()
	if e.NumberOfMatchers == 0 && !e.MatchExactly {
		return bitmap.Full(n), nil
	}
	if e.NumberOfMatchers > len(e.Children) {
		return bitmap.New(), nil
	}
	parts, err := ev.evalAll(e.Children)
	if err != nil {
		return nil, err
	}
	return bitmap.NOf(parts, e.NumberOfMatchers, e.MatchExactly, n), nil
}

func (ev *evaluator) evalAll(children []filter.Expression) ([]*bitmap.Bitmap, error) {
	out := make([]*bitmap.Bitmap, 0, len(children))
	for _, c := range children {
		b, err := ev.eval(c)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// hasMutation unions every symbol at the position that can not stand for
// the reference symbol.
func (ev *evaluator) hasMutation(e filter.HasMutation) (*bitmap.Bitmap, error) {
	seq, err := ev.sequence(e.Alphabet, e.Sequence)
	if err != nil {
		return nil, err
	}
	if e.Position < 0 || e.Position >= seq.Length() {
		return nil, fmt.Errorf("%w: position %d outside of sequence %q with length %d",
			storage.ErrCorrupt, e.Position+1, e.Sequence, seq.Length())
	}

	excluded := make([]bool, e.Alphabet.Len())
	for _, s := range e.Alphabet.CouldBe(seq.ReferenceSymbol(e.Position)) {
		excluded[s] = true
	}
	bitmaps := seq.Position(e.Position)
	parts := make([]*bitmap.Bitmap, 0, len(bitmaps))
	for s, b := range bitmaps {
		if !excluded[s] && !b.IsEmpty() {
			parts = append(parts, b)
		}
	}
	return bitmap.Union(parts...), nil
}

// lineage unions the dictionary values of the column whose resolved lineage
// is the requested one or, with sublineages, one of its descendants.
func (ev *evaluator) lineage(e filter.Lineage) (*bitmap.Bitmap, error) {
	col, err := columnAs[*storage.StringColumn](ev.p, e.Column)
	if err != nil {
		return nil, err
	}
	if e.Value == nil {
		return col.Nulls().Clone(), nil
	}
	ix, ok := ev.lineages[e.Column]
	if !ok {
		return nil, fmt.Errorf("%w: no lineage index for column %q", storage.ErrCorrupt, e.Column)
	}

	wanted := map[string]struct{}{*e.Value: {}}
	if e.IncludeSublineages {
		for _, name := range ix.Expand(*e.Value, e.Mode) {
			wanted[name] = struct{}{}
		}
	}

	var parts []*bitmap.Bitmap
	for i, v := range col.Dictionary() {
		name, ok := ix.Resolve(v)
		if !ok {
			continue
		}
		if _, ok := wanted[name]; ok {
			parts = append(parts, col.ValueBitmap(i))
		}
	}
	return bitmap.Union(parts...), nil
}

func (ev *evaluator) sequence(a *symbol.Alphabet, name string) (*storage.SequenceColumn, error) {
	seq, ok := ev.p.Sequence(a, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s sequence %q not found", storage.ErrCorrupt, a.LowerName(), name)
	}
	return seq, nil
}

func columnAs[T storage.Column](p *storage.Partition, name string) (T, error) {
	var zero T
	col, ok := p.Column(name)
	if !ok {
		return zero, missingColumn(name)
	}
	typed, ok := col.(T)
	if !ok {
		return zero, fmt.Errorf("%w: column %q has type %s", storage.ErrCorrupt, name, col.Type())
	}
	return typed, nil
}

func missingColumn(name string) error {
	return fmt.Errorf("%w: column %q not found", storage.ErrCorrupt, name)
}
