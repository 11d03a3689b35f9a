package stats

import (
	"strings"

	"github.com/verte-zerg/dropstats/internal/model"
	"github.com/verte-zerg/dropstats/internal/stagecode"
)

// Comparator orders two rows: negative when a sorts first, positive when b
// does, zero when tied.
type Comparator func(a, b ResultRow) int

// Chain evaluates comparators in order and returns the first non-zero result.
func Chain(stages ...Comparator) Comparator {
	return func(a, b ResultRow) int {
		for _, stage := range stages {
			if c := stage(a, b); c != 0 {
				return c
			}
		}
		return 0
	}
}

// Reverse negates cmp.
func Reverse(cmp Comparator) Comparator {
	return func(a, b ResultRow) int {
		return -cmp(a, b)
	}
}

// ByCategory sorts main stages before sub stages.
func ByCategory(a, b ResultRow) int {
	return categoryRank(a.Category()) - categoryRank(b.Category())
}

func categoryRank(category string) int {
	if category == model.CategorySub {
		return 1
	}
	return 0
}

// ByTokens compares the parsed codes of two rows: first token, then second
// token. Each distinct code is parsed once per comparator.
func ByTokens(p *stagecode.Parser) Comparator {
	parsed := map[string]stagecode.ParsedCode{}
	parse := func(code string) stagecode.ParsedCode {
		pc, ok := parsed[code]
		if !ok {
			pc = p.Parse(code)
			parsed[code] = pc
		}
		return pc
	}
	return func(a, b ResultRow) int {
		pa, pb := parse(a.Code), parse(b.Code)
		if c := p.CompareTokens(pa.First, pb.First); c != 0 {
			return c
		}
		return p.CompareTokens(pa.Second, pb.Second)
	}
}

// ByRawCode compares codes byte-wise. It separates codes whose numeric
// tokens are equal but spelled differently, such as "1-01" and "1-1".
func ByRawCode(a, b ResultRow) int {
	return strings.Compare(a.Code, b.Code)
}

// ByCode is the natural stage code order: category, first token, second
// token, then the raw code.
func ByCode(p *stagecode.Parser) Comparator {
	return Chain(ByCategory, ByTokens(p), ByRawCode)
}

// ByItemName collates item names.
func ByItemName(p *stagecode.Parser) Comparator {
	return func(a, b ResultRow) int {
		return p.CompareStrings(a.ItemName(), b.ItemName())
	}
}

// ByNumber compares a numeric column by the sign of a-b. Differences that
// are NaN, including unknown columns, compare equal.
func ByNumber(column string) Comparator {
	return func(a, b ResultRow) int {
		av, _ := a.Value(column)
		bv, _ := b.Value(column)
		d := av - bv
		switch {
		case d < 0:
			return -1
		case d > 0:
			return 1
		default:
			return 0
		}
	}
}

// ColumnComparator selects the comparator for column and applies direction.
func ColumnComparator(p *stagecode.Parser, column string, dir Direction) Comparator {
	var cmp Comparator
	switch column {
	case ColumnCode:
		cmp = ByCode(p)
	case ColumnItem:
		cmp = ByItemName(p)
	default:
		cmp = ByNumber(column)
	}
	if dir == Desc {
		return Reverse(cmp)
	}
	return cmp
}
