// Package stagecode splits stage codes such as "1-7" or "CE-5" into
// comparable tokens and orders them naturally.
package stagecode

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	// DefaultDelimiter separates the chapter token from the sub-index token.
	DefaultDelimiter = "-"
	// DefaultLocale is used for non-numeric token ordering.
	DefaultLocale = "en"
)

// Token is one half of a stage code.
type Token struct {
	Raw     string
	Value   float64
	Numeric bool
}

// ParsedCode holds the chapter token and the sub-index token of a code.
// Codes without the delimiter have an empty Second token.
type ParsedCode struct {
	First  Token
	Second Token
}

// Parser parses and compares stage codes. A Parser is not safe for
// concurrent use because the collator keeps internal buffers.
type Parser struct {
	delimiter string
	locale    language.Tag
	collator  *collate.Collator
}

// New returns a Parser splitting on delimiter and collating with locale.
// Empty values fall back to the defaults.
func New(delimiter, locale string) (*Parser, error) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	if strings.TrimSpace(locale) == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return &Parser{
		delimiter: delimiter,
		locale:    tag,
		collator:  collate.New(tag),
	}, nil
}

// Default returns a Parser with the default delimiter and locale.
func Default() *Parser {
	return &Parser{
		delimiter: DefaultDelimiter,
		locale:    language.English,
		collator:  collate.New(language.English),
	}
}

// Delimiter returns the boundary the parser splits on.
func (p *Parser) Delimiter() string {
	return p.delimiter
}

// Locale returns the collation locale.
func (p *Parser) Locale() string {
	return p.locale.String()
}

// Parse splits code at the first delimiter. It never fails: input that does
// not look like a stage code simply yields non-numeric tokens.
func (p *Parser) Parse(code string) ParsedCode {
	first, second, _ := strings.Cut(code, p.delimiter)
	return ParsedCode{
		First:  ParseToken(first),
		Second: ParseToken(second),
	}
}

// ParseToken classifies raw as numeric when it parses fully as a finite number.
func ParseToken(raw string) Token {
	tok := Token{Raw: raw}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return tok
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return tok
	}
	tok.Value = v
	tok.Numeric = true
	return tok
}

// CompareTokens orders two tokens: by value when both are numeric,
// otherwise by locale-aware string order.
func (p *Parser) CompareTokens(a, b Token) int {
	if a.Numeric && b.Numeric {
		return cmp.Compare(a.Value, b.Value)
	}
	return p.CompareStrings(a.Raw, b.Raw)
}

// CompareStrings collates a and b. Strings the collator considers equal but
// that differ byte-wise fall back to byte order so the result is total.
func (p *Parser) CompareStrings(a, b string) int {
	if c := p.collator.CompareString(a, b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// CompareCodes orders two stage codes by first token, then second token,
// then byte order, so distinct codes never compare equal.
func (p *Parser) CompareCodes(a, b string) int {
	pa := p.Parse(a)
	pb := p.Parse(b)
	if c := p.CompareTokens(pa.First, pb.First); c != 0 {
		return c
	}
	if c := p.CompareTokens(pa.Second, pb.Second); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
