package symbol

import "fmt"

// Symbol is the index of a character within an Alphabet.
type Symbol uint8

// Alphabet describes the symbols that can occur at a genome position.
type Alphabet struct {
	name      string
	lowerName string
	chars     []byte
	index     [256]int16
	mutation  []bool
	missing   Symbol
	// basis is a bit set over the mutation symbols a symbol may stand for.
	basis []uint32
}

// Nucleotide is the IUPAC nucleotide alphabet. Mutation symbols are - A C G T,
// the missing symbol is N.
var Nucleotide = newAlphabet(
	"Nucleotide", "nucleotide",
	"-ACGTRYSWKMBDHVN",
	"-ACGT",
	'N',
	map[byte]string{
		'R': "AG",
		'Y': "CT",
		'S': "CG",
		'W': "AT",
		'K': "GT",
		'M': "AC",
		'B': "CGT",
		'D': "AGT",
		'H': "ACT",
		'V': "ACG",
		'N': "-ACGT",
	},
)

// AminoAcid is the amino-acid alphabet including the stop codon '*'. The
// ambiguity codes B J Z and X are not mutation symbols; X is the missing symbol.
var AminoAcid = newAlphabet(
	"AminoAcid", "amino acid",
	"-ACDEFGHIKLMNOPQRSTUVWY"+"BJZ*X",
	"-ACDEFGHIKLMNOPQRSTUVWY*",
	'X',
	map[byte]string{
		'B': "DN",
		'J': "IL",
		'Z': "EQ",
		'X': "-ACDEFGHIKLMNOPQRSTUVWY*",
	},
)

func newAlphabet(name, lowerName, chars, mutation string, missing byte, ambiguity map[byte]string) *Alphabet {
	a := &Alphabet{
		name:      name,
		lowerName: lowerName,
		chars:     []byte(chars),
		mutation:  make([]bool, len(chars)),
		basis:     make([]uint32, len(chars)),
	}
	for i := range a.index {
		a.index[i] = -1
	}
	for i, c := range a.chars {
		a.index[c] = int16(i)
	}

	bit := make(map[byte]uint32, len(mutation))
	for i := 0; i < len(mutation); i++ {
		bit[mutation[i]] = 1 << uint(i)
		a.mutation[a.index[mutation[i]]] = true
	}
	for i, c := range a.chars {
		if b, ok := bit[c]; ok {
			a.basis[i] = b
			continue
		}
		for _, m := range []byte(ambiguity[c]) {
			a.basis[i] |= bit[m]
		}
	}
	a.missing = Symbol(a.index[missing])
	return a
}

// Name returns the alphabet name used in filter types, e.g. "Nucleotide".
func (a *Alphabet) Name() string { return a.name }

// LowerName returns the human readable lower case name, e.g. "amino acid".
func (a *Alphabet) LowerName() string { return a.lowerName }

// Len returns the number of symbols.
func (a *Alphabet) Len() int { return len(a.chars) }

// Missing returns the symbol used for unknown or absent data.
func (a *Alphabet) Missing() Symbol { return a.missing }

// Char returns the character of s.
func (a *Alphabet) Char(s Symbol) byte { return a.chars[s] }

// String returns the character of s as a string.
func (a *Alphabet) String(s Symbol) string { return string(a.chars[s]) }

// Parse returns the symbol for c. Lower case characters are accepted.
func (a *Alphabet) Parse(c byte) (Symbol, bool) {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	i := a.index[c]
	if i < 0 {
		return 0, false
	}
	return Symbol(i), true
}

// MustParse is like Parse but panics on unknown characters.
func (a *Alphabet) MustParse(c byte) Symbol {
	s, ok := a.Parse(c)
	if !ok {
		panic(fmt.Sprintf("symbol: %q is not a %s symbol", c, a.lowerName))
	}
	return s
}

// ParseSequence converts a string of characters into symbols.
func (a *Alphabet) ParseSequence(seq string) ([]Symbol, error) {
	out := make([]Symbol, len(seq))
	for i := 0; i < len(seq); i++ {
		s, ok := a.Parse(seq[i])
		if !ok {
			return nil, fmt.Errorf("symbol: invalid %s symbol %q at position %d", a.lowerName, seq[i], i+1)
		}
		out[i] = s
	}
	return out, nil
}

// Symbols returns all symbols in alphabet order.
func (a *Alphabet) Symbols() []Symbol {
	out := make([]Symbol, len(a.chars))
	for i := range out {
		out[i] = Symbol(i)
	}
	return out
}

// IsMutationSymbol reports whether s counts towards mutation statistics.
func (a *Alphabet) IsMutationSymbol(s Symbol) bool { return a.mutation[s] }

// MutationSymbols returns the symbols that count towards mutation statistics,
// in alphabet order.
func (a *Alphabet) MutationSymbols() []Symbol {
	out := make([]Symbol, 0, len(a.chars))
	for i, ok := range a.mutation {
		if ok {
			out = append(out, Symbol(i))
		}
	}
	return out
}

// CouldBe returns every symbol that may stand for ref: ref itself and all
// ambiguity codes covering it, the missing symbol included.
func (a *Alphabet) CouldBe(ref Symbol) []Symbol {
	want := a.basis[ref]
	out := make([]Symbol, 0, 8)
	for i, b := range a.basis {
		if Symbol(i) == ref || (want != 0 && b&want == want) {
			out = append(out, Symbol(i))
		}
	}
	return out
}
