package tokenizer

import (
	"slices"
	"unicode/utf8"
)

// Window is a fixed-length sliding window over a character stream
type Window struct {
	runes  []rune
	length int
}

// NewWindow creates an empty window that holds up to length characters
func NewWindow(length int) *Window {
	return &Window{
		runes:  make([]rune, 0, length),
		length: length,
	}
}

// Fill appends r while the window is still filling.
// Returns false, leaving the window unchanged, once it is full.
func (w *Window) Fill(r rune) bool {
	if w.Full() {
		return false
	}
	w.runes = append(w.runes, r)
	return true
}

// Full reports whether the window holds exactly length characters
func (w *Window) Full() bool {
	return len(w.runes) == w.length
}

// Slide drops the oldest character and appends r
func (w *Window) Slide(r rune) {
	if w.length == 0 {
		return
	}
	copy(w.runes, w.runes[1:])
	w.runes[len(w.runes)-1] = r
}

// String returns the window contents as a map key
func (w *Window) String() string {
	return string(w.runes)
}

// Trailing returns the last n characters of text.
// If text has fewer than n characters the whole text is returned.
func Trailing(text []rune, n int) string {
	if n >= len(text) {
		return string(text)
	}
	return string(text[len(text)-n:])
}

// RuneLen returns the number of characters in s
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Vocabulary is the set of distinct characters seen by a model
type Vocabulary struct {
	runeToID map[rune]int
	idToRune []rune
	sorted   bool
}

// NewVocabulary creates an empty vocabulary
func NewVocabulary() *Vocabulary {
	return &Vocabulary{runeToID: make(map[rune]int)}
}

// Add inserts r if it is not yet present
func (v *Vocabulary) Add(r rune) {
	if _, ok := v.runeToID[r]; ok {
		return
	}
	v.runeToID[r] = len(v.idToRune)
	v.idToRune = append(v.idToRune, r)
	v.sorted = false
}

// Size returns the number of distinct characters
func (v *Vocabulary) Size() int {
	return len(v.idToRune)
}

// Runes returns the characters sorted for deterministic ordering
func (v *Vocabulary) Runes() []rune {
	if !v.sorted {
		slices.Sort(v.idToRune)
		for i, r := range v.idToRune {
			v.runeToID[r] = i
		}
		v.sorted = true
	}
	return slices.Clone(v.idToRune)
}
