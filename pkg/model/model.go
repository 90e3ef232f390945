package model

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/joelsearcy/charlm-go/pkg/tokenizer"
)

const (
	// FixedSeed is the seed used for reproducible runs
	FixedSeed = 20

	// Overshoot is how far past the requested length generation may run.
	// Generation continues while the text has at most textLength+Overshoot
	// characters, so a full run ends at textLength+Overshoot+1.
	Overshoot = 5
)

var (
	// ErrInvalidWindowLength is returned for a window length below 1
	ErrInvalidWindowLength = errors.New("model: window length must be at least 1")

	// ErrNilRandomSource is returned when no random source is supplied
	ErrNilRandomSource = errors.New("model: random source is nil")

	// ErrNotFinalized is returned by Generate when counts were collected
	// but Finalize has not run since
	ErrNotFinalized = errors.New("model: probabilities not finalized")
)

// RandomSource supplies uniform draws in [0, 1). *rand.Rand satisfies it.
// Draws mutate the source, so it must not be shared across goroutines.
type RandomSource interface {
	Float64() float64
}

// Model maps each context window to the distribution of characters that
// followed it in the training corpus
type Model struct {
	windowLength int
	dists        map[string]*Distribution
	rng          RandomSource
	finalized    bool
}

// New creates an empty model with the given window length and random source
func New(windowLength int, rng RandomSource) (*Model, error) {
	if windowLength < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindowLength, windowLength)
	}
	if rng == nil {
		return nil, ErrNilRandomSource
	}
	return &Model{
		windowLength: windowLength,
		dists:        make(map[string]*Distribution),
		rng:          rng,
		finalized:    true,
	}, nil
}

// NewSeeded creates a model whose generated text is reproducible for a seed
func NewSeeded(windowLength int, seed uint64) (*Model, error) {
	return New(windowLength, rand.New(rand.NewPCG(seed, seed)))
}

// NewRandom creates a model seeded from the runtime entropy source
func NewRandom(windowLength int) (*Model, error) {
	return New(windowLength, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// WindowLength returns the configured context length
func (m *Model) WindowLength() int {
	return m.windowLength
}

// Len returns the number of distinct windows observed
func (m *Model) Len() int {
	return len(m.dists)
}

// Lookup returns the distribution for window, if any
func (m *Model) Lookup(window string) (*Distribution, bool) {
	d, ok := m.dists[window]
	return d, ok
}

// Windows returns all observed windows in sorted order
func (m *Model) Windows() []string {
	windows := make([]string, 0, len(m.dists))
	for w := range m.dists {
		windows = append(windows, w)
	}
	slices.Sort(windows)
	return windows
}

// Train reads characters from r until io.EOF and counts, for every window,
// the characters that follow it. A stream shorter than the window length
// adds nothing. Counts accumulate across calls; Finalize must be run before
// the next Generate.
func (m *Model) Train(r io.RuneReader) error {
	window := tokenizer.NewWindow(m.windowLength)
	for {
		c, _, err := r.ReadRune()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading corpus: %w", err)
		}
		if window.Fill(c) {
			continue
		}

		key := window.String()
		d, ok := m.dists[key]
		if !ok {
			d = NewDistribution()
			m.dists[key] = d
		}
		d.Observe(c)
		m.finalized = false
		window.Slide(c)
	}
}

// Finalize computes probabilities and cumulative probabilities for every
// distribution from the collected counts
func (m *Model) Finalize() {
	for _, d := range m.dists {
		d.Finalize()
	}
	m.finalized = true
}

// Generation is the outcome of Extend
type Generation struct {
	Text string

	// UnseenWindow is set when generation stopped before the length bound
	// because the trailing window was never seen during training.
	UnseenWindow bool
}

// Generate extends initialText one sampled character at a time.
//
// If initialText is shorter than the window length it is returned as is.
// Otherwise characters are appended while the text has at most
// textLength+Overshoot characters; generation stops early, returning the
// text so far, when the trailing window was never seen during training.
func (m *Model) Generate(initialText string, textLength int) (string, error) {
	g, err := m.Extend(initialText, textLength)
	return g.Text, err
}

// Extend is Generate, also reporting why generation stopped
func (m *Model) Extend(initialText string, textLength int) (Generation, error) {
	if !m.finalized {
		return Generation{}, ErrNotFinalized
	}
	text := []rune(initialText)
	if len(text) < m.windowLength {
		return Generation{Text: initialText}, nil
	}
	// len(text) >= 0, so subtracting cannot wrap for any textLength.
	for len(text)-Overshoot <= textLength {
		d, ok := m.dists[tokenizer.Trailing(text, m.windowLength)]
		if !ok {
			return Generation{Text: string(text), UnseenWindow: true}, nil
		}
		text = append(text, Sample(d, m.rng.Float64()))
	}
	return Generation{Text: string(text)}, nil
}

// Stats summarizes the size of a trained model
type Stats struct {
	Windows      int    // distinct context windows
	Records      int    // distinct (window, successor) pairs
	Observations int    // total counted transitions
	Vocabulary   int    // distinct successor characters
	Alphabet     string // the successor characters, sorted
}

// Stats returns size statistics for the model
func (m *Model) Stats() Stats {
	vocab := tokenizer.NewVocabulary()
	stats := Stats{Windows: len(m.dists)}
	for _, d := range m.dists {
		stats.Records += d.Len()
		for _, r := range d.records {
			stats.Observations += r.Count
			vocab.Add(r.Char)
		}
	}
	stats.Vocabulary = vocab.Size()
	stats.Alphabet = string(vocab.Runes())
	return stats
}

// WriteTo writes one "window : distribution" line per window, in sorted
// window order
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for _, window := range m.Windows() {
		n, err := fmt.Fprintf(w, "%s : %s\n", window, m.dists[window])
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// String returns the model dump produced by WriteTo
func (m *Model) String() string {
	var builder strings.Builder
	m.WriteTo(&builder)
	return builder.String()
}
