package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// FakeProvider is a deterministic bag-of-words provider for tests. Texts that
// share words get similar vectors; Set pins an exact vector for a text.
type FakeProvider struct {
	dim int

	mu        sync.Mutex
	vectors   map[string][]float32
	err       error
	failTimes int
	calls     int
}

// NewFakeProvider returns a FakeProvider producing dim-length unit vectors.
func NewFakeProvider(dim int) *FakeProvider {
	return &FakeProvider{dim: dim, vectors: make(map[string][]float32)}
}

// Set pins the vector returned for text.
func (f *FakeProvider) Set(text string, v []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[text] = v
}

// SetErr makes every call fail with err until cleared with nil.
func (f *FakeProvider) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	f.failTimes = 0
}

// FailNext makes the next n calls fail with err.
func (f *FakeProvider) FailNext(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	f.failTimes = n
}

// Calls returns the number of provider calls made.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Vector returns the vector the provider produces for text.
func (f *FakeProvider) Vector(text string) []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vector(text)
}

func (f *FakeProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *FakeProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.vector(text), nil
}

func (f *FakeProvider) Dimension() int { return f.dim }

func (f *FakeProvider) Close() error { return nil }

func (f *FakeProvider) fail() error {
	f.calls++
	if f.err == nil {
		return nil
	}
	err := f.err
	if f.failTimes > 0 {
		f.failTimes--
		if f.failTimes == 0 {
			f.err = nil
		}
	}
	return err
}

func (f *FakeProvider) vector(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return append([]float32(nil), v...)
	}
	v := make([]float32, f.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(f.dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}
