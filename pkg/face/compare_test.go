package face

import (
	"math"
	"testing"
)

func seqEmbedding(n int, scale float32) Embedding {
	emb := make(Embedding, n)
	for i := range emb {
		emb[i] = scale * float32(i+1)
	}
	return emb
}

func TestCosineSimilarity(t *testing.T) {
	a := seqEmbedding(EmbeddingDim, 1)

	tests := []struct {
		name string
		a, b Embedding
		want float64
	}{
		{
			name: "identical vectors",
			a:    a,
			b:    a,
			want: 1.0,
		},
		{
			name: "parallel vectors",
			a:    a,
			b:    seqEmbedding(EmbeddingDim, 2),
			want: 1.0,
		},
		{
			name: "orthogonal vectors",
			a:    Embedding{1, 0},
			b:    Embedding{0, 1},
			want: 0.0,
		},
		{
			name: "opposite vectors",
			a:    Embedding{1, 2},
			b:    Embedding{-1, -2},
			want: -1.0,
		},
		{
			name: "length mismatch",
			a:    a,
			b:    seqEmbedding(128, 1),
			want: 0.0,
		},
		{
			name: "zero vector",
			a:    Embedding{0, 0, 0},
			b:    Embedding{1, 2, 3},
			want: 0.0,
		},
		{
			name: "empty vectors",
			a:    Embedding{},
			b:    Embedding{},
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEuclideanDistance(t *testing.T) {
	a := seqEmbedding(EmbeddingDim, 1)

	if got := EuclideanDistance(a, a); got != 0 {
		t.Errorf("distance to self = %v, want 0", got)
	}

	if got := EuclideanDistance(a, seqEmbedding(64, 1)); !math.IsInf(got, 1) {
		t.Errorf("distance for length mismatch = %v, want +Inf", got)
	}

	// 3-4-5 triangle
	got := EuclideanDistance(Embedding{0, 0}, Embedding{3, 4})
	if math.Abs(got-5) > 1e-9 {
		t.Errorf("distance = %v, want 5", got)
	}
}

func TestIsSameFace(t *testing.T) {
	a := seqEmbedding(EmbeddingDim, 1)

	if !IsSameFace(a, a, DefaultSimilarityThreshold) {
		t.Error("identical embeddings should match at the default threshold")
	}
	if IsSameFace(Embedding{1, 0}, Embedding{0, 1}, DefaultSimilarityThreshold) {
		t.Error("orthogonal embeddings should not match")
	}
}

func TestBestSimilarity(t *testing.T) {
	e := seqEmbedding(EmbeddingDim, 1)

	if got := BestSimilarity(e, nil); got != 0 {
		t.Errorf("best over empty set = %v, want 0", got)
	}
	if got := BestSimilarity(e, []Embedding{e}); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("best over self = %v, want 1", got)
	}

	set := []Embedding{
		{1, 0, 0},
		{0, 1, 0},
	}
	probe := Embedding{1, 0.1, 0}
	best := BestSimilarity(probe, set)
	if best <= CosineSimilarity(probe, set[1]) {
		t.Errorf("best %v should exceed similarity to worse candidate", best)
	}
}

func TestIsSameFaceMultiple(t *testing.T) {
	e := seqEmbedding(EmbeddingDim, 1)

	if IsSameFaceMultiple(e, nil, DefaultSimilarityThreshold) {
		t.Error("empty set should never match")
	}
	if !IsSameFaceMultiple(e, []Embedding{{1, 0}, e}, DefaultSimilarityThreshold) {
		t.Error("set containing the probe should match")
	}
}

func TestAverageEmbedding(t *testing.T) {
	if got := AverageEmbedding(nil); got != nil {
		t.Errorf("average of empty set = %v, want nil", got)
	}

	single := Embedding{1, 2, 3}
	if got := AverageEmbedding([]Embedding{single}); &got[0] != &single[0] {
		// single element is returned as-is
		t.Error("average of one embedding should be that embedding")
	}

	avg := AverageEmbedding([]Embedding{
		{0, 2, 4},
		{2, 4, 6},
	})
	want := Embedding{1, 3, 5}
	for i := range want {
		if avg[i] != want[i] {
			t.Errorf("avg[%d] = %v, want %v", i, avg[i], want[i])
		}
	}
}

func TestAverageEmbeddingMixedLengths(t *testing.T) {
	// A legacy record can hold a short vector next to full-length ones;
	// averaging must not panic and keeps the first embedding's length.
	short := Embedding{0.1, 0.2, 0.3}
	full := seqEmbedding(EmbeddingDim, 1)

	avg := AverageEmbedding([]Embedding{short, full})
	if len(avg) != len(short) {
		t.Fatalf("average length = %d, want %d", len(avg), len(short))
	}
	for i := range avg {
		want := (short[i] + full[i]) / 2
		if avg[i] != want {
			t.Errorf("avg[%d] = %v, want %v", i, avg[i], want)
		}
	}

	avg = AverageEmbedding([]Embedding{full, short})
	if len(avg) != EmbeddingDim {
		t.Fatalf("average length = %d, want %d", len(avg), EmbeddingDim)
	}
	// Elements past the short vector's length still average over the
	// whole set size.
	if want := full[EmbeddingDim-1] / 2; avg[EmbeddingDim-1] != want {
		t.Errorf("avg[last] = %v, want %v", avg[EmbeddingDim-1], want)
	}
}
