package embed

import (
	"reflect"
	"testing"
)

func TestFitDimension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		vec  []float32
		dim  int
		want []float32
	}{
		{
			name: "exact_fit_unchanged",
			vec:  []float32{1, 2, 3},
			dim:  3,
			want: []float32{1, 2, 3},
		},
		{
			name: "long_vector_truncated",
			vec:  []float32{1, 2, 3, 4},
			dim:  2,
			want: []float32{1, 2},
		},
		{
			name: "short_vector_zero_padded",
			vec:  []float32{1},
			dim:  3,
			want: []float32{1, 0, 0},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := FitDimension(tc.vec, tc.dim)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
