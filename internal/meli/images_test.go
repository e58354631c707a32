package meli_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/donaldgifford/meli-harvester/internal/meli"
)

func TestNormalizeImageURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty stays empty",
			input: "",
			want:  "",
		},
		{
			name:  "scheme upgraded for media host",
			input: "http://http2.mlstatic.com/D_NQ_NP_4X_123-MLA456-F.jpg",
			want:  "https://http2.mlstatic.com/D_NQ_NP_4X_123-MLA456-F.jpg",
		},
		{
			name:  "scheme kept for other hosts",
			input: "http://example.com/photo.png",
			want:  "http://example.com/photo.png",
		},
		{
			name:  "webp becomes jpg",
			input: "https://http2.mlstatic.com/D_NQ_NP_4X_123-MLA456-F.webp",
			want:  "https://http2.mlstatic.com/D_NQ_NP_4X_123-MLA456-F.jpg",
		},
		{
			name:  "2X upgraded to 4X",
			input: "https://http2.mlstatic.com/D_NQ_NP_2X_123-MLA456-F.jpg",
			want:  "https://http2.mlstatic.com/D_NQ_NP_4X_123-MLA456-F.jpg",
		},
		{
			name:  "4X inserted when no marker",
			input: "https://http2.mlstatic.com/D_NQ_NP_123-MLA456-F.jpg",
			want:  "https://http2.mlstatic.com/D_NQ_NP_4X_123-MLA456-F.jpg",
		},
		{
			name:  "initial view becomes frontal",
			input: "https://http2.mlstatic.com/D_NQ_NP_4X_123-MLA456-I.jpg",
			want:  "https://http2.mlstatic.com/D_NQ_NP_4X_123-MLA456-F.jpg",
		},
		{
			name:  "original view becomes frontal",
			input: "https://http2.mlstatic.com/D_NQ_NP_4X_123-MLA456-O.jpg",
			want:  "https://http2.mlstatic.com/D_NQ_NP_4X_123-MLA456-F.jpg",
		},
		{
			name:  "all rules combined",
			input: "http://http2.mlstatic.com/D_NQ_NP_2X_987-MLA111-O.webp",
			want:  "https://http2.mlstatic.com/D_NQ_NP_4X_987-MLA111-F.jpg",
		},
		{
			name:  "thumbnail without marker",
			input: "http://http2.mlstatic.com/D_NQ_NP_605126-MLA456-I.webp",
			want:  "https://http2.mlstatic.com/D_NQ_NP_4X_605126-MLA456-F.jpg",
		},
		{
			name:  "unrelated url passes through",
			input: "https://cdn.example.com/a/b/c.png",
			want:  "https://cdn.example.com/a/b/c.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := meli.NormalizeImageURL(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, meli.NormalizeImageURL(got), "normalizing twice must be stable")
			if strings.HasSuffix(tt.input, ".webp") {
				assert.True(t, strings.HasSuffix(got, ".jpg"))
			}
		})
	}
}
