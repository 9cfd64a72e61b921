package compress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "collapses blank runs",
			input: "a\n\n\n\nb",
			want:  "a\n\nb",
		},
		{
			name:  "strips trailing whitespace",
			input: "a  \n\t\nb\t",
			want:  "a\n\nb",
		},
		{
			name:  "collapses separators",
			input: "a\n---\n---\n\n---\nb",
			want:  "a\n---\n\nb",
		},
		{
			name:  "keeps separators inside code",
			input: "```yaml\n---\n---\n```\n---",
			want:  "```yaml\n---\n---\n```\n---",
		},
		{
			name:  "collapses blank runs inside code",
			input: "```\nx\n\n\ny\n```",
			want:  "```\nx\n\ny\n```",
		},
		{
			name:  "keeps metadata verbatim",
			input: "---\nname: x  \n\n\n---\n---\nbody",
			want:  "---\nname: x  \n\n\n---\n---\nbody",
		},
		{
			name:  "keeps content",
			input: "## Title\n- item\n### Sub",
			want:  "## Title\n- item\n### Sub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compress(tt.input)
			assert.Equal(t, tt.want, res.Text)
		})
	}
}

func TestCompressCounts(t *testing.T) {
	res := Compress("a\n\n\n\nb\n")
	assert.Equal(t, 6, res.Before)
	assert.Equal(t, 4, res.After)
	assert.Equal(t, 2, res.Saved())
	assert.True(t, res.Changed("a\n\n\n\nb\n"))
}

func TestCompressIsIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"---\nname: x\n---\n\n\n---\n\n---\n## A  \n\n\n```\n---\n\n\n---\n```\n\n",
		"~~~\n## not a header\n\n\n~~~\n---\n---\n",
	}

	for _, input := range inputs {
		once := Compress(input)
		twice := Compress(once.Text)
		assert.Equal(t, once.Text, twice.Text)
		assert.Zero(t, twice.Saved())
		assert.False(t, twice.Changed(once.Text))
	}
}
