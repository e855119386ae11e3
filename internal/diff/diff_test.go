package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLines(t *testing.T) {
	tests := []struct {
		name string
		old  []string
		new  []string
		want []Hunk[string]
	}{
		{
			name: "identical",
			old:  []string{"a", "b"},
			new:  []string{"a", "b"},
			want: nil,
		},
		{
			name: "both empty",
			want: nil,
		},
		{
			name: "append",
			old:  []string{"a"},
			new:  []string{"a", "b"},
			want: []Hunk[string]{{OldStart: 1, NewStart: 1, NewCount: 1, Added: []string{"b"}}},
		},
		{
			name: "replace middle",
			old:  []string{"a", "b", "c"},
			new:  []string{"a", "x", "c"},
			want: []Hunk[string]{{OldStart: 1, OldCount: 1, NewStart: 1, NewCount: 1, Removed: []string{"b"}, Added: []string{"x"}}},
		},
		{
			name: "delete everything",
			old:  []string{"a", "b"},
			want: []Hunk[string]{{OldStart: 0, OldCount: 2, NewStart: 0, Removed: []string{"a", "b"}}},
		},
		{
			name: "two separate edits",
			old:  []string{"a", "b", "c", "d"},
			new:  []string{"z", "b", "c"},
			want: []Hunk[string]{
				{OldStart: 0, OldCount: 1, NewStart: 0, NewCount: 1, Removed: []string{"a"}, Added: []string{"z"}},
				{OldStart: 3, OldCount: 1, NewStart: 3, Removed: []string{"d"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Lines(tt.old, tt.new))
		})
	}
}

func TestApply_RoundTrip(t *testing.T) {
	cases := [][2]string{
		{"", ""},
		{"", "a\nb\n"},
		{"a\nb\n", ""},
		{"a\nb\nc\n", "a\nc\nd\n"},
		{"one\ntwo\nthree\nfour\nfive\n", "zero\ntwo\nthree\n3.5\nfive\nsix\n"},
		{"x\nx\nx\ny\n", "y\nx\nx\n"},
		{"same\n", "same\n"},
		{"a\nb", "a\nb\n"},
		{"a\nb\n", "a\nb"},
		{"no newline", ""},
		{"\n\n", "\n"},
	}

	for _, c := range cases {
		old := SplitLines([]byte(c[0]))
		new := SplitLines([]byte(c[1]))
		assert.Equal(t, c[0], strings.Join(old, ""))

		got, err := Apply(old, Lines(old, new))
		require.NoError(t, err)
		assert.Equal(t, c[1], strings.Join(got, ""), "%q -> %q", c[0], c[1])
	}
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(nil))
	assert.Equal(t, []string{"a\n", "b"}, SplitLines([]byte("a\nb")))
	assert.Equal(t, []string{"a\n", "b\n"}, SplitLines([]byte("a\nb\n")))
	assert.Equal(t, []string{"\n"}, SplitLines([]byte("\n")))
}

func TestApply_Bytes(t *testing.T) {
	old := []byte("kitten")
	new := []byte("sitting")

	got, err := Apply(old, Lines(old, new))
	require.NoError(t, err)
	assert.Equal(t, new, got)
}

func TestApply_Mismatch(t *testing.T) {
	hunks := Lines([]string{"a", "b"}, []string{"a"})
	_, err := Apply([]string{"a", "c"}, hunks)
	assert.Error(t, err)

	_, err = Apply([]string{"a"}, hunks)
	assert.Error(t, err)
}

func TestEngine_Diff(t *testing.T) {
	engine := NewEngine(1)

	t.Run("no changes", func(t *testing.T) {
		result := engine.Diff([]byte("a\nb\n"), []byte("a\nb\n"))
		assert.True(t, result.Empty())
		assert.Empty(t, result.Format())
	})

	t.Run("context and stats", func(t *testing.T) {
		result := engine.Diff([]byte("a\nb\nc\nd\n"), []byte("a\nB\nc\nd\n"))
		require.Len(t, result.Hunks, 1)
		assert.Equal(t, 1, result.Stats.Additions)
		assert.Equal(t, 1, result.Stats.Deletions)
		assert.Equal(t, 2, result.Stats.Changes)
		assert.Equal(t, "@@ -1,3 +1,3 @@\n  a\n- b\n+ B\n  c\n", result.Format())
	})

	t.Run("nearby edits share a hunk", func(t *testing.T) {
		result := engine.Diff([]byte("1\n2\n3\n4\n"), []byte("x\n2\n3\ny\n"))
		assert.Len(t, result.Hunks, 1)
	})

	t.Run("distant edits split", func(t *testing.T) {
		result := engine.Diff([]byte("1\n2\n3\n4\n5\n6\n"), []byte("x\n2\n3\n4\n5\ny\n"))
		assert.Len(t, result.Hunks, 2)
	})

	t.Run("trailing newline added", func(t *testing.T) {
		result := NewEngine(3).Diff([]byte("a\nb"), []byte("a\nb\n"))
		require.False(t, result.Empty())
		assert.Equal(t, 1, result.Stats.Additions)
		assert.Equal(t, 1, result.Stats.Deletions)
		assert.Equal(t, "@@ -1,2 +1,2 @@\n  a\n- b\n\\ No newline at end of file\n+ b\n", result.Format())
	})

	t.Run("unterminated context", func(t *testing.T) {
		result := engine.Diff([]byte("a\nz"), []byte("b\nz"))
		require.Len(t, result.Hunks, 1)
		last := result.Hunks[0].Lines[len(result.Hunks[0].Lines)-1]
		assert.Equal(t, Context, last.Type)
		assert.True(t, last.NoNewline)
	})

	t.Run("new file", func(t *testing.T) {
		result := engine.Diff(nil, []byte("hello\n"))
		assert.Equal(t, "@@ -0,0 +1 @@\n+ hello\n", result.Format())
	})
}
