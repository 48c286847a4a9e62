package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testDocs() []*Document {
	mk := func(id string, f Fields) *Document {
		nf, _ := normalizeFields(f)
		return &Document{ID: id, Path: "c/" + id, Fields: nf}
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []*Document{
		mk("a", Fields{"createdAt": base, "tagIds": []string{"t1"}, "n": 3}),
		mk("b", Fields{"createdAt": base.Add(2 * time.Hour), "tagIds": []string{"t1", "t2"}, "n": 1}),
		mk("c", Fields{"createdAt": base.Add(time.Hour), "tagIds": []string{}, "n": 2}),
		mk("d", Fields{"tagIds": []string{"t2"}}),
	}
}

func ids(docs []*Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestQuery_Apply(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{
			name:  "no clauses returns everything by id",
			query: NewQuery("c"),
			want:  []string{"a", "b", "c", "d"},
		},
		{
			name:  "order desc excludes docs without the field",
			query: NewQuery("c").OrderBy("createdAt", Desc),
			want:  []string{"b", "c", "a"},
		},
		{
			name:  "order asc by number",
			query: NewQuery("c").OrderBy("n", Asc),
			want:  []string{"b", "c", "a"},
		},
		{
			name:  "array contains",
			query: NewQuery("c").Where("tagIds", OpArrayContains, "t2"),
			want:  []string{"b", "d"},
		},
		{
			name:  "time comparison uses instants",
			query: NewQuery("c").Where("createdAt", OpLessOrEqual, cutoff),
			want:  []string{"a", "c"},
		},
		{
			name:  "strict greater",
			query: NewQuery("c").Where("createdAt", OpGreater, cutoff),
			want:  []string{"b"},
		},
		{
			name:  "equality on number",
			query: NewQuery("c").Where("n", OpEqual, 2),
			want:  []string{"c"},
		},
		{
			name:  "mismatched types never match",
			query: NewQuery("c").Where("n", OpLess, "zzz"),
			want:  []string{},
		},
		{
			name:  "limit after ordering",
			query: NewQuery("c").OrderBy("createdAt", Desc).Limit(2),
			want:  []string{"b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ids(tt.query.apply(testDocs())))
		})
	}
}

func TestQuery_BuildersDoNotAlias(t *testing.T) {
	t.Parallel()

	base := NewQuery("c").Where("n", OpGreater, 0)
	q1 := base.Where("n", OpLess, 2)
	q2 := base.Where("n", OpLess, 4)

	assert.Equal(t, []string{"b"}, ids(q1.apply(testDocs())))
	assert.Equal(t, []string{"a", "b", "c"}, ids(q2.apply(testDocs())))
	assert.Len(t, base.filters, 1)
}

func TestCompareValues_RFC3339WithDifferentOffsets(t *testing.T) {
	t.Parallel()

	c, ok := compareValues("2026-01-01T10:00:00+02:00", "2026-01-01T09:00:00Z")
	assert.True(t, ok)
	assert.Equal(t, -1, c)
}
