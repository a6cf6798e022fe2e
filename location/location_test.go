package location_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/deep-rent/locus/location"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		str   string
		depth int
	}{
		{"/", "/", 0},
		{"/admin", "/admin", 1},
		{"/admin/", "/admin", 1},
		{"/admin/users/42", "/admin/users/42", 3},
		{"/a b/c", "/a b/c", 2},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := location.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.str, p.String())
			assert.Equal(t, tt.depth, p.Depth())
			assert.False(t, p.IsZero())
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	deep := strings.Repeat("/x", location.MaxDepth+1)
	for _, in := range []string{
		"",
		"admin",
		"//",
		"/admin//users",
		"/admin/./users",
		"/admin/..",
		"/tab\there",
		deep,
	} {
		t.Run(in, func(t *testing.T) {
			_, err := location.Parse(in)
			assert.ErrorIs(t, err, location.ErrMalformedPath)
		})
	}
}

func TestMustParse(t *testing.T) {
	assert.Panics(t, func() { location.MustParse("nope") })
	assert.NotPanics(t, func() { location.MustParse("/yes") })
}

func TestPath_Zero(t *testing.T) {
	var p location.Path
	assert.True(t, p.IsZero())
	assert.Equal(t, "", p.String())
	assert.Zero(t, p.Depth())
	assert.True(t, p.Parent().IsZero())
	assert.Empty(t, slices.Collect(p.Ancestors()))
}

func TestPath_Parent(t *testing.T) {
	p := location.MustParse("/admin/users/42")
	assert.Equal(t, "/admin/users", p.Parent().String())
	assert.Equal(t, "/", location.MustParse("/admin").Parent().String())
	assert.Equal(t, location.Root, location.Root.Parent())
}

func TestPath_Ancestors(t *testing.T) {
	var got []string
	for a := range location.MustParse("/admin/users/42").Ancestors() {
		got = append(got, a.String())
	}
	assert.Equal(t, []string{"/admin/users/42", "/admin/users", "/admin", "/"}, got)
}

func TestPath_Segments(t *testing.T) {
	p := location.MustParse("/a/b")
	segs := p.Segments()
	assert.Equal(t, []string{"a", "b"}, segs)
	segs[0] = "z"
	assert.Equal(t, "/a/b", p.String())
	assert.Equal(t, []string{"a", "b"}, p.Segments())
}

func TestMatch(t *testing.T) {
	admin := location.MustParse("/admin")

	tests := []struct {
		name      string
		predicate location.Path
		requested location.Path
		tier      int
		ok        bool
	}{
		{"equal", admin, location.MustParse("/admin"), 1, true},
		{"child", admin, location.MustParse("/admin/users"), 1, true},
		{"grandchild", admin, location.MustParse("/admin/users/42"), 1, true},
		{"deeper predicate", location.MustParse("/admin/users"), location.MustParse("/admin/users/42"), 2, true},
		{"root matches all", location.Root, location.MustParse("/public"), 0, true},
		{"sibling", admin, location.MustParse("/public"), 0, false},
		{"string prefix only", admin, location.MustParse("/adm"), 0, false},
		{"longer segment", location.MustParse("/adm"), admin, 0, false},
		{"ancestor request", location.MustParse("/admin/users"), admin, 0, false},
		{"absent request", admin, location.Path{}, 0, false},
		{"absent predicate", location.Path{}, admin, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, ok := location.Match(tt.predicate, tt.requested)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.tier, tier)
			assert.Equal(t, tt.ok, tt.predicate.Contains(tt.requested))
		})
	}
}
