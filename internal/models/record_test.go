package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordSetKeepsOrder(t *testing.T) {
	r := NewRecord("id", "7", "name", "Bridge")
	r.Set("id", "8")
	r.Set("site", "8")

	assert.Equal(t, []string{"id", "name", "site"}, r.Keys())
	v, ok := r.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "8", v)
}

func TestRecordRename(t *testing.T) {
	r := NewRecord("name", "Bridge", "id", "7", "lat", "40.7")
	r.Rename("id", "site")

	assert.Equal(t, []string{"name", "site", "lat"}, r.Keys())
	v, _ := r.Get("site")
	assert.Equal(t, "7", v)
	_, ok := r.Get("id")
	assert.False(t, ok)
}

func TestRecordRenameOntoExisting(t *testing.T) {
	r := NewRecord("site", "old", "id", "7")
	r.Rename("id", "site")

	assert.Equal(t, []string{"site"}, r.Keys())
	v, _ := r.Get("site")
	assert.Equal(t, "7", v)
}

func TestRecordDelete(t *testing.T) {
	r := NewRecord("a", "1", "b", "2", "c", "3")
	r.Delete("b")
	r.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, r.Keys())
	assert.Equal(t, 2, r.Len())
	_, ok := r.Get("b")
	assert.False(t, ok)
}

func TestRecordCloneIsIndependent(t *testing.T) {
	r := NewRecord("id", "7", "name", "Bridge", "photos", "[]")
	c := r.Clone()

	c.Delete("photos")
	c.Rename("id", "site")
	c.Set("name", "Pier")

	assert.Equal(t, []string{"id", "name", "photos"}, r.Keys())
	for _, k := range r.Keys() {
		_, ok := r.Get(k)
		assert.True(t, ok, k)
	}
	v, _ := r.Get("name")
	assert.Equal(t, "Bridge", v)
	assert.Equal(t, []string{"site", "name"}, c.Keys())
}

func TestColumnsUnion(t *testing.T) {
	cols := Columns([]Record{
		NewRecord("date", "x", "counts", "1"),
		NewRecord("date", "y", "status", "0"),
		NewRecord("counts", "2", "site", "7"),
	})
	assert.Equal(t, []string{"date", "counts", "status", "site"}, cols)
	assert.Empty(t, Columns(nil))
}

func TestParseStep(t *testing.T) {
	for _, s := range []string{"15m", "day", "month", "year"} {
		step, err := ParseStep(s)
		assert.NoError(t, err)
		assert.Equal(t, Step(s), step)
	}

	_, err := ParseStep("1h")
	assert.EqualError(t, err, "invalid step: 1h")
}

func TestAuthTokenRedacted(t *testing.T) {
	tok := AuthToken{Value: "secret-token"}
	assert.Equal(t, "Bearer secret-token", tok.Header())
	assert.NotContains(t, tok.String(), "secret-token")
}
