package hierarchy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sporthub/internal/entity"
	"sporthub/pkg/log"
)

type fakeFetcher struct {
	doc entity.HierarchyDoc
	err error
	n   int
}

func (f *fakeFetcher) FetchHierarchy(ctx context.Context) (entity.HierarchyDoc, error) {
	f.n++
	return f.doc, f.err
}

func sampleDoc() entity.HierarchyDoc {
	return entity.HierarchyDoc{Sports: []entity.Sport{
		{ID: "s1", Name: "Football", Region: []entity.Region{
			{ID: "r1", Name: "Europe", Competition: []entity.Competition{
				{ID: "c1", Name: "Premier League"},
			}},
		}},
	}}
}

func TestGetFetchesOnFirstCall(t *testing.T) {
	f := &fakeFetcher{doc: sampleDoc()}
	c := New(f, nil, log.New("test"))

	doc, fromCache := c.Get(context.Background(), false)

	require.Equal(t, 1, f.n)
	assert.False(t, fromCache)
	assert.Len(t, doc.Sports, 1)
}

func TestGetServesFromCacheWithinTTL(t *testing.T) {
	f := &fakeFetcher{doc: sampleDoc()}
	c := New(f, nil, log.New("test"))

	c.Get(context.Background(), false)
	_, fromCache := c.Get(context.Background(), false)

	assert.Equal(t, 1, f.n)
	assert.True(t, fromCache)
}

func TestGetForceRefreshBypassesCache(t *testing.T) {
	f := &fakeFetcher{doc: sampleDoc()}
	c := New(f, nil, log.New("test"))

	c.Get(context.Background(), false)
	c.Get(context.Background(), true)

	assert.Equal(t, 2, f.n)
}

func TestGetKeepsStaleDocOnFetchError(t *testing.T) {
	f := &fakeFetcher{doc: sampleDoc()}
	c := New(f, nil, log.New("test"))
	c.Get(context.Background(), false)

	f.err = errors.New("upstream unavailable")
	doc, _ := c.Get(context.Background(), true)

	assert.Len(t, doc.Sports, 1)
	assert.Equal(t, "Football", doc.Sports[0].Name)
}

func TestIndexReflectsCurrentDocument(t *testing.T) {
	f := &fakeFetcher{doc: sampleDoc()}
	c := New(f, nil, log.New("test"))
	c.Get(context.Background(), false)

	idx := c.Index()

	assert.Equal(t, "Football", idx.Sports["s1"])
	assert.Equal(t, "Europe", idx.Regions["r1"])
	assert.Equal(t, "Premier League", idx.Competitions["c1"])
}
