package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"PriceLens/internal/dom"
	"PriceLens/internal/loop/looptest"
	"PriceLens/internal/model"
)

type recorder struct {
	batches [][]*html.Node
}

func (r *recorder) onBatch(b []*html.Node) { r.batches = append(r.batches, b) }

func setup(t *testing.T) (*dom.Document, *looptest.Manual, *recorder, *Watcher) {
	t.Helper()
	d, err := dom.ParseString(`<html><body><div id="list"><span id="s">Price 10 €</span></div></body></html>`)
	require.NoError(t, err)
	clock := looptest.NewManual()
	rec := &recorder{}
	w := New(d, clock, rec.onBatch)
	return d, clock, rec, w
}

func TestWatcher_CoalescesWithinWindow(t *testing.T) {
	d, clock, rec, w := setup(t)
	w.Start()

	var added []*html.Node
	for i := 0; i < 5; i++ {
		n := d.CreateElement("div")
		d.AppendChild(d.Body(), n)
		added = append(added, n)
		clock.Advance(50 * time.Millisecond)
	}
	span := dom.ByID(d.Root(), "s")
	d.SetData(span.FirstChild, "Price 12 €")

	assert.Empty(t, rec.batches)
	assert.Equal(t, 1, clock.Pending(), "only one flush may be scheduled")

	clock.Advance(DefaultThrottle)
	require.Len(t, rec.batches, 1)
	assert.Equal(t, append(added, span), rec.batches[0])
	assert.Equal(t, 0, w.Pending())
}

func TestWatcher_FlushIsNotAccelerated(t *testing.T) {
	d, clock, rec, w := setup(t)
	w.Start()

	d.AppendChild(d.Body(), d.CreateElement("div"))
	clock.Advance(400 * time.Millisecond)
	d.AppendChild(d.Body(), d.CreateElement("div"))
	clock.Advance(99 * time.Millisecond)
	assert.Empty(t, rec.batches)

	clock.Advance(time.Millisecond)
	require.Len(t, rec.batches, 1)
	assert.Len(t, rec.batches[0], 2)

	// A later burst opens a new window.
	d.AppendChild(d.Body(), d.CreateElement("p"))
	clock.Advance(DefaultThrottle)
	assert.Len(t, rec.batches, 2)
}

func TestWatcher_DeduplicatesElements(t *testing.T) {
	d, clock, rec, w := setup(t)
	w.Start()

	span := dom.ByID(d.Root(), "s")
	d.SetData(span.FirstChild, "Price 11 €")
	d.SetData(span.FirstChild, "Price 12 €")
	clock.Advance(DefaultThrottle)

	require.Len(t, rec.batches, 1)
	assert.Equal(t, []*html.Node{span}, rec.batches[0])
}

func TestWatcher_SkipsExcludedAndOwnNodes(t *testing.T) {
	d, clock, rec, w := setup(t)
	w.Start()

	d.AppendChild(d.Body(), d.CreateElement("script"))
	d.AppendChild(d.Body(), d.CreateElement("style"))
	d.AppendChild(d.Body(), d.CreateElement("iframe"))

	badge := d.CreateElement("div")
	d.SetAttr(badge, model.AttrIgnore, "")
	d.AppendChild(d.Body(), badge)

	inner := d.CreateElement("span")
	d.AppendChild(badge, inner)

	d.AppendChild(d.Body(), d.CreateText("loose text"))

	clock.Advance(DefaultThrottle)
	assert.Empty(t, rec.batches)
	assert.Equal(t, 0, clock.Pending(), "nothing should be scheduled for skipped nodes")
}

func TestWatcher_CustomThrottle(t *testing.T) {
	d, err := dom.ParseString(`<html><body></body></html>`)
	require.NoError(t, err)
	clock := looptest.NewManual()
	rec := &recorder{}
	w := New(d, clock, rec.onBatch, WithThrottle(100*time.Millisecond))
	w.Start()

	d.AppendChild(d.Body(), d.CreateElement("div"))
	clock.Advance(100 * time.Millisecond)
	assert.Len(t, rec.batches, 1)
}

func TestWatcher_StopCancelsFlush(t *testing.T) {
	d, clock, rec, w := setup(t)
	w.Start()
	assert.True(t, w.Observing())

	d.AppendChild(d.Body(), d.CreateElement("div"))
	assert.Equal(t, 1, w.Pending())

	w.Stop()
	assert.False(t, w.Observing())
	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, 0, clock.Pending())

	clock.Advance(time.Second)
	d.AppendChild(d.Body(), d.CreateElement("div"))
	clock.Advance(time.Second)
	assert.Empty(t, rec.batches)
}

func TestWatcher_StartIdempotentAndStopSafe(t *testing.T) {
	d, clock, rec, w := setup(t)
	w.Stop() // never started

	w.Start()
	w.Start()

	d.AppendChild(d.Body(), d.CreateElement("div"))
	clock.Advance(DefaultThrottle)
	require.Len(t, rec.batches, 1)
	assert.Len(t, rec.batches[0], 1, "double Start must not double-observe")

	w.Stop()
	w.Stop()
}
