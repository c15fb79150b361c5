// SPDX-License-Identifier: MIT

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCatalog() *Catalog {
	return &Catalog{
		Items: []Item{
			{Name: "zombie", ID: "npc:3", Aliases: []string{"zed", "walker"}, Cost: 10, MaxBuys: 10},
			{Name: "king slime", ID: "npc:50", Cost: 300, Pooling: true},
		},
		Events: []Event{
			{Name: "blood moon", ID: "event:bloodmoon", Aliases: []string{"bm"}, Cost: 500},
		},
	}
}

func TestFindItem(t *testing.T) {
	t.Parallel()
	c := testCatalog()

	item, found := c.FindItem("zombie")
	assert.True(t, found)
	assert.Equal(t, "npc:3", item.ID)

	item, found = c.FindItem("ZOMBIE")
	assert.True(t, found)
	assert.Equal(t, "npc:3", item.ID)

	item, found = c.FindItem("walker")
	assert.True(t, found)
	assert.Equal(t, "npc:3", item.ID)

	_, found = c.FindItem("dragon")
	assert.False(t, found)
}

func TestFindEvent(t *testing.T) {
	t.Parallel()
	c := testCatalog()

	event, found := c.FindEvent("BM")
	assert.True(t, found)
	assert.Equal(t, "event:bloodmoon", event.ID)

	_, found = c.FindEvent("solar eclipse")
	assert.False(t, found)
}

func TestTargetKey(t *testing.T) {
	t.Parallel()
	c := testCatalog()

	item, _ := c.FindItem("king slime")
	event, _ := c.FindEvent("blood moon")
	assert.Equal(t, "item:npc:50", TargetKey(item))
	assert.Equal(t, "event:event:bloodmoon", TargetKey(event))
	assert.NotEqual(t, TargetKey(item), TargetKey(event))

	assert.EqualValues(t, 300, item.Price())
	assert.Equal(t, "king slime", item.TargetName())
	assert.Equal(t, KindItem, item.Kind())
	assert.Equal(t, KindEvent, event.Kind())
}
