// SPDX-License-Identifier: MIT

package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamkitchen/kettle/catalog"
)

func TestMenuRendersCatalog(t *testing.T) {
	t.Parallel()
	page := string(Menu(
		[]catalog.Item{
			{Name: "zombie", ID: "npc:3", Aliases: []string{"zed"}, Cost: 10, MaxBuys: 10},
			{Name: "king slime", ID: "npc:50", Cost: 300, Pooling: true},
		},
		[]catalog.Event{
			{Name: "blood moon", ID: "event:bloodmoon", Cost: 500},
		},
	))

	assert.Contains(t, page, "<h4>zombie</h4>")
	assert.Contains(t, page, "Aliases: zed")
	assert.Contains(t, page, "10 credits per order")
	assert.Contains(t, page, "Max of 10 per order")
	assert.Contains(t, page, "<h4>king slime</h4>")
	assert.Contains(t, page, "300 credits in total needed to spawn")
	assert.Contains(t, page, "<h4>blood moon</h4>")
	assert.Contains(t, page, "500 credits in total needed to start")
}

func TestOverlayPageBindsEndpoint(t *testing.T) {
	t.Parallel()
	page := string(OverlayPage("localhost:7770"))
	assert.Contains(t, page, `const wsDest = "ws://localhost:7770"`)
	assert.NotContains(t, page, wsEndpointPlaceholder)
}

func TestRedirectPageReflectsFragment(t *testing.T) {
	t.Parallel()
	assert.Contains(t, string(RedirectPage()), "access_token")
}
