// SPDX-License-Identifier: MIT

package menu

import (
	"html/template"

	"github.com/streamkitchen/kettle/catalog"
)

// Public API.

type (
	// Page model for the menu template.
	menuData struct {
		Items  []catalog.Item
		Events []catalog.Event
	}
)

// Private API.

// The overlay page carries its own websocket client; the endpoint placeholder is
// substituted at render time because the page is otherwise static.
const wsEndpointPlaceholder = "WS_ENDPOINT"

var menuTemplate = template.Must(template.New("menu").Parse(menuTemplateText))
