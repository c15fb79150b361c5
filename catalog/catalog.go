// SPDX-License-Identifier: MIT

package catalog

import (
	"strings"
)

func (i Item) Kind() TargetKind   { return KindItem }
func (i Item) TargetID() string   { return i.ID }
func (i Item) TargetName() string { return i.Name }
func (i Item) Price() int64       { return i.Cost }

func (e Event) Kind() TargetKind   { return KindEvent }
func (e Event) TargetID() string   { return e.ID }
func (e Event) TargetName() string { return e.Name }
func (e Event) Price() int64       { return e.Cost }

// TargetKey uniquely identifies a target across kinds, for open-pool dedup.
func TargetKey(t Target) string {
	return string(t.Kind()) + ":" + t.TargetID()
}

// FindItem matches by name first, then by alias, case insensitively.
func (c *Catalog) FindItem(name string) (Item, bool) {
	for _, item := range c.Items {
		if strings.EqualFold(item.Name, name) {
			return item, true
		}
	}
	for _, item := range c.Items {
		for _, alias := range item.Aliases {
			if strings.EqualFold(alias, name) {
				return item, true
			}
		}
	}

	return Item{}, false
}

func (c *Catalog) FindEvent(name string) (Event, bool) {
	for _, event := range c.Events {
		if strings.EqualFold(event.Name, name) {
			return event, true
		}
	}
	for _, event := range c.Events {
		for _, alias := range event.Aliases {
			if strings.EqualFold(alias, name) {
				return event, true
			}
		}
	}

	return Event{}, false
}
