// SPDX-License-Identifier: MIT

package catalog

// Public API.

type (
	// TargetKind discriminates what a pool is funding.
	TargetKind string

	// Target is the purchasable side of a pool: exactly one concrete kind backs it,
	// so "an item or an event, never both" holds structurally.
	Target interface {
		Kind() TargetKind
		TargetID() string
		TargetName() string
		Price() int64
	}

	// Item is a single purchasable catalog entry.
	Item struct {
		Name    string   `yaml:"name" mapstructure:"name"`
		ID      string   `yaml:"id" mapstructure:"id"`
		Aliases []string `yaml:"aliases" mapstructure:"aliases"`
		Cost    int64    `yaml:"price" mapstructure:"price"`
		MaxBuys int64    `yaml:"maxBuys" mapstructure:"maxBuys"`
		Pooling bool     `yaml:"pooling" mapstructure:"pooling"`
	}

	// Event is a purchasable world event, always pool funded.
	Event struct {
		Name    string   `yaml:"name" mapstructure:"name"`
		ID      string   `yaml:"id" mapstructure:"id"`
		Aliases []string `yaml:"aliases" mapstructure:"aliases"`
		Cost    int64    `yaml:"price" mapstructure:"price"`
	}

	Catalog struct {
		Items  []Item  `yaml:"items" mapstructure:"items"`
		Events []Event `yaml:"events" mapstructure:"events"`
	}
)

const (
	KindItem  TargetKind = "item"
	KindEvent TargetKind = "event"
)
