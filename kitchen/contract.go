// SPDX-License-Identifier: MIT

package kitchen

import (
	"sync"
	"time"

	"github.com/streamkitchen/kettle/catalog"
	"github.com/streamkitchen/kettle/ledger"
	"github.com/streamkitchen/kettle/overlay"
)

// Public API.

type (
	// Executor is the injected game-action capability. A false return means the action
	// did not happen and no balance may be charged for it.
	Executor interface {
		TryExecute(itemOrEventID string, quantity int64, initiatorLabel, targetLabel string, silent bool) bool
	}

	// ChatMessage is one inbound line from the chat platform, already attributed.
	ChatMessage struct {
		Chatter      string
		Text         string
		IsSubscriber bool
		IsModerator  bool
	}

	Service struct {
		cfg      *cfg
		ledger   *ledger.Ledger
		overlay  *overlay.Coordinator
		executor Executor

		cooldownsMx sync.Mutex
		cooldowns   map[string]time.Time

		replyMx     sync.Mutex
		replyWindow time.Time
		replyCount  int
	}
)

// Private API.

const (
	commandPrefix = "!t "

	chatterCooldown = 5 * time.Second

	replyWindowPeriod     = 30 * time.Second
	replyThresholdDefault = 95
	replyThresholdBalance = 80

	maxWaveTarget = 100
)

type (
	cfg struct {
		Kitchen struct {
			catalog.Catalog           `mapstructure:",squash" yaml:",inline"`
			ConsoleChatter            string  `yaml:"consoleChatter" mapstructure:"consoleChatter"`
			SubscriberPriceMultiplier float64 `yaml:"subscriberPriceMultiplier" mapstructure:"subscriberPriceMultiplier"`
			ModAbuse                  bool    `yaml:"modAbuse" mapstructure:"modAbuse"`
		} `yaml:"kitchen" mapstructure:"kitchen"`
		Overlay struct {
			WSPort   uint16 `yaml:"wsPort" mapstructure:"wsPort"`
			HTTPPort uint16 `yaml:"httpPort" mapstructure:"httpPort"`
		} `yaml:"overlay" mapstructure:"overlay"`
	}
)
