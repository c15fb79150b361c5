// SPDX-License-Identifier: MIT

package kitchen

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/streamkitchen/kettle/catalog"
	appcfg "github.com/streamkitchen/kettle/config"
	"github.com/streamkitchen/kettle/ledger"
	"github.com/streamkitchen/kettle/overlay"
)

func New(ldgr *ledger.Ledger, executor Executor, applicationYAMLKey string) *Service {
	var config cfg
	appcfg.MustLoadFromKey(applicationYAMLKey, &config)
	if config.Kitchen.SubscriberPriceMultiplier <= 0 {
		config.Kitchen.SubscriberPriceMultiplier = 1
	}
	if config.Kitchen.ConsoleChatter == "" {
		config.Kitchen.ConsoleChatter = "console"
	}

	return &Service{
		cfg:       &config,
		ledger:    ldgr,
		executor:  executor,
		cooldowns: make(map[string]time.Time),
	}
}

// AttachOverlay wires the broadcast coordinator. Must happen before any traffic.
func (s *Service) AttachOverlay(coordinator *overlay.Coordinator) {
	s.overlay = coordinator
}

// HandleChat parses and executes one chat line. The returned string, if any,
// is the reply to send back to the initiating chatter.
func (s *Service) HandleChat(msg ChatMessage) string {
	chatter := ledger.Normalize(msg.Chatter)
	s.ledger.AddChatter(chatter)
	if !strings.HasPrefix(msg.Text, commandPrefix) {
		return ""
	}
	if s.onCooldown(chatter) {
		return ""
	}
	args := strings.Fields(msg.Text)
	if len(args) < 2 {
		return ""
	}
	switch args[1] {
	case "buy":
		return s.handleBuy(chatter, msg.IsSubscriber, msg.IsModerator, args)
	case "pool":
		return s.handlePool(chatter, args)
	case "event":
		return s.handleEvent(chatter, args)
	case "wave":
		return s.handleWave(chatter, msg.IsSubscriber, args)
	case "balance", "bal":
		return s.reply(replyThresholdBalance, fmt.Sprintf("You have %v kitchen credits.", s.ledger.GetBalance(chatter)))
	case "give":
		return s.handleGive(chatter, args)
	}

	return ""
}

// !t buy <item> <quantity> [customer]
func (s *Service) handleBuy(chatter string, isSubscriber, isModerator bool, args []string) string {
	if len(args) < 4 || len(args) > 5 {
		return ""
	}
	quantity, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil || quantity <= 0 {
		return ""
	}
	item, found := s.cfg.Kitchen.FindItem(args[2])
	if !found {
		return s.reply(replyThresholdDefault, fmt.Sprintf("Unknown item. You have %v kitchen credits remaining.", s.ledger.GetBalance(chatter)))
	}
	var customer string
	if len(args) == 5 {
		customer = args[4]
	}
	if item.Pooling {
		return s.contributeToPool(chatter, item, quantity, customer)
	}
	if quantity > item.MaxBuys {
		quantity = item.MaxBuys
	}
	price := s.price(item.Cost*quantity, isSubscriber)
	if price < 0 { // Overflow protection.
		return ""
	}
	if s.cfg.Kitchen.ModAbuse && isModerator {
		s.executor.TryExecute(item.ID, quantity, chatter, customer, false)

		return ""
	}
	if s.ledger.GetBalance(chatter) < price {
		return s.notEnoughCredits(chatter)
	}
	if s.executor.TryExecute(item.ID, quantity, chatter, customer, false) {
		s.ledger.ModBalance(chatter, -price)
	}

	return ""
}

// !t pool <index> <amount>
func (s *Service) handlePool(chatter string, args []string) string {
	if len(args) != 4 {
		return ""
	}
	poolIndex, idxErr := strconv.ParseInt(args[2], 10, 64)
	amount, amtErr := strconv.ParseInt(args[3], 10, 64)
	if idxErr != nil || amtErr != nil || amount <= 0 {
		return ""
	}
	pool := s.ledger.FindPool(poolIndex)
	if pool == nil {
		return ""
	}
	if amount > s.ledger.GetBalance(chatter) {
		return s.notEnoughCredits(chatter)
	}
	contributed := s.ledger.ContributePool(chatter, amount, pool.Index())
	if pool.TargetReached() && pool.ClaimSettlement() {
		return s.settlePool(pool)
	}
	s.overlay.PoolUpdated(pool, chatter, contributed)

	return ""
}

// !t event <event> <amount>
func (s *Service) handleEvent(chatter string, args []string) string {
	if len(args) != 4 {
		return ""
	}
	amount, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil || amount <= 0 {
		return ""
	}
	event, found := s.cfg.Kitchen.FindEvent(args[2])
	if !found {
		return ""
	}

	return s.contributeToPool(chatter, event, amount, "")
}

// Shared pool flow for pooling items and events: open on first contribution,
// clamp through the pool rule, settle when the target is reached.
func (s *Service) contributeToPool(chatter string, target catalog.Target, amount int64, customer string) string {
	if amount > s.ledger.GetBalance(chatter) {
		return s.notEnoughCredits(chatter)
	}
	newPool := false
	pool := s.ledger.FindPoolByTarget(catalog.TargetKey(target))
	if pool == nil {
		pool = s.ledger.OpenPool(target, customer)
		newPool = true
		s.overlay.PoolStarted(pool)
	}
	contributed := s.ledger.ContributePool(chatter, amount, pool.Index())
	if pool.TargetReached() && pool.ClaimSettlement() {
		return s.settlePool(pool)
	}
	s.overlay.PoolUpdated(pool, chatter, contributed)
	if newPool {
		return s.reply(replyThresholdDefault,
			fmt.Sprintf("Started a new %v with id %v, you now have %v kitchen credits remaining. Contribution: %v/%v.",
				pool.Name(), pool.Index(), s.ledger.GetBalance(chatter), contributed, pool.TargetValue()))
	}

	return ""
}

// settlePool runs the funded pool's action outside every lock and resolves payment only
// on success. The caller must hold the pool's settlement claim, so concurrent contributions
// that all reach the target execute and debit exactly once. On failure the claim is released
// and the pool stays active, escrow intact, retryable by any further command that reaches it.
// The overlay poolEnd packet goes out once, on the first time the target is reached,
// regardless of how many retries the settlement takes.
func (s *Service) settlePool(pool *ledger.Pool) string {
	if pool.MarkEnded() {
		s.overlay.PoolEnded(pool)
	}
	initiator := fmt.Sprintf("%v customers have", pool.Contributors())
	if s.executor.TryExecute(pool.Target().TargetID(), 1, initiator, pool.Customer(), false) {
		s.ledger.ResolvePoolPayment(pool)

		return ""
	}
	pool.ReleaseSettlement()

	return s.reply(replyThresholdDefault, fmt.Sprintf("%v is fully funded but the kitchen couldn't serve it right now, contributions are kept and it can be retried later.", pool.Name()))
}

// !t wave start <target> | !t wave buy <owner> <item> <quantity> | !t wave cancel
func (s *Service) handleWave(chatter string, isSubscriber bool, args []string) string {
	if len(args) < 3 || len(args) > 6 {
		return ""
	}
	switch args[2] {
	case "start":
		if len(args) != 4 {
			return ""
		}
		target, err := strconv.Atoi(args[3])
		if err != nil || target <= 0 || target >= maxWaveTarget {
			return ""
		}
		wave, err := s.ledger.OpenWave(chatter, target)
		if err != nil {
			return s.reply(replyThresholdDefault,
				fmt.Sprintf("You cannot start a wave when you have an existing wave in progress. You have %v kitchen credits remaining.", s.ledger.GetBalance(chatter)))
		}
		s.overlay.WaveStarted(wave)

		return s.reply(replyThresholdDefault,
			fmt.Sprintf("A new wave of size %v has been started. You have %v kitchen credits remaining. Chatters may use '!t wave buy %v <item_name> <amount>' to add to your wave.",
				target, s.ledger.GetBalance(chatter), wave.Chatter()))
	case "buy":
		if len(args) != 6 {
			return ""
		}

		return s.handleWaveBuy(chatter, isSubscriber, args)
	case "cancel":
		wave := s.ledger.CancelWave(chatter)
		if wave == nil {
			return ""
		}
		s.overlay.WaveEnded(wave.Chatter())

		return s.reply(replyThresholdDefault,
			fmt.Sprintf("Wave request cancelled, a total of %v credits has been refunded. You have %v kitchen credits remaining.",
				wave.TotalContributions(), s.ledger.GetBalance(chatter)))
	}

	return ""
}

func (s *Service) handleWaveBuy(chatter string, isSubscriber bool, args []string) string {
	quantity, err := strconv.ParseInt(args[5], 10, 64)
	if err != nil || quantity <= 0 {
		return ""
	}
	wave := s.ledger.FindWave(args[3])
	if wave == nil {
		return s.reply(replyThresholdDefault,
			fmt.Sprintf("Wave purchase failed. The player may not be starting a wave or invalid amount. You have %v kitchen credits remaining.", s.ledger.GetBalance(chatter)))
	}
	item, found := s.cfg.Kitchen.FindItem(args[4])
	if !found {
		return s.reply(replyThresholdDefault, fmt.Sprintf("Invalid item. You have %v kitchen credits remaining.", s.ledger.GetBalance(chatter)))
	}
	if quantity > item.MaxBuys {
		quantity = item.MaxBuys
	}
	price := s.price(item.Cost*quantity, isSubscriber)
	if price < 0 { // Overflow protection.
		return ""
	}
	if s.ledger.GetBalance(chatter) < price {
		return s.notEnoughCredits(chatter)
	}
	wave.AddContribution(chatter, price)
	if wave.AddMobs(item.ID, quantity) && wave.ClaimSettlement() {
		return s.settleWave(wave)
	}
	s.overlay.WaveUpdated(wave, chatter, quantity, item.Name)

	return ""
}

// settleWave bulk-executes the accumulated mobs outside every lock. The caller must hold
// the wave's settlement claim. The wave counts as served if at least one spawn succeeded;
// with zero successes the claim is released and the wave stays active, escrow intact, so a
// later buy can retry the whole batch.
func (s *Service) settleWave(wave *ledger.Wave) string {
	executed := 0
	for _, mobID := range wave.Mobs() {
		if s.executor.TryExecute(mobID, 1, "", "", true) {
			executed++
		}
	}
	if executed == 0 {
		wave.ReleaseSettlement()

		return s.reply(replyThresholdDefault,
			fmt.Sprintf("%v's wave is full but the kitchen couldn't serve it right now, contributions are kept and it can be retried later.", wave.Chatter()))
	}
	s.ledger.ResolveWavePayment(wave)
	s.overlay.WaveEnded(wave.Chatter())

	return s.reply(replyThresholdDefault, fmt.Sprintf("A wave of %v has been served for %v.", wave.MobCount(), wave.Chatter()))
}

// !t give <recipient> <amount>
func (s *Service) handleGive(chatter string, args []string) string {
	if len(args) != 4 {
		return ""
	}
	if err := s.ledger.Give(chatter, args[2], args[3]); err != nil {
		return s.reply(replyThresholdDefault,
			fmt.Sprintf("Failed to give credits. You have %v kitchen credits.", s.ledger.GetBalance(chatter)))
	}

	return s.reply(replyThresholdDefault,
		fmt.Sprintf("Sent %v credits to %v. You have %v kitchen credits remaining.", args[3], ledger.Normalize(args[2]), s.ledger.GetBalance(chatter)))
}

func (s *Service) price(base int64, isSubscriber bool) int64 {
	if isSubscriber {
		return int64(math.Floor(float64(base) * s.cfg.Kitchen.SubscriberPriceMultiplier))
	}

	return base
}

func (s *Service) notEnoughCredits(chatter string) string {
	return s.reply(replyThresholdDefault, fmt.Sprintf("Not enough credits! You have %v kitchen credits remaining.", s.ledger.GetBalance(chatter)))
}

func (s *Service) onCooldown(chatter string) bool {
	s.cooldownsMx.Lock()
	defer s.cooldownsMx.Unlock()
	now := time.Now()
	if expiry, found := s.cooldowns[chatter]; found && expiry.After(now) {
		return true
	}
	s.cooldowns[chatter] = now.Add(chatterCooldown)

	return false
}

// reply rate limits outbound chat messages inside a shared rolling window, so a burst of
// commands cannot flood the chat; dropped replies are dropped silently.
func (s *Service) reply(threshold int, text string) string {
	s.replyMx.Lock()
	defer s.replyMx.Unlock()
	now := time.Now()
	if s.replyWindow.IsZero() || s.replyWindow.Before(now) {
		s.replyWindow = now.Add(replyWindowPeriod)
		s.replyCount = 0
	}
	if s.replyCount >= threshold {
		return ""
	}
	s.replyCount++

	return text
}
