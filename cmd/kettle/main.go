// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	appcfg "github.com/streamkitchen/kettle/config"
	"github.com/streamkitchen/kettle/kitchen"
	"github.com/streamkitchen/kettle/ledger"
	"github.com/streamkitchen/kettle/log"
	"github.com/streamkitchen/kettle/overlay"
	"github.com/streamkitchen/kettle/storage"
	"github.com/streamkitchen/kettle/wsserver"
)

const (
	applicationYAMLKey = "kettle"

	shutdownFlushTimeout = 10 * time.Second
)

type (
	cfg struct {
		World *int64 `yaml:"world" mapstructure:"world"`
	}

	// loggingExecutor stands in for the game-side spawn hook when the binary runs standalone.
	loggingExecutor struct{}
)

func (*loggingExecutor) TryExecute(itemOrEventID string, quantity int64, initiatorLabel, targetLabel string, silent bool) bool {
	log.Info("executing order", "id", itemOrEventID, "quantity", quantity, "initiator", initiatorLabel, "target", targetLabel, "silent", silent)

	return true
}

func main() {
	var config cfg
	appcfg.MustLoadFromKey(applicationYAMLKey, &config)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db := storage.MustConnect(ctx, applicationYAMLKey)
	defer db.Close()

	ldgr := ledger.New(db, applicationYAMLKey)
	svc := kitchen.New(ldgr, new(loggingExecutor), applicationYAMLKey)
	srv := wsserver.New(svc, applicationYAMLKey)
	coordinator := overlay.New(srv)
	svc.AttachOverlay(coordinator)

	if err := ldgr.SetWorld(ctx, config.World); err != nil {
		log.Panic(errors.Wrapf(err, "failed to load balances for world %v", config.World))
	}
	go ldgr.StartIncome(ctx)
	go func() {
		<-ctx.Done()
		coordinator.Disconnected()
	}()

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Error(errors.Wrap(err, "overlay server stopped"))
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
	defer flushCancel()
	if err := ldgr.Flush(flushCtx); err != nil {
		log.Error(errors.Wrap(err, "failed to flush balances on shutdown"))
	}
}
