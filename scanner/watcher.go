package scanner

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Watcher polls the announcement log and delivers matches to a callback.
// Delivery is at-least-once: the watermark advances to the last scanned
// block, so an entry sitting exactly on a window boundary can be
// delivered twice. Consumers needing exactly-once must dedupe by tx hash.
type Watcher struct {
	stop chan struct{}
	done chan struct{}
}

// WatchAnnouncements starts a polling loop from fromBlock. The callback
// runs on the watcher's goroutine; a slow callback delays the next poll.
// Stop the watcher via the returned handle; cancellation takes effect
// between poll iterations, an in-flight fetch is not aborted.
func WatchAnnouncements(reader ChainReader, announcer common.Address,
	viewingPriv *btcec.PrivateKey, spendingPub *btcec.PublicKey,
	fromBlock uint64, interval time.Duration, logger zerolog.Logger,
	callback func(Payment)) *Watcher {

	w := &Watcher{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run(reader, announcer, viewingPriv, spendingPub, fromBlock, interval, logger, callback)
	return w
}

// Stop terminates the polling loop and waits for it to exit.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Watcher) run(reader ChainReader, announcer common.Address,
	viewingPriv *btcec.PrivateKey, spendingPub *btcec.PublicKey,
	watermark uint64, interval time.Duration, logger zerolog.Logger,
	callback func(Payment)) {

	defer close(w.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
		}

		ctx := context.Background()
		head, err := reader.BlockNumber(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("head lookup failed, will retry")
			continue
		}
		if head < watermark {
			continue
		}
		payments, err := ScanAnnouncements(ctx, reader, announcer, viewingPriv, spendingPub, watermark, head)
		if err != nil {
			logger.Warn().Err(err).
				Uint64("from", watermark).Uint64("to", head).
				Msg("announcement scan failed, will retry")
			continue
		}
		for _, p := range payments {
			logger.Debug().
				Str("stealth", p.StealthAddress.Hex()).
				Str("tx", p.TxHash.Hex()).
				Msg("announcement matched")
			callback(p)
		}
		// advance to the scanned head, never below it; the head block
		// itself is re-scanned next round (at-least-once)
		watermark = head
	}
}
