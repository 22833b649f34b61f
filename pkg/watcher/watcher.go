// Package watcher polls the marketplace for Deliver events until every
// watched request is answered, the timeout elapses, or the context is
// cancelled. Whatever arrived by then is always returned, so callers can
// use partial results.
package watcher

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/valory-xyz/mech-sdk-go/pkg/model"
)

// DeliveryTimeoutError reports that the watch window closed before all
// requests were delivered. Partial holds everything that did arrive,
// keyed by request ID; Missing lists the request IDs still outstanding.
type DeliveryTimeoutError struct {
	Missing []string
	Partial map[string]model.DeliveryResult
	Window  time.Duration
}

func (e *DeliveryTimeoutError) Error() string {
	return fmt.Sprintf("delivery watch timed out after %s: %d of %d outstanding",
		e.Window, len(e.Missing), len(e.Missing)+len(e.Partial))
}

// LogSource is the chain surface the watcher polls. Satisfied by
// *blockchain.EVMClient.
type LogSource interface {
	LatestBlock(ctx context.Context) (uint64, error)
	DeliveryLogs(ctx context.Context, marketplace common.Address, from, to uint64) ([]model.DeliveryResult, error)
}

// Watcher observes Deliver events for one submission. The block cursor
// only moves forward, so a block range is never scanned twice and
// re-emitted events cannot overwrite an already recorded delivery.
type Watcher struct {
	source       LogSource
	marketplace  common.Address
	cursor       uint64
	pollInterval time.Duration
}

// NewWatcher starts scanning at fromBlock, normally the block the request
// transaction was included in.
func NewWatcher(source LogSource, marketplace common.Address, fromBlock uint64, pollInterval time.Duration) *Watcher {
	return &Watcher{
		source:       source,
		marketplace:  marketplace,
		cursor:       fromBlock,
		pollInterval: pollInterval,
	}
}

// Watch blocks until every request in ids has a delivery, the timeout
// elapses, or ctx is cancelled. The returned map is keyed by decimal
// request ID and is populated on every return path; on timeout the error
// is a *DeliveryTimeoutError carrying the same partial map. The first
// delivery seen for a request wins; later ones for the same ID are
// ignored. An empty ids slice returns immediately without polling.
func (w *Watcher) Watch(ctx context.Context, ids []*big.Int, timeout time.Duration) (map[string]model.DeliveryResult, error) {
	found := make(map[string]model.DeliveryResult, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		pending[id.String()] = struct{}{}
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// First scan happens immediately; the ticker paces the rest.
	for {
		if done := w.poll(ctx, pending, found); done {
			return found, nil
		}

		select {
		case <-ctx.Done():
			return found, ctx.Err()
		case <-deadline.C:
			missing := make([]string, 0, len(pending))
			for id := range pending {
				missing = append(missing, id)
			}
			zap.L().Warn("Delivery watch timed out",
				zap.Int("delivered", len(found)),
				zap.Strings("missing", missing))
			return found, &DeliveryTimeoutError{Missing: missing, Partial: found, Window: timeout}
		case <-ticker.C:
		}
	}
}

// poll scans the blocks since the cursor and reports whether every
// pending request is now delivered. Chain-read failures are logged and
// skipped; the next tick retries the same range.
func (w *Watcher) poll(ctx context.Context, pending map[string]struct{}, found map[string]model.DeliveryResult) bool {
	latest, err := w.source.LatestBlock(ctx)
	if err != nil {
		zap.L().Warn("Failed to read latest block, will retry", zap.Error(err))
		return false
	}
	if latest < w.cursor {
		return false
	}

	deliveries, err := w.source.DeliveryLogs(ctx, w.marketplace, w.cursor, latest)
	if err != nil {
		zap.L().Warn("Failed to scan delivery logs, will retry",
			zap.Uint64("from", w.cursor),
			zap.Uint64("to", latest),
			zap.Error(err))
		return false
	}
	w.cursor = latest + 1

	for _, d := range deliveries {
		key := d.RequestID.String()
		if _, watched := pending[key]; !watched {
			continue
		}
		delete(pending, key)
		found[key] = d
		zap.L().Info("Request delivered",
			zap.String("request_id", key),
			zap.String("mech", d.Mech.Hex()),
			zap.String("result_id", d.ResultID))
	}
	return len(pending) == 0
}
