// Package viewstate keeps per-view local mirrors of ledger state. A mirror
// is only ever replaced by a fresh query result; writes never touch it
// directly. Submitted writes sit in the outbox as a provisional overlay
// until reconciliation confirms or rolls them back.
package viewstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chainvoice/chainvoice-go/internal/ledger"
	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/pkg/principal"
)

// ErrorSuperseded marks a refetch whose result arrived after a newer
// request for the same view started. The result is discarded, never merged.
var ErrorSuperseded = errors.New("refetch superseded by a newer request")

type FetchFn func(ctx context.Context) (interface{}, error)

// View is one UI view's local mirror.
type View struct {
	mu         sync.Mutex
	generation uint64
	value      interface{}
	fetchedAt  time.Time
	populated  bool
	fetch      FetchFn
}

func NewView(fetch FetchFn) *View {
	return &View{fetch: fetch}
}

// Refetch re-derives the mirror from the ledger. Concurrent refetches obey
// last-request-wins: only the newest request's result is kept.
func (v *View) Refetch(ctx context.Context) (interface{}, error) {
	v.mu.Lock()
	v.generation++
	generation := v.generation
	fetch := v.fetch
	v.mu.Unlock()

	value, err := fetch(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()

	if generation != v.generation {
		return nil, ErrorSuperseded
	}
	if err != nil {
		// a failed refetch leaves the previous mirror intact
		return nil, err
	}

	v.value = value
	v.fetchedAt = time.Now().UTC()
	v.populated = true
	return value, nil
}

// Current returns the mirror as of its last successful fetch. The caller
// must not treat it as authoritative beyond that time.
func (v *View) Current() (interface{}, time.Time, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.fetchedAt, v.populated
}

// Invalidate drops the mirror and cancels the claim of any in-flight fetch.
func (v *View) Invalidate() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.generation++
	v.value = nil
	v.populated = false
}

// StatusFn reports finalization status for a txid; injected so reconciling
// is testable without a node.
type StatusFn func(ctx context.Context, txID string) (ledger.TxStatus, error)

// Cache owns the registered views and the pending-transaction overlay.
type Cache struct {
	mu     sync.Mutex
	views  map[string]*View
	outbox *Outbox
	status StatusFn
}

func NewCache(outbox *Outbox, status StatusFn) *Cache {
	return &Cache{
		views:  map[string]*View{},
		outbox: outbox,
		status: status,
	}
}

// Register adds a named view; registering an existing name replaces its
// fetch and drops the old mirror.
func (c *Cache) Register(name string, fetch FetchFn) *View {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := NewView(fetch)
	c.views[name] = view
	return view
}

func (c *Cache) View(name string) (*View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	view, ok := c.views[name]
	return view, ok
}

// RecordPending files a just-broadcast write into the overlay.
func (c *Cache) RecordPending(pending *model.PendingTx) error {
	return c.outbox.Put(pending)
}

// Overlay returns the provisional writes to layer over a sender's views.
func (c *Cache) Overlay(sender principal.Principal) ([]model.PendingTx, error) {
	all, err := c.outbox.For(sender)
	if err != nil {
		return nil, err
	}
	overlay := make([]model.PendingTx, 0, len(all))
	for _, pending := range all {
		if pending.Status == model.PendingTxSubmitted {
			overlay = append(overlay, pending)
		}
	}
	return overlay, nil
}

// Reconcile polls finalization status for every submitted entry. Confirmed
// entries trigger a refetch of all views and leave the overlay; failed
// entries are marked so the UI can surface the rollback. Transport errors
// leave entries untouched for the next pass.
func (c *Cache) Reconcile(ctx context.Context) error {
	pending, err := c.outbox.Submitted()
	if err != nil {
		return err
	}

	var refetch bool
	for _, entry := range pending {
		status, err := c.status(ctx, entry.TxID)
		if err != nil {
			continue
		}

		switch status {
		case ledger.TxStatusSuccess:
			if err := c.outbox.SetStatus(entry.TxID, model.PendingTxConfirmed); err != nil {
				return err
			}
			if err := c.outbox.Delete(entry.TxID); err != nil {
				return err
			}
			refetch = true
		case ledger.TxStatusFailed:
			if err := c.outbox.SetStatus(entry.TxID, model.PendingTxFailed); err != nil {
				return err
			}
		}
	}

	if !refetch {
		return nil
	}

	c.mu.Lock()
	views := make([]*View, 0, len(c.views))
	for _, view := range c.views {
		views = append(views, view)
	}
	c.mu.Unlock()

	for _, view := range views {
		if _, err := view.Refetch(ctx); err != nil && !errors.Is(err, ErrorSuperseded) {
			return fmt.Errorf("refetching after confirmation: %w", err)
		}
	}
	return nil
}

// Dismiss removes a failed entry once the UI has surfaced it.
func (c *Cache) Dismiss(txID string) error {
	return c.outbox.Delete(txID)
}

func (c *Cache) Close() error {
	return c.outbox.Close()
}
