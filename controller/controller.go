// Package controller implements the sync controller state machine spec
// §4.5 describes: the disabled/idle/syncing/first-loading lifecycle,
// the per-cycle push→pull→persist algorithm, overlap suppression, and
// cooperative cancellation.
//
// Grounded on the teacher's SyncCoordinator (internal/sync/coordinator.go)
// for the concurrency idioms — atomic.Bool-gated overlap suppression,
// sync.WaitGroup-tracked background goroutines, panic recovery around
// every background call, a Shutdown(timeout) that waits on the
// WaitGroup with a timeout fallback — generalized from the teacher's two
// independent push/pull flags to one status field, since spec §4.5
// defines a single state machine rather than separate push/pull tracks.
// The per-cycle algorithm itself (push phase, then pull phase, applying
// results, advancing cursors) is grounded on backend/sync/manager.go's
// Sync()/push()/pull().
package controller

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dync/adapter"
	"dync/changelog"
	"dync/config"
	"dync/conflict"
	dyncerrors "dync/errors"
	"dync/eventbus"
	"dync/firstload"
	"dync/record"
	"dync/state"
	"dync/store"
)

// Status is one of the four states spec §4.5's transition table names.
type Status int

const (
	Disabled Status = iota
	Idle
	Syncing
	FirstLoading
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	case FirstLoading:
		return "first-loading"
	default:
		return "disabled"
	}
}

// ApiError is the last push/pull failure surfaced to the host (spec
// §6.2's state.apiError).
type ApiError struct {
	Op             string
	Table          string
	Err            error
	IsNetworkError bool
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("%s(%s): %v", e.Op, e.Table, e.Err)
}

// Snapshot is the host-facing state read spec §6.2 describes.
type Snapshot struct {
	Status         Status
	FirstLoadDone  map[string]bool
	LastPulled     map[string]int64
	PendingChanges int
	Conflicts      []conflict.Conflict
	ApiError       *ApiError
}

// Handle is returned by RequestSyncOnce and StartFirstLoad; Wait blocks
// until the cycle that the call was coalesced onto (or started)
// completes.
type Handle struct {
	done chan error
}

// Wait blocks until the cycle resolves and returns its error, if any.
func (h *Handle) Wait() error { return <-h.done }

// Controller is the engine's sync controller (spec §4.5, §6.2). Build
// one with New.
type Controller struct {
	storeH   store.Store
	adapterH adapter.Adapter
	log      *changelog.Log
	stateH   *state.Store
	resolver *conflict.Resolver
	bus      *eventbus.Bus
	tables   []string
	cfg      *config.Config

	// boolFields is cfg.BoolFields converted once, keyed by table, for
	// record.FromRemote's pull-side integer-boolean coercion (spec §4.2).
	boolFields map[string]record.BoolFields

	// mu guards the status/waiters/apiErr/lastPullAttempt/tickStop
	// bookkeeping that must change atomically together (the teacher's
	// coordinator only ever needed a single atomic.Bool per flow; ours
	// needs a status transition and a waiter list to move together, so a
	// mutex replaces the CompareAndSwap). It is not held across a cycle;
	// the push→pull→persist mutual exclusion is cycleMu or the store's
	// Locker (see lockCycle).
	mu              sync.Mutex
	status          Status
	waiters         []chan error
	apiErr          *ApiError
	lastPullAttempt map[string]time.Time
	tickStop        chan struct{}

	enabled atomic.Bool
	visible atomic.Bool

	wg sync.WaitGroup

	// cycleMu is the spec §5 fallback logical mutex, held for the whole
	// push→pull→persist cycle when storeH does not itself implement
	// store.Locker.
	cycleMu sync.Mutex
}

// New builds a Controller over store s and adapter a, synchronizing the
// named tables. cfg may be nil to accept every spec §6.2 default.
func New(s store.Store, a adapter.Adapter, tables []string, cfg *config.Config) (*Controller, error) {
	if cfg == nil {
		var err error
		cfg, err = config.New()
		if err != nil {
			return nil, err
		}
	}
	logger, err := changelog.Open(s, changelog.ReservedTable)
	if err != nil {
		return nil, fmt.Errorf("controller: open change log: %w", err)
	}
	stateH, err := state.Open(s)
	if err != nil {
		return nil, fmt.Errorf("controller: open state: %w", err)
	}
	boolFields := make(map[string]record.BoolFields, len(cfg.BoolFields))
	for table, fields := range cfg.BoolFields {
		boolFields[table] = record.NewBoolFields(fields...)
	}
	c := &Controller{
		storeH:          s,
		adapterH:        a,
		log:             logger,
		stateH:          stateH,
		resolver:        conflict.New(cfg.ConflictResolutionStrategy(), boolFields),
		bus:             eventbus.New(),
		tables:          append([]string(nil), tables...),
		cfg:             cfg,
		boolFields:      boolFields,
		status:          Disabled,
		lastPullAttempt: make(map[string]time.Time),
	}
	c.visible.Store(true)
	return c, nil
}

// Table returns the sync-aware store.Table handle for name (spec §6.1):
// every mutation through it enqueues a change-log entry and publishes a
// mutation event.
func (c *Controller) Table(name string) (store.Table, error) {
	raw, err := c.storeH.RawTable(name)
	if err != nil {
		return nil, err
	}
	return changelog.NewTable(name, raw, c.log, c.bus), nil
}

// Subscribe registers handler for mutation events on table (empty =
// every table), per spec §4.8/§6.2.
func (c *Controller) Subscribe(table string, handler eventbus.Handler) eventbus.Unsubscribe {
	return c.bus.Subscribe(table, handler)
}

// SetVisible pauses (false) or resumes (true) the periodic tick without
// touching an in-flight cycle (spec §4.5's visibility transition).
func (c *Controller) SetVisible(visible bool) { c.visible.Store(visible) }

// Enable starts (true) or cooperatively stops (false) the engine. Per
// spec §4.5/§5: disabling does not interrupt an in-flight cycle — the
// cycle's current remote call is allowed to return and have its result
// applied; the cycle loop itself checks c.enabled before starting its
// next step and halts there.
func (c *Controller) Enable(on bool) {
	if on {
		if !c.enabled.CompareAndSwap(false, true) {
			return
		}
		c.mu.Lock()
		if c.status == Disabled {
			c.status = Idle
		}
		stop := make(chan struct{})
		c.tickStop = stop
		c.mu.Unlock()

		c.wg.Add(1)
		go c.tickLoop(stop)
		return
	}

	if !c.enabled.CompareAndSwap(true, false) {
		return
	}
	c.mu.Lock()
	stop := c.tickStop
	c.tickStop = nil
	if c.status == Idle {
		c.status = Disabled
	}
	c.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// Shutdown disables the engine and waits for any in-flight cycle and the
// tick goroutine to exit, up to timeout (grounded on
// SyncCoordinator.Shutdown).
func (c *Controller) Shutdown(timeout time.Duration) error {
	c.Enable(false)
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("controller: shutdown timed out after %s", timeout)
	}
}

func (c *Controller) tickLoop(stop chan struct{}) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.cfg.Logger.Error("panic in tick loop: %v", r)
		}
	}()

	if c.cfg.SyncIntervalMs <= 0 {
		<-stop
		return
	}
	ticker := time.NewTicker(time.Duration(c.cfg.SyncIntervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.visible.Load() || !c.enabled.Load() {
				continue
			}
			c.maybeStartTick()
		}
	}
}

// maybeStartTick starts a cycle if idle, dropping the tick entirely
// otherwise (spec §4.5: "a periodic tick that fires during a cycle is
// dropped" — unlike requestSyncOnce, no waiter is registered).
func (c *Controller) maybeStartTick() {
	c.mu.Lock()
	if c.status != Idle {
		c.mu.Unlock()
		return
	}
	c.status = Syncing
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runCycleLoop(make(chan error, 1))
}

// RequestSyncOnce starts a cycle, or coalesces onto one already running,
// per spec §4.5's overlap suppression.
func (c *Controller) RequestSyncOnce() *Handle {
	ch := make(chan error, 1)
	c.mu.Lock()
	switch c.status {
	case Syncing, FirstLoading:
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		return &Handle{done: ch}
	case Disabled:
		c.mu.Unlock()
		ch <- fmt.Errorf("controller: sync is disabled")
		return &Handle{done: ch}
	}
	c.status = Syncing
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runCycleLoop(ch)
	return &Handle{done: ch}
}

// StartFirstLoad runs the first-load driver if any synced table is not
// yet firstLoadDone, or coalesces onto an already-running cycle (spec
// §4.5/§4.6).
func (c *Controller) StartFirstLoad(progress firstload.ProgressFunc) *Handle {
	ch := make(chan error, 1)
	c.mu.Lock()
	switch c.status {
	case Syncing, FirstLoading:
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()
		return &Handle{done: ch}
	case Disabled:
		c.mu.Unlock()
		ch <- fmt.Errorf("controller: cannot first-load while disabled")
		return &Handle{done: ch}
	}
	c.status = FirstLoading
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runFirstLoad(ch, progress)
	return &Handle{done: ch}
}

// SkipFirstLoad marks every synced table first-loaded without running
// the driver (spec §4.6: host-chosen skip).
func (c *Controller) SkipFirstLoad() error {
	st, err := c.stateH.Load()
	if err != nil {
		return err
	}
	st.SkipFirstLoad(c.tables)
	return c.stateH.Save(st)
}

func (c *Controller) runFirstLoad(ch chan error, progress firstload.ProgressFunc) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.cfg.Logger.Error("panic in first load: %v", r)
			c.finishCycle(fmt.Errorf("panic in first load: %v", r), ch)
		}
	}()
	unlock := c.lockCycle()
	driver := &firstload.Driver{
		Adapter:    c.adapterH,
		Store:      c.storeH,
		State:      c.stateH,
		Tables:     c.tables,
		Bus:        c.bus,
		BoolFields: c.cfg.BoolFields,
	}
	err := driver.Run(context.Background(), progress)
	unlock()
	c.finishCycle(err, ch)
}

func (c *Controller) runCycleLoop(ch chan error) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.cfg.Logger.Error("panic in sync cycle: %v", r)
			c.finishCycle(fmt.Errorf("panic in sync cycle: %v", r), ch)
		}
	}()
	err := c.runCycle(context.Background())
	c.finishCycle(err, ch)
}

// finishCycle returns the controller to idle (or disabled, if it was
// cancelled mid-cycle) and resolves every waiter coalesced onto this
// cycle with the same result.
func (c *Controller) finishCycle(err error, ch chan error) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	if c.enabled.Load() {
		c.status = Idle
	} else {
		c.status = Disabled
	}
	c.mu.Unlock()

	ch <- err
	for _, w := range waiters {
		w <- err
	}
}

// State returns the current host-facing snapshot (spec §6.2).
func (c *Controller) State() (Snapshot, error) {
	st, err := c.stateH.Load()
	if err != nil {
		return Snapshot{}, err
	}
	pending, err := c.log.Length()
	if err != nil {
		return Snapshot{}, err
	}
	c.mu.Lock()
	status := c.status
	apiErr := c.apiErr
	c.mu.Unlock()
	return Snapshot{
		Status:         status,
		FirstLoadDone:  st.FirstLoadDone,
		LastPulled:     st.LastPulled,
		PendingChanges: pending,
		Conflicts:      c.resolver.Conflicts(),
		ApiError:       apiErr,
	}, nil
}

// ResolveConflict implements spec §4.4/§6.2's resolveConflict(localId,
// preferLocal).
func (c *Controller) ResolveConflict(localID string, preferLocal bool) error {
	var table string
	for _, conf := range c.resolver.Conflicts() {
		if conf.LocalID == localID {
			table = conf.Table
			break
		}
	}
	if table == "" {
		return fmt.Errorf("controller: no open conflict for %s", localID)
	}
	delta, found := c.resolver.ResolveConflict(table, localID, preferLocal)
	if !found {
		return fmt.Errorf("controller: no open conflict for %s", localID)
	}
	if delta == nil {
		return nil
	}
	raw, err := c.storeH.RawTable(table)
	if err != nil {
		return err
	}
	if err := raw.Update(localID, delta); err != nil {
		return err
	}
	c.publish(table, localID, eventbus.Updated)
	return nil
}

func (c *Controller) publish(table, localID string, kind eventbus.Kind) {
	c.bus.Publish(eventbus.MutationEvent{Table: table, LocalID: localID, Kind: kind})
}

func (c *Controller) setApiError(e *ApiError) {
	c.mu.Lock()
	c.apiErr = e
	c.mu.Unlock()
	if e != nil {
		c.cfg.Logger.Error("%s(%s): %v", e.Op, e.Table, e.Err)
	}
}

// lockCycle takes the store's own Locker for the duration of a cycle if
// it offers one (an embedded SQL engine that is already single-threaded
// in-process), otherwise falls back to an internal mutex (spec §5).
func (c *Controller) lockCycle() func() {
	if locker, ok := c.storeH.(store.Locker); ok {
		locker.Lock()
		return locker.Unlock
	}
	c.cycleMu.Lock()
	return c.cycleMu.Unlock
}

// runCycle is the per-cycle algorithm of spec §4.5.
func (c *Controller) runCycle(ctx context.Context) error {
	unlock := c.lockCycle()
	defer unlock()

	c.setApiError(nil)

	st, err := c.stateH.Load()
	if err != nil {
		return err
	}

	// 1. Snapshot the change log head.
	head, err := c.log.Head(0)
	if err != nil {
		return err
	}

	// 2. Push phase.
	aborted, err := c.pushPhase(ctx, head)
	if err != nil {
		return err
	}

	// 3. Pull phase, gated on first-load completion for every synced
	// table (spec §4.6, §8 property 8: no list call until then) and on
	// the push phase not having aborted the whole cycle (batch mode); a
	// cycle disabled during the push phase stops here.
	if !aborted && c.enabled.Load() && st.AllTablesFirstLoaded(c.tables) {
		if err := c.pullPhase(ctx, st); err != nil {
			c.setApiError(&ApiError{Op: "pull", Err: err, IsNetworkError: dyncerrors.IsNetworkError(err)})
		}
	}

	// 5. Persist the state snapshot.
	return c.stateH.Save(st)
}

// pushPhase drains the change-log head in sequence. aborted is true when
// a batch-mode adapter hit an error and spec §4.5 step 2 requires the
// whole cycle to abort (no pull phase this cycle); err is non-nil only
// for unexpected local failures (store errors, not push-call failures,
// which are recorded via apiError instead).
func (c *Controller) pushPhase(ctx context.Context, head []changelog.Entry) (aborted bool, err error) {
	mode := c.adapterH.Mode()
	for _, entry := range head {
		if !c.enabled.Load() {
			return false, nil
		}
		item := buildPushItem(entry)
		results, callErr := c.adapterH.Push(ctx, []adapter.PushItem{item})
		if callErr != nil {
			c.setApiError(&ApiError{Op: "push", Table: entry.Table, Err: callErr, IsNetworkError: dyncerrors.IsNetworkError(callErr)})
			return mode == adapter.Batch, nil
		}
		result := results[0]
		switch {
		case result.Err != nil:
			c.setApiError(&ApiError{Op: "push", Table: entry.Table, Err: result.Err, IsNetworkError: dyncerrors.IsNetworkError(result.Err)})
			return mode == adapter.Batch, nil
		case result.NotFound:
			if err := c.handleMissingRemoteRecord(entry); err != nil {
				return false, err
			}
		default:
			if err := c.ack(entry, result); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

func buildPushItem(entry changelog.Entry) adapter.PushItem {
	item := adapter.PushItem{Table: entry.Table, LocalID: entry.LocalID, ID: entry.ID}
	switch entry.Kind {
	case changelog.Add:
		item.Action = adapter.ActionAdd
		item.Data = record.ToRemote(entry.Payload)
	case changelog.Update:
		item.Action = adapter.ActionUpdate
		item.Data = record.ToRemote(entry.Payload)
	case changelog.Remove:
		item.Action = adapter.ActionRemove
	}
	return item
}

func (c *Controller) ack(entry changelog.Entry, result adapter.PushResult) error {
	if err := c.log.Ack(entry, changelog.AckOutcome{ID: result.ID, UpdatedAt: result.UpdatedAt}); err != nil {
		return err
	}
	if entry.Kind == changelog.Add && c.cfg.OnAfterRemoteAdd != nil {
		raw, err := c.storeH.RawTable(entry.Table)
		if err == nil {
			if rec, found, _ := raw.Get(entry.LocalID); found {
				c.cfg.OnAfterRemoteAdd(entry.Table, rec)
			}
		}
	}
	return nil
}

// handleMissingRemoteRecord implements spec §4.7.
func (c *Controller) handleMissingRemoteRecord(entry changelog.Entry) error {
	raw, err := c.storeH.RawTable(entry.Table)
	if err != nil {
		return err
	}
	rec, found, err := raw.Get(entry.LocalID)
	if err != nil {
		return err
	}

	strategy := c.cfg.MissingRemoteRecordDuringUpdateStrategy
	switch strategy {
	case config.DeleteLocalRecord:
		if err := c.log.Ack(entry, changelog.AckOutcome{}); err != nil {
			return err
		}
		if found {
			if err := raw.Delete(entry.LocalID); err != nil {
				return err
			}
			c.publish(entry.Table, entry.LocalID, eventbus.Removed)
		}
	case config.Ignore:
		if err := c.log.Ack(entry, changelog.AckOutcome{}); err != nil {
			return err
		}
	default: // InsertRemoteRecord
		// Coalesce has no update→add transition (the operation is
		// rewritten, not merged), so the stale update is dropped first
		// and the add is enqueued fresh.
		if err := c.log.Ack(entry, changelog.AckOutcome{}); err != nil {
			return err
		}
		if found {
			if _, _, err := c.log.Enqueue(changelog.Entry{Table: entry.Table, LocalID: entry.LocalID, Kind: changelog.Add, Payload: rec}); err != nil {
				return err
			}
		}
	}

	if c.cfg.OnAfterMissingRemoteRecordDuringUpdate != nil {
		c.cfg.OnAfterMissingRemoteRecordDuringUpdate(strategy, rec)
	}
	return nil
}

// pullPhase implements spec §4.5 step 3: per-table rate limiting via
// ListExtraIntervalMs, applying returned records, advancing lastPulled.
func (c *Controller) pullPhase(ctx context.Context, st *state.State) error {
	mode := c.adapterH.Mode()
	now := time.Now()

	due := make([]string, 0, len(c.tables))
	since := make(map[string]int64, len(c.tables))
	for _, table := range c.tables {
		if mode != adapter.Batch {
			gapMs := c.adapterH.ListExtraIntervalMs(table)
			c.mu.Lock()
			last, seen := c.lastPullAttempt[table]
			c.mu.Unlock()
			if seen && gapMs > 0 && now.Sub(last) < time.Duration(gapMs)*time.Millisecond {
				continue
			}
		}
		due = append(due, table)
		since[table] = st.LastPulled[table]
	}
	if len(due) == 0 {
		return nil
	}

	data, err := c.adapterH.Pull(ctx, since)
	if err != nil {
		return err
	}

	c.mu.Lock()
	for _, table := range due {
		c.lastPullAttempt[table] = now
	}
	c.mu.Unlock()

	dueSet := make(map[string]bool, len(due))
	for _, t := range due {
		dueSet[t] = true
	}
	for table, records := range data {
		if !dueSet[table] {
			continue
		}
		if err := c.applyPulled(table, records, st); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) applyPulled(table string, records []record.Remote, st *state.State) error {
	raw, err := c.storeH.RawTable(table)
	if err != nil {
		return err
	}
	var maxUpdatedAt int64
	for _, remote := range records {
		if updatedAt, ok := toInt64(remote["updated_at"]); ok && updatedAt > maxUpdatedAt {
			maxUpdatedAt = updatedAt
		}

		localID, found, err := c.findLocalByRemoteID(raw, remote["id"])
		if err != nil {
			return err
		}

		if found {
			pending, hasPending, err := c.log.Pending(table, localID)
			if err != nil {
				return err
			}
			if hasPending && pending.Kind == changelog.Update {
				local, _, err := raw.Get(localID)
				if err != nil {
					return err
				}
				outcome := c.resolver.Resolve(table, localID, local, remote, pending)
				if outcome.Upsert != nil {
					if err := raw.Update(localID, outcome.Upsert); err != nil {
						return err
					}
					c.publish(table, localID, eventbus.Updated)
				}
				if outcome.DropLogEntry {
					if err := c.log.Ack(pending, changelog.AckOutcome{}); err != nil {
						return err
					}
				}
				continue
			}
		}

		if record.IsTombstone(remote) {
			if found {
				if err := raw.Delete(localID); err != nil {
					return err
				}
				c.publish(table, localID, eventbus.Removed)
			}
			continue
		}

		if found {
			updated := record.FromRemote(remote, localID, c.boolFields[table])
			if err := raw.Update(localID, updated); err != nil {
				return err
			}
			c.publish(table, localID, eventbus.Updated)
		} else {
			local := record.FromRemote(remote, "", c.boolFields[table])
			newID, err := raw.Add(local)
			if err != nil {
				return err
			}
			c.publish(table, newID, eventbus.Added)
		}
	}
	st.AdvanceLastPulled(table, maxUpdatedAt)
	return nil
}

func (c *Controller) findLocalByRemoteID(raw store.RawTable, remoteID any) (string, bool, error) {
	if remoteID == nil {
		return "", false, nil
	}
	row, found, err := raw.WhereField(store.IDField, store.Equals, remoteID).First()
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, nil
	}
	localID, _ := row[store.LocalIDField].(string)
	return localID, localID != "", nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
