// Package engine owns the parameter table and runs the synchronization state
// machine between local edits and the hardware. All mutation funnels through
// one goroutine: user intents, inbound MIDI, and query timeouts are serviced
// by a single select loop, so table writes and state transitions stay atomic
// with respect to each other.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"matriarchctl/debug"
	"matriarchctl/param"
	"matriarchctl/sysex"
)

// State of the sync state machine.
type State int32

const (
	Idle State = iota
	AwaitingQueryResponse
	Disconnected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingQueryResponse:
		return "awaiting-query-response"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

var (
	ErrNotConnected  = errors.New("not connected")
	ErrQueryInFlight = errors.New("query already in flight")
	ErrStopped       = errors.New("engine stopped")
)

// SyncError reports a query that exhausted its attempts. Missing names
// exactly the parameters that never confirmed.
type SyncError struct {
	Missing []param.ID
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed: %d parameters unconfirmed", len(e.Missing))
}

// Origin says where a parameter change came from.
type Origin int

const (
	OriginLocal Origin = iota
	OriginDevice
	OriginPreset
)

// NotificationType tags engine events.
type NotificationType int

const (
	ParameterChanged NotificationType = iota
	SyncComplete
	SyncFailed
	TransportLost
	TransportRestored
)

// Notification is one engine event. ParameterChanged carries ID/Value and the
// Forced/Clamped flags when a dependency rule overrode the request; SyncFailed
// carries Missing.
type Notification struct {
	Type    NotificationType
	ID      param.ID
	Value   int
	Forced  bool
	Clamped bool
	Origin  Origin
	Missing []param.ID
	Err     error
}

// Config is everything the engine takes from the outside at construction.
// Never read from global state.
type Config struct {
	Unit         uint8         // SysEx unit id, 0-15
	Channel      uint8         // CC channel, 0-15
	QueryTimeout time.Duration // response window per attempt, past the last send
	QueryDelay   time.Duration // pacing between individual query sends
	MaxAttempts  int
}

// DefaultConfig mirrors the hardware's comfortable pace: the Matriarch wants
// queries spaced out or it drops them.
func DefaultConfig() Config {
	return Config{
		QueryTimeout: 3 * time.Second,
		QueryDelay:   400 * time.Millisecond,
		MaxAttempts:  3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = d.QueryTimeout
	}
	if c.QueryDelay < 0 {
		c.QueryDelay = d.QueryDelay
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

// pendingQuery tracks one in-flight full-table query. Never leaves the engine.
type pendingQuery struct {
	id       uuid.UUID
	pending  map[param.ID]bool
	sentAt   time.Time
	attempts int
}

func (q *pendingQuery) missing() []param.ID {
	out := make([]param.ID, 0, len(q.pending))
	for id := range q.pending {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Engine is the sync engine. Construct with New, drive with Run, talk to it
// through the exported methods; every method is safe from any goroutine.
type Engine struct {
	cfg       Config
	reg       *param.Registry
	table     *param.Table
	resolver  *param.Resolver
	codec     *sysex.Codec
	transport Transport

	intents chan func()
	updates chan Notification
	done    chan struct{}

	state atomic.Int32

	// Loop-owned; never touched outside Run.
	pending      *pendingQuery
	attemptTimer *time.Timer
	paceTicker   *time.Ticker
	sendQueue    []param.ID
}

// New builds an engine over an opened transport. The table starts at factory
// defaults; issue QueryAll to pull the device's real state.
func New(transport Transport, reg *param.Registry, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:       cfg,
		reg:       reg,
		table:     param.NewTable(reg),
		resolver:  param.NewResolver(reg),
		codec:     sysex.NewCodec(reg, cfg.Unit, cfg.Channel),
		transport: transport,
		intents:   make(chan func(), 16),
		updates:   make(chan Notification, 64),
		done:      make(chan struct{}),
	}
}

// Registry returns the parameter spec set.
func (e *Engine) Registry() *param.Registry { return e.reg }

// Get reads one parameter's current local value.
func (e *Engine) Get(id param.ID) (int, error) { return e.table.Get(id) }

// Snapshot copies the current table. Safe concurrently with the loop.
func (e *Engine) Snapshot() map[param.ID]int { return e.table.Snapshot() }

// State returns the current machine state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Updates is the engine's event stream. Slow consumers lose events rather
// than stalling the loop.
func (e *Engine) Updates() <-chan Notification { return e.updates }

// Run services intents, inbound MIDI, and timers until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.attemptTimer = time.NewTimer(time.Hour)
	e.stopAttemptTimer()
	defer func() {
		e.clearQuery()
		close(e.done)
		close(e.updates)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case fn := <-e.intents:
			fn()

		case msg, ok := <-e.transport.Inbound():
			if !ok {
				e.toDisconnected(errors.New("inbound stream closed"))
				continue
			}
			e.handleInbound(msg)

		case <-e.attemptTimer.C:
			e.onAttemptTimeout()

		case <-e.paceC():
			e.sendNextQuery()
		}
	}
}

func (e *Engine) paceC() <-chan time.Time {
	if e.paceTicker == nil {
		return nil
	}
	return e.paceTicker.C
}

// post runs fn on the loop goroutine and waits for it to finish.
func (e *Engine) post(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	wrapped := func() {
		fn()
		close(ran)
	}
	select {
	case e.intents <- wrapped:
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Set proposes a value change, applies it with its cascade, and sends the
// whole batch to the device. Fire and forget: no acknowledgment is expected.
func (e *Engine) Set(ctx context.Context, id param.ID, value int) (param.Resolution, error) {
	var res param.Resolution
	var err error
	postErr := e.post(ctx, func() { res, err = e.localSet(id, value) })
	if postErr != nil {
		return param.Resolution{}, postErr
	}
	return res, err
}

// QueryAll starts the full-table query handshake. Completion is reported on
// Updates as SyncComplete or SyncFailed.
func (e *Engine) QueryAll(ctx context.Context) error {
	var err error
	if postErr := e.post(ctx, func() { err = e.startQuery() }); postErr != nil {
		return postErr
	}
	return err
}

// Cancel pre-empts an in-flight query, discarding it without error. A cancel
// with nothing in flight is a no-op.
func (e *Engine) Cancel(ctx context.Context) error {
	return e.post(ctx, func() {
		if e.State() == AwaitingQueryResponse {
			e.clearQuery()
			e.setState(Idle)
			debug.Log("engine", "query cancelled")
		}
	})
}

// Reconnect acknowledges a restored transport. Pass the fresh transport, or
// nil to keep the existing one. Only valid escape from Disconnected.
func (e *Engine) Reconnect(ctx context.Context, t Transport) error {
	return e.post(ctx, func() {
		if t != nil {
			e.transport = t
		}
		if e.State() == Disconnected {
			e.setState(Idle)
			e.notify(Notification{Type: TransportRestored})
			debug.Log("engine", "transport restored")
		}
	})
}

// Reconfigure swaps the unit id and CC channel on a running engine.
func (e *Engine) Reconfigure(ctx context.Context, unit, channel uint8) error {
	return e.post(ctx, func() {
		e.cfg.Unit, e.cfg.Channel = unit&0x0F, channel&0x0F
		e.codec = sysex.NewCodec(e.reg, e.cfg.Unit, e.cfg.Channel)
	})
}

// SendAll pushes the entire table of enabled parameters to the device, as
// after a preset load or factory reset. Returns how many were sent.
func (e *Engine) SendAll(ctx context.Context) (int, error) {
	var sent int
	var err error
	if postErr := e.post(ctx, func() { sent, err = e.sendAll() }); postErr != nil {
		return 0, postErr
	}
	return sent, err
}

// ApplyValues runs a batch of external values (a preset) through the resolver
// one proposal at a time, applies what is accepted, sends the result, and
// returns applied and skipped counts. Unknown ids and disabled parameters are
// skipped, never fatal.
func (e *Engine) ApplyValues(ctx context.Context, values map[param.ID]int) (applied, skipped int, err error) {
	postErr := e.post(ctx, func() { applied, skipped, err = e.applyBatch(values) })
	if postErr != nil {
		return 0, 0, postErr
	}
	return applied, skipped, err
}

// --- loop internals -------------------------------------------------------

func (e *Engine) setState(s State) { e.state.Store(int32(s)) }

func (e *Engine) notify(n Notification) {
	select {
	case e.updates <- n:
	default:
	}
}

func (e *Engine) notifyChanges(res param.Resolution, origin Origin) {
	e.notify(Notification{
		Type: ParameterChanged, ID: res.ID, Value: res.Value,
		Forced: res.Forced, Clamped: res.Clamped, Origin: origin,
	})
	for _, c := range res.Cascade {
		e.notify(Notification{Type: ParameterChanged, ID: c.ID, Value: c.Value, Origin: origin})
	}
}

func (e *Engine) send(msg []byte) error {
	if err := e.transport.Send(msg); err != nil {
		e.toDisconnected(err)
		return fmt.Errorf("transport: %w", err)
	}
	debug.Hex("OUT", msg)
	return nil
}

// sendChanges encodes and transmits an accepted batch as one unit, skipping
// parameters a rule currently disables.
func (e *Engine) sendChanges(changes []param.Change) error {
	for _, c := range changes {
		if !e.resolver.Enabled(e.table, c.ID) {
			continue
		}
		msg, err := e.codec.Encode(c.ID, c.Value)
		if err != nil {
			// Resolver output should always encode; log and keep going.
			debug.Log("engine", "encode %d: %v", c.ID, err)
			continue
		}
		if err := e.send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) localSet(id param.ID, value int) (param.Resolution, error) {
	if e.State() == Disconnected {
		return param.Resolution{}, ErrNotConnected
	}
	res, err := e.resolver.Propose(e.table, id, value)
	if err != nil {
		return param.Resolution{}, err
	}
	e.resolver.Apply(e.table, res)
	if err := e.sendChanges(res.Changes()); err != nil {
		return res, err
	}
	e.notifyChanges(res, OriginLocal)
	return res, nil
}

func (e *Engine) sendAll() (int, error) {
	if e.State() == Disconnected {
		return 0, ErrNotConnected
	}
	sent := 0
	for _, id := range e.reg.IDs() {
		if !e.resolver.Enabled(e.table, id) {
			continue
		}
		v, err := e.table.Get(id)
		if err != nil {
			continue
		}
		msg, err := e.codec.Encode(id, v)
		if err != nil {
			debug.Log("engine", "sendAll encode %d: %v", id, err)
			continue
		}
		if err := e.send(msg); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (e *Engine) applyBatch(values map[param.ID]int) (applied, skipped int, err error) {
	if e.State() == Disconnected {
		return 0, 0, ErrNotConnected
	}

	ids := make([]param.ID, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var outgoing []param.Change
	for _, id := range ids {
		s, ok := e.reg.Lookup(id)
		if !ok {
			skipped++
			debug.Log("engine", "preset: unknown parameter %d skipped", id)
			continue
		}
		// Stale presets may carry out-of-domain values; constrain them the
		// way the firmware would instead of failing the whole import.
		res, perr := e.resolver.Propose(e.table, id, s.Domain.Clamp(values[id]))
		if perr != nil {
			skipped++
			debug.Log("engine", "preset: %s skipped: %v", s.Name, perr)
			continue
		}
		e.resolver.Apply(e.table, res)
		e.notifyChanges(res, OriginPreset)
		outgoing = append(outgoing, res.Changes()...)
		applied++
	}

	if err := e.sendChanges(outgoing); err != nil {
		return applied, skipped, err
	}
	return applied, skipped, nil
}

func (e *Engine) handleInbound(msg []byte) {
	debug.Hex("IN", msg)
	batch, err := e.codec.Decode(msg)
	if err != nil {
		// A noisy bus is expected; drop with a reason, never fail the session.
		debug.Log("engine", "inbound dropped: %v", err)
		return
	}
	if len(batch) == 0 {
		return
	}

	isCC := msg[0]&0xF0 == 0xB0
	for _, u := range batch {
		e.applyDevice(u)
	}

	// CC traffic is unsolicited realtime editing and never satisfies the
	// query protocol.
	if isCC || e.State() != AwaitingQueryResponse {
		return
	}
	// A set frame without the response flag is another controller writing the
	// device, not the device answering us; take the value, keep waiting.
	if msg[3] == sysex.CmdSet && !sysex.IsResponse(msg) {
		return
	}
	for _, u := range batch {
		delete(e.pending.pending, u.ID)
		e.dequeue(u.ID)
	}
	if len(e.pending.pending) == 0 {
		e.clearQuery()
		e.setState(Idle)
		e.notify(Notification{Type: SyncComplete})
		debug.Log("engine", "sync complete")
	}
}

// applyDevice routes one device-reported value through the resolver exactly
// like a local write. The device is authoritative, but its values are still
// clamped defensively.
func (e *Engine) applyDevice(u sysex.Update) {
	s, ok := e.reg.Lookup(u.ID)
	if !ok {
		debug.Log("engine", "device update for unknown parameter %d dropped", u.ID)
		return
	}
	res, err := e.resolver.Propose(e.table, u.ID, s.Domain.Clamp(u.Value))
	if err != nil {
		debug.Log("engine", "device update %s dropped: %v", s.Name, err)
		return
	}
	e.resolver.Apply(e.table, res)
	// Cascades stay local: the firmware applies the same rules on its side,
	// so echoing them back would just bounce state around.
	e.notifyChanges(res, OriginDevice)
}

// --- query handshake ------------------------------------------------------

func (e *Engine) startQuery() error {
	switch e.State() {
	case Disconnected:
		return ErrNotConnected
	case AwaitingQueryResponse:
		return ErrQueryInFlight
	}

	ids := e.reg.SysExIDs()
	q := &pendingQuery{
		id:       uuid.New(),
		pending:  make(map[param.ID]bool, len(ids)),
		sentAt:   time.Now(),
		attempts: 1,
	}
	for _, id := range ids {
		q.pending[id] = true
	}
	e.pending = q
	e.setState(AwaitingQueryResponse)
	debug.Log("engine", "query %s: %d parameters, attempt 1", q.id, len(ids))
	e.startAttempt()
	return nil
}

// startAttempt queues GET frames for every still-pending id and arms the
// response window. Sends are paced by QueryDelay so the hardware keeps up.
func (e *Engine) startAttempt() {
	e.stopPacing()
	e.sendQueue = e.pending.missing()
	window := e.cfg.QueryTimeout + e.cfg.QueryDelay*time.Duration(len(e.sendQueue))
	e.armAttemptTimer(window)

	e.sendNextQuery()
	if len(e.sendQueue) > 0 && e.cfg.QueryDelay > 0 {
		e.paceTicker = time.NewTicker(e.cfg.QueryDelay)
	} else {
		for len(e.sendQueue) > 0 && e.State() == AwaitingQueryResponse {
			e.sendNextQuery()
		}
	}
}

func (e *Engine) sendNextQuery() {
	if e.State() != AwaitingQueryResponse || len(e.sendQueue) == 0 {
		e.stopPacing()
		return
	}
	id := e.sendQueue[0]
	e.sendQueue = e.sendQueue[1:]
	msg, err := e.codec.EncodeQuery(id)
	if err != nil {
		debug.Log("engine", "query encode %d: %v", id, err)
		return
	}
	_ = e.send(msg) // send failure already moved us to Disconnected
	if len(e.sendQueue) == 0 {
		e.stopPacing()
	}
}

// dequeue drops id from the unsent queue; a bulk dump can satisfy parameters
// before their individual query ever went out.
func (e *Engine) dequeue(id param.ID) {
	for i, qid := range e.sendQueue {
		if qid == id {
			e.sendQueue = append(e.sendQueue[:i], e.sendQueue[i+1:]...)
			return
		}
	}
}

func (e *Engine) onAttemptTimeout() {
	if e.State() != AwaitingQueryResponse || e.pending == nil {
		// Timer is stopped and drained with every transition; a fire in the
		// wrong state means a bug, not a race.
		return
	}
	q := e.pending
	if q.attempts < e.cfg.MaxAttempts {
		q.attempts++
		q.sentAt = time.Now()
		debug.Log("engine", "query %s: timeout, attempt %d, %d missing",
			q.id, q.attempts, len(q.pending))
		e.startAttempt()
		return
	}

	missing := q.missing()
	e.clearQuery()
	e.setState(Idle)
	e.notify(Notification{Type: SyncFailed, Missing: missing, Err: &SyncError{Missing: missing}})
	debug.Log("engine", "query %s: failed, %d parameters unconfirmed", q.id, len(missing))
}

func (e *Engine) toDisconnected(err error) {
	if e.State() == Disconnected {
		return
	}
	e.clearQuery()
	e.setState(Disconnected)
	e.notify(Notification{Type: TransportLost, Err: err})
	debug.Log("engine", "transport lost: %v", err)
}

// clearQuery discards the pending query and silences both timers, draining
// the attempt timer so a stale expiry can never fire after a transition.
func (e *Engine) clearQuery() {
	e.pending = nil
	e.sendQueue = nil
	e.stopPacing()
	e.stopAttemptTimer()
}

func (e *Engine) stopPacing() {
	if e.paceTicker != nil {
		e.paceTicker.Stop()
		e.paceTicker = nil
	}
}

func (e *Engine) stopAttemptTimer() {
	if e.attemptTimer == nil {
		return
	}
	if !e.attemptTimer.Stop() {
		select {
		case <-e.attemptTimer.C:
		default:
		}
	}
}

func (e *Engine) armAttemptTimer(d time.Duration) {
	e.stopAttemptTimer()
	e.attemptTimer.Reset(d)
}
