package rfq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"solation/core/events"
	"solation/core/state"
	"solation/core/types"
	"solation/native/common"
	"solation/native/oracle"
	"solation/native/protocol"
)

// ModuleName is the pause-switch name consulted before mutating operations.
const ModuleName = "rfq"

const (
	// MaxReasonLen bounds dispute and resolution reasons, in bytes.
	MaxReasonLen = 200
	// MaxBasisPoints is the denominator of payout fractions.
	MaxBasisPoints = protocol.MaxBasisPoints
	// InitialReputation is assigned at registration.
	InitialReputation uint32 = 100
	// ReputationPenalty is deducted for every expired intent.
	ReputationPenalty uint32 = 10

	DefaultFillWindow         = 30 * time.Second
	DefaultStalenessThreshold = 60 * time.Second
)

var errNilState = errors.New("rfq engine: state not configured")

// Custody moves balances between accounts. Transfer fails when from lacks
// funds or authorizer does not control from.
type Custody interface {
	Transfer(kv state.KV, mint, from, to types.Address, amount uint64, authorizer types.Address) error
	Assign(kv state.KV, account, owner types.Address) error
	Balance(kv state.KV, mint, account types.Address) (uint64, error)
}

// PriceOracle returns the latest observation for a feed.
type PriceOracle interface {
	LatestPrice(ctx context.Context, feedID [32]byte) (oracle.PriceUpdate, error)
}

// Config is the protocol configuration visible inside a transaction.
type Config interface {
	common.PauseView
	Global() (*protocol.GlobalState, error)
	Asset(mint types.Address) (*protocol.AssetConfig, bool, error)
	SetPaused(caller types.Address, paused bool) error
}

// ConfigSource binds the configuration record to a transaction.
type ConfigSource func(kv state.KV) Config

// Metrics receives operation outcomes. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordOperation(op string, err error)
	RecordIntentStatus(status string)
	RecordResolution(resolution string)
	RecordSettlement(status string, userAmount, mmAmount uint64)
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, error)           {}
func (noopMetrics) RecordIntentStatus(string)               {}
func (noopMetrics) RecordResolution(string)                 {}
func (noopMetrics) RecordSettlement(string, uint64, uint64) {}

func defaultConfigSource(kv state.KV) Config { return protocol.NewStore(kv) }

// Engine implements the intent lifecycle, dispute resolution and settlement
// over the transactional state manager. Every mutating operation runs in one
// state transaction; events are emitted only after the transaction commits.
type Engine struct {
	state   *state.Manager
	custody Custody
	oracle  PriceOracle
	config  ConfigSource
	emitter events.Emitter
	metrics Metrics
	logger  *slog.Logger
	nowFn   func() int64

	fillWindow int64
	staleness  int64
}

// NewEngine wires the engine to its state, custody and oracle collaborators.
func NewEngine(mgr *state.Manager, custody Custody, priceOracle PriceOracle) *Engine {
	return &Engine{
		state:      mgr,
		custody:    custody,
		oracle:     priceOracle,
		config:     defaultConfigSource,
		emitter:    events.NoopEmitter{},
		metrics:    noopMetrics{},
		logger:     slog.Default(),
		nowFn:      func() int64 { return time.Now().Unix() },
		fillWindow: int64(DefaultFillWindow / time.Second),
		staleness:  int64(DefaultStalenessThreshold / time.Second),
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) SetConfigSource(src ConfigSource) {
	if src == nil {
		src = defaultConfigSource
	}
	e.config = src
}

func (e *Engine) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	e.metrics = m
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetFillWindow sets how long a market maker has to fill a new intent.
func (e *Engine) SetFillWindow(d time.Duration) error {
	if d < time.Second {
		return fmt.Errorf("rfq: fill window must be at least one second")
	}
	e.fillWindow = int64(d / time.Second)
	return nil
}

// SetStalenessThreshold sets the maximum accepted oracle price age.
func (e *Engine) SetStalenessThreshold(d time.Duration) error {
	if d < time.Second {
		return fmt.Errorf("rfq: staleness threshold must be at least one second")
	}
	e.staleness = int64(d / time.Second)
	return nil
}

// FillWindow returns the configured fill window.
func (e *Engine) FillWindow() time.Duration { return time.Duration(e.fillWindow) * time.Second }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// txn carries the state handles of one operation and the events it will emit
// once committed.
type txn struct {
	tx      *state.Tx
	store   store
	config  Config
	events  []*types.Event
	updates []IntentStatus
}

func (t *txn) emit(evt *types.Event) { t.events = append(t.events, evt) }

func (t *txn) putIntent(i *Intent) error {
	t.updates = append(t.updates, i.Status)
	return t.store.putIntent(i)
}

func (e *Engine) execute(op string, fn func(t *txn) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	var committed *txn
	err := e.state.Update(func(tx *state.Tx) error {
		t := &txn{tx: tx, store: store{tx: tx}, config: e.config(tx)}
		if err := fn(t); err != nil {
			return err
		}
		committed = t
		return nil
	})
	e.metrics.RecordOperation(op, err)
	if err != nil {
		if kind, ok := KindOf(err); ok {
			e.logger.Debug("rfq operation rejected", "op", op, "kind", kind.String(), "error", err)
		} else {
			e.logger.Warn("rfq operation failed", "op", op, "error", err)
		}
		return err
	}
	for _, status := range committed.updates {
		e.metrics.RecordIntentStatus(status.String())
	}
	for _, evt := range committed.events {
		e.emitter.Emit(events.Wrap(evt))
	}
	return nil
}

func (e *Engine) view(fn func(s store, cfg Config) error) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.View(func(tx *state.Tx) error {
		return fn(store{tx: tx}, e.config(tx))
	})
}

func requireNotPaused(cfg Config) error {
	if err := common.Guard(cfg, ModuleName); err != nil {
		if errors.Is(err, common.ErrModulePaused) {
			return ErrProtocolPaused
		}
		return err
	}
	return nil
}

func requireAuthority(cfg Config, caller types.Address) (*protocol.GlobalState, error) {
	global, err := cfg.Global()
	if err != nil {
		return nil, err
	}
	if caller != global.Authority {
		return nil, ErrUnauthorized
	}
	return global, nil
}

func validateReason(reason string) error {
	if len(reason) > MaxReasonLen {
		return ErrDisputeReasonTooLong
	}
	return nil
}

// releaseEscrow pays amount out of the intent vault. Zero amounts are skipped.
func (e *Engine) releaseEscrow(t *txn, i *Intent, to types.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return e.custody.Transfer(t.tx, i.EscrowMint, i.EscrowVault, to, amount, ProgramAddress)
}

// MarketMaker returns the registry record of owner.
func (e *Engine) MarketMaker(owner types.Address) (*MarketMaker, error) {
	var out *MarketMaker
	err := e.view(func(s store, _ Config) error {
		m, err := s.marketMaker(owner)
		out = m
		return err
	})
	return out, err
}

// NonceTracker returns the replay window of owner.
func (e *Engine) NonceTracker(owner types.Address) (*NonceTracker, error) {
	var out *NonceTracker
	err := e.view(func(s store, _ Config) error {
		n, err := s.nonceTracker(owner)
		out = n
		return err
	})
	return out, err
}

// Intent returns the intent with id.
func (e *Engine) Intent(id uint64) (*Intent, error) {
	var out *Intent
	err := e.view(func(s store, _ Config) error {
		i, err := s.intent(id)
		out = i
		return err
	})
	return out, err
}

// Position returns the position with id.
func (e *Engine) Position(id uint64) (*Position, error) {
	var out *Position
	err := e.view(func(s store, _ Config) error {
		p, err := s.position(id)
		out = p
		return err
	})
	return out, err
}

// OpenIntents returns every intent an owner override could still act on, in
// creation order.
func (e *Engine) OpenIntents() ([]*Intent, error) {
	var out []*Intent
	err := e.view(func(s store, _ Config) error {
		ids, err := s.openIntentIDs()
		if err != nil {
			return err
		}
		out = make([]*Intent, 0, len(ids))
		for _, id := range ids {
			i, err := s.intent(id)
			if err != nil {
				return err
			}
			out = append(out, i)
		}
		return nil
	})
	return out, err
}
