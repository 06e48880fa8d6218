package billing

import (
	"time"

	"go.uber.org/zap"

	"github.com/warp/condo-ledger/ids"
)

// =============================================================================
// ENGINE - Wires every service to one store
// =============================================================================

// Recorder receives operation outcomes. obs.Metrics implements it with
// Prometheus collectors.
type Recorder interface {
	Observe(op string, code Code, elapsed time.Duration)
	QuotasGenerated(n int)
	ApplicationsReversed(n int)
}

type nopRecorder struct{}

func (nopRecorder) Observe(string, Code, time.Duration) {}
func (nopRecorder) QuotasGenerated(int)                 {}
func (nopRecorder) ApplicationsReversed(int)            {}

type deps struct {
	store   TxStore
	log     *zap.Logger
	metrics Recorder
	now     func() time.Time
	newID   func() string
}

func (d deps) named(name string) deps {
	d.log = d.log.Named(name)
	return d
}

func (d deps) observe(op string, start time.Time, err *error) {
	d.metrics.Observe(op, CodeOf(*err), time.Since(start))
}

type Option func(*deps)

func WithLogger(log *zap.Logger) Option {
	return func(d *deps) {
		if log != nil {
			d.log = log
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(d *deps) {
		if r != nil {
			d.metrics = r
		}
	}
}

// WithClock overrides time.Now for timestamps and refund notes.
func WithClock(now func() time.Time) Option {
	return func(d *deps) {
		if now != nil {
			d.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(d *deps) {
		if newID != nil {
			d.newID = newID
		}
	}
}

type Engine struct {
	Registry  *Registry
	Generator *ChargeGenerator
	Quotes    *Quoter
	Adjuster  *QuotaAdjuster
	Reversal  *PaymentReversal
}

func NewEngine(store TxStore, opts ...Option) *Engine {
	d := deps{
		store:   store,
		log:     zap.NewNop(),
		metrics: nopRecorder{},
		now:     func() time.Time { return time.Now().UTC() },
		newID:   ids.New,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return &Engine{
		Registry:  &Registry{deps: d.named("billing.registry")},
		Generator: &ChargeGenerator{deps: d.named("billing.generator")},
		Quotes:    &Quoter{deps: d.named("billing.quotes")},
		Adjuster:  &QuotaAdjuster{deps: d.named("billing.adjuster")},
		Reversal:  &PaymentReversal{deps: d.named("billing.reversal")},
	}
}
