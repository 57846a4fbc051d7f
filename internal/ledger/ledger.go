package ledger

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/micropayments-ledger/internal/clock"
	"github.com/sheikh-saqib/micropayments-ledger/internal/diagnostics"
	interfaces "github.com/sheikh-saqib/micropayments-ledger/internal/interfaces"
	"github.com/sheikh-saqib/micropayments-ledger/internal/models"
)

// ErrCounterExhausted is returned once every u64 id has been handed out.
var ErrCounterExhausted = errors.New("payment counter exhausted")

// RetentionPolicy controls how long the backend keeps payment records alive.
// When the remaining lifetime is unset or below Threshold, it is pushed out to ExtendTo.
// The counter is not subject to it.
type RetentionPolicy struct {
	Threshold time.Duration
	ExtendTo  time.Duration
}

// DefaultRetention is used when no policy is configured.
var DefaultRetention = RetentionPolicy{
	Threshold: 30 * 24 * time.Hour,
	ExtendTo:  30 * 24 * time.Hour,
}

// Ledger is the payment record store.
// It holds a reference to the storage backend, the clock, and the diagnostic sink.
type Ledger struct {
	store     interfaces.KVStore        // persistence backend holding the counter and payments
	clock     interfaces.Clock          // source of CreatedAt
	sink      interfaces.DiagnosticSink // receives one record per created payment
	retention RetentionPolicy
	log       *logrus.Entry
	mu        sync.Mutex // serializes the counter read-modify-write within this process
}

// Option configures a Ledger.
type Option func(*Ledger)

func WithClock(c interfaces.Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

func WithSink(s interfaces.DiagnosticSink) Option {
	return func(l *Ledger) {
		l.sink = s
	}
}

func WithRetention(p RetentionPolicy) Option {
	return func(l *Ledger) {
		l.retention = p
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

// NewLedger is a constructor function that creates a new Ledger instance
// We pass in a storage implementation (memory, sqlite, postgres, redis)
func NewLedger(store interfaces.KVStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		clock:     clock.System{},
		sink:      diagnostics.Discard,
		retention: DefaultRetention,
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordPayment stores a new payment and returns its id.
// The payment, the advanced counter and the retention extension are committed as one unit.
// No validation is applied: empty parties and a zero amount are accepted.
func (l *Ledger) RecordPayment(ctx context.Context, payer, payee string, amount uint64) (uint64, error) {

	l.mu.Lock()
	defer l.mu.Unlock()

	// One clock read per call, even if the backend retries the transaction
	createdAt := l.clock.Now()

	var payment models.Payment
	err := l.store.Update(ctx, func(tx interfaces.KVTx) error {
		count, err := readCounter(ctx, tx)
		if err != nil {
			return err
		}
		if count == math.MaxUint64 {
			return ErrCounterExhausted
		}

		payment = models.Payment{
			ID:        count + 1,
			Payer:     payer,
			Payee:     payee,
			Amount:    amount,
			CreatedAt: createdAt,
		}

		value, err := json.Marshal(payment)
		if err != nil {
			return errors.Wrap(err, "encode payment")
		}
		if err := tx.Set(ctx, PaymentKey(payment.ID), value); err != nil {
			return err
		}
		// the counter is pinned so expiry can never hand out an id twice
		if err := tx.SetPinned(ctx, counterKey(), encodeCounter(payment.ID)); err != nil {
			return err
		}

		return tx.ExtendRetention(ctx, l.retention.Threshold, l.retention.ExtendTo)
	})
	if err != nil {
		return 0, errors.Wrap(err, "record payment")
	}

	l.log.WithField("payment_id", payment.ID).Debug("payment committed")
	l.sink.Log(ctx, "payment recorded",
		"payment_id", payment.ID,
		"payer", payment.Payer,
		"payee", payment.Payee,
		"amount", payment.Amount,
		"created_at", payment.CreatedAt,
	)

	return payment.ID, nil
}

// GetPayment returns the payment stored under id, or models.NotFound when there is none.
// An error is only returned when the backend itself fails.
func (l *Ledger) GetPayment(ctx context.Context, id uint64) (models.Payment, error) {
	payment, _, err := l.LookupPayment(ctx, id)
	if err != nil {
		return models.Payment{}, err
	}
	return payment, nil
}

// LookupPayment is GetPayment with an explicit found flag.
// The returned payment is models.NotFound whenever found is false.
func (l *Ledger) LookupPayment(ctx context.Context, id uint64) (models.Payment, bool, error) {
	if id == 0 {
		return models.NotFound, false, nil
	}

	raw, ok, err := l.store.Get(ctx, PaymentKey(id))
	if err != nil {
		return models.Payment{}, false, errors.Wrapf(err, "get payment %d", id)
	}
	if !ok {
		return models.NotFound, false, nil
	}

	var payment models.Payment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return models.Payment{}, false, errors.Wrapf(err, "decode payment %d", id)
	}
	return payment, true, nil
}

// GetPaymentCount returns the number of payments recorded so far, 0 before the first one.
func (l *Ledger) GetPaymentCount(ctx context.Context) (uint64, error) {
	count, err := readCounter(ctx, l.store)
	if err != nil {
		return 0, errors.Wrap(err, "get payment count")
	}
	return count, nil
}

func readCounter(ctx context.Context, r interfaces.KVReader) (uint64, error) {
	raw, ok, err := r.Get(ctx, counterKey())
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return decodeCounter(raw)
}
