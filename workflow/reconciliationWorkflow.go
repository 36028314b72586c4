package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/pkl-testcase/wo_backend/ledger"
	"github.com/pkl-testcase/wo_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	SweepLockKey = "lock:address-sweep"
	SweepLockTTL = 5 * time.Minute
)

// AddressTarget is the work order side of reconciliation.
type AddressTarget interface {
	SetAddress(ctx context.Context, serviceNo string, alamat string) (int64, error)
	JoinAddresses(ctx context.Context, serviceNos []string) (int64, error)
	DistinctServiceNos(ctx context.Context) ([]string, error)
}

// Reconciler pushes ledger addresses into work orders. The ledger always wins;
// a record's own address is never written back.
type Reconciler struct {
	target    AddressTarget
	ledger    ledger.AddressLedger
	colocated bool
	locker    *redislock.Client
	logger    *logrus.Logger
}

type ReconcilerOption func(*Reconciler)

// WithSweepLocker guards Sweep with a best-effort Redis lock.
func WithSweepLocker(locker *redislock.Client) ReconcilerOption {
	return func(r *Reconciler) { r.locker = locker }
}

func NewReconciler(target AddressTarget, l ledger.AddressLedger, logger *logrus.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{target: target, ledger: l, logger: logger}
	if withDB, ok := target.(interface{ DB() *gorm.DB }); ok {
		r.colocated = ledger.IsColocated(l, withDB.DB())
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Colocated reports whether reconciliation runs as a joined UPDATE.
func (r *Reconciler) Colocated() bool {
	return r.colocated
}

// Reconcile copies the ledger address of every given service number into the
// matching work orders and returns how many records changed. Failures for some
// service numbers do not stop the pass: the partial count is returned together
// with a storage error joining the causes.
func (r *Reconciler) Reconcile(ctx context.Context, serviceNos []string) (int64, error) {
	keys := make([]string, 0, len(serviceNos))
	for _, s := range serviceNos {
		if s = strings.TrimSpace(s); s != "" {
			keys = append(keys, s)
		}
	}
	keys = utils.UniqueSlice(keys)
	if len(keys) == 0 {
		return 0, nil
	}

	ctx, span := tracer.Start(ctx, "Reconciler.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.Int("service_nos", len(keys)),
		attribute.Bool("colocated", r.colocated),
	)

	var updated int64
	var errs []error
	for _, chunk := range utils.Chunk(keys, ledger.MaxLookupBatch) {
		var n int64
		var err error
		if r.colocated {
			n, err = r.target.JoinAddresses(ctx, chunk)
		} else {
			n, err = r.reconcileChunk(ctx, chunk, &errs)
		}
		updated += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		err := utils.NewStorageError("reconcile addresses", utils.JoinErrors(errs))
		recordSpanError(span, err)
		r.logger.WithFields(logrus.Fields{
			"field":       "Reconciler.Reconcile",
			"service_nos": len(keys),
			"updated":     updated,
			"failures":    len(errs),
		}).Warn("address reconciliation finished with failures: " + err.Error())
		return updated, err
	}
	span.SetAttributes(attribute.Int64("records.updated", updated))
	return updated, nil
}

// reconcileChunk looks up one chunk and applies each non-empty address.
// Per service number write failures are appended to errs; a lookup failure is returned.
func (r *Reconciler) reconcileChunk(ctx context.Context, chunk []string, errs *[]error) (int64, error) {
	addresses, err := r.ledger.LookupMany(ctx, chunk)
	if err != nil {
		return 0, fmt.Errorf("ledger lookup of %d service numbers: %w", len(chunk), err)
	}
	var updated int64
	for _, serviceNo := range chunk {
		alamat, ok := addresses[serviceNo]
		if !ok || alamat == nil || strings.TrimSpace(*alamat) == "" {
			// no opinion: keep the record's address
			continue
		}
		n, err := r.target.SetAddress(ctx, serviceNo, *alamat)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("service_no %s: %w", serviceNo, err))
			continue
		}
		updated += n
	}
	return updated, nil
}

// Sweep reconciles every distinct service number present among work orders.
// The Redis lock is best-effort: if it is missing or held elsewhere the sweep
// still runs and store isolation serializes the writes.
func (r *Reconciler) Sweep(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "Reconciler.Sweep")
	defer span.End()

	lock := r.obtainSweepLock(ctx)
	defer func() {
		if lock == nil {
			return
		}
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			r.logger.WithFields(logrus.Fields{
				"field": "Reconciler.Sweep",
			}).Warn("failed to release sweep lock: " + releaseErr.Error())
		}
	}()

	serviceNos, err := r.target.DistinctServiceNos(ctx)
	if err != nil {
		recordSpanError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("service_nos", len(serviceNos)))
	return r.Reconcile(ctx, serviceNos)
}

func (r *Reconciler) obtainSweepLock(ctx context.Context) *redislock.Lock {
	if r.locker == nil {
		r.logger.WithFields(logrus.Fields{
			"field": "Reconciler.Sweep",
		}).Debug("redis lock not configured; proceeding without sweep lock")
		return nil
	}
	lock, err := r.locker.Obtain(ctx, SweepLockKey, SweepLockTTL, nil)
	if err == redislock.ErrNotObtained {
		r.logger.WithFields(logrus.Fields{
			"field": "Reconciler.Sweep",
		}).Warn("could not obtain sweep lock; proceeding without redis lock")
		return nil
	} else if err != nil {
		r.logger.WithFields(logrus.Fields{
			"field": "Reconciler.Sweep",
		}).Warn("error obtaining sweep lock; proceeding without redis lock: " + err.Error())
		return nil
	}
	return lock
}
