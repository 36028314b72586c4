package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkl-testcase/wo_backend/config"
	"github.com/pkl-testcase/wo_backend/models"
	"github.com/pkl-testcase/wo_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const eventPublishTimeout = 10 * time.Second

type EventPublisher interface {
	PublishWorkOrderEvent(ctx context.Context, ev config.WorkOrderEvent) (string, error)
}

// Archiver moves one record between work_orders and reports. Each move is a
// single transaction, so readers see the record in exactly one table.
type Archiver struct {
	db        *gorm.DB
	publisher EventPublisher
	logger    *logrus.Logger
	timeout   time.Duration
}

type ArchiverOption func(*Archiver)

func WithEventPublisher(p EventPublisher) ArchiverOption {
	return func(a *Archiver) { a.publisher = p }
}

func WithArchiveTimeout(d time.Duration) ArchiverOption {
	return func(a *Archiver) { a.timeout = d }
}

func NewArchiver(db *gorm.DB, logger *logrus.Logger, opts ...ArchiverOption) *Archiver {
	a := &Archiver{db: db, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Archiver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

// Complete archives an active record: insert into reports, delete from work_orders.
func (a *Archiver) Complete(ctx context.Context, incident string) error {
	incident = strings.TrimSpace(incident)
	if incident == "" {
		return utils.InvalidInputf("incident is required")
	}
	ctx, span := tracer.Start(ctx, "Archiver.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("incident", incident))

	txCtx, cancel := a.withTimeout(ctx)
	defer cancel()

	var wo models.WorkOrder
	err := a.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("incident = ?", incident).Take(&wo).Error; err != nil {
			return err
		}
		report := models.Report(wo)
		if err := tx.Create(&report).Error; err != nil {
			if models.IsDuplicateKeyError(err) {
				return fmt.Errorf("incident %s is already archived: %w", incident, err)
			}
			return err
		}
		res := tx.Where("incident = ?", incident).Delete(&models.WorkOrder{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// completed concurrently
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		err = transitionError("complete work order", incident, err)
		recordSpanError(span, err)
		return err
	}

	a.publish(ctx, config.EventWorkOrderCompleted, &wo)
	return nil
}

// Reopen restores an archived record, replacing any active record with the
// same incident, then deletes it from reports.
func (a *Archiver) Reopen(ctx context.Context, incident string) error {
	incident = strings.TrimSpace(incident)
	if incident == "" {
		return utils.InvalidInputf("incident is required")
	}
	ctx, span := tracer.Start(ctx, "Archiver.Reopen")
	defer span.End()
	span.SetAttributes(attribute.String("incident", incident))

	txCtx, cancel := a.withTimeout(ctx)
	defer cancel()

	var report models.Report
	err := a.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("incident = ?", incident).Take(&report).Error; err != nil {
			return err
		}
		wo := models.WorkOrder(report)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: models.ColumnIncident}},
			UpdateAll: true,
		}).Create(&wo).Error; err != nil {
			return err
		}
		res := tx.Where("incident = ?", incident).Delete(&models.Report{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		err = transitionError("reopen report", incident, err)
		recordSpanError(span, err)
		return err
	}

	wo := models.WorkOrder(report)
	a.publish(ctx, config.EventWorkOrderReopened, &wo)
	return nil
}

func transitionError(op string, incident string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.NotFoundf("incident %s", incident)
	}
	return utils.NewStorageError(op, err)
}

// publish runs after commit; a failure is logged and never undoes the transition.
func (a *Archiver) publish(ctx context.Context, action string, wo *models.WorkOrder) {
	if a.publisher == nil {
		return
	}
	ev := config.WorkOrderEvent{
		Action:     action,
		Incident:   wo.Incident,
		ServiceNo:  utils.DereferencePtr(wo.ServiceNo),
		OccurredAt: time.Now().UTC(),
	}
	if id, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		ev.CorrelationId = id
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if _, err := a.publisher.PublishWorkOrderEvent(pubCtx, ev); err != nil {
		config.LogError(a.logger, "archiveWorkflow.go", "publish", "Publishing "+action, ev, err)
	}
}
