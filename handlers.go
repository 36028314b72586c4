package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/pkl-testcase/wo_backend/config"
	"github.com/pkl-testcase/wo_backend/ledger"
	"github.com/pkl-testcase/wo_backend/models"
	"github.com/pkl-testcase/wo_backend/utils"
	"github.com/pkl-testcase/wo_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const moduleName = "handlers"

// App holds the components behind the JSON routes. Attach sets every field
// once, then flips ready; handlers only run after the readiness gate passes.
type App struct {
	db            *gorm.DB
	store         *models.WorkOrderStore
	engine        *workflow.UpsertEngine
	reconciler    *workflow.Reconciler
	archiver      *workflow.Archiver
	ledger        ledger.AddressLedger
	logger        *logrus.Logger
	autoReconcile bool
	queryTimeout  time.Duration

	ready atomic.Bool
}

// Components is what main (or a test) connected before the routes open.
type Components struct {
	DB            *gorm.DB
	Ledger        ledger.AddressLedger
	ReplaceOnly   bool
	AutoReconcile bool
	QueryTimeout  time.Duration
	Locker        *redislock.Client
	Publisher     workflow.EventPublisher
}

func NewApp(logger *logrus.Logger) *App {
	return &App{logger: logger}
}

func (a *App) Ready() bool {
	return a.ready.Load()
}

// Attach builds the store and workflows from c and opens the routes.
func (a *App) Attach(c Components) {
	a.db = c.DB
	a.ledger = c.Ledger
	a.autoReconcile = c.AutoReconcile
	a.queryTimeout = c.QueryTimeout
	a.store = models.NewWorkOrderStore(c.DB,
		models.WithReplaceOnlyUpsert(c.ReplaceOnly),
		models.WithQueryTimeout(c.QueryTimeout),
	)
	a.engine = workflow.NewUpsertEngine(a.store, a.logger)

	var reconcilerOpts []workflow.ReconcilerOption
	if c.Locker != nil {
		reconcilerOpts = append(reconcilerOpts, workflow.WithSweepLocker(c.Locker))
	}
	a.reconciler = workflow.NewReconciler(a.store, c.Ledger, a.logger, reconcilerOpts...)

	archiverOpts := []workflow.ArchiverOption{workflow.WithArchiveTimeout(c.QueryTimeout)}
	if c.Publisher != nil {
		archiverOpts = append(archiverOpts, workflow.WithEventPublisher(c.Publisher))
	}
	a.archiver = workflow.NewArchiver(c.DB, a.logger, archiverOpts...)

	a.ready.Store(true)
}

func (a *App) registerRoutes(g *gin.RouterGroup) {
	g.POST("/work-orders", a.upsertWorkOrdersHandler(false))
	g.POST("/mypost", a.upsertWorkOrdersHandler(true))
	g.GET("/work-orders", a.listWorkOrdersHandler())
	g.GET("/view-mysql", a.listWorkOrdersHandler())
	g.GET("/work-orders/:incident", a.getWorkOrderHandler())
	g.PUT("/work-orders/:incident", a.updateWorkOrderHandler())
	g.DELETE("/work-orders/:incident", a.deleteWorkOrderHandler())
	g.POST("/work-orders/:incident/complete", a.completeWorkOrderHandler())

	g.GET("/reports", a.listReportsHandler())
	g.GET("/reports/export", a.exportReportsHandler())
	g.POST("/reports/:incident/reopen", a.reopenReportHandler())

	g.POST("/save-addresses-to-mysql", a.saveAddressesHandler())
	g.POST("/sync-to-mysql", a.syncAddressesHandler())

	g.GET("/workzones", a.listWorkzonesHandler())
	g.GET("/workzone-map", a.workzoneMapHandler())
}

func (a *App) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if a.queryTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), a.queryTimeout)
}

// respondError maps the error taxonomy to 400 / 404 / 500.
func (a *App) respondError(c *gin.Context, funcName string, data any, err error) {
	switch {
	case errors.Is(err, utils.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	default:
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(a.logger, moduleName, funcName, cid, data, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}

// decodeJSON keeps numbers as json.Number so long service numbers keep every digit.
func decodeJSON(c *gin.Context, v any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return utils.InvalidInputf("invalid JSON body: %v", err)
	}
	return nil
}

// reconcileAfterWrite runs the chained reconciliation. Its failure never undoes
// the write it follows.
func (a *App) reconcileAfterWrite(c *gin.Context, funcName string, serviceNos []string) (int64, error) {
	if len(serviceNos) == 0 {
		return 0, nil
	}
	ctx, cancel := a.requestContext(c)
	defer cancel()

	updated, err := a.reconciler.Reconcile(ctx, serviceNos)
	if err != nil {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(a.logger, moduleName, funcName, cid, map[string]any{"service_nos": len(serviceNos)}, err)
	}
	return updated, err
}

func (a *App) upsertWorkOrdersHandler(alwaysReconcile bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rows []map[string]any
		if err := decodeJSON(c, &rows); err != nil {
			a.respondError(c, "upsertWorkOrders", nil, utils.InvalidInputf("body must be a JSON array of rows"))
			return
		}

		ctx, cancel := a.requestContext(c)
		res, err := a.engine.Process(ctx, rows)
		cancel()
		if err != nil {
			a.respondError(c, "upsertWorkOrders", map[string]any{"rows": len(rows)}, err)
			return
		}

		resp := gin.H{
			"success":           true,
			"message":           fmt.Sprintf("%d rows saved", res.Processed),
			"count":             res.Processed,
			"addresses_updated": 0,
		}
		if alwaysReconcile || a.autoReconcile {
			updated, err := a.reconcileAfterWrite(c, "upsertWorkOrders", res.ServiceNos)
			resp["addresses_updated"] = updated
			if err != nil {
				resp["reconcile_error"] = err.Error()
			}
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func (a *App) listWorkOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := a.store.ListAll(c.Request.Context(), c.Query("order_by"))
		if err != nil {
			a.respondError(c, "listWorkOrders", nil, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(orders), "data": orders})
	}
}

func (a *App) getWorkOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		wo, err := a.store.Get(c.Request.Context(), c.Param("incident"))
		if err != nil {
			a.respondError(c, "getWorkOrder", c.Param("incident"), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": wo})
	}
}

// updateWorkOrderHandler applies a partial update. A new service_no pulls its
// address from the ledger straight away.
func (a *App) updateWorkOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		incident := c.Param("incident")
		var fields map[string]any
		if err := decodeJSON(c, &fields); err != nil {
			a.respondError(c, "updateWorkOrder", incident, err)
			return
		}

		wo, err := a.store.UpdateFields(c.Request.Context(), incident, fields)
		if err != nil {
			a.respondError(c, "updateWorkOrder", incident, err)
			return
		}

		resp := gin.H{"success": true, "message": fmt.Sprintf("incident %s updated", wo.Incident)}
		if serviceNo, ok := fields[models.ColumnServiceNo]; ok {
			sno := strings.TrimSpace(utils.StringValue(serviceNo))
			if sno != "" {
				updated, err := a.reconcileAfterWrite(c, "updateWorkOrder", []string{sno})
				resp["addresses_updated"] = updated
				if err != nil {
					resp["reconcile_error"] = err.Error()
				}
				if updated > 0 {
					if fresh, err := a.store.Get(c.Request.Context(), wo.Incident); err == nil {
						wo = fresh
					}
				}
			}
		}
		resp["data"] = wo
		c.JSON(http.StatusOK, resp)
	}
}

func (a *App) deleteWorkOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		incident := c.Param("incident")
		deleted, err := a.store.Delete(c.Request.Context(), incident)
		if err != nil {
			a.respondError(c, "deleteWorkOrder", incident, err)
			return
		}
		if deleted == 0 {
			a.respondError(c, "deleteWorkOrder", incident, utils.NotFoundf("incident %s", incident))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("incident %s deleted", incident)})
	}
}

func (a *App) completeWorkOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		incident := c.Param("incident")
		if err := a.archiver.Complete(c.Request.Context(), incident); err != nil {
			a.respondError(c, "completeWorkOrder", incident, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("incident %s moved to reports", incident)})
	}
}

func (a *App) listReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reports, err := a.store.ListReports(c.Request.Context(), c.Query("order_by"))
		if err != nil {
			a.respondError(c, "listReports", nil, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(reports), "data": reports})
	}
}

func (a *App) exportReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reports, err := a.store.ListReports(c.Request.Context(), c.Query("order_by"))
		if err != nil {
			a.respondError(c, "exportReports", nil, err)
			return
		}
		var buf bytes.Buffer
		if err := models.WriteReportsXLSX(&buf, reports); err != nil {
			a.respondError(c, "exportReports", map[string]any{"reports": len(reports)}, err)
			return
		}
		filename := fmt.Sprintf("reports-%s.xlsx", time.Now().UTC().Format("20060102"))
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Data(http.StatusOK, utils.XLSXContentType, buf.Bytes())
	}
}

func (a *App) reopenReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		incident := c.Param("incident")
		if err := a.archiver.Reopen(c.Request.Context(), incident); err != nil {
			a.respondError(c, "reopenReport", incident, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("incident %s reopened", incident)})
	}
}

// addressEntryRequest accepts service_no as text or number.
type addressEntryRequest struct {
	ServiceNo any `json:"service_no"`
	Alamat    any `json:"alamat"`
}

// saveAddressesHandler seeds the ledger. Entries without a service_no are
// skipped; the batch fails only when none is usable.
func (a *App) saveAddressesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req []addressEntryRequest
		if err := decodeJSON(c, &req); err != nil {
			a.respondError(c, "saveAddresses", nil, utils.InvalidInputf("body must be a JSON array of {service_no, alamat}"))
			return
		}
		if len(req) == 0 {
			a.respondError(c, "saveAddresses", nil, utils.InvalidInputf("no addresses to save"))
			return
		}

		entries := make([]models.ServiceAddress, 0, len(req))
		usable := make([]models.ServiceAddress, 0, len(req))
		for _, r := range req {
			e := models.ServiceAddress{
				ServiceNo: strings.TrimSpace(utils.StringValue(r.ServiceNo)),
				Alamat:    utils.NilIfEmpty(utils.StringValue(r.Alamat)),
			}
			entries = append(entries, e)
			if e.ServiceNo != "" {
				usable = append(usable, e)
			}
		}
		if len(usable) == 0 {
			resp := gin.H{"success": false, "error": "no entry has a service_no"}
			if err := binding.Validator.ValidateStruct(entries); err != nil {
				resp["fields"] = utils.ProcessValidationErrors(err)
			}
			c.JSON(http.StatusBadRequest, resp)
			return
		}

		ctx, cancel := a.requestContext(c)
		defer cancel()
		saved, err := a.ledger.UpsertMany(ctx, usable)
		if err != nil {
			a.respondError(c, "saveAddresses", map[string]any{"entries": len(usable)}, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": fmt.Sprintf("%d addresses saved", saved),
			"count":   saved,
			"skipped": len(req) - len(usable),
		})
	}
}

// syncAddressesHandler runs a full sweep. A partial failure still reports how
// many records were updated before it.
func (a *App) syncAddressesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), workflow.SweepLockTTL)
		defer cancel()

		updated, err := a.reconciler.Sweep(ctx)
		if err != nil {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			config.LogError(a.logger, moduleName, "syncAddresses", cid, map[string]any{"updated": updated}, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success":           false,
				"error":             err.Error(),
				"count":             updated,
				"addresses_updated": updated,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":           true,
			"message":           fmt.Sprintf("%d work orders updated", updated),
			"count":             updated,
			"addresses_updated": updated,
		})
	}
}

func (a *App) listWorkzonesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := a.requestContext(c)
		defer cancel()
		workzones, err := models.ListWorkzones(ctx, a.db)
		if err != nil {
			a.respondError(c, "listWorkzones", nil, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": workzones})
	}
}

func (a *App) workzoneMapHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := a.requestContext(c)
		defer cancel()
		groups, err := models.GetWorkzoneMap(ctx, a.db)
		if err != nil {
			a.respondError(c, "workzoneMap", nil, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": groups})
	}
}
