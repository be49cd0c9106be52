package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/storefront/storefront/internal/catalog"
	jobmetrics "github.com/storefront/storefront/internal/jobs"
)

// TaskLowStockScan reports products running out of stock.
const TaskLowStockScan = "catalog:low_stock_scan"

// LowStockScanPayload carries the threshold for one scan.
type LowStockScanPayload struct {
	Threshold int `json:"threshold"`
}

// NewLowStockScanTask constructs the scan task.
func NewLowStockScanTask(threshold int) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{Threshold: threshold})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// StockSource lists products below a threshold.
type StockSource interface {
	LowStock(ctx context.Context, threshold int) ([]catalog.Product, error)
}

// LowStockScanJob logs every low-stock product and publishes the count.
type LowStockScanJob struct {
	Source  StockSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(source StockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &LowStockScanJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Source == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Threshold <= 0 {
		payload.Threshold = catalog.DefaultLowStockThreshold
	}

	start := time.Now()
	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger.With(slog.Int("threshold", payload.Threshold))
	products, err := j.Source.LowStock(ctx, payload.Threshold)
	if err != nil {
		logger.Error("low stock scan failed", slog.Any("error", err))
		return err
	}
	for _, p := range products {
		logger.Warn("low stock",
			slog.Int64("product_id", p.ID),
			slog.String("name", p.Name),
			slog.Int("stock", p.Stock),
		)
	}
	j.Metrics.SetLowStock(len(products))
	logger.Info("completed low stock scan",
		slog.Int("products", len(products)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
