package report

import (
	"context"
	"log/slog"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zielm/covid-analysis/internal/pipeline"
)

// #region collector
// Collector is an in-memory report sink. It keeps every accepted report.
type Collector struct {
	mu      sync.Mutex
	reports []pipeline.Result
	logger  *slog.Logger
}

// NewCollector returns an empty collector. A nil logger discards.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{logger: logger}
}

// Publish implements ReportSinkServer.
func (c *Collector) Publish(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	res, err := Decode(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	c.mu.Lock()
	c.reports = append(c.reports, res)
	c.mu.Unlock()
	c.logger.Info("report received", "run_id", res.RunID, "selected", len(res.Selected), "accuracy", res.Evaluation.Accuracy)
	return EncodeAck(Ack{RunID: res.RunID, Accepted: true}), nil
}

// Reports returns a copy of the accepted reports in arrival order.
func (c *Collector) Reports() []pipeline.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]pipeline.Result(nil), c.reports...)
}

// #endregion collector
