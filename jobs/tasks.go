package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pedroojr/xml-merch-importer/internal/nfe"
	"github.com/pedroojr/xml-merch-importer/internal/products"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeImportProcess is the task type for background invoice imports.
	TaskTypeImportProcess = "import:process"
)

// ImportProcessPayload carries the raw invoice document to parse.
type ImportProcessPayload struct {
	XML []byte `json:"xml"`
}

// NewImportProcessTask constructs an Asynq task wrapping one invoice.
func NewImportProcessTask(xmlData []byte) (*asynq.Task, error) {
	data, err := json.Marshal(ImportProcessPayload{XML: xmlData})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeImportProcess, data,
		asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}

// NewImportProcessHandler returns the handler processing
// TaskTypeImportProcess tasks. Malformed documents and duplicate access
// keys are terminal failures; anything else retries.
func NewImportProcessHandler(logger *slog.Logger, svc *products.Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ImportProcessPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		detail, err := svc.ImportInvoice(ctx, payload.XML)
		switch {
		case err == nil:
			logger.Info("invoice imported",
				slog.String("import_id", detail.Import.ID.String()),
				slog.String("invoice", detail.Import.Number),
				slog.Int("items", detail.Import.ItemCount))
			return nil
		case errors.Is(err, nfe.ErrMalformedDocument),
			errors.Is(err, products.ErrDuplicateImport):
			logger.Warn("invoice import rejected", slog.Any("error", err))
			return asynq.SkipRetry
		default:
			return err
		}
	}
}
