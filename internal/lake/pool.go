package lake

import (
	"context"
	"sync"

	"github.com/quantmill/marketlake/internal/logging"
	"github.com/quantmill/marketlake/internal/source"
)

// BatchResult pairs a file with its ingest outcome. Err is non-nil for
// file-level failures; the batch keeps going regardless.
type BatchResult struct {
	Meta   source.FileMetadata
	Result Result
	Err    error
}

// IngestBatch fans metas out to a fixed pool of workers and collects
// one result per file, in input order. Files are independent: a failure
// in one never aborts the others, and context cancellation stops
// dispatching but lets in-flight files finish.
func (in *Ingestor) IngestBatch(ctx context.Context, metas []source.FileMetadata, parse Parser, opts Options, workers int) []BatchResult {
	if workers < 1 {
		workers = 1
	}
	if workers > len(metas) {
		workers = len(metas)
	}

	type job struct {
		index int
		meta  source.FileMetadata
	}

	results := make([]BatchResult, len(metas))
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log := logging.WorkerLogger(workerID)
			for j := range jobs {
				res, err := in.Ingest(ctx, j.meta, parse, opts)
				if err != nil {
					log.Error("ingest failed", "path", j.meta.Path, "error", err)
				}
				results[j.index] = BatchResult{Meta: j.meta, Result: res, Err: err}
			}
		}(w)
	}

	for i, meta := range metas {
		select {
		case <-ctx.Done():
			results[i] = BatchResult{Meta: meta, Err: ctx.Err()}
			continue
		case jobs <- job{index: i, meta: meta}:
		}
	}
	close(jobs)
	wg.Wait()
	return results
}
