package qr

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/veriqr/veriqr/internal/entity"
)

// DefaultChunkSize is the number of composition jobs in flight at once.
// Chunking caps peak memory at chunkSize decoded image buffers.
const DefaultChunkSize = 10

// Job is one product awaiting QR embedding. Jobs exist only for the
// duration of a single export request and are never persisted.
type Job struct {
	ProductID    string
	SerialNumber string
	BatchNumber  string
	QRHash       string
	QRPayload    []byte // rendered QR PNG bytes
}

// Result is the tagged outcome of one composition job. Exactly one of
// Buffer (Success=true) or Err (Success=false) is meaningful; downstream
// statistics and export steps switch on Success without re-inspecting
// error state.
type Result struct {
	Success      bool
	ProductID    string
	SerialNumber string
	QRHash       string
	Buffer       []byte
	Err          error
}

// ProgressFunc is invoked once per completed chunk with the number of jobs
// processed so far and the batch total.
type ProgressFunc func(done, total int)

// BatchComposer fans Embed out over a product list in bounded concurrency
// chunks, collecting per-item success and failure without aborting the
// batch.
type BatchComposer struct {
	chunkSize       int
	includeMetadata bool
	overlayCfg      OverlayConfig
	log             *logrus.Logger
}

// NewBatchComposer returns a composer processing chunkSize jobs
// concurrently (<= 0 means DefaultChunkSize). When includeMetadata is set,
// each composed design gets a serial/batch label; label failures degrade to
// the unlabeled design rather than failing the job.
func NewBatchComposer(chunkSize int, includeMetadata bool, log *logrus.Logger) *BatchComposer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BatchComposer{
		chunkSize:       chunkSize,
		includeMetadata: includeMetadata,
		overlayCfg:      DefaultOverlayConfig(),
		log:             log,
	}
}

// GenerateBatch composites every job's QR onto the base image at the given
// placement.
//
// Jobs run concurrently within a chunk; chunk N+1 does not start until all
// of chunk N has settled. One item's failure never cancels its siblings: a
// batch of 1000 with 3 bad images still returns 997 successes. Results are
// returned in job order.
func (b *BatchComposer) GenerateBatch(baseImage []byte, placement entity.Placement, jobs []Job, progress ProgressFunc) []Result {
	results := make([]Result, len(jobs))
	total := len(jobs)

	for start := 0; start < total; start += b.chunkSize {
		end := start + b.chunkSize
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = b.composeOne(baseImage, placement, jobs[i])
			}(i)
		}
		wg.Wait()

		if progress != nil {
			progress(end, total)
		}
	}

	return results
}

func (b *BatchComposer) composeOne(baseImage []byte, placement entity.Placement, job Job) Result {
	buf, err := Embed(baseImage, job.QRPayload, placement)
	if err != nil {
		composeErr := &ComposeError{ProductID: job.ProductID, Err: err}
		b.log.WithField("product_id", job.ProductID).WithError(err).Warn("design composition failed")
		return Result{
			Success:      false,
			ProductID:    job.ProductID,
			SerialNumber: job.SerialNumber,
			QRHash:       job.QRHash,
			Err:          composeErr,
		}
	}

	if b.includeMetadata {
		labeled, overlayErr := AddMetadataOverlay(buf, job.SerialNumber, job.BatchNumber, b.overlayCfg)
		if overlayErr != nil {
			b.log.WithField("product_id", job.ProductID).WithError(overlayErr).Warn("metadata overlay skipped")
		} else {
			buf = labeled
		}
	}

	return Result{
		Success:      true,
		ProductID:    job.ProductID,
		SerialNumber: job.SerialNumber,
		QRHash:       job.QRHash,
		Buffer:       buf,
	}
}
