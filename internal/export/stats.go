// Package export packages batches of composited designs into downloadable
// archives: ZIP with an optional manifest, one-image-per-page PDF, or N-up
// grid PDF.
//
// Every packager consumes the tagged qr.Result list produced by the batch
// composer. Failed items are skipped by the archive writers and accounted
// for in Stats, which is computable from the result list alone regardless
// of the chosen output format.
package export

import (
	"fmt"

	"github.com/veriqr/veriqr/internal/qr"
)

// FailedItem identifies one job that failed composition.
type FailedItem struct {
	ProductID string `json:"product_id"`
	Error     string `json:"error"`
}

// Stats summarizes a batch independent of export format.
type Stats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`

	// SuccessRate is a percentage with two decimals, e.g. "99.70".
	SuccessRate string       `json:"success_rate"`
	FailedItems []FailedItem `json:"failed_items"`
}

// ComputeStats derives batch statistics from composition results.
func ComputeStats(results []qr.Result) Stats {
	stats := Stats{
		Total:       len(results),
		FailedItems: []FailedItem{},
	}
	for _, r := range results {
		if r.Success {
			stats.Successful++
			continue
		}
		stats.Failed++
		message := "composition failed"
		if r.Err != nil {
			message = r.Err.Error()
		}
		stats.FailedItems = append(stats.FailedItems, FailedItem{
			ProductID: r.ProductID,
			Error:     message,
		})
	}

	rate := 0.0
	if stats.Total > 0 {
		rate = float64(stats.Successful) / float64(stats.Total) * 100
	}
	stats.SuccessRate = fmt.Sprintf("%.2f", rate)
	return stats
}
