package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// InsertContacts creates Contact records in batches of 200. Results from
// completed batches are returned alongside any error.
func InsertContacts(ctx context.Context, c Client, records []map[string]any) ([]CollectionResult, error) {
	var all []CollectionResult
	for start := 0; start < len(records); start += maxBatchSize {
		end := min(start+maxBatchSize, len(records))
		results, err := c.InsertCollection(ctx, "Contact", records[start:end])
		if err != nil {
			return all, eris.Wrap(err, fmt.Sprintf("sf: insert contacts batch %d-%d", start, end))
		}
		all = append(all, results...)
	}
	return all, nil
}
