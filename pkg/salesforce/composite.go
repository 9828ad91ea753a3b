package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// Custom Account fields carrying deduplication results.
const (
	FieldPossibleDuplicate = "Possible_Duplicate__c"
	FieldDuplicateGroupID  = "Duplicate_Group_Id__c"
)

// AccountUpdate holds an account ID and the fields to update.
type AccountUpdate struct {
	ID     string
	Fields map[string]any
}

// DuplicateFlagUpdate builds the update marking an Account as a member of a
// duplicate group.
func DuplicateFlagUpdate(id, groupID string) AccountUpdate {
	return AccountUpdate{
		ID: id,
		Fields: map[string]any{
			FieldPossibleDuplicate: true,
			FieldDuplicateGroupID:  groupID,
		},
	}
}

func (u AccountUpdate) record() CollectionRecord {
	return CollectionRecord{ID: u.ID, Fields: u.Fields}
}

// BulkUpdateAccounts splits updates into batches of 200 (SF Collections API limit)
// and sends them via UpdateCollection.
func BulkUpdateAccounts(ctx context.Context, c Client, updates []AccountUpdate) ([]CollectionResult, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult

	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))
		batch := updates[start:end]

		records := make([]CollectionRecord, len(batch))
		for i, u := range batch {
			records[i] = u.record()
		}

		results, err := c.UpdateCollection(ctx, "Account", records)
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk update accounts batch %d-%d", start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}

// FailedResults returns the results that did not succeed.
func FailedResults(results []CollectionResult) []CollectionResult {
	var failed []CollectionResult
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}
