package deduplication

import (
	"context"
	"strconv"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/searchspace"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// FirstImportRow is the row number of the first data row of an import; row 1 is the header.
const FirstImportRow = 2

// ImportDuplicates maps an import row number to the existing contacts it duplicates.
type ImportDuplicates map[int]map[string]float64

// Importer checks rows about to be imported against existing contacts
type Importer struct {
	logger     ectologger.Logger
	builder    *searchspace.Builder
	finder     *matching.Finder
	ratioLimit float64
}

// NewImporter creates a new Importer. A zero ratioLimit means the scorer's overall threshold.
func NewImporter(logger ectologger.Logger, builder *searchspace.Builder, finder *matching.Finder, ratioLimit float64) *Importer {
	if ratioLimit <= 0 {
		ratioLimit = finder.Scorer().Config().OverallThreshold
	}
	return &Importer{
		logger:     logger,
		builder:    builder,
		finder:     finder,
		ratioLimit: ratioLimit,
	}
}

// FindImportDuplicates scores every row against space. Rows are numbered from
// FirstImportRow in input order, rows without any value are skipped, and only rows with
// at least one duplicate appear in the result.
func (im *Importer) FindImportDuplicates(ctx context.Context, rows []map[string]any, space matching.Space) (ImportDuplicates, error) {
	ctx, span := tracing.StartSpan(ctx, "deduplication.Importer.FindImportDuplicates")
	defer span.End()

	result := ImportDuplicates{}
	skipped := 0
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rowNumber := FirstImportRow + i
		if emptyRow(row) {
			skipped++
			continue
		}

		record := im.builder.FromFields("row_"+strconv.Itoa(rowNumber), row)
		for _, c := range im.finder.FindDuplicates(ctx, record, space, im.ratioLimit) {
			if result[rowNumber] == nil {
				result[rowNumber] = make(map[string]float64)
			}
			result[rowNumber][c.Record.ID] = c.Score
		}
	}

	im.logger.WithContext(ctx).WithFields(map[string]any{
		"rows":       len(rows),
		"skipped":    skipped,
		"duplicates": len(result),
	}).Info("Checked import for duplicates")

	return result, nil
}

func emptyRow(row map[string]any) bool {
	for _, v := range row {
		if normalizers.Prepare(v) != "" {
			return false
		}
	}
	return true
}
