// Package csvimport bulk-loads questions from a CSV file, typically used to
// seed a stream with prepared material before going live.
package csvimport

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/aituber/presenter-pipeline/api/pipeline"
	"github.com/aituber/presenter-pipeline/internal/observability/telemetry"
)

// Submitter accepts imported questions.
type Submitter interface {
	Submit(q pipeline.Question)
}

// DefaultAuthorName is attached to imported rows, which carry no author.
const DefaultAuthorName = "名無しさん"

// ImportFile reads path and submits one question per data row. The first row
// is a header and is skipped; rows with fewer than two fields are skipped.
// The question text is the second field. Imported questions are treated as
// auto-generated so live audience material keeps priority over them.
func ImportFile(path string, sink Submitter) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open question csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parse question csv: %w", err)
	}

	imported := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 2 {
			continue
		}
		sink.Submit(pipeline.NewQuestion(row[1], DefaultAuthorName, "", true))
		imported++
	}

	telemetry.DefaultEmitter().EmitLog("info", "question csv imported",
		map[string]string{"path": path, "imported": strconv.Itoa(imported)},
		telemetry.Correlation{Stage: "csvimport"})
	return imported, nil
}
