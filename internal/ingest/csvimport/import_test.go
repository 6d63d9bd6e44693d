package csvimport

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aituber/presenter-pipeline/api/pipeline"
)

type recordingSubmitter struct {
	mu        sync.Mutex
	questions []pipeline.Question
}

func (r *recordingSubmitter) Submit(q pipeline.Question) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions = append(r.questions, q)
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestImportSkipsHeaderAndShortRows(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "id,question\n1,好きな食べ物は？\nonly-one-field\n2,趣味は？\n")
	sink := &recordingSubmitter{}
	imported, err := ImportFile(path, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imported != 2 {
		t.Fatalf("expected 2 imported, got %d", imported)
	}
	if len(sink.questions) != 2 || sink.questions[0].Text != "好きな食べ物は？" || sink.questions[1].Text != "趣味は？" {
		t.Fatalf("unexpected questions %+v", sink.questions)
	}
	for _, q := range sink.questions {
		if !q.IsAutoGenerated {
			t.Fatalf("imported questions must be auto-generated: %+v", q)
		}
		if q.AuthorName != DefaultAuthorName {
			t.Fatalf("unexpected author %q", q.AuthorName)
		}
	}
}

func TestImportHeaderOnlyFileYieldsNothing(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "id,question\n")
	sink := &recordingSubmitter{}
	imported, err := ImportFile(path, sink)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if imported != 0 || len(sink.questions) != 0 {
		t.Fatalf("expected no imports, got %d", imported)
	}
}

func TestImportMissingFileFails(t *testing.T) {
	t.Parallel()

	if _, err := ImportFile(filepath.Join(t.TempDir(), "absent.csv"), &recordingSubmitter{}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
