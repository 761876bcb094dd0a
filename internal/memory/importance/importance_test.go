package importance

import (
	"testing"

	"github.com/lumenmind/memoryengine/internal/domain"
)

func TestHeuristic_FileSourcedScoresHigher(t *testing.T) {
	fileRec := &domain.RawRecord{ContentType: domain.ContentTypeUploadedDocumentContent, Content: "quarterly revenue was $4.2M"}
	chatRec := &domain.RawRecord{ContentType: domain.ContentTypeUserChat, Content: "quarterly revenue was $4.2M"}

	if Heuristic(fileRec) <= Heuristic(chatRec) {
		t.Fatalf("expected file-sourced score > chat score, got %v vs %v", Heuristic(fileRec), Heuristic(chatRec))
	}
}

func TestHeuristic_NeverExceedsCap(t *testing.T) {
	rec := &domain.RawRecord{
		ContentType: domain.ContentTypeUploadedDocumentContent,
		Content:     "In 2024, Jane Smith met Bob Jones at Acme Corp in San Francisco? 123456789 " + string(make([]byte, 300)),
	}
	if got := Heuristic(rec); got > 0.9 {
		t.Fatalf("expected heuristic capped at 0.9, got %v", got)
	}
}

func TestHeuristic_ShortPlainChatIsLow(t *testing.T) {
	rec := &domain.RawRecord{ContentType: domain.ContentTypeUserChat, Content: "ok thanks"}
	if got := Heuristic(rec); got >= 0.5 {
		t.Fatalf("expected low score for filler chat, got %v", got)
	}
}

func TestHeuristic_SkipImportanceCheckIsCallerHandled(t *testing.T) {
	// Heuristic itself has no opinion on SkipImportanceCheck; that short
	// circuit lives in evaluator.Score before Heuristic is ever reached.
	rec := &domain.RawRecord{ContentType: domain.ContentTypeUserChat, Content: "ok", SkipImportanceCheck: true}
	if got := Heuristic(rec); got >= 1.0 {
		t.Fatalf("heuristic should not special-case SkipImportanceCheck, got %v", got)
	}
}
