package search

import (
	"context"
	"testing"

	"github.com/hyperjump/searchsync/internal/models"
)

func BenchmarkTranslator_Translate(b *testing.B) {
	tr := NewTranslator(20, nil)
	req := &models.SearchRequest{Query: "summer fair parking", Type: "event", Page: 2, PerPage: 10}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = tr.Translate(req)
	}
}

func BenchmarkEngine_Search(b *testing.B) {
	e := NewEngine(newCannedIndex(), "test_1_content", NewTranslator(20, nil))
	ctx := WithSession(context.Background(), NewSession())
	req := &models.SearchRequest{Query: "parking", Type: "event"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Search(ctx, req)
	}
}
