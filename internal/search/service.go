package search

import (
	"context"

	"go.uber.org/zap"
)

// Service tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts Searcher
	log   *zap.Logger
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, pgfts Searcher, log *zap.Logger) *Service {
	return &Service{meili: meili, pgfts: pgfts, log: log.Named("search")}
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "meilisearch"}
		}
		s.log.Warn("meilisearch error, falling back to pgfts", zap.Error(err))
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		s.log.Error("pgfts search failed", zap.Error(err))
		return Response{Results: []Result{}, Query: q.Text, Engine: "postgres"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "postgres"}
}

// IndexMinutes pushes a minutes record to Meilisearch in the background.
func (s *Service) IndexMinutes(r MinutesRecord) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.IndexMinutes(r); err != nil {
			s.log.Warn("index minutes", zap.String("minutes_id", r.ID), zap.Error(err))
		}
	}()
}

func (s *Service) IndexComment(r CommentRecord) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.IndexComments(r); err != nil {
			s.log.Warn("index comment", zap.String("comment_id", r.ID), zap.Error(err))
		}
	}()
}

func (s *Service) DeleteComment(id string) {
	if !s.meiliReady() {
		return
	}
	go func() {
		if err := s.meili.DeleteComment(id); err != nil {
			s.log.Warn("delete comment from index", zap.String("comment_id", id), zap.Error(err))
		}
	}()
}

// ReindexAllFromPG copies every minutes and comment row into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	loader, ok := s.pgfts.(*PgFTS)
	if !s.meiliReady() || !ok {
		return
	}
	minutes, comments, err := loader.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error("reindex load failed", zap.Error(err))
		return
	}
	if err := s.meili.IndexMinutes(minutes...); err != nil {
		s.log.Error("reindex minutes", zap.Error(err))
	}
	if err := s.meili.IndexComments(comments...); err != nil {
		s.log.Error("reindex comments", zap.Error(err))
	}
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
