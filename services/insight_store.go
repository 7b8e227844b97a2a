package services

import (
	"sync"

	"salesassistant/models"
)

// InsightStore keeps generated insights in generation order. There is no
// delete or update.
type InsightStore struct {
	mu       sync.RWMutex
	insights []models.Insight
}

func NewInsightStore() *InsightStore {
	return &InsightStore{}
}

// Append stores the insight and returns its 1-based index.
func (s *InsightStore) Append(insight models.Insight) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insights = append(s.insights, insight)
	return len(s.insights)
}

// List never returns nil, so an empty store encodes as [].
func (s *InsightStore) List() []models.IndexedInsight {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.IndexedInsight, 0, len(s.insights))
	for i, in := range s.insights {
		out = append(out, models.IndexedInsight{Index: i + 1, Insight: in})
	}
	return out
}

func (s *InsightStore) Get(index int) (models.IndexedInsight, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 1 || index > len(s.insights) {
		return models.IndexedInsight{}, false
	}
	return models.IndexedInsight{Index: index, Insight: s.insights[index-1]}, true
}

func (s *InsightStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.insights)
}
