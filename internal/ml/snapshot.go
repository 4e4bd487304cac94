package ml

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/factorlab/internal/models"
)

// Snapshot is a trained forest and the context it was trained in
type Snapshot struct {
	ID           uuid.UUID
	Forest       *Forest
	Features     []string
	AsOf         time.Time
	TrainingRows int
	TrainedAt    time.Time
}

// Importances maps feature names to the forest's importances
func (s *Snapshot) Importances() map[string]float64 {
	values := s.Forest.FeatureImportances()
	out := make(map[string]float64, len(values))
	for i, v := range values {
		if i < len(s.Features) {
			out[s.Features[i]] = v
		}
	}
	return out
}

// ModelStore owns the current snapshot. A retrain replaces it wholesale under
// the write lock; predictions hold the read lock for the whole batch.
type ModelStore struct {
	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewModelStore creates an empty store
func NewModelStore() *ModelStore {
	return &ModelStore{}
}

// Replace installs a new snapshot
func (s *ModelStore) Replace(snapshot *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
}

// Current returns the installed snapshot, if any
func (s *ModelStore) Current() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.snapshot != nil
}

// Predict scores each feature vector with the current snapshot
func (s *ModelStore) Predict(features [][]float64) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil, models.ErrUntrainedModel
	}
	out := make([]float64, len(features))
	for i, x := range features {
		v, err := s.snapshot.Forest.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
