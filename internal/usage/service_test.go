package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/proflinker/api/internal/generation"
	"github.com/proflinker/api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu   sync.Mutex
	logs []models.GenerationLog
	seen chan struct{}
}

func (m *memStore) Insert(_ context.Context, l models.GenerationLog) error {
	m.mu.Lock()
	m.logs = append(m.logs, l)
	m.mu.Unlock()
	if m.seen != nil {
		m.seen <- struct{}{}
	}
	return nil
}

func (m *memStore) Recent(_ context.Context, f Filter) ([]models.GenerationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.GenerationLog{}
	for _, l := range m.logs {
		if f.Kind != "" && l.Kind != f.Kind {
			continue
		}
		out = append(out, l)
	}
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func TestObserverRecordsRun(t *testing.T) {
	store := &memStore{seen: make(chan struct{}, 1)}
	svc := NewService(store, zap.NewNop())
	user := uuid.New()

	svc.Observer(user)(generation.Report{
		Attempt: 2,
		Request: generation.Request{Kind: models.KindProfessors, FieldOfInterest: "Optics"},
		Status:  generation.StatusFailed,
		Err:     generation.ErrTimeout,
		Latency: 1500 * time.Millisecond,
	})

	select {
	case <-store.seen:
	case <-time.After(time.Second):
		t.Fatal("usage was not recorded")
	}

	logs, err := svc.Recent(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	l := logs[0]
	assert.Equal(t, user, l.UserID)
	assert.Equal(t, models.KindProfessors, l.Kind)
	assert.Equal(t, 2, l.Attempt)
	assert.Equal(t, "failed", l.Status)
	assert.Equal(t, "timeout", l.ErrorKind)
	assert.Equal(t, int64(1500), l.LatencyMs)
}

func TestRecentFilterAndLimit(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, zap.NewNop())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, models.GenerationLog{Kind: models.KindUniversities}))
	}
	require.NoError(t, svc.Record(ctx, models.GenerationLog{Kind: models.KindProfessors}))

	logs, err := svc.Recent(ctx, Filter{Kind: models.KindUniversities, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestNilServiceIsSafe(t *testing.T) {
	var svc *Service
	assert.NoError(t, svc.Record(context.Background(), models.GenerationLog{}))
	logs, err := svc.Recent(context.Background(), Filter{})
	assert.NoError(t, err)
	assert.Empty(t, logs)
}
