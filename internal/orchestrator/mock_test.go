package orchestrator

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/extraction-service/internal/model"
)

// --- Discoverer mock ---

type mockDiscoverer struct {
	mock.Mock
}

func (m *mockDiscoverer) DiscoverPages(ctx context.Context, url, requirements string) ([]model.WorkUnit, error) {
	args := m.Called(ctx, url, requirements)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.WorkUnit), args.Error(1)
}

// --- Extractor mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractPage(ctx context.Context, unit model.WorkUnit, requirements string) (string, error) {
	args := m.Called(ctx, unit, requirements)
	return args.String(0), args.Error(1)
}

// --- Notifier recorder ---

type recordingNotifier struct {
	mu   sync.Mutex
	sent []any
}

func (n *recordingNotifier) Send(sessionID string, v any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, v)
	return true
}

func (n *recordingNotifier) messages() []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]any, len(n.sent))
	copy(out, n.sent)
	return out
}
