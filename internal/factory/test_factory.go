package factory

import (
	"time"

	"github.com/mcoot/impostorgame/internal/dependencies/mocks"
	"github.com/mcoot/impostorgame/internal/services/auth"
	"github.com/mcoot/impostorgame/internal/services/game"
	"github.com/mcoot/impostorgame/internal/storage"
	"github.com/mcoot/impostorgame/internal/storage/memory"
	"github.com/mcoot/impostorgame/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App on memory storage with mocked clock and randomness
func NewTestApp() *TestApp {
	return NewTestAppWithStorage(memory.New())
}

// NewTestAppWithStorage creates a TestApp over the given storage backend
func NewTestAppWithStorage(store storage.Storage) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, mockClock, mockRandom, auth.DefaultConfig(), game.DefaultTimings(), testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
