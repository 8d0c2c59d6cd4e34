package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu            sync.Mutex
	dispatchCalls int
	cleanupCalls  int
	dispatchCount int
	dispatchErr   error
}

func (f *fakeDispatcher) DispatchDue(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatchCalls++
	return f.dispatchCount, f.dispatchErr
}

func (f *fakeDispatcher) ReleaseStaleReservations(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanupCalls++
	return 0, nil
}

func TestNewService(t *testing.T) {
	svc := NewService(&fakeDispatcher{})
	assert.NotNil(t, svc)
	assert.NotNil(t, svc.stopChan)
}

func TestService_StartAndStop(t *testing.T) {
	svc := NewService(&fakeDispatcher{})

	// Start should not panic
	svc.Start()
	time.Sleep(10 * time.Millisecond)

	// Stop should not panic
	svc.Stop()
	time.Sleep(10 * time.Millisecond)
}

func TestService_StopBeforeStart(t *testing.T) {
	svc := NewService(&fakeDispatcher{})

	// Stop before start should not panic
	svc.Stop()
}

func TestService_RunNow(t *testing.T) {
	fake := &fakeDispatcher{dispatchCount: 3}
	svc := NewService(fake)

	count, err := svc.RunNow()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, fake.dispatchCalls)
}

func TestService_RunNow_Error(t *testing.T) {
	fake := &fakeDispatcher{dispatchErr: errors.New("redis down")}
	svc := NewService(fake)

	_, err := svc.RunNow()
	assert.Error(t, err)
}
