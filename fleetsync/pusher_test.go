package fleetsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

func TestPusherAllSucceed(t *testing.T) {
	mocks := []*MockInstance{startMock(t), startMock(t), startMock(t)}
	instances := make([]interfaces.InstanceInfo, len(mocks))
	for i, m := range mocks {
		instances[i] = m.Info()
	}

	pusher := NewPusher(testClient(2*time.Second), testLogger())
	report := pusher.Push(context.Background(), instances, testKeyID, mustMaterial(t))

	assert.Len(t, report.Succeeded(), 3)
	assert.Empty(t, report.Failed())
}

func TestPusherPartialSuccess(t *testing.T) {
	healthy := startMock(t)
	rejecting := startMock(t)
	rejecting.RejectWith("maintenance window")

	instances := []interfaces.InstanceInfo{
		healthy.Info(),
		rejecting.Info(),
		{Name: "lb-gone", Addr: "127.0.0.1:1", Network: "tcp"},
	}

	pusher := NewPusher(testClient(time.Second), testLogger())
	report := pusher.Push(context.Background(), instances, testKeyID, mustMaterial(t))

	succeeded := report.Succeeded()
	require.Len(t, succeeded, 1)
	assert.Equal(t, healthy.Info().Name, succeeded[0].Name)

	failed := report.Failed()
	require.Len(t, failed, 2)
	byName := map[string]error{}
	for _, res := range failed {
		byName[res.Instance.Name] = res.Err
	}
	assert.ErrorIs(t, byName[rejecting.Info().Name], interfaces.ErrRejectedByInstance)
	assert.Error(t, byName["lb-gone"])
}

// Retries through a completion set never re-send to an instance that
// already accepted, even when other instances keep failing.
func TestPushWithRetriesAtMostOncePerInstance(t *testing.T) {
	accepting := startMock(t)
	rejecting := startMock(t)
	rejecting.RejectWith("stuck")

	instances := []interfaces.InstanceInfo{accepting.Info(), rejecting.Info()}
	pusher := NewPusher(testClient(time.Second), testLogger())

	done := NewCompletionSet()
	report := pusher.PushWithRetries(context.Background(), instances, testKeyID, mustMaterial(t), 3, done)

	assert.Equal(t, 1, accepting.InsertCount(), "accepted instance must not see retries")
	assert.Len(t, report.Succeeded(), 1)
	require.Len(t, report.Failed(), 1)
	assert.ErrorIs(t, report.Failed()[0].Err, interfaces.ErrRejectedByInstance)
	assert.True(t, done.Done(accepting.Info()))
	assert.False(t, done.Done(rejecting.Info()))
}

func TestPushWithRetriesRecoversAfterTransientFailure(t *testing.T) {
	flaky := startMock(t)
	flaky.RejectWith("not ready")

	pusher := NewPusher(testClient(time.Second), testLogger())
	done := NewCompletionSet()

	report := pusher.PushWithRetries(context.Background(), []interfaces.InstanceInfo{flaky.Info()}, testKeyID, mustMaterial(t), 1, done)
	require.Len(t, report.Failed(), 1)

	flaky.RejectWith("")
	report = pusher.PushWithRetries(context.Background(), []interfaces.InstanceInfo{flaky.Info()}, testKeyID, mustMaterial(t), 1, done)
	assert.Len(t, report.Succeeded(), 1)
	assert.Equal(t, 1, flaky.InsertCount())

	// A third drive sends nothing at all.
	report = pusher.PushWithRetries(context.Background(), []interfaces.InstanceInfo{flaky.Info()}, testKeyID, mustMaterial(t), 1, done)
	assert.Len(t, report.Succeeded(), 1)
	assert.Equal(t, 1, flaky.InsertCount())
}

func TestCompletionSetRemaining(t *testing.T) {
	a := interfaces.InstanceInfo{Name: "lb-a", Addr: "10.0.0.1:9999"}
	b := interfaces.InstanceInfo{Name: "lb-b", Addr: "10.0.0.2:9999"}
	c := interfaces.InstanceInfo{Name: "lb-c", Addr: "10.0.0.3:9999"}

	done := NewCompletionSet()
	done.Record(b)

	remaining := done.Remaining([]interfaces.InstanceInfo{a, b, c})
	require.Len(t, remaining, 2)
	assert.Equal(t, "lb-a", remaining[0].Name)
	assert.Equal(t, "lb-c", remaining[1].Name)
}
