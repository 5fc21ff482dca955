package streaming

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(capacity int) *Manager {
	return NewManager(capacity)
}

func TestPublishSubscribe(t *testing.T) {
	m := newTestManager(16)
	ch := m.Subscribe("wf-1", 8)
	defer m.Unsubscribe("wf-1", ch)

	m.Publish("wf-1", Event{WorkflowID: "wf-1", Type: "AGENT_STARTED", AgentID: "cybersecurity_agent", Timestamp: time.Now()})

	select {
	case evt := <-ch:
		assert.Equal(t, "AGENT_STARTED", evt.Type)
		assert.Equal(t, "cybersecurity_agent", evt.AgentID)
		assert.Equal(t, uint64(0), evt.Seq)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSequenceOrdering(t *testing.T) {
	m := newTestManager(16)
	ch := m.Subscribe("wf-seq", 16)
	defer m.Unsubscribe("wf-seq", ch)

	for i := 0; i < 5; i++ {
		m.Publish("wf-seq", Event{WorkflowID: "wf-seq", Type: "DATA_PROCESSING", Message: fmt.Sprintf("step %d", i)})
	}

	for i := 0; i < 5; i++ {
		evt := <-ch
		assert.Equal(t, uint64(i), evt.Seq)
	}
}

func TestReplaySince(t *testing.T) {
	m := newTestManager(16)
	for i := 0; i < 6; i++ {
		m.Publish("wf-replay", Event{WorkflowID: "wf-replay", Type: "DATA_PROCESSING"})
	}

	events := m.ReplaySince("wf-replay", 2)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(3), events[0].Seq)
	assert.Equal(t, uint64(5), events[2].Seq)

	assert.Nil(t, m.ReplaySince("unknown", 0))
}

func TestRingOverwritesOldest(t *testing.T) {
	m := newTestManager(4)
	for i := 0; i < 10; i++ {
		m.Publish("wf-ring", Event{WorkflowID: "wf-ring", Type: "DATA_PROCESSING"})
	}

	events := m.ReplaySince("wf-ring", 0)
	require.Len(t, events, 4)
	assert.Equal(t, uint64(6), events[0].Seq)
	assert.Equal(t, uint64(9), events[3].Seq)
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	m := newTestManager(16)
	ch := m.Subscribe("wf-slow", 1)
	defer m.Unsubscribe("wf-slow", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			m.Publish("wf-slow", Event{WorkflowID: "wf-slow", Type: "DATA_PROCESSING"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	// A client disconnecting while the workflow emits must not panic the
	// publisher or race on the subscriber map.
	m := newTestManager(16)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				m.Publish("wf-churn", Event{WorkflowID: "wf-churn", Type: "DATA_PROCESSING"})
			}
		}
	}()

	for i := 0; i < 500; i++ {
		ch := m.Subscribe("wf-churn", 1)
		m.Unsubscribe("wf-churn", ch)
		m.ReplaySince("wf-churn", 0)
	}
	close(stop)
	wg.Wait()
}

func TestDropReleasesHistory(t *testing.T) {
	m := newTestManager(8)
	m.Publish("wf-drop", Event{WorkflowID: "wf-drop", Type: "WORKFLOW_COMPLETED"})
	require.NotNil(t, m.ReplaySince("wf-drop", 0))

	m.Drop("wf-drop")
	assert.Nil(t, m.ReplaySince("wf-drop", 0))
}
