package collab

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJoinAndBroadcastExcludesOriginator(t *testing.T) {
	room := NewRoom("doc-1")
	var received []string
	room.Join(&Client{ID: "c1", Send: func(op YrsOperation) { received = append(received, "c1") }})
	room.Join(&Client{ID: "c2", Send: func(op YrsOperation) { received = append(received, "c2") }})

	room.Broadcast(YrsOperation{Kind: OpMapSet}, "c1")

	assert.Equal(t, []string{"c2"}, received)
}

func TestDrainWithNoInFlightGoesOfflineImmediately(t *testing.T) {
	room := NewRoom("doc-1")
	room.Drain(context.Background(), 50*time.Millisecond)
	assert.Equal(t, RoomOffline, room.Status)
}

func TestDrainWaitsForInFlightTransactionBeforeOffline(t *testing.T) {
	room := NewRoom("doc-1")
	room.BeginTransaction()

	done := make(chan struct{})
	go func() {
		room.Drain(context.Background(), time.Second)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, RoomDraining, room.Status, "must not finalize while a transaction is in flight")

	room.EndTransaction()
	<-done
	assert.Equal(t, RoomOffline, room.Status)
}

func TestDrainDeadlineForcesOfflineEvenIfStillInFlight(t *testing.T) {
	room := NewRoom("doc-1")
	room.BeginTransaction()
	room.Drain(context.Background(), 20*time.Millisecond)
	assert.Equal(t, RoomOffline, room.Status, "a draining room must not block forever on a stuck transaction")
}

func TestForceOfflineBypassesDrainWait(t *testing.T) {
	room := NewRoom("doc-1")
	room.BeginTransaction()
	room.ForceOffline()
	assert.Equal(t, RoomOffline, room.Status)
}

func TestUpdateAwarenessReplacesStateWholesale(t *testing.T) {
	room := NewRoom("doc-1")
	room.UpdateAwareness("c1", map[string]any{"cursor": 1}, 100)
	room.UpdateAwareness("c1", map[string]any{"cursor": 2}, 200)

	snap := room.AwarenessSnapshot()
	assert.Len(t, snap, 1)
	assert.Equal(t, 2, snap[0].State["cursor"])
}
