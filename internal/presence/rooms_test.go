package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/parlorchat/parlor/internal/protocol"
)

func TestDirectory_JoinAndSnapshot(t *testing.T) {
	d := NewDirectory()
	d.Join(newTestSession("c1", "r1"))
	d.Join(newTestSession("c2", "r1"))
	d.Join(newTestSession("c3", "r2"))

	roster := d.Snapshot("r1")
	assert.Len(t, roster, 2)
	assert.Equal(t, "nick-c1", roster["c1"].Nickname)
	assert.Equal(t, "nick-c2", roster["c2"].Nickname)

	assert.Len(t, d.Snapshot("r2"), 1)
	assert.Empty(t, d.Snapshot("empty"))
}

func TestDirectory_SnapshotReflectsPosition(t *testing.T) {
	d := NewDirectory()
	sess := newTestSession("c1", "r1")
	d.Join(sess)

	sess.SetPosition(protocol.Position{X: 10, Y: 20})

	roster := d.Snapshot("r1")
	assert.Equal(t, float64(10), roster["c1"].X)
	assert.Equal(t, float64(20), roster["c1"].Y)
}

func TestDirectory_LeavePrunesEmptyRoom(t *testing.T) {
	d := NewDirectory()
	d.Join(newTestSession("c1", "r1"))
	d.Join(newTestSession("c2", "r1"))
	assert.Equal(t, 1, d.RoomCount())

	d.Leave("r1", "c1")
	assert.Equal(t, 1, d.RoomCount())

	d.Leave("r1", "c2")
	assert.Equal(t, 0, d.RoomCount(), "empty room must be pruned")
}

func TestDirectory_LeaveUnknown(t *testing.T) {
	d := NewDirectory()
	d.Leave("nowhere", "ghost") // must not panic

	d.Join(newTestSession("c1", "r1"))
	d.Leave("r1", "ghost")
	assert.Len(t, d.Members("r1"), 1)
}

func TestDirectory_BroadcastExcludes(t *testing.T) {
	d := NewDirectory()
	s1 := newTestSession("c1", "r1")
	s2 := newTestSession("c2", "r1")
	s3 := newTestSession("c3", "r2")
	d.Join(s1)
	d.Join(s2)
	d.Join(s3)

	delivered := d.Broadcast("r1", []byte("frame"), "c1")
	assert.Equal(t, 1, delivered)

	select {
	case frame := <-s2.outbox.Frames():
		assert.Equal(t, []byte("frame"), frame)
	default:
		t.Fatal("c2 did not receive the broadcast")
	}

	select {
	case <-s1.outbox.Frames():
		t.Fatal("excluded sender received its own broadcast")
	default:
	}

	select {
	case <-s3.outbox.Frames():
		t.Fatal("broadcast leaked into another room")
	default:
	}
}

func TestDirectory_BroadcastSkipsClosedOutbox(t *testing.T) {
	d := NewDirectory()
	s1 := newTestSession("c1", "r1")
	s2 := newTestSession("c2", "r1")
	d.Join(s1)
	d.Join(s2)

	require.NoError(t, s1.outbox.Close())

	delivered := d.Broadcast("r1", []byte("frame"), "")
	assert.Equal(t, 1, delivered, "closed outbox must be skipped, not block the fan-out")
}

func TestDirectory_MembersIsACopy(t *testing.T) {
	d := NewDirectory()
	d.Join(newTestSession("c1", "r1"))

	members := d.Members("r1")
	require.Len(t, members, 1)

	d.Leave("r1", "c1")
	assert.Len(t, members, 1, "snapshot must not observe a later leave")
}

func TestDirectory_Stats(t *testing.T) {
	d := NewDirectory()
	d.Join(newTestSession("c1", "r1"))
	d.Join(newTestSession("c2", "r1"))
	d.Join(newTestSession("c3", "r2"))

	rooms, members := d.Stats()
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 3, members)
}

func TestDirectory_ConcurrentJoinLeave(t *testing.T) {
	d := NewDirectory()
	const n = 100
	var wg sync.WaitGroup

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			d.Join(newTestSession(fmt.Sprintf("c%d", i), "r1"))
		}(i)
	}
	wg.Wait()
	assert.Len(t, d.Members("r1"), n)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			d.Leave("r1", fmt.Sprintf("c%d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, d.RoomCount())
}

func TestPropertyRoomOccupancyConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := NewDirectory()
		roomsList := []string{"r1", "r2", "r3"}
		numSessions := rapid.IntRange(1, 20).Draw(t, "num_sessions")

		byRoom := make(map[string][]string)
		for i := 0; i < numSessions; i++ {
			roomIdx := rapid.IntRange(0, len(roomsList)-1).Draw(t, "room_idx")
			room := roomsList[roomIdx]
			id := fmt.Sprintf("c%d", i)
			d.Join(newTestSession(id, room))
			byRoom[room] = append(byRoom[room], id)
		}

		numLeaves := rapid.IntRange(0, numSessions).Draw(t, "num_leaves")
		for i := 0; i < numLeaves; i++ {
			roomIdx := rapid.IntRange(0, len(roomsList)-1).Draw(t, "leave_room")
			sessIdx := rapid.IntRange(0, numSessions-1).Draw(t, "leave_sess")
			d.Leave(roomsList[roomIdx], fmt.Sprintf("c%d", sessIdx))
		}

		// Occupied rooms and member totals agree across Stats, Members,
		// and Snapshot.
		rooms, members := d.Stats()
		total := 0
		occupied := 0
		for _, room := range roomsList {
			n := len(d.Members(room))
			if n != len(d.Snapshot(room)) {
				t.Fatalf("room %s: Members and Snapshot disagree", room)
			}
			total += n
			if n > 0 {
				occupied++
			}
		}
		if total != members {
			t.Fatalf("member sum %d != stats members %d", total, members)
		}
		if occupied != rooms {
			t.Fatalf("occupied rooms %d != stats rooms %d", occupied, rooms)
		}
	})
}
