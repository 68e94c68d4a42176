package room

import (
	"fmt"
	"testing"

	"github.com/judgegodwins/chess-relay/game"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(game.NewChess().NewPosition)
}

func TestGetOrCreate(t *testing.T) {
	t.Run("creates once", func(t *testing.T) {
		reg := newTestRegistry()

		first, created := reg.GetOrCreate("r1")
		require.True(t, created)
		require.NotNil(t, first.Position())
		require.Equal(t, StatusAwaitingOpponent, first.Status())

		again, created := reg.GetOrCreate("r1")
		require.False(t, created)
		require.Same(t, first, again)
	})

	t.Run("concurrent first callers observe one room", func(t *testing.T) {
		reg := newTestRegistry()

		const n = 64
		rooms := make([]*Room, n)
		creations := make([]bool, n)

		var wg conc.WaitGroup
		for i := 0; i < n; i++ {
			i := i
			wg.Go(func() {
				rooms[i], creations[i] = reg.GetOrCreate("race")
			})
		}
		wg.Wait()

		created := 0
		for i := 0; i < n; i++ {
			require.Same(t, rooms[0], rooms[i])
			if creations[i] {
				created++
			}
		}
		require.Equal(t, 1, created)
		require.Equal(t, 1, reg.Len())
	})
}

func TestRemove(t *testing.T) {
	reg := newTestRegistry()
	reg.GetOrCreate("r1")
	reg.Bind("conn-1", "r1")

	reg.Remove("r1")
	reg.Remove("r1")
	reg.Remove("never-existed")

	_, ok := reg.Get("r1")
	require.False(t, ok)
	_, ok = reg.RoomOf("conn-1")
	require.False(t, ok)
	require.Zero(t, reg.Len())
}

func TestDestroyIgnoresReplacedRoom(t *testing.T) {
	reg := newTestRegistry()

	old, _ := reg.GetOrCreate("r1")
	reg.Remove("r1")
	fresh, _ := reg.GetOrCreate("r1")

	old.Lock()
	reg.Destroy(old)
	old.Unlock()

	require.True(t, old.Closed())
	got, ok := reg.Get("r1")
	require.True(t, ok)
	require.Same(t, fresh, got)
}

func TestMembershipIndex(t *testing.T) {
	reg := newTestRegistry()

	_, ok := reg.RoomOf("c1")
	require.False(t, ok)

	reg.Bind("c1", "r1")
	id, ok := reg.RoomOf("c1")
	require.True(t, ok)
	require.Equal(t, "r1", id)

	reg.Unbind("c1")
	reg.Unbind("c1")
	_, ok = reg.RoomOf("c1")
	require.False(t, ok)
}

func TestRoomsSnapshotIsSorted(t *testing.T) {
	reg := newTestRegistry()
	for i := 3; i > 0; i-- {
		reg.GetOrCreate(fmt.Sprintf("room-%d", i))
	}

	rooms := reg.Rooms()
	require.Len(t, rooms, 3)
	require.Equal(t, "room-1", rooms[0].ID())
	require.Equal(t, "room-3", rooms[2].ID())
}

func TestSeats(t *testing.T) {
	rm := newRoom("r1", game.NewChess().NewPosition())

	a, ok := rm.Sit("x", "xavier")
	require.True(t, ok)
	require.Equal(t, game.SideA, a.Side)

	b, ok := rm.Sit("y", "")
	require.True(t, ok)
	require.Equal(t, game.SideB, b.Side)
	require.True(t, rm.Full())

	_, ok = rm.Sit("z", "")
	require.False(t, ok)

	opp, ok := rm.Opponent("x")
	require.True(t, ok)
	require.Equal(t, ConnID("y"), opp.Conn)

	_, ok = rm.Vacate("x")
	require.True(t, ok)
	require.Equal(t, 1, rm.Count())

	// the remaining participant keeps side B, the newcomer takes side A
	c, ok := rm.Sit("z", "")
	require.True(t, ok)
	require.Equal(t, game.SideA, c.Side)

	seat, ok := rm.Seat("y")
	require.True(t, ok)
	require.Equal(t, game.SideB, seat.Side)
	require.ElementsMatch(t, []ConnID{"z", "y"}, rm.Conns())
}
