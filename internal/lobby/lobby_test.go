package lobby

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
	"github.com/DoyleJ11/map-pickban-backend/internal/errs"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further snapshots possible
			return
		}
		t.Fatalf("expected no snapshot within %v, but got: %+v", within, s)
	case <-time.After(within):
		// good: no snapshot
	}
}

func recvClosed(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("outbox not closed within %v", within)
		}
	}
}

func newState(t *testing.T, format engine.Format) engine.State {
	t.Helper()
	s, err := engine.NewState("ABC123", format, "admin-token")
	require.NoError(t, err)
	return s
}

func seqTokens() func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "seat-" + string(rune('0'+n)), nil
	}
}

func joinRep(t *testing.T, l *Lobby, clientID, name string, out chan Snapshot) JoinResult {
	t.Helper()
	res, err := l.Join(context.Background(), Join{
		ClientID: clientID,
		Role:     engine.RoleRepresentative,
		Name:     name,
		Outbox:   out,
	})
	require.NoError(t, err)
	return res
}

func TestLobby_Join_AssignsSeatAndBroadcasts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{NewToken: seqTokens()})

	red := make(chan Snapshot, 4)
	res := joinRep(t, l, "c-red", "Red", red)
	assert.Equal(t, engine.SideA, res.Side)
	assert.Equal(t, "seat-1", res.Token)

	snap := recvSnapshot(t, red, 100*time.Millisecond)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, "Red", snap.State.SideA.Name)

	blue := make(chan Snapshot, 4)
	res = joinRep(t, l, "c-blue", "Blue", blue)
	assert.Equal(t, engine.SideB, res.Side)
	assert.Equal(t, "seat-2", res.Token)

	// Both members see the second seat.
	assert.Equal(t, 2, recvSnapshot(t, red, 100*time.Millisecond).Version)
	assert.Equal(t, 2, recvSnapshot(t, blue, 100*time.Millisecond).Version)
}

func TestLobby_Join_NoChangeSendsOnlyToJoiner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{})

	red := make(chan Snapshot, 4)
	joinRep(t, l, "c-red", "Red", red)
	_ = recvSnapshot(t, red, 100*time.Millisecond)

	admin := make(chan Snapshot, 4)
	res, err := l.Join(ctx, Join{ClientID: "c-admin", Role: engine.RoleAdministrator, Outbox: admin})
	require.NoError(t, err)
	assert.Equal(t, engine.Side(""), res.Side)

	snap := recvSnapshot(t, admin, 100*time.Millisecond)
	assert.Equal(t, 1, snap.Version)
	recvNoSnapshot(t, red, 50*time.Millisecond)
}

func TestLobby_Join_RejectedRoleStillSubscribes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{})

	out := make(chan Snapshot, 4)
	_, err := l.Join(ctx, Join{ClientID: "c1", Role: engine.Role("captain"), Outbox: out})
	assert.ErrorIs(t, err, errs.ErrInvalidRole)

	snap := recvSnapshot(t, out, 100*time.Millisecond)
	assert.Equal(t, 0, snap.Version)

	view, err := l.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, view.NumClients)
}

func TestLobby_TokenReclaimMovesSeat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{})

	first := make(chan Snapshot, 4)
	res := joinRep(t, l, "c-old", "Red", first)
	require.NotEmpty(t, res.Token)

	second := make(chan Snapshot, 4)
	again, err := l.Join(ctx, Join{ClientID: "c-new", Role: engine.RoleRepresentative, Token: res.Token, Outbox: second})
	require.NoError(t, err)
	assert.Equal(t, engine.SideA, again.Side)
	assert.Equal(t, res.Token, again.Token)

	view, err := l.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c-new", view.State.SideA.ClientID)
	assert.Equal(t, "Red", view.State.SideA.Name)
}

func TestLobby_Select_BroadcastsSnapshotAndVersionIncrements(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{})

	red := make(chan Snapshot, 8)
	obs := make(chan Snapshot, 8)
	joinRep(t, l, "c-red", "Red", red)
	joinRep(t, l, "c-blue", "Blue", make(chan Snapshot, 8))
	_, err := l.Join(ctx, Join{ClientID: "c-obs", Role: engine.RoleObserver, Outbox: obs})
	require.NoError(t, err)

	require.NoError(t, l.Submit(ctx, engine.Command{Type: engine.CmdStart, Token: "admin-token"}))
	require.NoError(t, l.Submit(ctx, engine.Command{
		Type: engine.CmdSelectMap, ClientID: "c-red", Side: engine.SideA, MapName: "Ascent",
	}))

	view, err := l.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Version)

	var last Snapshot
	for i := 0; i < 3; i++ { // observer joined at version 3, then start and ban
		last = recvSnapshot(t, obs, 100*time.Millisecond)
	}
	assert.Equal(t, 5, last.Version)
	require.Len(t, last.State.Chosen, 1)
	assert.Equal(t, "Ascent", last.State.Chosen[0].Target)
}

func TestLobby_RejectedCommandKeepsVersion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{})

	out := make(chan Snapshot, 8)
	joinRep(t, l, "c-red", "Red", out)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	err := l.Submit(ctx, engine.Command{Type: engine.CmdStart, Token: "admin-token"})
	assert.ErrorIs(t, err, errs.ErrSidesIncomplete)

	err = l.Submit(ctx, engine.Command{Type: engine.CmdStart, Token: "nope"})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	recvNoSnapshot(t, out, 50*time.Millisecond)
	view, err := l.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Version)
}

func TestLobby_RacingSelectsAcceptOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{})

	joinRep(t, l, "c-red", "Red", make(chan Snapshot, 64))
	joinRep(t, l, "c-blue", "Blue", make(chan Snapshot, 64))
	require.NoError(t, l.Submit(ctx, engine.Command{Type: engine.CmdStart, Token: "admin-token"}))

	maps := engine.MapPool()
	results := make(chan error, len(maps))
	var wg sync.WaitGroup
	for _, m := range maps {
		wg.Add(1)
		go func(m string) {
			defer wg.Done()
			results <- l.Submit(ctx, engine.Command{
				Type: engine.CmdSelectMap, ClientID: "c-red", Side: engine.SideA, MapName: m,
			})
		}(m)
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, errs.ErrIllegalAction)
		}
	}
	assert.Equal(t, 1, accepted)

	view, err := l.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, view.State.Cursor)
}

func TestLobby_EnginePanicKeepsState(t *testing.T) {
	init := newState(t, engine.FormatBo1)
	init.SideA = engine.Seat{Name: "Red", ClientID: "c-red"}
	init.SideB = engine.Seat{Name: "Blue", ClientID: "c-blue"}
	init.Started = true
	init.Cursor = -1 // corrupt on purpose

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, init, Options{})

	err := l.Submit(ctx, engine.Command{
		Type: engine.CmdSelectMap, ClientID: "c-red", Side: engine.SideA, MapName: "Ascent",
	})
	assert.ErrorIs(t, err, errs.ErrInternal)

	// Still serving.
	view, err := l.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Version)
	assert.Equal(t, -1, view.State.Cursor)
}

func TestLobby_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{})

	slow := make(chan Snapshot, 1)
	joinRep(t, l, "c-red", "Red", slow) // fills the buffer
	joinRep(t, l, "c-blue", "Blue", make(chan Snapshot, 8))

	view, err := l.View(ctx)
	require.NoError(t, err)
	if view.NumClients != 1 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
	recvClosed(t, slow, 100*time.Millisecond)
}

func TestLobby_DroppedObserverLeavesState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{})

	red := make(chan Snapshot, 8)
	joinRep(t, l, "c-red", "Red", red)
	_ = recvSnapshot(t, red, 100*time.Millisecond)

	// An unbuffered outbox cannot take the join snapshot.
	slow := make(chan Snapshot)
	_, err := l.Join(ctx, Join{ClientID: "c-obs", Role: engine.RoleObserver, Outbox: slow})
	require.NoError(t, err)

	view, err := l.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, view.NumClients)
	assert.Empty(t, view.State.Observers)
	recvClosed(t, slow, 100*time.Millisecond)

	// Red hears the observer arrive and then leave.
	assert.Equal(t, 2, recvSnapshot(t, red, 100*time.Millisecond).Version)
	last := recvSnapshot(t, red, 100*time.Millisecond)
	assert.Equal(t, 3, last.Version)
	assert.Empty(t, last.State.Observers)
}

func TestLobby_LastMemberDroppedCloses(t *testing.T) {
	closed := make(chan *Lobby, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{
		OnClose: func(l *Lobby) { closed <- l },
	})

	slow := make(chan Snapshot)
	_, err := l.Join(ctx, Join{ClientID: "c-obs", Role: engine.RoleObserver, Outbox: slow})
	require.NoError(t, err)

	select {
	case got := <-closed:
		assert.Same(t, l, got)
	case <-time.After(time.Second):
		t.Fatal("OnClose not called after the only member was dropped")
	}
	recvClosed(t, slow, 100*time.Millisecond)

	_, err = l.View(context.Background())
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)
}

func TestLobby_LastLeaveClosesAndNotifies(t *testing.T) {
	closed := make(chan *Lobby, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{
		OnClose: func(l *Lobby) { closed <- l },
	})

	red := make(chan Snapshot, 8)
	obs := make(chan Snapshot, 8)
	joinRep(t, l, "c-red", "Red", red)
	_, err := l.Join(ctx, Join{ClientID: "c-obs", Role: engine.RoleObserver, Outbox: obs})
	require.NoError(t, err)

	l.Leave(ctx, "c-obs")
	view, err := l.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, view.NumClients)
	assert.Empty(t, view.State.Observers)
	assert.Equal(t, "c-red", view.State.SideA.ClientID, "seats survive a leave")

	l.Leave(ctx, "c-red")
	select {
	case got := <-closed:
		assert.Same(t, l, got)
	case <-time.After(time.Second):
		t.Fatal("OnClose not called")
	}
	recvClosed(t, red, 100*time.Millisecond)

	_, err = l.View(context.Background())
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)
}

func TestLobby_IdleTimeoutCloses(t *testing.T) {
	closed := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{
		IdleTimeout: 50 * time.Millisecond,
		OnClose:     func(*Lobby) { close(closed) },
	})

	out := make(chan Snapshot, 4)
	joinRep(t, l, "c-red", "Red", out)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("idle lobby was not closed")
	}
	recvClosed(t, out, 100*time.Millisecond)
	<-l.Done()
}

func TestLobby_ContextCancelClosesOutboxes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	called := false
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{
		OnClose: func(*Lobby) { called = true },
	})

	out := make(chan Snapshot, 4)
	joinRep(t, l, "c-red", "Red", out)

	cancel()
	recvClosed(t, out, 500*time.Millisecond)
	assert.False(t, called, "registry shutdown must not call back into the registry")

	err := l.Submit(context.Background(), engine.Command{Type: engine.CmdStart})
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)
}

func TestLobby_CompletionHook(t *testing.T) {
	done := make(chan engine.State, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, newState(t, engine.FormatBo1), Options{
		OnComplete: func(s engine.State) { done <- s },
	})

	joinRep(t, l, "c-red", "Red", make(chan Snapshot, 32))
	joinRep(t, l, "c-blue", "Blue", make(chan Snapshot, 32))
	require.NoError(t, l.Submit(ctx, engine.Command{Type: engine.CmdStart, Token: "admin-token"}))

	pool := engine.MapPool()
	for i := 0; i < len(pool)-1; i++ {
		side, client := engine.SideA, "c-red"
		if i%2 == 1 {
			side, client = engine.SideB, "c-blue"
		}
		require.NoError(t, l.Submit(ctx, engine.Command{
			Type: engine.CmdSelectMap, ClientID: client, Side: side, MapName: pool[i],
		}))
	}
	require.NoError(t, l.Submit(ctx, engine.Command{
		Type: engine.CmdSelectSide, ClientID: "c-red", Side: engine.SideA, Choice: engine.SideChoiceAttack,
	}))

	select {
	case s := <-done:
		assert.Equal(t, engine.StatusComplete, s.Status())
		assert.Len(t, s.Chosen, len(pool)+1)
	case <-time.After(time.Second):
		t.Fatal("completion hook not called")
	}
}
