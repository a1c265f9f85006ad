package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"tg_forwarder/internal/telegram/platform"

	"github.com/stretchr/testify/assert"
)

type stubReader struct{ connected bool }

func (r stubReader) Connected() bool { return r.connected }

func (r stubReader) History(context.Context, platform.ChannelRef, time.Time, int) ([]platform.Message, error) {
	return nil, nil
}

func TestNewStartsUnconfigured(t *testing.T) {
	snap := New().Load()
	assert.Equal(t, PhaseUnconfigured, snap.Phase)
	assert.False(t, snap.Connected())
	assert.False(t, snap.Ready())
}

func TestReadyRequiresAllFlags(t *testing.T) {
	target := &platform.ChannelRef{ID: -1001, Title: "target"}

	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{name: "nothing", snap: Snapshot{}, want: false},
		{name: "disconnected reader", snap: Snapshot{Reader: stubReader{}, Target: target, Forwarding: true}, want: false},
		{name: "no target", snap: Snapshot{Reader: stubReader{connected: true}, Forwarding: true}, want: false},
		{name: "not forwarding", snap: Snapshot{Reader: stubReader{connected: true}, Target: target}, want: false},
		{name: "ready", snap: Snapshot{Reader: stubReader{connected: true}, Target: target, Forwarding: true}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.Ready())
		})
	}
}

func TestUpdateIsAtomicUnderContention(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(snap *Snapshot) { snap.LastError += "x" })
		}()
	}
	wg.Wait()

	assert.Len(t, s.Load().LastError, 50)
}

func TestLoadReturnsCopy(t *testing.T) {
	s := New()
	snap := s.Load()
	snap.Phase = PhaseActive

	assert.Equal(t, PhaseUnconfigured, s.Load().Phase)

	s.SetPhase(PhaseFailed)
	assert.Equal(t, PhaseFailed, s.Load().Phase)
}
