package advert

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arcmesh/transport/core/wire"
)

func fakeBuild() Builder {
	return func() (*wire.Packet, error) {
		return &wire.Packet{Raw: []byte{(wire.HeaderType1 << 6) | (wire.TypeAnnounce << 2), 0}}, nil
	}
}

func TestSchedulerSendNowEmitsAndResetsLocalTimer(t *testing.T) {
	var emitted atomic.Int32
	s := NewScheduler(func(*wire.Packet) bool {
		emitted.Add(1)
		return true
	}, fakeBuild(), SchedulerConfig{LocalInterval: time.Minute, PropagationInterval: time.Hour})

	now := time.Now()
	s.nowFn = func() time.Time { return now }
	s.resetTimers()

	s.SendNow(false)

	if emitted.Load() != 1 {
		t.Fatalf("expected 1 emission, got %d", emitted.Load())
	}
	if !s.nextLocal.Equal(now.Add(time.Minute)) {
		t.Error("expected local timer reset")
	}
	if !s.nextPropagation.Equal(now.Add(time.Hour)) {
		t.Error("expected propagation timer untouched by a non-propagate send")
	}
}

func TestSchedulerSendNowPropagateResetsBothTimers(t *testing.T) {
	s := NewScheduler(func(*wire.Packet) bool { return true },
		fakeBuild(), SchedulerConfig{LocalInterval: time.Minute, PropagationInterval: time.Hour})

	now := time.Now()
	s.nowFn = func() time.Time { return now }
	s.resetTimers()
	now = now.Add(30 * time.Minute)

	s.SendNow(true)

	if !s.nextPropagation.Equal(now.Add(time.Hour)) {
		t.Error("expected propagation timer reset")
	}
	if !s.nextLocal.Equal(now.Add(time.Minute)) {
		t.Error("expected local timer reset")
	}
}

func TestSchedulerCheckTimersFiresLocalWhenDue(t *testing.T) {
	var emitted atomic.Int32
	s := NewScheduler(func(*wire.Packet) bool {
		emitted.Add(1)
		return true
	}, fakeBuild(), SchedulerConfig{LocalInterval: time.Minute, PropagationInterval: time.Hour})

	now := time.Now()
	s.nowFn = func() time.Time { return now }
	s.resetTimers()

	now = now.Add(2 * time.Minute)
	s.checkTimers()

	if emitted.Load() != 1 {
		t.Fatalf("expected the local announce to fire once, got %d", emitted.Load())
	}
}

func TestSchedulerCheckTimersPropagationTakesPriority(t *testing.T) {
	var emitted atomic.Int32
	s := NewScheduler(func(*wire.Packet) bool {
		emitted.Add(1)
		return true
	}, fakeBuild(), SchedulerConfig{LocalInterval: time.Minute, PropagationInterval: time.Minute})

	now := time.Now()
	s.nowFn = func() time.Time { return now }
	s.resetTimers()

	now = now.Add(2 * time.Minute)
	s.checkTimers()

	if emitted.Load() != 1 {
		t.Fatalf("expected exactly one emission when both timers are due, got %d", emitted.Load())
	}
	if !s.nextLocal.After(now) {
		t.Error("expected propagation firing to also reset the local timer")
	}
}

func TestSchedulerDefaultsAppliedWhenBothZero(t *testing.T) {
	s := NewScheduler(func(*wire.Packet) bool { return true }, fakeBuild(), SchedulerConfig{})
	if s.cfg.LocalInterval != DefaultLocalInterval {
		t.Errorf("expected default local interval, got %v", s.cfg.LocalInterval)
	}
	if s.cfg.PropagationInterval != DefaultPropagationInterval {
		t.Errorf("expected default propagation interval, got %v", s.cfg.PropagationInterval)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(func(*wire.Packet) bool { return true }, fakeBuild(), SchedulerConfig{})

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop within timeout")
	}
}
