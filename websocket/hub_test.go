package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
)

type fakeConn struct {
	mu     sync.Mutex
	got    []interface{}
	fail   bool
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.got = append(f.got, v)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) messages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func TestHub_BroadcastsByTopic(t *testing.T) {
	hub := NewHub(logger.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a, b, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register <- &Client{Topic: OnboardingTopic("c1"), Conn: a}
	hub.Register <- &Client{Topic: OnboardingTopic("c1"), Conn: b}
	hub.Register <- &Client{Topic: OnboardingTopic("c2"), Conn: other}

	hub.Publish(OnboardingTopic("c1"), map[string]int{"currentStep": 2})

	assert.Eventually(t, func() bool { return a.messages() == 1 && b.messages() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, other.messages())
}

func TestHub_DropsBrokenClients(t *testing.T) {
	hub := NewHub(logger.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	broken := &fakeConn{fail: true}
	hub.Register <- &Client{Topic: "t", Conn: broken}
	hub.Publish("t", "hello")

	assert.Eventually(t, func() bool { return hub.Subscribers("t") == 0 }, time.Second, 5*time.Millisecond)
	broken.mu.Lock()
	assert.True(t, broken.closed)
	broken.mu.Unlock()
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub(logger.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := &fakeConn{}
	hub.Register <- &Client{Topic: "t", Conn: c}
	hub.Unregister <- &Client{Topic: "t", Conn: c}

	assert.Eventually(t, func() bool { return hub.Subscribers("t") == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestHub_JoinAndLeaveAfterStopDoNotBlock(t *testing.T) {
	hub := NewHub(logger.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := &Client{Topic: OnboardingTopic("c1"), Conn: &fakeConn{}}
	assert.True(t, hub.Join(client))
	cancel()
	<-stopped

	left := make(chan struct{})
	go func() {
		hub.Leave(client)
		assert.False(t, hub.Join(&Client{Topic: OnboardingTopic("c1"), Conn: &fakeConn{}}))
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("hub calls blocked after Run returned")
	}
}
