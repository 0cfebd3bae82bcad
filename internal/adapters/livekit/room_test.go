package livekit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	lksdk "github.com/livekit/server-sdk-go/v2"
)

func TestAwaitConnectReturnsResult(t *testing.T) {
	want := &lksdk.Room{}
	room, err := awaitConnect(context.Background(), func() (*lksdk.Room, error) {
		return want, nil
	}, func(*lksdk.Room) { t.Error("result within deadline must not be discarded") })
	if err != nil {
		t.Fatalf("awaitConnect: %v", err)
	}
	if room != want {
		t.Fatalf("expected the connected room back")
	}
}

func TestAwaitConnectHonorsDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := awaitConnect(ctx, func() (*lksdk.Room, error) {
			<-release
			return nil, errors.New("dial failed late")
		}, func(*lksdk.Room) {})
		done <- err
	}()

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(release)
}

func TestAwaitConnectDiscardsLateRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	late := &lksdk.Room{}

	var mu sync.Mutex
	var discarded *lksdk.Room

	_, err := awaitConnect(ctx, func() (*lksdk.Room, error) {
		<-release
		return late, nil
	}, func(r *lksdk.Room) {
		mu.Lock()
		discarded = r
		mu.Unlock()
	})
	if err == nil {
		t.Fatalf("expected a context error")
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := discarded
		mu.Unlock()
		if got == late {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("late room was never discarded")
}
