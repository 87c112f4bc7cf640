package stream

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, sub *Subscription, n int) []string {
	t.Helper()

	var texts []string
	timeout := time.After(5 * time.Second)
	for len(texts) < n {
		select {
		case line, ok := <-sub.C():
			require.True(t, ok, "subscription closed early")
			texts = append(texts, line.Text)
		case <-timeout:
			t.Fatalf("received %d of %d lines", len(texts), n)
		}
	}
	return texts
}

func TestBroadcaster(t *testing.T) {
	t.Run("observers see the same ordered lines", func(t *testing.T) {
		b := NewBroadcaster(10, 100)
		first := b.Attach()
		second := b.Attach()
		defer first.Close()
		defer second.Close()

		var expected []string
		for i := 0; i < 20; i++ {
			text := fmt.Sprintf("line %d", i)
			expected = append(expected, text)
			b.Publish("test", text)
		}

		assert.Equal(t, expected, collect(t, first, 20))
		assert.Equal(t, expected, collect(t, second, 20))
	})

	t.Run("attach starts from the moment of attachment", func(t *testing.T) {
		b := NewBroadcaster(10, 10)
		b.Publish("test", "before")

		sub := b.Attach()
		defer sub.Close()
		b.Publish("test", "after")

		assert.Equal(t, []string{"after"}, collect(t, sub, 1))
	})

	t.Run("recent window is bounded", func(t *testing.T) {
		b := NewBroadcaster(3, 10)
		for i := 0; i < 5; i++ {
			b.Publish("test", fmt.Sprint(i))
		}

		recent := b.Recent()
		require.Len(t, recent, 3)
		assert.Equal(t, "2", recent[0].Text)
		assert.Equal(t, "4", recent[2].Text)
		assert.Equal(t, uint64(5), recent[2].Seq)
	})

	t.Run("attach with recent continues without gaps", func(t *testing.T) {
		b := NewBroadcaster(3, 10)
		b.Publish("test", "a")
		b.Publish("test", "b")

		recent, sub := b.AttachWithRecent()
		defer sub.Close()
		b.Publish("test", "c")

		require.Len(t, recent, 2)
		line := <-sub.C()
		assert.Equal(t, recent[1].Seq+1, line.Seq)
	})

	t.Run("slow observer never blocks the publisher", func(t *testing.T) {
		b := NewBroadcaster(10, 2)
		slow := b.Attach()
		defer slow.Close()

		done := make(chan struct{})
		go func() {
			for i := 0; i < 100; i++ {
				b.Publish("test", fmt.Sprint(i))
			}
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("publisher blocked on a slow observer")
		}

		assert.Equal(t, uint64(98), slow.Dropped())
		assert.Equal(t, []string{"0", "1"}, collect(t, slow, 2))
	})

	t.Run("close detaches and closes the channel", func(t *testing.T) {
		b := NewBroadcaster(10, 10)
		sub := b.Attach()
		assert.Equal(t, 1, b.Observers())

		sub.Close()
		sub.Close()
		assert.Equal(t, 0, b.Observers())

		_, ok := <-sub.C()
		assert.False(t, ok)

		b.Publish("test", "no observers")
	})

	t.Run("concurrent publishers and observers", func(t *testing.T) {
		b := NewBroadcaster(100, 1000)
		subs := []*Subscription{b.Attach(), b.Attach(), b.Attach()}

		var wg sync.WaitGroup
		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					b.Publish(fmt.Sprint(p), fmt.Sprint(i))
				}
			}(p)
		}
		wg.Wait()

		for _, sub := range subs {
			lines := collect(t, sub, 200)
			assert.Len(t, lines, 200)
			sub.Close()
		}
	})
}
