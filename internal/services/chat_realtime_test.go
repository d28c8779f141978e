package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatHubPublishReachesSubscribers(t *testing.T) {
	hub := NewChatHub()

	ch1, cancel1 := hub.Subscribe("chat:abc")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("chat:abc")
	defer cancel2()
	other, cancelOther := hub.Subscribe("chat:other")
	defer cancelOther()

	hub.Publish(ChatEvent{Type: EventTypeChatMessage, Topic: "chat:abc", Message: "hi"})

	for _, ch := range []<-chan ChatEvent{ch1, ch2} {
		select {
		case evt := <-ch:
			assert.Equal(t, "hi", evt.Message)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}

	select {
	case <-other:
		t.Fatal("event leaked to a different topic")
	default:
	}
}

func TestChatHubCancelStopsDelivery(t *testing.T) {
	hub := NewChatHub()

	ch, cancel := hub.Subscribe("chat:abc")
	cancel()

	// Publish after cancel must not panic and must not deliver.
	hub.Publish(ChatEvent{Type: EventTypeChatMessage, Topic: "chat:abc", Message: "late"})

	_, open := <-ch
	assert.False(t, open, "channel should be closed after cancel")
}

func TestChatHubDropsEventsForSlowSubscriber(t *testing.T) {
	hub := NewChatHub()

	ch, cancel := hub.Subscribe("chat:slow")
	defer cancel()

	// Never read: fill the buffer and then some. Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Publish(ChatEvent{Type: EventTypeChatMessage, Topic: "chat:slow"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Equal(t, subscriberBuffer, len(ch))
}

func TestChatHubPublishWithoutTopicIsNoop(t *testing.T) {
	hub := NewChatHub()
	ch, cancel := hub.Subscribe("chat:abc")
	defer cancel()

	hub.Publish(ChatEvent{Type: EventTypeChatMessage, Message: "no topic"})

	require.Empty(t, ch)
}
