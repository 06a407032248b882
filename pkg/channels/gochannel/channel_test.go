package gochannel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChannel_DeliversToSubscribers(t *testing.T) {
	pub, sub, err := CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = pub.Close()
	})

	assert.Same(t, pub, sub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := sub.Subscribe(ctx, "journey.events")
	require.NoError(t, err)

	require.NoError(t, pub.Publish("journey.events", message.NewMessage(watermill.NewUUID(), []byte(`{"type":"job.completed"}`))))

	select {
	case msg := <-messages:
		assert.JSONEq(t, `{"type":"job.completed"}`, string(msg.Payload))
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("message was not delivered")
	}
}
