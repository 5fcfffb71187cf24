package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_Fields(t *testing.T) {
	type RegisteredData struct {
		UserID int64  `json:"user_id"`
		Email  string `json:"email"`
	}

	data := RegisteredData{UserID: 42, Email: "alice@example.com"}
	event, err := NewEvent("user.registered", "42", "user", "identity-service", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID, "EventID should be a non-empty UUID")
	assert.Equal(t, "user.registered", event.EventType)
	assert.Equal(t, "42", event.AggregateID)
	assert.Equal(t, "user", event.AggregateType)
	assert.Equal(t, "identity-service", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)
	assert.NotNil(t, event.Metadata)

	var roundTripped RegisteredData
	require.NoError(t, json.Unmarshal(event.Data, &roundTripped))
	assert.Equal(t, data, roundTripped)
}

func TestNewEvent_InvalidData(t *testing.T) {
	// Channels are not serializable to JSON.
	_, err := NewEvent("test.event", "agg-1", "test", "identity-service", make(chan int))
	require.Error(t, err)
}

func TestEvent_Marshal_Unmarshal(t *testing.T) {
	original, err := NewEvent("user.password_reset_requested", "7", "user",
		"identity-service", map[string]string{"email": "bob@example.com"})
	require.NoError(t, err)
	original.WithCorrelationID("corr-abc")

	bytes, err := original.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalEvent(bytes)
	require.NoError(t, err)

	assert.Equal(t, original.EventID, restored.EventID)
	assert.Equal(t, original.EventType, restored.EventType)
	assert.Equal(t, original.CorrelationID, restored.CorrelationID)

	var payload map[string]string
	require.NoError(t, restored.UnmarshalData(&payload))
	assert.Equal(t, "bob@example.com", payload["email"])
}

func TestUnmarshalEvent_InvalidJSON(t *testing.T) {
	_, err := UnmarshalEvent([]byte("{not json"))
	require.Error(t, err)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}
