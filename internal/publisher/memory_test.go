package publisher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPublisher(t *testing.T) {
	t.Parallel()

	p := NewMemoryPublisher()
	id1, err := p.Publish(context.Background(), "ingest-events", map[string]string{"run_id": "a"})
	require.NoError(t, err)
	id2, err := p.Publish(context.Background(), "ingest-events", map[string]string{"run_id": "b"})
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "ingest-events", msgs[0].Topic)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(msgs[1].Data, &payload))
	require.Equal(t, "b", payload["run_id"])
}

func TestMemoryPublisherRejectsUnmarshalable(t *testing.T) {
	t.Parallel()

	p := NewMemoryPublisher()
	_, err := p.Publish(context.Background(), "ingest-events", make(chan int))
	require.Error(t, err)
	require.Empty(t, p.Messages())
}
