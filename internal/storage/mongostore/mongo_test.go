package mongostore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"chat-proxy/internal/storage"
)

func TestMemoryBSONRoundTripKeepsOrder(t *testing.T) {
	t.Parallel()

	mem := storage.Memory{{Key: "name", Value: "Sam"}, {Key: "city", Value: "Berlin"}}
	d := toBSON(mem)
	require.Len(t, d, 2)
	assert.Equal(t, "name", d[0].Key)
	assert.Equal(t, "city", d[1].Key)
	assert.Equal(t, mem, fromBSON(d))
}

func TestFromBSONStringifiesValues(t *testing.T) {
	t.Parallel()

	mem := fromBSON(bson.D{{Key: "age", Value: int32(30)}, {Key: "vip", Value: true}})
	assert.Equal(t, storage.Memory{{Key: "age", Value: "30"}, {Key: "vip", Value: "true"}}, mem)
}

// TestStoreAgainstServer runs only when TEST_MONGO_URI points at a live server.
func TestStoreAgainstServer(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	st, err := Open(ctx, uri, "chatbot_db_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.history.Drop(ctx)
		_ = st.memory.Drop(ctx)
		_ = st.Close(ctx)
	})

	require.NoError(t, st.Append(ctx, "u", storage.RoleUser, "hi"))
	require.NoError(t, st.Append(ctx, "u", storage.RoleAssistant, "hello"))
	turns, err := st.ReadAll(ctx, "u")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "hi", turns[0].Text)
	assert.Equal(t, "hello", turns[1].Text)

	require.NoError(t, st.PutMemory(ctx, "u", storage.Memory{{Key: "a", Value: "1"}}))
	require.NoError(t, st.PutMemory(ctx, "u", storage.Memory{{Key: "b", Value: "2"}}))
	mem, err := st.GetMemory(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, storage.Memory{{Key: "b", Value: "2"}}, mem)

	empty, err := st.GetMemory(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
