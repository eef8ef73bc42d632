package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-proxy/internal/chat"
	"chat-proxy/internal/history"
	"chat-proxy/internal/keys"
	"chat-proxy/internal/llm"
	"chat-proxy/internal/session"
)

type cannedClient struct{ variant llm.Variant }

func (c cannedClient) Variant() llm.Variant { return c.variant }

func (c cannedClient) Generate(context.Context, llm.Payload) (llm.Response, error) {
	return llm.Response{Content: "canned reply"}, nil
}

type cannedFactory struct{}

func (cannedFactory) CreateClient(_ context.Context, v llm.Variant, _, _ string) (llm.Client, error) {
	return cannedClient{variant: v}, nil
}

func testWire(store *history.Manager) wireFunc {
	return func(context.Context) (*app, error) {
		reg := session.NewRegistry(session.Options{
			Factory:    cannedFactory{},
			GeminiKeys: keys.NewRotator([]string{"g1"}),
			Store:      store,
		})
		return &app{svc: chat.NewService(reg, store), store: store}, nil
	}
}

func executeCLI(t *testing.T, store *history.Manager, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(testWire(store))
	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestAskThenHistory(t *testing.T) {
	store := history.NewManager()

	out, err := executeCLI(t, store, "ask", "--id", "u1", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "canned reply\n", out)

	out, err = executeCLI(t, store, "history", "--id", "u1")
	require.NoError(t, err)
	assert.Equal(t, "user: hello there\nassistant: canned reply\n", out)

	out, err = executeCLI(t, store, "history", "--id", "nobody")
	require.NoError(t, err)
	assert.Equal(t, "no history\n", out)
}

func TestAskGPTWithoutKeyFails(t *testing.T) {
	_, err := executeCLI(t, history.NewManager(), "ask", "--id", "u1", "--model", "gpt", "hi")
	require.ErrorIs(t, err, keys.ErrNoCredentialAvailable)
}

func TestAskRequiresID(t *testing.T) {
	_, err := executeCLI(t, history.NewManager(), "ask", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "id" not set`)
}

func TestMemorySetAndGet(t *testing.T) {
	store := history.NewManager()

	out, err := executeCLI(t, store, "memory", "set", "--id", "u1", "name=Sam", "city=Oslo")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 2 facts for u1")

	out, err = executeCLI(t, store, "memory", "get", "--id", "u1")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
	assert.JSONEq(t, `{"name":"Sam","city":"Oslo"}`, out)
	assert.Less(t, bytes.Index([]byte(out), []byte("name")), bytes.Index([]byte(out), []byte("city")))

	_, err = executeCLI(t, store, "memory", "set", "--id", "u1", "broken")
	assert.Error(t, err)
}
