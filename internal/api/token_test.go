package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSourceReusesToken(t *testing.T) {
	f := newFakeAPI(t)
	client, _ := newTestClient(f, f.options())
	src := NewTokenSource(client, testCreds, 0)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := src.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "T", tok.Value)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestTokenSourceRefreshesAfterLifetime(t *testing.T) {
	f := newFakeAPI(t)
	client, hook := newTestClient(f, f.options())
	src := NewTokenSource(client, testCreds, 10*time.Minute)

	now := time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	_, err := src.Token(context.Background())
	require.NoError(t, err)

	now = now.Add(9 * time.Minute)
	_, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.tokenCalls.Load())

	now = now.Add(2 * time.Minute)
	_, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.tokenCalls.Load())

	var messages []string
	for _, entry := range hook.AllEntries() {
		messages = append(messages, entry.Message)
	}
	assert.Contains(t, messages, "Access token lifetime elapsed, re-authenticating")
}

func TestTokenSourcePropagatesAuthError(t *testing.T) {
	f := newFakeAPI(t)
	client, _ := newTestClient(f, f.options())
	creds := testCreds
	creds.Password = "wrong"

	_, err := NewTokenSource(client, creds, 0).Token(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestTokenSourceReset(t *testing.T) {
	f := newFakeAPI(t)
	client, _ := newTestClient(f, f.options())
	src := NewTokenSource(client, testCreds, 0)

	_, err := src.Token(context.Background())
	require.NoError(t, err)
	src.Reset()
	_, err = src.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.tokenCalls.Load())
}
