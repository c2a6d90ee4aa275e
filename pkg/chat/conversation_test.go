package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	created int
	fail    bool
}

func (f *fakeCreator) CreateConversation(ctx context.Context, deploymentID, title string) (*Conversation, error) {
	if f.fail {
		return nil, fmt.Errorf("backend unavailable")
	}
	f.created++
	return &Conversation{ID: int64(100 + f.created), DeploymentID: deploymentID, Title: title}, nil
}

func TestLifecycleEnsure(t *testing.T) {
	t.Run("creates once for a fresh session", func(t *testing.T) {
		api := &fakeCreator{}
		life := NewLifecycle(api, "dep-1")
		tr := NewTranscript()

		id := life.Ensure(context.Background(), tr)
		require.NotNil(t, id)
		assert.Equal(t, int64(101), *id)
		assert.Equal(t, 1, api.created)
	})

	t.Run("is idempotent with an unchanged transcript", func(t *testing.T) {
		api := &fakeCreator{}
		life := NewLifecycle(api, "dep-1")
		tr := NewTranscript()

		first := life.Ensure(context.Background(), tr)
		second := life.Ensure(context.Background(), tr)

		require.NotNil(t, first)
		require.NotNil(t, second)
		assert.Equal(t, *first, *second)
		assert.Equal(t, 1, api.created, "no duplicate creation")
	})

	t.Run("does not create for a non-empty transcript", func(t *testing.T) {
		api := &fakeCreator{}
		life := NewLifecycle(api, "dep-1")
		tr := NewTranscript()
		tr.Append(NewUserMessage("already talking"))

		assert.Nil(t, life.Ensure(context.Background(), tr))
		assert.Zero(t, api.created)
	})

	t.Run("concurrent bind and read settle on one id", func(t *testing.T) {
		api := &fakeCreator{fail: true}
		life := NewLifecycle(api, "dep-1")
		tr := NewTranscript()

		// Bind arrives from the reply path while Ensure and ID run on the
		// send path.
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int64) {
				defer wg.Done()
				life.Bind(n)
			}(int64(200 + i))
			wg.Add(1)
			go func() {
				defer wg.Done()
				life.Ensure(context.Background(), tr)
				life.ID()
			}()
		}
		wg.Wait()

		id := life.ID()
		require.NotNil(t, id)
		assert.GreaterOrEqual(t, *id, int64(200))
		assert.Less(t, *id, int64(208))
	})

	t.Run("returns nil on create failure, server mints later", func(t *testing.T) {
		api := &fakeCreator{fail: true}
		life := NewLifecycle(api, "dep-1")
		tr := NewTranscript()

		assert.Nil(t, life.Ensure(context.Background(), tr))

		// A server-minted id is then adopted and kept.
		life.Bind(55)
		life.Bind(77)
		require.NotNil(t, life.ID())
		assert.Equal(t, int64(55), *life.ID())
	})
}

func TestPairs(t *testing.T) {
	t.Run("pairs each user message with the following reply", func(t *testing.T) {
		tr := NewTranscript()
		tr.Append(NewUserMessage("q1"))
		tr.Append(NewAssistantMessage("a1", nil))
		tr.Append(NewUserMessage("q2"))
		tr.Append(NewAssistantMessage("a2", nil))

		assert.Equal(t, [][2]string{{"q1", "a1"}, {"q2", "a2"}}, Pairs(tr))
	})

	t.Run("pairs a trailing unanswered user message with empty string", func(t *testing.T) {
		tr := NewTranscript()
		tr.Append(NewUserMessage("q1"))
		tr.Append(NewAssistantMessage("a1", nil))
		tr.Append(NewUserMessage("q2"))

		assert.Equal(t, [][2]string{{"q1", "a1"}, {"q2", ""}}, Pairs(tr))
	})

	t.Run("empty transcript yields no pairs", func(t *testing.T) {
		assert.Empty(t, Pairs(NewTranscript()))
	})
}
