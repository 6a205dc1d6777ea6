package application

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/mnemo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newDelivery(repo *inMemoryStateRepo, server *fakeServer) *DeliveryService {
	identity := NewIdentityService(repo, repo, server, nil)
	clock := fixedClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	return NewDeliveryService(identity, repo, server, clock, nil)
}

func TestPrepareHandoffNothingNewReturnsEmptyPath(t *testing.T) {
	t.Parallel()

	path := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"hello"}}`,
	)

	repo := newInMemoryStateRepo()
	repo.sessions["sess-1"] = domain.SessionState{SessionID: "sess-1", LastProcessedIndex: 0}

	svc := newDelivery(repo, &fakeServer{})
	handoffPath, err := svc.PrepareHandoff(context.Background(), "sess-1", "conv-1", t.TempDir(), path)
	require.NoError(t, err)
	assert.Empty(t, handoffPath)
	assert.Empty(t, repo.handoffs)
}

func TestPrepareHandoffCoversUnsentSuffix(t *testing.T) {
	t.Parallel()

	path := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"already sent"}}`,
		`{"type":"user","message":{"role":"user","content":"fix the failing test"}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"looking at it now"}]}}`,
	)

	repo := newInMemoryStateRepo()
	repo.sessions["sess-1"] = domain.SessionState{SessionID: "sess-1", LastProcessedIndex: 0}

	svc := newDelivery(repo, &fakeServer{})
	handoffPath, err := svc.PrepareHandoff(context.Background(), "sess-1", "conv-1", "/tmp/project", path)
	require.NoError(t, err)
	require.NotEmpty(t, handoffPath)

	handoff := repo.handoffs[handoffPath]
	assert.Equal(t, 0, handoff.FromIndex)
	assert.Equal(t, 2, handoff.ToIndex)
	assert.Equal(t, domain.SessionID("sess-1"), handoff.SessionID)
	assert.Equal(t, domain.ConversationID("conv-1"), handoff.ConversationID)
	assert.NotEmpty(t, handoff.ID)
}

func TestDeliverAdvancesCursorOnlyOnSuccess(t *testing.T) {
	t.Parallel()

	path := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"rename the config flag"}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"done, renamed to --config-path"}]}}`,
	)

	repo := newInMemoryStateRepo()
	server := &fakeServer{}
	svc := newDelivery(repo, server)

	handoffPath, err := svc.PrepareHandoff(context.Background(), "sess-1", "conv-1", "/tmp/project", path)
	require.NoError(t, err)

	require.NoError(t, svc.Deliver(context.Background(), handoffPath))

	require.Len(t, server.sentMessages, 1)
	assert.Contains(t, server.sentMessages[0], "[user]\nrename the config flag")
	assert.Contains(t, server.sentMessages[0], "[assistant]\ndone, renamed to --config-path")

	state := repo.sessions["sess-1"]
	assert.Equal(t, 1, state.LastProcessedIndex)
	assert.Empty(t, repo.handoffs)
}

func TestDeliverLeavesCursorOnTransportFailure(t *testing.T) {
	t.Parallel()

	path := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"anything"}}`,
	)

	repo := newInMemoryStateRepo()
	server := &fakeServer{sendErr: errors.New("connection refused")}
	svc := newDelivery(repo, server)

	handoffPath, err := svc.PrepareHandoff(context.Background(), "sess-1", "conv-1", "/tmp/project", path)
	require.NoError(t, err)

	err = svc.Deliver(context.Background(), handoffPath)
	require.Error(t, err)

	_, ok := repo.sessions["sess-1"]
	assert.False(t, ok, "cursor must stay untouched on failure")
	assert.Empty(t, repo.handoffs, "a failed handoff is not retried by path")
}

func TestDeliverIgnoresEventsAppendedAfterHandoff(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"type":"user","message":{"role":"user","content":"first prompt"}}`+"\n",
	), 0o600))

	repo := newInMemoryStateRepo()
	server := &fakeServer{}
	svc := newDelivery(repo, server)

	handoffPath, err := svc.PrepareHandoff(context.Background(), "sess-1", "conv-1", dir, path)
	require.NoError(t, err)

	// Session keeps going while the worker is detached.
	appended := `{"type":"user","message":{"role":"user","content":"second prompt"}}` + "\n"
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = file.WriteString(appended)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	require.NoError(t, svc.Deliver(context.Background(), handoffPath))

	require.Len(t, server.sentMessages, 1)
	assert.Contains(t, server.sentMessages[0], "first prompt")
	assert.NotContains(t, server.sentMessages[0], "second prompt")
	assert.Equal(t, 0, repo.sessions["sess-1"].LastProcessedIndex)
}

func TestDeliverMissingHandoffFails(t *testing.T) {
	t.Parallel()

	svc := newDelivery(newInMemoryStateRepo(), &fakeServer{})
	err := svc.Deliver(context.Background(), "pending/handoff-gone.json")
	assert.ErrorIs(t, err, domain.ErrHandoffNotFound)
}

func TestFormatTurnsLabelsRoles(t *testing.T) {
	t.Parallel()

	message := FormatTurns([]domain.Turn{
		{Role: domain.TurnRoleUser, Text: "run the linter"},
		{Role: domain.TurnRoleTool, Text: "0 issues"},
		{Role: domain.TurnRoleAssistant, Text: "clean"},
	})

	assert.Contains(t, message, deliveryPreamble)
	assert.Contains(t, message, "[user]\nrun the linter")
	assert.Contains(t, message, "[tool result]\n0 issues")
	assert.Contains(t, message, "[assistant]\nclean")
}
