package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bnema/mnemo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureAgentID = "agent-a1b2c3d4-e5f6-7890-abcd-ef1234567890"

type fakeMemoryServer struct {
	mu                   sync.Mutex
	conversationsCreated int
	sentMessages         []string
	agentsImported       int
	configPatches        int
}

func (f *fakeMemoryServer) snapshot() (int, []string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversationsCreated, append([]string(nil), f.sentMessages...), f.agentsImported
}

func startMemoryServer(t *testing.T) *fakeMemoryServer {
	t.Helper()

	f := &fakeMemoryServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /agents", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.agentsImported++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"id": fixtureAgentID})
	})
	mux.HandleFunc("GET /models/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `[{"model":"gpt-5.2","name":"GPT 5.2","provider_type":"openai","handle":"openai/gpt-5.2"}]`)
	})
	mux.HandleFunc("GET /agents/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"id":"`+fixtureAgentID+`","name":"mnemo-observer","blocks":[{"label":"project","description":"durable project knowledge","value":"Go CLI syncing sessions with a memory agent"}],"llm_config":{"model":"gpt-5.2","model_endpoint_type":"openai"}}`)
	})
	mux.HandleFunc("GET /agents/{id}/messages", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `[{"message_type":"assistant_message","role":"assistant","content":"remember the release branch freezes on Friday","created_at":"2026-08-30T09:00:00Z"}]`)
	})
	mux.HandleFunc("PATCH /agents/{id}", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.configPatches++
		f.mu.Unlock()
		_, _ = fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("POST /conversations", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		f.conversationsCreated++
		id := fmt.Sprintf("conv-%d", f.conversationsCreated)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
	})
	mux.HandleFunc("POST /conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		f.mu.Lock()
		for _, message := range payload.Messages {
			f.sentMessages = append(f.sentMessages, message.Content)
		}
		f.mu.Unlock()
		_, _ = fmt.Fprint(w, `{"messages":[]}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	t.Setenv("MNEMO_BASE_URL", server.URL)

	return f
}

func setupProject(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("MNEMO_CONFIG_PATH", filepath.Join(home, "mnemo-config.toml"))

	return t.TempDir()
}

func hookInput(t *testing.T, projectDir string, extra map[string]any) string {
	t.Helper()

	payload := map[string]any{
		"session_id": "sess-1",
		"cwd":        projectDir,
	}
	for key, value := range extra {
		payload[key] = value
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}

func executeCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCLI(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dev")
}

func TestSessionStartBindsConversationOnce(t *testing.T) {
	server := startMemoryServer(t)
	projectDir := setupProject(t)

	_, _, err := executeCLI(t, hookInput(t, projectDir, nil), "hook", "session-start")
	require.NoError(t, err)

	_, _, err = executeCLI(t, hookInput(t, projectDir, nil), "hook", "session-start")
	require.NoError(t, err)

	created, _, imported := server.snapshot()
	assert.Equal(t, 1, created, "same session must reuse its conversation")
	assert.Equal(t, 1, imported, "default agent is imported once and persisted")

	data, err := os.ReadFile(filepath.Join(projectDir, ".mnemo", "conversations.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "conv-1")
}

func TestSessionStartMalformedAgentOverrideIsBlocking(t *testing.T) {
	startMemoryServer(t)
	projectDir := setupProject(t)
	t.Setenv("MNEMO_AGENT_ID", "Subconscious")

	_, _, err := executeCLI(t, hookInput(t, projectDir, nil), "hook", "session-start")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Equal(t, 2, ExitCode(err))
}

func TestPromptInjectsMemoryAndWritesDocument(t *testing.T) {
	startMemoryServer(t)
	projectDir := setupProject(t)

	stdout, _, err := executeCLI(t, hookInput(t, projectDir, nil), "hook", "prompt")
	require.NoError(t, err)
	assert.Contains(t, stdout, `<memory_block label="project"`)
	assert.Contains(t, stdout, "remember the release branch freezes on Friday")

	doc, err := os.ReadFile(filepath.Join(projectDir, "AGENTS.md"))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "<!-- mnemo:memory -->")
	assert.Contains(t, string(doc), "<!-- mnemo:message -->")
}

func TestPromptInjectModeOffProducesNoWrites(t *testing.T) {
	startMemoryServer(t)
	projectDir := setupProject(t)
	t.Setenv("MNEMO_INJECT", "off")

	stdout, _, err := executeCLI(t, hookInput(t, projectDir, nil), "hook", "prompt")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	_, err = os.Stat(filepath.Join(projectDir, "AGENTS.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestPromptInvalidInjectModeIsBlocking(t *testing.T) {
	startMemoryServer(t)
	projectDir := setupProject(t)
	t.Setenv("MNEMO_INJECT", "shout")

	_, _, err := executeCLI(t, hookInput(t, projectDir, nil), "hook", "prompt")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
}

func TestStopDeliversTranscriptSuffix(t *testing.T) {
	server := startMemoryServer(t)
	projectDir := setupProject(t)
	t.Setenv("MNEMO_SYNC_DELIVER", "1")

	transcriptPath := filepath.Join(projectDir, "transcript.jsonl")
	transcript := `{"type":"user","message":{"role":"user","content":"add retry to the uploader"}}` + "\n" +
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"added exponential backoff"}]}}` + "\n"
	require.NoError(t, os.WriteFile(transcriptPath, []byte(transcript), 0o600))

	input := hookInput(t, projectDir, map[string]any{"transcript_path": transcriptPath})
	_, _, err := executeCLI(t, input, "hook", "stop")
	require.NoError(t, err)

	_, sent, _ := server.snapshot()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "[user]\nadd retry to the uploader")
	assert.Contains(t, sent[0], "[assistant]\nadded exponential backoff")

	session, err := os.ReadFile(filepath.Join(projectDir, ".mnemo", "session-sess-1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(session), `"last_processed_index": 1`)

	entries, err := os.ReadDir(filepath.Join(projectDir, ".mnemo", "pending"))
	require.NoError(t, err)
	assert.Empty(t, entries, "completed handoffs are removed")
}

func TestStopReentrancyGuard(t *testing.T) {
	server := startMemoryServer(t)
	projectDir := setupProject(t)
	t.Setenv("MNEMO_SYNC_DELIVER", "1")

	input := hookInput(t, projectDir, map[string]any{
		"transcript_path":  filepath.Join(projectDir, "missing.jsonl"),
		"stop_hook_active": true,
	})
	_, _, err := executeCLI(t, input, "hook", "stop")
	require.NoError(t, err)

	created, sent, imported := server.snapshot()
	assert.Zero(t, created)
	assert.Empty(t, sent)
	assert.Zero(t, imported)
}

func TestDisabledShortCircuitsAllHooks(t *testing.T) {
	server := startMemoryServer(t)
	projectDir := setupProject(t)
	t.Setenv("MNEMO_DISABLE", "1")

	for _, hook := range []string{"session-start", "prompt", "stop"} {
		stdout, _, err := executeCLI(t, hookInput(t, projectDir, nil), "hook", hook)
		require.NoError(t, err)
		assert.Empty(t, stdout)
	}

	created, sent, imported := server.snapshot()
	assert.Zero(t, created)
	assert.Empty(t, sent)
	assert.Zero(t, imported)

	_, err := os.Stat(filepath.Join(projectDir, ".mnemo"))
	assert.True(t, os.IsNotExist(err))
}

func TestStatusJSONOutput(t *testing.T) {
	startMemoryServer(t)
	projectDir := setupProject(t)

	_, _, err := executeCLI(t, hookInput(t, projectDir, nil), "hook", "session-start")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "", "status", "--project", projectDir, "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, fixtureAgentID)
	assert.Contains(t, stdout, "conv-1")
	assert.Contains(t, stdout, "mnemo-observer")
}

func TestStatusLogsUnreachableServerProbe(t *testing.T) {
	startMemoryServer(t)
	projectDir := setupProject(t)

	_, _, err := executeCLI(t, hookInput(t, projectDir, nil), "hook", "session-start")
	require.NoError(t, err)

	t.Setenv("MNEMO_BASE_URL", "http://127.0.0.1:1")

	stdout, _, err := executeCLI(t, "", "status", "--project", projectDir, "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"ServerReachable": false`)

	logData, err := os.ReadFile(filepath.Join(projectDir, ".mnemo", "mnemo.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "agent state probe failed")
	assert.Contains(t, string(logData), "http://127.0.0.1:1")
}

func TestDeliverArgsBuildsWorkerArgv(t *testing.T) {
	args := deliverArgs("/work/project", "/work/project/.mnemo/pending/handoff-1.json")
	assert.Equal(t, []string{
		"deliver",
		"--project", "/work/project",
		"--handoff", "/work/project/.mnemo/pending/handoff-1.json",
	}, args)
}

func TestExitCodeMapping(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("transport down")))
	assert.Equal(t, 2, ExitCode(fmt.Errorf("wrap: %w", domain.ErrConfiguration)))
}
