package cmd

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/mnemo/internal/adapters/remote"
	"github.com/bnema/mnemo/internal/adapters/repo/jsonfile"
	"github.com/bnema/mnemo/internal/adapters/repo/tomlcfg"
	"github.com/bnema/mnemo/internal/application"
	"github.com/bnema/mnemo/internal/domain"
	"github.com/bnema/mnemo/internal/ports"
	"github.com/spf13/viper"
)

//go:embed default_agent.json
var defaultAgentDefinition []byte

const logFileName = "mnemo.log"

type app struct {
	settings settings
	server   ports.MemoryServer
	config   ports.AgentConfigRepository
	clock    ports.Clock
	now      func() time.Time
}

type settings struct {
	baseURL       string
	apiKey        string
	agentID       string
	model         string
	contextWindow string
	injectMode    string
	docPath       string
	logLevel      string
	disabled      bool
	syncDeliver   bool
}

func wireApp() (*app, error) {
	config, err := tomlcfg.NewRepository(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire agent config repository: %w", err)
	}

	s := settings{
		baseURL:       envOrDefault("MNEMO_BASE_URL", "http://localhost:8283/v1"),
		apiKey:        os.Getenv("MNEMO_API_KEY"),
		agentID:       os.Getenv("MNEMO_AGENT_ID"),
		model:         os.Getenv("MNEMO_MODEL"),
		contextWindow: os.Getenv("MNEMO_CONTEXT_WINDOW"),
		injectMode:    os.Getenv("MNEMO_INJECT"),
		docPath:       os.Getenv("MNEMO_DOC_PATH"),
		logLevel:      envOrDefault("MNEMO_LOG_LEVEL", "info"),
		disabled:      os.Getenv("MNEMO_DISABLE") != "",
		syncDeliver:   os.Getenv("MNEMO_SYNC_DELIVER") != "",
	}

	return &app{
		settings: s,
		server:   remote.NewClient(s.baseURL, s.apiKey, &http.Client{Timeout: 60 * time.Second}),
		config:   config,
		clock:    ports.SystemClock{},
		now:      time.Now,
	}, nil
}

// projectServices bundles the services scoped to one project directory. Each
// hook invocation learns the project from its payload, so wiring happens per
// command run rather than once at startup.
type projectServices struct {
	store    *jsonfile.Store
	logger   *slog.Logger
	identity *application.IdentityService
	resolver *application.ResolverService
	delivery *application.DeliveryService
}

func (a *app) servicesFor(projectDir string) (*projectServices, error) {
	store, err := jsonfile.NewStore(projectDir)
	if err != nil {
		return nil, fmt.Errorf("wire state store: %w", err)
	}

	logger := a.loggerFor(store.Dir())
	identity := application.NewIdentityService(store, store, a.server, logger)
	resolver := application.NewResolverService(a.config, a.server, a.clock, logger, application.ResolverOverrides{
		AgentID:       a.settings.agentID,
		Model:         a.settings.model,
		ContextWindow: a.settings.contextWindow,
	}, defaultAgentDefinition)
	delivery := application.NewDeliveryService(identity, store, a.server, a.clock, logger)

	return &projectServices{
		store:    store,
		logger:   logger,
		identity: identity,
		resolver: resolver,
		delivery: delivery,
	}, nil
}

func (a *app) injectServiceFor(services *projectServices, projectDir string) (*application.InjectService, error) {
	mode, err := domain.ParseInjectMode(a.settings.injectMode)
	if err != nil {
		return nil, err
	}

	docPath := application.DocumentPath(projectDir, a.settings.docPath)
	return application.NewInjectService(services.identity, a.server, services.logger, mode, docPath), nil
}

// loggerFor writes to the project's log file. Stdout belongs to hook output,
// so logging failures degrade to a discard logger rather than polluting it.
func (a *app) loggerFor(stateDir string) *slog.Logger {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return slog.New(slog.DiscardHandler)
	}

	file, err := os.OpenFile(filepath.Join(stateDir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return slog.New(slog.DiscardHandler)
	}

	return slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: parseLogLevel(a.settings.logLevel)}))
}

func parseLogLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
