// Command quoracle is the CLI for the Quoracle agent runtime: config
// loading, environment wiring, and the long-running supervisor process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/agentcore"
	"github.com/shelvick/quoracle/budget"
	"github.com/shelvick/quoracle/config"
	"github.com/shelvick/quoracle/consensus"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
	"github.com/shelvick/quoracle/eventbus"
	"github.com/shelvick/quoracle/executor"
	"github.com/shelvick/quoracle/model"
	"github.com/shelvick/quoracle/observability"
	"github.com/shelvick/quoracle/persistence"
	"github.com/shelvick/quoracle/secrets"
	"github.com/shelvick/quoracle/taskmgr"
)

// CLI is the root command set.
type CLI struct {
	Config string `short:"c" help:"Path to config file." type:"path" required:""`

	Serve      ServeCmd      `cmd:"" help:"Boot the runtime and block until signaled."`
	Validate   ValidateCmd   `cmd:"" help:"Load and validate a config file, then exit."`
	CreateTask CreateTaskCmd `cmd:"" help:"Create a task and print its id."`
	Version    VersionCmd    `cmd:"" help:"Print version information."`
}

// VersionCmd prints build version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("quoracle dev")
	return nil
}

// ValidateCmd loads and validates a config file without starting anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if err := config.LoadEnvFiles(); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	_, err := config.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	fmt.Println("config OK")
	return nil
}

// CreateTaskCmd drives taskmgr.Manager.Create directly from CLI flags, the
// one operator-facing entrypoint onto task creation (no HTTP surface is
// named for this runtime — only the metrics port is served over HTTP).
type CreateTaskCmd struct {
	Prompt  string  `required:"" help:"The task's root prompt."`
	Profile string  `required:"" help:"Consensus profile name from the config file."`
	Budget  float64 `help:"Budget limit; 0 means unbounded." default:"0"`
}

func (c *CreateTaskCmd) Run(cli *CLI) error {
	rt, err := boot(context.Background(), cli.Config)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	req := taskmgr.CreateRequest{Prompt: c.Prompt, Profile: c.Profile}
	if c.Budget > 0 {
		req.BudgetLimit = &c.Budget
	}
	taskID, err := rt.Tasks.Create(context.Background(), req)
	if err != nil {
		return err
	}
	fmt.Println(taskID)
	return nil
}

// ServeCmd boots the full runtime, restores in-flight tasks, serves the
// metrics endpoint, and blocks until SIGINT/SIGTERM.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	rt, err := boot(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := rt.Tasks.RestoreOnStartup(ctx); err != nil {
		slog.Error("restore on startup failed", "error", err)
	}

	if rt.Config.Observability.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.Metrics.Handler())
		server := &http.Server{Addr: rt.Config.Observability.Metrics.Listen, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		slog.Info("serving metrics", "addr", rt.Config.Observability.Metrics.Listen)
	}

	slog.Info("quoracle runtime ready")
	<-ctx.Done()
	return nil
}

// runtime bundles the composed dependency graph a command needs after
// boot, kept small enough that each CLI command only touches what it uses.
type runtime struct {
	Config  *config.Config
	Store   persistence.Store
	Tasks   *taskmgr.Manager
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

func (rt *runtime) Close(ctx context.Context) {
	if rt.Tracer != nil {
		_ = rt.Tracer.Shutdown(ctx)
	}
	if closer, ok := rt.Store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}

// boot wires every component named in the runtime's composition root:
// config, persistence, models, secrets, budget, executors, dispatch,
// observability, the event bus, and the agent registry/task manager built
// on top of them.
func boot(ctx context.Context, configPath string) (*runtime, error) {
	if err := config.LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.Logging)

	store, err := openStore(cfg.Persistence)
	if err != nil {
		return nil, fmt.Errorf("open persistence: %w", err)
	}

	secretsResolver := secrets.NewDefaultResolver(store)
	scrubber := secrets.NewDefaultScrubber()
	tracker := budget.NewTracker(store)
	enforcer := budget.NewEnforcer(tracker)

	modelRegistry := model.NewRegistry()
	for id, mc := range cfg.Models {
		modelRegistry.Register(id, model.NewHTTPClient(model.HTTPConfig{
			ModelID: id,
			BaseURL: mc.BaseURL,
			APIKey:  mc.APIKey,
			Timeout: mc.Timeout,
		}))
	}

	embedderRegistry := model.NewEmbeddingRegistry()
	for id, ec := range cfg.Embedders {
		embedderRegistry.Register(id, model.NewHTTPEmbeddingClient(model.HTTPEmbeddingConfig{
			Model:   id,
			BaseURL: ec.BaseURL,
			APIKey:  ec.APIKey,
			Timeout: ec.Timeout,
		}))
	}
	embedder := defaultEmbedder(embedderRegistry, cfg.Embedders)

	metrics := observability.NewMetrics(cfg.Observability.Metrics.Namespace)
	tracer, err := observability.NewTracer(ctx, cfg.Observability.Tracing)
	if err != nil {
		return nil, fmt.Errorf("build tracer: %w", err)
	}

	executors := buildExecutors(cfg, modelRegistry)

	dispatcher := dispatch.NewDispatcher(enforcer, executors)
	dispatcher.OnComplete = metrics.OnComplete()

	bus := eventbus.New()

	env := &agentcore.Environment{
		EventBus:        bus,
		Store:           store,
		SecretsResolver: secretsResolver,
		Scrubber:        scrubber,
		Dispatcher:      dispatcher,
		Tracker:         tracker,
		Models:          callerMap(modelRegistry),
		Embedder:        embedder,
		Warn:            func(format string, args ...any) { slog.Warn(fmt.Sprintf(format, args...)) },
	}
	env.ConsensusEngine = buildConsensusEngineFactory(cfg, modelRegistry, embedder, enforcer)

	registry := agentcore.NewAgentRegistry(env)
	env.Registry = registry

	manager := taskmgr.NewManager(store, registry, env.Warn)

	return &runtime{Config: cfg, Store: store, Tasks: manager, Metrics: metrics, Tracer: tracer}, nil
}

func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func openStore(cfg config.PersistenceConfig) (persistence.Store, error) {
	if cfg.Dialect == "memory" {
		return persistence.NewMemory(), nil
	}
	return persistence.OpenSQL(cfg.Dialect, cfg.DSN)
}

func buildExecutors(cfg *config.Config, models *model.Registry) map[action.Kind]dispatch.ExecFunc {
	fileCfg := executor.FileConfig{
		WorkingDirectory:  cfg.Executors.File.WorkingDirectory,
		MaxFileSize:       cfg.Executors.File.MaxFileSize,
		AllowedExtensions: cfg.Executors.File.AllowedExtensions,
	}
	if cfg.Executors.File.BackupOnOverwrite != nil {
		fileCfg.BackupOnOverwrite = *cfg.Executors.File.BackupOnOverwrite
	}
	fileRead := executor.NewFileReadExecutor(fileCfg)
	fileWrite := executor.NewFileWriteExecutor(fileCfg)

	shellExec := executor.NewShellExecutor(executor.ShellConfig{
		AllowedCommands:  cfg.Executors.Shell.AllowedCommands,
		WorkingDirectory: cfg.Executors.Shell.WorkingDirectory,
		SyncThreshold:    cfg.Executors.Shell.SyncThreshold,
		MaxExecutionTime: cfg.Executors.Shell.MaxExecutionTime,
	})

	webExec := executor.NewWebExecutor(executor.WebConfig{
		Timeout:         cfg.Executors.Web.Timeout,
		MaxResponseSize: cfg.Executors.Web.MaxResponseSize,
		AllowedDomains:  cfg.Executors.Web.AllowedDomains,
		DeniedDomains:   cfg.Executors.Web.DeniedDomains,
		UserAgent:       cfg.Executors.Web.UserAgent,
	})

	mcpServers := make(map[string]executor.MCPServerConfig, len(cfg.Executors.MCP))
	for name, s := range cfg.Executors.MCP {
		mcpServers[name] = executor.MCPServerConfig{Command: s.Command, Args: s.Args, Env: s.Env}
	}
	mcpExec := executor.NewMCPExecutor(mcpServers)

	skillStore := executor.NewSkillStore()

	answerClient, _ := models.Get(defaultModelID(cfg.Models))
	answerEngine := executor.NewAnswerEngineExecutor(answerClient)
	generateImages := executor.NewGenerateImagesExecutor(imageGenerator(cfg))

	return map[action.Kind]dispatch.ExecFunc{
		action.KindOrient:         executor.Orient,
		action.KindWait:           executor.Wait,
		action.KindSendMessage:    executor.SendMessage,
		action.KindFetchWeb:       webExec.FetchWeb,
		action.KindCallAPI:        webExec.CallAPI,
		action.KindFileRead:       fileRead.FileRead,
		action.KindFileWrite:      fileWrite.FileWrite,
		action.KindSearchSecrets:  executor.SearchSecrets,
		action.KindGenerateSecret: executor.GenerateSecret,
		action.KindLearnSkills:    skillStore.LearnSkills,
		action.KindCreateSkill:    skillStore.CreateSkill,
		action.KindAnswerEngine:   answerEngine.AnswerEngine,
		action.KindGenerateImages: generateImages.GenerateImages,
		action.KindTodo:           executor.Todo,
		action.KindAdjustBudget:   executor.AdjustBudget,
		action.KindRecordCost:     executor.RecordCost,
		action.KindCallMCP:        mcpExec.CallMCP,
		action.KindExecuteShell:   shellExec.ExecuteShell,
		action.KindSpawnChild:     executor.SpawnChild,
		action.KindDismissChild:   executor.DismissChild,
	}
}

// imageGenerator builds generate_images' backing function against a model
// config named "images", if one is configured; otherwise every call fails
// with a clear, typed error rather than a nil-pointer panic.
func imageGenerator(cfg *config.Config) func(ctx context.Context, prompt string, count int) ([]string, error) {
	mc, ok := cfg.Models["images"]
	if !ok {
		return func(context.Context, string, int) ([]string, error) {
			return nil, errtag.New(errtag.KindInvalidParam, "generate_images: no \"images\" model configured")
		}
	}
	client := model.NewHTTPClient(model.HTTPConfig{ModelID: "images", BaseURL: mc.BaseURL, APIKey: mc.APIKey, Timeout: mc.Timeout})
	return func(ctx context.Context, prompt string, count int) ([]string, error) {
		reply, err := client.Generate(ctx, []model.Message{{Role: model.RoleUser, Content: prompt}}, model.SamplingOpts{})
		if err != nil {
			return nil, err
		}
		urls := make([]string, 0, count)
		for i := 0; i < count; i++ {
			urls = append(urls, reply.Content)
		}
		return urls, nil
	}
}

func defaultModelID(models map[string]config.ModelConfig) string {
	ids := make([]string, 0, len(models))
	for id := range models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// noopEmbedder reports an error rather than nil-pointer panicking when a
// semantic_similarity merge rule fires without a configured embedder.
type noopEmbedder struct{}

func (noopEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errtag.New(errtag.KindInvalidParam, "no embedder configured")
}

func defaultEmbedder(registry *model.EmbeddingRegistry, embedders map[string]config.EmbedderConfig) model.EmbeddingClient {
	id := defaultEmbedderID(embedders)
	if id == "" {
		return noopEmbedder{}
	}
	client, ok := registry.Get(id)
	if !ok {
		return noopEmbedder{}
	}
	return client
}

func defaultEmbedderID(embedders map[string]config.EmbedderConfig) string {
	ids := make([]string, 0, len(embedders))
	for id := range embedders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func callerMap(models *model.Registry) map[string]consensus.Caller {
	out := map[string]consensus.Caller{}
	for _, id := range models.Keys() {
		c, ok := models.Get(id)
		if ok {
			out[id] = c
		}
	}
	return out
}

// buildConsensusEngineFactory returns the Environment.ConsensusEngine
// closure: one fresh Engine per (profile, models) pair, built from the
// profile's configured schedule and refinement-round cap.
func buildConsensusEngineFactory(cfg *config.Config, models *model.Registry, embedder model.EmbeddingClient, enforcer *budget.Enforcer) func(profile string, modelIDs []string) *consensus.Engine {
	return func(profile string, modelIDs []string) *consensus.Engine {
		clients, err := models.Resolve(modelIDs)
		if err != nil {
			slog.Warn("consensus engine: model resolution failed", "profile", profile, "error", err)
		}
		callers := make([]consensus.Caller, 0, len(clients))
		for _, c := range clients {
			callers = append(callers, c)
		}

		p := cfg.Profiles[profile]
		maxRounds := p.MaxRefinementRounds
		if maxRounds == 0 {
			maxRounds = 4
		}
		startTemp := p.StartTemp
		if startTemp == 0 {
			startTemp = 0.7
		}
		floorTemp := p.FloorTemp
		if floorTemp == 0 {
			floorTemp = 0.2
		}

		return &consensus.Engine{
			Models:              callers,
			Merger:              consensus.NewMerger(embedder),
			Enforcer:            enforcer,
			Schedule:            consensus.Schedule{StartTemp: startTemp, FloorTemp: floorTemp},
			MaxRefinementRounds: maxRounds,
			Warn:                func(format string, args ...any) { slog.Warn(fmt.Sprintf(format, args...)) },
		}
	}
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli, kong.Name("quoracle"), kong.Description("Multi-model consensus agent runtime."))
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
