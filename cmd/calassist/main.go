// Command calassist runs the conversational calendar assistant: a websocket
// chat endpoint in front of a multi-agent scheduler wired to a calendar
// backend and an optional memory service.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"

	"github.com/calassist/calassist/agent"
	"github.com/calassist/calassist/calendar"
	"github.com/calassist/calassist/calendar/google"
	"github.com/calassist/calassist/chat"
	"github.com/calassist/calassist/config"
	"github.com/calassist/calassist/core"
	"github.com/calassist/calassist/logging"
	"github.com/calassist/calassist/memory"
	"github.com/calassist/calassist/model"
	anthropicmodel "github.com/calassist/calassist/model/anthropic"
	openaimodel "github.com/calassist/calassist/model/openai"
	"github.com/calassist/calassist/runner"
	"github.com/calassist/calassist/server"
	"github.com/calassist/calassist/tool"
)

const (
	assistantName = "assistant"
	executorName  = "executor"
)

const assistantInstruction = `You are a helpful calendar assistant.
You help the user inspect and manage their calendar through the tools
available to you. Request a tool when you need calendar data or need to
change it; a dedicated executor runs the tool and reports the result back
to you. Use get_current_datetime whenever the user speaks in relative
terms like "tomorrow" or "next week".

Relevant things remembered about this user:
{context}

When the request is fully handled, summarize the outcome for the user and
end your message with TERMINATE.`

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// A missing .env file is fine, plain environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("main.exit", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	backend, err := buildCalendar(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("calendar backend: %w", err)
	}

	registry := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Logger = logger
	})
	if err := calendar.Register(registry, backend, assistantName, executorName); err != nil {
		return fmt.Errorf("register calendar tools: %w", err)
	}

	llm := buildModel(cfg)

	assistant := agent.NewModelAgent(assistantName, llm, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(assistantInstruction)
		o.Registry = registry
		o.EnableStreaming = cfg.Model.Streaming
		o.Logger = logger
	})
	executor := agent.NewExecutorAgent(executorName, registry, func(o *agent.ExecutorAgentOptions) {
		o.Logger = logger
	})
	human := agent.NewHumanAgent(core.HumanSpeaker)

	scheduler, err := chat.NewScheduler(registry, []agent.Agent{assistant, executor, human},
		func(o *chat.Options) {
			o.MaxRounds = cfg.Chat.MaxRounds
			o.Coordinator = assistantName
			o.Logger = logger
		})
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	r := runner.New(scheduler, func(o *runner.Options) {
		o.Memory = buildMemory(cfg, logger)
		o.Logger = logger
	})

	srv := server.New(r, func(o *server.Options) {
		o.AllowedOrigin = cfg.Server.AllowedOrigin
		o.Mode = core.Mode(cfg.Chat.Mode)
		o.Supersede = core.SupersedePolicy(cfg.Chat.SupersedePolicy)
		o.Logger = logger
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("main.listening", "addr", cfg.Server.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("main.shutdown")
	srv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func buildModel(cfg *config.Config) model.Model {
	if cfg.Model.Provider == "anthropic" {
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			o.Model = anthropicsdk.Model(cfg.Model.Name)
			if cfg.Model.APIKey != "" {
				o.APIKey = cfg.Model.APIKey
			}
		})
	}
	return openaimodel.NewModel(func(o *openaimodel.Options) {
		o.Model = cfg.Model.Name
		if cfg.Model.APIKey != "" {
			o.APIKey = cfg.Model.APIKey
		}
	})
}

func buildCalendar(ctx context.Context, cfg *config.Config, logger logging.Logger) (calendar.Client, error) {
	var backend calendar.Client
	switch cfg.Calendar.Backend {
	case "memory":
		backend = calendar.NewInMemoryClient()
	default:
		gc, err := google.New(ctx, func(o *google.Options) {
			o.CredentialsFile = cfg.Calendar.CredentialsFile
			o.TokenFile = cfg.Calendar.TokenFile
			o.Prompt = consoleAuthPrompt
			o.Logger = logger
		})
		if err != nil {
			return nil, err
		}
		backend = gc
	}
	return calendar.NewBreaker(backend, func(o *calendar.BreakerOptions) {
		o.MaxFailures = uint32(cfg.Calendar.BreakerFailures)
		o.Logger = logger
	}), nil
}

// consoleAuthPrompt runs the interactive re-authentication fallback on the
// terminal the process was started from.
func consoleAuthPrompt(authURL string) (string, error) {
	fmt.Printf("Visit this URL to authorize calendar access:\n%s\n\nAuthorization code: ", authURL)
	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(code), nil
}

func buildMemory(cfg *config.Config, logger logging.Logger) *memory.Adapter {
	var store memory.Store
	switch cfg.Memory.Backend {
	case "http":
		store = memory.NewHTTPClient(cfg.Memory.BaseURL, func(o *memory.HTTPClientOptions) {
			o.APIKey = cfg.Memory.APIKey
		})
	case "memory":
		store = memory.NewInMemory()
	default:
		store = nil
	}
	return memory.NewAdapter(store, func(o *memory.AdapterOptions) {
		o.Logger = logger
	})
}
