package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/apiflow/internal/config"
	"github.com/ShayCichocki/apiflow/internal/httpexec"
	"github.com/ShayCichocki/apiflow/internal/llm"
	"github.com/ShayCichocki/apiflow/internal/orchestrator"
	"github.com/ShayCichocki/apiflow/internal/retry"
	"github.com/ShayCichocki/apiflow/internal/signals"
	"github.com/ShayCichocki/apiflow/internal/spec"
	"github.com/ShayCichocki/apiflow/internal/state"
)

var (
	runSpecs    []string
	runModel    string
	runHeadless bool
	runNoSave   bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run a natural language request against your APIs",
	Long: `Run a natural language request.

The request is decomposed into ordered tasks. For each task, apiflow
selects the most relevant specification, resolves the concrete
endpoint and parameters (reading earlier task results where needed),
executes the HTTP call, and finally summarizes all results.

A task that cannot be matched to any endpoint is marked failed and
processing continues with the next task. The run aborts only when no
specifications load or the request yields no tasks.

A run can be interrupted from another terminal with 'apiflow stop';
the task in flight finishes and remaining tasks are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().StringSliceVar(&runSpecs, "specs", nil, "Spec directory or files (default: specs.source from config)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Claude model override")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without TUI (headless mode)")
	runCmd.Flags().BoolVar(&runNoSave, "no-save", false, "Do not record this run in history")
}

func runRequest(cmd *cobra.Command, args []string) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in runRequest: %v", r)
		}
	}()

	query := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	specSource := runSpecs
	if len(specSource) == 0 {
		specSource = []string{cfg.Specs.Source}
	}

	model := cfg.Anthropic.Model
	if runModel != "" {
		model = runModel
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, shutting down...")
		cancel()
	}()

	apiKey := ""
	if !cfg.Anthropic.UseAWSBedrock {
		apiKey, err = config.GetAPIKey(cfg)
		if err != nil {
			return err
		}
	}

	client, err := llm.NewClient(llm.ClientConfig{
		Model:         anthropic.Model(model),
		APIKey:        apiKey,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return fmt.Errorf("create Anthropic client: %w", err)
	}

	decider := llm.NewDecider(client, llm.WithSpecPromptLimit(cfg.Specs.PromptLimit))
	executor := httpexec.New(cfg.Execution.Timeout)

	// Stop-signal watcher. A broken watcher degrades to no stop support.
	watcher, err := signals.NewWatcher(workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: stop signal watcher unavailable: %v\n", err)
		watcher = nil
	} else {
		defer watcher.Close()
	}
	shouldStop := func() bool { return false }
	if watcher != nil {
		shouldStop = watcher.ShouldStop
	}

	var logger *orchestrator.DebugLogger
	if os.Getenv("APIFLOW_DEBUG") != "" {
		logger, err = orchestrator.NewDebugLogger(filepath.Join(workDir, ".apiflow", "debug.log"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: debug log unavailable: %v\n", err)
			logger = nil
		} else {
			defer logger.Close()
		}
	}

	orch, err := orchestrator.New(orchestrator.Config{
		SpecLoader: spec.LoadAll,
		Decomposer: decider,
		Selector:   decider,
		Resolver:   decider,
		Executor:   executor,
		Summarizer: decider,
		DecisionRetry: retry.Policy{
			MaxAttempts: cfg.Retry.DecisionAttempts,
			Wait:        cfg.Retry.DecisionWait,
		},
		ExecuteRetry: retry.Policy{
			MaxAttempts: cfg.Retry.ExecuteAttempts,
			Wait:        cfg.Retry.ExecuteWait,
		},
		ShouldStop: shouldStop,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	// Open run history unless disabled.
	var db *state.DB
	if cfg.History.Enabled && !runNoSave {
		dbPath := cfg.History.DBPath
		if dbPath == "" {
			dbPath = state.ProjectDBPath(workDir)
		}
		db, err = state.Open(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: run history unavailable: %v\n", err)
			db = nil
		} else {
			defer db.Close()
			if err := db.Migrate(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: run history unavailable: %v\n", err)
				db.Close()
				db = nil
			}
		}
	}

	runID := uuid.New().String()
	if db != nil {
		if err := db.CreateRun(&state.Run{
			ID:         runID,
			Query:      query,
			SpecSource: strings.Join(specSource, ","),
			Status:     state.RunActive,
			StartedAt:  time.Now(),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: record run: %v\n", err)
		}
	}

	var result *orchestrator.Result
	var runErr error
	if runHeadless {
		result, runErr = runHeadlessMode(ctx, orch, query, specSource)
	} else {
		result, runErr = runWithTUI(ctx, orch, query, specSource)
	}

	if db != nil {
		recordOutcome(db, runID, result, runErr)
	}

	if runErr != nil {
		return runErr
	}

	if client.Tracker().Calls() > 0 {
		in, out := client.Tracker().Total()
		fmt.Printf("\n(%d LLM calls, %d in / %d out tokens, ~$%.4f)\n",
			client.Tracker().Calls(), in, out, client.Tracker().Cost())
	}
	return nil
}

// recordOutcome persists the final run state to the history database.
func recordOutcome(db *state.DB, runID string, result *orchestrator.Result, runErr error) {
	now := time.Now()
	run := &state.Run{
		ID:         runID,
		Status:     state.RunFailed,
		FinishedAt: &now,
	}
	if runErr == nil && result != nil {
		run.TaskCount = len(result.Tasks)
		run.CompletedCount = result.Completed
		run.FailedCount = result.Failed
		run.Summary = result.Summary
		if result.Stopped {
			run.Status = state.RunStopped
		} else {
			run.Status = state.RunCompleted
		}

		tasks := make([]state.RunTask, 0, len(result.Tasks))
		for _, t := range result.Tasks {
			rt := state.RunTask{
				TaskID:      t.ID,
				Description: t.Description,
				Status:      string(t.Status),
				SpecID:      t.SelectedSpecID,
				ErrorDetail: t.ErrorDetail,
			}
			if t.Call != nil {
				rt.Method = t.Call.Method
				rt.URL = t.Call.URL
			}
			tasks = append(tasks, rt)
		}
		if err := db.RecordTasks(runID, tasks); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: record tasks: %v\n", err)
		}
	} else if runErr != nil {
		run.Summary = runErr.Error()
	}

	if err := db.FinishRun(run); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: finish run: %v\n", err)
	}
}
