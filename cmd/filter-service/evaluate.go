package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"notifilter/internal/config"
	"notifilter/internal/engine"
	"notifilter/internal/events"
	"notifilter/internal/logger"
	"notifilter/internal/rules"
	"notifilter/pkg/logging"
)

type evaluateOptions struct {
	eventFile string
	rulesFile string
	teamID    string
	channelID string
	userID    string
	verbose   bool
}

func evaluateCmd() *cobra.Command {
	opts := evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Decide a single event read from a JSON file and print the decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			engineCfg := config.EngineConfig{Rules: config.RulesConfig{SeedDefaults: true}}
			if path := resolveConfigFile(); path != "" {
				cfg, err := config.Load(path)
				if err != nil {
					return logging.NewStartup("evaluate").Fail("failed to load config", err)
				}
				engineCfg = cfg.Engine
			}
			return runEvaluate(cmd.Context(), engineCfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.eventFile, "event", "", "Path to a notification event JSON file (required)")
	cmd.Flags().StringVar(&opts.rulesFile, "rules", "", "Path to a YAML rule file, overrides engine.rules.file")
	cmd.Flags().StringVar(&opts.teamID, "team", "", "Team id, defaults to metadata.team_id")
	cmd.Flags().StringVar(&opts.channelID, "channel", "", "Channel id, defaults to metadata.channel_id")
	cmd.Flags().StringVar(&opts.userID, "user", "", "User id, defaults to metadata.user_id")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Log the decision as well")
	_ = cmd.MarkFlagRequired("event")

	return cmd
}

func runEvaluate(ctx context.Context, cfg config.EngineConfig, opts evaluateOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	data, err := os.ReadFile(opts.eventFile)
	if err != nil {
		return fmt.Errorf("failed to read event file: %w", err)
	}
	var event events.NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to parse event file %s: %w", opts.eventFile, err)
	}

	log := logger.NopLogger()
	if opts.verbose {
		if log, err = logger.New(config.LoggingConfig{Level: "debug", Format: "console"}); err != nil {
			return err
		}
	}

	eng, err := engine.New(engineOptions(cfg, log)...)
	if err != nil {
		return err
	}

	rulesFile := cfg.Rules.File
	if opts.rulesFile != "" {
		rulesFile = opts.rulesFile
	}
	if rulesFile != "" {
		if err := eng.ReloadRules(ctx, rules.NewFileRepository(rulesFile)); err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
	}

	fc := events.ContextFromMetadata(event)
	if opts.teamID != "" {
		fc.TeamID = opts.teamID
	}
	if opts.channelID != "" {
		fc.ChannelID = opts.channelID
	}
	if opts.userID != "" {
		fc.UserID = opts.userID
	}

	decision := eng.Evaluate(ctx, event, fc)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(decision)
}
