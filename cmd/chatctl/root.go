package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"chat-proxy/internal/chat"
	"chat-proxy/internal/config"
	"chat-proxy/internal/keys"
	"chat-proxy/internal/llm"
	"chat-proxy/internal/session"
	"chat-proxy/internal/storage"
	"chat-proxy/internal/storage/factory"
)

type app struct {
	svc   *chat.Service
	store storage.Store
}

type wireFunc func(ctx context.Context) (*app, error)

// wireApp builds the same service graph as the server, against the
// configured store.
func wireApp(ctx context.Context) (*app, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store := factory.Open(ctx, cfg)
	registry := session.NewRegistry(session.Options{
		Factory:    llm.NewFactory(cfg),
		GeminiKeys: keys.NewRotator(cfg.GeminiAPIKeys),
		OpenAIKey:  cfg.OpenAIAPIKey,
		Store:      store,
		BasePrompt: cfg.BaseSystemPrompt,
	})
	return &app{svc: chat.NewService(registry, store), store: store}, nil
}

func newRootCmd(wire wireFunc) *cobra.Command {
	var a *app

	rootCmd := &cobra.Command{
		Use:          "chatctl",
		Short:        "Inspect and drive the chat proxy from the terminal",
		Long:         "chatctl talks to the configured conversation store and backends directly: send messages, inspect history and edit per-user memory.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = wire(cmd.Context())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a == nil {
				return nil
			}
			return a.store.Close(context.WithoutCancel(cmd.Context()))
		},
	}

	// subcommands resolve the app lazily so --help never touches the store
	get := func() *app { return a }

	rootCmd.AddCommand(
		newAskCmd(get),
		newMemoryCmd(get),
		newHistoryCmd(get),
	)
	return rootCmd
}

func newAskCmd(get func() *app) *cobra.Command {
	var userID, model, systemPrompt string

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Send a message as a user and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reply, err := get().svc.Ask(cmd.Context(), chat.Request{
				Query:        args[0],
				UserID:       userID,
				Model:        model,
				SystemPrompt: systemPrompt,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), reply.Response)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "id", "", "user identifier")
	cmd.Flags().StringVar(&model, "model", "gemini", "backend: gemini or gpt")
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", "", "optional system prompt suffix")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newMemoryCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Read or replace a user's remembered facts",
	}
	cmd.AddCommand(newMemoryGetCmd(get), newMemorySetCmd(get))
	return cmd
}

func newMemoryGetCmd(get func() *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print a user's memory as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mem, err := get().svc.Memory(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), mem)
		},
	}
	cmd.Flags().StringVar(&userID, "id", "", "user identifier")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newMemorySetCmd(get func() *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "set key=value [key=value...]",
		Short: "Replace a user's memory with the given facts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mem, err := storage.ParseFacts(args)
			if err != nil {
				return err
			}
			if err := get().svc.SetMemory(cmd.Context(), userID, mem); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %d facts for %s\n", len(mem), userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "id", "", "user identifier")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newHistoryCmd(get func() *app) *cobra.Command {
	var (
		userID string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a user's conversation in order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			turns, err := get().svc.History(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), turns)
			}
			if len(turns) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no history")
				return nil
			}
			for _, t := range turns {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", t.Role, t.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "id", "", "user identifier")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print turns as JSON")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
