package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runloom/core/cache"
	"github.com/runloom/core/callbacks"
	"github.com/runloom/core/chatmodel"
	"github.com/runloom/core/internal/config"
	"github.com/runloom/core/providers"
	"github.com/runloom/core/ratelimit"
	"github.com/runloom/core/schema"
	"github.com/runloom/core/streaming"
)

var (
	chatSession   string
	chatStream    bool
	chatStopWords []string
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Send a prompt through the configured chat model",
	Long: `Send a single prompt through the configured provider chain and print
the response. With --stream, tokens print as they arrive; otherwise
the final message prints once complete.

Examples:
  runloomctl chat "What is the capital of France?"
  runloomctl chat --stream --session demo "Continue our conversation"`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Session ID for persistent conversation history")
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "Stream tokens as they arrive")
	chatCmd.Flags().StringSliceVar(&chatStopWords, "stop", nil, "Stop sequences")
}

func runChat(_ *cobra.Command, args []string) error {
	cfg, sysCfg, err := config.Load()
	if err != nil {
		return err
	}
	callbacks.SetupSlog(sysCfg.LogLevel)

	model, err := providers.NewFromConfig(cfg.LLM, providers.RetrySettings{
		MaxRetries:   sysCfg.MaxRetries,
		RetryDelayMs: sysCfg.RetryDelayMs,
	})
	if err != nil {
		return err
	}
	if sysCfg.CacheEnabled {
		model.WithCache(cache.NewInMemoryCache())
	}
	if sysCfg.RateLimitTPM > 0 {
		model.RateLimiter = ratelimit.NewAdaptive(sysCfg.RateLimitTPM, 0)
	}

	ctx := context.Background()
	if sysCfg.LLMTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(sysCfg.LLMTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	messages, save, err := conversationFor(cfg, sysCfg, args[0])
	if err != nil {
		return err
	}

	callbackCfg := callbacks.ConfigureOptions{Verbose: chatStream}

	if chatStream {
		chunks, err := model.Stream(ctx, messages, callbackCfg, chatStopWords)
		if err != nil {
			return err
		}
		var acc schema.AIMessageChunk
		started := false
		for chunk := range chunks {
			if started {
				acc = streaming.Add(acc, chunk)
			} else {
				acc = chunk
				started = true
			}
		}
		fmt.Println()
		if !started {
			return nil
		}
		return save(streaming.Finalize(acc).ToMessage())
	}

	response, err := model.Invoke(ctx, messages, callbackCfg, chatStopWords)
	if err != nil {
		return err
	}
	printResponse(response)
	return save(response)
}

// conversationFor assembles the message list for this invocation and
// returns a save callback that records the exchange into the session
// history (a no-op when no session is set).
func conversationFor(cfg *config.Config, sysCfg *config.SystemConfig, prompt string) ([]schema.Message, func(schema.AIMessage) error, error) {
	if chatSession == "" {
		var messages []schema.Message
		if cfg.SystemPrompt != "" {
			messages = append(messages, schema.NewSystemMessage(cfg.SystemPrompt))
		}
		messages = append(messages, schema.NewHumanMessage(prompt))
		return messages, func(schema.AIMessage) error { return nil }, nil
	}

	sm := chatmodel.NewSessionManager(sysCfg.HistoryStorage)
	history, err := sm.GetHistory(chatSession)
	if err != nil {
		return nil, nil, err
	}
	if cfg.SystemPrompt != "" {
		history.EnsureSystemMessage(cfg.SystemPrompt)
	}
	human := schema.NewHumanMessage(prompt)
	history.Add(human)

	save := func(response schema.AIMessage) error {
		history.Add(response)
		return sm.SaveSession(chatSession)
	}
	return history.GetMessages(), save, nil
}

func printResponse(msg schema.AIMessage) {
	text := msg.Text()
	if strings.TrimSpace(text) == "" && len(msg.ToolCalls) > 0 {
		fmt.Fprintln(os.Stdout, "(model requested tool calls)")
		for _, tc := range msg.ToolCalls {
			fmt.Fprintf(os.Stdout, "  %s(%v)\n", tc.Name, tc.Args)
		}
		return
	}
	fmt.Fprintln(os.Stdout, text)
}
