// runloomctl is the manual smoke-test harness for the runloom core: it
// wires a provider adapter, a cache, and a stdout callback handler
// from config.json and drives the generation pipeline end to end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/runloom/core/providers/ollama"
	_ "github.com/runloom/core/providers/openaichat"
	_ "github.com/runloom/core/providers/openairesponses"
)

var rootCmd = &cobra.Command{
	Use:   "runloomctl",
	Short: "Drive the runloom chat-model pipeline from the command line",
	Long: `runloomctl wires a configured provider adapter into the runloom
generation pipeline and drives it end to end: cache, rate limiter,
callback handlers, streaming aggregation.

Configuration is read from config.json (provider groups, system
prompt) and system.json (log level, retries, cache) in the working
directory.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
