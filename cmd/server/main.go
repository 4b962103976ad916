package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "xiaozhi-server",
	Short: "Per-device voice assistant session server",
	Long: `xiaozhi-server accepts one persistent websocket connection per
device, runs VAD, ASR, LLM and TTS for each utterance, and streams the
synthesized reply back in order.`,
}

func init() {
	cobra.OnInitialize(loadEnv)
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file to load")
	rootCmd.AddCommand(newServeCmd())
}

func loadEnv() {
	if envFile == "" {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load env file %s: %v\n", envFile, err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
