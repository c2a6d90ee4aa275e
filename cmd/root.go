package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lessonworks/sage/pkg/config"
	"github.com/lessonworks/sage/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sage",
	Short: "Chat with a deployed assistant",
	Long: `Interactive chat client for deployed assistants.

Messages stream over a persistent connection when the server supports it
and fall back to plain request/response when it does not.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Get()
		if settings.Server.Deployment == "" {
			return fmt.Errorf("no deployment configured: pass --deployment or set SAGE_DEPLOYMENT")
		}
		return RunApplication(settings)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .sage/settings.yaml)")

	rootCmd.PersistentFlags().StringP("server", "s", "", "server base URL")
	viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().StringP("deployment", "d", "", "deployment id to chat with")
	viper.BindPFlag("server.deployment", rootCmd.PersistentFlags().Lookup("deployment"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "access token")
	viper.BindPFlag("server.token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.PersistentFlags().Bool("no-stream", false, "disable the persistent connection and use request/response only")
	viper.BindPFlag("chat.no_stream", rootCmd.PersistentFlags().Lookup("no-stream"))

	rootCmd.PersistentFlags().Bool("show-thinking", true, "show the assistant's thinking while it streams")
	viper.BindPFlag("chat.show_thinking", rootCmd.PersistentFlags().Lookup("show-thinking"))

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if err := config.Init(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	// --no-stream inverts into the streaming setting
	if viper.GetBool("chat.no_stream") {
		config.Get().Chat.Streaming = false
	}
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
}
