package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings holds all configuration values
type Settings struct {
	// Server configuration
	Server struct {
		URL        string
		Deployment string
		Token      string
		Timeout    int
	}

	// Chat behavior
	Chat struct {
		Streaming    bool
		ShowThinking bool
	}

	// Logging configuration
	Logging struct {
		LogFile string
		Persist bool
		Level   string
	}

	// ConfigFile stores the path to the config file used
	ConfigFile string
}

// Global settings instance
var Global *Settings

// Init initializes the configuration system
func Init(cfgFile string) error {
	Global = &Settings{}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		Global.ConfigFile = cfgFile
	} else {
		viper.AddConfigPath("./.sage") // project directory first
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".sage"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
		Global.ConfigFile = ".sage/settings.yaml"
	}

	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.BindEnv("server.url", "SAGE_SERVER_URL")
	viper.BindEnv("server.deployment", "SAGE_DEPLOYMENT")
	viper.BindEnv("server.token", "SAGE_TOKEN")

	// Read config file if it exists
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	return Load()
}

// setDefaults sets all default configuration values
func setDefaults() {
	viper.SetDefault("server.url", "http://localhost:8080")
	viper.SetDefault("server.timeout", 60)

	viper.SetDefault("chat.streaming", true)
	viper.SetDefault("chat.show_thinking", true)

	viper.SetDefault("logging.log_file", "system.log")
	viper.SetDefault("logging.persist", false)
	viper.SetDefault("logging.level", "info")
}

// Load loads configuration from viper into the Settings struct
func Load() error {
	Global.Server.URL = viper.GetString("server.url")
	Global.Server.Deployment = viper.GetString("server.deployment")
	Global.Server.Token = viper.GetString("server.token")
	Global.Server.Timeout = viper.GetInt("server.timeout")

	Global.Chat.Streaming = viper.GetBool("chat.streaming")
	Global.Chat.ShowThinking = viper.GetBool("chat.show_thinking")

	Global.Logging.LogFile = viper.GetString("logging.log_file")
	Global.Logging.Persist = viper.GetBool("logging.persist")
	Global.Logging.Level = viper.GetString("logging.level")

	return nil
}

// Get returns the global settings instance
func Get() *Settings {
	if Global == nil {
		panic("config not initialized - call Init() first")
	}
	return Global
}
