package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/babelforce/rtvoice-go/config"
	"github.com/joho/godotenv"
)

type cliArgs struct {
	configFile    string
	envFile       string
	provider      string
	logLevel      string
	debug         bool
	micRate       int
	tone          float64
	language      string
	switchTo      string
	switchAfter   time.Duration
	hangupAfter   time.Duration
	statsInterval time.Duration
}

func (a *cliArgs) LogLevel() slog.Level {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(a.logLevel))
	if err != nil {
		panic(fmt.Errorf("invalid log level [%s]: %w", a.logLevel, err))
	}
	return lvl
}

// config loads the session config from file or environment and applies the
// flag overrides.
func (a *cliArgs) config() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configFile != "" {
		cfg, err = config.Load(a.configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.FromEnv()
		if err != nil {
			return nil, err
		}
	}

	if a.provider != "" {
		cfg.Provider = config.Provider(a.provider)
		cfg.Transport = ""
		cfg.Endpoint = ""
		cfg.Model = ""
		cfg.Voice = ""
		cfg.Voices = nil
	}
	if a.language != "" {
		cfg.Language = a.language
	}

	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initCLI() (*cliArgs, *slog.Logger) {
	args := cliArgs{
		envFile:       ".env",
		logLevel:      "info",
		micRate:       24_000,
		statsInterval: 0,
	}
	flag.StringVar(&args.configFile, "config", args.configFile, "yaml config file")
	flag.StringVar(&args.envFile, "env", args.envFile, "dotenv file, ignored when missing")
	flag.StringVar(&args.provider, "provider", args.provider, "provider preset (openai, gemini)")
	flag.StringVar(&args.logLevel, "log-level", args.logLevel, "log level")
	flag.BoolVar(&args.debug, "debug", args.debug, "dump every control message")
	flag.IntVar(&args.micRate, "mic-rate", args.micRate, "sample rate of the PCM16 microphone stream on stdin")
	flag.Float64Var(&args.tone, "tone", args.tone, "send a sine tone of this frequency instead of reading stdin")
	flag.StringVar(&args.language, "language", args.language, "conversation language")
	flag.StringVar(&args.switchTo, "switch-to", args.switchTo, "switch to this language after -switch-after")
	flag.DurationVar(&args.switchAfter, "switch-after", args.switchAfter, "delay before the language switch")
	flag.DurationVar(&args.hangupAfter, "hangup-after", args.hangupAfter, "disconnect after this duration")
	flag.DurationVar(&args.statsInterval, "stats", args.statsInterval, "log audio stats at this interval")
	flag.Parse()

	if args.envFile != "" {
		if err := godotenv.Load(args.envFile); err != nil && !os.IsNotExist(err) {
			panic(fmt.Errorf("failed to load env file [%s]: %w", args.envFile, err))
		}
	}

	// stdout carries the agent audio
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: args.LogLevel(),
	})))

	return &args, slog.Default()
}
