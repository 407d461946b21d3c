package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	rtvoice "github.com/babelforce/rtvoice-go"
	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/config"
	"github.com/babelforce/rtvoice-go/credentials"
	"github.com/babelforce/rtvoice-go/playback"
	"github.com/babelforce/rtvoice-go/providers"
)

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// credentialSource prefers the issuing endpoint and falls back to a provider
// key from the environment.
func credentialSource(cfg *config.Config) (credentials.Source, error) {
	if cfg.CredentialURL != "" {
		return credentials.NewHTTPSource(credentials.HTTPConfig{URL: cfg.CredentialURL}), nil
	}

	key := "OPENAI_API_KEY"
	if cfg.Provider == config.ProviderGemini {
		key = "GEMINI_API_KEY"
	}
	if v := os.Getenv(key); v != "" {
		return credentials.Static(v), nil
	}
	return nil, fmt.Errorf("neither RTVOICE_CREDENTIAL_URL nor %s is set", key)
}

func main() {
	var (
		args, log = initCLI()
	)

	cfg, err := args.config()
	must(err)

	creds, err := credentialSource(cfg)
	must(err)

	provider, err := providers.Option(cfg)
	must(err)

	var mic audio.Source = audio.NewStreamSource(os.Stdin, args.micRate)
	if args.tone > 0 {
		mic = audio.ToneSource(args.micRate, args.tone)
	}

	ended := make(chan rtvoice.EndReason, 1)
	// failed receives errors that left the engine idle, including sessions
	// that never reached the conversation
	failed := make(chan error, 1)

	var engine *rtvoice.Engine
	engine, err = rtvoice.New(cfg,
		provider,
		rtvoice.WithLogger(log),
		rtvoice.WithCredentialSource(creds),
		rtvoice.WithMicrophone(mic),
		rtvoice.WithSink(playback.NewWriterSink(os.Stdout)),
		rtvoice.WithToolHost(newLogHost(log)),
		rtvoice.WithDebug(args.debug),
		rtvoice.WithAudioStats(args.statsInterval),
		rtvoice.WithCallbacks(rtvoice.Callbacks{
			OnConversationStart: func(id string) {
				log.Info("conversation started", slog.String("session_id", id))
			},
			OnConversationEnd: func(reason rtvoice.EndReason) {
				log.Info("conversation ended", slog.String("reason", string(reason)))
				if reason == rtvoice.EndReasonLanguageChange {
					return
				}
				select {
				case ended <- reason:
				default:
				}
			},
			OnError: func(err error) {
				log.Error("engine error", slog.Any("err", err))
				if engine.Status().State != rtvoice.StateIdle {
					return
				}
				select {
				case failed <- err:
				default:
				}
			},
			OnMessagesUpdate: func(messages []rtvoice.TranscriptMessage) {
				if len(messages) == 0 {
					return
				}
				last := messages[len(messages)-1]
				if last.Final {
					log.Info("transcript", slog.Any("role", last.Role), slog.String("text", last.Text))
				}
			},
			OnStateChange: func(st rtvoice.Status) {
				log.Debug("state", slog.Any("state", st.State), slog.Bool("listening", st.Listening), slog.Bool("speaking", st.Speaking))
			},
		}),
	)
	must(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("connecting", slog.Any("provider", cfg.Provider), slog.String("model", cfg.Model), slog.String("language", cfg.Language))
	if err := engine.Connect(ctx); err != nil {
		log.Error("failed to connect", slog.Any("err", err))
		os.Exit(1)
	}

	if args.switchTo != "" && args.switchAfter > 0 {
		go func() {
			<-time.After(args.switchAfter)
			log.Info("switching language", slog.String("language", args.switchTo))
			if err := engine.ChangeLanguage(ctx, args.switchTo); err != nil && !errors.Is(err, rtvoice.ErrDisconnected) {
				log.Error("failed to switch language", slog.Any("err", err))
			}
		}()
	}

	if args.hangupAfter > 0 {
		go func() {
			<-time.After(args.hangupAfter)
			log.Info("simulating hangup", slog.Duration("hangup_after", args.hangupAfter))
			_ = engine.Disconnect(ctx)
		}()
	}

	ctrlC := make(chan os.Signal, 1)
	signal.Notify(ctrlC, os.Interrupt)

	for {
		select {
		case <-ctrlC:
			_ = engine.Disconnect(ctx)
			log.Info("terminated")
			os.Exit(0)
		case err := <-failed:
			log.Error("session failed", slog.Any("err", err))
			os.Exit(1)
		case reason := <-ended:
			st := engine.Status()
			if st.LastError != nil {
				log.Error("session ended with error", slog.String("reason", string(reason)), slog.Any("err", st.LastError))
				os.Exit(1)
			}
			log.Info("terminated")
			os.Exit(0)
		}
	}
}
