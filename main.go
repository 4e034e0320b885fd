package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/ras0q/lazycompose/internal/chat"
	"github.com/ras0q/lazycompose/internal/chatext"
	"github.com/ras0q/lazycompose/internal/composer"
	"github.com/ras0q/lazycompose/internal/config"
	"github.com/ras0q/lazycompose/internal/logging"
	"github.com/ras0q/lazycompose/internal/tui"
)

func main() {
	if err := runProgram(); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func loadConfig() (config.Config, error) {
	path := os.Getenv("LAZYCOMPOSE_CONFIG")
	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func runProgram() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout belongs to the terminal UI
	logPath := envOr("LAZYCOMPOSE_LOG", filepath.Join(os.TempDir(), "lazycompose.log"))
	logger, err := logging.New(cfg.Log.Level, logPath)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	userID := envOr("LAZYCOMPOSE_USER", "me")
	channel := chatext.NewChannel(chatext.ChannelOptions{
		CID:  envOr("LAZYCOMPOSE_CHANNEL", "messaging:general"),
		User: chat.User{ID: userID, Name: userID, Devices: []chat.Device{{ID: cfg.Location.DeviceID}}},
		Members: []chat.User{
			{ID: userID, Name: userID},
		},
		Commands: []chat.Command{
			{Name: "giphy", Description: "Post a random gif", Args: "[text]"},
			{Name: "mute", Description: "Mute a user", Args: "[@username]"},
			{Name: "unmute", Description: "Unmute a user", Args: "[@username]"},
		},
		Logger: logger,
	})

	chatContext, err := chatext.NewContext(chatext.StaticBackend{}, cfg.LinkPreviews)
	if err != nil {
		return fmt.Errorf("create chat context: %w", err)
	}

	c := composer.New(composer.Options{
		Channel:       channel,
		Config:        cfg,
		Enricher:      chatContext,
		UploadChecker: chatContext.UploadPolicy(),
		Uploader:      channel,
		Logger:        logger,
	})
	release := c.RegisterSubscriptions()
	defer release()
	defer c.LinkPreviewsManager().CancelURLEnrichment()

	// NOTE: decrease padding
	h = h - 2

	model := tui.NewAppModel(w, h, tui.Options{
		Channel:  channel,
		Composer: c,
		Logger:   logger,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	errCh := make(chan error)

	eg := errgroup.Group{}
	eg.Go(func() error {
		return <-errCh
	})

	eg.Go(func() error {
		_, err := p.Run()
		errCh <- err

		return nil
	})

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("run program: %w", err)
	}

	for _, err := range model.Errors {
		logger.Warn("error during session", zap.Error(err))
	}

	return nil
}
