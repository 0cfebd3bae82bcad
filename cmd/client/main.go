package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gordonklaus/portaudio"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dentavoice/voiceclient/internal/adapters/audio"
	"github.com/dentavoice/voiceclient/internal/adapters/livekit"
	"github.com/dentavoice/voiceclient/internal/adapters/token"
	"github.com/dentavoice/voiceclient/internal/app/devices"
	"github.com/dentavoice/voiceclient/internal/app/session"
	"github.com/dentavoice/voiceclient/internal/config"
	"github.com/dentavoice/voiceclient/internal/core"
	"github.com/dentavoice/voiceclient/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	if err := portaudio.Initialize(); err != nil {
		log.Fatal().Err(err).Msg("initialize audio")
	}
	defer portaudio.Terminate()

	sessCfg := session.DefaultConfig()
	sessCfg.RoomName = domain.RoomName(cfg.RoomName)
	if cfg.ConnectTimeout > 0 {
		sessCfg.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.DeviceSettle > 0 {
		sessCfg.DeviceSettle = cfg.DeviceSettle
	}
	if cfg.LevelSmoothing > 0 {
		sessCfg.Levels.Smoothing = cfg.LevelSmoothing
	}
	if cfg.LevelBoost > 0 {
		sessCfg.Levels.Boost = cfg.LevelBoost
	}

	ctrl := session.NewController(sessCfg, session.Deps{
		Tokens: token.NewClient(cfg.APIBase),
		Dialer: livekit.NewDialer(audio.NewSpeakers()),
		Mic:    audio.NewMicrophone(),
	})

	watcher := devices.Watch(audio.NewNotifier(0), func(ev core.DeviceEvent) {
		ctrl.HandleDeviceChange(ctx, ev)
	})
	defer watcher.Close()

	log.Info().Str("identity", string(ctrl.Identity())).Msg("voice client ready")
	fmt.Println("commands: connect | disconnect | speak | vol <0-1> | chat <text> | state | quit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if done := runCommand(ctx, ctrl, line); done {
				break loop
			}
		}
	}

	ctrl.Disconnect()
	log.Info().Msg("voice client exited")
}

func runCommand(ctx context.Context, ctrl *session.Controller, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "":
	case "connect":
		if err := ctrl.Connect(ctx); err != nil {
			fmt.Println("connect failed:", err)
		}
	case "disconnect":
		ctrl.Disconnect()
	case "speak":
		if err := ctrl.ToggleSpeaking(ctx); err != nil {
			fmt.Println("toggle failed:", err)
		}
	case "vol":
		v, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
		if err != nil {
			fmt.Println("usage: vol <0-1>")
			break
		}
		ctrl.SetVolume(v)
	case "chat":
		if err := ctrl.SendChatMessage(ctx, arg); err != nil {
			fmt.Println("chat failed:", err)
		}
	case "state":
		printState(ctrl)
	case "quit", "exit":
		return true
	default:
		fmt.Println("unknown command:", cmd)
	}
	return false
}

func printState(ctrl *session.Controller) {
	s := ctrl.State()
	fmt.Printf("status=%s speaking=%v volume=%.2f mic=%.0f agent=%.0f\n",
		s.Status, s.Speaking, s.Volume, s.LocalLevel, s.RemoteLevel)
	if s.LastError != "" {
		fmt.Println("error:", s.LastError)
	}
	for _, e := range s.Transcript {
		fmt.Printf("  [%s] %s\n", e.Speaker, e.Text)
	}
	for _, m := range s.Chat {
		fmt.Printf("  <%s> %s\n", m.Sender, m.Text)
	}
}
