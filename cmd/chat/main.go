package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hilthontt/wschat"
	"github.com/hilthontt/wschat/internal/infrastructure/configs"
	"github.com/hilthontt/wschat/internal/infrastructure/env"
	"github.com/hilthontt/wschat/internal/infrastructure/tracing"
	"go.uber.org/zap"
)

func main() {
	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()

	cfg, err := configs.Load(configs.DeterminePath())
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(tracing.Config{
			ServiceName:  "wschat-demo",
			Environment:  env.GetString("ENVIRONMENT", "development"),
			OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		})
		if err != nil {
			log.Fatal(err)
		}
		defer shutdown(context.Background())
	}

	client := wschat.New(cfg.Server.Address,
		wschat.WithLogger(logger),
		wschat.WithHandshakeTimeout(cfg.Server.HandshakeTimeout),
		wschat.WithSendLimit(cfg.Limits.Messages, cfg.Limits.Window),
	)

	client.On(wschat.EventMessage, func(ev wschat.Event) {
		fmt.Printf("[%s] <%d> %s\n", ev.Target, ev.Message.MemberID, ev.Message.Text)
	})
	client.On(wschat.EventSysMessage, func(ev wschat.Event) {
		fmt.Printf("[%s] * %s\n", ev.Target, ev.Text)
	})
	client.On(wschat.EventUserStatusChange, func(ev wschat.Event) {
		if ev.Status != nil {
			fmt.Printf("[%s] -- member %d: %s\n", ev.Target, ev.Status.MemberID, ev.Status.Status)
		}
	})
	client.On(wschat.EventLeaveRoom, func(ev wschat.Event) {
		fmt.Printf("[%s] -- removed from room\n", ev.Target)
	})
	client.On(wschat.EventError, func(ev wschat.Event) {
		logger.Warn("server error", zap.Error(ev.Err), zap.String("target", ev.Target))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := client.Open(ctx); err != nil {
		logger.Fatal("open failed", zap.Error(err))
	}
	defer client.Close()

	if err := authenticate(ctx, client, cfg.Auth, logger); err != nil {
		logger.Fatal("authentication failed", zap.Error(err))
	}

	var active *wschat.Room
	for _, target := range cfg.Rooms {
		room, err := client.JoinRoom(ctx, target, wschat.JoinRoomOpts{LoadHistory: true})
		if err != nil {
			logger.Error("join failed", zap.String("target", target), zap.Error(err))
			continue
		}
		fmt.Printf("joined %s (%d members)\n", room.Target(), len(room.Members()))
		if active == nil {
			active = room
		}
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		client.Close()
		os.Exit(0)
	}()

	// Lines from stdin go to the first joined room; /quit exits.
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			return
		case active == nil:
			fmt.Println("not in any room")
		default:
			if err := active.SendMessage(line); err != nil {
				logger.Error("send failed", zap.Error(err))
			}
		}
	}
}

func authenticate(ctx context.Context, client *wschat.Client, auth configs.AuthConfig, logger *zap.Logger) error {
	var (
		info *wschat.AuthInfo
		err  error
	)

	switch {
	case auth.Token != "":
		info, err = client.RestoreConnection(ctx, auth.Token)
	case auth.UKey != "":
		info, err = client.AuthByKey(ctx, auth.UKey)
	case auth.APIKey != "":
		info, err = client.AuthByAPIKey(ctx, auth.APIKey)
	case auth.Login != "":
		info, err = client.AuthByLoginAndPassword(ctx, auth.Login, auth.Password)
	default:
		logger.Info("no credentials configured, continuing unauthenticated")
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("authenticated",
		zap.Int64("user_id", info.UserID),
		zap.String("login", info.Login))
	return nil
}
