package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"portfolio-notify/internal/client"
	"portfolio-notify/internal/model"
	"portfolio-notify/internal/toast"
	"portfolio-notify/pkg/config"
	"portfolio-notify/pkg/logger"
	"portfolio-notify/pkg/util"
)

const (
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// backoff returns the exponential reconnect delay for a retry count,
// capped at maxDelay.
func backoff(retry int) time.Duration {
	if retry < 0 {
		return baseDelay
	}
	if retry > 30 {
		return maxDelay
	}
	d := baseDelay * time.Duration(1<<retry)
	if d > maxDelay {
		return maxDelay
	}
	return d
}

type terminalRenderer struct{}

func (terminalRenderer) Show(rec model.NotificationRecord) {
	fmt.Printf("\n[%s] %s: %s\n", strings.ToUpper(rec.Type), rec.Title, rec.Message)
}

func (terminalRenderer) Hide(model.NotificationRecord) {}

type logNavigator struct {
	log *zap.Logger
}

func (n logNavigator) Navigate(url string) {
	n.log.Info("Opening action URL", zap.String("url", url))
}

func main() {
	var (
		apiURL = flag.String("api", "http://localhost:8080", "REST base URL")
		wsURL  = flag.String("ws", "ws://localhost:8080", "push channel base URL")
		userID = flag.Int("user", 0, "user id to subscribe for")
		token  = flag.String("token", "", "bearer token")
		secret = flag.String("secret", "", "JWT secret to self-sign a dev token")
	)
	flag.Parse()

	log := logger.NewLogger()
	defer log.Sync()

	if *userID <= 0 {
		log.Fatal("missing -user")
	}
	if *token == "" && *secret != "" {
		t, err := util.GenerateJWT(*userID, *secret)
		if err != nil {
			log.Fatal("Failed to sign dev token", zap.Error(err))
		}
		*token = t
	}
	if *token == "" {
		log.Fatal("missing -token (or -secret)")
	}

	toastCfg := config.DefaultToastConfig()

	api := client.NewRESTClient(*apiURL, *token)
	store := client.NewStore(api, log)

	presenter := toast.NewTimedPresenter(toastCfg.Duration(), terminalRenderer{}, logNavigator{log: log}, log)
	sched := toast.NewScheduler(toast.SchedulerConfig{
		RecencyWindow: toastCfg.RecencyWindow(),
		MinSpacing:    toastCfg.MinSpacing(),
		GraceDelay:    toastCfg.GraceDelay(),
	}, presenter, log)
	defer sched.Reset()

	// Push event → store → scheduler. The store's idempotent Add gates the
	// scheduler, so an at-least-once transport cannot double-toast.
	sink := func(rec model.NotificationRecord) {
		if store.Add(rec) {
			sched.Evaluate(rec)
		}
	}

	disconnected := make(chan struct{}, 1)
	ch := client.NewChannel(client.ChannelConfig{
		URL:   *wsURL,
		Token: *token,
	}, sink, log)
	ch.OnStateChange(func(s client.ConnState) {
		log.Info("Connection state changed", zap.String("state", s.String()))
		if s == client.StateDisconnected {
			select {
			case disconnected <- struct{}{}:
			default:
			}
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect first, then load history. Records surfaced by the fetch run
	// through the same evaluation; the recency window keeps them silent.
	retry := 0
	for {
		if err := ch.Connect(ctx, *userID); err != nil {
			log.Warn("Connect failed", zap.Error(err), zap.Int("retry", retry))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff(retry)):
				retry++
				continue
			}
		}
		retry = 0

		if err := store.Fetch(ctx, *userID, toastCfg.PageSize, 0); err != nil {
			log.Warn("Fetch failed", zap.Error(err))
		} else {
			log.Info("Loaded notification history",
				zap.Int("records", len(store.Records())),
				zap.Int("unread", store.UnreadCount()),
			)
			for _, rec := range store.Records() {
				sched.Evaluate(rec)
			}
		}

		select {
		case <-ctx.Done():
			ch.Disconnect()
			return
		case <-disconnected:
			log.Warn("Push channel lost, reconnecting...")
		}
	}
}
