package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	api "lifebook-backend/cmd/api"
	"lifebook-backend/internal/app"
	deviceDelivery "lifebook-backend/internal/device/delivery"
	"lifebook-backend/internal/permission"
	"lifebook-backend/internal/reminder/delivery"
	"lifebook-backend/internal/reminder/dispatcher"
	"lifebook-backend/internal/reminder/publisher"
	"lifebook-backend/internal/reminder/router"
	"lifebook-backend/internal/reminder/snapshot"
	"lifebook-backend/internal/reminder/worker"
	"lifebook-backend/internal/window"
	"lifebook-backend/pkg/clock"
	"lifebook-backend/pkg/config"
	"lifebook-backend/pkg/fcm"
	"lifebook-backend/pkg/notify"
	"lifebook-backend/pkg/trigger"
)

// sink is a notification sink that can also close what it showed.
type sink interface {
	notify.Sink
	notify.Closer
}

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid config:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk, err := clock.NewSystem(cfg.Reminder.Timezone)
	if err != nil {
		log.Fatal("Invalid timezone:", err)
	}

	// Initialize storage
	stores, err := app.OpenStores(cfg)
	if err != nil {
		log.Fatal("Failed to open stores:", err)
	}
	defer stores.Close()

	gate := permission.NewGate(stores.Permissions, nil)

	// Initialize FCM Client (optional, falls back to logging notifications)
	var notificationSink sink = notify.Log{}
	if cfg.Firebase.Credentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.Firebase.Credentials, stores.Devices, cfg.Server.AppOrigin)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		} else {
			notificationSink = fcmClient
			log.Println("[FCM] Client initialized")
		}
	} else {
		log.Println("[WARN] No Firebase credentials configured, notifications are only logged")
	}

	dispatchCfg := dispatcher.DefaultConfig()
	dispatchCfg.Delay = cfg.Reminder.DispatchDelay
	dispatchCfg.TargetRoute = cfg.Reminder.TargetRoute
	disp := dispatcher.New(notificationSink, gate, dispatchCfg)

	hub := window.NewHub()
	clickRouter := router.New(hub, notificationSink, cfg.Server.AppOrigin, cfg.Reminder.DefaultRoute)

	// Background worker
	workerCfg := worker.DefaultConfig()
	workerCfg.PeriodicSupported = cfg.Reminder.PeriodicSyncEnabled
	workerCfg.PeriodicInterval = cfg.Reminder.CheckInterval
	workerCfg.CacheGeneration = cfg.Reminder.CacheGeneration
	w := worker.New(snapshot.NewStore(stores.Cache), disp, gate, clk, stores.Cache, hub, workerCfg)
	w.SetObserver(api.RecordCheck)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := w.Run(ctx); err != nil {
			log.Printf("[Worker] Stopped with error: %v", err)
		}
	}()
	if err := w.Install(ctx); err != nil {
		log.Printf("[Worker] Install failed: %v", err)
	}

	// Foreground publisher, only when reminders can be read server side
	if stores.Reminders != nil {
		pub := publisher.New(stores.Reminders, w, gate, publisher.Config{
			Interval:               cfg.Reminder.PublishInterval,
			PermissionPollInterval: cfg.Reminder.PermissionPollInterval,
		})
		go pub.Run(ctx)
	} else {
		log.Println("[Publisher] No reminders database, waiting for clients to post reminders")
	}

	// Pub/Sub trigger, only if project ID is configured
	if cfg.Google.ProjectID != "" && cfg.Google.PubSubTopic != "" {
		listener, err := trigger.NewListener(ctx, cfg.Google.ProjectID, trigger.TopicName(cfg.Google.PubSubTopic), cfg.Google.Credentials, w)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize Pub/Sub trigger: %v", err)
		} else {
			defer listener.Close()
			go listener.Start(ctx)
		}
	} else {
		log.Println("[WARN] GOOGLE_PROJECT_ID or GOOGLE_PUBSUB_TOPIC not configured, Pub/Sub trigger disabled")
	}

	// Initialize HTTP handler
	handler := api.NewHandler(
		cfg.Auth.JWTSecret,
		delivery.NewReminderHandler(w, gate, clickRouter, hub),
		deviceDelivery.NewDeviceHandler(stores.Devices),
		w,
	)

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := handler.Start(ctx, ":"+cfg.Server.Port); err != nil {
		log.Printf("Server error: %v", err)
	}

	stop()
	<-workerDone
}
