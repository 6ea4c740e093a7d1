// Package bootstrap wires the configured backends together for the server and
// the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/arnold/achievements-api/internal/config"
	"github.com/arnold/achievements-api/internal/database"
	"github.com/arnold/achievements-api/internal/services"
	"github.com/arnold/achievements-api/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// App holds the opened backends.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Store    store.Store
	Uploader services.Uploader
	Push     *services.PushService

	firebase *firebase.App
	closers  []func() error
}

// Open connects the database, the achievement store, the upload backend and
// push notifications as configured.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.DB = db
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := database.Migrate(db); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	if cfg.FirebaseCredentials != "" {
		app, err := firebase.NewApp(ctx, &firebase.Config{
			DatabaseURL:   cfg.FirebaseDatabaseURL,
			StorageBucket: cfg.FirebaseStorageBucket,
		}, option.WithCredentialsFile(cfg.FirebaseCredentials))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("firebase app: %w", err)
		}
		a.firebase = app
	}

	if a.Store, err = a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)

	if a.Uploader, err = a.openUploader(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Push = a.openPush(ctx)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	switch a.Config.StoreBackend {
	case "memory":
		a.Log.Warn("using in-memory store, changes are lost on exit")
		return store.NewMemory(), nil

	case "firebase":
		if a.firebase == nil || a.Config.FirebaseDatabaseURL == "" {
			return nil, errors.New("firebase store needs FIREBASE_CREDENTIALS and FIREBASE_DATABASE_URL")
		}
		client, err := a.firebase.Database(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase database: %w", err)
		}
		return store.NewFirebase(client, a.Config.FirebasePollInterval, a.Log.Named("firebase")), nil

	case "gorm", "":
		var notifier store.Notifier = store.NewLocalNotifier()
		if a.Config.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     a.Config.RedisAddr,
				Password: a.Config.RedisPassword,
				DB:       a.Config.RedisDB,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				rdb.Close()
				return nil, fmt.Errorf("redis ping: %w", err)
			}
			a.closers = append(a.closers, rdb.Close)
			notifier = store.NewRedisNotifier(rdb, a.Log.Named("redis"))
		}
		return store.NewGorm(a.DB, notifier, a.Log.Named("store"))
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", a.Config.StoreBackend)
}

func (a *App) openUploader(ctx context.Context) (services.Uploader, error) {
	switch a.Config.UploadBackend {
	case "none":
		return services.NoUploader{}, nil

	case "firebase":
		if a.firebase == nil || a.Config.FirebaseStorageBucket == "" {
			a.Log.Warn("firebase uploads need FIREBASE_CREDENTIALS and FIREBASE_STORAGE_BUCKET, uploads disabled")
			return services.NoUploader{}, nil
		}
		client, err := a.firebase.Storage(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase storage: %w", err)
		}
		bucket, err := client.Bucket(a.Config.FirebaseStorageBucket)
		if err != nil {
			return nil, fmt.Errorf("firebase bucket: %w", err)
		}
		return services.NewBucketUploader(bucket, a.Config.FirebaseStorageBucket), nil

	case "local", "":
		return services.NewLocalUploader(a.Config.UploadDir, a.Config.PublicBaseURL), nil
	}
	return nil, fmt.Errorf("unknown UPLOAD_BACKEND %q", a.Config.UploadBackend)
}

// openPush never fails; push is disabled when it cannot be set up.
func (a *App) openPush(ctx context.Context) *services.PushService {
	log := a.Log.Named("push")
	if a.firebase == nil {
		return services.NewPushService(nil, log)
	}
	client, err := a.firebase.Messaging(ctx)
	if err != nil {
		log.Warn("FCM: failed to get messaging client", zap.Error(err))
		return services.NewPushService(nil, log)
	}
	return services.NewPushService(client, log)
}

// Close releases everything Open acquired, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
