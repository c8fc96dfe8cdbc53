// Audit-archiver uploads verified invocation ledger segments to object storage.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bturcanu/monterosa-connector/pkg/archiver"
	"github.com/bturcanu/monterosa-connector/pkg/audit"
	"github.com/bturcanu/monterosa-connector/pkg/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioUploader struct {
	client *minio.Client
	bucket string
}

func (m minioUploader) Upload(ctx context.Context, key string, body []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)
	config.LoadDotEnv(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, config.PostgresDSN())
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	minioClient, err := minio.New(config.EnvOr("AUDIT_S3_ENDPOINT", "localhost:9000"), &minio.Options{
		Creds:  credentials.NewStaticV4(config.EnvOr("AUDIT_S3_ACCESS_KEY", "minioadmin"), config.EnvOr("AUDIT_S3_SECRET_KEY", "minioadmin"), ""),
		Secure: config.EnvOrBool("AUDIT_S3_SECURE", false),
	})
	if err != nil {
		log.Error("minio init failed", "error", err)
		os.Exit(1)
	}
	bucket := config.EnvOr("AUDIT_S3_BUCKET", "monterosa-audit")
	if err := ensureBucket(ctx, minioClient, bucket); err != nil {
		log.Error("bucket check failed", "bucket", bucket, "error", err)
		os.Exit(1)
	}

	store := audit.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		log.Error("audit migrate failed", "error", err)
		os.Exit(1)
	}
	svc := archiver.New(store, minioUploader{client: minioClient, bucket: bucket})
	svc.SetBatchSize(config.EnvOrInt("ARCHIVER_BATCH_SIZE", 1000))

	onlyClient := os.Getenv("ARCHIVER_CLIENT_ID")
	runOnce := config.EnvOrBool("ARCHIVER_RUN_ONCE", true)
	interval := config.EnvOrSeconds("ARCHIVER_INTERVAL_SEC", 300*time.Second)

	run := func() {
		if onlyClient != "" {
			key, err := svc.ArchiveClient(ctx, onlyClient)
			if err != nil {
				log.Error("archive client failed", "client_id", onlyClient, "error", err)
				return
			}
			if key != "" {
				log.Info("archived audit bundle", "client_id", onlyClient, "key", key)
			}
			return
		}
		keys, err := svc.ArchiveAll(ctx)
		for _, key := range keys {
			log.Info("archived audit bundle", "key", key)
		}
		if err != nil {
			log.Error("archive run incomplete", "error", err)
		}
	}

	run()
	if runOnce {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
