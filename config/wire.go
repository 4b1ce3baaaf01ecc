package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hupe1980/silo"
	"github.com/hupe1980/silo/blobstore"
	"github.com/hupe1980/silo/blobstore/minio"
	"github.com/hupe1980/silo/blobstore/s3"
	"github.com/hupe1980/silo/resource"
	"github.com/hupe1980/silo/server"
)

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Logger builds the logger described by l, writing to w.
func (l Log) Logger(w io.Writer) (*silo.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(l.Format, "json") {
		return silo.NewJSONLogger(w, level), nil
	}
	return silo.NewTextLogger(w, level), nil
}

// Controller builds the admission controller.
func (c *Config) Controller() *resource.Controller {
	return resource.NewController(resource.Config{
		MaxConcurrentQueries: c.Query.MaxConcurrentQueries,
		QueueTimeout:         time.Duration(c.Query.QueueTimeoutMs) * time.Millisecond,
		RequestsPerSecond:    c.Query.RequestsPerSecond,
		Burst:                c.Query.Burst,
		LoadBytesPerSec:      c.Snapshot.LoadBytesPerSec,
	})
}

// Options returns the database options of the configuration.
func (c *Config) Options() []silo.Option {
	return []silo.Option{
		silo.WithWorkers(c.Query.Workers),
		silo.WithQueryTimeout(time.Duration(c.Query.TimeoutSeconds) * time.Second),
		silo.WithPollInterval(time.Duration(c.Snapshot.PollInterval) * time.Second),
		silo.WithLoadConcurrency(c.Snapshot.LoadConcurrency),
	}
}

// Server returns the HTTP server configuration.
func (c *Config) Server() server.Config {
	return server.Config{
		Addr:            c.HTTP.Addr(),
		Mode:            c.HTTP.Mode,
		PProf:           c.HTTP.PProf,
		ExposeMetrics:   c.HTTP.ExposeMetrics,
		PrintAccessLog:  c.HTTP.PrintAccessLog,
		MaxBodyBytes:    c.HTTP.MaxBodyBytes,
		ReadTimeout:     time.Duration(c.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(c.HTTP.WriteTimeout) * time.Second,
		IdleTimeout:     time.Duration(c.HTTP.IdleTimeout) * time.Second,
		ShutdownTimeout: time.Duration(c.HTTP.ShutdownTimeout) * time.Second,
		ArrowBatchSize:  c.HTTP.ArrowBatchSize,
		SectionLength:   c.Info.SectionLength,
	}
}

// OpenStore connects to the configured blob store.
func (s Storage) OpenStore(ctx context.Context) (blobstore.BlobStore, error) {
	switch s.Type {
	case "local":
		return blobstore.NewLocalStore(s.Local.Path), nil
	case "s3":
		opts := []s3.Option{s3.WithPrefix(s.S3.Prefix)}
		if s.S3.Region != "" {
			opts = append(opts, s3.WithRegion(s.S3.Region))
		}
		if s.S3.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(s.S3.Endpoint))
		}
		if s.S3.PathStyle {
			opts = append(opts, s3.WithPathStyle())
		}
		if s.S3.DynamoDBTable != "" {
			return s3.NewWithCommits(ctx, s.S3.Bucket, s.S3.DynamoDBTable, opts...)
		}
		return s3.New(ctx, s.S3.Bucket, opts...)
	case "minio":
		return minio.Dial(ctx, minio.Config{
			Endpoint:  s.MinIO.Endpoint,
			AccessKey: s.MinIO.AccessKey,
			SecretKey: s.MinIO.SecretKey,
			Region:    s.MinIO.Region,
			Secure:    s.MinIO.Secure,
			Bucket:    s.MinIO.Bucket,
			Prefix:    s.MinIO.Prefix,
		})
	}
	return nil, fmt.Errorf("config: unknown storage type %q", s.Type)
}
