package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3            S3Config
	Passphrase    string
	Prefix        string
	ScheduleHour  int
	RetentionDays int
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	LastKey    string     `json:"last_key,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Manager ships database snapshots to S3-compatible storage on a daily
// schedule. Snapshots are taken with VACUUM INTO so the live WAL never
// needs to pause, and encrypted when a passphrase is configured.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	db     *sql.DB
	client s3Client
	logger *slog.Logger
	status Status

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. Without S3 credentials it stays
// disabled and every call is a no-op.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "snapshots/"
	}

	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "backup"),
		status: Status{State: StateDisabled},
	}

	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}

	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether the manager has a configured S3 target.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.client == nil {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the backup manager.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) checkSchedule(ctx context.Context) {
	now := time.Now().UTC()
	if now.Hour() != m.cfg.ScheduleHour || now.Minute() != 0 {
		return
	}

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
		return
	}
	if err := m.cleanup(ctx); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	}
}

// RunNow snapshots the database and uploads it, returning the S3 key.
func (m *Manager) RunNow(ctx context.Context) (string, error) {
	m.mu.RLock()
	client := m.client
	cfg := m.cfg
	m.mu.RUnlock()

	if client == nil {
		return "", fmt.Errorf("backup not configured: S3 credentials missing")
	}

	m.setStatus(Status{State: StateRunning})

	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("challenger-snapshot-%d.db", time.Now().UnixNano()))
	defer os.Remove(snapshot)

	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", fmt.Errorf("vacuum into snapshot: %w", err)
	}

	data, err := os.ReadFile(snapshot)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", fmt.Errorf("read snapshot: %w", err)
	}

	key := fmt.Sprintf("%ssnapshot-%s.db", cfg.Prefix, time.Now().UTC().Format("2006-01-02T150405Z"))
	if cfg.Passphrase != "" {
		data, err = Encrypt(data, cfg.Passphrase)
		if err != nil {
			m.setStatus(Status{State: StateError, Error: err.Error()})
			return "", fmt.Errorf("encrypt snapshot: %w", err)
		}
		key += ".enc"
	}

	backoff := retry.WithMaxRetries(4, retry.NewFibonacci(1*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(cfg.S3.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
		})
		if err != nil {
			return retry.RetryableError(fmt.Errorf("upload snapshot: %w", err))
		}
		return nil
	})
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", err
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now, LastKey: key})
	return key, nil
}

// cleanup deletes snapshots older than the retention period.
func (m *Manager) cleanup(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	cfg := m.cfg
	m.mu.RUnlock()

	if client == nil {
		return nil
	}

	before := time.Now().UTC().AddDate(0, 0, -cfg.RetentionDays)

	out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(cfg.S3.Bucket),
		Prefix: aws.String(cfg.Prefix),
	})
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	for _, obj := range out.Contents {
		if obj.LastModified == nil || !obj.LastModified.Before(before) {
			continue
		}
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(cfg.S3.Bucket),
			Key:    obj.Key,
		}); err != nil {
			m.logger.Error("delete expired snapshot", "key", aws.ToString(obj.Key), "error", err)
		}
	}

	return nil
}
