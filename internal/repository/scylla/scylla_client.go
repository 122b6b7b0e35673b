package scylla

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"qa-service/internal/config"
	"qa-service/internal/util"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_bucket int,
    user_id text,
    full_name text,
    phone_hash text,
    phone_encrypted text,
    phone_dek text,
    phone_key_id text,
    created_at timestamp,
    PRIMARY KEY ((user_bucket), user_id)
);
CREATE TABLE IF NOT EXISTS phone_to_user (
    phone_hash text PRIMARY KEY,
    user_bucket int,
    user_id text,
    created_at timestamp
);
CREATE TABLE IF NOT EXISTS questions (
    question_id text PRIMARY KEY,
    user_id text,
    question_text text,
    subject text,
    topic text,
    difficulty_level text,
    grade_level text,
    status text,
    answer text,
    created_at timestamp,
    updated_at timestamp
);
CREATE TABLE IF NOT EXISTS questions_by_user (
    user_id text,
    created_at timestamp,
    question_id text,
    question_text text,
    subject text,
    topic text,
    difficulty_level text,
    grade_level text,
    status text,
    answer text,
    updated_at timestamp,
    PRIMARY KEY ((user_id), created_at, question_id)
) WITH CLUSTERING ORDER BY (created_at DESC, question_id DESC);
`

type ScyllaClient struct {
	Session *gocql.Session
}

func NewScyllaClient(cfg *config.Config) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if cfg.IsProduction() {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 util.GetEnv("SCYLLA_TLS_CA_FILE", "/app/certs/ca.pem"),
			CertPath:               util.GetEnv("SCYLLA_TLS_CERT_FILE", "/app/certs/scylla.pem"),
			KeyPath:                util.GetEnv("SCYLLA_TLS_KEY_FILE", "/app/certs/scylla.key"),
			EnableHostVerification: true,
		}
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{Session: session}

	if scyllaConfig.AutoMigrate {
		if err := client.EnsureSchema(context.Background()); err != nil {
			session.Close()
			return nil, err
		}
	}

	util.Info("ScyllaDB client initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

// EnsureSchema creates the tables the repositories rely on.
func (s *ScyllaClient) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if err := s.Session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	util.Info("ScyllaDB schema ensured")
	return nil
}

func schemaStatements() []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(ctx context.Context, stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...).WithContext(ctx)
}

func (s *ScyllaClient) Batch(ctx context.Context) *gocql.Batch {
	return s.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
}

func (s *ScyllaClient) HealthCheck(ctx context.Context) error {
	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

func (s *ScyllaClient) ExecuteWithRetry(ctx context.Context, query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if lastErr = query.Exec(); lastErr == nil {
			return nil
		}
		if i < maxRetries {
			if err := sleepCtx(ctx, time.Duration(i+1)*100*time.Millisecond); err != nil {
				return err
			}
		}
	}
	return lastErr
}

// ScanWithRetry retries transient failures; gocql.ErrNotFound is returned immediately.
func (s *ScyllaClient) ScanWithRetry(ctx context.Context, query *gocql.Query, dest ...interface{}) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		lastErr = query.Scan(dest...)
		if lastErr == nil || lastErr == gocql.ErrNotFound {
			return lastErr
		}
		if i < 2 {
			if err := sleepCtx(ctx, time.Duration(i+1)*100*time.Millisecond); err != nil {
				return err
			}
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
