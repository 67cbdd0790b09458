package tcpostgres

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	defaultImage = "postgres:16-alpine"
	postgresPort = "5432/tcp"
)

// PostgresContainer wraps the started postgres test container
type PostgresContainer struct {
	testcontainers.Container
	user     string
	password string
	dbName   string
}

type settings struct {
	req      testcontainers.ContainerRequest
	user     string
	password string
	dbName   string
}

type PostgresContainerOption func(s *settings)

func WithImage(image string) PostgresContainerOption {
	return func(s *settings) {
		s.req.Image = image
	}
}

func WithName(containerName string) PostgresContainerOption {
	return func(s *settings) {
		s.req.Name = containerName
	}
}

// WithCredentials sets user, password and name of the initial database
func WithCredentials(user, password, dbName string) PostgresContainerOption {
	return func(s *settings) {
		s.user, s.password, s.dbName = user, password, dbName
	}
}

// WithTmpfs keeps the postgres data directory in memory
func WithTmpfs() PostgresContainerOption {
	return func(s *settings) {
		s.req.Tmpfs = map[string]string{"/var/lib/postgresql/data": "rw"}
	}
}

// SetupPostgres starts (or reuses, if named) a postgres container and waits
// until the server accepts connections.
//
//nolint:whitespace // can't make both editor and linter happy
func SetupPostgres(ctx context.Context, opts ...PostgresContainerOption) (
	*PostgresContainer, error,
) {
	s := &settings{
		req: testcontainers.ContainerRequest{
			Image:        defaultImage,
			ExposedPorts: []string{postgresPort},
			Cmd:          []string{"postgres", "-c", "fsync=off"},
		},
		user:     "postgres",
		password: "password",
		dbName:   "postgres",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.req.Env = map[string]string{
		"POSTGRES_USER":     s.user,
		"POSTGRES_PASSWORD": s.password,
		"POSTGRES_DB":       s.dbName,
	}
	// the server restarts once after running the init scripts
	s.req.WaitingFor = wait.ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(time.Minute)

	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: s.req,
			Started:          true,
			Reuse:            s.req.Name != "",
		})
	if err != nil {
		return nil, err
	}
	return &PostgresContainer{
		Container: container,
		user:      s.user,
		password:  s.password,
		dbName:    s.dbName,
	}, nil
}

// ConnectionURL returns the postgres URL reachable from the test process
func (c *PostgresContainer) ConnectionURL(ctx context.Context) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, nat.Port(postgresPort))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		c.user, c.password, host, port.Port(), c.dbName), nil
}
