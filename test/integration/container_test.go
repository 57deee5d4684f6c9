//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/mednote/mednote/internal/platform/db"
)

// postgresContainer describes the throwaway database the suite runs against.
type postgresContainer struct {
	Image    string
	User     string
	Password string
	Database string
}

var defaultContainer = postgresContainer{
	Image:    "postgres:16-alpine",
	User:     "mednote",
	Password: "mednote",
	Database: "mednotetest",
}

func (pc postgresContainer) url(port int) string {
	return fmt.Sprintf("postgres://%s:%s@127.0.0.1:%d/%s?sslmode=disable", pc.User, pc.Password, port, pc.Database)
}

// startPostgresContainer runs pc with the Docker CLI on a free local port and
// returns its connection string once it answers queries.
func startPostgresContainer(ctx context.Context) (string, func(), error) {
	pc := defaultContainer
	if _, err := exec.LookPath("docker"); err != nil {
		return "", nil, errors.New("docker not found; set TEST_DATABASE_URL instead")
	}

	port, err := freePort()
	if err != nil {
		return "", nil, fmt.Errorf("find free port: %w", err)
	}
	name := fmt.Sprintf("mednote-integration-%d", port)
	_ = exec.CommandContext(ctx, "docker", "rm", "-f", name).Run()

	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"--name", name,
		"-p", fmt.Sprintf("127.0.0.1:%d:5432", port),
		"-e", "POSTGRES_USER="+pc.User,
		"-e", "POSTGRES_PASSWORD="+pc.Password,
		"-e", "POSTGRES_DB="+pc.Database,
		pc.Image,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run %s: %w: %s", pc.Image, err, out)
	}
	id := strings.TrimSpace(string(out))
	stop := func() { _ = exec.Command("docker", "rm", "-f", id).Run() }

	url := pc.url(port)
	if err := awaitReady(ctx, url, 30*time.Second); err != nil {
		stop()
		return "", nil, err
	}
	return url, stop, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// awaitReady polls with the same pool constructor the server uses.
func awaitReady(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	var last error
	for {
		attempt, done := context.WithTimeout(ctx, 2*time.Second)
		pool, err := db.NewPool(attempt, url, 1, 0)
		done()
		if err == nil {
			pool.Close()
			return nil
		}
		last = err
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %w", timeout, last)
		case <-tick.C:
		}
	}
}
