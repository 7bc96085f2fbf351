package depchecker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/memohai/tglistener/internal/healthcheck"
)

const (
	checkTypeDependency = "dependency"
	defaultCheckTimeout = 3 * time.Second
)

// PingFunc probes one backing service.
type PingFunc func(ctx context.Context) error

// Checker pings a backing service such as the database, cache or broker.
type Checker struct {
	logger  *slog.Logger
	name    string
	ping    PingFunc
	timeout time.Duration
}

// NewChecker creates a dependency checker named name.
func NewChecker(log *slog.Logger, name string, ping PingFunc) *Checker {
	if log == nil {
		log = slog.Default()
	}
	name = strings.TrimSpace(name)
	return &Checker{
		logger:  log.With(slog.String("checker", "healthcheck_"+name)),
		name:    name,
		ping:    ping,
		timeout: defaultCheckTimeout,
	}
}

// ListChecks returns a single result for the dependency.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	item := healthcheck.CheckResult{
		ID:       checkTypeDependency + "." + c.name,
		Type:     checkTypeDependency,
		Subtitle: c.name,
		Status:   healthcheck.StatusError,
	}
	if c.ping == nil {
		item.Status = healthcheck.StatusWarn
		item.Summary = fmt.Sprintf("%s is not configured.", c.name)
		return []healthcheck.CheckResult{item}
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	started := time.Now()
	err := c.ping(probeCtx)
	item.Metadata = map[string]any{"latency_ms": time.Since(started).Milliseconds()}
	if err != nil {
		c.logger.Warn("dependency ping failed", slog.Any("error", err))
		item.Summary = fmt.Sprintf("%s is not reachable.", c.name)
		item.Detail = err.Error()
		return []healthcheck.CheckResult{item}
	}
	item.Status = healthcheck.StatusOK
	item.Summary = fmt.Sprintf("%s is reachable.", c.name)
	return []healthcheck.CheckResult{item}
}
