package listenerchecker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/memohai/tglistener/internal/healthcheck"
	"github.com/memohai/tglistener/internal/listener"
)

const checkTypeListenerSession = "listener.session"

// SessionObserver reads runtime session statuses.
type SessionObserver interface {
	Statuses() []listener.SessionStatus
}

// Checker reports one result per live listener session.
type Checker struct {
	logger   *slog.Logger
	sessions SessionObserver
	limit    int
}

// NewChecker creates a listener checker. limit is the configured session cap,
// 0 for none.
func NewChecker(log *slog.Logger, sessions SessionObserver, limit int) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{
		logger:   log.With(slog.String("checker", "healthcheck_listener")),
		sessions: sessions,
		limit:    limit,
	}
}

// ListChecks lists registered sessions plus a capacity item. A session whose
// connection has ended is an error.
func (c *Checker) ListChecks(ctx context.Context) []healthcheck.CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return []healthcheck.CheckResult{}
	}
	if c.sessions == nil {
		c.logger.Warn("listener healthcheck dependency is unavailable")
		return []healthcheck.CheckResult{
			{
				ID:      checkTypeListenerSession + ".service",
				Type:    checkTypeListenerSession,
				Status:  healthcheck.StatusWarn,
				Summary: "Listener registry is not available.",
			},
		}
	}

	statuses := c.sessions.Statuses()
	checks := make([]healthcheck.CheckResult, 0, len(statuses)+1)
	capacity := healthcheck.CheckResult{
		ID:      checkTypeListenerSession + ".capacity",
		Type:    checkTypeListenerSession,
		Status:  healthcheck.StatusOK,
		Summary: fmt.Sprintf("%d sessions registered.", len(statuses)),
		Metadata: map[string]any{
			"registered": len(statuses),
			"limit":      c.limit,
		},
	}
	if c.limit > 0 && len(statuses) >= c.limit {
		capacity.Status = healthcheck.StatusWarn
		capacity.Summary = fmt.Sprintf("Session limit reached (%d/%d).", len(statuses), c.limit)
	}
	checks = append(checks, capacity)

	for _, status := range statuses {
		apiID := strconv.FormatInt(status.APIID, 10)
		item := healthcheck.CheckResult{
			ID:       checkTypeListenerSession + "." + apiID,
			Type:     checkTypeListenerSession,
			Subtitle: apiID,
			Status:   healthcheck.StatusError,
			Summary:  fmt.Sprintf("Session %s connection is down.", apiID),
			Metadata: map[string]any{
				"api_id":  status.APIID,
				"running": status.Running,
			},
		}
		if !status.StartedAt.IsZero() {
			item.Metadata["started_at"] = status.StartedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		if status.Running {
			item.Status = healthcheck.StatusOK
			item.Summary = fmt.Sprintf("Session %s is listening.", apiID)
		} else if detail := strings.TrimSpace(status.LastError); detail != "" {
			item.Detail = detail
		}
		checks = append(checks, item)
	}
	return checks
}
