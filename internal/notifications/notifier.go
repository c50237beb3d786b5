package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/dailyledger/internal/directory"
	"github.com/angelmondragon/dailyledger/pkg/config"
	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
	"github.com/angelmondragon/dailyledger/pkg/logger"
	"github.com/angelmondragon/dailyledger/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 4
	defaultTimeout     = 20 * time.Second
)

// Event describes one written order.
type Event struct {
	Tenant       string
	Vendor       string
	OrderNumber  string
	Date         string
	CustomerName string
	UserID       string
	Value        int64
	Updated      bool
	Lines        []EventLine
}

// EventLine is one ordered item as it was written to the ledger.
type EventLine struct {
	Name string
	Cell string
}

// FormatMessage renders the text sent to subscribers.
func FormatMessage(ev Event) string {
	verb := "placed"
	if ev.Updated {
		verb = "updated"
	}
	var b strings.Builder
	if ev.Vendor != "" {
		b.WriteString(ev.Vendor)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "order #%s %s by %s (%s) for %s, total %d",
		ev.OrderNumber, verb, ev.CustomerName, ev.UserID, ev.Date, ev.Value)
	for _, line := range ev.Lines {
		fmt.Fprintf(&b, "\n- %s: %s", line.Name, line.Cell)
	}
	return b.String()
}

// Notifier sends order events to subscribed users in the background.
type Notifier struct {
	sender      Sender
	logg        *logger.Logger
	metrics     *metrics.LedgerMetrics
	concurrency int
	timeout     time.Duration
	wg          sync.WaitGroup
}

func NewNotifier(sender Sender, cfg config.NotifyConfig, logg *logger.Logger, m *metrics.LedgerMetrics) (*Notifier, error) {
	if sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification sender required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	n := &Notifier{
		sender:      sender,
		logg:        logg,
		metrics:     m,
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
	}
	if n.concurrency <= 0 {
		n.concurrency = defaultConcurrency
	}
	if n.timeout <= 0 {
		n.timeout = defaultTimeout
	}
	return n, nil
}

// FanOut starts delivery of ev to every recipient with notify set and
// returns immediately. Delivery outlives the caller's context and failures
// are only logged.
func (n *Notifier) FanOut(ctx context.Context, ev Event, recipients []directory.User) {
	targets := make([]directory.User, 0, len(recipients))
	for _, u := range recipients {
		if u.Notify && strings.TrimSpace(u.Phone) != "" {
			targets = append(targets, u)
		}
	}
	if len(targets) == 0 {
		return
	}

	text := FormatMessage(ev)
	detached := context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()

		var g errgroup.Group
		g.SetLimit(n.concurrency)
		for _, u := range targets {
			g.Go(func() error {
				if err := n.sender.Send(sendCtx, u.Phone, text); err != nil {
					n.metrics.IncNotificationFailed(ev.Tenant)
					logCtx := n.logg.WithFields(sendCtx, map[string]any{
						"recipient_id": u.ID,
						"order_number": ev.OrderNumber,
					})
					n.logg.Error(logCtx, "notification send failed", err)
					return err
				}
				n.metrics.IncNotificationSent(ev.Tenant)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			n.logg.Warn(sendCtx, "notification fan-out finished with failures")
		}
	}()
}

// Wait blocks until every fan-out started so far has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
