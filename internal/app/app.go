// Package app wires tgrate's services together through lifecycle.Manager:
// the chatlimit governor's worker, the retry throttler sitting above the
// Bot API client, and the update poller that drives live traffic through
// both. The services are composed through one Manager, which orders their
// start and stop by declared dependencies, rather than through ad-hoc
// goroutine bookkeeping.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tgrate/internal/adapters/botapi/govern"
	"tgrate/internal/infra/config"
	"tgrate/internal/infra/lifecycle"
	"tgrate/internal/infra/logger"
	"tgrate/internal/infra/telegram/chatlimit"
	"tgrate/internal/infra/throttle"
)

// shutdownDrainTimeout bounds how long Shutdown waits for the governor's
// worker to drain its backlog before force-cancelling it.
const shutdownDrainTimeout = 10 * time.Second

// App owns the process-lifetime context and the lifecycle.Manager that
// starts/stops every background service in dependency order.
type App struct {
	cl     *lifecycle.Manager
	ctx    context.Context
	cancel context.CancelFunc

	governor  *chatlimit.Governor
	govWorker *chatlimit.Worker
	govCancel context.CancelFunc
	govDone   chan struct{}

	retry  *throttle.Throttler
	client *govern.Client
	poller *Poller
}

// New allocates an App with its own root context. Init must be called
// before Run.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		ctx:    ctx,
		cancel: cancel,
		cl:     lifecycle.New(ctx),
	}
}

// Init builds the governor, the retry throttler and the poller from the
// loaded config, and registers them as lifecycle.Manager nodes. It must run
// after config.Load.
func (a *App) Init() error {
	env := config.Env()

	limits := chatlimit.Limits{
		PerSecChat:    uint32(env.ThrottlePerSecChat),
		PerMinChat:    uint32(env.ThrottlePerMinChat),
		PerSecOverall: uint32(env.ThrottlePerSecOverall),
	}
	a.governor, a.govWorker = chatlimit.New(limits, chatlimit.WithLogger(logger.Logger()))

	a.retry = govern.NewRetryThrottler(env.ThrottleRPS)
	a.client = govern.New(env.BotToken, env.TestDC, a.governor)
	a.poller = NewPoller(a.client, a.retry)

	if err := a.cl.Register("chatlimit_governor", "", nil, a.startGovernor, a.stopGovernor); err != nil {
		return fmt.Errorf("app: register chatlimit_governor: %w", err)
	}
	if err := a.cl.Register("retry_throttler", "", nil, a.startRetryThrottler, a.stopRetryThrottler); err != nil {
		return fmt.Errorf("app: register retry_throttler: %w", err)
	}
	deps := []string{"chatlimit_governor", "retry_throttler"}
	if err := a.cl.Register("update_poller", "", deps, a.startPoller, a.stopPoller); err != nil {
		return fmt.Errorf("app: register update_poller: %w", err)
	}
	return nil
}

// Run starts every registered service and blocks until the App's context is
// cancelled (by Shutdown or an external signal handler cancelling it).
func (a *App) Run() error {
	if err := a.cl.StartAll(); err != nil {
		return fmt.Errorf("app: start: %w", err)
	}
	<-a.ctx.Done()
	return nil
}

// Shutdown cancels the App's context and stops every service in reverse
// start order. Safe to call once; callers typically wire it to a signal
// handler.
func (a *App) Shutdown() {
	a.cancel()
	if err := a.cl.Shutdown(); err != nil {
		logger.Error("app shutdown finished with errors", zap.Error(err))
	}
}

// startGovernor runs the worker on a context detached from the node's own
// ctx: lifecycle.Manager cancels the node ctx immediately on Shutdown, which
// would abort the worker before it drains its backlog. Graceful draining is
// instead driven by stopGovernor below, calling Governor.Close().
func (a *App) startGovernor(ctx context.Context) (context.Context, error) {
	govCtx, govCancel := context.WithCancel(context.Background())
	a.govCancel = govCancel
	a.govDone = make(chan struct{})
	go func() {
		defer close(a.govDone)
		a.govWorker.Run(govCtx)
	}()
	return ctx, nil
}

// stopGovernor signals graceful shutdown and waits for the worker to drain
// its backlog, falling back to a hard cancel if draining takes too long.
func (a *App) stopGovernor(context.Context) error {
	a.governor.Close()
	select {
	case <-a.govDone:
	case <-time.After(shutdownDrainTimeout):
		logger.Warn("chatlimit governor did not drain backlog in time, cancelling")
		a.govCancel()
		<-a.govDone
	}
	return nil
}

func (a *App) startRetryThrottler(ctx context.Context) (context.Context, error) {
	a.retry.Start(ctx)
	return ctx, nil
}

func (a *App) stopRetryThrottler(context.Context) error {
	a.retry.Stop()
	return nil
}

// startPoller launches the update loop on the node's own context, which
// lifecycle.Manager cancels on Shutdown — that is the correct behavior here:
// an in-flight long-poll is abandoned rather than drained.
func (a *App) startPoller(ctx context.Context) (context.Context, error) {
	go a.poller.Run(ctx)
	return ctx, nil
}

func (a *App) stopPoller(context.Context) error {
	return nil
}
