package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Controller owns the connection lifecycle: connect, attach, wait for a game, then poll until
// something fails and start over. It is meant to run on a single goroutine for the lifetime
// of the process.
type Controller struct {
	cfg    Config
	dialer Dialer
	state  *State
	log    *zap.Logger

	stage ConnState

	// OnTransition is called on the Run goroutine after every stage change.
	OnTransition func(from, to ConnState)
}

func NewController(cfg Config, dialer Dialer, state *State, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.L()
	}
	if dialer == nil {
		dialer = &USB2SNESDialer{URL: cfg.URL, Name: cfg.ClientName, Logger: logger}
	}
	return &Controller{
		cfg:    cfg,
		dialer: dialer,
		state:  state,
		log:    logger,
	}
}

func (c *Controller) State() *State { return c.state }

// Run drives the state machine until ctx is done. Cancellation is observed between steps and
// during backoff sleeps; a blocked receive is interrupted by closing the session.
func (c *Controller) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		c.session(ctx)
	}
	c.transition(Disconnected)
	return ctx.Err()
}

func (c *Controller) transition(to ConnState) {
	from := c.stage
	c.stage = to
	c.log.Debug("transition", zap.Stringer("from", from), zap.Stringer("to", to))
	c.state.update(func(s *Snapshot) {
		s.Stage = to
		if to == Connecting && c.cfg.ClearReadyOnReconnect {
			s.Ready = false
		}
	})
	if c.OnTransition != nil {
		c.OnTransition(from, to)
	}
}

func (c *Controller) publish(kind ErrorKind, err error) {
	if kind.Recoverable() {
		c.log.Info("notify", zap.Stringer("kind", kind))
	} else {
		c.log.Warn("notify", zap.Stringer("kind", kind), zap.Error(err))
	}
	c.state.update(func(s *Snapshot) {
		s.LastError = kind
	})
}

// session runs one connection from Connecting until it fails.
func (c *Controller) session(ctx context.Context) {
	c.transition(Connecting)

	dev, err := c.dialer.Dial(ctx)
	if err != nil {
		c.publish(ConnectError, err)
		_ = sleep(ctx, c.cfg.ConnectBackoff)
		return
	}

	done := make(chan struct{})
	defer func() {
		close(done)
		if err := dev.Close(); err != nil {
			c.log.Debug("close", zap.Error(err))
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = dev.Close()
		case <-done:
		}
	}()

	if ctx.Err() != nil {
		return
	}

	c.transition(Attaching)
	if err = c.attach(ctx, dev); err != nil {
		if ctx.Err() == nil {
			c.publish(AttachError, err)
		}
		return
	}

	c.transition(AwaitingGame)
	if err = c.awaitGame(ctx, dev); err != nil {
		if ctx.Err() == nil {
			c.publish(TransferError, err)
		}
		return
	}

	c.transition(Ready)
	c.state.update(func(s *Snapshot) {
		s.Ready = true
	})

	var p *Poller
	if p, err = NewPoller(dev, c.state, c.log); err != nil {
		c.publish(TransferError, err)
		return
	}

	c.transition(Polling)
	for ctx.Err() == nil {
		if err = p.Poll(); err != nil {
			if ctx.Err() == nil {
				c.publish(TransferError, err)
			}
			return
		}
		if err = sleep(ctx, c.cfg.PollInterval); err != nil {
			return
		}
	}
}

// attach waits for the service to list the configured device (or any device when none is
// configured) and attaches to it. No device is retried on the same connection.
func (c *Controller) attach(ctx context.Context, dev Device) (err error) {
	for {
		var devices []string
		if devices, err = dev.ListDevice(); err != nil {
			return
		}
		if device := c.pickDevice(devices); device != "" {
			c.log.Info("attach", zap.String("device", device), zap.Int("devices", len(devices)))
			if err = dev.Attach(device); err != nil {
				return
			}
			return ctx.Err()
		}
		if len(devices) > 0 {
			c.log.Info("configured device not listed", zap.String("device", c.cfg.Device), zap.Strings("devices", devices))
		}

		c.publish(NoDeviceError, ErrNoDevice)
		if err = sleep(ctx, c.cfg.NoDeviceBackoff); err != nil {
			return
		}
	}
}

func (c *Controller) pickDevice(devices []string) string {
	if c.cfg.Device == "" {
		if len(devices) == 0 {
			return ""
		}
		return devices[0]
	}
	for _, d := range devices {
		if d == c.cfg.Device {
			return d
		}
	}
	return ""
}

// awaitGame polls Info until the device reports something other than the menu ROM.
func (c *Controller) awaitGame(ctx context.Context, dev Device) error {
	for {
		info, err := dev.Info()
		if err != nil {
			return err
		}
		if !c.cfg.isMenuROM(info.Game) {
			c.log.Info("game running", zap.Stringer("info", info))
			return ctx.Err()
		}

		c.publish(NoGameError, ErrNoGame)
		if err = sleep(ctx, c.cfg.NoGameBackoff); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
