package arena

import (
	"context"
	"math/rand"
	"time"

	"github.com/golang/glog"
)

type ReconnectSettings struct {
	MaxAttempts int
	MaxDelay    time.Duration
	Jitter      time.Duration
}

func DefaultReconnectSettings() *ReconnectSettings {
	return &ReconnectSettings{
		MaxAttempts: 10,
		MaxDelay:    60 * time.Second,
		Jitter:      1 * time.Second,
	}
}

// Reconnector layers a reconnect policy on top of a Client. The session
// itself never reconnects; this watches for unexpected closes and redials
// with capped exponential backoff and jitter. Client.Connect re-issues
// retained subscriptions, so a successful reconnect restores push updates.
type Reconnector struct {
	ctx    context.Context
	cancel context.CancelFunc

	client   *Client
	settings *ReconnectSettings

	removeCloseCallback func()
}

func NewReconnectorWithDefaults(ctx context.Context, client *Client) *Reconnector {
	return NewReconnector(ctx, client, DefaultReconnectSettings())
}

func NewReconnector(ctx context.Context, client *Client, settings *ReconnectSettings) *Reconnector {
	cancelCtx, cancel := context.WithCancel(ctx)
	reconnector := &Reconnector{
		ctx:      cancelCtx,
		cancel:   cancel,
		client:   client,
		settings: settings,
	}
	reconnector.removeCloseCallback = client.session.AddCloseCallback(func(err error) {
		go reconnector.run()
	})
	return reconnector
}

func (self *Reconnector) run() {
	for attempt := 0; attempt < self.settings.MaxAttempts; attempt += 1 {
		delay := min(time.Duration(1<<attempt)*time.Second, self.settings.MaxDelay)
		delay += time.Duration(rand.Int63n(int64(self.settings.Jitter) + 1))
		glog.Infof("[rc]reconnecting in %.1fs (attempt %d/%d)\n",
			delay.Seconds(), attempt+1, self.settings.MaxAttempts)

		select {
		case <-self.ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := self.client.Connect(self.ctx); err != nil {
			glog.Warningf("[rc]reconnect attempt %d error = %v\n", attempt+1, err)
			continue
		}
		glog.Infof("[rc]reconnected\n")
		return
	}
	glog.Errorf("[rc]gave up after %d attempts\n", self.settings.MaxAttempts)
}

func (self *Reconnector) Close() {
	self.removeCloseCallback()
	self.cancel()
}
