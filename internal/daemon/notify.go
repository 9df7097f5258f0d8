package daemon

import (
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"github.com/raoulx24/borg-scheduler/internal/logging"
)

// Notifier reports lifecycle state to systemd. Outside a Type=notify unit
// every call is a no-op.
type Notifier struct {
	log    logging.Logger
	notify func(unsetEnv bool, state string) (bool, error)
}

func NewNotifier(log logging.Logger) *Notifier {
	return &Notifier{log: log, notify: sd.SdNotify}
}

func (n *Notifier) Ready() { n.send(sd.SdNotifyReady) }

func (n *Notifier) Stopping() { n.send(sd.SdNotifyStopping) }

// Next publishes the upcoming trigger as the unit status line.
func (n *Notifier) Next(next time.Time) {
	n.send("STATUS=next archive at " + next.Format(time.RFC3339))
}

func (n *Notifier) send(state string) {
	if n == nil || n.notify == nil {
		return
	}
	sent, err := n.notify(false, state)
	if err != nil {
		n.log.Debug("systemd notify failed", logging.String("state", state), logging.Err(err))
		return
	}
	if sent {
		n.log.Debug("systemd notified", logging.String("state", state))
	}
}
