package bot

import (
	"time"

	"github.com/danmuck/palctl/internal/ids"
)

// Status is a point-in-time view of a bot session.
type Status struct {
	Connected      bool                `json:"connected"`
	LoggedIn       bool                `json:"logged_in"`
	SessionID      string              `json:"session_id,omitempty"`
	SessionStarted time.Time           `json:"session_started,omitzero"`
	Account        string              `json:"account,omitempty"`
	Plugins        []string            `json:"plugins"`
	Handlers       map[string][]string `json:"handlers"`
	PendingWatches int                 `json:"pending_watches"`
	Authorized     []int               `json:"authorized"`
	Blocked        []int               `json:"blocked"`
}

func (b *Bot) Status() Status {
	st := Status{
		Connected:      b.Connected(),
		LoggedIn:       b.LoggedIn(),
		SessionID:      b.SessionID(),
		Account:        b.Identity().Email,
		Plugins:        b.plugins.Names(),
		PendingWatches: b.watcher.Len(),
		Authorized:     b.Access().Authorized(),
		Blocked:        b.Access().Blocked(),
	}
	st.Handlers = make(map[string][]string)
	for _, cmd := range b.handlers.Commands() {
		st.Handlers[cmd] = b.handlers.Names(cmd)
	}
	if ts, ok := ids.SessionTime(st.SessionID); ok {
		st.SessionStarted = ts
	}
	return st
}
