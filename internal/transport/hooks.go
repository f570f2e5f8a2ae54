package transport

// Hooks are the transport's only observable side effects. Any may be nil.
// OnConnected runs before the read loop for that session starts, and every
// OnData call carries the session its bytes were read on.
type Hooks struct {
	OnException    func(err error, note string)
	OnConnected    func(session string)
	OnDisconnected func()
	OnData         func(session string, data []byte)
}

// Merge returns hooks that call h first and then other.
func (h Hooks) Merge(other Hooks) Hooks {
	return Hooks{
		OnException: func(err error, note string) {
			h.exception(err, note)
			other.exception(err, note)
		},
		OnConnected: func(session string) {
			h.connected(session)
			other.connected(session)
		},
		OnDisconnected: func() {
			h.disconnected()
			other.disconnected()
		},
		OnData: func(session string, data []byte) {
			h.data(session, data)
			other.data(session, data)
		},
	}
}

func (h Hooks) exception(err error, note string) {
	if h.OnException != nil {
		h.OnException(err, note)
	}
}

func (h Hooks) connected(session string) {
	if h.OnConnected != nil {
		h.OnConnected(session)
	}
}

func (h Hooks) disconnected() {
	if h.OnDisconnected != nil {
		h.OnDisconnected()
	}
}

func (h Hooks) data(session string, b []byte) {
	if h.OnData != nil {
		h.OnData(session, b)
	}
}
