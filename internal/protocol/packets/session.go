package packets

// AuthRequest carries the server's auth key after LOGON.
type AuthRequest struct {
	Key []byte
}

func (*AuthRequest) Command() string { return CmdAuth }

type LoginFailed struct {
	Reason  string
	Payload string
}

func (*LoginFailed) Command() string { return CmdLoginFailed }

type PingRequest struct{}

func (*PingRequest) Command() string { return CmdPing }

// BalanceQueryResult arrives once logon completes.
type BalanceQueryResult struct {
	Payload []byte
}

func (*BalanceQueryResult) Command() string { return CmdBalanceQueryResult }

// Throttle asks the client to slow down for Duration.
type Throttle struct {
	Duration int
	Reason   string
}

func (*Throttle) Command() string { return CmdThrottle }
