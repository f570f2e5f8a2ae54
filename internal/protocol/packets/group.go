package packets

import "fmt"

// GroupUpdate carries a membership change; the payload is passed through.
type GroupUpdate struct {
	Payload []byte
}

func (*GroupUpdate) Command() string { return CmdGroupUpdate }

type AdminAction struct {
	SourceID int
	TargetID int
	GroupID  int
	Action   int
}

func (*AdminAction) Command() string { return CmdAdminAction }

func (a *AdminAction) String() string {
	return fmt.Sprintf("%d - %d => %d (%d)", a.Action, a.SourceID, a.TargetID, a.GroupID)
}
