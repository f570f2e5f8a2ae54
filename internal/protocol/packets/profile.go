package packets

type SubProfile struct {
	IV   *int
	RK   *int
	Data []byte
}

func (*SubProfile) Command() string { return CmdSubProfile }

type SubProfileQueryResult struct {
	Data []byte
}

func (*SubProfileQueryResult) Command() string { return CmdSubProfileQueryResult }
