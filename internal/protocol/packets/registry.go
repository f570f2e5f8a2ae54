package packets

import "github.com/danmuck/palctl/internal/protocol/mapping"

// NewRegistry returns a registry holding every known variant.
func NewRegistry() *mapping.Registry {
	r := mapping.NewRegistry()
	Install(r)
	return r
}

// Install registers the known variants into r.
func Install(r *mapping.Registry) {
	mapping.MustRegister(r, mapping.Schema[*Message]{
		New: func() *Message { return &Message{} },
		Headers: []mapping.Field[*Message]{
			mapping.Int("SOURCE-ID", func(m *Message) *int { return &m.UserID }),
			mapping.OptionalInt("TARGET-ID", func(m *Message) **int { return &m.GroupID }),
			mapping.String("CONTENT-TYPE", func(m *Message) *string { return &m.MimeType }),
			mapping.String("TIMESTAMP", func(m *Message) *string { return &m.Timestamp }),
		},
		Payloads: []mapping.Payload[*Message]{
			mapping.Text("Content", func(m *Message) *string { return &m.Content }),
		},
	})
	mapping.MustRegister(r, mapping.Schema[*AuthRequest]{
		New: func() *AuthRequest { return &AuthRequest{} },
		Payloads: []mapping.Payload[*AuthRequest]{
			mapping.Bytes("Key", func(m *AuthRequest) *[]byte { return &m.Key }),
		},
	})
	mapping.MustRegister(r, mapping.Schema[*Response]{
		New: func() *Response { return &Response{} },
		Headers: []mapping.Field[*Response]{
			mapping.Int("WHAT", func(m *Response) *int { return &m.What }),
			mapping.Int("TYPE", func(m *Response) *int { return &m.Type }),
			mapping.Int64("MESG-ID", func(m *Response) *int64 { return &m.MessageID }),
		},
		Payloads: []mapping.Payload[*Response]{
			mapping.Bytes("Message", func(m *Response) *[]byte { return &m.Message }),
		},
	})
	mapping.MustRegister(r, mapping.Schema[*LoginFailed]{
		New: func() *LoginFailed { return &LoginFailed{} },
		Headers: []mapping.Field[*LoginFailed]{
			mapping.String("REASON", func(m *LoginFailed) *string { return &m.Reason }),
		},
		Payloads: []mapping.Payload[*LoginFailed]{
			mapping.Text("Payload", func(m *LoginFailed) *string { return &m.Payload }),
		},
	})
	mapping.MustRegister(r, mapping.Schema[*PingRequest]{
		New: func() *PingRequest { return &PingRequest{} },
	})
	mapping.MustRegister(r, mapping.Schema[*GroupUpdate]{
		New: func() *GroupUpdate { return &GroupUpdate{} },
		Payloads: []mapping.Payload[*GroupUpdate]{
			mapping.Bytes("Payload", func(m *GroupUpdate) *[]byte { return &m.Payload }),
		},
	})
	mapping.MustRegister(r, mapping.Schema[*AdminAction]{
		New: func() *AdminAction { return &AdminAction{} },
		Headers: []mapping.Field[*AdminAction]{
			mapping.Int("SOURCE-ID", func(m *AdminAction) *int { return &m.SourceID }),
			mapping.Int("TARGET-ID", func(m *AdminAction) *int { return &m.TargetID }),
			mapping.Int("GROUP-ID", func(m *AdminAction) *int { return &m.GroupID }),
			mapping.Int("ACTION", func(m *AdminAction) *int { return &m.Action }),
		},
	})
	mapping.MustRegister(r, mapping.Schema[*BalanceQueryResult]{
		New: func() *BalanceQueryResult { return &BalanceQueryResult{} },
		Payloads: []mapping.Payload[*BalanceQueryResult]{
			mapping.Bytes("Payload", func(m *BalanceQueryResult) *[]byte { return &m.Payload }),
		},
	})
	mapping.MustRegister(r, mapping.Schema[*SubProfile]{
		New: func() *SubProfile { return &SubProfile{} },
		Headers: []mapping.Field[*SubProfile]{
			mapping.OptionalInt("IV", func(m *SubProfile) **int { return &m.IV }),
			mapping.OptionalInt("RK", func(m *SubProfile) **int { return &m.RK }),
		},
		Payloads: []mapping.Payload[*SubProfile]{
			mapping.Bytes("Data", func(m *SubProfile) *[]byte { return &m.Data }),
		},
	})
	mapping.MustRegister(r, mapping.Schema[*SubProfileQueryResult]{
		New: func() *SubProfileQueryResult { return &SubProfileQueryResult{} },
		Payloads: []mapping.Payload[*SubProfileQueryResult]{
			mapping.Bytes("Data", func(m *SubProfileQueryResult) *[]byte { return &m.Data }),
		},
	})
	mapping.MustRegister(r, mapping.Schema[*Throttle]{
		New: func() *Throttle { return &Throttle{} },
		Headers: []mapping.Field[*Throttle]{
			mapping.Int("DURATION", func(m *Throttle) *int { return &m.Duration }),
			mapping.String("REASON", func(m *Throttle) *string { return &m.Reason }),
		},
	})
}
