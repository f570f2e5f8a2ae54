// Package templates builds the outbound packets the client sends.
package templates

import (
	"strconv"

	"github.com/danmuck/palctl/internal/protocol/packet"
	"github.com/danmuck/palctl/internal/protocol/packets"
)

const (
	DefaultClientVersion = "2.8.1, 60842"
	DefaultAddContact    = "I'd like to add you!"

	baseCapabilities = 786437
	spamFilterFlag   = 0x1000
)

type LoginOptions struct {
	Email         string
	Device        packets.Device
	SpamFilter    bool
	ClientVersion string
	Redirect      bool
}

func Login(opts LoginOptions) *packet.Packet {
	caps := baseCapabilities
	if opts.SpamFilter {
		caps |= spamFilterFlag
	}
	device := opts.Device
	if device == "" {
		device = packets.DevicePC
	}
	version := opts.ClientVersion
	if version == "" {
		version = DefaultClientVersion
	}
	redirect := "0"
	if opts.Redirect {
		redirect = "1"
	}
	return packet.New("LOGON",
		packet.Header{Key: "APP-TYPE", Value: string(device)},
		packet.Header{Key: "CAPABILITIES", Value: strconv.Itoa(caps)},
		packet.Header{Key: "CLIENT-VERSION", Value: version},
		packet.Header{Key: "FW", Value: "Win 6.2"},
		packet.Header{Key: "PROTOCOL-VERSION", Value: "2.0"},
		packet.Header{Key: "NAME", Value: opts.Email},
		packet.Header{Key: "REDIRECT-COUNT", Value: redirect},
	)
}

// Auth carries the transformed password.
func Auth(password []byte, status packets.OnlineStatus) *packet.Packet {
	p := packet.New("AUTH",
		packet.Header{Key: "ENCRYPTION-TYPE", Value: "1"},
		packet.Header{Key: "ONLINE-STATUS", Value: strconv.Itoa(int(status))},
	)
	p.Payload = password
	return p
}

func Ping() *packet.Packet {
	return packet.New("P")
}

func Message(kind packets.MessageKind, dt packets.DataType, id int, data []byte) *packet.Packet {
	p := packet.New("MESG",
		packet.Header{Key: "TARGET-ID", Value: strconv.Itoa(id)},
		packet.Header{Key: "MESG-TARGET", Value: strconv.Itoa(int(kind))},
		packet.Header{Key: "CONTENT-TYPE", Value: dt.MimeType()},
	)
	p.Payload = data
	return p
}

func TextMessage(kind packets.MessageKind, id int, text string) *packet.Packet {
	return Message(kind, packets.DataText, id, []byte(text))
}

func AdminAction(action packets.AdminActionKind, user, group int) *packet.Packet {
	return packet.New("GROUP ADMIN",
		packet.Header{Key: "GROUP-ID", Value: strconv.Itoa(group)},
		packet.Header{Key: "TARGET-ID", Value: strconv.Itoa(user)},
		packet.Header{Key: "ACTION", Value: strconv.Itoa(int(action))},
	)
}

func AddContact(user int, message string) *packet.Packet {
	if message == "" {
		message = DefaultAddContact
	}
	p := packet.New("CONTACT ADD", packet.Header{Key: "TARGET-ID", Value: strconv.Itoa(user)})
	p.SetContent(message)
	return p
}

func AddContactResponse(accept bool, user int) *packet.Packet {
	accepted := "0"
	if accept {
		accepted = "1"
	}
	return packet.New("CONTACT ADD RESP",
		packet.Header{Key: "ACCEPTED", Value: accepted},
		packet.Header{Key: "SOURCE-ID", Value: strconv.Itoa(user)},
	)
}

func CreateGroup(name, description, password string) *packet.Packet {
	p := packet.New("GROUP CREATE",
		packet.Header{Key: "NAME", Value: name},
		packet.Header{Key: "DESC", Value: description},
	)
	p.SetContent(password)
	return p
}

func JoinGroup(name, password string) *packet.Packet {
	p := packet.New("GROUP SUBSCRIBE", packet.Header{Key: "NAME", Value: name})
	p.SetContent(password)
	return p
}

func LeaveGroup(group int) *packet.Packet {
	return packet.New("GROUP UNSUB", packet.Header{Key: "GROUP-ID", Value: strconv.Itoa(group)})
}

func Bye() *packet.Packet {
	return packet.New("BYE")
}

func UpdateProfile(nickname, status string) *packet.Packet {
	return packet.New("CONTACT DETAIL",
		packet.Header{Key: "NICKNAME", Value: nickname},
		packet.Header{Key: "STATUS", Value: status},
	)
}
