package templates

import (
	"testing"

	"github.com/danmuck/palctl/internal/protocol/packets"
	"github.com/danmuck/palctl/internal/testutil/testlog"
)

func TestLoginCapabilities(t *testing.T) {
	testlog.Start(t)
	plain := Login(LoginOptions{Email: "bot@example.com"})
	if plain.Command != "LOGON" || plain.Value("CAPABILITIES") != "786437" {
		t.Fatalf("unexpected login: %s", plain)
	}
	if plain.Value("APP-TYPE") != string(packets.DevicePC) || plain.Value("CLIENT-VERSION") != DefaultClientVersion {
		t.Fatalf("unexpected defaults: %s", plain)
	}
	if plain.Value("REDIRECT-COUNT") != "0" || plain.Value("NAME") != "bot@example.com" {
		t.Fatalf("unexpected identity headers: %s", plain)
	}

	filtered := Login(LoginOptions{Email: "bot@example.com", SpamFilter: true, Redirect: true, Device: packets.DeviceWeb})
	if filtered.Value("CAPABILITIES") != "790533" {
		t.Fatalf("spam filter flag not applied: %q", filtered.Value("CAPABILITIES"))
	}
	if filtered.Value("REDIRECT-COUNT") != "1" || filtered.Value("APP-TYPE") != "WEB" {
		t.Fatalf("unexpected options: %s", filtered)
	}
}

func TestAuthCarriesPassword(t *testing.T) {
	testlog.Start(t)
	p := Auth([]byte{1, 2, 3}, packets.StatusAway)
	if p.Value("ENCRYPTION-TYPE") != "1" || p.Value("ONLINE-STATUS") != "2" || len(p.Payload) != 3 {
		t.Fatalf("unexpected auth: %s", p)
	}
}

func TestMessageTemplates(t *testing.T) {
	testlog.Start(t)
	p := TextMessage(packets.Group, 55, "hi all")
	if p.Command != "MESG" || p.Value("TARGET-ID") != "55" || p.Value("MESG-TARGET") != "1" {
		t.Fatalf("unexpected message: %s", p)
	}
	if p.Value("CONTENT-TYPE") != "text/plain" || p.Content() != "hi all" {
		t.Fatalf("unexpected message body: %s", p)
	}
}

func TestGroupAndContactTemplates(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name    string
		command string
		key     string
		value   string
		got     func() (string, string)
	}{
		{"admin", "GROUP ADMIN", "ACTION", "4", func() (string, string) {
			p := AdminAction(packets.AdminBan, 9, 10)
			return p.Command, p.Value("ACTION")
		}},
		{"add contact", "CONTACT ADD", "TARGET-ID", "9", func() (string, string) {
			p := AddContact(9, "")
			return p.Command, p.Value("TARGET-ID")
		}},
		{"contact resp", "CONTACT ADD RESP", "ACCEPTED", "1", func() (string, string) {
			p := AddContactResponse(true, 9)
			return p.Command, p.Value("ACCEPTED")
		}},
		{"create", "GROUP CREATE", "DESC", "about", func() (string, string) {
			p := CreateGroup("room", "about", "")
			return p.Command, p.Value("DESC")
		}},
		{"join", "GROUP SUBSCRIBE", "NAME", "room", func() (string, string) {
			p := JoinGroup("room", "secret")
			return p.Command, p.Value("NAME")
		}},
		{"leave", "GROUP UNSUB", "GROUP-ID", "10", func() (string, string) {
			p := LeaveGroup(10)
			return p.Command, p.Value("GROUP-ID")
		}},
		{"profile", "CONTACT DETAIL", "NICKNAME", "bot", func() (string, string) {
			p := UpdateProfile("bot", "here")
			return p.Command, p.Value("NICKNAME")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, v := tc.got()
			if cmd != tc.command || v != tc.value {
				t.Fatalf("got command=%q %s=%q", cmd, tc.key, v)
			}
		})
	}
	if AddContact(1, "").Content() != DefaultAddContact {
		t.Fatalf("expected default contact message")
	}
	if Bye().Command != "BYE" || Ping().Command != "P" {
		t.Fatalf("unexpected control templates")
	}
}
