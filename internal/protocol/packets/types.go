package packets

// Command strings for the known variants.
const (
	CmdMessage               = "MESG"
	CmdAuth                  = "AUTH"
	CmdResponse              = "RESPONSE"
	CmdLoginFailed           = "LOGON FAILED"
	CmdPing                  = "P"
	CmdGroupUpdate           = "GROUP UPDATE"
	CmdAdminAction           = "GROUP ADMIN"
	CmdBalanceQueryResult    = "BALANCE QUERY RESULT"
	CmdSubProfile            = "SUB PROFILE"
	CmdSubProfileQueryResult = "SUB PROFILE QUERY RESULT"
	CmdThrottle              = "THROTTLE"
)

// MessageKind is the MESG-TARGET value.
type MessageKind int

const (
	Private MessageKind = 0
	Group   MessageKind = 1
)

func (k MessageKind) String() string {
	if k == Group {
		return "group"
	}
	return "private"
}

// DataType is the content class carried by a message.
type DataType int

const (
	DataText DataType = iota
	DataImage
	DataVoice
	DataRich
)

// MimeType is the CONTENT-TYPE written for d.
func (d DataType) MimeType() string {
	switch d {
	case DataImage:
		return "image/jpeg"
	case DataText:
		return "text/plain"
	case DataVoice:
		return "audio/x-speex"
	default:
		return "text/html"
	}
}

func DataTypeOf(mime string) DataType {
	switch mime {
	case "text/plain":
		return DataText
	case "image/jpeg", "text/image_link":
		return DataImage
	case "audio/x-speex":
		return DataVoice
	default:
		return DataRich
	}
}

// Device selects the APP-TYPE sent at logon.
type Device string

const (
	DeviceGeneric Device = "Java"
	DeviceAndroid Device = "android"
	DevicePC      Device = "Windows x86"
	DeviceMac     Device = "Apple/Intel"
	DeviceIPad    Device = "Apple/iPad/Premium"
	DeviceIPhone  Device = "Apple/iPhone/Premium"
	DeviceWinP7   Device = "Win/P7"
	DeviceWeb     Device = "WEB"
)

// ParseDevice accepts a short name or the raw APP-TYPE string.
func ParseDevice(raw string) (Device, bool) {
	switch raw {
	case "generic", "java", string(DeviceGeneric):
		return DeviceGeneric, true
	case "android":
		return DeviceAndroid, true
	case "pc", "windows", string(DevicePC):
		return DevicePC, true
	case "mac", string(DeviceMac):
		return DeviceMac, true
	case "ipad", string(DeviceIPad):
		return DeviceIPad, true
	case "iphone", string(DeviceIPhone):
		return DeviceIPhone, true
	case "winp7", string(DeviceWinP7):
		return DeviceWinP7, true
	case "web", string(DeviceWeb):
		return DeviceWeb, true
	default:
		return "", false
	}
}

// OnlineStatus is the ONLINE-STATUS value sent with AUTH.
type OnlineStatus int

const (
	StatusOffline   OnlineStatus = 0
	StatusOnline    OnlineStatus = 1
	StatusAway      OnlineStatus = 2
	StatusInvisible OnlineStatus = 3
	StatusBusy      OnlineStatus = 5
)

func ParseOnlineStatus(raw string) (OnlineStatus, bool) {
	switch raw {
	case "offline":
		return StatusOffline, true
	case "", "online":
		return StatusOnline, true
	case "away":
		return StatusAway, true
	case "invisible":
		return StatusInvisible, true
	case "busy":
		return StatusBusy, true
	default:
		return StatusOnline, false
	}
}

// AdminActionKind is the ACTION header of GROUP ADMIN.
type AdminActionKind int

const (
	AdminRegular AdminActionKind = 0
	AdminAdmin   AdminActionKind = 1
	AdminMod     AdminActionKind = 2
	AdminBan     AdminActionKind = 4
	AdminSilence AdminActionKind = 8
	AdminKick    AdminActionKind = 16
)
