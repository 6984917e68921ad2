//go:build linux

package kms

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	iocWrite = 1
	iocRead  = 2

	drmIoctlBase = 'd'

	objectCRTC      = 0xcccccccc
	objectConnector = 0xc0c0c0c0
	objectPlane     = 0xeeeeeeee

	clientCapUniversalPlanes = 2
	clientCapAtomic          = 3

	connectionConnected = 1
)

func drmIOC(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | drmIoctlBase<<8 | nr
}

var (
	ioctlGemClose            = drmIOC(iocWrite, 0x09, unsafe.Sizeof(drmGemClose{}))
	ioctlSetClientCap        = drmIOC(iocWrite, 0x0d, unsafe.Sizeof(drmSetClientCap{}))
	ioctlPrimeFDToHandle     = drmIOC(iocRead|iocWrite, 0x2e, unsafe.Sizeof(drmPrimeHandle{}))
	ioctlModeGetResources    = drmIOC(iocRead|iocWrite, 0xa0, unsafe.Sizeof(drmModeCardRes{}))
	ioctlModeGetCRTC         = drmIOC(iocRead|iocWrite, 0xa1, unsafe.Sizeof(drmModeCRTC{}))
	ioctlModeGetEncoder      = drmIOC(iocRead|iocWrite, 0xa6, unsafe.Sizeof(drmModeGetEncoder{}))
	ioctlModeGetConnector    = drmIOC(iocRead|iocWrite, 0xa7, unsafe.Sizeof(drmModeGetConnector{}))
	ioctlModeGetProperty     = drmIOC(iocRead|iocWrite, 0xaa, unsafe.Sizeof(drmModeGetProperty{}))
	ioctlModeRmFB            = drmIOC(iocRead|iocWrite, 0xaf, unsafe.Sizeof(uint32(0)))
	ioctlModeCreateDumb      = drmIOC(iocRead|iocWrite, 0xb2, unsafe.Sizeof(drmModeCreateDumb{}))
	ioctlModeMapDumb         = drmIOC(iocRead|iocWrite, 0xb3, unsafe.Sizeof(drmModeMapDumb{}))
	ioctlModeDestroyDumb     = drmIOC(iocRead|iocWrite, 0xb4, unsafe.Sizeof(drmModeDestroyDumb{}))
	ioctlModeGetPlaneRes     = drmIOC(iocRead|iocWrite, 0xb5, unsafe.Sizeof(drmModeGetPlaneRes{}))
	ioctlModeGetPlane        = drmIOC(iocRead|iocWrite, 0xb6, unsafe.Sizeof(drmModeGetPlane{}))
	ioctlModeAddFB2          = drmIOC(iocRead|iocWrite, 0xb8, unsafe.Sizeof(drmModeFBCmd2{}))
	ioctlModeObjGetProps     = drmIOC(iocRead|iocWrite, 0xb9, unsafe.Sizeof(drmModeObjGetProperties{}))
	ioctlModeAtomic          = drmIOC(iocRead|iocWrite, 0xbc, unsafe.Sizeof(drmModeAtomic{}))
	ioctlModeCreatePropBlob  = drmIOC(iocRead|iocWrite, 0xbd, unsafe.Sizeof(drmModeCreateBlob{}))
	ioctlModeDestroyPropBlob = drmIOC(iocRead|iocWrite, 0xbe, unsafe.Sizeof(drmModeDestroyBlob{}))
)

type drmSetClientCap struct {
	Capability uint64
	Value      uint64
}

type drmGemClose struct {
	Handle uint32
	_      uint32
}

type drmPrimeHandle struct {
	Handle uint32
	Flags  uint32
	FD     int32
}

type drmModeCardRes struct {
	FBIDPtr         uint64
	CRTCIDPtr       uint64
	ConnectorIDPtr  uint64
	EncoderIDPtr    uint64
	CountFBs        uint32
	CountCRTCs      uint32
	CountConnectors uint32
	CountEncoders   uint32
	MinWidth        uint32
	MaxWidth        uint32
	MinHeight       uint32
	MaxHeight       uint32
}

type drmModeInfo struct {
	Clock      uint32
	HDisplay   uint16
	HSyncStart uint16
	HSyncEnd   uint16
	HTotal     uint16
	HSkew      uint16
	VDisplay   uint16
	VSyncStart uint16
	VSyncEnd   uint16
	VTotal     uint16
	VScan      uint16
	VRefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [32]byte
}

type drmModeCRTC struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CRTCID           uint32
	FBID             uint32
	X                uint32
	Y                uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             drmModeInfo
}

type drmModeGetEncoder struct {
	EncoderID      uint32
	EncoderType    uint32
	CRTCID         uint32
	PossibleCRTCs  uint32
	PossibleClones uint32
}

type drmModeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MMWidth         uint32
	MMHeight        uint32
	Subpixel        uint32
	_               uint32
}

type drmModeGetProperty struct {
	ValuesPtr      uint64
	EnumBlobPtr    uint64
	PropID         uint32
	Flags          uint32
	Name           [32]byte
	CountValues    uint32
	CountEnumBlobs uint32
}

type drmModeCreateDumb struct {
	Height uint32
	Width  uint32
	BPP    uint32
	Flags  uint32
	Handle uint32
	Pitch  uint32
	Size   uint64
}

type drmModeMapDumb struct {
	Handle uint32
	_      uint32
	Offset uint64
}

type drmModeDestroyDumb struct {
	Handle uint32
}

type drmModeGetPlaneRes struct {
	PlaneIDPtr  uint64
	CountPlanes uint32
	_           uint32
}

type drmModeGetPlane struct {
	PlaneID          uint32
	CRTCID           uint32
	FBID             uint32
	PossibleCRTCs    uint32
	GammaSize        uint32
	CountFormatTypes uint32
	FormatTypePtr    uint64
}

type drmModeFBCmd2 struct {
	FBID        uint32
	Width       uint32
	Height      uint32
	PixelFormat uint32
	Flags       uint32
	Handles     [4]uint32
	Pitches     [4]uint32
	Offsets     [4]uint32
	_           uint32
	Modifier    [4]uint64
}

type drmModeObjGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
	ObjType       uint32
	_             uint32
}

type drmModeAtomic struct {
	Flags         uint32
	CountObjs     uint32
	ObjsPtr       uint64
	CountPropsPtr uint64
	PropsPtr      uint64
	PropValuesPtr uint64
	Reserved      uint64
	UserData      uint64
}

type drmModeCreateBlob struct {
	Data   uint64
	Length uint32
	BlobID uint32
}

type drmModeDestroyBlob struct {
	BlobID uint32
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			// The kernel asks ioctl callers to restart on these.
			continue
		}
		return errno
	}
}

func ptr[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func modeFromInfo(m *drmModeInfo) Mode {
	return Mode{
		Clock:      m.Clock,
		HDisplay:   m.HDisplay,
		HSyncStart: m.HSyncStart,
		HSyncEnd:   m.HSyncEnd,
		HTotal:     m.HTotal,
		HSkew:      m.HSkew,
		VDisplay:   m.VDisplay,
		VSyncStart: m.VSyncStart,
		VSyncEnd:   m.VSyncEnd,
		VTotal:     m.VTotal,
		VScan:      m.VScan,
		VRefresh:   m.VRefresh,
		Flags:      m.Flags,
		Type:       m.Type,
		Name:       cstring(m.Name[:]),
	}
}

func infoFromMode(m Mode) drmModeInfo {
	info := drmModeInfo{
		Clock:      m.Clock,
		HDisplay:   m.HDisplay,
		HSyncStart: m.HSyncStart,
		HSyncEnd:   m.HSyncEnd,
		HTotal:     m.HTotal,
		HSkew:      m.HSkew,
		VDisplay:   m.VDisplay,
		VSyncStart: m.VSyncStart,
		VSyncEnd:   m.VSyncEnd,
		VTotal:     m.VTotal,
		VScan:      m.VScan,
		VRefresh:   m.VRefresh,
		Flags:      m.Flags,
		Type:       m.Type,
	}
	copy(info.Name[:len(info.Name)-1], m.Name)
	return info
}

var connectorTypeNames = map[uint32]string{
	1:  "VGA",
	2:  "DVI-I",
	3:  "DVI-D",
	5:  "Composite",
	10: "DP",
	11: "HDMI-A",
	14: "eDP",
	15: "Virtual",
	16: "DSI",
	17: "DPI",
	18: "Writeback",
}

func connectorName(typ, id uint32) string {
	name, ok := connectorTypeNames[typ]
	if !ok {
		name = "Unknown"
	}
	return name + "-" + itoa(id)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var b [10]byte
	i := len(b)
	for v > 0 {
		i--
		b[i] = byte('0' + v%10)
		v /= 10
	}
	return string(b[i:])
}
