//go:build linux

package input

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// struct input_event: a timeval followed by type, code and value. The
// timeval is 8 or 16 bytes depending on the platform word size.
var (
	timevalSize = int(unsafe.Sizeof(unix.Timeval{}))
	eventSize   = timevalSize + 8
)

const (
	iocRead      = 2
	iocSizeShift = 16
	iocTypeShift = 8
	iocDirShift  = 30
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr | size<<iocSizeShift
}

func eviocgname(n int) uintptr { return ioc(iocRead, 'E', 0x06, uintptr(n)) }

func eviocgabs(abs int) uintptr { return ioc(iocRead, 'E', 0x40+uintptr(abs), 24) }

// AbsInfo mirrors struct input_absinfo.
type AbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

type evdevDevice struct {
	f   *os.File
	buf []byte
}

// OpenEvdev opens a /dev/input/event* node for reading.
func OpenEvdev(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: open %s: %w", path, err)
	}
	return &evdevDevice{f: f, buf: make([]byte, eventSize)}, nil
}

func (d *evdevDevice) ReadEvent() (RawEvent, error) {
	if _, err := io.ReadFull(d.f, d.buf); err != nil {
		return RawEvent{}, err
	}
	return decodeEvent(d.buf), nil
}

func (d *evdevDevice) Close() error {
	return d.f.Close()
}

func decodeEvent(b []byte) RawEvent {
	var sec, usec int64
	if timevalSize == 16 {
		sec = int64(binary.LittleEndian.Uint64(b[0:8]))
		usec = int64(binary.LittleEndian.Uint64(b[8:16]))
	} else {
		sec = int64(int32(binary.LittleEndian.Uint32(b[0:4])))
		usec = int64(int32(binary.LittleEndian.Uint32(b[4:8])))
	}
	o := timevalSize
	return RawEvent{
		Time:  time.Unix(sec, usec*1000),
		Type:  binary.LittleEndian.Uint16(b[o:]),
		Code:  binary.LittleEndian.Uint16(b[o+2:]),
		Value: int32(binary.LittleEndian.Uint32(b[o+4:])),
	}
}

func deviceName(f *os.File) (string, error) {
	buf := make([]byte, 256)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), eviocgname(len(buf)), uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return "", errno
	}
	for i, c := range buf {
		if c == 0 {
			return string(buf[:i]), nil
		}
	}
	return string(buf), nil
}

func absInfo(f *os.File, code int) (AbsInfo, error) {
	var info AbsInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), eviocgabs(code), uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return AbsInfo{}, errno
	}
	return info, nil
}

func inspectDevice(path string) (DeviceInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return DeviceInfo{}, err
	}
	defer f.Close()

	info := DeviceInfo{Path: path}
	if info.Name, err = deviceName(f); err != nil {
		return info, fmt.Errorf("input: %s name: %w", path, err)
	}
	if x, err := absInfo(f, AbsX); err == nil {
		info.MaxX = int(x.Maximum)
	}
	if y, err := absInfo(f, AbsY); err == nil {
		info.MaxY = int(y.Maximum)
	}
	info.Touch = info.MaxX > 0 && info.MaxY > 0
	return info, nil
}
