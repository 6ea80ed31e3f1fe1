package vesync

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DeviceClass partitions cloud devices into the four bridged families.
type DeviceClass int

const (
	ClassUnknown DeviceClass = iota
	ClassFan
	ClassOutlet
	ClassSwitch
	ClassBulb
)

// String returns the lowercase class name used in topics and telemetry.
func (c DeviceClass) String() string {
	switch c {
	case ClassFan:
		return "fan"
	case ClassOutlet:
		return "outlet"
	case ClassSwitch:
		return "switch"
	case ClassBulb:
		return "bulb"
	default:
		return "unknown"
	}
}

// Model prefix tables for classifying deviceType strings.
//
// The cloud reports a model identifier per device (e.g. "Core200S",
// "ESW15-USA"); family membership is determined by prefix. New models
// within a family keep the prefix, so unknown exact models still
// classify correctly.
var (
	fanPrefixes    = []string{"Core", "LAP-", "LV-PUR", "LV-RH", "Classic", "LUH-", "LEH-"}
	outletPrefixes = []string{"wifi-switch", "ESW01", "ESW03", "ESW10", "ESW15", "ESO15", "WYSMTOD", "BSDOG"}
	switchPrefixes = []string{"ESWL01", "ESWL03", "ESWD16"}
	bulbPrefixes   = []string{"ESL100", "XYD0001"}
)

// Classify maps a cloud deviceType string to its device class.
// Unrecognized models return ClassUnknown and are skipped by discovery.
func Classify(deviceType string) DeviceClass {
	// Wall switches before outlets: "ESWL01" would otherwise never be
	// reached if an "ESW" outlet prefix matched first.
	for _, p := range switchPrefixes {
		if strings.HasPrefix(deviceType, p) {
			return ClassSwitch
		}
	}
	for _, p := range outletPrefixes {
		if strings.HasPrefix(deviceType, p) {
			return ClassOutlet
		}
	}
	for _, p := range fanPrefixes {
		if strings.HasPrefix(deviceType, p) {
			return ClassFan
		}
	}
	for _, p := range bulbPrefixes {
		if strings.HasPrefix(deviceType, p) {
			return ClassBulb
		}
	}
	return ClassUnknown
}

// Device is one device descriptor from the cloud device list.
//
// Fields mirror the cloud payload; the bridge treats them as read-only
// snapshot data, replaced wholesale on every poll.
type Device struct {
	CID              string          `json:"cid"`
	UUID             string          `json:"uuid"`
	DeviceName       string          `json:"deviceName"`
	DeviceType       string          `json:"deviceType"`
	DeviceStatus     string          `json:"deviceStatus"`
	ConnectionStatus string          `json:"connectionStatus"`
	ConfigModule     string          `json:"configModule"`
	Mode             string          `json:"mode"`
	Speed            int             `json:"speed"`
	Brightness       int             `json:"brightness"`
	SubDeviceNo      int             `json:"subDeviceNo"`
	IsSubDevice      bool            `json:"isSubDevice"`
	Details          json.RawMessage `json:"deviceProp,omitempty"`
}

// CompositeID returns the stable identifier for this device.
//
// Sub-devices (e.g. individual outlets on a power strip) share a CID
// with their parent and are distinguished by sub-index:
//
//	"cid-123"    plain device
//	"cid-123_2"  sub-device number 2
func (d *Device) CompositeID() string {
	if d.IsSubDevice {
		return d.CID + "_" + strconv.Itoa(d.SubDeviceNo)
	}
	return d.CID
}

// Class returns the device's bridged family.
func (d *Device) Class() DeviceClass {
	return Classify(d.DeviceType)
}

// IsOn reports whether the cloud considers the device powered on.
func (d *Device) IsOn() bool {
	return d.DeviceStatus == "on"
}

// IsOnline reports whether the cloud can currently reach the device.
func (d *Device) IsOnline() bool {
	return d.ConnectionStatus == "online"
}

// Snapshot is the full device list from one bulk poll, partitioned by
// class. Immutable once built; replaced wholesale on each cycle.
type Snapshot struct {
	Fans     []*Device
	Outlets  []*Device
	Switches []*Device
	Bulbs    []*Device
}

// newSnapshot partitions a raw device list, dropping unknown models.
func newSnapshot(devices []*Device) *Snapshot {
	s := &Snapshot{}
	for _, d := range devices {
		switch d.Class() {
		case ClassFan:
			s.Fans = append(s.Fans, d)
		case ClassOutlet:
			s.Outlets = append(s.Outlets, d)
		case ClassSwitch:
			s.Switches = append(s.Switches, d)
		case ClassBulb:
			s.Bulbs = append(s.Bulbs, d)
		}
	}
	return s
}

// All returns every device in the snapshot in partition order.
func (s *Snapshot) All() []*Device {
	out := make([]*Device, 0, len(s.Fans)+len(s.Outlets)+len(s.Switches)+len(s.Bulbs))
	out = append(out, s.Fans...)
	out = append(out, s.Outlets...)
	out = append(out, s.Switches...)
	out = append(out, s.Bulbs...)
	return out
}

// Count returns the total number of devices across all partitions.
func (s *Snapshot) Count() int {
	return len(s.Fans) + len(s.Outlets) + len(s.Switches) + len(s.Bulbs)
}
