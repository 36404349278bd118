// Package psmapi defines the vocabulary of the PSMoveService tracking protocol as seen by the bridge:
// requests, responses, pushed events and streamed controller telemetry.
package psmapi

import (
	"fmt"

	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
)

// ProtocolVersion is the only service protocol version the bridge talks to.
const ProtocolVersion = "0.9-alpha8.2"

// CentimetersToMeters converts service position units into host units.
const CentimetersToMeters = 0.01

type RequestID uint32

type RequestType string

const (
	RequestGetServiceVersion RequestType = "getServiceVersion"
	RequestGetControllerList RequestType = "getControllerList"
	RequestGetTrackerList    RequestType = "getTrackerList"
	RequestStartDataStream   RequestType = "startDataStream"
	RequestStopDataStream    RequestType = "stopDataStream"
	RequestResetOrientation  RequestType = "resetOrientation"
	RequestSetRumble         RequestType = "setRumble"
)

type StreamFlags uint8

const (
	StreamIncludePosition StreamFlags = 1 << iota
	StreamIncludePhysics
	StreamIncludeRawSensorData
)

type RumbleChannel uint8

const (
	RumbleChannelAll RumbleChannel = iota
	RumbleChannelLeft
	RumbleChannelRight
)

type Request struct {
	ID          RequestID     `json:"id"`
	Type        RequestType   `json:"type"`
	DeviceID    int           `json:"deviceId,omitempty"`
	Flags       StreamFlags   `json:"flags,omitempty"`
	Orientation posemath.Quat `json:"orientation"`
	Channel     RumbleChannel `json:"channel,omitempty"`
	Fraction    float64       `json:"fraction,omitempty"`
}

func GetServiceVersion() Request {
	return Request{Type: RequestGetServiceVersion}
}

func GetControllerList() Request {
	return Request{Type: RequestGetControllerList}
}

func GetTrackerList() Request {
	return Request{Type: RequestGetTrackerList}
}

func StartDataStream(deviceID int, flags StreamFlags) Request {
	return Request{Type: RequestStartDataStream, DeviceID: deviceID, Flags: flags}
}

func StopDataStream(deviceID int) Request {
	return Request{Type: RequestStopDataStream, DeviceID: deviceID}
}

func ResetOrientation(deviceID int, q posemath.Quat) Request {
	return Request{Type: RequestResetOrientation, DeviceID: deviceID, Orientation: q}
}

func SetRumble(deviceID int, channel RumbleChannel, fraction float64) Request {
	return Request{Type: RequestSetRumble, DeviceID: deviceID, Channel: channel, Fraction: fraction}
}

type Result string

const (
	ResultSuccess  Result = "success"
	ResultError    Result = "error"
	ResultCanceled Result = "canceled"
)

type Response struct {
	RequestID      RequestID       `json:"requestId"`
	Result         Result          `json:"result"`
	ServiceVersion string          `json:"serviceVersion,omitempty"`
	Controllers    *ControllerList `json:"controllers,omitempty"`
	Trackers       *TrackerList    `json:"trackers,omitempty"`
}

// ResponseHandler is a one-shot continuation for an outstanding request.
type ResponseHandler func(resp Response)

type EventKind string

const (
	EventConnected             EventKind = "connected"
	EventFailedToConnect       EventKind = "failedToConnect"
	EventDisconnected          EventKind = "disconnected"
	EventControllerListChanged EventKind = "controllerListChanged"
	EventTrackerListChanged    EventKind = "trackerListChanged"
	EventSystemButtonPressed   EventKind = "systemButtonPressed"
)

type Event struct {
	Kind EventKind `json:"kind"`
}

// Message is one item drained from the client inbox on the host thread.
// Exactly one field is set.
type Message struct {
	Response *Response
	Event    *Event
}

type ControllerType string

const (
	ControllerPositional ControllerType = "positional"
	ControllerAuxiliary  ControllerType = "auxiliary"
	ControllerOther      ControllerType = "other"
)

type ControllerInfo struct {
	ID           int            `json:"id"`
	Type         ControllerType `json:"type"`
	Serial       string         `json:"serial"`
	ParentSerial string         `json:"parentSerial,omitempty"`
}

type ControllerList struct {
	Controllers []ControllerInfo `json:"controllers"`
}

type TrackerInfo struct {
	ID   int           `json:"id"`
	Pose posemath.Pose `json:"pose"`
}

type TrackerList struct {
	Trackers []TrackerInfo `json:"trackers"`
}

func ControllerIdentifier(id int) string {
	return fmt.Sprintf("psmove_controller%d", id)
}

func TrackerIdentifier(id int) string {
	return fmt.Sprintf("psmove_tracker%d", id)
}
