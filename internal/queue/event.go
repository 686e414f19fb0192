// Package queue defines message payloads exchanged over the message broker.
package queue

// DeviceEventQueue is the durable queue carrying device lifecycle events.
const DeviceEventQueue = "device.events"

// Device event kinds.
const (
    EventDeviceRegistered = "device.registered"
    EventDeviceHeartbeat  = "device.heartbeat"
    EventDeviceDeleted    = "device.deleted"
)

// DeviceEvent is published when a device is registered, deleted or
// checks in.  It carries enough context for downstream consumers to
// log, alert or feed analytics without querying the primary database.
type DeviceEvent struct {
    Kind       string `json:"kind"`
    DeviceID   uint64 `json:"device_id"`
    DeviceName string `json:"device_name"`
    FolderID   uint64 `json:"folder_id"`
    TenantID   uint64 `json:"tenant_id"`
    IsOnline   bool   `json:"is_online"`
    OccurredAt string `json:"occurred_at"`
}
