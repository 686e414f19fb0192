package model

import "time"

// Device represents a managed machine as stored in the `device`
// table.  A device belongs to exactly one folder and, transitively,
// to one tenant.  The name is unique within its folder.  Hardware
// and OS metadata is captured at registration and refreshed by the
// device agent on heartbeat.
//
// Fields:
//  ID                 – primary key identifier.
//  Name               – device name, unique within its folder.
//  FolderID           – containing folder.
//  EntityID           – id of the entity owned by this device.
//  IsOnline           – whether the device is currently reachable.
//  HeartbeatTimestamp – time of the last heartbeat received.
//  MACAddress         – hardware address (nil if unreported).
//  IPAddress          – last known IPv4 address (nil if unreported).
//  OSName             – operating system family (e.g. "linux").
//  OSVersion          – operating system release string.
//  OSKernelVersion    – kernel version string.
//  VendorName         – hardware vendor.
//  VendorModel        – hardware model.
//  VendorCores        – number of CPU cores.
//  VendorRAMGB        – installed memory in gigabytes.
//  CreatedAt          – timestamp of creation.
//  UpdatedAt          – timestamp of last update.
type Device struct {
    ID                 uint64    // device.id
    Name               string    // device.name
    FolderID           uint64    // device.folder_id
    EntityID           uint64    // device.entity_id
    IsOnline           bool      // device.is_online
    HeartbeatTimestamp time.Time // device.heartbeat_timestamp
    MACAddress         *string   // device.mac_address (nullable)
    IPAddress          *string   // device.ip_address (nullable)
    OSName             string    // device.os_name
    OSVersion          string    // device.os_version
    OSKernelVersion    string    // device.os_kernel_version
    VendorName         string    // device.vendor_name
    VendorModel        string    // device.vendor_model
    VendorCores        uint32    // device.vendor_cores
    VendorRAMGB        uint32    // device.vendor_ram_gb
    CreatedAt          time.Time // device.created_at
    UpdatedAt          time.Time // device.updated_at
}
