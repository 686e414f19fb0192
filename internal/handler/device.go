package handler

import (
    "context"
    "database/sql"
    "log"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/device-fleet/internal/access"
    "github.com/iliyamo/device-fleet/internal/database"
    "github.com/iliyamo/device-fleet/internal/model"
    "github.com/iliyamo/device-fleet/internal/queue"
    "github.com/iliyamo/device-fleet/internal/repository"
    queue_publisher "github.com/iliyamo/device-fleet/internal/service"
)

// DeviceHandler serves device registration, listing, mutation and the
// heartbeat endpoint.  Reads need tenant access; edits additionally
// need admin or owner rank.  Mutations emit events to RabbitMQ on a
// best-effort basis.
type DeviceHandler struct {
    DB      *sql.DB
    Devices *repository.DeviceRepo
    Folders *repository.FolderRepo
    Tags    *repository.TagRepo
    Eval    *access.Evaluator
}

type deviceCreateReq struct {
    Name            string  `json:"name"`
    FolderID        uint64  `json:"folder_id"`
    MACAddress      *string `json:"mac_address,omitempty"`
    IPAddress       *string `json:"ip_address,omitempty"`
    OSName          string  `json:"os_name"`
    OSVersion       string  `json:"os_version"`
    OSKernelVersion string  `json:"os_kernel_version"`
    VendorName      string  `json:"vendor_name"`
    VendorModel     string  `json:"vendor_model"`
    VendorCores     uint32  `json:"vendor_cores"`
    VendorRAMGB     uint32  `json:"vendor_ram_gb"`
}

type devicePatchReq struct {
    Name            *string `json:"name,omitempty"`
    FolderID        *uint64 `json:"folder_id,omitempty"`
    OSName          *string `json:"os_name,omitempty"`
    OSVersion       *string `json:"os_version,omitempty"`
    OSKernelVersion *string `json:"os_kernel_version,omitempty"`
    IPAddress       *string `json:"ip_address,omitempty"`
}

type heartbeatReq struct {
    IsOnline bool `json:"is_online"`
}

type deviceResp struct {
    ID                 uint64    `json:"id"`
    Name               string    `json:"name"`
    FolderID           uint64    `json:"folder_id"`
    EntityID           uint64    `json:"entity_id"`
    IsOnline           bool      `json:"is_online"`
    HeartbeatTimestamp time.Time `json:"heartbeat_timestamp"`
    MACAddress         *string   `json:"mac_address,omitempty"`
    IPAddress          *string   `json:"ip_address,omitempty"`
    OSName             string    `json:"os_name"`
    OSVersion          string    `json:"os_version"`
    OSKernelVersion    string    `json:"os_kernel_version"`
    VendorName         string    `json:"vendor_name"`
    VendorModel        string    `json:"vendor_model"`
    VendorCores        uint32    `json:"vendor_cores"`
    VendorRAMGB        uint32    `json:"vendor_ram_gb"`
}

func toDeviceResp(d model.Device) deviceResp {
    return deviceResp{
        ID:                 d.ID,
        Name:               d.Name,
        FolderID:           d.FolderID,
        EntityID:           d.EntityID,
        IsOnline:           d.IsOnline,
        HeartbeatTimestamp: d.HeartbeatTimestamp,
        MACAddress:         d.MACAddress,
        IPAddress:          d.IPAddress,
        OSName:             d.OSName,
        OSVersion:          d.OSVersion,
        OSKernelVersion:    d.OSKernelVersion,
        VendorName:         d.VendorName,
        VendorModel:        d.VendorModel,
        VendorCores:        d.VendorCores,
        VendorRAMGB:        d.VendorRAMGB,
    }
}

func toDeviceResps(devices []model.Device) []deviceResp {
    out := make([]deviceResp, 0, len(devices))
    for _, d := range devices {
        out = append(out, toDeviceResp(d))
    }
    return out
}

// Register creates a device inside a folder.  Requires owner or admin
// rank plus access to the folder's tenant.  Emits a device.registered
// event once the transaction commits.
func (h *DeviceHandler) Register(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req deviceCreateReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" || req.FolderID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and folder_id required"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    folder, err := h.Folders.GetByID(ctx, req.FolderID)
    if err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireAdminOrOwner(u); err != nil {
        return respondErr(c, err)
    }
    if err := h.Eval.RequireTenantAccess(ctx, u, folder.TenantID); err != nil {
        return respondErr(c, err)
    }

    d := model.Device{
        Name:            strings.TrimSpace(req.Name),
        FolderID:        req.FolderID,
        MACAddress:      req.MACAddress,
        IPAddress:       req.IPAddress,
        OSName:          req.OSName,
        OSVersion:       req.OSVersion,
        OSKernelVersion: req.OSKernelVersion,
        VendorName:      req.VendorName,
        VendorModel:     req.VendorModel,
        VendorCores:     req.VendorCores,
        VendorRAMGB:     req.VendorRAMGB,
    }
    err = database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        return h.Devices.CreateTx(ctx, tx, &d)
    })
    if err != nil {
        return respondErr(c, err)
    }
    h.publish(queue.DeviceEvent{
        Kind:       queue.EventDeviceRegistered,
        DeviceID:   d.ID,
        DeviceName: d.Name,
        FolderID:   d.FolderID,
        TenantID:   folder.TenantID,
        IsOnline:   d.IsOnline,
        OccurredAt: time.Now().UTC().Format(time.RFC3339),
    })
    return c.JSON(http.StatusCreated, toDeviceResp(d))
}

// Get returns one device.  Resolution through the folder happens
// before the permission check, so a missing device is always a 404
// rather than a 403.
func (h *DeviceHandler) Get(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid device id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireDeviceAccess(ctx, u, id); err != nil {
        return respondErr(c, err)
    }
    d, err := h.Devices.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toDeviceResp(d))
}

// List returns the devices visible to the caller: all devices for
// admins, devices under member tenants otherwise.
func (h *DeviceHandler) List(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    devices, err := h.Devices.ListVisibleForUser(ctx, u)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toDeviceResps(devices))
}

// Update applies a partial update to a device, folder moves included.
// Requires edit rights (admin, or member with at least owner rank).
func (h *DeviceHandler) Update(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid device id"})
    }
    var req devicePatchReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireDeviceEdit(ctx, u, id); err != nil {
        return respondErr(c, err)
    }
    if req.FolderID != nil {
        // A folder move must stay inside a tenant the caller can reach.
        target, err := h.Folders.GetByID(ctx, *req.FolderID)
        if err != nil {
            return respondErr(c, err)
        }
        if err := h.Eval.RequireTenantAccess(ctx, u, target.TenantID); err != nil {
            return respondErr(c, err)
        }
    }
    d, err := h.Devices.Update(ctx, id, repository.DevicePatch{
        Name:            req.Name,
        FolderID:        req.FolderID,
        OSName:          req.OSName,
        OSVersion:       req.OSVersion,
        OSKernelVersion: req.OSKernelVersion,
        IPAddress:       req.IPAddress,
    })
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, toDeviceResp(d))
}

// Heartbeat records a device check-in and emits a device.heartbeat
// event.  Any member of the device's tenant may report one.
func (h *DeviceHandler) Heartbeat(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid device id"})
    }
    req := heartbeatReq{IsOnline: true}
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireDeviceAccess(ctx, u, id); err != nil {
        return respondErr(c, err)
    }
    if err := h.Devices.Heartbeat(ctx, id, req.IsOnline); err != nil {
        return respondErr(c, err)
    }
    if tenantID, err := h.Devices.ResolveTenant(ctx, id); err != nil {
        log.Printf("heartbeat event for device %d: resolve tenant: %v", id, err)
    } else {
        h.publish(queue.DeviceEvent{
            Kind:       queue.EventDeviceHeartbeat,
            DeviceID:   id,
            TenantID:   tenantID,
            IsOnline:   req.IsOnline,
            OccurredAt: time.Now().UTC().Format(time.RFC3339),
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"id": id, "is_online": req.IsOnline})
}

// Delete removes a device and its entity.  Requires edit rights.
// Emits a device.deleted event once the transaction commits.
func (h *DeviceHandler) Delete(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid device id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireDeviceEdit(ctx, u, id); err != nil {
        return respondErr(c, err)
    }
    d, err := h.Devices.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    tenantID, err := h.Devices.ResolveTenant(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    err = database.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
        _, err := h.Devices.DeleteTx(ctx, tx, d)
        return err
    })
    if err != nil {
        return respondErr(c, err)
    }
    h.publish(queue.DeviceEvent{
        Kind:       queue.EventDeviceDeleted,
        DeviceID:   d.ID,
        DeviceName: d.Name,
        FolderID:   d.FolderID,
        TenantID:   tenantID,
        OccurredAt: time.Now().UTC().Format(time.RFC3339),
    })
    return c.JSON(http.StatusOK, echo.Map{"id": id})
}

// ListTags returns the tags attached to a device's entity.
func (h *DeviceHandler) ListTags(c echo.Context) error {
    u, err := principal(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid device id"})
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if err := h.Eval.RequireDeviceAccess(ctx, u, id); err != nil {
        return respondErr(c, err)
    }
    d, err := h.Devices.GetByID(ctx, id)
    if err != nil {
        return respondErr(c, err)
    }
    tags, err := h.Tags.ListForEntity(ctx, d.EntityID)
    if err != nil {
        return respondErr(c, err)
    }
    return c.JSON(http.StatusOK, tags)
}

// publish sends a device event to the broker in the background so a
// slow or absent broker never delays the HTTP response.
func (h *DeviceHandler) publish(event queue.DeviceEvent) {
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = queue_publisher.PublishDeviceEvent(ctx, event)
    }()
}
