package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/device-fleet/internal/model"
)

// DeviceRepo persists managed devices.  A device lives in exactly one
// folder and belongs, through it, to exactly one tenant; the tenant
// resolution here is what the access evaluator builds on.
type DeviceRepo struct {
    DB       *sql.DB
    Entities *EntityRepo
}

func NewDeviceRepo(db *sql.DB, entities *EntityRepo) *DeviceRepo {
    return &DeviceRepo{DB: db, Entities: entities}
}

const deviceCols = `id, name, folder_id, entity_id, is_online, heartbeat_timestamp,
    mac_address, ip_address, os_name, os_version, os_kernel_version,
    vendor_name, vendor_model, vendor_cores, vendor_ram_gb, created_at, updated_at`

func scanDeviceRow(scan func(dest ...any) error) (model.Device, error) {
    var d model.Device
    var mac, ip sql.NullString
    err := scan(&d.ID, &d.Name, &d.FolderID, &d.EntityID, &d.IsOnline, &d.HeartbeatTimestamp,
        &mac, &ip, &d.OSName, &d.OSVersion, &d.OSKernelVersion,
        &d.VendorName, &d.VendorModel, &d.VendorCores, &d.VendorRAMGB, &d.CreatedAt, &d.UpdatedAt)
    if err != nil {
        return model.Device{}, err
    }
    if mac.Valid {
        s := mac.String
        d.MACAddress = &s
    }
    if ip.Valid {
        s := ip.String
        d.IPAddress = &s
    }
    return d, nil
}

// CreateTx registers a device inside the given transaction.  The
// folder must exist and the name must be unique within it.  A fresh
// entity is allocated so the device can carry tags.
func (r *DeviceRepo) CreateTx(ctx context.Context, tx DBTX, d *model.Device) error {
    var one int
    err := tx.QueryRowContext(ctx,
        "SELECT 1 FROM folder WHERE id=? LIMIT 1", d.FolderID).Scan(&one)
    if err == sql.ErrNoRows {
        return ErrFolderNotFound
    }
    if err != nil {
        return err
    }
    err = tx.QueryRowContext(ctx,
        "SELECT 1 FROM device WHERE folder_id=? AND name=? LIMIT 1",
        d.FolderID, d.Name).Scan(&one)
    if err == nil {
        return ErrDeviceNameTaken
    }
    if err != sql.ErrNoRows {
        return err
    }

    entityID, err := r.Entities.CreateTx(ctx, tx)
    if err != nil {
        return err
    }
    d.EntityID = entityID
    res, err := tx.ExecContext(ctx,
        `INSERT INTO device (name, folder_id, entity_id, is_online, heartbeat_timestamp,
            mac_address, ip_address, os_name, os_version, os_kernel_version,
            vendor_name, vendor_model, vendor_cores, vendor_ram_gb)
         VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
        d.Name, d.FolderID, d.EntityID, d.IsOnline, time.Now().UTC(),
        d.MACAddress, d.IPAddress, d.OSName, d.OSVersion, d.OSKernelVersion,
        d.VendorName, d.VendorModel, d.VendorCores, d.VendorRAMGB)
    if err != nil {
        if isDuplicate(err) {
            return ErrDeviceNameTaken
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    d.ID = uint64(id)
    return nil
}

// GetByID fetches a device by id.
func (r *DeviceRepo) GetByID(ctx context.Context, id uint64) (model.Device, error) {
    row := r.DB.QueryRowContext(ctx,
        "SELECT "+deviceCols+" FROM device WHERE id=? LIMIT 1", id)
    d, err := scanDeviceRow(row.Scan)
    if err == sql.ErrNoRows {
        return model.Device{}, ErrDeviceNotFound
    }
    return d, err
}

// ResolveTenant maps a device to its tenant through the containing
// folder.  A dangling device id yields ErrDeviceNotFound; resolution
// happens before any permission evaluation.
func (r *DeviceRepo) ResolveTenant(ctx context.Context, deviceID uint64) (uint64, error) {
    var tenantID uint64
    err := r.DB.QueryRowContext(ctx,
        `SELECT f.tenant_id FROM device d JOIN folder f ON d.folder_id = f.id
         WHERE d.id=? LIMIT 1`, deviceID).Scan(&tenantID)
    if err == sql.ErrNoRows {
        return 0, ErrDeviceNotFound
    }
    return tenantID, err
}

// ListByTenant returns every device under a tenant's folders.
func (r *DeviceRepo) ListByTenant(ctx context.Context, tenantID uint64) ([]model.Device, error) {
    return r.listQuery(ctx,
        `SELECT `+deviceColsPrefixed("d")+`
         FROM device d JOIN folder f ON d.folder_id = f.id
         WHERE f.tenant_id = ? ORDER BY d.id`, tenantID)
}

// ListByFolder returns the devices directly inside one folder.
func (r *DeviceRepo) ListByFolder(ctx context.Context, folderID uint64) ([]model.Device, error) {
    return r.listQuery(ctx,
        "SELECT "+deviceCols+" FROM device WHERE folder_id=? ORDER BY id", folderID)
}

// ListVisibleForUser returns the devices the user may see: all of
// them for admins, those under member tenants otherwise.
func (r *DeviceRepo) ListVisibleForUser(ctx context.Context, user model.User) ([]model.Device, error) {
    if user.IsAdmin() {
        return r.listQuery(ctx, "SELECT "+deviceCols+" FROM device ORDER BY id")
    }
    return r.listQuery(ctx,
        `SELECT `+deviceColsPrefixed("d")+`
         FROM device d
         JOIN folder f ON d.folder_id = f.id
         JOIN tenant_user tu ON tu.tenant_id = f.tenant_id
         WHERE tu.user_id = ? ORDER BY d.id`, user.ID)
}

// DevicePatch carries the optional fields of an update.  Nil pointers
// leave the column untouched.  The containing folder is changed
// through FolderID; the target folder must exist and the name must
// remain unique inside it.
type DevicePatch struct {
    Name            *string
    FolderID        *uint64
    OSName          *string
    OSVersion       *string
    OSKernelVersion *string
    IPAddress       *string
}

// Update applies a patch to a device.
func (r *DeviceRepo) Update(ctx context.Context, id uint64, p DevicePatch) (model.Device, error) {
    d, err := r.GetByID(ctx, id)
    if err != nil {
        return model.Device{}, err
    }
    folderID := d.FolderID
    if p.FolderID != nil {
        var one int
        err := r.DB.QueryRowContext(ctx,
            "SELECT 1 FROM folder WHERE id=? LIMIT 1", *p.FolderID).Scan(&one)
        if err == sql.ErrNoRows {
            return model.Device{}, ErrFolderNotFound
        }
        if err != nil {
            return model.Device{}, err
        }
        folderID = *p.FolderID
    }
    name := d.Name
    if p.Name != nil {
        name = *p.Name
    }
    if name != d.Name || folderID != d.FolderID {
        var one int
        err := r.DB.QueryRowContext(ctx,
            "SELECT 1 FROM device WHERE folder_id=? AND name=? AND id<>? LIMIT 1",
            folderID, name, id).Scan(&one)
        if err == nil {
            return model.Device{}, ErrDeviceNameTaken
        }
        if err != sql.ErrNoRows {
            return model.Device{}, err
        }
    }

    set := []string{"name=?", "folder_id=?"}
    args := []any{name, folderID}
    if p.OSName != nil {
        set = append(set, "os_name=?")
        args = append(args, *p.OSName)
    }
    if p.OSVersion != nil {
        set = append(set, "os_version=?")
        args = append(args, *p.OSVersion)
    }
    if p.OSKernelVersion != nil {
        set = append(set, "os_kernel_version=?")
        args = append(args, *p.OSKernelVersion)
    }
    if p.IPAddress != nil {
        set = append(set, "ip_address=?")
        args = append(args, *p.IPAddress)
    }
    args = append(args, id)
    if _, err := r.DB.ExecContext(ctx,
        "UPDATE device SET "+strings.Join(set, ", ")+" WHERE id=?", args...); err != nil {
        return model.Device{}, err
    }
    return r.GetByID(ctx, id)
}

// Heartbeat records a device check-in: online flag and timestamp.
func (r *DeviceRepo) Heartbeat(ctx context.Context, id uint64, online bool) error {
    res, err := r.DB.ExecContext(ctx,
        "UPDATE device SET is_online=?, heartbeat_timestamp=? WHERE id=?",
        online, time.Now().UTC(), id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err == nil && n == 0 {
        if _, getErr := r.GetByID(ctx, id); getErr != nil {
            return getErr
        }
    }
    return err
}

// DeleteTx removes a device and its entity inside the given
// transaction.
func (r *DeviceRepo) DeleteTx(ctx context.Context, tx DBTX, d model.Device) (uint64, error) {
    if _, err := tx.ExecContext(ctx, "DELETE FROM device WHERE id=?", d.ID); err != nil {
        return 0, err
    }
    if err := r.Entities.DeleteTx(ctx, tx, d.EntityID); err != nil {
        return 0, err
    }
    return d.ID, nil
}

func (r *DeviceRepo) listQuery(ctx context.Context, query string, args ...any) ([]model.Device, error) {
    rows, err := r.DB.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var devices []model.Device
    for rows.Next() {
        d, err := scanDeviceRow(rows.Scan)
        if err != nil {
            return nil, err
        }
        devices = append(devices, d)
    }
    return devices, rows.Err()
}

// deviceColsPrefixed returns the device column list qualified with a
// table alias for use in joins.
func deviceColsPrefixed(alias string) string {
    cols := strings.Split(strings.ReplaceAll(deviceCols, "\n", ""), ",")
    for i, c := range cols {
        cols[i] = alias + "." + strings.TrimSpace(c)
    }
    return strings.Join(cols, ", ")
}
