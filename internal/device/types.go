package device

import "time"

// Status is the operational state of a device as seen by the hub.
type Status string

// Device status values.
const (
	// StatusOnline means the device has pushed data recently.
	StatusOnline Status = "online"

	// StatusOffline means the device has not yet made contact, or has been
	// marked unreachable by an operator.
	StatusOffline Status = "offline"

	// StatusAlert means the device has an unresolved intrusion alert.
	StatusAlert Status = "alert"
)

// ValidStatus reports whether s is a recognised device status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAlert:
		return true
	default:
		return false
	}
}

// Settings holds the per-device operator-controlled switches.
type Settings struct {
	SensorsEnabled bool `json:"sensors_enabled"`
	CoinRejection  bool `json:"coin_rejection"`
}

// DefaultSettings returns the settings applied to a device on first contact.
// Intrusion sensors default on; coin rejection defaults off.
func DefaultSettings() Settings {
	return Settings{
		SensorsEnabled: true,
		CoinRejection:  false,
	}
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	SensorsEnabled *bool `json:"sensors_enabled,omitempty"`
	CoinRejection  *bool `json:"coin_rejection,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p SettingsPatch) IsEmpty() bool {
	return p.SensorsEnabled == nil && p.CoinRejection == nil
}

// Apply merges the patch into s, field by field.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.SensorsEnabled != nil {
		s.SensorsEnabled = *p.SensorsEnabled
	}
	if p.CoinRejection != nil {
		s.CoinRejection = *p.CoinRejection
	}
	return s
}

// Device represents one vending/kiosk unit in the fleet.
//
// Devices are created lazily on first contact (upsert semantics) and never
// deleted by the core. The device_id is immutable after creation.
type Device struct {
	ID        string     `json:"device_id"`
	Name      string     `json:"name,omitempty"`
	Location  string     `json:"location,omitempty"`
	Status    Status     `json:"status"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	Settings  Settings   `json:"settings"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Clone returns an independent copy of the Device.
// Used for cache isolation: callers can safely modify the result.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	if d.LastSeen != nil {
		ls := *d.LastSeen
		cpy.LastSeen = &ls
	}
	return &cpy
}
