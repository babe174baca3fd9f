// README: Driver aggregate and availability states.
package driver

import (
	"time"

	"lifeline/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOffline:
		return true
	}
	return false
}

type Driver struct {
	ID            types.ID  `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	LicenseNumber string    `json:"license_number"`
	Address       string    `json:"address"`
	// Location is operator-entered free text ("near ER bay 2"), not GPS.
	Location  string    `json:"location"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Applied reports the driver after applying the patch fields that are set.
func (d Driver) Applied(p Patch) Driver {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Phone != nil {
		d.Phone = *p.Phone
	}
	if p.LicenseNumber != nil {
		d.LicenseNumber = *p.LicenseNumber
	}
	if p.Address != nil {
		d.Address = *p.Address
	}
	if p.Location != nil {
		d.Location = *p.Location
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	return d
}

// Patch carries optional field updates; nil means leave unchanged.
type Patch struct {
	Name          *string
	Phone         *string
	LicenseNumber *string
	Address       *string
	Location      *string
	Status        *Status
}
