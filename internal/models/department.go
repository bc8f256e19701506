package models

import (
	"time"

	"gorm.io/gorm"
)

// Department is an office-track grouping. ManagerID and DepartmentLeadID point
// at users holding the matching role; TopManagement lists the overseers.
type Department struct {
	ID               uint64         `gorm:"primarykey" json:"id"`
	Name             string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	ManagerID        *uint64        `json:"manager_id"`
	DepartmentLeadID *uint64        `json:"department_lead_id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	TopManagement []User `gorm:"many2many:department_top_management;" json:"top_management,omitempty"`
}

// HasManager reports whether userID is the department's designated manager.
func (d *Department) HasManager(userID uint64) bool {
	return d.ManagerID != nil && *d.ManagerID == userID
}

// HasLead reports whether userID is the department's designated lead.
func (d *Department) HasLead(userID uint64) bool {
	return d.DepartmentLeadID != nil && *d.DepartmentLeadID == userID
}

// OverseenBy reports whether userID is in the department's top-management set.
func (d *Department) OverseenBy(userID uint64) bool {
	for _, tm := range d.TopManagement {
		if tm.ID == userID {
			return true
		}
	}
	return false
}
