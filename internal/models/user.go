package models

import (
	"time"
)

// User is never hard-deleted: task and evaluation history reference it.
// Deactivate with IsActive=false instead.
type User struct {
	ID           uint64       `gorm:"primarykey" json:"id"`
	Username     string       `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email        string       `gorm:"type:varchar(255)" json:"email"`
	FullName     string       `gorm:"type:varchar(255)" json:"full_name"`
	PasswordHash string       `gorm:"type:varchar(255);not null" json:"-"`
	Role         Role         `gorm:"type:varchar(30);not null;default:'employee';index" json:"role"`
	DepartmentID *uint64      `gorm:"index" json:"department_id"`
	FactoryType  *FactoryType `gorm:"type:varchar(20);index" json:"factory_type"`
	PositionID   *uint64      `json:"position_id"`
	IsActive     bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	// Relations
	Department *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Position   *Position   `gorm:"foreignKey:PositionID" json:"position,omitempty"`
}

// OnFactoryTrack reports whether the user belongs to the factory hierarchy.
func (u *User) OnFactoryTrack() bool {
	return u.FactoryType != nil
}

// InDepartment reports whether the user is a member of the given department.
func (u *User) InDepartment(departmentID uint64) bool {
	return u.DepartmentID != nil && *u.DepartmentID == departmentID
}

// SameFactoryType reports whether both users share a factory type.
func (u *User) SameFactoryType(ft FactoryType) bool {
	return u.FactoryType != nil && *u.FactoryType == ft
}
