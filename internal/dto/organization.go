package dto

import (
	"time"

	"github.com/yukikurage/kpi-management-api/internal/models"
)

// DepartmentDTO represents a department with its designated roles
type DepartmentDTO struct {
	ID               uint64    `json:"id"`
	Name             string    `json:"name"`
	ManagerID        *uint64   `json:"manager_id"`
	DepartmentLeadID *uint64   `json:"department_lead_id"`
	TopManagement    []UserDTO `json:"top_management"`
	CreatedAt        time.Time `json:"created_at"`
}

// PositionDTO represents a job title
type PositionDTO struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// UserListResponse represents a paginated list of users
type UserListResponse struct {
	Users      []UserDTO `json:"users"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int64     `json:"total_count"`
}

// ToDepartmentDTO converts a department with preloaded overseers
func ToDepartmentDTO(dept models.Department) DepartmentDTO {
	tms := make([]UserDTO, len(dept.TopManagement))
	for i, tm := range dept.TopManagement {
		tms[i] = ToUserDTO(tm)
	}
	return DepartmentDTO{
		ID:               dept.ID,
		Name:             dept.Name,
		ManagerID:        dept.ManagerID,
		DepartmentLeadID: dept.DepartmentLeadID,
		TopManagement:    tms,
		CreatedAt:        dept.CreatedAt,
	}
}

func ToDepartmentDTOs(depts []models.Department) []DepartmentDTO {
	dtos := make([]DepartmentDTO, len(depts))
	for i, d := range depts {
		dtos[i] = ToDepartmentDTO(d)
	}
	return dtos
}

func ToPositionDTOs(positions []models.Position) []PositionDTO {
	dtos := make([]PositionDTO, len(positions))
	for i, p := range positions {
		dtos[i] = PositionDTO{ID: p.ID, Name: p.Name}
	}
	return dtos
}

// ToUserListResponse converts a page of users
func ToUserListResponse(users []models.User, page, pageSize int, totalCount int64) UserListResponse {
	items := make([]UserDTO, len(users))
	for i, u := range users {
		items[i] = ToUserDTO(u)
	}
	return UserListResponse{
		Users:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
	}
}
