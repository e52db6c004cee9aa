package model

import "github.com/google/uuid"

type Principal struct {
	UserID uuid.UUID
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == "admin"
}

func (p Principal) Owns(post *PlatePost) bool {
	return post != nil && post.OwnerID == p.UserID
}
