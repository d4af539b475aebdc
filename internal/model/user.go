// internal/model/user.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity shadow for actors referenced by memberships, tasks
// and activity entries. Credentials and sessions are owned by the external
// authentication service; this table only mirrors what the board needs to
// render and to key foreign references on.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Email     string    `gorm:"type:text;uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
