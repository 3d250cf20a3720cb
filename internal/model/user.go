package model

import "time"

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleTutor  Role = "TUTOR"
	RoleParent Role = "PARENT"
	RoleChild  Role = "CHILD"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTutor, RoleParent, RoleChild:
		return true
	}
	return false
}

// Actor аутентифицированный участник запроса, его данные приходят из токена
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type User struct {
	ID             int64     `json:"id"`
	Role           Role      `json:"role"`
	FullName       string    `json:"full_name"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
