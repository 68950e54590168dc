package internal

import "time"

type ShortLink struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	OriginalURL string    `json:"original_url"`
	OwnerID     string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
