package models

import "time"

// Secret represents an encrypted configuration entry of an application.
type Secret struct {
	ID             string           `json:"id"`
	ApplicationID  string           `json:"application_id"`
	Key            string           `json:"key"`
	EncryptedValue string           `json:"-"` // never serialized
	Environments   []EnvironmentRef `json:"environments"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
