package entity

// User is a verified identity derived from the LinkedIn OAuth profile.
// LinkedInID is the provider's stable subject claim; a record is created
// on the first callback for that id and never mutated afterwards.
type User struct {
	LinkedInID string `json:"id" gorm:"primaryKey;size:64;column:linkedin_id"`
	Name       string `json:"name" gorm:"size:191"`
	Email      string `json:"email" gorm:"size:191"`
}
