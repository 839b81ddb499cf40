package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// SocialLinks are optional external profile URLs.
type SocialLinks struct {
	Twitter  string `json:"twitter,omitempty"`
	Github   string `json:"github,omitempty"`
	Linkedin string `json:"linkedin,omitempty"`
	Website  string `json:"website,omitempty"`
}

type Profile struct {
	ID             string    `gorm:"type:uuid;primary_key" json:"id"`
	UserID         string    `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Bio            *string   `gorm:"type:text" json:"bio,omitempty"`
	Interests      string    `gorm:"type:jsonb;default:'[]'" json:"-"`
	SocialLinks    string    `gorm:"type:jsonb;default:'{}'" json:"-"`
	Theme          string    `gorm:"type:varchar(10);default:'system'" json:"theme"`
	ProfilePicture *string   `gorm:"type:text" json:"profile_picture,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate hook to generate UUID
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Interests == "" {
		p.Interests = "[]"
	}
	if p.SocialLinks == "" {
		p.SocialLinks = "{}"
	}
	if p.Theme == "" {
		p.Theme = ThemeSystem
	}
	return nil
}

// TableName specifies the table name
func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) GetInterests() []string {
	var out []string
	if err := json.Unmarshal([]byte(p.Interests), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func (p *Profile) SetInterests(interests []string) error {
	if interests == nil {
		interests = []string{}
	}
	b, err := json.Marshal(interests)
	if err != nil {
		return err
	}
	p.Interests = string(b)
	return nil
}

func (p *Profile) GetSocialLinks() SocialLinks {
	var out SocialLinks
	_ = json.Unmarshal([]byte(p.SocialLinks), &out)
	return out
}

func (p *Profile) SetSocialLinks(links SocialLinks) error {
	b, err := json.Marshal(links)
	if err != nil {
		return err
	}
	p.SocialLinks = string(b)
	return nil
}

func (p *Profile) MarshalJSON() ([]byte, error) {
	type Alias Profile
	return json.Marshal(&struct {
		Interests   []string    `json:"interests"`
		SocialLinks SocialLinks `json:"social_links"`
		*Alias
	}{
		Interests:   p.GetInterests(),
		SocialLinks: p.GetSocialLinks(),
		Alias:       (*Alias)(p),
	})
}

// UnmarshalJSON reads the form produced by MarshalJSON (used by the cache).
func (p *Profile) UnmarshalJSON(data []byte) error {
	type Alias Profile
	aux := &struct {
		Interests   []string    `json:"interests"`
		SocialLinks SocialLinks `json:"social_links"`
		*Alias
	}{Alias: (*Alias)(p)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if err := p.SetInterests(aux.Interests); err != nil {
		return err
	}
	return p.SetSocialLinks(aux.SocialLinks)
}

// IsValidTheme reports whether t is a supported UI theme.
func IsValidTheme(t string) bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}
