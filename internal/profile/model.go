package profile

import (
	"time"

	"github.com/google/uuid"
)

// Profile is one row in the profiles table: everything a person shows
// on their public page, plus the per-channel visibility flags and the
// optional face descriptor used for biometric unlock.
//
// A profile with an empty Username is a draft that has never been
// published; it is invisible to everyone but its owner.
type Profile struct {
	ID          uuid.UUID `json:"id"           db:"id"`
	Username    string    `json:"username"     db:"username"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Bio         string    `json:"bio"          db:"bio"`
	AvatarURL   string    `json:"avatar_url"   db:"avatar_url"`

	Phone           string `json:"phone"            db:"phone"`
	PhonePublic     bool   `json:"phone_public"     db:"phone_public"`
	Email           string `json:"email"            db:"email"`
	EmailPublic     bool   `json:"email_public"     db:"email_public"`
	WhatsApp        string `json:"whatsapp"         db:"whatsapp"`
	WhatsAppPublic  bool   `json:"whatsapp_public"  db:"whatsapp_public"`
	Website         string `json:"website"          db:"website"`
	WebsitePublic   bool   `json:"website_public"   db:"website_public"`
	Telegram        string `json:"telegram"         db:"telegram"`
	TelegramPublic  bool   `json:"telegram_public"  db:"telegram_public"`
	Instagram       string `json:"instagram"        db:"instagram"`
	InstagramPublic bool   `json:"instagram_public" db:"instagram_public"`
	LinkedIn        string `json:"linkedin"         db:"linkedin"`
	LinkedInPublic  bool   `json:"linkedin_public"  db:"linkedin_public"`

	// EmailVerified is stamped from the session by the save path.
	// It is never accepted from user input.
	EmailVerified bool `json:"email_verified" db:"email_verified"`

	// FaceDescriptor is a 128-element vector written only through the
	// narrow enrollment path; nil means no biometric is configured.
	FaceDescriptor []float32 `json:"-" db:"face_descriptor"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Published reports whether the profile is publicly visible at all.
func (p *Profile) Published() bool {
	return p.Username != ""
}

// PublicProfile is the channel-filtered view served on the public page.
// A channel appears only when its value is non-empty AND its flag is
// set; emptiness always wins over visibility.
type PublicProfile struct {
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	Bio           string `json:"bio,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	EmailVerified bool   `json:"email_verified"`

	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	WhatsApp  string `json:"whatsapp,omitempty"`
	Website   string `json:"website,omitempty"`
	Telegram  string `json:"telegram,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
}

// Public returns the channel-filtered public view of the profile.
func (p *Profile) Public() *PublicProfile {
	show := func(value string, public bool) string {
		if value == "" || !public {
			return ""
		}
		return value
	}
	return &PublicProfile{
		Username:      p.Username,
		DisplayName:   p.DisplayName,
		Bio:           p.Bio,
		AvatarURL:     p.AvatarURL,
		EmailVerified: p.EmailVerified,
		Phone:         show(p.Phone, p.PhonePublic),
		Email:         show(p.Email, p.EmailPublic),
		WhatsApp:      show(p.WhatsApp, p.WhatsAppPublic),
		Website:       show(p.Website, p.WebsitePublic),
		Telegram:      show(p.Telegram, p.TelegramPublic),
		Instagram:     show(p.Instagram, p.InstagramPublic),
		LinkedIn:      show(p.LinkedIn, p.LinkedInPublic),
	}
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	cp := *p
	if p.FaceDescriptor != nil {
		cp.FaceDescriptor = make([]float32, len(p.FaceDescriptor))
		copy(cp.FaceDescriptor, p.FaceDescriptor)
	}
	return &cp
}
