package profile

import "time"

// The profiles table has grown in stages, and deployed clients must
// keep working against databases that have not caught up (or have been
// rolled back). Columns are therefore grouped into tiers matching the
// migration that introduced them, and every read and write is driven by
// a capability set describing which columns the live schema actually
// has. See Repository.refreshCapabilities.
type schemaTier int

const (
	tierBase    schemaTier = iota + 1 // 001: identity + display fields
	tierContact                       // 002: contact channels + email_verified
	tierSocial                        // 003: social handles + face_descriptor
)

// column describes a profiles column the client knows how to read and
// write. pairedFlag links a channel value column to its visibility
// flag: the two are only ever read or written together.
type column struct {
	name       string
	tier       schemaTier
	pairedFlag string
	value      func(p *Profile) any // write-set value
	scan       func(p *Profile) any // row-scan destination
}

// profileColumns is the full known column set, in stable order. The id
// column is handled separately as the upsert conflict key.
var profileColumns = []column{
	{name: "username", tier: tierBase,
		value: func(p *Profile) any { return p.Username },
		scan:  func(p *Profile) any { return &p.Username }},
	{name: "display_name", tier: tierBase,
		value: func(p *Profile) any { return p.DisplayName },
		scan:  func(p *Profile) any { return &p.DisplayName }},
	{name: "bio", tier: tierBase,
		value: func(p *Profile) any { return p.Bio },
		scan:  func(p *Profile) any { return &p.Bio }},
	{name: "avatar_url", tier: tierBase,
		value: func(p *Profile) any { return p.AvatarURL },
		scan:  func(p *Profile) any { return &p.AvatarURL }},
	{name: "updated_at", tier: tierBase,
		value: func(p *Profile) any { return p.UpdatedAt },
		scan:  func(p *Profile) any { return &p.UpdatedAt }},

	{name: "email_verified", tier: tierContact,
		value: func(p *Profile) any { return p.EmailVerified },
		scan:  func(p *Profile) any { return &p.EmailVerified }},
	{name: "phone", tier: tierContact, pairedFlag: "phone_public",
		value: func(p *Profile) any { return p.Phone },
		scan:  func(p *Profile) any { return &p.Phone }},
	{name: "phone_public", tier: tierContact,
		value: func(p *Profile) any { return p.PhonePublic },
		scan:  func(p *Profile) any { return &p.PhonePublic }},
	{name: "email", tier: tierContact, pairedFlag: "email_public",
		value: func(p *Profile) any { return p.Email },
		scan:  func(p *Profile) any { return &p.Email }},
	{name: "email_public", tier: tierContact,
		value: func(p *Profile) any { return p.EmailPublic },
		scan:  func(p *Profile) any { return &p.EmailPublic }},
	{name: "whatsapp", tier: tierContact, pairedFlag: "whatsapp_public",
		value: func(p *Profile) any { return p.WhatsApp },
		scan:  func(p *Profile) any { return &p.WhatsApp }},
	{name: "whatsapp_public", tier: tierContact,
		value: func(p *Profile) any { return p.WhatsAppPublic },
		scan:  func(p *Profile) any { return &p.WhatsAppPublic }},
	{name: "website", tier: tierContact, pairedFlag: "website_public",
		value: func(p *Profile) any { return p.Website },
		scan:  func(p *Profile) any { return &p.Website }},
	{name: "website_public", tier: tierContact,
		value: func(p *Profile) any { return p.WebsitePublic },
		scan:  func(p *Profile) any { return &p.WebsitePublic }},

	{name: "telegram", tier: tierSocial, pairedFlag: "telegram_public",
		value: func(p *Profile) any { return p.Telegram },
		scan:  func(p *Profile) any { return &p.Telegram }},
	{name: "telegram_public", tier: tierSocial,
		value: func(p *Profile) any { return p.TelegramPublic },
		scan:  func(p *Profile) any { return &p.TelegramPublic }},
	{name: "instagram", tier: tierSocial, pairedFlag: "instagram_public",
		value: func(p *Profile) any { return p.Instagram },
		scan:  func(p *Profile) any { return &p.Instagram }},
	{name: "instagram_public", tier: tierSocial,
		value: func(p *Profile) any { return p.InstagramPublic },
		scan:  func(p *Profile) any { return &p.InstagramPublic }},
	{name: "linkedin", tier: tierSocial, pairedFlag: "linkedin_public",
		value: func(p *Profile) any { return p.LinkedIn },
		scan:  func(p *Profile) any { return &p.LinkedIn }},
	{name: "linkedin_public", tier: tierSocial,
		value: func(p *Profile) any { return p.LinkedInPublic },
		scan:  func(p *Profile) any { return &p.LinkedInPublic }},
	{name: "face_descriptor", tier: tierSocial,
		value: func(p *Profile) any { return p.FaceDescriptor },
		scan:  func(p *Profile) any { return &p.FaceDescriptor }},
}

// capabilities is the set of profiles columns present in the live
// schema. It is immutable once built; refreshes swap in a new set.
type capabilities map[string]bool

// fullCapabilities assumes every known column is present. Used as the
// optimistic starting point before the first probe.
func fullCapabilities() capabilities {
	caps := make(capabilities, len(profileColumns))
	for _, c := range profileColumns {
		caps[c.name] = true
	}
	return caps
}

// capabilitiesFrom builds a normalized capability set from the column
// names reported by the database. Normalization enforces the pairing
// rule: a channel value column is only usable when its visibility flag
// exists too, and vice versa, so a half-migrated channel is excluded
// symmetrically from both reads and writes.
func capabilitiesFrom(names []string) capabilities {
	present := make(capabilities, len(names))
	for _, n := range names {
		present[n] = true
	}
	caps := make(capabilities, len(present))
	for _, c := range profileColumns {
		if !present[c.name] {
			continue
		}
		if c.pairedFlag != "" && !present[c.pairedFlag] {
			continue
		}
		caps[c.name] = true
	}
	// Flags whose value column is missing are dropped as well.
	for _, c := range profileColumns {
		if c.pairedFlag != "" && !caps[c.name] {
			delete(caps, c.pairedFlag)
		}
	}
	return caps
}

// degrade returns a copy of caps with the highest tier still present
// removed. Degrading an all-base set returns it unchanged; base columns
// are the floor, and if those fail the error surfaces.
func (caps capabilities) degrade() capabilities {
	highest := tierBase
	for _, c := range profileColumns {
		if caps[c.name] && c.tier > highest {
			highest = c.tier
		}
	}
	if highest == tierBase {
		return caps
	}
	out := make(capabilities, len(caps))
	for _, c := range profileColumns {
		if caps[c.name] && c.tier < highest {
			out[c.name] = true
		}
	}
	return out
}

// selectColumns returns the known columns present in caps, in stable
// order. Base columns are always included: they are the floor the
// application cannot run without.
func selectColumns(caps capabilities) []column {
	cols := make([]column, 0, len(profileColumns))
	for _, c := range profileColumns {
		if c.tier == tierBase || caps[c.name] {
			cols = append(cols, c)
		}
	}
	return cols
}

// writeColumns returns the columns included in an upsert write set:
// present in caps and not excluded. Exclusion of a channel value column
// symmetrically excludes its paired flag.
func writeColumns(caps capabilities, excluded map[string]bool) []column {
	skip := make(map[string]bool, len(excluded))
	for name := range excluded {
		skip[name] = true
		for _, c := range profileColumns {
			if c.name == name && c.pairedFlag != "" {
				skip[c.pairedFlag] = true
			}
		}
	}
	cols := make([]column, 0, len(profileColumns))
	for _, c := range profileColumns {
		if (c.tier == tierBase || caps[c.name]) && !skip[c.name] {
			cols = append(cols, c)
		}
	}
	return cols
}

// stamp sets the write timestamp. Every upsert attempt re-stamps so
// retries never reuse a stale timestamp.
func stamp(p *Profile, now time.Time) {
	p.UpdatedAt = now.UTC()
}
