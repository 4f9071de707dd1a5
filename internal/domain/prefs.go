package domain

// SyncPreferences selects which product fields are kept in sync from the
// supplier store. Nil means "not set": unset fields default to enabled,
// except Tags and SEO which default to disabled. That asymmetry matches
// how merchants expect imports to behave and must be preserved.
type SyncPreferences struct {
	Title       *bool `json:"title,omitempty"`
	Description *bool `json:"description,omitempty"`
	Images      *bool `json:"images,omitempty"`
	Pricing     *bool `json:"pricing,omitempty"`
	Inventory   *bool `json:"inventory,omitempty"`
	Tags        *bool `json:"tags,omitempty"`
	SEO         *bool `json:"seo,omitempty"`
}

func enabled(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// SyncTitle reports whether the product title should be synced
func (p SyncPreferences) SyncTitle() bool { return enabled(p.Title, true) }

// SyncDescription reports whether the description should be synced
func (p SyncPreferences) SyncDescription() bool { return enabled(p.Description, true) }

// SyncImages reports whether images should be synced
func (p SyncPreferences) SyncImages() bool { return enabled(p.Images, true) }

// SyncPricing reports whether pricing should be synced
func (p SyncPreferences) SyncPricing() bool { return enabled(p.Pricing, true) }

// SyncInventory reports whether inventory should be synced
func (p SyncPreferences) SyncInventory() bool { return enabled(p.Inventory, true) }

// SyncTags reports whether tags should be synced (off unless opted in)
func (p SyncPreferences) SyncTags() bool { return enabled(p.Tags, false) }

// SyncSEO reports whether SEO fields should be synced (off unless opted in)
func (p SyncPreferences) SyncSEO() bool { return enabled(p.SEO, false) }

// Merge overlays non-nil fields from other onto a copy of p
func (p SyncPreferences) Merge(other SyncPreferences) SyncPreferences {
	out := p
	if other.Title != nil {
		out.Title = other.Title
	}
	if other.Description != nil {
		out.Description = other.Description
	}
	if other.Images != nil {
		out.Images = other.Images
	}
	if other.Pricing != nil {
		out.Pricing = other.Pricing
	}
	if other.Inventory != nil {
		out.Inventory = other.Inventory
	}
	if other.Tags != nil {
		out.Tags = other.Tags
	}
	if other.SEO != nil {
		out.SEO = other.SEO
	}
	return out
}
