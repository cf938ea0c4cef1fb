package model

import (
	"strings"
	"unicode"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ListingSale = "sale"
	ListingRent = "rent"

	PropertyAvailable = "available"
	PropertyPending   = "pending"
	PropertySold      = "sold"
	PropertyRented    = "rented"
)

// Property represents a listing shown on the site
// @Description Property listing
type Property struct {
	gorm.Model
	Title        string         `json:"title" gorm:"type:varchar(255);not null" example:"Sea-view apartment"`
	Description  string         `json:"description" gorm:"type:text"`
	ListingType  string         `json:"listing_type" gorm:"type:varchar(16);not null;index" example:"sale"`
	PropertyType string         `json:"property_type" gorm:"type:varchar(64);index" example:"apartment"`
	Price        int64          `json:"price" gorm:"not null;index" example:"12500000"`
	Currency     string         `json:"currency" gorm:"type:varchar(8);default:USD" example:"USD"`
	Location     string         `json:"location" gorm:"type:varchar(191);not null" example:"Palm Jumeirah"`
	LocationSlug string         `json:"location_slug" gorm:"type:varchar(191);index" example:"palm-jumeirah"`
	Address      string         `json:"address" gorm:"type:varchar(255)"`
	Bedrooms     int            `json:"bedrooms" example:"3"`
	Bathrooms    int            `json:"bathrooms" example:"2"`
	AreaSqm      float64        `json:"area_sqm" example:"145.5"`
	Images       datatypes.JSON `json:"images" gorm:"type:json"`
	Amenities    datatypes.JSON `json:"amenities" gorm:"type:json"`
	Featured     bool           `json:"featured" gorm:"default:false;index"`
	Status       string         `json:"status" gorm:"type:varchar(16);default:available;index" example:"available"`
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
}

// IsValidListingType reports whether t is a listing type the site understands.
func IsValidListingType(t string) bool {
	return t == ListingSale || t == ListingRent
}

// IsValidPropertyStatus reports whether s is a known property status.
func IsValidPropertyStatus(s string) bool {
	switch s {
	case PropertyAvailable, PropertyPending, PropertySold, PropertyRented:
		return true
	}
	return false
}

// BeforeSave keeps LocationSlug in step with Location.
func (p *Property) BeforeSave(tx *gorm.DB) error {
	if p.Location != "" {
		p.LocationSlug = Slugify(p.Location)
	}
	if p.Status == "" {
		p.Status = PropertyAvailable
	}
	return nil
}

// Slugify lowercases s and joins its alphanumeric runs with single dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
