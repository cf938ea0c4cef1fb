package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	LeadSourceContactForm     = "contact_form"
	LeadSourceChatAssistant   = "chat_assistant"
	LeadSourcePropertyInquiry = "property_inquiry"

	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusClosed    = "closed"
	LeadStatusLost      = "lost"
)

// Lead is a captured prospective client.
// @Description Lead captured from the contact form or the chat assistant
type Lead struct {
	gorm.Model
	Name         string         `json:"name" gorm:"type:varchar(191)"`
	Email        string         `json:"email" gorm:"type:varchar(191);index"`
	Phone        string         `json:"phone" gorm:"type:varchar(32)"`
	Message      string         `json:"message" gorm:"type:text"`
	Preference   string         `json:"preference" gorm:"type:varchar(32)"`
	Location     string         `json:"location" gorm:"type:varchar(191)"`
	BudgetMin    *int64         `json:"budget_min"`
	BudgetMax    *int64         `json:"budget_max"`
	Bedrooms     *int           `json:"bedrooms"`
	Timeline     string         `json:"timeline" gorm:"type:varchar(64)"`
	Source       string         `json:"source" gorm:"type:varchar(32);not null;index" example:"contact_form"`
	PropertyID   *uint          `json:"property_id" gorm:"index"`
	Conversation datatypes.JSON `json:"conversation,omitempty" gorm:"type:json"`
	Score        int            `json:"score" example:"85"`
	Status       string         `json:"status" gorm:"type:varchar(16);default:new;index" example:"new"`
	IP           string         `json:"-" gorm:"type:varchar(45)"`
}

// IsValidLeadStatus reports whether s is a known lead pipeline status.
func IsValidLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusClosed, LeadStatusLost:
		return true
	}
	return false
}
