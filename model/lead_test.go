package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestLeadModel_DefaultsToNew(t *testing.T) {
	db := setupTestDB(t, "leads", &Lead{})

	lo, hi := int64(5000000), int64(15000000)
	lead := Lead{
		Name:         "Jane Buyer",
		Email:        "jane@example.com",
		Source:       LeadSourceChatAssistant,
		BudgetMin:    &lo,
		BudgetMax:    &hi,
		Conversation: datatypes.JSON(`[{"role":"bot","text":"hi"}]`),
		Score:        85,
	}
	require.NoError(t, db.Create(&lead).Error)

	var found Lead
	require.NoError(t, db.First(&found, lead.ID).Error)
	assert.Equal(t, LeadStatusNew, found.Status)
	require.NotNil(t, found.BudgetMax)
	assert.Equal(t, hi, *found.BudgetMax)
	assert.JSONEq(t, `[{"role":"bot","text":"hi"}]`, string(found.Conversation))
}

func TestIsValidLeadStatus(t *testing.T) {
	for _, s := range []string{LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusClosed, LeadStatusLost} {
		assert.True(t, IsValidLeadStatus(s), s)
	}
	assert.False(t, IsValidLeadStatus("spam"))
}
