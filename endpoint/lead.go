package endpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ariebrainware/realty-leads/assistant"
	"github.com/ariebrainware/realty-leads/metrics"
	"github.com/ariebrainware/realty-leads/middleware"
	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LeadRequest is the contact form body.
type LeadRequest struct {
	Name       string `json:"name" binding:"required" example:"Jane Doe"`
	Email      string `json:"email" binding:"required" example:"jane@example.com"`
	Phone      string `json:"phone" example:"+971 50 123 4567"`
	Message    string `json:"message" example:"I'd like to view this apartment"`
	Preference string `json:"preference" example:"buy"`
	Location   string `json:"location" example:"Dubai Marina"`
	BudgetMin  *int64 `json:"budget_min" example:"5000000"`
	BudgetMax  *int64 `json:"budget_max" example:"15000000"`
	Bedrooms   *int   `json:"bedrooms" example:"3"`
	Timeline   string `json:"timeline" example:"1-3 months"`
	PropertyID *uint  `json:"property_id" example:"7"`
}

func (r LeadRequest) checkFields() error {
	var errs []error
	if err := util.ValidateName(util.NormalizeName(r.Name)); err != nil {
		errs = append(errs, err)
	}
	if err := util.ValidateEmail(r.Email); err != nil {
		errs = append(errs, err)
	}
	if r.Phone != "" {
		if err := util.ValidatePhone(r.Phone); err != nil {
			errs = append(errs, err)
		}
	}
	if r.BudgetMin != nil && r.BudgetMax != nil && *r.BudgetMin > *r.BudgetMax {
		errs = append(errs, fmt.Errorf("%w: budget_min is greater than budget_max", util.ErrInvalidInput))
	}
	if r.Bedrooms != nil && (*r.Bedrooms < 0 || *r.Bedrooms > 50) {
		errs = append(errs, fmt.Errorf("%w: bedrooms out of range", util.ErrInvalidInput))
	}
	return errors.Join(errs...)
}

// leadScore scores a lead with the same weights as the chat assistant.
func leadScore(l model.Lead) int {
	return assistant.LeadScore(assistant.ChatUserData{
		Preference: l.Preference,
		Location:   l.Location,
		BudgetMin:  l.BudgetMin,
		BudgetMax:  l.BudgetMax,
		Bedrooms:   l.Bedrooms,
		Name:       l.Name,
		Phone:      l.Phone,
		Email:      l.Email,
		Timeline:   l.Timeline,
	})
}

func insertLead(db *gorm.DB, lead *model.Lead) error {
	lead.Score = leadScore(*lead)
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	if err := db.Create(lead).Error; err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	metrics.LeadsCreated.WithLabelValues(lead.Source).Inc()
	return nil
}

// CreateLead godoc
// @Summary      Submit contact form
// @Description  Store a lead from the contact form or a property inquiry. Limited per IP.
// @Tags         Leads
// @Accept       json
// @Produce      json
// @Param        request body LeadRequest true "Lead"
// @Success      201 {object} util.APIResponse{data=model.Lead} "Lead created"
// @Failure      400 {object} util.APIResponse "Invalid input"
// @Failure      429 {object} util.APIResponse "Too many requests"
// @Router       /leads [post]
func CreateLead(c *gin.Context) {
	var req LeadRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	clean, ok := validateOrRespond(c, map[string]string{
		"name":       req.Name,
		"email":      req.Email,
		"phone":      req.Phone,
		"message":    req.Message,
		"preference": req.Preference,
		"location":   req.Location,
		"timeline":   req.Timeline,
	}, util.ValidationOptions{MaxLength: 2000})
	if !ok {
		return
	}
	if err := req.checkFields(); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid input", Err: err})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	source := model.LeadSourceContactForm
	if req.PropertyID != nil {
		var property model.Property
		if err := db.Select("id").First(&property, *req.PropertyID).Error; err != nil {
			respondFindError(c, "Property", err)
			return
		}
		source = model.LeadSourcePropertyInquiry
	}

	lead := model.Lead{
		Name:       util.NormalizeName(req.Name),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      util.NormalizePhone(req.Phone),
		Message:    clean["message"],
		Preference: strings.ToLower(clean["preference"]),
		Location:   clean["location"],
		BudgetMin:  req.BudgetMin,
		BudgetMax:  req.BudgetMax,
		Bedrooms:   req.Bedrooms,
		Timeline:   clean["timeline"],
		Source:     source,
		PropertyID: req.PropertyID,
		IP:         c.ClientIP(),
	}
	if err := insertLead(db, &lead); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to submit your request", Err: err})
		return
	}

	util.CallCreated(c, util.APISuccessParams{Msg: "Thank you, we will be in touch shortly", Data: lead})
}

// ListLeads godoc
// @Summary      List leads
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        status query string false "new, contacted, qualified, closed or lost"
// @Param        source query string false "contact_form, chat_assistant or property_inquiry"
// @Param        limit  query int    false "Page size (max 100)"
// @Param        offset query int    false "Offset"
// @Success      200 {object} util.APIResponse{data=listResponse} "Leads retrieved"
// @Router       /admin/leads [get]
func ListLeads(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	q := db.Model(&model.Lead{})
	if v := c.Query("status"); v != "" {
		if !model.IsValidLeadStatus(v) {
			util.CallUserError(c, util.APIErrorParams{Msg: "Invalid filter", Err: fmt.Errorf("invalid status %q", v)})
			return
		}
		q = q.Where("status = ?", v)
	}
	if v := c.Query("source"); v != "" {
		q = q.Where("source = ?", v)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to count leads", Err: err})
		return
	}

	page := parsePagination(c)
	var leads []model.Lead
	if err := q.Session(&gorm.Session{}).Order("created_at DESC").
		Limit(page.Limit).Offset(page.Offset).Find(&leads).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve leads", Err: err})
		return
	}

	middleware.GetSecurity(c).Monitor.LogDataAccess(currentUserID(c), c.ClientIP(), "leads", len(leads))
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Leads retrieved",
		Data: listResponse{
			Total:        total,
			TotalFetched: len(leads),
			Limit:        page.Limit,
			Offset:       page.Offset,
			Items:        leads,
		},
	})
}

// GetLead godoc
// @Summary      Get lead
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Lead ID"
// @Success      200 {object} util.APIResponse{data=model.Lead} "Lead retrieved"
// @Failure      404 {object} util.APIResponse "Lead not found"
// @Router       /admin/leads/{id} [get]
func GetLead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var lead model.Lead
	if err := db.First(&lead, id).Error; err != nil {
		respondFindError(c, "Lead", err)
		return
	}
	middleware.GetSecurity(c).Monitor.LogDataAccess(currentUserID(c), c.ClientIP(), fmt.Sprintf("lead:%d", id), 1)
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Lead retrieved", Data: lead})
}

// UpdateLeadRequest moves a lead along the pipeline.
type UpdateLeadRequest struct {
	Status string `json:"status" binding:"required" example:"contacted"`
}

// UpdateLead godoc
// @Summary      Update lead status
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Lead ID"
// @Param        request body UpdateLeadRequest true "New status"
// @Success      200 {object} util.APIResponse{data=model.Lead} "Lead updated"
// @Failure      400 {object} util.APIResponse "Invalid status"
// @Failure      404 {object} util.APIResponse "Lead not found"
// @Router       /admin/leads/{id} [patch]
func UpdateLead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateLeadRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	if !model.IsValidLeadStatus(req.Status) {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid status", Err: fmt.Errorf("invalid status %q", req.Status)})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var lead model.Lead
	if err := db.First(&lead, id).Error; err != nil {
		respondFindError(c, "Lead", err)
		return
	}
	from := lead.Status
	if err := db.Model(&lead).Update("status", req.Status).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update lead", Err: err})
		return
	}

	logAdminAction(c, "update_lead_status", map[string]interface{}{"lead_id": id, "from": from, "to": req.Status})
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Lead updated", Data: lead})
}

// DeleteLead godoc
// @Summary      Delete lead
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Lead ID"
// @Success      200 {object} util.APIResponse "Lead deleted"
// @Failure      404 {object} util.APIResponse "Lead not found"
// @Router       /admin/leads/{id} [delete]
func DeleteLead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	res := db.Delete(&model.Lead{}, id)
	if res.Error != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete lead", Err: res.Error})
		return
	}
	if res.RowsAffected == 0 {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Lead not found", Err: gorm.ErrRecordNotFound})
		return
	}

	logAdminAction(c, "delete_lead", map[string]interface{}{"lead_id": id})
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Lead deleted"})
}
