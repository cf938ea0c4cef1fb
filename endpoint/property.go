package endpoint

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PropertyRequest is the body of POST /admin/properties. Every field is optional on PATCH.
type PropertyRequest struct {
	Title        *string  `json:"title" example:"Sea-view apartment"`
	Description  *string  `json:"description"`
	ListingType  *string  `json:"listing_type" example:"sale"`
	PropertyType *string  `json:"property_type" example:"apartment"`
	Price        *int64   `json:"price" example:"12500000"`
	Currency     *string  `json:"currency" example:"USD"`
	Location     *string  `json:"location" example:"Palm Jumeirah"`
	Address      *string  `json:"address"`
	Bedrooms     *int     `json:"bedrooms" example:"3"`
	Bathrooms    *int     `json:"bathrooms" example:"2"`
	AreaSqm      *float64 `json:"area_sqm" example:"145.5"`
	Images       []string `json:"images"`
	Amenities    []string `json:"amenities"`
	Featured     *bool    `json:"featured"`
	Status       *string  `json:"status" example:"available"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

func (r PropertyRequest) textFields() map[string]string {
	fields := map[string]string{}
	add := func(name string, v *string) {
		if v != nil {
			fields[name] = *v
		}
	}
	add("title", r.Title)
	add("description", r.Description)
	add("property_type", r.PropertyType)
	add("location", r.Location)
	add("address", r.Address)
	for i, img := range r.Images {
		fields[fmt.Sprintf("images[%d]", i)] = img
	}
	for i, a := range r.Amenities {
		fields[fmt.Sprintf("amenities[%d]", i)] = a
	}
	return fields
}

// apply copies the set fields onto p and checks the enumerations.
func (r PropertyRequest) apply(p *model.Property) error {
	if r.Title != nil {
		p.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		p.Description = strings.TrimSpace(*r.Description)
	}
	if r.ListingType != nil {
		if !model.IsValidListingType(*r.ListingType) {
			return fmt.Errorf("invalid listing_type %q", *r.ListingType)
		}
		p.ListingType = *r.ListingType
	}
	if r.PropertyType != nil {
		p.PropertyType = strings.ToLower(strings.TrimSpace(*r.PropertyType))
	}
	if r.Price != nil {
		if *r.Price < 0 {
			return fmt.Errorf("price must not be negative")
		}
		p.Price = *r.Price
	}
	if r.Currency != nil {
		p.Currency = strings.ToUpper(strings.TrimSpace(*r.Currency))
	}
	if r.Location != nil {
		p.Location = strings.TrimSpace(*r.Location)
	}
	if r.Address != nil {
		p.Address = strings.TrimSpace(*r.Address)
	}
	if r.Bedrooms != nil {
		p.Bedrooms = *r.Bedrooms
	}
	if r.Bathrooms != nil {
		p.Bathrooms = *r.Bathrooms
	}
	if r.AreaSqm != nil {
		p.AreaSqm = *r.AreaSqm
	}
	if r.Images != nil {
		b, _ := json.Marshal(r.Images)
		p.Images = datatypes.JSON(b)
	}
	if r.Amenities != nil {
		b, _ := json.Marshal(r.Amenities)
		p.Amenities = datatypes.JSON(b)
	}
	if r.Featured != nil {
		p.Featured = *r.Featured
	}
	if r.Status != nil {
		if !model.IsValidPropertyStatus(*r.Status) {
			return fmt.Errorf("invalid status %q", *r.Status)
		}
		p.Status = *r.Status
	}
	if r.Latitude != nil {
		p.Latitude = *r.Latitude
	}
	if r.Longitude != nil {
		p.Longitude = *r.Longitude
	}
	return nil
}

// propertyFilter narrows a property query from the request's query string.
func propertyFilter(c *gin.Context, q *gorm.DB) (*gorm.DB, error) {
	if v := c.Query("listing_type"); v != "" {
		if !model.IsValidListingType(v) {
			return nil, fmt.Errorf("invalid listing_type %q", v)
		}
		q = q.Where("listing_type = ?", v)
	}
	if v := c.Query("property_type"); v != "" {
		q = q.Where("property_type = ?", strings.ToLower(v))
	}
	if v := c.Query("location"); v != "" {
		q = q.Where("location_slug = ?", model.Slugify(v))
	}
	if v := c.Query("status"); v != "" {
		if !model.IsValidPropertyStatus(v) {
			return nil, fmt.Errorf("invalid status %q", v)
		}
		q = q.Where("status = ?", v)
	}
	for _, f := range []struct{ param, cond string }{
		{"min_price", "price >= ?"},
		{"max_price", "price <= ?"},
		{"bedrooms", "bedrooms >= ?"},
	} {
		raw := c.Query(f.param)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s %q", f.param, raw)
		}
		q = q.Where(f.cond, n)
	}
	if v := c.Query("featured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid featured %q", v)
		}
		q = q.Where("featured = ?", b)
	}
	if v := strings.TrimSpace(c.Query("keyword")); v != "" {
		like := "%" + strings.ToLower(v) + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(location) LIKE ?)", like, like, like)
	}
	return q, nil
}

// ListProperties godoc
// @Summary      List properties
// @Description  Search listings with optional filters and limit/offset pagination
// @Tags         Properties
// @Produce      json
// @Param        listing_type  query string false "sale or rent"
// @Param        property_type query string false "apartment, villa, ..."
// @Param        location      query string false "Location name or slug"
// @Param        min_price     query int    false "Minimum price"
// @Param        max_price     query int    false "Maximum price"
// @Param        bedrooms      query int    false "Minimum bedrooms"
// @Param        featured      query bool   false "Only featured listings"
// @Param        keyword       query string false "Free-text search"
// @Param        limit         query int    false "Page size (max 100)"
// @Param        offset        query int    false "Offset"
// @Success      200 {object} util.APIResponse{data=listResponse} "Properties retrieved"
// @Failure      400 {object} util.APIResponse "Invalid filter"
// @Router       /properties [get]
func ListProperties(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	q, err := propertyFilter(c, db.Model(&model.Property{}))
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid filter", Err: err})
		return
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to count properties", Err: err})
		return
	}

	page := parsePagination(c)
	var properties []model.Property
	if err := q.Session(&gorm.Session{}).Order("featured DESC").Order("created_at DESC").
		Limit(page.Limit).Offset(page.Offset).Find(&properties).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve properties", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Properties retrieved",
		Data: listResponse{
			Total:        total,
			TotalFetched: len(properties),
			Limit:        page.Limit,
			Offset:       page.Offset,
			Items:        properties,
		},
	})
}

// GetProperty godoc
// @Summary      Get property
// @Tags         Properties
// @Produce      json
// @Param        id path int true "Property ID"
// @Success      200 {object} util.APIResponse{data=model.Property} "Property retrieved"
// @Failure      404 {object} util.APIResponse "Property not found"
// @Router       /property/{id} [get]
func GetProperty(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var property model.Property
	if err := db.First(&property, id).Error; err != nil {
		respondFindError(c, "Property", err)
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Property retrieved", Data: property})
}

// CreateProperty godoc
// @Summary      Create property
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body PropertyRequest true "Property"
// @Success      201 {object} util.APIResponse{data=model.Property} "Property created"
// @Failure      400 {object} util.APIResponse "Invalid request payload"
// @Failure      403 {object} util.APIResponse "Admin only"
// @Router       /admin/properties [post]
func CreateProperty(c *gin.Context) {
	var req PropertyRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	if req.Title == nil || req.ListingType == nil || req.Price == nil || req.Location == nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "title, listing_type, price and location are required",
			Err: fmt.Errorf("missing required field"),
		})
		return
	}
	if _, ok := validateOrRespond(c, req.textFields(), util.ValidationOptions{MaxLength: 5000}); !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	property := model.Property{Currency: "USD"}
	if err := req.apply(&property); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid request payload", Err: err})
		return
	}
	if err := db.Create(&property).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create property", Err: err})
		return
	}

	logAdminAction(c, "create_property", map[string]interface{}{"property_id": property.ID})
	util.CallCreated(c, util.APISuccessParams{Msg: "Property created", Data: property})
}

// UpdateProperty godoc
// @Summary      Update property
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Property ID"
// @Param        request body PropertyRequest true "Fields to change"
// @Success      200 {object} util.APIResponse{data=model.Property} "Property updated"
// @Failure      404 {object} util.APIResponse "Property not found"
// @Router       /admin/properties/{id} [patch]
func UpdateProperty(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req PropertyRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}
	if _, ok := validateOrRespond(c, req.textFields(), util.ValidationOptions{MaxLength: 5000}); !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var property model.Property
	if err := db.First(&property, id).Error; err != nil {
		respondFindError(c, "Property", err)
		return
	}
	if err := req.apply(&property); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid request payload", Err: err})
		return
	}
	if err := db.Save(&property).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update property", Err: err})
		return
	}

	logAdminAction(c, "update_property", map[string]interface{}{"property_id": property.ID})
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Property updated", Data: property})
}

// DeleteProperty godoc
// @Summary      Delete property
// @Tags         Admin
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Property ID"
// @Success      200 {object} util.APIResponse "Property deleted"
// @Failure      404 {object} util.APIResponse "Property not found"
// @Router       /admin/properties/{id} [delete]
func DeleteProperty(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	res := db.Delete(&model.Property{}, id)
	if res.Error != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete property", Err: res.Error})
		return
	}
	if res.RowsAffected == 0 {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Property not found", Err: gorm.ErrRecordNotFound})
		return
	}

	logAdminAction(c, "delete_property", map[string]interface{}{"property_id": id})
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Property deleted"})
}
