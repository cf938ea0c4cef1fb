package endpoint

import (
	"fmt"

	"github.com/ariebrainware/realty-leads/model"
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LocationSummary aggregates the listings of one area.
type LocationSummary struct {
	Name          string `json:"name" example:"Palm Jumeirah"`
	Slug          string `json:"slug" example:"palm-jumeirah"`
	PropertyCount int64  `json:"property_count" example:"12"`
	MinPrice      int64  `json:"min_price"`
	MaxPrice      int64  `json:"max_price"`
	ForSale       int64  `json:"for_sale"`
	ForRent       int64  `json:"for_rent"`
}

// LocationDetail is a location page: the summary plus its listings.
type LocationDetail struct {
	LocationSummary
	Properties []model.Property `json:"properties"`
}

func locationSummaries(db *gorm.DB) *gorm.DB {
	return db.Model(&model.Property{}).
		Select(`MIN(location) AS name, location_slug AS slug, COUNT(*) AS property_count,
			MIN(price) AS min_price, MAX(price) AS max_price,
			SUM(CASE WHEN listing_type = ? THEN 1 ELSE 0 END) AS for_sale,
			SUM(CASE WHEN listing_type = ? THEN 1 ELSE 0 END) AS for_rent`, model.ListingSale, model.ListingRent).
		Where("location_slug <> ''").
		Group("location_slug")
}

// ListLocations godoc
// @Summary      List locations
// @Description  Every area with at least one listing, with counts and price range
// @Tags         Locations
// @Produce      json
// @Success      200 {object} util.APIResponse{data=[]LocationSummary} "Locations retrieved"
// @Router       /locations [get]
func ListLocations(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var locations []LocationSummary
	if err := locationSummaries(db).Order("property_count DESC").Order("slug").Scan(&locations).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve locations", Err: err})
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Locations retrieved", Data: locations})
}

// GetLocation godoc
// @Summary      Get location page
// @Tags         Locations
// @Produce      json
// @Param        id path string true "Location slug"
// @Success      200 {object} util.APIResponse{data=LocationDetail} "Location retrieved"
// @Failure      404 {object} util.APIResponse "Location not found"
// @Router       /locations/{id} [get]
func GetLocation(c *gin.Context) {
	slug := model.Slugify(c.Param("id"))
	if slug == "" {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid location", Err: fmt.Errorf("empty slug")})
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var summaries []LocationSummary
	if err := locationSummaries(db).Where("location_slug = ?", slug).Scan(&summaries).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve location", Err: err})
		return
	}
	if len(summaries) == 0 {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Location not found", Err: gorm.ErrRecordNotFound})
		return
	}

	page := parsePagination(c)
	var properties []model.Property
	if err := db.Where("location_slug = ?", slug).
		Order("featured DESC").Order("created_at DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&properties).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve properties", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Location retrieved",
		Data: LocationDetail{LocationSummary: summaries[0], Properties: properties},
	})
}
