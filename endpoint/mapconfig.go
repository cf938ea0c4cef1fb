package endpoint

import (
	"github.com/ariebrainware/realty-leads/util"
	"github.com/gin-gonic/gin"
)

// MapConfig godoc
// @Summary      Map configuration
// @Description  Public map token for the property and location maps. Empty when maps are disabled.
// @Tags         Config
// @Produce      json
// @Success      200 {object} util.APIResponse "Map configuration"
// @Router       /config/map [get]
func MapConfig(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		util.CallSuccessOK(c, util.APISuccessParams{
			Msg:  "Map configuration",
			Data: gin.H{"mapbox_token": token, "enabled": token != ""},
		})
	}
}
