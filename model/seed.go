package model

import (
	"encoding/json"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var seedLocations = []string{
	"Downtown", "Palm Jumeirah", "Dubai Marina", "Business Bay", "Jumeirah Village Circle",
	"Arabian Ranches", "Dubai Hills Estate",
}

var seedPropertyTypes = []string{"apartment", "villa", "townhouse", "penthouse", "studio"}

var seedAmenities = []string{"pool", "gym", "parking", "balcony", "security", "garden", "sea view"}

// SeedProperties inserts n generated listings. The faker seed makes the output repeatable.
func SeedProperties(db *gorm.DB, n int, seed int64) ([]Property, error) {
	faker := gofakeit.New(seed)
	props := make([]Property, 0, n)
	for i := 0; i < n; i++ {
		listing := ListingSale
		price := int64(faker.IntRange(800, 25000)) * 1000
		if faker.Bool() {
			listing = ListingRent
			price = int64(faker.IntRange(40, 600)) * 1000
		}
		ptype := faker.RandomString(seedPropertyTypes)
		location := faker.RandomString(seedLocations)
		bedrooms := faker.IntRange(1, 6)
		if ptype == "studio" {
			bedrooms = 0
		}

		amenities := make([]string, 0, 3)
		for j := 0; j < 3; j++ {
			amenities = append(amenities, faker.RandomString(seedAmenities))
		}
		amenitiesJSON, _ := json.Marshal(amenities)
		images, _ := json.Marshal([]string{faker.ImageURL(1200, 800), faker.ImageURL(1200, 800)})

		props = append(props, Property{
			Title:        fmt.Sprintf("%d-bed %s in %s", bedrooms, ptype, location),
			Description:  faker.Paragraph(2, 3, 12, " "),
			ListingType:  listing,
			PropertyType: ptype,
			Price:        price,
			Currency:     "AED",
			Location:     location,
			Address:      faker.Street(),
			Bedrooms:     bedrooms,
			Bathrooms:    faker.IntRange(1, bedrooms+1),
			AreaSqm:      float64(faker.IntRange(35, 900)),
			Images:       datatypes.JSON(images),
			Amenities:    datatypes.JSON(amenitiesJSON),
			Featured:     faker.Number(1, 5) == 1,
			Status:       PropertyAvailable,
			Latitude:     faker.Float64Range(24.9, 25.3),
			Longitude:    faker.Float64Range(55.0, 55.4),
		})
	}
	if len(props) == 0 {
		return props, nil
	}
	if err := db.Create(&props).Error; err != nil {
		return nil, fmt.Errorf("seed properties: %w", err)
	}
	return props, nil
}
