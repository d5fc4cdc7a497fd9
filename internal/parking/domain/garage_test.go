package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGaragePricingBands(t *testing.T) {
	g := Garage{
		ID:           "garage-1",
		Name:         "Central",
		Location:     "Downtown",
		SlotTypes:    []string{"standard", "ev"},
		PricePerHour: 60,
	}

	p := g.Pricing()

	assert.Equal(t, 60.0, p.PricingDetails.Standard)
	assert.Equal(t, 210.0, p.PricingDetails.Discounts["6-hours"])
	assert.Equal(t, 720.0, p.PricingDetails.Discounts["daily"])
	assert.Equal(t, "garage-1", p.GarageID)
	assert.Equal(t, []string{"standard", "ev"}, p.SlotTypes)
}
