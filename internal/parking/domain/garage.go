package domain

// Garage is read-mostly reference data: it supplies the hourly rate and
// the slot types a garage offers. Garage CRUD lives in another service.
type Garage struct {
	ID           string
	Name         string
	Location     string
	SlotTypes    []string
	PricePerHour float64
}

type PricingDetails struct {
	Standard  float64            `json:"standard"`
	Discounts map[string]float64 `json:"discounts"`
}

type GaragePricing struct {
	GarageID       string         `json:"garageId"`
	Name           string         `json:"name"`
	Location       string         `json:"location"`
	SlotTypes      []string       `json:"slotTypes"`
	PricePerHour   float64        `json:"pricePerHour"`
	PricingDetails PricingDetails `json:"pricingDetails"`
}

// Pricing synthesizes the tiered bands from the base rate: six hours for
// 3.5x the hourly price, a full day for 12x.
func (g Garage) Pricing() GaragePricing {
	return GaragePricing{
		GarageID:     g.ID,
		Name:         g.Name,
		Location:     g.Location,
		SlotTypes:    g.SlotTypes,
		PricePerHour: g.PricePerHour,
		PricingDetails: PricingDetails{
			Standard: g.PricePerHour,
			Discounts: map[string]float64{
				"6-hours": g.PricePerHour * 3.5,
				"daily":   g.PricePerHour * 12,
			},
		},
	}
}
