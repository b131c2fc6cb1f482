package memory

import "context"

type seedLocation struct {
	name     string
	address  string
	staff    []string
	services []seedService
}

type seedService struct {
	name  string
	price float64
}

var defaultSeed = []seedLocation{
	{
		name:    "Hair Studio",
		address: "Main street 20-45, zone 3",
		staff:   []string{"Mely"},
		services: []seedService{
			{name: "Hair wash", price: 50},
			{name: "Women's haircut", price: 50},
			{name: "Men's haircut", price: 40},
			{name: "Wash, cut and straighten", price: 100},
		},
	},
	{
		name:    "Nail Studio",
		address: "Main street 20-45, zone 3",
		staff:   []string{"Angelica", "Yoli"},
		services: []seedService{
			{name: "Gel manicure", price: 80},
			{name: "Gel pedicure", price: 120},
			{name: "Brow shaping", price: 100},
			{name: "Lash curl", price: 100},
			{name: "Short acrylic nails", price: 150},
		},
	},
}

// Seed fills an empty store with the default locations, their staff and their
// service catalog. It is a no-op when any location already exists.
func Seed(ctx context.Context, s *Store) error {
	locs, err := s.ListLocations(ctx)
	if err != nil {
		return err
	}
	if len(locs) > 0 {
		return nil
	}
	for _, sl := range defaultSeed {
		loc := s.AddLocation(sl.name, sl.address)
		for _, name := range sl.staff {
			if _, err := s.AddStaff(ctx, loc.ID, name); err != nil {
				return err
			}
		}
		for _, svc := range sl.services {
			s.AddService(loc.ID, svc.name, svc.price)
		}
	}
	return nil
}
