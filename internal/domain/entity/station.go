// Package entity contains the core business objects of the project.
package entity

import "github.com/paulmach/orb"

// Station is a fuel station from the catalog. It is immutable after load.
type Station struct {
	ID          string  // Stable identifier, taken from the dataset or derived from the row.
	Name        string  // Truck stop brand or name.
	Address     string  // Street address as published in the dataset.
	City        string  // City the station is located in.
	State       string  // Two-letter state code.
	Lat         float64 // The geographic latitude.
	Lon         float64 // The geographic longitude.
	RetailPrice float64 // Retail price per gallon in USD.
}

// Point returns the station location as an orb point (lon, lat).
func (s Station) Point() orb.Point {
	return orb.Point{s.Lon, s.Lat}
}
