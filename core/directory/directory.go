// Package directory holds the contract types shared by provider directory
// implementations.
package directory

// Provider is one service provider returned by a directory search. Results
// are returned in search-rank order.
type Provider struct {
	Name       string
	Phone      string
	Rating     float64
	Address    string
	DistanceKM float64
}

// Query describes one directory search. RadiusKM grows when a search is
// broadened after an empty result or a rejected shortlist.
type Query struct {
	Category string
	Location string
	RadiusKM float64
}
