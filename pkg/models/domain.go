package models

// Domain names one of the cached datasets.
type Domain string

const (
	DomainPrices Domain = "prices"
	DomainWorlds Domain = "worlds"
)

// Domains lists every cached dataset in a stable order.
var Domains = []Domain{DomainPrices, DomainWorlds}

// ParseDomain returns the Domain for name and whether it is known.
func ParseDomain(name string) (Domain, bool) {
	switch Domain(name) {
	case DomainPrices, DomainWorlds:
		return Domain(name), true
	}
	return "", false
}
