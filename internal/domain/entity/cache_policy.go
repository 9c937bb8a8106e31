package entity

import "time"

// CacheVariation is the flag value that controls preparation caching, in
// seconds per kind. Zero disables caching for that kind.
type CacheVariation struct {
	Brand          int `json:"brand" yaml:"brand"`
	Configurations int `json:"configurations" yaml:"configurations"`
	Drafts         int `json:"drafts" yaml:"drafts"`
	Notification   int `json:"notification" yaml:"notification"`
}

// CachePolicy holds the cache TTL of each kind for one request.
type CachePolicy struct {
	Brand          time.Duration
	Configurations time.Duration
	Drafts         time.Duration
	Notification   time.Duration
}

// Policy converts the variation to a CachePolicy. Negative values disable
// caching.
func (v CacheVariation) Policy() CachePolicy {
	return CachePolicy{
		Brand:          seconds(v.Brand),
		Configurations: seconds(v.Configurations),
		Drafts:         seconds(v.Drafts),
		Notification:   seconds(v.Notification),
	}
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
