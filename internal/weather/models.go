package weather

import (
	"sort"
	"time"
)

// Location is a named point of interest. Longitudes use the 0-360 convention
// of the global model grids.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// DefaultLocation is returned for unknown location names.
const DefaultLocation = "Houston"

var locations = map[string][2]float64{
	"Houston":        {29.75, 264.75},
	"New Orleans":    {30.0, 270.0},
	"San Francisco":  {37.75, 237.5},
	"San Jose":       {37.5, 238.0},
	"Tampa":          {28.0, 277.5},
	"Paris":          {48.75, 2.25},
	"London":         {51.5, 0.0},
	"Munich":         {48.0, 11.5},
	"Athens":         {38.0, 23.75},
	"Cairo":          {30.0, 31.25},
	"Nairobi":        {-1.25, 36.75},
	"Cape Town":      {-34.0, 18.5},
	"Caracas":        {10.5, 293.0},
	"Rio de Janeiro": {-23.0, 316.75},
	"Lima":           {-12.0, 283.0},
	"Bangkok":        {13.75, 100.5},
	"Taipei":         {25.0, 121.5},
	"Tokyo":          {35.75, 139.75},
	"Manila":         {14.5, 121.0},
	"Vientiane":      {18.0, 102.5},
	"Melbourne":      {-37.75, 145.0},
	"Wellington":     {-41.25, 174.75},
	"Suva":           {-18.25, 178.5},
}

// Locations returns the known location names in alphabetical order.
func Locations() []string {
	names := make([]string, 0, len(locations))
	for name := range locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupLocation resolves a location by name. Unknown names resolve to
// DefaultLocation with ok set to false, so callers can log the fallback.
func LookupLocation(name string) (loc Location, ok bool) {
	ll, ok := locations[name]
	if !ok {
		name = DefaultLocation
		ll = locations[name]
	}
	return Location{Name: name, Lat: ll[0], Lon: ll[1]}, ok
}

// Cyclone is a tropical cyclone case study with a recommended forecast start
// and the location to inspect.
type Cyclone struct {
	Name     string    `json:"name"`
	Start    time.Time `json:"start"`
	Location string    `json:"location"`
}

var cyclones = []Cyclone{
	{Name: "Harvey", Start: utc(2017, 8, 24, 12), Location: "Houston"},
	{Name: "Ida", Start: utc(2021, 8, 28, 12), Location: "New Orleans"},
	{Name: "Chanthu", Start: utc(2021, 9, 12, 0), Location: "Taipei"},
	{Name: "Ian", Start: utc(2022, 9, 26, 12), Location: "Tampa"},
	{Name: "Noru", Start: utc(2022, 9, 26, 12), Location: "Vientiane"},
	{Name: "Beryl", Start: utc(2024, 7, 4, 0), Location: "Houston"},
	{Name: "Geemi", Start: utc(2024, 7, 23, 0), Location: "Taipei"},
	{Name: "Helene", Start: utc(2024, 9, 25, 0), Location: "Tampa"},
	{Name: "Kong-Rey", Start: utc(2024, 10, 30, 0), Location: "Taipei"},
}

// Cyclones returns the case-study presets in chronological order.
func Cyclones() []Cyclone {
	return append([]Cyclone(nil), cyclones...)
}

// LookupCyclone finds a preset by name.
func LookupCyclone(name string) (Cyclone, bool) {
	for _, c := range cyclones {
		if c.Name == name {
			return c, true
		}
	}
	return Cyclone{}, false
}

func utc(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}
