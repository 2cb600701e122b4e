package contracts

// MapData is the client-side choropleth payload.
// Only strings, numbers, null, arrays and maps appear in its JSON form.
type MapData struct {
	Dates           []string              `json:"dates"`
	Provisional     []bool                `json:"provisional"`
	ProvisionalDays int                   `json:"provisional_days"`
	PerPopulation   float64               `json:"per_population"`
	Areas           map[string]AreaSeries `json:"areas"`
}

// AreaSeries is one geography code's rate series aligned with MapData.Dates.
// A nil entry encodes as JSON null (not reported).
type AreaSeries struct {
	Name       string     `json:"name"`
	Population float64    `json:"population"`
	Rate       []*float64 `json:"rate"`
}
