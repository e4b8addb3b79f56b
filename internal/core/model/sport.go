package model

type SportObject struct {
	ObjectID                     int64        `json:"objectId"`
	ObjectName                   string       `json:"objectName"`
	ObjectAddress                string       `json:"objectAddress"`
	ObjectPoint                  LatLng       `json:"objectPoint"`
	DepartmentalOrganizationID   int64        `json:"departmentalOrganizationId"`
	DepartmentalOrganizationName string       `json:"departmentalOrganizationName"`
	Availability                 Availability `json:"availability"`
	ObjectSumSquare              float64      `json:"objectSumSquare"`
}

type SportArea struct {
	ObjectID                     int64        `json:"objectId"`
	ObjectName                   string       `json:"objectName"`
	SportAreaAddress             string       `json:"sportAreaAddress"`
	ObjectPoint                  LatLng       `json:"objectPoint"`
	DepartmentalOrganizationID   int64        `json:"departmentalOrganizationId"`
	DepartmentalOrganizationName string       `json:"departmentalOrganizationName"`
	SportsAreaID                 int64        `json:"sportsAreaId"`
	SportsAreaName               string       `json:"sportsAreaName"`
	SportsAreaType               string       `json:"sportsAreaType"`
	SportsAreaSquare             float64      `json:"sportsAreaSquare"`
	Availability                 Availability `json:"availability"`
	SportKind                    string       `json:"sportKind"`
}

type SportAreaType struct {
	Type  string   `json:"type"`
	Names []string `json:"names"`
}

// AreaTypes groups area names by area type, in first-seen order.
func AreaTypes(areas []SportArea) []SportAreaType {
	var out []SportAreaType
	idx := map[string]int{}
	for _, a := range areas {
		i, ok := idx[a.SportsAreaType]
		if !ok {
			i = len(out)
			idx[a.SportsAreaType] = i
			out = append(out, SportAreaType{Type: a.SportsAreaType})
		}
		out[i].Names = append(out[i].Names, a.SportsAreaName)
	}
	return out
}

// SportKinds returns the distinct sport kinds, in first-seen order.
func SportKinds(areas []SportArea) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, a := range areas {
		if _, ok := seen[a.SportKind]; ok {
			continue
		}
		seen[a.SportKind] = struct{}{}
		out = append(out, a.SportKind)
	}
	return out
}

type PolygonAnalytics struct {
	AreasSquare                float64  `json:"areasSquare"`
	AreasSquarePer100k         float64  `json:"areasSquarePer100k"`
	AreasAmount                float64  `json:"areasAmount"`
	AreasAmountPer100k         float64  `json:"areasAmountPer100k"`
	SportsAmount               float64  `json:"sportsAmount"`
	SportsAmountPer100k        float64  `json:"sportsAmountPer100k"`
	SportsKinds                []string `json:"sportsKinds"`
	AreaTypes                  []string `json:"areaTypes"`
	AreaTypesAmount            float64  `json:"areaTypesAmount"`
	SportsObjectsAmount        float64  `json:"sportsObjectsAmount"`
	SportsObjectsAmountPer100k float64  `json:"sportsObjectsAmountPer100k"`
	Density                    float64  `json:"density"`
}

type Park struct {
	CommonName     string `json:"commonName"`
	AdmArea        string `json:"admArea"`
	District       string `json:"district"`
	Location       string `json:"location"`
	HasSportground bool   `json:"hasSportground"`
	ObjectPoint    LatLng `json:"objectPoint"`
}

type PollutionPoint struct {
	AdmArea     string `json:"admArea"`
	District    string `json:"district"`
	Location    string `json:"location"`
	IsPolluted  bool   `json:"isPolluted"`
	ObjectPoint LatLng `json:"objectPoint"`
	Results     string `json:"results"`
}

type SubwayPoint struct {
	Name                string  `json:"name"`
	LineColor           string  `json:"lineColor"`
	Point               LatLng  `json:"point"`
	DistanceFromPolygon float64 `json:"distanceFromPolygon"`
}

type FullPolygonAnalytics struct {
	BasicAnalytics     PolygonAnalytics `json:"basicAnalytics"`
	ParkAnalytics      ParkAnalytics    `json:"parkAnalytics"`
	PollutionAnalytics PollutionSummary `json:"pollutionAnalytics"`
	SubwayAnalytics    SubwaySummary    `json:"subwayAnalytics"`
	Mark               float64          `json:"mark"`
}

type ParkAnalytics struct {
	Parks []Park `json:"parks"`
}

type PollutionSummary struct {
	Points []PollutionPoint `json:"points"`
}

type SubwaySummary struct {
	Points []SubwayPoint `json:"points"`
}

// SavedPolygon is one record of the saved-polygon list.
type SavedPolygon struct {
	Geometry  []LatLng          `json:"geometry"`
	Name      string            `json:"name"`
	Analytics *PolygonAnalytics `json:"analytics"`
	Areas     []SportArea       `json:"areas"`
}

// FilterOptions holds the variant lists offered by the filter bar.
type FilterOptions struct {
	ObjectNames        []string            `json:"objectNames"`
	SportKinds         []string            `json:"sportKinds"`
	SportsAreaTypes    []string            `json:"sportsAreaTypes"`
	SportsAreaNames    []string            `json:"sportsAreaNames"`
	OrganizationNames  []string            `json:"departmentalOrganizationNames"`
	AvailabilityLabels []AvailabilityLabel `json:"availabilities"`
}

type AvailabilityLabel struct {
	Index Availability `json:"index"`
	Name  string       `json:"name"`
}

// AvailabilityLabels is static; the backend has no endpoint for it.
func AvailabilityLabels() []AvailabilityLabel {
	return []AvailabilityLabel{
		{Index: AvailabilityCity, Name: "City"},
		{Index: AvailabilityRegion, Name: "Region"},
		{Index: AvailabilityDistrict, Name: "District"},
		{Index: AvailabilityWalkingDistance, Name: "Walking distance"},
	}
}
