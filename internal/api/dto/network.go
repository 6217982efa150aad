package dto

type IntersectionRequest struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

type SegmentRequest struct {
	Origin      int64   `json:"origin"`
	Destination int64   `json:"destination"`
	Length      float64 `json:"length" validate:"gte=0"`
	Name        string  `json:"name" validate:"max=200"`
}

type NetworkRequest struct {
	Intersections []IntersectionRequest `json:"intersections" validate:"required,min=1,dive"`
	Segments      []SegmentRequest      `json:"segments" validate:"dive"`
}

type NetworkResponse struct {
	NetworkID     string `json:"network_id"`
	Intersections int    `json:"intersections"`
	Segments      int    `json:"segments"`
}
