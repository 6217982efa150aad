package repositories

import (
	"encoding/json"
	"fmt"

	"tour-planning-service/internal/domain"
)

type segmentJSON struct {
	Name        string  `json:"name,omitempty"`
	Length      float64 `json:"length"`
	Origin      int64   `json:"origin"`
	Destination int64   `json:"destination"`
}

type trajectoryJSON struct {
	From     int64         `json:"from"`
	To       int64         `json:"to"`
	Weight   float64       `json:"weight"`
	Segments []segmentJSON `json:"segments"`
}

func encodeTrajectories(paths []domain.Path) ([]byte, error) {
	out := make([]trajectoryJSON, len(paths))
	for i, p := range paths {
		segs := make([]segmentJSON, len(p.Segments))
		for j, s := range p.Segments {
			segs[j] = segmentJSON{Name: s.Name, Length: s.Length, Origin: int64(s.Origin), Destination: int64(s.Destination)}
		}
		out[i] = trajectoryJSON{From: int64(p.From), To: int64(p.To), Weight: p.Weight, Segments: segs}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode trajectories: %w", err)
	}
	return b, nil
}

// decodeTrajectories rebuilds paths with detached segment values.
func decodeTrajectories(b []byte) ([]domain.Path, error) {
	var in []trajectoryJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, fmt.Errorf("decode trajectories: %w", err)
	}

	paths := make([]domain.Path, len(in))
	for i, t := range in {
		segs := make([]*domain.Segment, len(t.Segments))
		for j, s := range t.Segments {
			segs[j] = &domain.Segment{
				Name:        s.Name,
				Length:      s.Length,
				Origin:      domain.IntersectionID(s.Origin),
				Destination: domain.IntersectionID(s.Destination),
			}
		}
		paths[i] = domain.Path{From: domain.IntersectionID(t.From), To: domain.IntersectionID(t.To), Weight: t.Weight, Segments: segs}
	}
	return paths, nil
}
