package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"tour-planning-service/internal/api/dto"
	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/services"
)

type NetworkHandler struct {
	Workspace *services.Workspace

	// Prefix namespaces network ids, and with them cached path rows.
	Prefix string
}

// Load replaces the road network. The current tour, if any, is discarded.
func (h *NetworkHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req dto.NetworkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	network, err := buildNetwork(req)
	if err != nil {
		writeServiceError(w, r, "build network", err)
		return
	}

	id := networkID(h.Prefix, req)
	if err := h.Workspace.LoadNetwork(r.Context(), network, id); err != nil {
		writeServiceError(w, r, "load network", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.NetworkResponse{
		NetworkID:     id,
		Intersections: network.Len(),
		Segments:      network.Segments(),
	})
}

func buildNetwork(req dto.NetworkRequest) (*domain.RoadNetwork, error) {
	network := domain.NewRoadNetwork()
	for _, in := range req.Intersections {
		loc := domain.Coordinates{Lon: in.Lon, Lat: in.Lat}
		if _, err := network.AddIntersection(domain.IntersectionID(in.ID), loc); err != nil {
			return nil, err
		}
	}
	for _, s := range req.Segments {
		_, err := network.AddSegment(domain.IntersectionID(s.Origin), domain.IntersectionID(s.Destination), s.Length, s.Name)
		if err != nil {
			return nil, err
		}
	}
	return network, nil
}

// networkID derives a stable id from the network content so that identical
// uploads share cached shortest paths.
func networkID(prefix string, req dto.NetworkRequest) string {
	b, _ := json.Marshal(req)
	sum := sha256.Sum256(b)
	id := hex.EncodeToString(sum[:8])
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s-%s", prefix, id)
}
