package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/halomqtt/internal/device"
	"github.com/nerrad567/halomqtt/internal/mesh"
)

// snapshotTimeout bounds a coordinator snapshot taken for a request.
const snapshotTimeout = 2 * time.Second

// LightView is one configured light as reported by /api/v1/devices.
type LightView struct {
	Tag   string               `json:"tag"`
	DID   uint32               `json:"did"`
	Name  string               `json:"name"`
	MAC   string               `json:"mac,omitempty"`
	Model string               `json:"model,omitempty"`
	State *device.LightState   `json:"state,omitempty"`
	Light *device.StatePayload `json:"light,omitempty"`
}

// DevicesResponse is the /api/v1/devices body.
type DevicesResponse struct {
	Location uint32             `json:"location"`
	Lights   []LightView        `json:"lights"`
	Entries  []mesh.EntryStatus `json:"entries"`
	Count    int                `json:"count"`
}

// handleListDevices returns the configured lights with their stored state and
// the mesh connection entries.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()

	entries, err := s.mesh.Snapshot(ctx)
	if err != nil {
		writeUnavailable(w, "mesh status unavailable")
		return
	}
	if entries == nil {
		entries = []mesh.EntryStatus{}
	}

	lights := s.lightViews()
	resp := DevicesResponse{
		Lights:  lights,
		Entries: entries,
		Count:   len(lights),
	}
	if s.loc != nil {
		resp.Location = s.loc.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

// lightViews lists the primary location's fixtures in configuration order.
func (s *Server) lightViews() []LightView {
	views := []LightView{}
	if s.loc == nil {
		return views
	}

	states := s.states.Snapshot()
	for _, d := range s.loc.Devices {
		tag := s.loc.Tag(d.DID)
		v := LightView{
			Tag:   tag,
			DID:   d.DID,
			Name:  d.Name,
			MAC:   d.MAC,
			Model: d.PID,
		}
		if st, ok := states[tag]; ok {
			payload := st.Payload()
			v.State = &st
			v.Light = &payload
		}
		views = append(views, v)
	}
	return views
}

// knownTag reports whether tag names a configured light. Without a location
// every tag is accepted.
func (s *Server) knownTag(tag string) bool {
	if s.loc == nil {
		return true
	}
	for _, d := range s.loc.Devices {
		if s.loc.Tag(d.DID) == tag {
			return true
		}
	}
	return false
}
