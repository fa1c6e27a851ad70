package dashboard

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/datawire/dlib/dlog"
	"github.com/dustin/go-humanize"
)

// Renderer serves the dashboard's HTML shell and static assets. No
// concrete implementation ships in this repository (spec §1); cmd/outpost
// wires NotImplementedRenderer so the binary still runs standalone.
type Renderer interface {
	Index(w http.ResponseWriter, r *http.Request)
	Asset(w http.ResponseWriter, r *http.Request, path string)
}

// NotImplementedRenderer answers every request with 501, so a binary built
// without a real dashboard frontend still serves the JSON API.
type NotImplementedRenderer struct{}

func (NotImplementedRenderer) Index(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "dashboard renderer not wired into this build", http.StatusNotImplemented)
}

func (NotImplementedRenderer) Asset(w http.ResponseWriter, r *http.Request, path string) {
	http.Error(w, "dashboard renderer not wired into this build", http.StatusNotImplemented)
}

// Server mounts the stats API itself and forwards everything else to the
// injected Renderer.
type Server struct {
	state    *AppState
	renderer Renderer
	mux      *http.ServeMux
}

func NewServer(state *AppState, renderer Renderer) *Server {
	s := &Server{state: state, renderer: renderer, mux: http.NewServeMux()}
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/assets/", s.handleAsset)
	s.mux.HandleFunc("/", s.handleIndex)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type statsResponse struct {
	BytesSent              uint64     `json:"bytes_sent"`
	BytesReceived          uint64     `json:"bytes_received"`
	BytesSentFormatted     string     `json:"bytes_sent_formatted"`
	BytesReceivedFormatted string     `json:"bytes_received_formatted"`
	PacketsSent            uint64     `json:"packets_sent"`
	PacketsReceived        uint64     `json:"packets_received"`
	Proxy                  *proxyView `json:"proxy,omitempty"`
}

type proxyView struct {
	PublicIP   string `json:"public_ip"`
	InstanceID string `json:"instance_id"`
	StackName  string `json:"stack_name"`
	Region     string `json:"region"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.state.Refresh()
	if err != nil {
		dlog.Warnf(r.Context(), "stats refresh failed: %v", err)
		http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := statsResponse{
		BytesSent:              snapshot.BytesSent,
		BytesReceived:          snapshot.BytesReceived,
		BytesSentFormatted:     humanize.Bytes(snapshot.BytesSent),
		BytesReceivedFormatted: humanize.Bytes(snapshot.BytesReceived),
		PacketsSent:            snapshot.PacketsSent,
		PacketsReceived:        snapshot.PacketsReceived,
	}
	if info, ok := s.state.ProxyInfo(); ok {
		resp.Proxy = &proxyView{
			PublicIP:   info.PublicIP,
			InstanceID: info.InstanceID,
			StackName:  info.StackName,
			Region:     info.Region,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		dlog.Errorf(context.Background(), "encoding stats response: %v", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderer.Index(w, r)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	s.renderer.Asset(w, r, r.URL.Path)
}
