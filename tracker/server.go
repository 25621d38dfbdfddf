package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/devskill-org/solar-tracker/sundata"
	"github.com/devskill-org/solar-tracker/utils"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// WebServer provides HTTP endpoints for health checking, sun data, and web UI
type WebServer struct {
	tracker   *Tracker
	server    *http.Server
	router    *mux.Router
	port      int
	startTime time.Time
	upgrader  websocket.Upgrader
	clients   sync.Map
	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Tracker   TrackerHealth `json:"tracker"`
	System    SystemHealth  `json:"system"`
}

// TrackerHealth represents tracker-specific health information
type TrackerHealth struct {
	IsRunning      bool       `json:"is_running"`
	Mode           Mode       `json:"mode"`
	LastSample     *time.Time `json:"last_sample,omitempty"`
	SampleInterval string     `json:"sample_interval"`
	Latitude       float64    `json:"latitude"`
	Longitude      float64    `json:"longitude"`
}

// SystemHealth represents system-level health information
type SystemHealth struct {
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines,omitempty"`
}

// SunResponse is a sundata.Result with NaN encoded as null.
type SunResponse struct {
	Time             string   `json:"time,omitempty"`
	DayOfYear        int      `json:"day_of_year"`
	ElevationDeg     *float64 `json:"elevation_deg"`
	AzimuthDeg       *float64 `json:"azimuth_deg"`
	DeclinationDeg   *float64 `json:"declination_deg"`
	HourAngleDeg     *float64 `json:"hour_angle_deg"`
	EquationOfTime   *float64 `json:"equation_of_time_min"`
	LocalSolarTime   *float64 `json:"local_solar_time_hours"`
	Sunrise          *float64 `json:"sunrise"`
	Sunset           *float64 `json:"sunset"`
	SunriseHHMM      string   `json:"sunrise_hhmm"`
	SunsetHHMM       string   `json:"sunset_hhmm"`
	SolarNoonHHMM    string   `json:"solar_noon_hhmm"`
	DayLengthHours   *float64 `json:"day_length_hours"`
	IsDaylight       bool     `json:"is_daylight"`
	Mode             Mode     `json:"mode,omitempty"`
	RefDeviationEl   *float64 `json:"reference_deviation_elevation,omitempty"`
	RefDeviationAz   *float64 `json:"reference_deviation_azimuth,omitempty"`
	ReferenceChecked string   `json:"reference_checked_at,omitempty"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func newSunResponse(r sundata.Result, ts time.Time) SunResponse {
	resp := SunResponse{
		DayOfYear:      r.DayOfYear,
		ElevationDeg:   finite(r.ElevationDeg),
		AzimuthDeg:     finite(r.AzimuthDeg),
		DeclinationDeg: finite(r.DeclinationDeg),
		HourAngleDeg:   finite(r.HourAngleDeg),
		EquationOfTime: finite(r.EquationOfTime),
		LocalSolarTime: finite(r.LocalSolarTime),
		Sunrise:        finite(r.SunriseTime()),
		Sunset:         finite(r.SunsetTime()),
		SunriseHHMM:    utils.FormatDecimalHours(r.SunriseTime()),
		SunsetHHMM:     utils.FormatDecimalHours(r.SunsetTime()),
		SolarNoonHHMM:  utils.FormatDecimalHours(r.SolarNoon()),
		DayLengthHours: finite(r.DayLength()),
		IsDaylight:     r.IsDaylight(),
	}
	if !ts.IsZero() {
		resp.Time = ts.Format(time.RFC3339)
	}
	return resp
}

// NewWebServer creates a new web server with API routes and static file serving
func NewWebServer(tracker *Tracker, port int) *WebServer {
	if port <= 0 {
		return nil // Web server disabled
	}

	router := mux.NewRouter()
	ws := &WebServer{
		tracker:   tracker,
		router:    router,
		port:      port,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/ready", ws.readinessHandler).Methods(http.MethodGet)
	api.HandleFunc("/status", ws.statusHandler).Methods(http.MethodGet)
	api.HandleFunc("/sun", ws.sunHandler).Methods(http.MethodGet)
	api.HandleFunc("/sun/day", ws.sunDayHandler).Methods(http.MethodGet)
	api.HandleFunc("/ws", ws.wsHandler).Methods(http.MethodGet)

	// Serve static files from web folder
	router.PathPrefix("/").Handler(http.FileServer(http.Dir("./web/dist")))

	return ws
}

// Start starts the web server
func (ws *WebServer) Start() error {
	if ws == nil {
		return nil
	}

	go ws.handleBroadcasts()
	go ws.broadcastStatus()

	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.tracker.logger.Printf("Web server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully stops the web server
func (ws *WebServer) Stop(ctx context.Context) error {
	if ws == nil {
		return nil
	}

	ws.closeOnce.Do(func() { close(ws.done) })

	ws.clients.Range(func(key, value any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})

	return ws.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (ws *WebServer) buildHealth() HealthResponse {
	status := ws.tracker.GetStatus()
	config := ws.tracker.GetConfig()

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
		Tracker: TrackerHealth{
			IsRunning:      status.IsRunning,
			Mode:           status.Mode,
			SampleInterval: config.SampleInterval.String(),
			Latitude:       config.Latitude,
			Longitude:      config.Longitude,
		},
		System: SystemHealth{
			Uptime:     formatUptime(time.Since(ws.startTime)),
			Goroutines: runtime.NumGoroutine(),
		},
	}
	if status.HasSample {
		last := status.LastSampleAt
		health.Tracker.LastSample = &last
	}
	if !status.IsRunning {
		health.Status = "unhealthy"
	}
	return health
}

// healthHandler handles the /api/health endpoint
func (ws *WebServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := ws.buildHealth()
	code := http.StatusOK
	if health.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

// readinessHandler handles the /api/ready endpoint. Ready means running with
// at least one sample taken.
func (ws *WebServer) readinessHandler(w http.ResponseWriter, r *http.Request) {
	status := ws.tracker.GetStatus()
	ready := status.IsRunning && status.HasSample

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"ready":     ready,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// statusHandler handles the /api/status endpoint (detailed status)
func (ws *WebServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ws.buildStatus())
}

func (ws *WebServer) buildStatus() map[string]any {
	status := ws.tracker.GetStatus()
	dev := ws.tracker.GetReferenceDeviation()

	response := map[string]any{
		"tracker_status": status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if !dev.CheckedAt.IsZero() {
		response["reference"] = map[string]any{
			"elevation_deviation": finite(dev.ElevationDeg),
			"azimuth_deviation":   finite(dev.AzimuthDeg),
			"checked_at":          dev.CheckedAt.UTC().Format(time.RFC3339),
		}
	}
	if forecast, ok := ws.tracker.weatherCache.Get(); ok {
		weather := map[string]any{}
		current := forecast.GetCurrentWeather()
		if gust := current.GetWindGust(); gust != nil {
			weather["wind_gust"] = *gust
		}
		if symbol := current.GetSymbolCode(); symbol != nil {
			weather["symbol"] = *symbol
			weather["thunder"] = symbol.HasThunder()
		}
		response["weather"] = weather
	}
	return response
}

func (ws *WebServer) latestSun() (SunResponse, bool) {
	result, ok := ws.tracker.GetLatest()
	if !ok {
		return SunResponse{}, false
	}
	status := ws.tracker.GetStatus()
	dev := ws.tracker.GetReferenceDeviation()

	resp := newSunResponse(result, status.LastSampleAt)
	resp.Mode = status.Mode
	if !dev.CheckedAt.IsZero() {
		resp.RefDeviationEl = finite(dev.ElevationDeg)
		resp.RefDeviationAz = finite(dev.AzimuthDeg)
		resp.ReferenceChecked = dev.CheckedAt.UTC().Format(time.RFC3339)
	}
	return resp, true
}

// sunHandler handles /api/sun: the latest sample.
func (ws *WebServer) sunHandler(w http.ResponseWriter, r *http.Request) {
	resp, ok := ws.latestSun()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no sample yet"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// sunDayHandler handles /api/sun/day?date=YYYY-MM-DD&step=15m
func (ws *WebServer) sunDayHandler(w http.ResponseWriter, r *http.Request) {
	config := ws.tracker.GetConfig()
	model := sundata.New(config.Latitude, config.Longitude, config.UTCOffsetHours)

	date := time.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, model.Location())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid date %q: want YYYY-MM-DD", v)})
			return
		}
		date = d
	}

	step := time.Hour
	if v := r.URL.Query().Get("step"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < MinTableStep {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid step %q: want a duration of at least 1m", v)})
			return
		}
		step = d
	}

	rows := BuildDayTable(model, date, step)
	out := make([]SunResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, newSunResponse(row.Result, row.Time))
	}
	writeJSON(w, http.StatusOK, out)
}

// wsHandler handles WebSocket connections
func (ws *WebServer) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.tracker.logger.Printf("WebSocket upgrade error: %v", err)
		return
	}

	// Send initial data before handleBroadcasts can see the connection; a
	// websocket.Conn allows one writer at a time.
	ws.sendStatusToClient(conn)

	ws.clients.Store(conn, true)
	ws.tracker.logger.Printf("New WebSocket client connected. Total clients: %d", ws.clientCount())

	defer func() {
		ws.clients.Delete(conn)
		conn.Close()
		ws.tracker.logger.Printf("WebSocket client disconnected. Total clients: %d", ws.clientCount())
	}()

	// Read messages from client (ping/pong, close)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ws.tracker.logger.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

func (ws *WebServer) clientCount() int {
	n := 0
	ws.clients.Range(func(key, value any) bool {
		n++
		return true
	})
	return n
}

// handleBroadcasts sends messages to all connected clients
func (ws *WebServer) handleBroadcasts() {
	for {
		select {
		case message := <-ws.broadcast:
			ws.clients.Range(func(key, value any) bool {
				conn, ok := key.(*websocket.Conn)
				if !ok {
					return true
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					ws.tracker.logger.Printf("WebSocket write error: %v", err)
					conn.Close()
					ws.clients.Delete(conn)
				}
				return true
			})
		case <-ws.done:
			return
		}
	}
}

// broadcastStatus periodically broadcasts status updates
func (ws *WebServer) broadcastStatus() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if ws.clientCount() == 0 {
				continue
			}
			message, err := json.Marshal(ws.buildStatusData())
			if err != nil {
				ws.tracker.logger.Printf("Failed to marshal status data: %v", err)
				continue
			}
			ws.broadcast <- message
		case <-ws.done:
			return
		}
	}
}

// sendStatusToClient sends status data to a specific client
func (ws *WebServer) sendStatusToClient(conn *websocket.Conn) {
	if err := conn.WriteJSON(ws.buildStatusData()); err != nil {
		ws.tracker.logger.Printf("Failed to send initial data: %v", err)
	}
}

// buildStatusData builds combined health, status and sun data
func (ws *WebServer) buildStatusData() map[string]any {
	data := map[string]any{
		"type":   "status_update",
		"health": ws.buildHealth(),
		"status": ws.buildStatus(),
	}
	if sun, ok := ws.latestSun(); ok {
		data["sun"] = sun
	}
	return data
}

// formatUptime formats a duration as a string with seconds rounded to integer
func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
