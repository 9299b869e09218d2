// ABOUTME: HTTP API handlers for robot configuration, broker control and test hooks
// ABOUTME: Handlers read and change gateway state only through the scheduler

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389/barista-gateway/internal/events"
	"github.com/2389/barista-gateway/internal/inbound"
	"github.com/2389/barista-gateway/internal/intent"
	"github.com/2389/barista-gateway/internal/speech"
	"github.com/2389/barista-gateway/internal/store"
)

// mqttTestWait bounds how long POST /mqtt/test waits for a connection.
const mqttTestWait = 3 * time.Second

// RootResponse is the JSON response for GET /.
type RootResponse struct {
	Service           string            `json:"service"`
	Status            string            `json:"status"`
	Version           string            `json:"version"`
	DefaultRobotID    string            `json:"default_robot_id"`
	Endpoints         map[string]string `json:"endpoints"`
	WebSocketCommands map[string]any    `json:"websocket_commands"`
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	MQTTConnected  bool   `json:"mqtt_connected"`
	Broker         string `json:"broker"`
	DefaultRobotID string `json:"default_robot_id"`
}

// RobotConfigResponse is the JSON response for GET /robot.
// RobotAssignments maps session id to robot id.
type RobotConfigResponse struct {
	DefaultRobotID    string            `json:"default_robot_id"`
	ActiveConnections int               `json:"active_connections"`
	RobotAssignments  map[string]string `json:"robot_assignments"`
}

// SetRobotRequest is the JSON request body for POST /robot.
type SetRobotRequest struct {
	RobotID string `json:"robot_id"`
}

// SetRobotResponse is the JSON response for POST /robot.
type SetRobotResponse struct {
	OK             bool   `json:"ok"`
	DefaultRobotID string `json:"default_robot_id"`
	Message        string `json:"message"`
}

// BrokerRequest is the JSON request body for POST /mqtt/broker.
type BrokerRequest struct {
	Broker string `json:"broker"`
}

// BrokerResponse is the JSON response for the broker endpoints.
type BrokerResponse struct {
	OK     bool   `json:"ok,omitempty"`
	Broker string `json:"broker"`
}

// OKResponse is a generic success or failure report.
type OKResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DistanceRequest is the JSON request body for POST /test/distance.
// Omitted fields default to 5 cm, publishing enabled and the default robot.
type DistanceRequest struct {
	DistanceCM  *int    `json:"distance_cm"`
	PublishMQTT *bool   `json:"publish_mqtt"`
	RobotID     *string `json:"robot_id"`
}

// DistanceResponse is the JSON response for POST /test/distance.
type DistanceResponse struct {
	OK      bool           `json:"ok"`
	Via     string         `json:"via"`
	Payload map[string]any `json:"payload"`
	RobotID string         `json:"robot_id"`
	Message string         `json:"message"`
}

// TestSayRequest is the JSON request body for POST /test-say.
type TestSayRequest struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// TestSayResponse is the JSON response for POST /test-say.
type TestSayResponse struct {
	Status     string `json:"status"`
	Action     string `json:"action,omitempty"`
	Message    string `json:"message,omitempty"`
	AIResponse string `json:"ai_response,omitempty"`
	Via        string `json:"via"`
}

// LanguageRequest is the JSON request body for POST /test/language.
type LanguageRequest struct {
	Text string `json:"text"`
}

// LanguageResponse is the JSON response for POST /test/language.
type LanguageResponse struct {
	OK   bool   `json:"ok"`
	Text string `json:"text"`
	speech.Detection
}

func (g *Gateway) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", g.handleRoot)
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /robot", g.handleGetRobot)
	mux.HandleFunc("POST /robot", g.handleSetRobot)
	mux.HandleFunc("GET /mqtt/broker", g.handleGetBroker)
	mux.HandleFunc("POST /mqtt/broker", g.handleSetBroker)
	mux.HandleFunc("POST /mqtt/test", g.handleMQTTTest)
	mux.HandleFunc("POST /test/distance", g.handleTestDistance)
	mux.HandleFunc("POST /test-say", g.handleTestSay)
	mux.HandleFunc("POST /test/language", g.handleTestLanguage)
	mux.HandleFunc("GET /events", g.handleListEvents)
	mux.HandleFunc("GET /events/{id}", g.handleGetEvent)
	mux.HandleFunc("GET /ws", g.handleWebSocket)
}

// defaultRobot reads the registry's default robot on the scheduler.
func (g *Gateway) defaultRobot(ctx context.Context) (string, error) {
	var robotID string
	err := g.sched.Do(ctx, func(context.Context) {
		robotID = g.sessions.DefaultRobot()
	})
	return robotID, err
}

// handleRoot handles GET / with a service descriptor.
func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	robotID, err := g.defaultRobot(r.Context())
	if err != nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	g.writeJSON(w, http.StatusOK, RootResponse{
		Service:        "barista-gateway",
		Status:         "running",
		Version:        "1.0",
		DefaultRobotID: robotID,
		Endpoints: map[string]string{
			"mqtt_broker":  "/mqtt/broker",
			"robot_config": "/robot",
			"websocket":    "/ws",
			"health":       "/health",
			"test_say":     "/test-say",
			"events":       "/events",
		},
		WebSocketCommands: map[string]any{
			"set_robot_id": map[string]string{"type": "set_robot_id", "robot_id": robotID},
			"user_meta":    map[string]string{"type": "user_meta", "userName": "..."},
		},
	})
}

// handleHealth reports liveness, broker state and the default robot.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	robotID, err := g.defaultRobot(r.Context())
	if err != nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	g.writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		MQTTConnected:  g.bridge.Connected(),
		Broker:         g.bridge.Broker(),
		DefaultRobotID: robotID,
	})
}

func (g *Gateway) handleGetRobot(w http.ResponseWriter, r *http.Request) {
	var resp RobotConfigResponse
	if err := g.sched.Do(r.Context(), func(context.Context) {
		resp = RobotConfigResponse{
			DefaultRobotID:    g.sessions.DefaultRobot(),
			ActiveConnections: g.sessions.Len(),
			RobotAssignments:  g.sessions.Assignments(),
		}
	}); err != nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// handleSetRobot sets the default robot for sessions opened from now on.
func (g *Gateway) handleSetRobot(w http.ResponseWriter, r *http.Request) {
	var req SetRobotRequest
	if err := decodeBody(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	robotID := strings.TrimSpace(req.RobotID)
	if robotID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "robot_id is required and must be a string")
		return
	}

	if err := g.sched.Do(r.Context(), func(context.Context) {
		g.sessions.SetDefaultRobot(robotID)
	}); err != nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	g.writeJSON(w, http.StatusOK, SetRobotResponse{
		OK:             true,
		DefaultRobotID: robotID,
		Message:        fmt.Sprintf("Default robot ID set to %s", robotID),
	})
}

func (g *Gateway) handleGetBroker(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, BrokerResponse{Broker: g.bridge.Broker()})
}

// handleSetBroker reconnects the bridge to a new broker host.
func (g *Gateway) handleSetBroker(w http.ResponseWriter, r *http.Request) {
	var req BrokerRequest
	if err := decodeBody(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	broker := strings.TrimSpace(req.Broker)
	if broker == "" {
		g.sendJSONError(w, http.StatusBadRequest, "broker is required")
		return
	}

	g.bridge.Reconnect(broker)
	g.writeJSON(w, http.StatusOK, BrokerResponse{OK: true, Broker: g.bridge.Broker()})
}

// handleMQTTTest waits briefly for a broker connection and publishes a probe.
func (g *Gateway) handleMQTTTest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), mqttTestWait)
	defer cancel()

	if !g.bridge.WaitConnected(ctx) {
		g.writeJSON(w, http.StatusServiceUnavailable, OKResponse{
			Error: "Could not connect to MQTT broker. Please check broker address and network connection.",
		})
		return
	}

	if err := g.publisher.PublishRaw(g.config.MQTT.ActionTopic, store.KindProbe, "", []byte("connection_test")); err != nil {
		g.writeJSON(w, http.StatusBadGateway, OKResponse{Error: fmt.Sprintf("MQTT publish failed: %v", err)})
		return
	}
	g.writeJSON(w, http.StatusOK, OKResponse{OK: true, Message: "MQTT connection successful"})
}

// handleTestDistance synthesizes a proximity event. It is optionally
// published to the notify topic and always run through the transport path.
// The payload carries a fresh id so the broker's echo is dropped as a
// redelivery.
func (g *Gateway) handleTestDistance(w http.ResponseWriter, r *http.Request) {
	var req DistanceRequest
	if err := decodeBody(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	distance := 5
	if req.DistanceCM != nil {
		distance = *req.DistanceCM
	}
	publish := req.PublishMQTT == nil || *req.PublishMQTT

	var robotID string
	if req.RobotID != nil {
		robotID = *req.RobotID
	} else {
		var err error
		if robotID, err = g.defaultRobot(r.Context()); err != nil {
			g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}

	payload := map[string]any{
		"id":          events.NewToken(),
		"event":       "start",
		"distance_cm": distance,
		"robot_id":    robotID,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		g.sendJSONError(w, http.StatusInternalServerError, "encoding payload")
		return
	}

	topic := g.notifyTopic()
	if publish {
		if err := g.publisher.PublishRaw(topic, store.KindNotify, robotID, raw); err != nil {
			g.logger.Warn("test distance publish failed", "topic", topic, "error", err)
		}
	}

	msg := inbound.Parse(topic, raw)
	if err := g.sched.Do(r.Context(), func(ctx context.Context) {
		g.HandleTransportMessage(ctx, msg)
	}); err != nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	g.writeJSON(w, http.StatusOK, DistanceResponse{
		OK:      true,
		Via:     "http",
		Payload: payload,
		RobotID: robotID,
		Message: fmt.Sprintf("Test message sent for robot: %s", robotID),
	})
}

// notifyTopic is the topic synthesized sensor events are attributed to.
func (g *Gateway) notifyTopic() string {
	if len(g.config.MQTT.NotifyTopics) > 0 {
		return g.config.MQTT.NotifyTopics[0]
	}
	return "robot/notify"
}

// handleTestSay either asks the model on the shared history and broadcasts
// the answer to every session, or publishes an action when no message is
// given.
func (g *Gateway) handleTestSay(w http.ResponseWriter, r *http.Request) {
	var req TestSayRequest
	if err := decodeBody(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Message == "" {
		action := req.Action
		if action == "" {
			action = "test"
		}
		if err := g.sched.Do(r.Context(), func(ctx context.Context) {
			g.publisher.PublishAction(ctx, action, "")
		}); err != nil {
			g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		g.writeJSON(w, http.StatusOK, TestSayResponse{Status: "ok", Action: action, Via: "mqtt"})
		return
	}

	answer := make(chan intent.Result, 1)
	if err := g.sched.Do(r.Context(), func(ctx context.Context) {
		g.broadcastPrompt(ctx, req.Message, func(res intent.Result) { answer <- res })
	}); err != nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	select {
	case res := <-answer:
		g.writeJSON(w, http.StatusOK, TestSayResponse{
			Status:     "ok",
			Message:    req.Message,
			AIResponse: res.Text,
			Via:        "websocket+ai",
		})
	case <-r.Context().Done():
	}
}

func (g *Gateway) handleTestLanguage(w http.ResponseWriter, r *http.Request) {
	var req LanguageRequest
	if err := decodeBody(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	g.writeJSON(w, http.StatusOK, LanguageResponse{
		OK:        true,
		Text:      req.Text,
		Detection: speech.DetectLanguage(req.Text),
	})
}

// decodeBody decodes a JSON request body. An empty body decodes as {}.
func decodeBody(body io.Reader, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body")
	}
	return nil
}

// writeJSON writes v as a JSON response with the given status.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, OKResponse{Error: message})
}
