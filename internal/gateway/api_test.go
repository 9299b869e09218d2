// ABOUTME: Tests for the HTTP API handlers
// ABOUTME: Each endpoint is exercised over a real listener against the test harness

package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/barista-gateway/internal/intent"
)

// newAPIServer starts an httptest server for the harness's handler.
func newAPIServer(t *testing.T, h *harness) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h.gw.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
	}
	return resp.StatusCode
}

func TestAPI_Root(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)

	var resp RootResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/", &resp))
	assert.Equal(t, "barista-gateway", resp.Service)
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, "wro1", resp.DefaultRobotID)
	assert.Equal(t, "/ws", resp.Endpoints["websocket"])
	assert.Contains(t, resp.WebSocketCommands, "set_robot_id")

	unknown, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	unknown.Body.Close()
	assert.Equal(t, http.StatusNotFound, unknown.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)

	var resp HealthResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.MQTTConnected)
	assert.Equal(t, h.gw.config.MQTT.Broker, resp.Broker)
	assert.Equal(t, "wro1", resp.DefaultRobotID)

	h.bridge.setConnected(false)
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/health", &resp))
	assert.False(t, resp.MQTTConnected)
}

func TestAPI_Robot(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)
	s := h.openSession(t, "r3")

	var cfg RobotConfigResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/robot", &cfg))
	assert.Equal(t, "wro1", cfg.DefaultRobotID)
	assert.Equal(t, 1, cfg.ActiveConnections)
	assert.Equal(t, map[string]string{s.ID: "r3"}, cfg.RobotAssignments)

	var set SetRobotResponse
	assert.Equal(t, http.StatusOK, postJSON(t, srv.URL+"/robot", `{"robot_id":"wro9"}`, &set))
	assert.True(t, set.OK)
	assert.Equal(t, "wro9", set.DefaultRobotID)
	assert.Equal(t, "Default robot ID set to wro9", set.Message)

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/robot", &cfg))
	assert.Equal(t, "wro9", cfg.DefaultRobotID)
	assert.Equal(t, "r3", cfg.RobotAssignments[s.ID], "existing sessions keep their robot")
}

func TestAPI_SetRobotRejectsBadInput(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing", body: `{}`},
		{name: "blank", body: `{"robot_id":"   "}`},
		{name: "not json", body: `robot`},
		{name: "wrong type", body: `{"robot_id":12}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp OKResponse
			assert.Equal(t, http.StatusBadRequest, postJSON(t, srv.URL+"/robot", tt.body, &resp))
			assert.False(t, resp.OK)
			assert.NotEmpty(t, resp.Error)
		})
	}

	var cfg RobotConfigResponse
	getJSON(t, srv.URL+"/robot", &cfg)
	assert.Equal(t, "wro1", cfg.DefaultRobotID)
}

func TestAPI_Broker(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)

	var got BrokerResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/mqtt/broker", &got))
	assert.Equal(t, h.gw.config.MQTT.Broker, got.Broker)

	assert.Equal(t, http.StatusOK, postJSON(t, srv.URL+"/mqtt/broker", `{"broker":" 10.0.0.7 "}`, &got))
	assert.True(t, got.OK)
	assert.Equal(t, "10.0.0.7", got.Broker)
	h.bridge.mu.Lock()
	assert.Equal(t, []string{"10.0.0.7"}, h.bridge.reconnects)
	h.bridge.mu.Unlock()

	var bad OKResponse
	assert.Equal(t, http.StatusBadRequest, postJSON(t, srv.URL+"/mqtt/broker", `{"broker":""}`, &bad))
}

func TestAPI_MQTTTest(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)

	var ok OKResponse
	assert.Equal(t, http.StatusOK, postJSON(t, srv.URL+"/mqtt/test", "", &ok))
	assert.True(t, ok.OK)
	probes := h.bridge.on("robot/events")
	require.Len(t, probes, 1)
	assert.Equal(t, "connection_test", string(probes[0].Payload))

	h.bridge.setConnected(false)
	var failed OKResponse
	assert.Equal(t, http.StatusServiceUnavailable, postJSON(t, srv.URL+"/mqtt/test", "", &failed))
	assert.False(t, failed.OK)
	assert.Contains(t, failed.Error, "Could not connect")
}

func TestAPI_TestDistance(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)
	target := h.openSession(t, "wro1")
	other := h.openSession(t, "wro2")

	var resp DistanceResponse
	assert.Equal(t, http.StatusOK, postJSON(t, srv.URL+"/test/distance", `{}`, &resp))
	h.idle(t)

	assert.True(t, resp.OK)
	assert.Equal(t, "http", resp.Via)
	assert.Equal(t, "wro1", resp.RobotID)
	assert.Equal(t, "start", resp.Payload["event"])
	assert.EqualValues(t, 5, resp.Payload["distance_cm"])
	assert.NotEmpty(t, resp.Payload["id"])

	notify := h.bridge.on("robot/notify")
	require.Len(t, notify, 1)

	texts, _ := drain(target)
	assert.Equal(t, []string{intent.ProximityGreeting}, texts)
	texts, _ = drain(other)
	assert.Empty(t, texts)
	assert.Len(t, h.bridge.on("robot/reply"), 1)

	// The broker echoes the published sensor event back; it is a redelivery.
	h.bridge.deliver(t, "robot/notify", string(notify[0].Payload))
	h.idle(t)
	assert.Len(t, h.bridge.on("robot/reply"), 1)
}

func TestAPI_TestDistanceWithoutPublish(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)
	s := h.openSession(t, "r2")

	var resp DistanceResponse
	assert.Equal(t, http.StatusOK,
		postJSON(t, srv.URL+"/test/distance", `{"distance_cm":30,"publish_mqtt":false,"robot_id":"r2"}`, &resp))
	h.idle(t)

	assert.Empty(t, h.bridge.on("robot/notify"))
	assert.Equal(t, "r2", resp.RobotID)

	// 30 cm is not a proximity trigger, so the model answers.
	texts, _ := drain(s)
	assert.Equal(t, []string{"Coming right up!"}, texts)
	assert.EqualValues(t, 1, h.model.calls.Load())
}

func TestAPI_TestSayAction(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)

	var resp TestSayResponse
	assert.Equal(t, http.StatusOK, postJSON(t, srv.URL+"/test-say", `{}`, &resp))
	assert.Equal(t, "test", resp.Action)
	assert.Equal(t, "mqtt", resp.Via)

	actions := h.bridge.on("robot/events")
	require.Len(t, actions, 1)
	assert.Equal(t, map[string]any{"action": "test", "robot_id": "wro1"}, decodeMap(t, actions[0].Payload))
}

func TestAPI_TestSayMessage(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)
	a := h.openSession(t, "r1")
	b := h.openSession(t, "r2")

	var resp TestSayResponse
	assert.Equal(t, http.StatusOK, postJSON(t, srv.URL+"/test-say", `{"message":"introduce yourself"}`, &resp))
	h.idle(t)

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "introduce yourself", resp.Message)
	assert.Equal(t, "Coming right up!", resp.AIResponse)
	assert.Equal(t, "websocket+ai", resp.Via)

	textsA, _ := drain(a)
	textsB, _ := drain(b)
	assert.Equal(t, []string{"Coming right up!"}, textsA)
	assert.Equal(t, []string{"Coming right up!"}, textsB)
}

func TestAPI_TestLanguage(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)

	var resp LanguageResponse
	assert.Equal(t, http.StatusOK, postJSON(t, srv.URL+"/test/language", `{"text":"你好"}`, &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "你好", resp.Text)
	assert.Equal(t, "chinese", resp.Language)
	assert.Equal(t, 2, resp.ChineseChars)
	assert.Equal(t, 2, resp.TotalChars)
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	h := newHarness(t, nil)
	srv := newAPIServer(t, h)

	resp, err := http.Post(srv.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
