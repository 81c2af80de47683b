package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/nbhdsim/core/model"
	"github.com/kilianp07/nbhdsim/core/sim"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements paho.Client for tests.
type mockClient struct {
	mu         sync.Mutex
	opts       *paho.ClientOptions
	handlers   map[string]paho.MessageHandler
	published  []published
	subErr     error
	connected  bool
	disconnect bool
}

func (m *mockClient) IsConnected() bool { return m.connected }
func (m *mockClient) Connect() paho.Token {
	m.connected = true
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.disconnect = true; m.connected = false }
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	m.published = append(m.published, published{topic, qos, retained, b})
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, _ byte, h paho.MessageHandler) paho.Token {
	if m.subErr != nil {
		return &dummyToken{err: m.subErr}
	}
	if m.handlers == nil {
		m.handlers = map[string]paho.MessageHandler{}
	}
	m.handlers[topic] = h
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return m.connected }

func (m *mockClient) deliver(topic string, payload []byte) {
	m.handlers[topic](m, mockMessage{topic: topic, p: payload})
}

func (m *mockClient) last(topicPrefix string) (published, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if len(m.published[i].topic) >= len(topicPrefix) && m.published[i].topic[:len(topicPrefix)] == topicPrefix {
			return m.published[i], true
		}
	}
	return published{}, false
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}

// nbStepper adapts a Neighborhood to Stepper without locking.
type nbStepper struct{ nb *sim.Neighborhood }

func (s nbStepper) Step(_ context.Context, d int64, in model.Inputs) (sim.StepResult, error) {
	return s.nb.Step(d, in)
}
func (s nbStepper) Outputs(req map[string][]string) (map[string]map[string]any, error) {
	return s.nb.Outputs(req)
}
func (s nbStepper) Meta() sim.Meta { return s.nb.Meta() }

func newTestStepper(t *testing.T) nbStepper {
	t.Helper()
	descs := []model.HouseholdDescription{{
		Type:             model.Prosumer,
		CapacityKWh:      10,
		InitialChargeKWh: 5,
		Profile:          model.Profile{GenerationMW: 0.004, LoadMW: 0.001},
	}}
	period := model.TimePeriod{Start: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), Resolution: time.Minute}
	nb, err := sim.InitModel("nb1", period, 0, descs, 1)
	require.NoError(t, err)
	return nbStepper{nb: nb}
}

func startParticipant(t *testing.T, cfg Config) (*Participant, *mockClient) {
	t.Helper()
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
	p, err := NewParticipant(cfg, newTestStepper(t))
	require.NoError(t, err)
	return p, mc
}

func TestParticipantPublishesMetaOnConnect(t *testing.T) {
	_, mc := startParticipant(t, Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "nbhd", QoS: 1})

	assert.Contains(t, mc.handlers, "nbhd/nb1/step")
	assert.Contains(t, mc.handlers, "nbhd/nb1/get_data")
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "nbhd/nb1/status", mc.opts.WillTopic)

	meta, ok := mc.last("nbhd/nb1/meta")
	require.True(t, ok)
	assert.True(t, meta.retained)
	assert.Equal(t, byte(1), meta.qos)
	var m sim.Meta
	require.NoError(t, json.Unmarshal(meta.payload, &m))
	assert.Equal(t, "nb1", m.NeighborhoodID)
	require.Len(t, m.Entities, 1)
}

func TestParticipantStepAndGetData(t *testing.T) {
	_, mc := startParticipant(t, Config{Broker: "tcp://localhost:1883", TopicPrefix: "nbhd"})

	mc.deliver("nbhd/nb1/step", []byte(`{"request_id":"r1","duration":60}`))
	msg, ok := mc.last("nbhd/nb1/reply/r1")
	require.True(t, ok)
	var rep Reply
	require.NoError(t, json.Unmarshal(msg.payload, &rep))
	require.True(t, rep.OK, rep.Error)
	require.NotNil(t, rep.Step)
	assert.Equal(t, int64(1), rep.Step.Aggregate.Step)
	assert.InDelta(t, 8.0, rep.Step.Households[0].SoCKWh, 1e-9)

	eid := rep.Step.Households[0].EID
	req, _ := json.Marshal(GetDataRequest{RequestID: "r2", Outputs: map[string][]string{eid: {sim.AttrSoCKWh}}})
	mc.deliver("nbhd/nb1/get_data", req)
	msg, ok = mc.last("nbhd/nb1/reply/r2")
	require.True(t, ok)
	rep = Reply{}
	require.NoError(t, json.Unmarshal(msg.payload, &rep))
	require.True(t, rep.OK)
	assert.InDelta(t, 8.0, rep.Outputs[eid][sim.AttrSoCKWh], 1e-9)
}

func TestParticipantRepliesWithErrors(t *testing.T) {
	_, mc := startParticipant(t, Config{Broker: "tcp://localhost:1883", TopicPrefix: "nbhd"})

	mc.deliver("nbhd/nb1/step", []byte(`{"request_id":"neg","duration":-5}`))
	msg, ok := mc.last("nbhd/nb1/reply/neg")
	require.True(t, ok)
	var rep Reply
	require.NoError(t, json.Unmarshal(msg.payload, &rep))
	assert.False(t, rep.OK)
	assert.Contains(t, rep.Error, "negative")

	mc.deliver("nbhd/nb1/get_data", []byte(`{"request_id":"bad","outputs":{"ghost":["x"]}}`))
	msg, ok = mc.last("nbhd/nb1/reply/bad")
	require.True(t, ok)
	rep = Reply{}
	require.NoError(t, json.Unmarshal(msg.payload, &rep))
	assert.False(t, rep.OK)

	mc.deliver("nbhd/nb1/step", []byte(`not json`))
	msg, ok = mc.last("nbhd/nb1/reply/")
	require.True(t, ok)
	rep = Reply{}
	require.NoError(t, json.Unmarshal(msg.payload, &rep))
	assert.False(t, rep.OK)
	assert.NotEmpty(t, rep.RequestID)
}

func TestParticipantSubscribeFailureIsLogged(t *testing.T) {
	mc := &mockClient{subErr: errors.New("denied")}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()
	_, err := NewParticipant(Config{Broker: "tcp://localhost:1883"}, newTestStepper(t))
	require.NoError(t, err)
	_, ok := mc.last("nb1/meta")
	assert.False(t, ok)
}

func TestParticipantClose(t *testing.T) {
	p, mc := startParticipant(t, Config{Broker: "tcp://localhost:1883"})
	p.Close()
	assert.True(t, mc.disconnect)
	status, ok := mc.last("nb1/status")
	require.True(t, ok)
	assert.Equal(t, "offline", string(status.payload))
}

type requestLog struct{ calls []string }

func (r *requestLog) RecordRequest(kind string, ok bool) error {
	r.calls = append(r.calls, fmt.Sprintf("%s:%t", kind, ok))
	return nil
}

// infStepper reports an infinite balance once, then steps normally.
type infStepper struct {
	nbStepper
	broken bool
}

func (s *infStepper) Step(ctx context.Context, d int64, in model.Inputs) (sim.StepResult, error) {
	res, err := s.nbStepper.Step(ctx, d, in)
	if !s.broken {
		s.broken = true
		res.Aggregate.EnergyBalanceKWh = math.Inf(1)
	}
	return res, err
}

func (s *infStepper) Outputs(map[string][]string) (map[string]map[string]any, error) {
	return map[string]map[string]any{"nb1": {sim.AttrEnergyBalanceKWh: math.NaN()}}, nil
}

func decodeReply(t *testing.T, mc *mockClient, id string) Reply {
	t.Helper()
	msg, ok := mc.last("nbhd/nb1/reply/" + id)
	require.True(t, ok, "no reply for %s", id)
	var rep Reply
	require.NoError(t, json.Unmarshal(msg.payload, &rep))
	assert.Equal(t, id, rep.RequestID)
	return rep
}

func TestParticipantRejectsOverflowingInputs(t *testing.T) {
	rec := &requestLog{}
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
	_, err := NewParticipant(Config{Broker: "tcp://localhost:1883", TopicPrefix: "nbhd"}, newTestStepper(t), WithRequestRecorder(rec))
	require.NoError(t, err)

	mc.deliver("nbhd/nb1/step", []byte(`{"request_id":"huge","duration":60,"inputs":{"nb1_Prosumer_0":{"p_mw_net":1e306}}}`))
	rep := decodeReply(t, mc, "huge")
	assert.False(t, rep.OK)
	assert.Contains(t, rep.Error, "invalid input")

	mc.deliver("nbhd/nb1/step", []byte(`{"request_id":"next","duration":60}`))
	rep = decodeReply(t, mc, "next")
	require.True(t, rep.OK, rep.Error)
	assert.Equal(t, int64(1), rep.Step.Aggregate.Step)
	assert.InDelta(t, 8.0, rep.Step.Households[0].SoCKWh, 1e-9)
	assert.Equal(t, []string{"step:false", "step:true"}, rec.calls)
}

func TestParticipantRepliesWhenResultCannotBeEncoded(t *testing.T) {
	rec := &requestLog{}
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
	st := &infStepper{nbStepper: newTestStepper(t)}
	_, err := NewParticipant(Config{Broker: "tcp://localhost:1883", TopicPrefix: "nbhd"}, st, WithRequestRecorder(rec))
	require.NoError(t, err)

	mc.deliver("nbhd/nb1/step", []byte(`{"request_id":"s1","duration":60}`))
	rep := decodeReply(t, mc, "s1")
	assert.False(t, rep.OK)
	assert.Contains(t, rep.Error, "encode reply")
	assert.Nil(t, rep.Step)

	mc.deliver("nbhd/nb1/step", []byte(`{"request_id":"s2","duration":60}`))
	rep = decodeReply(t, mc, "s2")
	require.True(t, rep.OK, rep.Error)
	assert.Equal(t, int64(2), rep.Step.Aggregate.Step)

	mc.deliver("nbhd/nb1/get_data", []byte(`{"request_id":"g1","outputs":{"nb1":["energy_balance_kWh"]}}`))
	rep = decodeReply(t, mc, "g1")
	assert.False(t, rep.OK)
	assert.Contains(t, rep.Error, "encode reply")

	assert.Equal(t, []string{"step:false", "step:true", "get_data:false"}, rec.calls)
}
