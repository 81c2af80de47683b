package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/nbhdsim/core/logger"
	coremetrics "github.com/kilianp07/nbhdsim/core/metrics"
	"github.com/kilianp07/nbhdsim/core/model"
	"github.com/kilianp07/nbhdsim/core/monitoring"
	"github.com/kilianp07/nbhdsim/core/sim"
)

// Topic leaves under <prefix>/<neighborhood>/.
const (
	TopicStep    = "step"
	TopicGetData = "get_data"
	TopicReply   = "reply"
	TopicMeta    = "meta"
	TopicStatus  = "status"
)

// Stepper is the simulation a participant drives.
type Stepper interface {
	Step(ctx context.Context, duration int64, inputs model.Inputs) (sim.StepResult, error)
	Outputs(req map[string][]string) (map[string]map[string]any, error)
	Meta() sim.Meta
}

// StepRequest asks the participant to advance the neighborhood.
type StepRequest struct {
	RequestID string       `json:"request_id"`
	Duration  int64        `json:"duration"`
	Inputs    model.Inputs `json:"inputs,omitempty"`
}

// GetDataRequest asks for the current value of some attributes.
type GetDataRequest struct {
	RequestID string              `json:"request_id"`
	Outputs   map[string][]string `json:"outputs"`
}

// Reply is published on <prefix>/<neighborhood>/reply/<request_id>.
type Reply struct {
	RequestID string                    `json:"request_id"`
	OK        bool                      `json:"ok"`
	Error     string                    `json:"error,omitempty"`
	Step      *sim.StepResult           `json:"step,omitempty"`
	Outputs   map[string]map[string]any `json:"outputs,omitempty"`
	Time      time.Time                 `json:"time"`
}

// Participant exposes a Stepper over MQTT request topics.
type Participant struct {
	cli     pahoClient
	stepper Stepper
	base    string
	qos     byte
	timeout time.Duration
	log     logger.Logger
	mon     monitoring.Monitor
	rec     coremetrics.RequestRecorder
}

// ParticipantOption customizes a Participant.
type ParticipantOption func(*Participant)

// WithLogger sets the participant logger.
func WithLogger(l logger.Logger) ParticipantOption {
	return func(p *Participant) { p.log = logger.OrNop(l) }
}

// WithMonitor reports request failures to m.
func WithMonitor(m monitoring.Monitor) ParticipantOption {
	return func(p *Participant) { p.mon = monitoring.OrNop(m) }
}

// WithRequestRecorder counts handled requests.
func WithRequestRecorder(r coremetrics.RequestRecorder) ParticipantOption {
	return func(p *Participant) {
		if r != nil {
			p.rec = r
		}
	}
}

// WithStepTimeout bounds the time a single step request may take.
func WithStepTimeout(d time.Duration) ParticipantOption {
	return func(p *Participant) { p.timeout = d }
}

// NewParticipant connects to the broker. On every (re)connect it subscribes
// to the request topics and publishes the retained meta document.
func NewParticipant(cfg Config, s Stepper, opts ...ParticipantOption) (*Participant, error) {
	mqttOpts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	meta := s.Meta()
	p := &Participant{
		stepper: s,
		base:    Topic(cfg.TopicPrefix, meta.NeighborhoodID),
		qos:     cfg.QoS,
		timeout: 30 * time.Second,
		log:     logger.Nop{},
		mon:     monitoring.NopMonitor{},
		rec:     coremetrics.NopSink{},
	}
	for _, o := range opts {
		o(p)
	}

	payload := cfg.LWTPayload
	if payload == "" {
		payload = "offline"
	}
	mqttOpts.SetWill(p.topic(TopicStatus), payload, p.qos, true)
	mqttOpts.OnConnect = func(c paho.Client) {
		p.log.Infof("MQTT connected, serving %s", p.base)
		if err := p.subscribe(c); err != nil {
			p.log.Errorf("subscribe error: %v", err)
			p.mon.CaptureException(err, map[string]string{"module": "mqtt"})
			return
		}
		p.publishMeta(c)
	}
	mqttOpts.OnConnectionLost = func(_ paho.Client, err error) {
		p.log.Errorf("connection lost: %v", err)
	}
	mqttOpts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		p.log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(mqttOpts)
	p.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return p, nil
}

func (p *Participant) topic(leaf ...string) string {
	return Topic(append([]string{p.base}, leaf...)...)
}

type subscriber interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

func (p *Participant) subscribe(c subscriber) error {
	routes := map[string]paho.MessageHandler{
		p.topic(TopicStep):    p.onStep,
		p.topic(TopicGetData): p.onGetData,
	}
	for topic, h := range routes {
		if token := c.Subscribe(topic, p.qos, h); token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
	}
	return nil
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

func (p *Participant) publishMeta(c publisher) {
	b, err := json.Marshal(p.stepper.Meta())
	if err != nil {
		p.log.Errorf("encode meta: %v", err)
		return
	}
	if token := c.Publish(p.topic(TopicMeta), p.qos, true, b); token.Wait() && token.Error() != nil {
		p.log.Errorf("publish meta: %v", token.Error())
	}
	if token := c.Publish(p.topic(TopicStatus), p.qos, true, "online"); token.Wait() && token.Error() != nil {
		p.log.Errorf("publish status: %v", token.Error())
	}
}

func (p *Participant) onStep(_ paho.Client, msg paho.Message) {
	var req StepRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		p.fail(TopicStep, uuid.NewString(), fmt.Errorf("decode step request: %w", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if err := req.Inputs.Validate(); err != nil {
		p.fail(TopicStep, req.RequestID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	res, err := p.stepper.Step(ctx, req.Duration, req.Inputs)
	if err != nil {
		p.fail(TopicStep, req.RequestID, err)
		return
	}
	p.log.Debugw("step handled", map[string]any{"request_id": req.RequestID, "step": res.Aggregate.Step})
	p.reply(TopicStep, Reply{RequestID: req.RequestID, OK: true, Step: &res})
}

func (p *Participant) onGetData(_ paho.Client, msg paho.Message) {
	var req GetDataRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		p.fail(TopicGetData, uuid.NewString(), fmt.Errorf("decode get_data request: %w", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	out, err := p.stepper.Outputs(req.Outputs)
	if err != nil {
		p.fail(TopicGetData, req.RequestID, err)
		return
	}
	p.reply(TopicGetData, Reply{RequestID: req.RequestID, OK: true, Outputs: out})
}

func (p *Participant) fail(kind, requestID string, err error) {
	p.log.Warnf("%s request %s failed: %v", kind, requestID, err)
	var unknown bool
	for _, e := range []error{
		sim.ErrUnknownEntity, sim.ErrUnknownAttribute, sim.ErrNegativeDuration,
		sim.ErrDurationOverflow, model.ErrInvalidInput,
	} {
		unknown = unknown || errors.Is(err, e)
	}
	if !unknown {
		p.mon.CaptureException(err, map[string]string{"module": "mqtt", "request": kind})
	}
	p.reply(kind, Reply{RequestID: requestID, Error: err.Error()})
}

// reply always publishes something for r.RequestID. A result that cannot be
// encoded is replaced by an error reply and counted as failed.
func (p *Participant) reply(kind string, r Reply) {
	r.Time = time.Now().UTC()
	b, err := json.Marshal(r)
	if err != nil {
		err = fmt.Errorf("encode reply: %w", err)
		p.log.Errorf("%s request %s: %v", kind, r.RequestID, err)
		p.mon.CaptureException(err, map[string]string{"module": "mqtt", "request": kind})
		r = Reply{RequestID: r.RequestID, Error: err.Error(), Time: r.Time}
		if b, err = json.Marshal(r); err != nil {
			p.log.Errorf("encode error reply %s: %v", r.RequestID, err)
			return
		}
	}
	_ = p.rec.RecordRequest(kind, r.OK)
	token := p.cli.Publish(p.topic(TopicReply, r.RequestID), p.qos, false, b)
	if token.Wait() && token.Error() != nil {
		p.log.Errorf("publish reply %s: %v", r.RequestID, token.Error())
	}
}

// Close unsubscribes, marks the participant offline and disconnects.
func (p *Participant) Close() {
	if p.cli == nil || !p.cli.IsConnected() {
		return
	}
	p.cli.Unsubscribe(p.topic(TopicStep), p.topic(TopicGetData)).Wait()
	p.cli.Publish(p.topic(TopicStatus), p.qos, true, "offline").Wait()
	p.cli.Disconnect(250)
}
