// internal/mqtt/gateway.go
package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/tc-ioc/internal/config"
	"github.com/tamzrod/tc-ioc/internal/pv"
)

// putTimeout bounds one write routed from a set topic.
const putTimeout = 10 * time.Second

// connectRetryDelay is the pause between initial connect attempts.
const connectRetryDelay = 5 * time.Second

// pahoClient is the subset of paho.Client the gateway uses.
type pahoClient interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Gateway mirrors a PV database onto an MQTT broker.
// Every PV update is published as JSON; writable PVs accept writes on <topic>/set.
type Gateway struct {
	client pahoClient
	db     *pv.Database
	cfg    cfg.MQTTConfig
	log    zerolog.Logger

	// set topic -> PV name
	setTopics map[string]string

	retryDelay time.Duration

	ctxMu sync.Mutex
	ctx   context.Context
}

// New builds a gateway with a paho client. Nothing connects until Run.
// Assumes c has already passed Validate and Normalize.
func New(c cfg.MQTTConfig, db *pv.Database, log zerolog.Logger) *Gateway {
	g := newGateway(nil, c, db, log)

	opts := paho.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", c.Broker, c.Port))
	opts.SetClientID(c.ClientID)
	opts.SetUsername(c.Username)
	opts.SetPassword(c.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWill(StatusTopic(c.TopicPrefix), payloadOffline, 1, true)

	// subscriptions are restored on every (re)connect
	opts.SetOnConnectHandler(func(paho.Client) { g.onConnect() })
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		g.log.Error().Err(err).Msg("mqtt connection lost")
	})

	g.client = paho.NewClient(opts)
	return g
}

func newGateway(client pahoClient, c cfg.MQTTConfig, db *pv.Database, log zerolog.Logger) *Gateway {
	g := &Gateway{
		client:     client,
		db:         db,
		cfg:        c,
		log:        log.With().Str("component", "mqtt").Str("broker", c.Broker).Logger(),
		setTopics:  make(map[string]string),
		retryDelay: connectRetryDelay,
		ctx:        context.Background(),
	}
	for _, name := range db.Names() {
		p, _ := db.Get(name)
		if !p.ReadOnly() {
			g.setTopics[SetTopic(c.TopicPrefix, name)] = name
		}
	}
	return g
}

// Run connects, mirrors PV updates until ctx is done, then disconnects.
// An unreachable broker is retried until ctx is done; it never fails the process.
func (g *Gateway) Run(ctx context.Context) error {
	g.ctxMu.Lock()
	g.ctx = ctx
	g.ctxMu.Unlock()

	if !g.connect(ctx) {
		return nil
	}
	g.log.Info().Msg("mqtt connected")

	var wg sync.WaitGroup
	for _, name := range g.db.Names() {
		p, _ := g.db.Get(name)
		updates, cancel := p.Subscribe(4)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			g.mirror(ctx, p, updates)
		}()
	}

	<-ctx.Done()
	wg.Wait()

	if g.client.IsConnected() {
		t := g.client.Publish(StatusTopic(g.cfg.TopicPrefix), 1, true, payloadOffline)
		t.WaitTimeout(time.Second)
		g.client.Disconnect(250)
	}
	g.log.Info().Msg("mqtt disconnected")
	return nil
}

// connect retries the initial connection until it succeeds or ctx is done.
// Later drops are handled by paho auto-reconnect.
func (g *Gateway) connect(ctx context.Context) bool {
	for attempt := 1; ; attempt++ {
		err := wait(ctx, g.client.Connect())
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		g.log.Error().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", g.retryDelay).
			Msg("mqtt connect failed")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(g.retryDelay):
		}
	}
}

// onConnect publishes the online state and (re)subscribes the set topics.
func (g *Gateway) onConnect() {
	g.log.Info().Msg("mqtt session established")

	if t := g.client.Publish(StatusTopic(g.cfg.TopicPrefix), 1, true, payloadOnline); t.Wait() && t.Error() != nil {
		g.log.Warn().Err(t.Error()).Msg("publish online status failed")
	}

	for topic := range g.setTopics {
		if t := g.client.Subscribe(topic, g.cfg.QoS, g.handleSet); t.Wait() && t.Error() != nil {
			g.log.Error().Err(t.Error()).Str("topic", topic).Msg("subscribe failed")
		}
	}
}

// mirror publishes the current value of p, then each update.
func (g *Gateway) mirror(ctx context.Context, p *pv.PV, updates <-chan pv.Update) {
	v, ts := p.Value()
	g.publish(pv.Update{Name: p.Name(), Value: v, Timestamp: ts})

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			g.publish(u)
		}
	}
}

func (g *Gateway) publish(u pv.Update) {
	if !g.client.IsConnected() {
		return
	}
	b, err := encodeState(u)
	if err != nil {
		g.log.Error().Err(err).Str("pv", u.Name).Msg("encode failed")
		return
	}

	topic := Topic(g.cfg.TopicPrefix, u.Name)
	t := g.client.Publish(topic, g.cfg.QoS, g.cfg.Retain, b)
	if g.cfg.QoS == 0 {
		return
	}
	if t.WaitTimeout(5*time.Second) && t.Error() != nil {
		g.log.Warn().Err(t.Error()).Str("topic", topic).Msg("publish failed")
	}
}

// handleSet routes a message on a set topic to the PV.
func (g *Gateway) handleSet(_ paho.Client, msg paho.Message) {
	name, ok := g.setTopics[msg.Topic()]
	if !ok {
		g.log.Warn().Str("topic", msg.Topic()).Msg("message on unknown set topic")
		return
	}

	v, err := ParseSetPayload(msg.Payload())
	if err != nil {
		g.log.Warn().Err(err).Str("pv", name).Msg("set rejected")
		return
	}

	g.ctxMu.Lock()
	parent := g.ctx
	g.ctxMu.Unlock()

	ctx, cancel := context.WithTimeout(parent, putTimeout)
	defer cancel()

	if err := g.db.Put(ctx, name, v); err != nil {
		g.log.Warn().Err(err).Str("pv", name).Float64("value", v).Msg("set failed")
		return
	}
	g.log.Debug().Str("pv", name).Float64("value", v).Msg("set applied")
}

// wait blocks on t or ctx.
func wait(ctx context.Context, t paho.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Done():
		return t.Error()
	}
}
