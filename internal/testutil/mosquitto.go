// Package testutil provides helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MosquittoImage is the broker image used by integration tests.
const MosquittoImage = "eclipse-mosquitto:2.0"

const brokerConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
`

// Mosquitto is a disposable broker running in a container.
type Mosquitto struct {
	URL       string
	container tc.Container
	confDir   string
}

// StartMosquitto starts a broker and waits until it accepts MQTT
// connections. Callers skip their test when Docker is unavailable.
func StartMosquitto(ctx context.Context) (*Mosquitto, error) {
	dir, err := os.MkdirTemp("", "nbhdsim-mosquitto")
	if err != nil {
		return nil, err
	}
	conf := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(conf, []byte(brokerConf), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        MosquittoImage,
			ExposedPorts: []string{"1883/tcp"},
			WaitingFor:   wait.ForListeningPort("1883/tcp"),
			Files: []tc.ContainerFile{{
				HostFilePath:      conf,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0o644,
			}},
		},
		Started: true,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("start mosquitto: %w", err)
	}
	m := &Mosquitto{container: c, confDir: dir}

	host, err := c.Host(ctx)
	if err != nil {
		m.Terminate()
		return nil, err
	}
	port, err := c.MappedPort(ctx, "1883")
	if err != nil {
		m.Terminate()
		return nil, err
	}
	m.URL = fmt.Sprintf("tcp://%s:%s", host, port.Port())

	readyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.waitReady(readyCtx); err != nil {
		m.Terminate()
		return nil, err
	}
	return m, nil
}

// Terminate stops the container and removes its configuration.
func (m *Mosquitto) Terminate() {
	if m.container != nil {
		_ = m.container.Terminate(context.Background())
	}
	_ = os.RemoveAll(m.confDir)
}

func (m *Mosquitto) waitReady(ctx context.Context) error {
	opts := paho.NewClientOptions().AddBroker(m.URL).SetClientID("nbhdsim-readiness")
	for {
		cli := paho.NewClient(opts)
		if tok := cli.Connect(); tok.Wait() && tok.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("mosquitto not ready: %w", ctx.Err())
		case <-time.After(50 * time.Millisecond):
		}
	}
}
