//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gatekeeper-core/internal/infrastructure/config"
)

// Integration tests require a broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestIntegration_PublishStudentEvent(t *testing.T) {
	client, err := Connect(integrationConfig("gatekeeper-int-pub"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	// Independent subscriber using paho directly.
	opts := pahomqtt.NewClientOptions().AddBroker("tcp://127.0.0.1:1883").SetClientID("gatekeeper-int-sub")
	sub := pahomqtt.NewClient(opts)
	if tok := sub.Connect(); !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Fatalf("subscriber connect failed: %v", tok.Error())
	}
	defer sub.Disconnect(100)

	var mu sync.Mutex
	var got []string
	received := make(chan struct{}, 1)
	tok := sub.Subscribe(Topics{}.AllStudentEvents(), 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		mu.Lock()
		got = append(got, msg.Topic())
		mu.Unlock()
		select {
		case received <- struct{}{}:
		default:
		}
	})
	if !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Fatalf("subscribe failed: %v", tok.Error())
	}

	if err := client.Publish(Topics{}.StudentEvent("S1"), []byte(`{"kind":"created","student_id":"S1"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "gatekeeper/events/students/S1" {
		t.Errorf("topic = %q", got[0])
	}
}
