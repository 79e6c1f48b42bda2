package telemetry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/CruiseDevice/sbhsd"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t fakeToken) Error() error                   { return t.err }

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	token        fakeToken
	messages     []message
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload any) Token {
	c.messages = append(c.messages, message{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(uint) {
	c.disconnected = true
}

func TestPublish(t *testing.T) {
	client := &fakeClient{}
	p := New(client, "lab/sbhs", 1)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	err := p.Publish(sbhsd.Reading{USB: 3, Label: "bench", Temperature: 42.7, Fan: sbhsd.ToPtr(40), ReadAt: at})
	require.NoError(t, err)

	require.Len(t, client.messages, 1)
	m := client.messages[0]
	require.Equal(t, "lab/sbhs/usb3/temperature", m.topic)
	require.Equal(t, byte(1), m.qos)
	require.False(t, m.retained)

	var r sbhsd.Reading
	require.NoError(t, json.Unmarshal(m.payload, &r))
	require.Equal(t, 42.7, r.Temperature)
	require.Equal(t, 40, *r.Fan)
	require.Nil(t, r.Heat)

	p.Close()
	require.True(t, client.disconnected)
}

func TestPublish_Failures(t *testing.T) {
	errBroker := errors.New("not authorized")

	p := New(&fakeClient{token: fakeToken{err: errBroker}}, "sbhs", 0)
	require.ErrorIs(t, p.Publish(sbhsd.Reading{}), errBroker)

	p = New(&fakeClient{token: fakeToken{timeout: true}}, "sbhs", 0)
	require.ErrorContains(t, p.Publish(sbhsd.Reading{}), "timeout")
}
