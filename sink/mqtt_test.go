package sink

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"matrixboard/canvas"
)

type fakeToken struct {
	err     error
	pending bool
}

func (t *fakeToken) Wait() bool                     { return !t.pending }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.pending }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.pending {
		close(ch)
	}
	return ch
}

type message struct {
	topic   string
	payload []byte
}

type fakeBroker struct {
	mu           sync.Mutex
	published    []message
	disconnected int
	err          error
	pending      bool
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, _ := payload.([]byte)
	b.published = append(b.published, message{topic: topic, payload: append([]byte(nil), data...)})
	return &fakeToken{err: b.err, pending: b.pending}
}

func (b *fakeBroker) Disconnect(uint) {
	b.mu.Lock()
	b.disconnected++
	b.mu.Unlock()
}

func TestMQTTPublishesChangedFrames(t *testing.T) {
	b := &fakeBroker{}
	m := NewMQTT(b, "board", time.Second, nil)

	c := canvas.New(2, 1)
	c.Set(0, 0, canvas.Red)
	for i := 0; i < 3; i++ {
		if err := m.Present(c); err != nil {
			t.Fatalf("Present: %v", err)
		}
	}
	c.Set(1, 0, canvas.White)
	if err := m.Present(c); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if len(b.published) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(b.published))
	}
	got := b.published[1]
	if got.topic != "board/frame" {
		t.Fatalf("unexpected topic %q", got.topic)
	}
	want := []byte{255, 0, 0, 255, 255, 255}
	if string(got.payload) != string(want) {
		t.Fatalf("expected raw RGB %v, got %v", want, got.payload)
	}

	if err := m.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := m.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	last := b.published[len(b.published)-1]
	if last.topic != "board/clear" || len(last.payload) != 0 {
		t.Fatalf("expected empty clear message, got %+v", last)
	}
	if b.disconnected != 1 {
		t.Fatalf("expected one disconnect, got %d", b.disconnected)
	}
}

func TestMQTTPublishFailure(t *testing.T) {
	errBroker := errors.New("not authorised")
	b := &fakeBroker{err: errBroker}
	m := NewMQTT(b, "board", time.Second, nil)
	if err := m.Present(canvas.New(2, 2)); !errors.Is(err, errBroker) {
		t.Fatalf("expected broker error, got %v", err)
	}

	b = &fakeBroker{pending: true}
	m = NewMQTT(b, "board", time.Millisecond, nil)
	if err := m.Present(canvas.New(2, 2)); err == nil {
		t.Fatalf("expected timeout error")
	}
	if err := m.Clear(); err == nil {
		t.Fatalf("expected clear to report the timeout")
	}
	if b.disconnected != 1 {
		t.Fatalf("expected disconnect even when clear fails")
	}
}

func TestConnectionLostLoggerThrottles(t *testing.T) {
	var buf bytes.Buffer
	handler := connectionLostLogger(log.New(&buf, "", 0))
	for i := 0; i < 5; i++ {
		handler(nil, errors.New("EOF"))
	}
	if got := strings.Count(buf.String(), "connection lost"); got != 1 {
		t.Fatalf("expected one logged drop, got %d:\n%s", got, buf.String())
	}
}

func TestGeneratedClientIDsDiffer(t *testing.T) {
	a, b := generatedClientID(), generatedClientID()
	if a == b {
		t.Fatalf("expected distinct client ids, got %q twice", a)
	}
	if !strings.HasPrefix(a, "matrixboard-") || len(a) != len("matrixboard-")+12 {
		t.Fatalf("unexpected client id %q", a)
	}
}
