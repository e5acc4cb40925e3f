package intake_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gyaneshwarpardhi/alertrelay/internal/alert"
	"github.com/gyaneshwarpardhi/alertrelay/internal/intake"
	"github.com/gyaneshwarpardhi/alertrelay/internal/store"
	"github.com/gyaneshwarpardhi/alertrelay/internal/webhook"
)

const secret = "whsec_test"

type fakePublisher struct {
	mu        sync.Mutex
	published []alert.Alert
}

func (p *fakePublisher) Publish(a alert.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, a)
}

func (p *fakePublisher) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, a := range p.published {
		if a.ID == id {
			n++
		}
	}
	return n
}

type fakeMirror struct{ ids []string }

func (m *fakeMirror) Enqueue(a alert.Alert) bool {
	m.ids = append(m.ids, a.ID)
	return true
}

func newService() (*intake.Service, *store.Log, *fakePublisher, *fakeMirror) {
	log := store.NewLog()
	pub := &fakePublisher{}
	mirror := &fakeMirror{}
	return intake.New(log, pub, mirror, secret, alert.Defaults{}), log, pub, mirror
}

func capturedBody(id string, amount int) []byte {
	return []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"amount":%d,"currency":"INR"}}}}`, id, amount))
}

func TestHandle_CapturedThenRetried(t *testing.T) {
	svc, log, pub, mirror := newService()
	body := capturedBody("pay_123", 50000)
	sig := webhook.Sign(body, secret)

	res := svc.Handle(body, sig)
	if res.Outcome != intake.Appended {
		t.Fatalf("first outcome = %v, want appended (err %v)", res.Outcome, res.Err)
	}
	if res.Alert.ID != "pay_123" || *res.Alert.Amount != 500 || res.Alert.Currency != "INR" {
		t.Errorf("alert = %+v", res.Alert)
	}

	res = svc.Handle(body, sig)
	if res.Outcome != intake.Duplicate {
		t.Fatalf("second outcome = %v, want duplicate", res.Outcome)
	}
	if !res.Outcome.Accepted() {
		t.Error("duplicate should be acknowledged")
	}
	if log.Len() != 1 {
		t.Errorf("log len = %d, want 1", log.Len())
	}
	if n := pub.count("pay_123"); n != 1 {
		t.Errorf("published %d times, want 1", n)
	}
	if len(mirror.ids) != 1 {
		t.Errorf("mirrored %d times, want 1", len(mirror.ids))
	}
}

func TestHandle_DuplicateReportsStoredAlert(t *testing.T) {
	svc, _, _, _ := newService()
	first := capturedBody("pay_fix", 50000)
	svc.Handle(first, webhook.Sign(first, secret))

	corrected := capturedBody("pay_fix", 70000)
	res := svc.Handle(corrected, webhook.Sign(corrected, secret))
	if res.Outcome != intake.Duplicate {
		t.Fatalf("outcome = %v, want duplicate", res.Outcome)
	}
	if *res.Alert.Amount != 500 || res.Alert.Seq != 1 {
		t.Errorf("duplicate result should carry the first record, got amount %v seq %d", *res.Alert.Amount, res.Alert.Seq)
	}
}

func TestHandle_UnhandledEvent(t *testing.T) {
	svc, log, pub, _ := newService()
	body := []byte(`{"event":"refund.created","payload":{"refund":{"entity":{"id":"rfnd_1"}}}}`)

	res := svc.Handle(body, webhook.Sign(body, secret))
	if res.Outcome != intake.Ignored || !res.Outcome.Accepted() {
		t.Fatalf("outcome = %v, want ignored", res.Outcome)
	}
	if log.Len() != 0 || len(pub.published) != 0 {
		t.Error("ignored event touched the log or relay")
	}
}

func TestHandle_TamperedSignature(t *testing.T) {
	svc, log, pub, _ := newService()
	body := capturedBody("pay_1", 100)
	sig := []byte(webhook.Sign(body, secret))
	if sig[0] == 'a' {
		sig[0] = 'b'
	} else {
		sig[0] = 'a'
	}

	res := svc.Handle(body, string(sig))
	if res.Outcome != intake.Rejected || res.Outcome.Accepted() {
		t.Fatalf("outcome = %v, want rejected", res.Outcome)
	}
	if !errors.Is(res.Err, webhook.ErrInvalidSignature) {
		t.Errorf("err = %v", res.Err)
	}
	if log.Len() != 0 || len(pub.published) != 0 {
		t.Error("rejected call touched the log or relay")
	}
}

func TestHandle_Malformed(t *testing.T) {
	svc, log, _, _ := newService()
	body := []byte(`{"event":"payment.captured",`)
	res := svc.Handle(body, webhook.Sign(body, secret))
	if res.Outcome != intake.Malformed || res.Outcome.Accepted() {
		t.Fatalf("outcome = %v, want malformed", res.Outcome)
	}
	if log.Len() != 0 {
		t.Error("malformed body appended")
	}

	// A bad event must not affect the next one.
	good := capturedBody("pay_after", 100)
	if res := svc.Handle(good, webhook.Sign(good, secret)); res.Outcome != intake.Appended {
		t.Errorf("next event outcome = %v", res.Outcome)
	}
}

func TestHandle_NoSecretRejectsEverything(t *testing.T) {
	log := store.NewLog()
	svc := intake.New(log, &fakePublisher{}, nil, "", alert.Defaults{})
	body := capturedBody("pay_1", 100)
	res := svc.Handle(body, webhook.Sign(body, ""))
	if res.Outcome != intake.Rejected || !errors.Is(res.Err, webhook.ErrNoSecret) {
		t.Errorf("outcome = %v err = %v", res.Outcome, res.Err)
	}
}

func TestSetSecret_Rotation(t *testing.T) {
	svc, _, _, _ := newService()
	body := capturedBody("pay_rot", 100)

	svc.SetSecret("rotated")
	if res := svc.Handle(body, webhook.Sign(body, secret)); res.Outcome != intake.Rejected {
		t.Errorf("old secret outcome = %v, want rejected", res.Outcome)
	}
	if res := svc.Handle(body, webhook.Sign(body, "rotated")); res.Outcome != intake.Appended {
		t.Errorf("new secret outcome = %v, want appended", res.Outcome)
	}
}

func TestSetDefaults(t *testing.T) {
	svc, _, _, _ := newService()
	svc.SetDefaults(alert.Defaults{Currency: "USD", AnonymousLabel: "Friend"})
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_d","amount":100}}}}`)
	res := svc.Handle(body, webhook.Sign(body, secret))
	if res.Alert.Currency != "USD" || res.Alert.Name != "Friend" {
		t.Errorf("alert = %+v", res.Alert)
	}
}

func TestHandle_ConcurrentPublishesInLogOrder(t *testing.T) {
	svc, log, pub, _ := newService()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				body := capturedBody(fmt.Sprintf("pay_%d_%d", w, i), 100)
				svc.Handle(body, webhook.Sign(body, secret))
				// Retries race with first deliveries.
				svc.Handle(body, webhook.Sign(body, secret))
			}
		}(w)
	}
	wg.Wait()

	if log.Len() != 200 || len(pub.published) != 200 {
		t.Fatalf("log = %d, published = %d, want 200", log.Len(), len(pub.published))
	}
	for i, a := range pub.published {
		if a.Seq != uint64(i+1) {
			t.Fatalf("publish %d has seq %d: out of log order", i, a.Seq)
		}
	}
}
