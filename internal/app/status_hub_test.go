package app_test

import (
	"testing"

	"moral-quiz-service/internal/app"
	"moral-quiz-service/internal/domain"
)

func TestStatusHubFanOut(t *testing.T) {
	hub := app.NewStatusHub()
	a, cancelA := hub.Subscribe("cs_1")
	b, cancelB := hub.Subscribe("cs_1")
	other, cancelOther := hub.Subscribe("cs_2")
	defer cancelOther()

	hub.Publish(domain.PurchaseStatusView{SessionID: "cs_1", Status: domain.PurchaseCompleted})

	for _, ch := range []<-chan domain.PurchaseStatusView{a, b} {
		if got := <-ch; got.Status != domain.PurchaseCompleted {
			t.Fatalf("unexpected update %+v", got)
		}
	}
	select {
	case got := <-other:
		t.Fatalf("unrelated subscriber got %+v", got)
	default:
	}

	cancelA()
	cancelA()
	if hub.Subscribers("cs_1") != 1 {
		t.Fatalf("expected one subscriber left")
	}
	if _, ok := <-a; ok {
		t.Fatalf("expected closed channel after cancel")
	}
	cancelB()
	if hub.Subscribers("cs_1") != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestStatusHubKeepsNewestForSlowSubscriber(t *testing.T) {
	hub := app.NewStatusHub()
	ch, cancel := hub.Subscribe("cs_1")
	defer cancel()

	for i := 0; i < 10; i++ {
		hub.Publish(domain.PurchaseStatusView{SessionID: "cs_1", Status: domain.PurchasePending})
	}
	hub.Publish(domain.PurchaseStatusView{SessionID: "cs_1", Status: domain.PurchaseFailed})

	var last domain.PurchaseStatusView
	for len(ch) > 0 {
		last = <-ch
	}
	if last.Status != domain.PurchaseFailed {
		t.Fatalf("expected newest update to survive, got %s", last.Status)
	}
}
