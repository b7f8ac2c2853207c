package live

import (
	"encoding/json"
	"testing"
	"time"

	"vastra/models"
)

func TestHubRegisterBroadcastUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{
		Send: make(chan []byte, 10),
		Room: "owner1",
	}
	hub.register <- client

	update := models.StatusUpdate{OrderID: "ORD1", OwnerID: "owner1", Status: models.StatusShipped}
	hub.BroadcastStatus(update)

	select {
	case got := <-client.Send:
		var decoded models.StatusUpdate
		if err := json.Unmarshal(got, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if decoded != update {
			t.Fatalf("got %+v, want %+v", decoded, update)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for broadcast")
	}

	hub.unregister <- client
}

func TestBroadcastDoesNotLeakAcrossRooms(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	mine := &Client{Send: make(chan []byte, 10), Room: "owner1"}
	other := &Client{Send: make(chan []byte, 10), Room: "owner2"}
	hub.register <- mine
	hub.register <- other

	hub.BroadcastStatus(models.StatusUpdate{OrderID: "ORD1", OwnerID: "owner1", Status: models.StatusDelivered})

	select {
	case <-mine.Send:
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for broadcast")
	}

	select {
	case got := <-other.Send:
		t.Fatalf("other room received %s", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastWithoutOwnerIsDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := &Client{Send: make(chan []byte, 10), Room: ""}
	hub.register <- client

	hub.BroadcastStatus(models.StatusUpdate{OrderID: "ORD1", Status: models.StatusShipped})

	select {
	case got := <-client.Send:
		t.Fatalf("unexpected delivery %s", got)
	case <-time.After(100 * time.Millisecond):
	}
}
