package events

import (
	"testing"

	"github.com/kolabhq/tilepad/pkg/channel"
	"github.com/kolabhq/tilepad/pkg/eventlog"
	"github.com/kolabhq/tilepad/pkg/model"
	"github.com/kolabhq/tilepad/pkg/presence"
	"github.com/kolabhq/tilepad/pkg/realtime"
)

type recordingMember struct {
	id       string
	received []model.Event
}

func (m *recordingMember) ID() string { return m.id }
func (m *recordingMember) Deliver(evt model.Event) {
	m.received = append(m.received, evt)
}

func newBoundFacade() (*Facade, *channel.Router, *eventlog.Log) {
	pres := presence.New()
	channels := channel.New()
	elog := eventlog.New(100)
	rt := realtime.NewServer(pres, channels, elog, nil, realtime.Options{})
	facade := New(rt, elog.Since, pres.List)
	return facade, channels, elog
}

func TestNilServerFacadeIsNoOp(t *testing.T) {
	facade := New(nil, nil, nil)
	// Must not panic, and must not crash despite no realtime server bound.
	facade.NotifyTileCreated("t1", nil, "u1", "")
	facade.NotifyInferenceSaved("t1", nil, "u1", "")
	facade.PublishUserAction(UserAction{UserID: "u1", Action: "x"})
}

func TestNotifyTileCreatedReachesGlobalMember(t *testing.T) {
	facade, channels, _ := newBoundFacade()
	member := &recordingMember{id: "m1"}
	channels.Join(model.GlobalChannel, member)

	facade.NotifyTileCreated("t1", map[string]any{"label": "x"}, "u1", "")

	if len(member.received) != 1 {
		t.Fatalf("expected 1 event delivered, got %d", len(member.received))
	}
	if member.received[0].Type != model.EventTileCreated {
		t.Fatalf("expected tile:created, got %s", member.received[0].Type)
	}
	if member.received[0].Data["tileId"] != "t1" {
		t.Fatalf("expected tileId in payload, got %+v", member.received[0].Data)
	}
}

func TestNotifyTileCreatedScopesToDomainChannel(t *testing.T) {
	facade, channels, _ := newBoundFacade()
	globalMember := &recordingMember{id: "g"}
	domainMember := &recordingMember{id: "d"}
	channels.Join(model.GlobalChannel, globalMember)
	channels.Join(model.DomainChannel("physics"), domainMember)

	facade.NotifyTileCreated("t1", nil, "u1", "physics")

	if len(globalMember.received) != 0 {
		t.Fatalf("expected global member to receive nothing, got %d", len(globalMember.received))
	}
	if len(domainMember.received) != 1 {
		t.Fatalf("expected domain member to receive 1 event, got %d", len(domainMember.received))
	}
}

func TestNotifyDocumentOperationPublishesToDocumentDomain(t *testing.T) {
	facade, channels, _ := newBoundFacade()
	member := &recordingMember{id: "m1"}
	channels.Join(model.DomainChannel("doc1"), member)

	facade.NotifyDocumentOperation("doc1", model.Operation{ID: "op1", UserID: "u1", Type: model.OpUpdate, Path: "title"})

	if len(member.received) != 1 || member.received[0].Type != model.EventDocumentOperation {
		t.Fatalf("expected 1 document:operation event, got %+v", member.received)
	}
}

func TestGetEventsSincePassesThroughToLog(t *testing.T) {
	facade, _, elog := newBoundFacade()
	elog.Append(model.Event{Type: model.EventUserJoined, Timestamp: 100})

	got := facade.GetEventsSince(50)
	if len(got) != 1 {
		t.Fatalf("expected 1 event since t=50, got %d", len(got))
	}
}

func TestGetActiveUsersNilWhenUnbound(t *testing.T) {
	facade := New(nil, nil, nil)
	if got := facade.GetActiveUsers(); got != nil {
		t.Fatalf("expected nil active users, got %v", got)
	}
}
