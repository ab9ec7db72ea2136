package main

import (
	"context"
	"io"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/burntcarrot/otpad/commons"
	"github.com/burntcarrot/otpad/ot"
	"github.com/burntcarrot/otpad/store"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// testClient is one websocket participant driving an ot.Client.
type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
	doc  *ot.Client
}

func newTestServer(t *testing.T, docs store.Store) *httptest.Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	srv := NewServer(ot.NewEngine(), docs, logger, 100)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

// dial connects to path, joins as name and waits for the document.
func dial(t *testing.T, ts *httptest.Server, path, name string) *testClient {
	t.Helper()

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/docs/" + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial error: %v\n", err)
	}
	t.Cleanup(func() { conn.Close() })

	c := &testClient{t: t, conn: conn}

	id := c.readUntil(commons.ClientIDMessage)
	c.id = id.Text

	c.write(commons.Message{Type: commons.JoinMessage, Username: name})
	doc := c.readUntil(commons.DocSyncMessage)
	c.doc = ot.NewClient(c.id, "", path, doc.Text, doc.Version)
	return c
}

func (c *testClient) write(msg commons.Message) {
	c.t.Helper()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("write error: %v\n", err)
	}
}

func (c *testClient) read() commons.Message {
	c.t.Helper()

	var msg commons.Message
	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.t.Fatalf("read error: %v\n", err)
	}
	return msg
}

// readUntil reads messages until one of type typ arrives.
func (c *testClient) readUntil(typ commons.MessageType) commons.Message {
	c.t.Helper()

	for {
		msg := c.read()
		if msg.Type == typ {
			return msg
		}
	}
}

// edit applies p locally and submits it.
func (c *testClient) edit(p ot.Payload) {
	c.t.Helper()

	op, ok, err := c.doc.Local(p)
	if err != nil || !ok {
		c.t.Fatalf("local edit: ok = %v, err = %v\n", ok, err)
	}
	c.write(commons.Message{Type: commons.OperationMessage, Operation: &op})
}

// settle integrates relayed edits until its own edit is acknowledged and remote edits have arrived.
func (c *testClient) settle(remote int) {
	c.t.Helper()

	acked := false
	for !acked || remote > 0 {
		msg := c.read()
		switch msg.Type {
		case commons.AckMessage:
			c.doc.Ack(msg.Version)
			acked = true
		case commons.OperationMessage:
			if err := c.doc.Remote(*msg.Operation, msg.Version); err != nil {
				c.t.Fatalf("remote edit: %v\n", err)
			}
			remote--
		}
	}
}

// receive integrates remote edits until the given number have arrived.
func (c *testClient) receive(remote int) {
	c.t.Helper()

	for remote > 0 {
		msg := c.readUntil(commons.OperationMessage)
		if err := c.doc.Remote(*msg.Operation, msg.Version); err != nil {
			c.t.Fatalf("remote edit: %v\n", err)
		}
		remote--
	}
}

func TestServerConcurrentEdits(t *testing.T) {
	docs := store.NewMemoryStore()
	if err := docs.Save(context.Background(), "notes.txt", "hello"); err != nil {
		t.Fatalf("error: %v\n", err)
	}
	ts := newTestServer(t, docs)

	alice := dial(t, ts, "notes.txt", "alice")
	bob := dial(t, ts, "notes.txt", "bob")

	if alice.doc.Text() != "hello" || bob.doc.Text() != "hello" {
		t.Fatalf("got initial texts %q and %q\n", alice.doc.Text(), bob.doc.Text())
	}

	alice.edit(ot.Insert{Position: 5, Text: "A"})
	bob.edit(ot.Insert{Position: 5, Text: "B"})

	alice.settle(1)
	bob.settle(1)

	want := "helloAB"
	if bob.id < alice.id {
		want = "helloBA"
	}

	for _, c := range []*testClient{alice, bob} {
		if c.doc.Text() != want || c.doc.Version() != 2 {
			t.Errorf("%s: got %q at version %d, expected %q at version 2\n", c.id, c.doc.Text(), c.doc.Version(), want)
		}
	}

	alice.write(commons.Message{Type: commons.DocReqMessage})
	doc := alice.readUntil(commons.DocSyncMessage)
	if doc.Text != want || doc.Version != 2 {
		t.Errorf("server has %q at version %d, expected %q at version 2\n", doc.Text, doc.Version, want)
	}
}

func TestServerRejectsInvalidEdit(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())
	alice := dial(t, ts, "empty.txt", "alice")

	op := ot.NewInsert(alice.id, "empty.txt", 0, 10, "x")
	alice.write(commons.Message{Type: commons.OperationMessage, Operation: &op})

	errMsg := alice.readUntil(commons.ErrorMessage)
	if !strings.Contains(errMsg.Text, ot.ErrPositionOutOfBounds.Error()) {
		t.Errorf("unexpected error text %q\n", errMsg.Text)
	}

	doc := alice.readUntil(commons.DocSyncMessage)
	if doc.Text != "" || doc.Version != 0 {
		t.Errorf("got %q at version %d after a rejected edit\n", doc.Text, doc.Version)
	}
}

func TestServerSavesOnLastLeave(t *testing.T) {
	docs := store.NewMemoryStore()
	ts := newTestServer(t, docs)

	alice := dial(t, ts, "dir/notes.txt", "alice")
	alice.edit(ot.Insert{Position: 0, Text: "saved"})
	alice.settle(0)
	alice.write(commons.Message{Type: commons.LeaveMessage})

	deadline := time.Now().Add(5 * time.Second)
	for {
		text, err := docs.Load(context.Background(), "dir/notes.txt")
		if err == nil && text == "saved" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("document not saved: %q, %v\n", text, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Reopening starts a fresh history on the saved text.
	bob := dial(t, ts, "dir/notes.txt", "bob")
	if bob.doc.Text() != "saved" || bob.doc.Version() != 0 {
		t.Errorf("got %q at version %d after reopening\n", bob.doc.Text(), bob.doc.Version())
	}
}

func TestServerOverlongDelete(t *testing.T) {
	docs := store.NewMemoryStore()
	if err := docs.Save(context.Background(), "notes.txt", "hello"); err != nil {
		t.Fatalf("error: %v\n", err)
	}
	ts := newTestServer(t, docs)

	alice := dial(t, ts, "notes.txt", "alice")
	bob := dial(t, ts, "notes.txt", "bob")

	bob.edit(ot.Delete{Position: 1, Length: math.MaxInt})
	bob.settle(0)
	alice.receive(1)

	// The room keeps working for everyone after the clamped delete.
	alice.edit(ot.Insert{Position: 1, Text: "i"})
	alice.settle(0)
	bob.receive(1)

	carol := dial(t, ts, "notes.txt", "carol")
	for _, c := range []*testClient{alice, bob, carol} {
		if c.doc.Text() != "hi" || c.doc.Version() != 2 {
			t.Errorf("%s: got %q at version %d, expected %q at version 2\n", c.id, c.doc.Text(), c.doc.Version(), "hi")
		}
	}
}

func TestServerDropsDisconnectedParticipant(t *testing.T) {
	ts := newTestServer(t, store.NewMemoryStore())

	alice := dial(t, ts, "notes.txt", "alice")
	bob := dial(t, ts, "notes.txt", "bob")

	// bob goes away without a leave message.
	bob.conn.Close()

	left := alice.readUntil(commons.LeaveMessage)
	if left.Username != "bob" {
		t.Errorf("got leave for %q, expected bob\n", left.Username)
	}
	users := alice.readUntil(commons.UsersMessage)
	if users.Text != "alice" {
		t.Errorf("got users %q, expected alice\n", users.Text)
	}

	alice.edit(ot.Insert{Position: 0, Text: "still here"})
	alice.settle(0)
	if alice.doc.Text() != "still here" || alice.doc.Version() != 1 {
		t.Errorf("got %q at version %d\n", alice.doc.Text(), alice.doc.Version())
	}
}
