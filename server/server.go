package main

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/burntcarrot/otpad/commons"
	"github.com/burntcarrot/otpad/ot"
	"github.com/burntcarrot/otpad/store"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// sendBuffer is the number of messages queued per participant before it is considered too slow and dropped.
const sendBuffer = 256

// storeTimeout bounds loading and saving a document snapshot.
const storeTimeout = 5 * time.Second

// Server relays edits between the participants of each document, running every edit through the engine.
type Server struct {
	engine *ot.Engine
	docs   store.Store
	logger logrus.FieldLogger
	maxLag int

	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[string]*room
}

// room holds the participants and the current text of one document.
// Every engine call for the document happens with mu held.
type room struct {
	path    string
	session string

	mu           sync.Mutex
	loaded       bool
	closed       bool
	text         string
	participants map[uuid.UUID]*participant
}

// participant is one websocket connection.
type participant struct {
	id   uuid.UUID
	name string
	conn *websocket.Conn
	out  chan commons.Message
}

// NewServer returns a Server running edits through engine and persisting
// documents in docs. Edits lagging more than maxLag versions behind are
// refused; zero disables the bound.
func NewServer(engine *ot.Engine, docs store.Store, logger logrus.FieldLogger, maxLag int) *Server {
	return &Server{
		engine: engine,
		docs:   docs,
		logger: logger,
		maxLag: maxLag,
		rooms:  make(map[string]*room),
	}
}

// Router returns the HTTP handler serving documents at /docs/{path}.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/docs/{path:.+}", s.handleConn)
	return r
}

// handleConn upgrades the connection and serves one participant until it disconnects.
func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]

	// Upgrade incoming HTTP connections to WebSocket connections
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("Error upgrading connection to websocket: %v", err)
		return
	}
	defer conn.Close()

	p := &participant{
		id:   uuid.New(),
		conn: conn,
		out:  make(chan commons.Message, sendBuffer),
	}
	log := s.logger.WithFields(logrus.Fields{"path": path, "client": p.id})

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.writePump(log)
	}()
	defer func() {
		close(p.out)
		<-done
	}()

	p.send(log, commons.Message{Type: commons.ClientIDMessage, ID: p.id, Text: p.id.String()})

	// Leave before the deferred close of p.out, so that no broadcast reaches a closed queue.
	var rm *room
	defer func() {
		if rm != nil {
			s.leave(rm, p)
		}
	}()

	for {
		var msg commons.Message

		// Read message from the connection.
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("websocket error: %v", err)
			}
			break
		}

		if rm == nil && msg.Type != commons.JoinMessage {
			p.send(log, commons.Message{Type: commons.ErrorMessage, ID: p.id, Text: "join the document first"})
			continue
		}

		switch msg.Type {
		case commons.JoinMessage:
			if rm == nil {
				rm = s.join(r.Context(), path, p, msg.Username)
			}
		case commons.OperationMessage:
			s.submit(rm, p, msg)
		case commons.DocReqMessage:
			s.sync(rm, p)
		case commons.LeaveMessage:
			return
		default:
			log.Debugf("ignoring %q message", msg.Type)
		}
	}
}

// room returns the room of path, creating it if needed.
func (s *Server) room(path string) *room {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[path]
	if !ok {
		rm = &room{
			path:         path,
			session:      uuid.NewString(),
			participants: make(map[uuid.UUID]*participant),
		}
		s.rooms[path] = rm
	}
	return rm
}

// join adds p to the room of path and sends it the current document.
func (s *Server) join(ctx context.Context, path string, p *participant, name string) *room {
	for {
		rm := s.room(path)

		rm.mu.Lock()
		if rm.closed {
			// The last participant left while we were looking it up.
			rm.mu.Unlock()
			continue
		}

		if !rm.loaded {
			rm.text = s.load(ctx, path)
			rm.loaded = true
		}

		p.name = name
		rm.participants[p.id] = p
		s.syncLocked(rm, p)
		rm.broadcast(s.logger, commons.Message{Type: commons.JoinMessage, Username: name, ID: p.id}, p.id)
		rm.broadcast(s.logger, commons.Message{Type: commons.UsersMessage, Text: rm.users()}, uuid.Nil)
		rm.mu.Unlock()

		color.Green("%s >> %s joined %s\n", time.Now().Format(time.ANSIC), name, path)
		return rm
	}
}

// load returns the stored text of path, or the empty string for new documents.
func (s *Server) load(ctx context.Context, path string) string {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	text, err := s.docs.Load(ctx, path)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.WithField("path", path).Errorf("Error loading document, starting empty: %v", err)
		}
		return ""
	}
	return text
}

// submit runs an edit through the engine, acknowledges it to p and relays it to everyone else.
func (s *Server) submit(rm *room, p *participant, msg commons.Message) {
	log := s.logger.WithFields(logrus.Fields{"path": rm.path, "client": p.id})

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if msg.Operation == nil {
		p.send(log, commons.Message{Type: commons.ErrorMessage, ID: p.id, Text: "operation message without operation"})
		return
	}

	op := *msg.Operation
	op.Author = p.id.String()
	op.Session = rm.session
	op.Path = rm.path

	version := s.engine.Version(rm.path)
	if s.maxLag > 0 && version-op.BaseVersion > s.maxLag {
		log.Infof("edit lags %d versions behind, resyncing", version-op.BaseVersion)
		p.send(log, commons.Message{Type: commons.ErrorMessage, ID: p.id, Text: "too far behind, resyncing"})
		s.syncLocked(rm, p)
		return
	}

	res, err := s.engine.Accept(op, rm.text)
	if err != nil {
		log.Warnf("Error accepting %v: %v", op, err)
		p.send(log, commons.Message{Type: commons.ErrorMessage, ID: p.id, Text: err.Error()})
		s.syncLocked(rm, p)
		return
	}
	rm.text = res.Text

	p.send(log, commons.Message{Type: commons.AckMessage, ID: p.id, Version: res.Version(), Operation: &res.Operation})
	rm.broadcast(s.logger, commons.Message{
		Type:      commons.OperationMessage,
		Username:  p.name,
		ID:        p.id,
		Version:   res.Version(),
		Operation: &res.Operation,
	}, p.id)
}

// sync sends p the current document.
func (s *Server) sync(rm *room, p *participant) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	s.syncLocked(rm, p)
}

func (s *Server) syncLocked(rm *room, p *participant) {
	p.send(s.logger, commons.Message{
		Type:    commons.DocSyncMessage,
		ID:      p.id,
		Text:    rm.text,
		Version: s.engine.Version(rm.path),
	})
}

// leave removes p from the room. The last participant to leave saves the
// document and closes it in the engine.
func (s *Server) leave(rm *room, p *participant) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, ok := rm.participants[p.id]; !ok {
		return
	}
	delete(rm.participants, p.id)
	color.Yellow("%s >> %s left %s\n", time.Now().Format(time.ANSIC), p.name, rm.path)

	if len(rm.participants) > 0 {
		rm.broadcast(s.logger, commons.Message{Type: commons.LeaveMessage, Username: p.name, ID: p.id}, p.id)
		rm.broadcast(s.logger, commons.Message{Type: commons.UsersMessage, Text: rm.users()}, uuid.Nil)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.docs.Save(ctx, rm.path, rm.text); err != nil {
		s.logger.WithField("path", rm.path).Errorf("Error saving document: %v", err)
	}

	s.engine.CloseDocument(rm.path)
	rm.closed = true

	s.mu.Lock()
	delete(s.rooms, rm.path)
	s.mu.Unlock()
}

// broadcast sends msg to every participant except skip.
func (rm *room) broadcast(logger logrus.FieldLogger, msg commons.Message, skip uuid.UUID) {
	for id, p := range rm.participants {
		// Check the UUID to prevent sending messages to their origin.
		if id != skip {
			p.send(logger, msg)
		}
	}
}

// users returns the comma-separated, sorted names of the participants.
func (rm *room) users() string {
	names := make([]string, 0, len(rm.participants))
	for _, p := range rm.participants {
		names = append(names, p.name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// send queues msg for p without blocking. A participant that cannot keep up is disconnected.
func (p *participant) send(logger logrus.FieldLogger, msg commons.Message) {
	select {
	case p.out <- msg:
	default:
		logger.Warnf("send buffer full, dropping client %v", p.id)
		p.conn.Close()
	}
}

// writePump writes queued messages to the connection until the queue is closed.
func (p *participant) writePump(logger logrus.FieldLogger) {
	for msg := range p.out {
		if err := p.conn.WriteJSON(msg); err != nil {
			logger.Debugf("Error sending message to client: %v", err)
		}
	}
}
