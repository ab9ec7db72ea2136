package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/burntcarrot/otpad/commons"
	"github.com/burntcarrot/otpad/ot"
)

var errUsage = errors.New("usage: insert <pos> <text> | append <text> | delete <pos> <len> | sync | quit")

// command is one parsed line from the command input.
type command struct {
	payload ot.Payload
	atEnd   bool
	sync    bool
	quit    bool
}

// parseCommand parses a command line. Inserted text keeps its spaces, and \n is read as a newline.
func parseCommand(line string) (command, error) {
	fields := strings.SplitN(strings.TrimLeft(line, " "), " ", 3)

	switch fields[0] {
	case "insert", "i":
		if len(fields) < 3 {
			return command{}, errUsage
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return command{}, fmt.Errorf("bad position %q: %w", fields[1], errUsage)
		}
		return command{payload: ot.Insert{Position: pos, Text: unescape(fields[2])}}, nil

	case "append", "a":
		text := strings.TrimPrefix(strings.TrimLeft(line, " "), fields[0]+" ")
		if len(fields) < 2 || text == "" {
			return command{}, errUsage
		}
		return command{payload: ot.Insert{Text: unescape(text)}, atEnd: true}, nil

	case "delete", "d":
		if len(fields) != 3 {
			return command{}, errUsage
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return command{}, fmt.Errorf("bad position %q: %w", fields[1], errUsage)
		}
		length, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return command{}, fmt.Errorf("bad length %q: %w", fields[2], errUsage)
		}
		return command{payload: ot.Delete{Position: pos, Length: length}}, nil

	case "sync", "s":
		return command{sync: true}, nil

	case "quit", "q":
		return command{quit: true}, nil
	}

	return command{}, errUsage
}

func unescape(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

// performOperation applies a local edit and sends it to the server if nothing else is in flight.
func (m *model) performOperation(cmd command) {
	if m.doc == nil {
		m.status = "not synced yet"
		return
	}

	p := cmd.payload
	if cmd.atEnd {
		p = ot.Insert{Position: utf8.RuneCountInString(m.doc.Text()), Text: p.(ot.Insert).Text}
	}

	op, ok, err := m.doc.Local(p)
	if err != nil {
		logger.Errorf("local edit failed: %v", err)
		m.status = err.Error()
		return
	}
	logger.Infof("LOCAL %v", op)

	if ok {
		m.send(commons.Message{Type: commons.OperationMessage, Operation: &op})
	}
}

// handleMsg updates the local document with the contents of a server message.
func (m *model) handleMsg(msg commons.Message) {
	switch msg.Type {
	case commons.ClientIDMessage:
		m.id = msg.Text
		logger.Infof("CLIENT ID %v", m.id)

	case commons.DocSyncMessage:
		logger.Infof("DOCSYNC RECEIVED at version %d", msg.Version)
		if m.doc == nil {
			m.doc = ot.NewClient(m.id, "", m.path, msg.Text, msg.Version)
		} else {
			m.doc.Reset(msg.Text, msg.Version)
		}

	case commons.AckMessage:
		if m.doc == nil {
			return
		}
		logger.Infof("ACK version %d", msg.Version)
		if next, ok := m.doc.Ack(msg.Version); ok {
			m.send(commons.Message{Type: commons.OperationMessage, Operation: &next})
		}

	case commons.OperationMessage:
		if m.doc == nil || msg.Operation == nil {
			return
		}
		if err := m.doc.Remote(*msg.Operation, msg.Version); err != nil {
			logger.Errorf("failed to apply remote %v, resyncing: %v", msg.Operation, err)
			m.send(commons.Message{Type: commons.DocReqMessage})
			return
		}
		logger.Infof("REMOTE %v at version %d", msg.Operation, msg.Version)

	case commons.JoinMessage:
		m.status = fmt.Sprintf("%s has joined the session!", msg.Username)

	case commons.LeaveMessage:
		m.status = fmt.Sprintf("%s has left the session.", msg.Username)

	case commons.UsersMessage:
		m.users = msg.Text

	case commons.ErrorMessage:
		logger.Warnf("server refused edit: %s", msg.Text)
		m.status = "server: " + msg.Text
	}

	// printDoc is used for debugging purposes, toggled via the `--debug` flag.
	printDoc(m.doc)
}

// send writes msg to the server.
func (m *model) send(msg commons.Message) {
	if err := m.conn.WriteJSON(msg); err != nil {
		logger.Errorf("failed to send %s: %v", msg.Type, err)
		m.status = "lost connection!"
	}
}
