package commons

import (
	"github.com/burntcarrot/otpad/ot"
	"github.com/google/uuid"
)

// Message represents the message sent over the wire.
type Message struct {
	Username string `json:"username"`

	// Text represents the body of the message. It carries the document text for docSync messages, the
	// list of active users for users messages, and the error description for error messages.
	Text string `json:"text"`

	// Type represents the message type.
	Type MessageType `json:"type"`

	// ID represents the client's UUID. The server sets it on everything it relays.
	ID uuid.UUID `json:"ID"`

	// Version is the document version. Clients never send it; they use Operation.BaseVersion.
	Version int `json:"version"`

	// Operation represents the OT operation, for operation and ack messages.
	Operation *ot.Operation `json:"operation,omitempty"`
}

// MessageType represents the type of the message.
type MessageType string

// Currently, otpad supports 9 message types:
// - join (a participant joined, carries the username)
// - clientID (the author id the server assigned to a connection)
// - docSync (document text and version, sent on join and after errors)
// - docReq (a client asks for a fresh docSync)
// - operation (a client submits an edit, or the server relays a reconciled one)
// - ack (the server accepted the submitter's edit at Version)
// - users (the list of active users)
// - leave (a participant left)
// - error (an edit was refused)

const (
	JoinMessage      MessageType = "join"
	ClientIDMessage  MessageType = "clientID"
	DocSyncMessage   MessageType = "docSync"
	DocReqMessage    MessageType = "docReq"
	OperationMessage MessageType = "operation"
	AckMessage       MessageType = "ack"
	UsersMessage     MessageType = "users"
	LeaveMessage     MessageType = "leave"
	ErrorMessage     MessageType = "error"
)
