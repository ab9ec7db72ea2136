package ot

// Client is the participant side of the protocol an Engine serves. It keeps
// at most one operation in flight; edits made while waiting for the
// acknowledgement are buffered and sent one at a time.
//
// A Client is not safe for concurrent use.
type Client struct {
	author  string
	session string
	path    string

	text    string
	version int

	inflight *Operation
	buffer   []Operation
}

// NewClient returns a Client synchronized to text at version.
func NewClient(author, session, path, text string, version int) *Client {
	return &Client{
		author:  author,
		session: session,
		path:    path,
		text:    text,
		version: version,
	}
}

// Text returns the local document, including edits not yet acknowledged.
func (c *Client) Text() string {
	return c.text
}

// Version returns the last server version the client has seen.
func (c *Client) Version() int {
	return c.version
}

// Author returns the author id stamped on local operations.
func (c *Client) Author() string {
	return c.author
}

// Pending returns the number of local operations not yet acknowledged.
func (c *Client) Pending() int {
	n := len(c.buffer)
	if c.inflight != nil {
		n++
	}
	return n
}

// Local applies p to the local document. When no operation is in flight
// the returned operation must be sent to the server and ok is true.
func (c *Client) Local(p Payload) (op Operation, ok bool, err error) {
	op = New(c.author, c.session, c.path, c.version, p)

	text, err := Apply(op, c.text)
	if err != nil {
		return Operation{}, false, err
	}
	c.text = text

	if c.inflight == nil {
		c.inflight = &op
		return op, true, nil
	}
	c.buffer = append(c.buffer, op)
	return Operation{}, false, nil
}

// Ack confirms the operation in flight, which the server recorded as
// version. If edits were buffered meanwhile, the next one is returned for
// sending and ok is true.
func (c *Client) Ack(version int) (next Operation, ok bool) {
	c.inflight = nil
	c.version = version

	if len(c.buffer) == 0 {
		return Operation{}, false
	}

	next = c.buffer[0].WithBaseVersion(version)
	c.buffer = c.buffer[1:]
	c.inflight = &next
	return next, true
}

// Remote integrates an operation relayed by the server, which produced
// version. The operation is transformed past every local edit the server
// has not seen yet, and those edits past it.
func (c *Client) Remote(op Operation, version int) error {
	var inflight *Operation
	if c.inflight != nil {
		transformed := Transform(*c.inflight, op)
		op = Transform(op, *c.inflight)
		inflight = &transformed
	}

	buffer := make([]Operation, len(c.buffer))
	for i, b := range c.buffer {
		buffer[i] = Transform(b, op)
		op = Transform(op, b)
	}

	text, err := Apply(op, c.text)
	if err != nil {
		return err
	}

	c.text = text
	c.version = version
	c.inflight = inflight
	c.buffer = buffer
	return nil
}

// Reset discards every local edit and resynchronizes to text at version.
func (c *Client) Reset(text string, version int) {
	c.text = text
	c.version = version
	c.inflight = nil
	c.buffer = nil
}
