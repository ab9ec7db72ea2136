package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/burntcarrot/otpad/commons"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var (
	// flags holds the parsed command-line flags.
	flags Flags

	// logger writes to the log files under ~/.otpad.
	logger = logrus.New()
)

// ConnReader is the reading half of the server connection.
type ConnReader interface {
	ReadJSON(v interface{}) error
}

// ConnWriter is the writing half of the server connection.
type ConnWriter interface {
	WriteJSON(v interface{}) error
	Close() error
}

func main() {
	// Parse flags.
	flags = parseFlags()

	logFiles, err := setupLogger(logger, flags)
	if err != nil {
		color.Red("Logger error, exiting: %s", err)
		os.Exit(1)
	}
	defer closeLogFiles(logFiles)

	// Read username.
	name := flags.Name
	if name == "" {
		fmt.Printf("%s", color.YellowString("Enter your Name: "))
		s := bufio.NewScanner(os.Stdin)
		s.Scan()
		name = strings.TrimSpace(s.Text())
	}
	if name == "" {
		name = "anonymous"
	}

	// Get WebSocket connection.
	conn, _, err := createConn(flags)
	if err != nil {
		color.Red("Connection error, exiting: %s", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Send joining message.
	if err := conn.WriteJSON(commons.Message{Type: commons.JoinMessage, Username: name}); err != nil {
		color.Red("Connection error, exiting: %s", err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(conn, name, flags.Doc), tea.WithAltScreen())

	// Handle incoming messages concurrently.
	go readMessages(conn, p)

	if err := p.Start(); err != nil {
		logger.Errorf("UI error: %v", err)
		color.Red("UI error: %s", err)
		os.Exit(1)
	}

	color.Green("Goodbye %s!\n", name)
}

// readMessages forwards every message read from the connection to the UI.
func readMessages(conn ConnReader, p *tea.Program) {
	for {
		var msg commons.Message

		// Read message.
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("websocket error: %v", err)
			}
			p.Send(disconnectedMsg{err: err})
			return
		}

		logger.Debugf("message received: %+v", msg)
		p.Send(serverMsg(msg))
	}
}
