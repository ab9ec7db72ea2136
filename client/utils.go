package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/burntcarrot/otpad/ot"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
	flag "github.com/spf13/pflag"
)

// Flags represents the command-line flags that are passed to otpad's client.
type Flags struct {
	Server string
	Secure bool
	Doc    string
	Name   string
	Debug  bool
}

// parseFlags parses command-line flags.
func parseFlags() Flags {
	serverAddr := flag.String("server", "localhost:9000", "The network address of the server")
	useSecureConn := flag.Bool("secure", false, "Enable a secure WebSocket connection (wss://)")
	doc := flag.String("doc", "scratch.txt", "The document to edit")
	name := flag.String("name", "", "The name shown to other participants (prompted when empty)")
	enableDebug := flag.Bool("debug", false, "Enable debugging mode to show more verbose logs")

	flag.Parse()

	return Flags{
		Server: *serverAddr,
		Secure: *useSecureConn,
		Doc:    *doc,
		Name:   *name,
		Debug:  *enableDebug,
	}
}

// createConn creates a WebSocket connection to the document.
func createConn(flags Flags) (*websocket.Conn, *http.Response, error) {
	u := url.URL{Scheme: "ws", Host: flags.Server, Path: "/docs/" + flags.Doc}
	if flags.Secure {
		u.Scheme = "wss"
	}

	// Get WebSocket connection.
	dialer := websocket.Dialer{
		HandshakeTimeout: 2 * time.Minute,
	}

	return dialer.Dial(u.String(), nil)
}

// logDir returns the directory holding the client's log files, creating it
// under the home directory when possible. It falls back to the working directory.
func logDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".", nil
	}

	dir := filepath.Join(homeDir, ".otpad")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	return dir, nil
}

// setupLogger points logger at the log files under ~/.otpad.
// The terminal belongs to the UI, so nothing is written to it.
// Warnings and errors go to otpad.log, everything else to otpad-debug.log.
func setupLogger(logger *logrus.Logger, flags Flags) ([]*os.File, error) {
	dir, err := logDir()
	if err != nil {
		return nil, err
	}

	var files []*os.File
	for _, name := range []string{"otpad.log", "otpad-debug.log"} {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) // skipcq: GSC-G302
		if err != nil {
			closeLogFiles(files)
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		files = append(files, f)
	}

	logger.SetOutput(io.Discard)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)
	if flags.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.AddHook(&writer.Hook{
		Writer: files[0],
		LogLevels: []logrus.Level{
			logrus.WarnLevel,
			logrus.ErrorLevel,
			logrus.FatalLevel,
			logrus.PanicLevel,
		},
	})
	logger.AddHook(&writer.Hook{
		Writer: files[1],
		LogLevels: []logrus.Level{
			logrus.TraceLevel,
			logrus.DebugLevel,
			logrus.InfoLevel,
		},
	})

	return files, nil
}

// closeLogFiles closes the files opened by setupLogger.
func closeLogFiles(files []*os.File) {
	for _, f := range files {
		if err := f.Close(); err != nil {
			fmt.Printf("Failed to close %s: %s\n", f.Name(), err)
		}
	}
}

// printDoc "prints" the document state to the logs.
func printDoc(doc *ot.Client) {
	if doc == nil || !flags.Debug {
		return
	}
	logger.WithFields(logrus.Fields{
		"version": doc.Version(),
		"pending": doc.Pending(),
	}).Debugf("document state: %q", doc.Text())
}
