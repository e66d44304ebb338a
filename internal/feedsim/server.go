// Package feedsim serves a local stand-in for the Tempest websocket feed.
package feedsim

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"tempest_bridge/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	maxMsgSize = 1 << 12 // 4 KB
	backlogCap = 1024
)

// AckMode selects how the server answers commands.
type AckMode int

const (
	AckNormal  AckMode = iota // {"type":"ack","id":<command id>}
	AckWrongID                // ack with an id that matches nothing
	AckSilent                 // no reply at all
)

// Options configures a Server.
type Options struct {
	Token      string // required credential; empty accepts any
	TokenParam string // query parameter carrying the credential, default "token"
	AckMode    AckMode
	// BeforeAck frames are written ahead of every command reply.
	BeforeAck [][]byte
	// NoWelcome suppresses the connection_opened frame.
	NoWelcome bool
}

// Command is a control frame received from a client.
type Command struct {
	Type      string      `json:"type"`
	ID        string      `json:"id"`
	DeviceID  json.Number `json:"device_id,omitempty"`
	StationID json.Number `json:"station_id,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server implements http.Handler. Pushed frames reach every subscribed connection;
// frames pushed while none is subscribed are held until one is.
type Server struct {
	opts Options
	log  *logger.Logger

	mu          sync.Mutex
	conns       map[*simConn]struct{}
	backlog     [][]byte
	commands    []Command
	connections int
}

type simConn struct {
	ws         *websocket.Conn
	wmu        sync.Mutex
	subscribed bool
	dropped    bool
}

func (c *simConn) write(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func NewServer(opts Options, log *logger.Logger) *Server {
	if opts.TokenParam == "" {
		opts.TokenParam = "token"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Server{opts: opts, log: log, conns: make(map[*simConn]struct{})}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.opts.Token != "" && r.URL.Query().Get(s.opts.TokenParam) != s.opts.Token {
		s.log.Infow("feedsim_unauthorized", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorw("feedsim_upgrade_failed", "err", err)
		return
	}
	ws.SetReadLimit(maxMsgSize)

	c := &simConn{ws: ws}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.connections++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	if !s.opts.NoWelcome {
		if err := c.write([]byte(`{"type":"connection_opened"}`)); err != nil {
			return
		}
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			s.log.Debugw("feedsim_read_closed", "err", err)
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.log.Warnw("feedsim_bad_command", "err", err, "payload", string(data))
			continue
		}
		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()

		if err := s.reply(c, cmd); err != nil {
			return
		}
		switch cmd.Type {
		case "listen_start_events":
			s.markSubscribed(c, true)
		case "listen_rapid_stop":
			s.markSubscribed(c, false)
		}
	}
}

func (s *Server) reply(c *simConn, cmd Command) error {
	for _, f := range s.opts.BeforeAck {
		if err := c.write(f); err != nil {
			return err
		}
	}
	var id string
	switch s.opts.AckMode {
	case AckSilent:
		return nil
	case AckWrongID:
		id = "unrelated-" + cmd.ID
	default:
		id = cmd.ID
	}
	ack, _ := json.Marshal(map[string]string{"type": "ack", "id": id})
	return c.write(ack)
}

func (s *Server) markSubscribed(c *simConn, on bool) {
	s.mu.Lock()
	if c.dropped {
		s.mu.Unlock()
		return
	}
	c.subscribed = on
	var flush [][]byte
	if on {
		flush = s.backlog
		s.backlog = nil
	}
	s.mu.Unlock()

	for _, f := range flush {
		if err := c.write(f); err != nil {
			return
		}
	}
}

// Push sends raw to all subscribed connections.
func (s *Server) Push(raw []byte) {
	s.mu.Lock()
	var targets []*simConn
	for c := range s.conns {
		if c.subscribed {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		if len(s.backlog) < backlogCap {
			s.backlog = append(s.backlog, raw)
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.write(raw); err != nil {
			s.log.Debugw("feedsim_push_failed", "err", err)
		}
	}
}

// DropConnections closes every open connection without a close handshake.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.ws.Close()
		c.subscribed = false
		c.dropped = true
	}
}

// Commands returns the control frames received so far, in order.
func (s *Server) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// CommandTypes returns just the type of each received command.
func (s *Server) CommandTypes() []string {
	cmds := s.Commands()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Type
	}
	return out
}

// Connections returns how many websocket connections were accepted.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}
