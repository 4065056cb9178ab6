package mock

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	DefaultDevice  = "SD2SNES COM3"
	DefaultVersion = "1.11.0"
	DefaultType    = "SD2SNES"
	MenuPath       = "/boot/menu.bin"
)

type request struct {
	Opcode   string   `json:"Opcode"`
	Space    string   `json:"Space"`
	Flags    []string `json:"Flags"`
	Operands []string `json:"Operands"`
}

type result struct {
	Results []string `json:"Results"`
}

// Server simulates a usb2snes service with one SNES device attached.
type Server struct {
	log    *zap.Logger
	memory Memory

	lis      net.Listener
	http     *http.Server
	handlers sync.WaitGroup

	lock     sync.Mutex
	devices  []string
	game     string
	flags    []string
	files    map[string][]byte
	conns    map[net.Conn]struct{}
	history  []string // opcodes received, in order
	names    []string // client names announced
	failOn   map[string]bool
	maxFrame int
	closing  bool
}

func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.L()
	}
	return &Server{
		log:      logger,
		devices:  []string{DefaultDevice},
		game:     "/roms/sm.sfc",
		flags:    []string{"NO_CONTROL_CMD"},
		files:    make(map[string][]byte),
		conns:    make(map[net.Conn]struct{}),
		failOn:   make(map[string]bool),
		maxFrame: 1024,
	}
}

// Listen starts serving on addr ("127.0.0.1:0" picks a free port).
func (s *Server) Listen(addr string) (err error) {
	s.lis, err = net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mock: listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.HandlerFunc(s.upgrade))
	s.http = &http.Server{Handler: mux}

	go func() {
		if err := s.http.Serve(s.lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve", zap.Error(err))
		}
	}()

	s.log.Info("listening", zap.String("url", s.URL()))
	return nil
}

func (s *Server) URL() string {
	return "ws://" + s.lis.Addr().String()
}

func (s *Server) Memory() *Memory { return &s.memory }

// Close stops listening, drops every connection and waits for their handlers to exit.
func (s *Server) Close() (err error) {
	s.lock.Lock()
	s.closing = true
	s.lock.Unlock()

	if s.http != nil {
		err = multierr.Append(err, s.http.Close())
	}
	s.DropConnections()
	s.handlers.Wait()
	return
}

// SetDevices replaces the device list; no arguments simulates unplugged hardware.
func (s *Server) SetDevices(devices ...string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.devices = devices
}

// SetGame sets the ROM path reported by Info.
func (s *Server) SetGame(path string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.game = path
}

// SetMaxFrame limits the size of binary reply frames.
func (s *Server) SetMaxFrame(n int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.maxFrame = n
}

// FailOn makes the server drop the connection instead of answering the next opcode command.
func (s *Server) FailOn(opcode string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failOn[opcode] = true
}

// DropConnections closes every client connection and returns how many were open.
func (s *Server) DropConnections() (n int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
		n++
	}
	return
}

func (s *Server) History() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.history...)
}

func (s *Server) Names() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.names...)
}

func (s *Server) File(path string) ([]byte, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	data, ok := s.files[path]
	return data, ok
}

func (s *Server) SetFile(path string, data []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.files[path] = data
}

func (s *Server) upgrade(rw http.ResponseWriter, req *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(req, rw)
	if err != nil {
		s.log.Warn("upgrade", zap.Error(err))
		return
	}

	s.lock.Lock()
	if s.closing {
		s.lock.Unlock()
		_ = conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.handlers.Add(1)
	s.lock.Unlock()

	go func() {
		defer s.handlers.Done()
		s.handle(conn)
	}()
}

func (s *Server) handle(conn net.Conn) {
	log := s.log.With(zap.String("remote", conn.RemoteAddr().String()))
	defer func() {
		s.lock.Lock()
		delete(s.conns, conn)
		s.lock.Unlock()
		_ = conn.Close()
	}()

	attached := ""
	for {
		p, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			log.Debug("connection finished", zap.Error(err))
			return
		}
		if op != ws.OpText {
			log.Warn("unexpected binary frame", zap.Int("size", len(p)))
			continue
		}

		var r request
		if err = json.Unmarshal(p, &r); err != nil {
			log.Warn("bad request", zap.Error(err))
			return
		}
		if !s.accept(r) {
			log.Info("injected failure", zap.String("opcode", r.Opcode))
			return
		}

		if err = s.execute(conn, &attached, r); err != nil {
			log.Info("closing connection", zap.String("opcode", r.Opcode), zap.Error(err))
			return
		}
	}
}

// accept records r and reports whether it should be served.
func (s *Server) accept(r request) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.history = append(s.history, r.Opcode)
	if r.Opcode == "Name" && len(r.Operands) > 0 {
		s.names = append(s.names, r.Operands[0])
	}
	if s.failOn[r.Opcode] {
		delete(s.failOn, r.Opcode)
		return false
	}
	return true
}

func (s *Server) execute(conn net.Conn, attached *string, r request) (err error) {
	switch r.Opcode {
	case "Name", "Reset":
		return nil
	case "AppVersion":
		return s.reply(conn, "QUsb2Snes-mock-"+DefaultVersion)
	case "DeviceList":
		s.lock.Lock()
		devices := append([]string{}, s.devices...)
		s.lock.Unlock()
		return s.reply(conn, devices...)
	case "Attach":
		if len(r.Operands) != 1 || !s.hasDevice(r.Operands[0]) {
			return fmt.Errorf("attach to unknown device %v", r.Operands)
		}
		*attached = r.Operands[0]
		return nil
	}

	// everything below requires an attached device:
	if *attached == "" || !s.hasDevice(*attached) {
		return fmt.Errorf("%s without attached device", r.Opcode)
	}

	switch r.Opcode {
	case "Info":
		s.lock.Lock()
		results := append([]string{DefaultVersion, DefaultType, s.game}, s.flags...)
		s.lock.Unlock()
		return s.reply(conn, results...)
	case "Boot":
		if len(r.Operands) != 1 {
			return fmt.Errorf("Boot expects 1 operand")
		}
		s.SetGame(r.Operands[0])
		return nil
	case "Menu":
		s.SetGame(MenuPath)
		return nil
	case "GetAddress":
		return s.getAddress(conn, r)
	case "GetFile":
		return s.getFile(conn, r)
	case "PutFile":
		return s.putFile(conn, r)
	case "List":
		return s.list(conn, r)
	case "Rename":
		if len(r.Operands) != 2 {
			return fmt.Errorf("Rename expects 2 operands")
		}
		s.lock.Lock()
		if data, ok := s.files[r.Operands[0]]; ok {
			delete(s.files, r.Operands[0])
			s.files[r.Operands[1]] = data
		}
		s.lock.Unlock()
		return nil
	case "Remove":
		if len(r.Operands) != 1 {
			return fmt.Errorf("Remove expects 1 operand")
		}
		s.lock.Lock()
		delete(s.files, r.Operands[0])
		s.lock.Unlock()
		return nil
	default:
		return fmt.Errorf("unsupported opcode %q", r.Opcode)
	}
}

func (s *Server) hasDevice(name string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, d := range s.devices {
		if d == name {
			return true
		}
	}
	return false
}

func (s *Server) reply(conn net.Conn, results ...string) error {
	if results == nil {
		results = []string{}
	}
	p, err := json.Marshal(&result{Results: results})
	if err != nil {
		return err
	}
	return wsutil.WriteServerMessage(conn, ws.OpText, p)
}

func (s *Server) sendBinary(conn net.Conn, data []byte) (err error) {
	s.lock.Lock()
	limit := s.maxFrame
	s.lock.Unlock()

	for len(data) > 0 {
		n := len(data)
		if n > limit {
			n = limit
		}
		if err = wsutil.WriteServerMessage(conn, ws.OpBinary, data[:n]); err != nil {
			return
		}
		data = data[n:]
	}
	return
}

func parseHex(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}

func (s *Server) getAddress(conn net.Conn, r request) error {
	if r.Space != "SNES" {
		return fmt.Errorf("GetAddress in unsupported space %q", r.Space)
	}
	if len(r.Operands) == 0 || len(r.Operands)%2 != 0 {
		return fmt.Errorf("GetAddress expects address/size pairs, got %d operands", len(r.Operands))
	}

	var data []byte
	for i := 0; i < len(r.Operands); i += 2 {
		addr, err := parseHex(r.Operands[i])
		if err != nil {
			return fmt.Errorf("GetAddress address: %w", err)
		}
		size, err := parseHex(r.Operands[i+1])
		if err != nil {
			return fmt.Errorf("GetAddress size: %w", err)
		}
		data = append(data, s.memory.Read(addr, int(size))...)
	}

	return s.sendBinary(conn, data)
}

func (s *Server) getFile(conn net.Conn, r request) error {
	if len(r.Operands) != 1 {
		return fmt.Errorf("GetFile expects 1 operand")
	}
	data, ok := s.File(r.Operands[0])
	if !ok {
		return fmt.Errorf("GetFile: no such file %q", r.Operands[0])
	}
	if err := s.reply(conn, strconv.FormatUint(uint64(len(data)), 16)); err != nil {
		return err
	}
	return s.sendBinary(conn, data)
}

func (s *Server) putFile(conn net.Conn, r request) error {
	if len(r.Operands) != 2 {
		return fmt.Errorf("PutFile expects 2 operands")
	}
	size, err := parseHex(r.Operands[1])
	if err != nil {
		return fmt.Errorf("PutFile size: %w", err)
	}

	data := make([]byte, 0, size)
	for len(data) < int(size) {
		p, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			return err
		}
		if op != ws.OpBinary {
			return fmt.Errorf("PutFile: expected binary frame")
		}
		data = append(data, p...)
	}

	s.SetFile(r.Operands[0], data)
	return nil
}

// list reports the files and directories directly below a path.
func (s *Server) list(conn net.Conn, r request) error {
	if len(r.Operands) != 1 {
		return fmt.Errorf("List expects 1 operand")
	}
	dir := strings.TrimSuffix(r.Operands[0], "/") + "/"

	s.lock.Lock()
	children := make(map[string]bool)
	for path := range s.files {
		if !strings.HasPrefix(path, dir) {
			continue
		}
		rest := strings.TrimPrefix(path, dir)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			children[rest[:i]] = false
		} else {
			children[rest] = true
		}
	}
	s.lock.Unlock()

	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, 0, len(names)*2)
	for _, name := range names {
		code := "0"
		if children[name] {
			code = "1"
		}
		results = append(results, code, name)
	}
	return s.reply(conn, results...)
}
