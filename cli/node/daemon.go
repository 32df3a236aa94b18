package node

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/indemnify/cman"
	"github.com/indemnify/cman/cli"
	"github.com/rs/zerolog"
	"golang.org/x/xerrors"
)

// SocketName is the name of the unix socket inside the config folder.
const SocketName = "daemon.sock"

const ioTimeout = 30 * time.Second

// Request is sent by a client to the daemon. Action is the index of the
// template registered by the builder.
type Request struct {
	ID     string
	Action uint16
	Flags  FlagSet
}

// event is streamed back by the daemon. The last one of a failed command
// carries the error.
type event struct {
	Err   bool
	Value string
}

// socketClient sends one request per connection to a unix socket daemon.
//
// - implements node.Client
type socketClient struct {
	socketpath  string
	out         io.Writer
	dialTimeout time.Duration
	dialFn      func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// Send implements node.Client. It writes the request and prints the output of
// the command until the daemon closes the connection.
func (c socketClient) Send(req Request) error {
	conn, err := c.dialFn("unix", c.socketpath, c.dialTimeout)
	if err != nil {
		return xerrors.Errorf("couldn't open connection: %v", err)
	}

	defer conn.Close()

	err = json.NewEncoder(conn).Encode(req)
	if err != nil {
		return xerrors.Errorf("couldn't write to daemon: %v", err)
	}

	dec := json.NewDecoder(conn)

	for {
		var evt event

		err = dec.Decode(&evt)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Errorf("failed to decode event: %v", err)
		}

		if evt.Err {
			return xerrors.New(evt.Value)
		}

		fmt.Fprintln(c.out, evt.Value)
	}
}

// socketDaemon serves the commands over a unix socket, so that access is
// controlled by the permissions of the config folder.
//
// - implements node.Daemon
type socketDaemon struct {
	sync.WaitGroup

	logger      zerolog.Logger
	socketpath  string
	injector    Injector
	actions     *actionMap
	closing     chan struct{}
	readTimeout time.Duration
	listenFn    func(network, addr string) (net.Listener, error)
}

// Listen implements node.Daemon. It binds the socket and serves the
// connections in the background.
func (d *socketDaemon) Listen() error {
	socket, err := d.listenFn("unix", d.socketpath)
	if err != nil {
		return xerrors.Errorf("couldn't bind socket: %v", err)
	}

	d.Add(2)

	go func() {
		defer d.Done()

		<-d.closing
		socket.Close()
	}()

	go func() {
		defer d.Done()

		for {
			conn, err := socket.Accept()
			if err != nil {
				select {
				case <-d.closing:
				default:
					d.logger.Err(err).Msg("daemon closed unexpectedly")
				}
				return
			}

			go d.handleConn(conn)
		}
	}()

	return nil
}

func (d *socketDaemon) handleConn(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(d.readTimeout))

	var req Request

	err := json.NewDecoder(conn).Decode(&req)
	if err == io.EOF {
		// Nothing was sent, for instance when a client only checks that the socket is up.
		return
	}
	if err != nil {
		d.sendError(conn, xerrors.Errorf("failed to decode request: %v", err))
		return
	}

	logger := d.logger.With().Str("request", req.ID).Logger()

	logger.Debug().
		Uint16("action", req.Action).
		Str("flags", fmt.Sprintf("%v", req.Flags)).
		Msg("received command")

	action := d.actions.Get(req.Action)
	if action == nil {
		d.sendError(conn, xerrors.Errorf("unknown command '%d'", req.Action))
		return
	}

	if req.Flags == nil {
		req.Flags = make(FlagSet)
	}

	ctx := Context{
		RequestID: req.ID,
		Injector:  d.injector,
		Flags:     req.Flags,
		Out:       newClientWriter(conn),
	}

	start := time.Now()

	err = action.Execute(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("command failed")
		d.sendError(conn, xerrors.Errorf("command error: %v", err))
		return
	}

	logger.Debug().Dur("elapsed", time.Since(start)).Msg("command done")
}

func (d *socketDaemon) sendError(conn net.Conn, err error) {
	err = json.NewEncoder(conn).Encode(event{Err: true, Value: err.Error()})
	if err != nil {
		d.logger.Warn().Err(err).Msg("couldn't send error to client")
	}
}

// Close implements node.Daemon. It closes the socket and waits for the
// background routines.
func (d *socketDaemon) Close() error {
	close(d.closing)
	d.Wait()

	return nil
}

// clientWriter wraps each write into an event.
//
// - implements io.Writer
type clientWriter struct {
	enc *json.Encoder
}

func newClientWriter(w io.Writer) *clientWriter {
	return &clientWriter{
		enc: json.NewEncoder(w),
	}
}

// Write implements io.Writer.
func (w *clientWriter) Write(data []byte) (int, error) {
	err := w.enc.Encode(event{Value: string(data)})
	if err != nil {
		return 0, xerrors.Errorf("while packing data: %v", err)
	}

	return len(data), nil
}

// socketFactory creates the daemon and the clients from the config flag.
//
// - implements node.DaemonFactory
type socketFactory struct {
	injector Injector
	actions  *actionMap
	out      io.Writer
}

// ClientFromContext implements node.DaemonFactory.
func (f socketFactory) ClientFromContext(flags cli.Flags) (Client, error) {
	client := socketClient{
		socketpath:  socketPath(flags),
		out:         f.out,
		dialTimeout: ioTimeout,
		dialFn:      net.DialTimeout,
	}

	return client, nil
}

// DaemonFromContext implements node.DaemonFactory.
func (f socketFactory) DaemonFromContext(flags cli.Flags) (Daemon, error) {
	path := socketPath(flags)

	daemon := &socketDaemon{
		logger:      cman.Logger.With().Str("daemon", path).Logger(),
		socketpath:  path,
		injector:    f.injector,
		actions:     f.actions,
		closing:     make(chan struct{}),
		readTimeout: ioTimeout,
		listenFn:    net.Listen,
	}

	return daemon, nil
}

func socketPath(flags cli.Flags) string {
	return filepath.Join(flags.Path(ConfigFlag), SocketName)
}
