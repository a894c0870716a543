package util

import (
	"bufio"
	"fmt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CtrlCallback handles one control line. Anything it writes to conn is sent back to the client ahead of the final
// "ok" or "error" line.
//
type CtrlCallback func(line string, conn net.Conn) (int64, error)

var ctrlListeners = make(map[string]*CtrlListener)
var ctrlMutex sync.Mutex

// CtrlListener accepts line-oriented commands on a unix socket at <root>/<id>.<pid>.sock and dispatches them to the
// callbacks registered for the first token of the line.
//
type CtrlListener struct {
	listener  *net.UnixListener
	address   string
	lock      sync.Mutex
	callbacks map[string][]CtrlCallback
	running   bool
}

func GetCtrlListener(root, id string) (*CtrlListener, error) {
	ctrlMutex.Lock()
	defer ctrlMutex.Unlock()

	address := CtrlSocketPath(root, id)
	if cl, found := ctrlListeners[address]; found {
		return cl, nil
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "error creating ctrl root [%s]", root)
	}
	unixAddress, err := net.ResolveUnixAddr("unix", address)
	if err != nil {
		return nil, errors.Wrap(err, "error resolving unix address")
	}
	listener, err := net.ListenUnix("unix", unixAddress)
	if err != nil {
		return nil, errors.Wrap(err, "error listening")
	}
	cl := &CtrlListener{
		listener:  listener,
		address:   address,
		callbacks: make(map[string][]CtrlCallback),
	}
	ctrlListeners[address] = cl
	return cl, nil
}

func CtrlSocketPath(root, id string) string {
	return filepath.Join(root, fmt.Sprintf("%s.%d.sock", id, os.Getpid()))
}

func (self *CtrlListener) Address() string {
	return self.address
}

func (self *CtrlListener) AddCallback(keyword string, f CtrlCallback) {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.callbacks[keyword] = append(self.callbacks[keyword], f)
}

func (self *CtrlListener) Start() {
	self.lock.Lock()
	defer self.lock.Unlock()

	if !self.running {
		self.running = true
		go self.run()
	}
}

func (self *CtrlListener) Close() error {
	ctrlMutex.Lock()
	delete(ctrlListeners, self.address)
	ctrlMutex.Unlock()
	return self.listener.Close()
}

func (self *CtrlListener) run() {
	logrus.Infof("[%s] started", self.address)
	defer logrus.Infof("[%s] exited", self.address)

	for {
		conn, err := self.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				logrus.Errorf("error accepting ctrl connection (%v)", err)
				continue
			}
			return
		}
		go self.handle(conn)
	}
}

func (self *CtrlListener) handle(conn net.Conn) {
	logrus.Debugf("new connection for [%s]", self.address)
	defer logrus.Debugf("ended connection for [%s]", self.address)
	defer func() { _ = conn.Close() }()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			return
		} else if err != nil {
			logrus.Errorf("error reading (%v)", err)
			return
		}

		line = strings.TrimSpace(line)
		tokens := strings.Fields(line)
		if len(tokens) < 1 {
			self.respond(conn, "syntax error?\n")
			continue
		}

		self.lock.Lock()
		fs, found := self.callbacks[tokens[0]]
		self.lock.Unlock()
		if !found {
			logrus.Errorf("no callback for [%s]", line)
			self.respond(conn, "syntax error?\n")
			continue
		}

		var fErr error
		for _, f := range fs {
			if _, fErr = f(line, conn); fErr != nil {
				break
			}
		}
		if fErr == nil {
			self.respond(conn, "ok\n")
		} else {
			logrus.Errorf("error executing callback (%v)", fErr)
			self.respond(conn, fmt.Sprintf("error (%s)\n", fErr))
		}
	}
}

func (self *CtrlListener) respond(conn net.Conn, msg string) {
	if _, err := conn.Write([]byte(msg)); err != nil {
		logrus.Errorf("error responding (%v)", err)
	}
}
