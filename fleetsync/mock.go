package fleetsync

import (
	"bufio"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/keyfleet/ticket-key-service/interfaces"
)

// MockInstance is an in-memory instance agent speaking the command
// protocol on a real listener. It backs protocol tests and the synctool
// mock mode, behaving like a load balancer's key agent: volatile runtime
// windows, aging on every accepted set, no persistence.
type MockInstance struct {
	name     string
	listener net.Listener

	mu         sync.Mutex
	sets       map[interfaces.KeyID]interfaces.RuntimeKeySet
	rejectWith string
	delay      time.Duration
	inserts    int

	closed chan struct{}
}

// NewMockInstance starts a mock agent on a loopback TCP listener.
func NewMockInstance(name string) (*MockInstance, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starting mock instance listener: %w", err)
	}
	m := &MockInstance{
		name:     name,
		listener: listener,
		sets:     make(map[interfaces.KeyID]interfaces.RuntimeKeySet),
		closed:   make(chan struct{}),
	}
	go m.serve()
	return m, nil
}

// Info returns the instance record pointing at the mock's listener.
func (m *MockInstance) Info() interfaces.InstanceInfo {
	return interfaces.InstanceInfo{
		Name:    m.name,
		Addr:    m.listener.Addr().String(),
		Network: "tcp",
	}
}

// Close stops the listener.
func (m *MockInstance) Close() error {
	select {
	case <-m.closed:
		return nil
	default:
		close(m.closed)
		return m.listener.Close()
	}
}

// Track seeds a runtime window for the given key identifier.
func (m *MockInstance) Track(keyID interfaces.KeyID, set interfaces.RuntimeKeySet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set.KeyID = keyID
	m.sets[keyID] = set
}

// Window returns the current runtime window for the key identifier.
func (m *MockInstance) Window(keyID interfaces.KeyID) (interfaces.RuntimeKeySet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[keyID]
	return set, ok
}

// InsertCount reports how many sets the mock has accepted. Tests use it
// to assert at-most-once delivery across retries.
func (m *MockInstance) InsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}

// RejectWith makes subsequent sets answer "ERR rejected <reason>". An
// empty reason restores normal behavior.
func (m *MockInstance) RejectWith(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectWith = reason
}

// Delay makes the mock sleep before answering, to exercise channel
// deadlines.
func (m *MockInstance) Delay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

func (m *MockInstance) serve() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			select {
			case <-m.closed:
				return
			default:
				continue
			}
		}
		go m.handle(conn)
	}
}

func (m *MockInstance) handle(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	request := scanner.Text()

	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	for _, line := range m.respond(request) {
		fmt.Fprintf(conn, "%s\n", line)
	}
	fmt.Fprintf(conn, "%s\n", responseTerminator)
}

func (m *MockInstance) respond(request string) []string {
	fields := strings.Fields(request)
	if len(fields) == 0 {
		return []string{"ERR bad-request empty command"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch fields[0] {
	case cmdKeyList:
		ids := make([]string, 0, len(m.sets))
		for id := range m.sets {
			ids = append(ids, id.String())
		}
		sort.Strings(ids)
		lines := []string{"OK"}
		for _, id := range ids {
			lines = append(lines, fmt.Sprintf("%s\tsession ticket key", id))
		}
		return lines

	case cmdKeyShow:
		if len(fields) != 2 {
			return []string{"ERR bad-request key-show takes one argument"}
		}
		set, ok := m.sets[interfaces.KeyID(fields[1])]
		if !ok {
			return []string{fmt.Sprintf("ERR %s %s is not tracked", codeUnknownKey, fields[1])}
		}
		return []string{"OK", fmt.Sprintf("%s %s %s", set.Former, set.Current, set.Next)}

	case cmdKeySet:
		if len(fields) != 3 {
			return []string{"ERR bad-request key-set takes two arguments"}
		}
		keyID := interfaces.KeyID(fields[1])
		material := interfaces.KeyMaterial(fields[2])
		if m.rejectWith != "" {
			return []string{fmt.Sprintf("ERR %s %s", codeRejected, m.rejectWith)}
		}
		set, ok := m.sets[keyID]
		if !ok {
			return []string{fmt.Sprintf("ERR %s %s is not tracked", codeUnknownKey, keyID)}
		}
		if err := material.Validate(); err != nil {
			return []string{fmt.Sprintf("ERR %s invalid key material", codeRejected)}
		}
		m.sets[keyID] = set.Age(material)
		m.inserts++
		return []string{"OK"}

	default:
		return []string{fmt.Sprintf("ERR bad-request unknown command %q", fields[0])}
	}
}
