package environments

import (
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ConnPool holds one lazily dialed gRPC client connection per environment.
// The dashboard's proxy handlers and the environment health endpoint share
// these connections.
type ConnPool struct {
	registry *Registry

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewConnPool creates a pool over the registry's environments. No connection
// is dialed until first use.
func NewConnPool(registry *Registry) *ConnPool {
	return &ConnPool{
		registry: registry,
		conns:    make(map[string]*grpc.ClientConn),
	}
}

// Conn returns the client connection for the environment, dialing it on
// first use. Environments without a configured endpoint are not dialable.
func (p *ConnPool) Conn(envKey string) (*grpc.ClientConn, error) {
	env, ok := p.registry.Get(envKey)
	if !ok {
		return nil, fmt.Errorf("unknown environment '%s'", envKey)
	}
	if env.Endpoint == "" {
		return nil, fmt.Errorf("environment '%s' has no configured endpoint", envKey)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.conns[envKey]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(env.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create client for environment '%s': %w", envKey, err)
	}
	p.conns[envKey] = conn
	return conn, nil
}

// State reports the connectivity state of the environment's connection, or
// "not-dialed" when no connection exists yet.
func (p *ConnPool) State(envKey string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.conns[envKey]
	if !ok {
		return "not-dialed"
	}
	return conn.GetState().String()
}

// Close releases every dialed connection.
func (p *ConnPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, conn := range p.conns {
		conn.Close()
		delete(p.conns, key)
	}
}
