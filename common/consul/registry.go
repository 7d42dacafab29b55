package consul

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	consul "github.com/hashicorp/consul/api"
)

// NetworkEnv names the environment variable holding the CIDR of the network dedicated to gRPC traffic.
const NetworkEnv = "NOTEBOOK_GRPC_NETWORK"

var ErrServiceNotFound = errors.New("no healthy instance of the service is registered")

// NewClient returns a new Client with connection to consul
func NewClient(addr string) (*Client, error) {
	cfg := consul.DefaultConfig()
	cfg.Address = addr

	c, err := consul.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	cli := &Client{Client: c}
	config.InitLogger(&cli.logger, "Consul ")

	return cli, nil
}

// Client provides an interface for communicating with registry
type Client struct {
	*consul.Client

	logger logger.Logger
}

// Look for the network device being dedicated for gRPC traffic.
// The network CIDR should be specified in the NOTEBOOK_GRPC_NETWORK environment variable.
// If not found, return the first non loopback IP address.
func (c *Client) getLocalIP() (string, error) {
	var ips []net.IP

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			ips = append(ips, ipnet.IP)
		}
	}

	switch len(ips) {
	case 0:
		return "", fmt.Errorf("registry: can not find local ip")
	case 1:
		return ips[0].String(), nil
	}

	grpcNet := os.Getenv(NetworkEnv)
	if grpcNet == "" {
		return ips[0].String(), nil
	}

	_, ipNetGrpc, err := net.ParseCIDR(grpcNet)
	if err != nil {
		c.logger.Error("An invalid network CIDR is set in environment %s: %v", NetworkEnv, grpcNet)
		return ips[0].String(), nil
	}

	for _, ip := range ips {
		if ipNetGrpc.Contains(ip) {
			c.logger.Info("gRPC traffic is routed to the dedicated network %s", ip.String())
			return ip.String(), nil
		}
	}
	return ips[0].String(), nil
}

// Register a service with registry
func (c *Client) Register(name string, id string, ip string, port int) error {
	if ip == "" {
		var err error
		ip, err = c.getLocalIP()
		if err != nil {
			return err
		}
	}
	reg := &consul.AgentServiceRegistration{
		ID:      id,
		Name:    name,
		Port:    port,
		Address: ip,
		Check: &consul.AgentServiceCheck{
			TCP:                            fmt.Sprintf("%s:%d", ip, port),
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	c.logger.Info("Trying to register service [ name: %s, id: %s, address: %s:%d ]", name, id, ip, port)
	return c.Agent().ServiceRegister(reg)
}

// Deregister removes the service address from registry
func (c *Client) Deregister(id string) error {
	return c.Agent().ServiceDeregister(id)
}

// Resolve returns the address of a healthy instance of the named service, picked at random.
func (c *Client) Resolve(name string) (string, error) {
	entries, _, err := c.Health().Service(name, "", true, nil)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}

	entry := entries[rand.Intn(len(entries))]
	addr := entry.Service.Address
	if addr == "" {
		addr = entry.Node.Address
	}
	return net.JoinHostPort(addr, fmt.Sprintf("%d", entry.Service.Port)), nil
}
