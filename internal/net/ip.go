package net

import (
	"fmt"
	"net"
	"strconv"

	"DrawingTransformer/internal/logging"
)

// OutgoingIP finds the preferred local IP address to share with peers.
func OutgoingIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		// No route out: fall back to the interface list.
		return localIPFallback()
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

func localIPFallback() string {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, address := range addrs {
			if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	logging.Logger().Warn("[net] no suitable local IP found, using loopback")
	return "127.0.0.1"
}

// ShareURL is the address peers on the LAN open to join the session served
// on listen (":8888" or "host:8888").
func ShareURL(listen string) (string, error) {
	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return "", fmt.Errorf("invalid port in %q: %w", listen, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = OutgoingIP()
	}
	return "http://" + net.JoinHostPort(host, portStr), nil
}

// ListenPort extracts the numeric port from a listen address.
func ListenPort(listen string) (int, error) {
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	return strconv.Atoi(portStr)
}
