package net

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"DrawingTransformer/internal/logging"
)

// ServiceType is the mDNS service session servers advertise.
const ServiceType = "_drawxform._tcp"

// Announcement is a session server found on the local network.
type Announcement struct {
	Instance  string
	Addr      string
	SessionID string
}

// Advertise announces a session server on port. The returned server must
// be shut down by the caller.
func Advertise(sessionID string, port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	info := []string{"DrawingTransformer", "session=" + sessionID}
	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	logging.Logger().Info("[mdns] advertising", "service", ServiceType, "instance", host, "port", port)
	return server, nil
}

// Browse looks for session servers for timeout, calling found for each one
// with an IPv4 address.
func Browse(timeout time.Duration, found func(Announcement)) error {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if a, ok := announcementFrom(e); ok {
				found(a)
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	<-done
	return err
}

func announcementFrom(e *mdns.ServiceEntry) (Announcement, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Announcement{}, false
	}
	a := Announcement{
		Instance: strings.TrimSuffix(e.Name, "."+ServiceType+".local."),
		Addr:     fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port),
	}
	for _, f := range e.InfoFields {
		if v, ok := strings.CutPrefix(f, "session="); ok {
			a.SessionID = v
		}
	}
	return a, true
}
