// Package geolocate approximates a client's geographic position from its IP
// address using a small embedded nearest-neighbor table, so a caller that
// never supplies an explicit location still gets a plausible one.
package geolocate

import (
	"compress/gzip"
	"embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/unixpickle/mapscrape/internal/types"
)

//go:embed locations.json.gz
var embeddedLocations embed.FS

type entry struct {
	ip  uint32
	lat float64
	lon float64
}

// Locator resolves an IP address (or a request's apparent client address) to
// an approximate latitude/longitude by nearest neighbor over a fixed table
// of IPv4 network blocks.
type Locator struct {
	entries    []entry
	numProxies int
}

// New loads the embedded location table. numProxies is the number of trusted
// reverse proxies in front of the service: it controls how far from the end
// of a X-Forwarded-For chain the real client address is read.
func New(numProxies int) (*Locator, error) {
	raw, err := embeddedLocations.ReadFile("locations.json.gz")
	if err != nil {
		return nil, fmt.Errorf("read embedded location table: %w", err)
	}

	gz, err := gzip.NewReader(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("open gzip location table: %w", err)
	}
	defer gz.Close()

	var decoded map[string][2]float64
	if err := json.NewDecoder(gz).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode location table: %w", err)
	}

	entries := make([]entry, 0, len(decoded))
	for ipStr, latlon := range decoded {
		n, err := ipv4ToUint32(ipStr)
		if err != nil {
			continue
		}
		entries = append(entries, entry{ip: n, lat: latlon[0], lon: latlon[1]})
	}

	log.Debug().Int("entries", len(entries)).Msg("loaded ip location table")
	return &Locator{entries: entries, numProxies: numProxies}, nil
}

// LookupForRequest resolves req's apparent client address, honoring
// numProxies trusted hops of X-Forwarded-For, and falls back to remoteAddr
// (typically r.RemoteAddr with the port stripped) when no proxy header
// applies.
func (l *Locator) LookupForRequest(r *http.Request, remoteAddr string) (types.GeoLocation, bool) {
	if l.numProxies > 0 {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			addrs := strings.Split(fwd, ",")
			if len(addrs) >= l.numProxies {
				candidate := strings.TrimSpace(addrs[len(addrs)-l.numProxies])
				if loc, ok := l.Lookup(candidate); ok {
					return loc, true
				}
				return types.GeoLocation{}, false
			}
		}
	}
	return l.Lookup(remoteAddr)
}

// Lookup resolves a dotted-quad IPv4 address to the nearest entry in the
// table by absolute numeric distance.
func (l *Locator) Lookup(ip string) (types.GeoLocation, bool) {
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	target, err := ipv4ToUint32(ip)
	if err != nil {
		return types.GeoLocation{}, false
	}
	if len(l.entries) == 0 {
		return types.GeoLocation{}, false
	}

	best := l.entries[0]
	bestDist := distance(best.ip, target)
	for _, e := range l.entries[1:] {
		if d := distance(e.ip, target); d < bestDist {
			best, bestDist = e, d
		}
	}
	return types.GeoLocation{Latitude: best.lat, Longitude: best.lon, Accuracy: 50000}, true
}

func distance(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

func ipv4ToUint32(ip string) (uint32, error) {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("not a dotted-quad IPv4 address: %q", ip)
	}
	var n uint32
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid IPv4 octet %q: %w", p, err)
		}
		n = n<<8 | uint32(v)
	}
	return n, nil
}
