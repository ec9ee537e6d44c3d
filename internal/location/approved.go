package location

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Approved is the allowlist of radio transport identifiers the bridge may
// connect to. Identifiers are CoreBluetooth UUIDs or BlueZ MAC addresses.
type Approved struct {
	ids map[string]struct{}
}

// NewApproved builds an allowlist from the given identifiers.
func NewApproved(ids ...string) *Approved {
	a := &Approved{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = NormalizeTransportID(id); id != "" {
			a.ids[id] = struct{}{}
		}
	}
	return a
}

// LoadApproved reads a newline-separated allowlist file.
func LoadApproved(path string) (*Approved, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading devices file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	return ParseApproved(f)
}

// ParseApproved parses one transport identifier per line. Blank lines and
// lines starting with '#' are ignored.
func ParseApproved(r io.Reader) (*Approved, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading devices file: %w", err)
	}
	return NewApproved(ids...), nil
}

// Contains reports whether id is on the allowlist.
func (a *Approved) Contains(id string) bool {
	if a == nil {
		return false
	}
	_, ok := a.ids[NormalizeTransportID(id)]
	return ok
}

// Len returns the number of approved identifiers.
func (a *Approved) Len() int {
	if a == nil {
		return 0
	}
	return len(a.ids)
}

// NormalizeTransportID canonicalises a transport identifier so that the
// allowlist and the radio agree on spelling: UUIDs become lower-case
// hyphenated, MAC addresses upper-case colon-separated.
func NormalizeTransportID(id string) string {
	id = strings.TrimSpace(id)
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	if mac, err := net.ParseMAC(id); err == nil {
		return strings.ToUpper(mac.String())
	}
	return strings.ToLower(id)
}
