package registry

import (
	"fmt"
	"strings"
	"time"
)

// digestLayout renders seconds, minutes, hours, day, month and year.
const digestLayout = "0504150201" + "2006"

// Serial identifies one entity instance. It is generated once at creation.
type Serial struct {
	Name   string
	Digest string
}

// NewSerial derives the serial for name from the creation time.
func NewSerial(name string, t time.Time) Serial {
	return Serial{Name: name, Digest: t.Format(digestLayout)}
}

// String returns the recorded form, name.digest.
func (s Serial) String() string {
	return s.Name + "." + s.Digest
}

// ResourceID returns name-digest, the suffix used in cloud resource names.
func (s Serial) ResourceID() string {
	return s.Name + "-" + s.Digest
}

// ParseSerial parses the first line of a serial record.
func ParseSerial(line string) (Serial, error) {
	line = strings.TrimSpace(line)
	i := strings.LastIndexByte(line, '.')
	if i <= 0 || i == len(line)-1 {
		return Serial{}, fmt.Errorf("malformed serial %q", line)
	}
	s := Serial{Name: line[:i], Digest: line[i+1:]}
	if len(s.Digest) != len(digestLayout) || strings.Trim(s.Digest, "0123456789") != "" {
		return Serial{}, fmt.Errorf("malformed serial digest %q", s.Digest)
	}
	return s, nil
}
