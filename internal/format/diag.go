package format

import "runtime"

// Diag supplies the platform diagnostics used by the {diag.*} placeholder
// family. Collecting real diagnostics (RAM totals, live CPU load) is named
// an out-of-scope external collaborator in SPEC_FULL §1; emberlog only
// specifies the interface and a trivial default built on the stdlib
// runtime package. Hosts that want real values (via gopsutil or a cloud
// metadata API) provide their own Diag implementation.
type Diag interface {
	OS() string
	Arch() string
	CPU() string
	Cores() string
	RAMTotalMB() string
	RAMAvailMB() string
}

// defaultDiag reports what the stdlib runtime package exposes for free and
// "n/a" for anything it would otherwise need a platform-specific syscall
// for.
type defaultDiag struct{}

// DefaultDiag is the Diag used when a Formatter is not given one.
var DefaultDiag Diag = defaultDiag{}

func (defaultDiag) OS() string         { return runtime.GOOS }
func (defaultDiag) Arch() string       { return runtime.GOARCH }
func (defaultDiag) CPU() string        { return runtime.GOARCH }
func (defaultDiag) Cores() string      { return itoa(runtime.NumCPU()) }
func (defaultDiag) RAMTotalMB() string { return "n/a" }
func (defaultDiag) RAMAvailMB() string { return "n/a" }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
