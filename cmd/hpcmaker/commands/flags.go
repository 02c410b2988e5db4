package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
)

var _ pflag.Value = (*boolValue)(nil)

// boolValue is a boolean flag that takes an explicit True|true|False|false
// argument, as the playbooks expect. pflag's own bool flag also accepts
// 1, t, T and friends.
type boolValue struct {
	value *bool
}

func newBoolValue(p *bool, def bool) *boolValue {
	*p = def
	return &boolValue{value: p}
}

func (b *boolValue) String() string {
	if b.value == nil {
		return "false"
	}
	return strconv.FormatBool(*b.value)
}

func (b *boolValue) Set(s string) error {
	switch s {
	case "True", "true":
		*b.value = true
	case "False", "false":
		*b.value = false
	default:
		return fmt.Errorf("must be one of True, true, False, false; got %q", s)
	}
	return nil
}

func (b *boolValue) Type() string {
	return "true|false"
}

// boolFlag registers a boolValue flag on fs.
func boolFlag(fs *pflag.FlagSet, p *bool, name string, def bool, usage string) {
	fs.Var(newBoolValue(p, def), name, usage)
}
