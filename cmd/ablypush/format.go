package main

import (
	"fmt"
	"strings"

	"github.com/csw/ablypush/push"
)

func formatDevice(p *push.Push) string {
	d := p.Device()
	b := strings.Builder{}
	fmt.Fprintf(&b, "State: %s\n", p.State())
	if d.ID != "" {
		fmt.Fprintf(&b, "Device: %s\n", d.ID)
	}
	if len(d.Token) > 0 {
		fmt.Fprintf(&b, "Token: %s\n", abbreviate(d.Token.String(), 16))
	}
	if d.UpdateToken != "" {
		fmt.Fprintf(&b, "Update token: %s\n", abbreviate(string(d.UpdateToken), 8))
	}
	return b.String()
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
