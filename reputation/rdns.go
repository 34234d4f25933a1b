package reputation

import (
	"context"
	"strings"

	"github.com/miekg/dns"
)

const defaultResolver = "1.1.1.1:53"

// reverseName resolves the PTR record for ip, if one exists. An empty
// hostname with a nil error means the IP simply has no PTR record.
func (c *Client) reverseName(ctx context.Context, ip string) (string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", err
	}

	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)

	resolver := c.Resolver
	if resolver == "" {
		resolver = defaultResolver
	}
	client := new(dns.Client)
	in, _, err := client.ExchangeContext(ctx, m, resolver)
	if err != nil {
		return "", err
	}
	for _, rr := range in.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", nil
}
