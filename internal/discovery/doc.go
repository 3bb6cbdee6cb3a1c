// Package discovery finds BRCK appliances on the local network over mDNS.
//
// An appliance normally answers at local.brck.com through its own DNS, but a
// laptop on a different resolver (or an appliance in bridge mode) will not see
// that name. The appliance also advertises an "_http._tcp" service under a
// hostname such as "supabrck-0a1b2c.local.", and this package browses for
// those.
//
//	scanner := discovery.NewScanner()
//	scanner.Timeout = 5 * time.Second
//	found, err := scanner.Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, a := range found {
//	    fmt.Println(a.Hostname, a.APIURL())
//	}
//
// Discovery needs multicast on the interface and UDP 5353 open.
package discovery
