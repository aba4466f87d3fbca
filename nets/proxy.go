package nets

import (
	"fmt"
	"net/url"
	"os"

	"github.com/reusee/scisandbox/configs"
	"github.com/reusee/scisandbox/logs"
	"github.com/reusee/scisandbox/modes"
	"github.com/reusee/scisandbox/vars"
)

type ProxyAddr string

func (p ProxyAddr) ConfigKey() string {
	return "proxy_addr"
}

var _ configs.Configurable = ProxyAddr("")

func (Module) ProxyAddr(
	mode modes.Mode,
	loader configs.Loader,
	logger logs.Logger,
) (ret ProxyAddr) {
	defer func() {
		if ret != "" {
			logger.Info("proxy", "addr", ret)
		}
	}()

	if mode == modes.ModeDevelopment {
		return ""
	}

	return vars.FirstNonZero(
		configs.First[ProxyAddr](loader, "proxy_addr"),
		configs.First[ProxyAddr](loader, "proxy_address"),
		configs.First[ProxyAddr](loader, "http_proxy"),
		configs.First[ProxyAddr](loader, "socks_proxy"),
		ProxyAddr(os.Getenv("ALL_PROXY")),
		ProxyAddr(os.Getenv("all_proxy")),
		ProxyAddr(os.Getenv("HTTPS_PROXY")),
		ProxyAddr(os.Getenv("https_proxy")),
		ProxyAddr(os.Getenv("HTTP_PROXY")),
		ProxyAddr(os.Getenv("http_proxy")),
	)
}

// ProxyURL parses the address. An empty address means direct connections.
func ProxyURL(addr ProxyAddr) (*url.URL, error) {
	if addr == "" {
		return nil, nil
	}
	u, err := url.Parse(string(addr))
	if err != nil {
		return nil, fmt.Errorf("bad proxy address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "socks":
		u.Scheme = "socks5"
	case "socks5", "socks5h", "http", "https":
	default:
		return nil, fmt.Errorf("bad proxy address %q: unsupported scheme", addr)
	}
	return u, nil
}
