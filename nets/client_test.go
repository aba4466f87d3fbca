package nets

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reusee/dscope"
	"github.com/reusee/scisandbox/modes"
)

func TestIsLocalHost(t *testing.T) {
	for host, want := range map[string]bool{
		"127.0.0.1":       true,
		"::1":             true,
		"10.1.2.3":        true,
		"192.168.0.1":     true,
		"localhost":       true,
		"8.8.8.8":         false,
		"no-such.invalid": false,
	} {
		if got := IsLocalHost(host); got != want {
			t.Fatalf("%s: got %v", host, got)
		}
	}
}

func TestProxyURL(t *testing.T) {
	u, err := ProxyURL("socks://127.0.0.1:1080")
	if err != nil {
		t.Fatal(err)
	}
	if u.Scheme != "socks5" {
		t.Fatalf("got %s", u.Scheme)
	}
	if u, err := ProxyURL(""); err != nil || u != nil {
		t.Fatalf("got %v %v", u, err)
	}
	if _, err := ProxyURL("ftp://foo"); err == nil {
		t.Fatal("should fail")
	}
}

func TestHTTPClientBypassesProxyForLocal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	for _, addr := range []ProxyAddr{
		"",
		// unreachable proxies, never dialed for local hosts
		"http://127.0.0.1:1",
		"socks5://127.0.0.1:1",
	} {
		client, err := NewHTTPClient(addr)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := client.Get(server.URL)
		if err != nil {
			t.Fatalf("%s: %v", addr, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(body) != "ok" {
			t.Fatalf("got %s", body)
		}
	}
}

func TestModule(t *testing.T) {
	dscope.New(
		modes.ForTest(t),
		new(Module),
	).Call(func(
		addr ProxyAddr,
		client HTTPClient,
	) {
		if addr != "" {
			t.Fatalf("got %s", addr)
		}
		if client == nil {
			t.Fatal()
		}
	})
}
