// Command healthcheck probes a running tanchat server's /healthz endpoint
// and exits non-zero on failure, for use by container orchestrators.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	url := flag.String("url", "http://127.0.0.1:8080/healthz", "health endpoint to probe")
	timeout := flag.Duration("timeout", 3*time.Second, "probe timeout")
	flag.Parse()

	c := &fasthttp.Client{ReadTimeout: *timeout, WriteTimeout: *timeout}
	status, body, err := c.GetTimeout(nil, *url, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health probe failed: %v\n", err)
		os.Exit(1)
	}
	if status != fasthttp.StatusOK {
		fmt.Fprintf(os.Stderr, "health probe: status %d: %s\n", status, body)
		os.Exit(1)
	}
	fmt.Println(string(body))
}
