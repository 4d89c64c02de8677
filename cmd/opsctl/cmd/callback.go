package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// callbackResult is what the provider sent to the loopback redirect URI.
type callbackResult struct {
	Code  string
	State string
	Err   error
}

// callbackServer receives one authorization response on a loopback address.
type callbackServer struct {
	ln      net.Listener
	srv     *http.Server
	results chan callbackResult
}

func startCallbackServer(addr string) (*callbackServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for login callback on %s: %w", addr, err)
	}
	cs := &callbackServer{ln: ln, results: make(chan callbackResult, 1)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", cs.handle)
	cs.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = cs.srv.Serve(ln) }()
	return cs, nil
}

func (cs *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := callbackResult{Code: q.Get("code"), State: q.Get("state")}
	switch {
	case q.Get("error") != "":
		res.Err = fmt.Errorf("identity provider returned %s: %s", q.Get("error"), q.Get("error_description"))
	case res.Code == "":
		res.Err = errors.New("callback is missing the authorization code")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if res.Err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = fmt.Fprintln(w, "Sign-in failed. Return to the terminal for details.")
	} else {
		_, _ = fmt.Fprintln(w, "Sign-in received. You can close this window.")
	}

	select {
	case cs.results <- res:
	default:
	}
}

// Wait blocks until a callback arrives or ctx ends.
func (cs *callbackServer) Wait(ctx context.Context) (callbackResult, error) {
	select {
	case res := <-cs.results:
		return res, nil
	case <-ctx.Done():
		return callbackResult{}, fmt.Errorf("waiting for login callback: %w", ctx.Err())
	}
}

func (cs *callbackServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return cs.srv.Shutdown(ctx)
}
