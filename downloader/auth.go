package downloader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var scopes = []string{"activity", "heartrate", "profile"}

type callbackResult struct {
	code string
	err  error
}

// authorize runs the authorization code flow: a one-shot callback server on
// the redirect port receives the code, which is exchanged for a token.
func (d *Downloader) authorize(ctx context.Context) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("localhost", d.cfg.RedirectPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	conf := *d.oauth
	conf.RedirectURL = "http://localhost:" + strconv.Itoa(port)
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error("callback server failed", zap.Error(err))
		}
	}()
	defer srv.Close()

	authURL := conf.AuthCodeURL(state)
	d.log.Info("waiting for authorization callback", zap.String("url", authURL))
	if err := d.openURL(authURL); err != nil {
		d.log.Warn("failed to open browser, open the url manually", zap.Error(err))
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := conf.Exchange(d.oauthContext(ctx), res.code)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}
	d.log.Info("obtained access token", zap.Time("expires_at", tok.Expiry))
	return tok, nil
}

func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "text/html")

		if q.Get("state") != state {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Unexpected authorization state."))
			return
		}

		var res callbackResult
		switch {
		case q.Get("error") != "":
			reason := q.Get("error_description")
			if reason == "" {
				reason = q.Get("error")
			}
			if q.Get("error") == "access_denied" {
				res.err = fmt.Errorf("%w: %s", ErrAuthorizationDenied, reason)
			} else {
				res.err = fmt.Errorf("authorization failed: %s", reason)
			}
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("Authorization failed. You can close this window."))
		case q.Get("code") != "":
			res.code = q.Get("code")
			w.Write([]byte("Authorization successful! You can close this window and return to the application."))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Authorization failed. Please try again."))
			return
		}

		select {
		case results <- res:
		default:
		}
	})
}
