package server

import (
	"fmt"
	"net/http"

	"ssfs/internal/auth"
)

const authRealm = "ssfs"

// buildHandler composes the file server with the middleware chain.
func (s *Server) buildHandler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.Handle("/", newFileHandler(s.root, s.logger))
	return s.wrap(mux)
}

// wrap applies the middleware chain to h. AccessLog is outermost so that
// requests answered by Recover, RateLimit or BasicAuth are logged too.
func (s *Server) wrap(h http.Handler) (http.Handler, error) {
	chain := []Middleware{
		AccessLog(s.logger),
		Recover(s.logger),
	}

	if s.config.RateLimit > 0 {
		chain = append(chain, RateLimit(s.config.RateLimit, s.config.RateBurst))
	}

	if s.config.Auth.Enabled() {
		a, err := auth.New(s.config.Auth.Username, s.config.Auth.PasswordHash)
		if err != nil {
			return nil, fmt.Errorf("initialize auth: %w", err)
		}
		chain = append(chain, BasicAuth(a, authRealm))
	}

	chain = append(chain, AllowMethods(http.MethodGet, http.MethodHead))

	return Chain(h, chain...), nil
}
