package bayeuxtest

import "github.com/cometwire/bayeux"

type ServerOpts interface {
	apply(s *Server)
}

type serverOptFn func(s *Server)

func (opt serverOptFn) apply(s *Server) {
	opt(s)
}

// WithHandshakeError makes every handshake request come back as a 400
func WithHandshakeError(handshakeError bool) ServerOpts {
	return serverOptFn(func(s *Server) {
		s.handshakeError = handshakeError
	})
}

// WithAdvice replaces the advice attached to handshake and connect replies.
// A nil advice means replies carry none.
func WithAdvice(advice *bayeux.Advice) ServerOpts {
	return serverOptFn(func(s *Server) {
		s.advice = advice
	})
}
