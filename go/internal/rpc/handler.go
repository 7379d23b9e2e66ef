package rpc

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
)

// HandlerOptions are applied to every unary handler.
func HandlerOptions() []connect.HandlerOption {
	return []connect.HandlerOption{
		connect.WithCodec(Codec{}),
		connect.WithInterceptors(LoggingInterceptor()),
	}
}

// Unary builds a connect handler for a JSON procedure whose errors are
// translated by ToConnectError.
func Unary[Req, Res any](procedure string, fn func(context.Context, *Req) (*Res, error)) (string, http.Handler) {
	return procedure, connect.NewUnaryHandler(
		procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			res, err := fn(ctx, req.Msg)
			if err != nil {
				return nil, ToConnectError(err)
			}
			return connect.NewResponse(res), nil
		},
		HandlerOptions()...,
	)
}

// LoggingInterceptor logs failed calls at warn level and the rest at debug.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)
			if err != nil {
				log.Warn().
					Err(err).
					Str("procedure", req.Spec().Procedure).
					Str("code", connect.CodeOf(err).String()).
					Dur("duration", time.Since(start)).
					Msg("rpc failed")
				return res, err
			}
			log.Debug().
				Str("procedure", req.Spec().Procedure).
				Dur("duration", time.Since(start)).
				Msg("rpc handled")
			return res, nil
		}
	}
}
