package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"sockcycle/client"
	"sockcycle/config"
	"sockcycle/logger"
	"sockcycle/protocol"
	"sockcycle/textcodec"
	"sockcycle/transport"
)

// cycleRunner turns a line of text into one request/response cycle.
type cycleRunner struct {
	ep          transport.Endpoint
	opts        client.Options
	codec       textcodec.Codec
	delim       byte
	appendDelim bool
	log         zerolog.Logger
}

func newCycleRunner(cfg config.Config) (*cycleRunner, error) {
	delim, err := cfg.DelimiterByte()
	if err != nil {
		return nil, err
	}
	codec, err := textcodec.Lookup(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	ep := transport.Endpoint{Host: cfg.Host, Port: cfg.Port}
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	log := logger.WithComponent("session")
	return &cycleRunner{
		ep: ep,
		opts: client.Options{
			Network:         cfg.Network,
			ConnectTimeout:  cfg.Connect,
			WriteTimeout:    cfg.Write,
			ReadTimeout:     cfg.Read,
			ChunkSize:       cfg.ChunkSize,
			MaxResponseSize: cfg.MaxResponseSize,
			Socket:          transport.SocketOptions{NoDelay: true},
			Logger:          log,
		},
		codec:       codec,
		delim:       delim,
		appendDelim: cfg.AppendDelimiter,
		log:         logger.WithComponent("sock-cli"),
	}, nil
}

func (c *cycleRunner) request(text string) ([]byte, error) {
	payload, err := c.codec.Encode(text)
	if err != nil {
		return nil, err
	}
	if c.appendDelim {
		payload = append(payload, c.delim)
	}
	return payload, nil
}

// start launches one cycle on its own goroutine.
func (c *cycleRunner) start(ctx context.Context, text string) (<-chan client.Result, error) {
	payload, err := c.request(text)
	if err != nil {
		return nil, err
	}
	s, err := client.New(c.ep, c.opts)
	if err != nil {
		return nil, err
	}
	return s.Go(ctx, payload, protocol.EndsWith(c.delim)), nil
}

// run performs one cycle and decodes the response.
func (c *cycleRunner) run(ctx context.Context, text string) (string, error) {
	results, err := c.start(ctx, text)
	if err != nil {
		return "", err
	}
	res := <-results
	if res.Err != nil {
		return "", res.Err
	}
	c.log.Debug().Str("session", res.SessionID).Dur("elapsed", res.Elapsed).Int("bytes", len(res.Response)).Msg("response")
	return c.codec.Decode(res.Response)
}

// describeFailure renders a cycle failure for a terminal user.
func describeFailure(err error) string {
	switch transport.KindOf(err) {
	case transport.KindConnectTimeout:
		return fmt.Sprintf("connect timed out: %v", err)
	case transport.KindConnectError:
		return fmt.Sprintf("cannot connect: %v", err)
	case transport.KindWriteError:
		return fmt.Sprintf("send failed: %v", err)
	case transport.KindReadTimeout:
		return "no response before the read timeout"
	case transport.KindPeerClosed:
		return "server closed the connection"
	case transport.KindPredicateError:
		return fmt.Sprintf("bad response framing: %v", err)
	case transport.KindResponseTooLarge:
		return fmt.Sprintf("response too large: %v", err)
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return err.Error()
}
