// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package engine

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/framesight/internal/config"
	"github.com/tomtom215/framesight/internal/logging"
	"github.com/tomtom215/framesight/internal/moments"
)

// Client owns the engine connection: it publishes batch requests and feeds
// the reply subscription into the correlation registry.
type Client struct {
	nc       *natsgo.Conn
	registry *Registry
	cfg      config.EngineConfig
}

// NewClient connects to NATS and prepares the correlation registry. The
// connection retries in the background on broker loss.
func NewClient(natsCfg config.NATSConfig, engineCfg config.EngineConfig) (*Client, error) {
	opts := []natsgo.Option{
		natsgo.Name("framesight-engine"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(natsCfg.MaxReconnects),
		natsgo.ReconnectWait(natsCfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("Engine connection lost")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("Engine connection restored")
		}),
	}

	nc, err := natsgo.Connect(natsCfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect engine transport: %w", err)
	}

	return &Client{
		nc:       nc,
		registry: NewRegistry(engineCfg.JobTTL),
		cfg:      engineCfg,
	}, nil
}

// Registry exposes the correlation table, mainly for observability.
func (c *Client) Registry() *Registry {
	return c.registry
}

// NewBatch starts an empty batch bound to this client.
func (c *Client) NewBatch() *Batch {
	return NewBatch(c, c.registry)
}

func (c *Client) PublishRequest(_ context.Context, data []byte) error {
	return c.nc.Publish(c.cfg.RequestSubject, data)
}

// Serve subscribes to the reply subject and runs the expiry sweep until ctx
// is done. It satisfies the supervisor's service contract.
func (c *Client) Serve(ctx context.Context) error {
	sub, err := c.nc.Subscribe(c.cfg.ReplySubject, c.handleReply)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.cfg.ReplySubject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			logging.Warn().Err(err).Msg("Engine reply unsubscribe failed")
		}
	}()

	logging.Info().
		Str("request_subject", c.cfg.RequestSubject).
		Str("reply_subject", c.cfg.ReplySubject).
		Dur("job_ttl", c.cfg.JobTTL).
		Msg("Engine client started")

	c.registry.Sweep(ctx, c.cfg.SweepInterval)
	return ctx.Err()
}

func (c *Client) handleReply(msg *natsgo.Msg) {
	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		logging.Warn().Err(err).Msg("Malformed engine reply dropped")
		return
	}
	if reply.JobID == "" {
		logging.Warn().Msg("Engine reply without job_id dropped")
		return
	}
	c.registry.Resolve(reply)
}

// Summarize sends one summarization job over the sketch frames and blocks
// for the raw model reply. Used by the moment lifecycle handler.
func (c *Client) Summarize(ctx context.Context, frames []moments.Frame) (string, error) {
	batch := c.NewBatch()

	input := SummarizeInput{Prompt: SummarizePrompt}
	for _, f := range frames {
		batch.AddResource(f.FrameID, ResourceTypeImage, f.Data)
		input.ResourceIDs = append(input.ResourceIDs, f.FrameID)
	}

	future, err := batch.AddJob(WorkerSummarize, input)
	if err != nil {
		return "", err
	}
	if err := batch.Send(ctx); err != nil {
		return "", err
	}

	reply, err := future.Wait(ctx)
	if err != nil {
		return "", err
	}
	out, err := Decode[SummarizeOutput](reply)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

// Close drains the connection.
func (c *Client) Close() {
	if err := c.nc.Drain(); err != nil {
		logging.Warn().Err(err).Msg("Engine connection drain failed")
	}
}
