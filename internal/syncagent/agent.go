package syncagent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"masquerade/internal/broadcast"
	"masquerade/internal/game"
	"masquerade/internal/resilience"
)

type Status string

const (
	StatusOnline   Status = "online"
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
)

// Config tunes the agent's resilience behaviour.
type Config struct {
	BasePollInterval     time.Duration
	MaxReconnectAttempts int
	BreakerThreshold     int
	BreakerCooldown      time.Duration
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

func (c *Config) applyDefaults() {
	if c.BasePollInterval <= 0 {
		c.BasePollInterval = 2 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 15 * time.Second
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = 500 * time.Millisecond
	}
	if c.RetryMaxInterval <= 0 {
		c.RetryMaxInterval = 15 * time.Second
	}
}

// Agent keeps one client's view of the room synchronized: push stream while
// it holds, polling fallback while it doesn't, and a durable local queue
// for actions attempted offline.
type Agent struct {
	client  *Client
	queue   Queue
	cfg     Config
	retry   resilience.Retryer
	breaker *resilience.Breaker
	quality *Quality

	mu          sync.Mutex
	state       game.StateView
	status      Status
	connected   bool
	lastEventID string

	// OnEvent and OnStatus, when set before Run, observe every applied
	// event and status transition.
	OnEvent  func(broadcast.Event)
	OnStatus func(Status)
}

func NewAgent(client *Client, queue Queue, cfg Config) *Agent {
	cfg.applyDefaults()
	if queue == nil {
		queue = NewMemoryQueue()
	}
	return &Agent{
		client:  client,
		queue:   queue,
		cfg:     cfg,
		retry:   resilience.NewRetryer(cfg.RetryInitialInterval, cfg.RetryMaxInterval, cfg.MaxReconnectAttempts),
		breaker: resilience.NewBreaker("polling", cfg.BreakerThreshold, cfg.BreakerCooldown),
		quality: NewQuality(),
		status:  StatusDegraded,
	}
}

// State returns a copy of the agent's current view of the room.
func (a *Agent) State() game.StateView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Agent) Quality() *Quality {
	return a.quality
}

// Run drives the agent until ctx is cancelled. The polling loop runs for
// the whole lifetime but only pulls while the push stream is down.
func (a *Agent) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.pollLoop(ctx)
	}()

	for ctx.Err() == nil {
		err := a.retry.Do(ctx, func() error {
			return a.streamOnce(ctx)
		})
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			// Reconnection attempts exhausted; only now is the user-visible
			// offline state surfaced. Polling keeps the view advancing.
			a.setStatus(StatusOffline)
			log.Warn().Err(err).Msg("push stream reconnect attempts exhausted")
			select {
			case <-ctx.Done():
			case <-time.After(a.cfg.RetryMaxInterval):
			}
		}
	}
	wg.Wait()
	return ctx.Err()
}

// streamOnce opens the push stream and consumes it until it breaks. A
// successful open replays the offline queue before anything else.
func (a *Agent) streamOnce(ctx context.Context) error {
	a.mu.Lock()
	lastID := a.lastEventID
	a.mu.Unlock()

	resp, err := a.client.OpenStream(ctx, lastID)
	if err != nil {
		a.quality.RecordFailure()
		return err
	}
	defer resp.Body.Close()

	a.setConnected(true)
	a.setStatus(StatusOnline)
	a.quality.RecordReconnect()
	if err := a.ReplayQueue(ctx); err != nil {
		log.Warn().Err(err).Msg("offline queue replay incomplete")
	}

	err = a.consumeStream(ctx, resp.Body)
	a.setConnected(false)
	a.setStatus(StatusDegraded)
	return err
}

func (a *Agent) consumeStream(ctx context.Context, body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventID, data string
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		switch {
		case line == "":
			if data != "" {
				a.dispatch(eventID, data)
			}
			eventID, data = "", ""
		case strings.HasPrefix(line, "id: "):
			eventID = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("stream_closed")
}

func (a *Agent) dispatch(eventID, data string) {
	var ev broadcast.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return
	}
	if eventID != "" {
		a.mu.Lock()
		a.lastEventID = eventID
		a.mu.Unlock()
	}
	a.apply(ev)
}

// apply folds one event into the local view.
func (a *Agent) apply(ev broadcast.Event) {
	a.mu.Lock()
	switch ev.Type {
	case game.EventGameState:
		if ev.State != nil {
			a.state = *ev.State
		}
	case game.EventPhaseChanged:
		a.state.Phase = ev.Phase
		a.state.PhaseEndsAt = ev.PhaseEndsAt
		if len(ev.Submissions) > 0 {
			a.state.Submissions = ev.Submissions
		}
		if ev.Results != nil {
			a.state.Results = ev.Results
		}
		if ev.Reason != "" {
			a.state.FinishReason = ev.Reason
		}
	case game.EventTimerUpdate:
		a.state.PhaseEndsAt = ev.PhaseEndsAt
	case game.EventPlayerJoined:
		if ev.Player != nil {
			a.state.Players = append(a.state.Players, *ev.Player)
		}
	case game.EventAdminJoined:
		if ev.Player != nil {
			p := *ev.Player
			a.state.Admin = &p
		}
	case game.EventPlayerLeft:
		if ev.Player != nil {
			kept := a.state.Players[:0]
			for _, p := range a.state.Players {
				if p.ID != ev.Player.ID {
					kept = append(kept, p)
				}
			}
			a.state.Players = kept
		}
	case game.EventAdminLeft:
		a.state.Admin = nil
	case game.EventHeartbeat:
		// Liveness only; quality is measured on the pull path.
	}
	a.mu.Unlock()

	if a.OnEvent != nil {
		a.OnEvent(ev)
	}
}

// pollLoop pulls the state endpoint while the stream is down. The interval
// stretches with the assessed connection tier, and the whole operation sits
// behind a circuit breaker.
func (a *Agent) pollLoop(ctx context.Context) {
	for {
		interval := a.quality.PollInterval(a.cfg.BasePollInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		if a.isConnected() {
			continue
		}
		err := a.breaker.Do(func() error {
			started := time.Now()
			state, err := a.client.State(ctx)
			if err != nil {
				a.quality.RecordFailure()
				return err
			}
			a.quality.RecordLatency(time.Since(started))
			a.mu.Lock()
			a.state = state
			a.mu.Unlock()
			return nil
		})
		if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			log.Debug().Err(err).Msg("poll failed")
		}
	}
}

// Submit sends a submission, queuing it locally when the transport fails
// or the agent is offline. Server-side rejections are returned as-is.
func (a *Agent) Submit(ctx context.Context, round int, content string) error {
	action := Action{
		PlayerID: a.client.PlayerID,
		Kind:     ActionSubmit,
		Round:    round,
		Content:  content,
		QueuedAt: time.Now(),
	}
	return a.send(ctx, action, func() error {
		return a.client.Submit(ctx, round, content)
	})
}

// Vote sends a role prediction, with the same offline semantics as Submit.
func (a *Agent) Vote(ctx context.Context, targetID string, predicted game.Role) error {
	action := Action{
		PlayerID:      a.client.PlayerID,
		Kind:          ActionVote,
		TargetID:      targetID,
		PredictedRole: predicted,
		QueuedAt:      time.Now(),
	}
	return a.send(ctx, action, func() error {
		return a.client.Vote(ctx, targetID, predicted)
	})
}

func (a *Agent) send(ctx context.Context, action Action, op func() error) error {
	if !a.isConnected() {
		metricActionsQueued.Add(1)
		return a.queue.Enqueue(action)
	}
	err := op()
	var apiErr *APIError
	if err != nil && !errors.As(err, &apiErr) && ctx.Err() == nil {
		// Transport failure: capture the intent for replay.
		metricActionsQueued.Add(1)
		if qerr := a.queue.Enqueue(action); qerr != nil {
			return qerr
		}
		return nil
	}
	return err
}

// ReplayQueue replays pending offline actions in FIFO order. Only the
// drained actions are cleared, and only after every one reached the
// server; anything enqueued mid-replay stays for the next pass. A
// server-side rejection counts as delivered (the authoritative state
// already settled it, e.g. the original request landed before the
// connection dropped).
func (a *Agent) ReplayQueue(ctx context.Context) error {
	actions, err := a.queue.Drain(a.client.PlayerID)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		return nil
	}
	for _, action := range actions {
		var err error
		switch action.Kind {
		case ActionSubmit:
			err = a.client.Submit(ctx, action.Round, action.Content)
		case ActionVote:
			err = a.client.Vote(ctx, action.TargetID, action.PredictedRole)
		}
		var apiErr *APIError
		if err != nil && !errors.As(err, &apiErr) {
			return err
		}
		metricActionsReplayed.Add(1)
	}
	return a.queue.ClearThrough(a.client.PlayerID, actions[len(actions)-1].Seq)
}

func (a *Agent) isConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *Agent) setConnected(v bool) {
	a.mu.Lock()
	a.connected = v
	a.mu.Unlock()
}

func (a *Agent) setStatus(s Status) {
	a.mu.Lock()
	changed := a.status != s
	a.status = s
	a.mu.Unlock()
	if changed && a.OnStatus != nil {
		a.OnStatus(s)
	}
}

// Close releases the queue. Stream and poll loops stop with Run's context.
func (a *Agent) Close() error {
	return a.queue.Close()
}
