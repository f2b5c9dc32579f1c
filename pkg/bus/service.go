package bus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/holo-host/hpos-core/pkg/hostcoreerr"
	"github.com/holo-host/hpos-core/pkg/log"
)

const (
	readBatchSize = 100
	readBlock     = 30 * time.Second
	minBackoff    = 1 * time.Second
	maxBackoff    = 32 * time.Second
)

// Service binds a service subject to a Redis connection. Every subject
// under it maps to one stream key, "{serviceSubject}.{subject}".
type Service struct {
	rdb            *redis.Client
	serviceSubject string

	mu        sync.Mutex
	consumers map[string]*consumer
}

type consumer struct {
	name    string
	subject string
	logger  zerolog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewService binds a Service to an already-connected Redis client.
func NewService(rdb *redis.Client, serviceSubject string) *Service {
	return &Service{rdb: rdb, serviceSubject: serviceSubject, consumers: map[string]*consumer{}}
}

func (s *Service) streamKey(subject string) string {
	return s.serviceSubject + "." + subject
}

// Publish appends one message to the stream for subject.
func (s *Service) Publish(ctx context.Context, subject string, body []byte, headers map[string]string) error {
	values, err := encodeMessage(subject, body, headers)
	if err != nil {
		return hostcoreerr.New(hostcoreerr.Request, err)
	}
	if err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.streamKey(subject),
		Values: values,
	}).Err(); err != nil {
		return hostcoreerr.New(hostcoreerr.Transport, err)
	}
	return nil
}

// AddConsumer creates a durable pull consumer group named after name,
// filtered to subject, and spawns the task that drives it: read in
// batches of 100 with a 30s block, invoke handler, publish the reply
// per the selection order below, and ack only after the reply publish
// attempts conclude.
func (s *Service) AddConsumer(name, subject string, handler Handler, replyFn ReplySubjectFn) error {
	stream := s.streamKey(subject)
	ctx := context.Background()

	err := s.rdb.XGroupCreateMkStream(ctx, stream, name, "$").Err()
	if err != nil && !isBusyGroupErr(err) {
		return hostcoreerr.New(hostcoreerr.Transport, err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &consumer{
		name:    name,
		subject: subject,
		logger:  log.WithConsumer(s.serviceSubject, name),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.consumers[name] = c
	s.mu.Unlock()

	go s.runConsumer(cctx, c, stream, handler, replyFn)
	return nil
}

// DeleteConsumer aborts the task and deletes the server-side consumer
// group entry.
func (s *Service) DeleteConsumer(name string) error {
	s.mu.Lock()
	c, ok := s.consumers[name]
	delete(s.consumers, name)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	c.cancel()
	<-c.done

	if err := s.rdb.XGroupDestroy(context.Background(), s.streamKey(c.subject), name).Err(); err != nil {
		return hostcoreerr.New(hostcoreerr.Transport, err)
	}
	return nil
}

func (s *Service) runConsumer(ctx context.Context, c *consumer, stream string, handler Handler, replyFn ReplySubjectFn) {
	defer close(c.done)
	backoff := minBackoff

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := s.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.name,
			Consumer: c.name,
			Streams:  []string{stream, ">"},
			Count:    readBatchSize,
			Block:    readBlock,
		}).Result()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue // block timeout, no new messages
			}
			c.logger.Error().Err(err).Stringer("backoff", backoff).Msg("bus: consumer read failed, backing off")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = minBackoff

		for _, st := range result {
			for _, xm := range st.Messages {
				s.handleOne(ctx, stream, c, xm, handler, replyFn)
			}
		}
	}
}

func (s *Service) handleOne(ctx context.Context, stream string, c *consumer, xm redis.XMessage, handler Handler, replyFn ReplySubjectFn) {
	msg, err := decodeMessage(xm)
	if err != nil {
		c.logger.Error().Err(err).Str("message_id", xm.ID).Msg("bus: decoding message")
		s.ack(ctx, stream, c, xm.ID)
		return
	}

	resp, herr := handler(ctx, msg)
	if herr != nil {
		c.logger.Error().Err(herr).Str("subject", msg.Subject).Msg("bus: handler failed")
		// §4.1's error signalling: a non-nil handler error still produces
		// a reply, carrying its string form as the body, rather than
		// leaving a waiting caller to time out with no explanation.
		if resp.Body == nil {
			resp.Body = []byte(herr.Error())
		}
	}

	s.publishReply(ctx, c, msg, resp, replyFn)
	s.ack(ctx, stream, c, xm.ID)
}

// publishReply implements the reply-subject selection order from §4.1:
// reply_override header first, else a native reply address (not
// produced by this transport, so always absent here), else
// replyFn(tags) fanned out to each computed subject.
func (s *Service) publishReply(ctx context.Context, c *consumer, msg Message, resp Response, replyFn ReplySubjectFn) {
	if resp.Body == nil && len(resp.Tags) == 0 {
		return
	}

	var subjects []string
	switch {
	case msg.ReplyOverride != "":
		subjects = []string{msg.ReplyOverride}
	case replyFn != nil:
		subjects = replyFn(resp.Tags)
	}

	for _, subject := range subjects {
		if err := s.Publish(ctx, subject, resp.Body, nil); err != nil {
			c.logger.Error().Err(err).Str("reply_subject", subject).Msg("bus: publishing reply")
		}
	}
}

func (s *Service) ack(ctx context.Context, stream string, c *consumer, id string) {
	if err := s.rdb.XAck(ctx, stream, c.name, id).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", id).Msg("bus: acking message")
	}
}

func isBusyGroupErr(err error) bool {
	return strings.Contains(err.Error(), "BUSYGROUP")
}
