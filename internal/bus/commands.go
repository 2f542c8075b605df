package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"livescribe/internal/domain"
)

const defaultCommandTimeout = 10 * time.Second

// Controller is the engine surface driven by remote commands.
type Controller interface {
	Toggle(ctx context.Context) (domain.FeedbackEvent, error)
	Start(ctx context.Context) (domain.FeedbackEvent, error)
	Stop(ctx context.Context) (domain.FeedbackEvent, error)
	Abort(ctx context.Context) error
	Save(ctx context.Context) (domain.Transcript, error)
	SetLanguage(code string) error
	Snapshot() domain.Snapshot
}

// History lists saved transcripts.
type History interface {
	List(ctx context.Context, userID string, limit int) ([]domain.Transcript, error)
}

// CommandServer answers <prefix>.cmd.* requests.
type CommandServer struct {
	conn     *nats.Conn
	subjects Subjects
	ctrl     Controller
	history  History
	userID   string
	timeout  time.Duration
	log      zerolog.Logger

	sub *nats.Subscription
}

func NewCommandServer(conn *nats.Conn, subjects Subjects, ctrl Controller, history History, userID string, log zerolog.Logger) *CommandServer {
	return &CommandServer{
		conn:     conn,
		subjects: subjects,
		ctrl:     ctrl,
		history:  history,
		userID:   userID,
		timeout:  defaultCommandTimeout,
		log:      log,
	}
}

func (s *CommandServer) Start() error {
	sub, err := s.conn.Subscribe(s.subjects.commandWildcard(), s.handle)
	if err != nil {
		return fmt.Errorf("subscribe commands: %w", err)
	}
	s.sub = sub
	s.log.Info().Str("subject", s.subjects.commandWildcard()).Msg("command server listening")
	return nil
}

func (s *CommandServer) Close() {
	if s.sub != nil {
		_ = s.sub.Drain()
	}
}

func (s *CommandServer) handle(msg *nats.Msg) {
	var req CommandRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.respond(msg, CommandReply{Error: fmt.Sprintf("invalid request: %v", err)})
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	name := s.subjects.commandName(msg.Subject)
	reply := s.execute(ctx, name, req)
	s.respond(msg, reply)
}

func (s *CommandServer) execute(ctx context.Context, name string, req CommandRequest) CommandReply {
	var (
		reply CommandReply
		err   error
	)

	switch name {
	case CommandToggle:
		reply.Feedback, err = s.ctrl.Toggle(ctx)
	case CommandStart:
		reply.Feedback, err = s.ctrl.Start(ctx)
	case CommandStop:
		reply.Feedback, err = s.ctrl.Stop(ctx)
	case CommandAbort:
		err = s.ctrl.Abort(ctx)
	case CommandSave:
		var record domain.Transcript
		record, err = s.ctrl.Save(ctx)
		if err == nil {
			reply.Transcript = &record
		}
	case CommandStatus:
	case CommandLanguage:
		err = s.ctrl.SetLanguage(req.Language)
	case CommandHistory:
		if s.history == nil {
			err = errors.New("history is not available")
			break
		}
		reply.History, err = s.history.List(ctx, s.userID, req.Limit)
	default:
		return CommandReply{Error: fmt.Sprintf("unknown command %q", name)}
	}

	snapshot := s.ctrl.Snapshot()
	reply.Snapshot = &snapshot
	if err != nil {
		reply.Error = err.Error()
		reply.Code = domain.CodeOf(err)
		s.log.Debug().Err(err).Str("command", name).Msg("command failed")
		return reply
	}
	reply.OK = true
	return reply
}

func (s *CommandServer) respond(msg *nats.Msg, reply CommandReply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to encode command reply")
		return
	}
	if err := msg.Respond(data); err != nil {
		s.log.Debug().Err(err).Msg("failed to send command reply")
	}
}

// Request sends a command and decodes the reply.
func Request(ctx context.Context, conn *nats.Conn, subjects Subjects, name string, req CommandRequest) (CommandReply, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return CommandReply{}, err
	}
	msg, err := conn.RequestWithContext(ctx, subjects.Command(name), data)
	if err != nil {
		return CommandReply{}, fmt.Errorf("request %s: %w", name, err)
	}
	var reply CommandReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return CommandReply{}, fmt.Errorf("decode %s reply: %w", name, err)
	}
	return reply, nil
}
