// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package mail delivers the HTML emails sent by the auth service.
package mail

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/samber/oops"
	gomail "github.com/wneessen/go-mail"
)

// DefaultSubject is used when SMTPConfig.Subject is empty.
const DefaultSubject = "Change password"

// DefaultTimeout bounds each SMTP session when SMTPConfig.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string

	// Timeout bounds dialing and the whole SMTP conversation.
	Timeout time.Duration
}

// SMTPSender sends mail through an SMTP relay. STARTTLS is used when the
// relay offers it.
type SMTPSender struct {
	cfg    SMTPConfig
	opts   []gomail.Option
	dialer net.Dialer
	now    func() time.Time
}

// NewSMTPSender creates an SMTPSender. Authentication is used only when a
// username is configured.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp port must be positive, got %d", cfg.Port)
	}
	if cfg.From == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("sender address is required")
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	s := &SMTPSender{cfg: cfg, now: time.Now}
	s.opts = []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(cfg.Timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		s.opts = append(s.opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	if _, err := s.message(cfg.From, ""); err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("from", cfg.From).Wrap(err)
	}
	if _, err := gomail.NewClient(cfg.Host, s.opts...); err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("host", cfg.Host).Wrap(err)
	}
	return s, nil
}

// Send delivers an HTML message to one recipient. It gives up when ctx is
// done or the configured timeout passes, whichever comes first.
func (s *SMTPSender) Send(ctx context.Context, to, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("to", to).Wrap(err)
	}

	msg, err := s.message(to, htmlBody)
	if err != nil {
		return oops.Code("MAIL_MESSAGE_INVALID").With("to", to).Wrap(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	opts := append([]gomail.Option{gomail.WithDialContextFunc(s.dialFunc(ctx))}, s.opts...)
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("to", to).Wrap(err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("to", to).
			With("host", s.cfg.Host).
			With("port", s.cfg.Port).
			Wrap(err)
	}
	return nil
}

// dialFunc ties the connection to ctx: reads and writes fail once ctx is
// done, even while the relay is silent.
func (s *SMTPSender) dialFunc(ctx context.Context) gomail.DialContextFunc {
	return func(dialCtx context.Context, network, address string) (net.Conn, error) {
		raw, err := s.dialer.DialContext(dialCtx, network, address)
		if err != nil {
			return nil, err
		}
		conn := &boundConn{Conn: raw, ctx: ctx}
		if err := conn.SetDeadline(time.Time{}); err != nil {
			_ = raw.Close()
			return nil, err
		}
		context.AfterFunc(ctx, func() {
			_ = raw.SetDeadline(expired)
		})
		return conn, nil
	}
}

var expired = time.Unix(1, 0)

// boundConn never lets a deadline run past its context.
type boundConn struct {
	net.Conn
	ctx context.Context
}

func (c *boundConn) clamp(t time.Time) time.Time {
	if c.ctx.Err() != nil {
		return expired
	}
	if d, ok := c.ctx.Deadline(); ok && (t.IsZero() || d.Before(t)) {
		return d
	}
	return t
}

func (c *boundConn) SetDeadline(t time.Time) error {
	return c.Conn.SetDeadline(c.clamp(t))
}

func (c *boundConn) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(c.clamp(t))
}

func (c *boundConn) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(c.clamp(t))
}

func (s *SMTPSender) message(to, htmlBody string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, err
	}
	if err := msg.To(to); err != nil {
		return nil, err
	}
	msg.Subject(s.cfg.Subject)
	msg.SetDateWithValue(s.now())
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)
	return msg, nil
}

// LogSender writes emails to the log instead of sending them. It is the
// development default.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message at info level.
func (s *LogSender) Send(ctx context.Context, to, htmlBody string) error {
	s.logger.InfoContext(ctx, "email not sent, logging instead", "to", to, "body", htmlBody)
	return nil
}
