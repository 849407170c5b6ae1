// Package mailer 邮件发送
//
// 配置了 SMTP 时通过 gomail 发送，否则只写日志（开发环境）。
package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"pocketfiler/internal/config"
	"pocketfiler/pkg/logging"
)

// Message 一封待发送的邮件
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender 通过 SMTP 发送
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender 创建 SMTP 发送器
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender 只记录日志，不实际发送
type LogSender struct {
	log *logging.Logger
}

func NewLogSender(log *logging.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.log.WithContext(ctx).Info("mail not sent: smtp not configured",
		"to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}

// New 按配置选择发送器
func New(cfg config.MailConfig, log *logging.Logger) Sender {
	if cfg.Host == "" {
		return NewLogSender(log)
	}
	return NewSMTPSender(cfg)
}

var (
	_ Sender = (*SMTPSender)(nil)
	_ Sender = (*LogSender)(nil)
)
